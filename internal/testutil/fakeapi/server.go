// Package fakeapi is an in-process stand-in for the bookkeeping backend used
// by tests. It records every request and keeps its data in memory.
package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/till/internal/model"
)

// Default credentials accepted by the login endpoint.
const (
	DefaultEmail    = "owner@example.com"
	DefaultPassword = "secret123"
	DefaultToken    = "tok_abc123"
)

// Recorded is one request the server received.
type Recorded struct {
	Header http.Header
	Query  url.Values
	Method string
	Path   string
	Body   []byte
}

// User is returned by the login and session endpoints.
type User struct {
	Subject string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

type failure struct {
	message string
	status  int
}

// Server is the fake backend.
type Server struct {
	*httptest.Server

	failures          map[string]failure
	receipts          map[int]model.Receipt
	uploads           map[string][]byte
	User              User
	Statement         model.Statement
	Email             string
	Password          string
	Token             string
	requests          []Recorded
	sales             []model.Transaction
	expenses          []model.Transaction
	SaleCategories    []model.Category
	ExpenseCategories []model.Category
	mu                sync.Mutex
	nextID            int
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		Email:    DefaultEmail,
		Password: DefaultPassword,
		Token:    DefaultToken,
		User:     User{Subject: "1", Name: "Store Owner", Email: DefaultEmail},
		SaleCategories: []model.Category{
			{ID: 1, Name: "Retail"},
			{ID: 2, Name: "Wholesale"},
		},
		ExpenseCategories: []model.Category{
			{ID: 3, Name: "Supplies"},
			{ID: 4, Name: "Utilities"},
		},
		Statement: model.Statement{
			Sales:    decimal.RequireFromString("1500.50"),
			Expenses: decimal.RequireFromString("320.25"),
		},
		failures: make(map[string]failure),
		receipts: make(map[int]model.Receipt),
		uploads:  make(map[string][]byte),
		nextID:   100,
	}

	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.record, s.injectFailures)

	r.HandleFunc("/api/user/login", s.handleLogin).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.requireToken)
	authed.HandleFunc("/api/user/session", s.handleSession).Methods(http.MethodGet)
	authed.HandleFunc("/api/sales/category", s.handleCategories(model.KindSale)).Methods(http.MethodGet)
	authed.HandleFunc("/api/expense/category", s.handleCategories(model.KindExpense)).Methods(http.MethodGet)
	authed.HandleFunc("/api/sales", s.handleTransactions(model.KindSale)).Methods(http.MethodGet, http.MethodPost, http.MethodPatch)
	authed.HandleFunc("/api/expense", s.handleTransactions(model.KindExpense)).Methods(http.MethodGet, http.MethodPost, http.MethodPatch)
	authed.HandleFunc("/api/scan", s.handleScan).Methods(http.MethodPost)
	authed.HandleFunc("/api/receipt/upload", s.handleUpload).Methods(http.MethodPost)
	authed.HandleFunc("/api/receipt", s.handleReceipt).Methods(http.MethodGet, http.MethodPost, http.MethodPatch)
	authed.HandleFunc("/api/total/month", s.handleStatement).Methods(http.MethodGet)

	return r
}

// Fail makes every request to path answer with status and a JSON message.
func (s *Server) Fail(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = failure{status: status, message: message}
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Recorded, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request, or nil.
func (s *Server) LastRequest() *Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	r := s.requests[len(s.requests)-1]
	return &r
}

// Transactions returns the stored sales or expenses.
func (s *Server) Transactions(kind model.Kind) []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.sales
	if kind == model.KindExpense {
		src = s.expenses
	}
	out := make([]model.Transaction, len(src))
	copy(out, src)
	return out
}

// AddTransaction seeds a stored sale or expense and returns its ID.
func (s *Server) AddTransaction(kind model.Kind, tx model.Transaction) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	tx.ID = s.nextID
	if kind == model.KindExpense {
		s.expenses = append(s.expenses, tx)
	} else {
		s.sales = append(s.sales, tx)
	}
	return tx.ID
}

// AddReceipt seeds a stored receipt and returns its ID.
func (s *Server) AddReceipt(r model.Receipt) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	s.receipts[r.ID] = r
	return r.ID
}

// Receipt returns a stored receipt.
func (s *Server) Receipt(id int) (model.Receipt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[id]
	return r, ok
}

// Upload returns the bytes stored under an image id.
func (s *Server) Upload(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.uploads[id]
	return b, ok
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[r.URL.Path]
		s.mu.Unlock()
		if ok {
			writeJSON(w, f.status, map[string]string{"message": f.message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	if creds.Email != s.Email || creds.Password != s.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "user not found or wrong password"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s.Token, "user": s.User})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": s.User})
}

func (s *Server) handleCategories(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if kind == model.KindExpense {
			writeJSON(w, http.StatusOK, s.ExpenseCategories)
			return
		}
		writeJSON(w, http.StatusOK, s.SaleCategories)
	}
}

func (s *Server) handleTransactions(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		list := &s.sales
		if kind == model.KindExpense {
			list = &s.expenses
		}

		switch r.Method {
		case http.MethodGet:
			from, to := r.URL.Query().Get("date"), r.URL.Query().Get("second")
			out := []model.Transaction{}
			for _, tx := range *list {
				if (from == "" || tx.Date >= from) && (to == "" || tx.Date <= to) {
					out = append(out, tx)
				}
			}
			writeJSON(w, http.StatusOK, out)
		case http.MethodPost:
			var tx model.Transaction
			if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
				return
			}
			s.nextID++
			tx.ID = s.nextID
			*list = append(*list, tx)
			writeJSON(w, http.StatusCreated, tx)
		case http.MethodPatch:
			var tx model.Transaction
			if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
				return
			}
			for i := range *list {
				if (*list)[i].ID == tx.ID {
					(*list)[i] = tx
					writeJSON(w, http.StatusOK, tx)
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "transaction not found"})
		}
	}
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !strings.HasPrefix(body.Image, "data:image/jpeg;base64,") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "image is required"})
		return
	}
	writeJSON(w, http.StatusOK, model.Receipt{
		ReceiptNumber: "R-0001",
		DeliveredBy:   "Supplier Co",
		DeliveredTo:   "Store Owner",
		Address:       "1 Market St",
		ReceiptType:   model.ReceiptExpense,
		Date:          "2024-05-01",
		Total:         decimal.RequireFromString("30.00"),
		Items: []model.LineItem{
			{Description: "Rice", UnitPrice: decimal.RequireFromString("10"), Amount: decimal.RequireFromString("30.00")},
		},
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "empty upload"})
		return
	}

	s.mu.Lock()
	s.nextID++
	id := "img-" + strconv.Itoa(s.nextID)
	s.uploads[id] = data
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		if idStr := q.Get("id"); idStr != "" {
			id, _ := strconv.Atoi(idStr)
			rec, ok := s.receipts[id]
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"message": "receipt not found"})
				return
			}
			writeJSON(w, http.StatusOK, rec)
			return
		}
		from, to := q.Get("from"), q.Get("to")
		out := []model.Receipt{}
		for _, rec := range s.receipts {
			if (from == "" || rec.Date >= from) && (to == "" || rec.Date <= to) {
				out = append(out, rec)
			}
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost, http.MethodPatch:
		var rec model.Receipt
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		if r.Method == http.MethodPost {
			s.nextID++
			rec.ID = s.nextID
		} else if _, ok := s.receipts[rec.ID]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "receipt not found"})
			return
		}
		s.receipts[rec.ID] = rec
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleStatement(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.Statement)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
