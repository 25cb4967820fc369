package session

import (
	"encoding/json"
	"fmt"
	"strings"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// MaxTokenLength bounds the size of an accepted credential.
const MaxTokenLength = 4096

var signatureAlgorithms = []jose.SignatureAlgorithm{
	jose.HS256, jose.HS384, jose.HS512,
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.EdDSA,
}

// qrEnvelope is the structured form some issuers encode into the QR code.
type qrEnvelope struct {
	User    *Identity `json:"user"`
	Token   string    `json:"token"`
	Session string    `json:"session"`
	Subject string    `json:"sub"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
}

type identityClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ParsePayload interprets raw scanned text as a session credential.
//
// Accepted forms are a JSON envelope carrying "token" (or "session") plus
// optional identity fields, a compact JWT whose unverified claims fill the
// identity, or an opaque printable token. The returned session has no
// Source or CreatedAt set.
func ParsePayload(payload string) (*Session, error) {
	raw := strings.TrimSpace(payload)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	if strings.HasPrefix(raw, "{") {
		return parseEnvelope(raw)
	}

	if err := validateToken(raw); err != nil {
		return nil, err
	}

	s := &Session{Token: raw, Identity: &Identity{Hint: tokenHint(raw)}}
	if strings.Count(raw, ".") == 2 {
		applyJWTClaims(s)
	}
	return s, nil
}

func parseEnvelope(raw string) (*Session, error) {
	var env qrEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", ErrInvalidPayload, err)
	}

	token := strings.TrimSpace(env.Token)
	if token == "" {
		token = strings.TrimSpace(env.Session)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: JSON payload has no token", ErrInvalidPayload)
	}
	if err := validateToken(token); err != nil {
		return nil, err
	}

	s := &Session{Token: token, Identity: &Identity{Hint: tokenHint(token)}}
	if strings.Count(token, ".") == 2 {
		applyJWTClaims(s)
	}

	id := s.Identity
	if env.User != nil {
		mergeIdentity(id, env.User)
	}
	mergeIdentity(id, &Identity{Subject: env.Subject, Name: env.Name, Email: env.Email})
	return s, nil
}

// applyJWTClaims fills identity and expiry from an unverified JWT. Tokens
// that merely contain two dots are left as opaque credentials.
func applyJWTClaims(s *Session) {
	tok, err := jwt.ParseSigned(s.Token, signatureAlgorithms)
	if err != nil {
		return
	}

	var std jwt.Claims
	var extra identityClaims
	if err := tok.UnsafeClaimsWithoutVerification(&std, &extra); err != nil {
		return
	}

	mergeIdentity(s.Identity, &Identity{Subject: std.Subject, Name: extra.Name, Email: extra.Email})
	if std.Expiry != nil {
		exp := std.Expiry.Time().UTC()
		s.ExpiresAt = &exp
	}
}

// mergeIdentity copies non-empty fields of src over dst.
func mergeIdentity(dst, src *Identity) {
	if src.Subject != "" {
		dst.Subject = src.Subject
	}
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Email != "" {
		dst.Email = src.Email
	}
}

// validateToken rejects anything that cannot travel in an Authorization header.
func validateToken(token string) error {
	if len(token) > MaxTokenLength {
		return fmt.Errorf("%w: token longer than %d bytes", ErrInvalidPayload, MaxTokenLength)
	}
	for i := 0; i < len(token); i++ {
		if c := token[i]; c < 0x21 || c > 0x7e {
			return fmt.Errorf("%w: token contains non-printable or whitespace byte at offset %d", ErrInvalidPayload, i)
		}
	}
	return nil
}

// tokenHint keeps at most the first and last four characters for identification.
func tokenHint(token string) string {
	switch {
	case len(token) > 12:
		return token[:4] + "..." + token[len(token)-4:]
	case len(token) > 4:
		return token[:4] + "..."
	default:
		return "..."
	}
}
