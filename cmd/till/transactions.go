package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/till/internal/cli"
	"github.com/Veraticus/till/internal/common"
	"github.com/Veraticus/till/internal/form"
	"github.com/Veraticus/till/internal/model"
)

func kindNoun(kind model.Kind) string {
	if kind == model.KindExpense {
		return "Expense"
	}
	return "Sale"
}

func transactionCmd(e *env, kind model.Kind) *cobra.Command {
	use := "sales"
	if kind == model.KindExpense {
		use = "expense"
	}

	cmd := &cobra.Command{
		Use:     use,
		Aliases: []string{string(kind)},
		Short:   fmt.Sprintf("Record and list %s without a receipt", strings.ToLower(kindNoun(kind))+"s"),
	}

	cmd.AddCommand(addTransactionCmd(e, kind))
	cmd.AddCommand(updateTransactionCmd(e, kind))
	cmd.AddCommand(listTransactionsCmd(e, kind))
	return cmd
}

// transactionFlags are the editable entry fields. Only flags the user set
// are applied, so update keeps the stored values for everything else.
type transactionFlags struct {
	description string
	amount      string
	category    string
	date        string
	month       string
}

func (f *transactionFlags) register(cmd *cobra.Command, dateDefault string) {
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "what the entry is for")
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", "amount, e.g. 150.50")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "category ID or name")
	cmd.Flags().StringVar(&f.date, "date", dateDefault, "date as YYYY-MM-DD, today or yesterday")
}

// apply copies the changed flags onto tf. Dates are read as midnight in the
// business timezone, so they are normalized with PickerLocalMidnight.
func (f *transactionFlags) apply(ctx context.Context, cmd *cobra.Command, a *app, kind model.Kind, tf *form.TransactionForm) error {
	changed := cmd.Flags().Changed

	if changed("description") {
		tf.Description = f.description
	}
	if changed("amount") {
		tf.Amount = f.amount
	}
	if changed("date") || tf.Date.IsZero() {
		date, err := form.ParseDate(f.date, a.now(), a.loc)
		if err != nil {
			return form.FieldErrors{"date": "Date is invalid"}
		}
		tf.Date = date
	}
	if changed("category") {
		catID, err := resolveCategory(ctx, a, kind, f.category)
		if err != nil {
			return err
		}
		tf.Category = catID
	}
	return nil
}

// findTransaction loads a stored entry. The backend only lists entries by
// month, so the entry is looked up in the month given by --month.
func findTransaction(ctx context.Context, a *app, kind model.Kind, id int, month string) (*model.Transaction, error) {
	rng, err := monthRange(month, a.now(), a.loc)
	if err != nil {
		return nil, err
	}

	var txs []model.Transaction
	if kind == model.KindExpense {
		txs, err = a.client.MonthlyExpenses(ctx, rng)
	} else {
		txs, err = a.client.MonthlySales(ctx, rng)
	}
	if err != nil {
		return nil, failure("Loading the "+strings.ToLower(kindNoun(kind)), err)
	}

	for i := range txs {
		if txs[i].ID == id {
			return &txs[i], nil
		}
	}
	return nil, common.NewUserError(fmt.Sprintf("%s #%d not found between %s and %s. Pass --month with the month it was recorded in.",
		kindNoun(kind), id, rng.From, rng.To), nil)
}

// resolveCategory accepts a numeric ID as is and looks names up on the server.
func resolveCategory(ctx context.Context, a *app, kind model.Kind, value string) (int, error) {
	if id, err := strconv.Atoi(value); err == nil {
		return id, nil
	}

	cats, err := a.client.Categories(ctx, kind)
	if err != nil {
		return 0, failure("Loading categories", err)
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, value) {
			return c.ID, nil
		}
	}
	return 0, common.NewUserError(fmt.Sprintf("Unknown %s category %q. See `till categories`.", strings.ToLower(kindNoun(kind)), value), nil)
}

func addTransactionCmd(e *env, kind model.Kind) *cobra.Command {
	var flags transactionFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: fmt.Sprintf("Record a %s", strings.ToLower(kindNoun(kind))),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return submitTransaction(cmd, e, kind, &flags, 0)
		},
	}
	flags.register(cmd, "today")
	return cmd
}

func updateTransactionCmd(e *env, kind model.Kind) *cobra.Command {
	var flags transactionFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: fmt.Sprintf("Edit a recorded %s", strings.ToLower(kindNoun(kind))),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return common.NewUserError(fmt.Sprintf("Invalid id %q", args[0]), err)
			}
			return submitTransaction(cmd, e, kind, &flags, id)
		},
	}
	flags.register(cmd, "")
	cmd.Flags().StringVarP(&flags.month, "month", "m", "", "month the entry is dated in, as YYYY-MM (default: current month)")
	return cmd
}

func submitTransaction(cmd *cobra.Command, e *env, kind model.Kind, flags *transactionFlags, id int) error {
	ctx := cmd.Context()
	noun := kindNoun(kind)

	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	var tf form.TransactionForm
	if id != 0 {
		stored, err := findTransaction(ctx, a, kind, id, flags.month)
		if err != nil {
			return err
		}
		tf = form.TransactionFormFrom(*stored, a.loc)
		tf.ID = id
	}
	if err := flags.apply(ctx, cmd, a, kind, &tf); err != nil {
		return failure("Saving "+strings.ToLower(noun), err)
	}

	e.interrupts.SetHint(fmt.Sprintf("The %s may still reach the server; check `till %s list` before retrying.",
		strings.ToLower(noun), cmd.Parent().Name()))

	var saved *model.Transaction
	err = a.guard.Submit(ctx, tf, func(ctx context.Context) error {
		tx, err := tf.Transaction(kind, form.PickerLocalMidnight, a.loc)
		if err != nil {
			return err
		}
		switch {
		case kind == model.KindSale && id == 0:
			saved, err = a.client.AddSale(ctx, tx)
		case kind == model.KindSale:
			saved, err = a.client.UpdateSale(ctx, tx)
		case id == 0:
			saved, err = a.client.AddExpense(ctx, tx)
		default:
			saved, err = a.client.UpdateExpense(ctx, tx)
		}
		return err
	})
	if err != nil {
		return failure("Saving "+strings.ToLower(noun), err)
	}

	verb := "recorded"
	if id != 0 {
		verb = "updated"
	}
	msg := fmt.Sprintf("%s %s: %s %s on %s", noun, verb, saved.Description, saved.Amount.StringFixed(2), saved.Date)
	if saved.ID != 0 {
		msg += fmt.Sprintf(" (#%d)", saved.ID)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(msg))
	return nil
}

func listTransactionsCmd(e *env, kind model.Kind) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List this month's %ss", strings.ToLower(kindNoun(kind))),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if _, err := a.requireSession(ctx); err != nil {
				return err
			}

			rng, err := monthRange(month, a.now(), a.loc)
			if err != nil {
				return err
			}

			var txs []model.Transaction
			if kind == model.KindExpense {
				txs, err = a.client.MonthlyExpenses(ctx, rng)
			} else {
				txs, err = a.client.MonthlySales(ctx, rng)
			}
			if err != nil {
				return failure("Loading "+strings.ToLower(kindNoun(kind))+"s", err)
			}

			if len(txs) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render(fmt.Sprintf("No %ss between %s and %s.", strings.ToLower(kindNoun(kind)), rng.From, rng.To)))
				return nil
			}

			printTransactions(out, kind, txs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", "month as YYYY-MM (default: current month)")
	return cmd
}

func printTransactions(out io.Writer, kind model.Kind, txs []model.Transaction) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := cli.BoldStyle
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		header.Render("ID"),
		header.Render("Date"),
		header.Render("Description"),
		header.Render("Category"),
		header.Render("Amount"))
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		strings.Repeat("-", 4),
		strings.Repeat("-", 10),
		strings.Repeat("-", 30),
		strings.Repeat("-", 8),
		strings.Repeat("-", 10))

	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", tx.ID, tx.Date, tx.Description, tx.Category, tx.Amount.StringFixed(2))
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\n%s %s\n", cli.BoldStyle.Render("Total:"), cli.FormatMoney(total, kind == model.KindSale))
}

// monthRange parses "YYYY-MM", defaulting to the month containing now.
func monthRange(month string, now time.Time, loc *time.Location) (model.MonthRange, error) {
	if month == "" {
		return model.CurrentMonth(now.In(loc)), nil
	}
	t, err := time.ParseInLocation("2006-01", month, loc)
	if err != nil {
		return model.MonthRange{}, common.NewUserError(fmt.Sprintf("Invalid month %q (want YYYY-MM)", month), err)
	}
	return model.CurrentMonth(t), nil
}
