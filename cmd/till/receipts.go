package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/till/internal/cli"
	"github.com/Veraticus/till/internal/common"
	"github.com/Veraticus/till/internal/form"
	"github.com/Veraticus/till/internal/model"
)

func receiptCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "receipt",
		Aliases: []string{"receipts"},
		Short:   "Scan, record and browse receipts",
	}

	cmd.AddCommand(getReceiptCmd(e))
	cmd.AddCommand(listReceiptsCmd(e))
	cmd.AddCommand(scanReceiptCmd(e))
	cmd.AddCommand(uploadReceiptCmd(e))
	cmd.AddCommand(saveReceiptCmd(e))
	cmd.AddCommand(updateReceiptCmd(e))
	return cmd
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, common.NewUserError(fmt.Sprintf("Invalid id %q", arg), err)
	}
	return id, nil
}

func getReceiptCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a receipt with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if _, err := a.requireSession(ctx); err != nil {
				return err
			}

			r, err := a.client.GetReceipt(ctx, id)
			if err != nil {
				return failure("Loading the receipt", err)
			}
			printReceipt(cmd.OutOrStdout(), r)
			return nil
		},
	}
}

func listReceiptsCmd(e *env) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List this month's receipts",
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

			receipts, err := a.client.MonthlyReceipts(ctx, rng)
			if err != nil {
				return failure("Loading receipts", err)
			}
			if len(receipts) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render(fmt.Sprintf("No receipts between %s and %s.", rng.From, rng.To)))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.BoldStyle.Render("ID"),
				cli.BoldStyle.Render("Date"),
				cli.BoldStyle.Render("Number"),
				cli.BoldStyle.Render("Type"),
				cli.BoldStyle.Render("Total"))
			for _, r := range receipts {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Date, r.ReceiptNumber, r.ReceiptType,
					cli.FormatMoney(r.Total, r.ReceiptType.Kind() == model.KindSale))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", "month as YYYY-MM (default: current month)")
	return cmd
}

// receiptFlags are the editable receipt fields. Only flags the user set are
// applied, so update keeps the stored values for everything else.
type receiptFlags struct {
	number      string
	deliveredBy string
	deliveredTo string
	address     string
	receiptType string
	category    string
	date        string
	image       string
	items       []string
}

func (f *receiptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.number, "number", "n", "", "receipt number")
	cmd.Flags().StringVar(&f.deliveredBy, "delivered-by", "", "who delivered the goods")
	cmd.Flags().StringVar(&f.deliveredTo, "delivered-to", "", "who received the goods")
	cmd.Flags().StringVar(&f.address, "address", "", "delivery address")
	cmd.Flags().StringVarP(&f.receiptType, "type", "t", "", "receipt type: Sales or Expense")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "category ID or name")
	cmd.Flags().StringVar(&f.date, "date", "today", "date as YYYY-MM-DD, today or yesterday")
	cmd.Flags().StringVar(&f.image, "image", "", "uploaded image id")
	cmd.Flags().StringArrayVarP(&f.items, "item", "i", nil, `line item as "description|unit price|amount" (repeatable)`)
}

func (f *receiptFlags) apply(ctx context.Context, cmd *cobra.Command, a *app, rf *form.ReceiptForm) error {
	changed := cmd.Flags().Changed
	previousType := rf.ReceiptType

	if changed("number") {
		rf.ReceiptNumber = f.number
	}
	if changed("delivered-by") {
		rf.DeliveredBy = f.deliveredBy
	}
	if changed("delivered-to") {
		rf.DeliveredTo = f.deliveredTo
	}
	if changed("address") {
		rf.Address = f.address
	}
	if changed("type") {
		rf.ReceiptType = f.receiptType
	}
	if changed("image") {
		rf.ImageUUID = f.image
	}
	if changed("date") || rf.Date.IsZero() {
		date, err := form.ParseDate(f.date, a.now(), a.loc)
		if err != nil {
			return form.FieldErrors{"date": "Date is invalid"}
		}
		rf.Date = date
	}
	if changed("item") {
		items, err := parseItems(f.items)
		if err != nil {
			return err
		}
		rf.Items = items
	}
	if changed("type") && !changed("category") && rf.Category > 0 && !sameReceiptType(previousType, rf.ReceiptType) {
		return form.FieldErrors{"category": "Category is required when changing the receipt type"}
	}
	if changed("category") {
		rt, err := model.ParseReceiptType(rf.ReceiptType)
		if err != nil {
			return form.FieldErrors{"receipt_type": "Receipt type must be Sales or Expense"}
		}
		id, err := resolveCategory(ctx, a, rt.Kind(), f.category)
		if err != nil {
			return err
		}
		rf.Category = id
	}
	return nil
}

// sameReceiptType compares two user-entered receipt types. A category ID
// belongs to one type's category list and cannot move to the other.
func sameReceiptType(a, b string) bool {
	ta, errA := model.ParseReceiptType(a)
	tb, errB := model.ParseReceiptType(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ta == tb
}

// parseItems reads "description|unit price|amount" triples.
func parseItems(raw []string) ([]form.ItemForm, error) {
	items := make([]form.ItemForm, 0, len(raw))
	for i, s := range raw {
		parts := strings.Split(s, "|")
		if len(parts) != 3 {
			return nil, form.FieldErrors{
				fmt.Sprintf("items[%d]", i): fmt.Sprintf("Item %q must look like description|unit price|amount", s),
			}
		}
		items = append(items, form.ItemForm{
			Description: strings.TrimSpace(parts[0]),
			UnitPrice:   strings.TrimSpace(parts[1]),
			Amount:      strings.TrimSpace(parts[2]),
		})
	}
	return items, nil
}

func saveReceiptCmd(e *env) *cobra.Command {
	var flags receiptFlags

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Record a receipt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if _, err := a.requireSession(ctx); err != nil {
				return err
			}

			var rf form.ReceiptForm
			if err := flags.apply(ctx, cmd, a, &rf); err != nil {
				return failure("Saving the receipt", err)
			}
			return submitReceipt(cmd, e, a, rf)
		},
	}
	flags.register(cmd)
	return cmd
}

func updateReceiptCmd(e *env) *cobra.Command {
	var flags receiptFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a recorded receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if _, err := a.requireSession(ctx); err != nil {
				return err
			}

			existing, err := a.client.GetReceipt(ctx, id)
			if err != nil {
				return failure("Loading the receipt", err)
			}

			rf := form.ReceiptFormFrom(*existing, a.loc)
			rf.ID = id
			if err := flags.apply(ctx, cmd, a, &rf); err != nil {
				return failure("Saving the receipt", err)
			}
			return submitReceipt(cmd, e, a, rf)
		},
	}
	flags.register(cmd)
	return cmd
}

// submitReceipt recomputes the total, validates and sends the receipt.
func submitReceipt(cmd *cobra.Command, e *env, a *app, rf form.ReceiptForm) error {
	rf.Recompute()

	e.interrupts.SetHint("The receipt may still reach the server; check `till receipt list` before retrying.")

	var saved *model.Receipt
	err := a.guard.Submit(cmd.Context(), rf, func(ctx context.Context) error {
		r, err := rf.Receipt(form.PickerLocalMidnight, a.loc)
		if err != nil {
			return err
		}
		if rf.ID != 0 {
			saved, err = a.client.UpdateReceipt(ctx, r)
		} else {
			saved, err = a.client.SaveReceipt(ctx, r)
		}
		return err
	})
	if err != nil {
		return failure("Saving the receipt", err)
	}

	verb := "saved"
	if rf.ID != 0 {
		verb = "updated"
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Receipt %s %s (#%d), total %s",
		saved.ReceiptNumber, verb, saved.ID, form.FormatTotal(saved.Total))))
	return nil
}

func scanReceiptCmd(e *env) *cobra.Command {
	var (
		save  bool
		flags receiptFlags
	)

	cmd := &cobra.Command{
		Use:   "scan <image.jpg>",
		Short: "Read receipt fields from a photo",
		Long: `Send a JPEG photo to the backend's extractor and show what it recognised.
With --save the image is uploaded and the receipt recorded; other flags
override the recognised fields.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			data, err := os.ReadFile(args[0]) // #nosec G304
			if err != nil {
				return common.NewUserError("Could not read the image", err)
			}

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if _, err := a.requireSession(ctx); err != nil {
				return err
			}

			scanned, err := a.client.ScanReceipt(ctx, data)
			if err != nil {
				return failure("Scanning the receipt", err)
			}
			if !save {
				printReceipt(out, scanned)
				return nil
			}

			imageID, err := uploadImage(ctx, cmd, a, args[0])
			if err != nil {
				return err
			}

			rf := form.ReceiptFormFrom(*scanned, a.loc)
			rf.ID = 0
			rf.ImageUUID = imageID
			if err := flags.apply(ctx, cmd, a, &rf); err != nil {
				return failure("Saving the receipt", err)
			}
			return submitReceipt(cmd, e, a, rf)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "upload the image and record the receipt")
	flags.register(cmd)
	return cmd
}

func uploadReceiptCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <image>",
		Short: "Upload a receipt image and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if _, err := a.requireSession(ctx); err != nil {
				return err
			}

			id, err := uploadImage(ctx, cmd, a, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Uploaded image "+id))
			return nil
		},
	}
}

// uploadImage streams the file to the backend behind a byte progress bar
// drawn on stderr.
func uploadImage(ctx context.Context, cmd *cobra.Command, a *app, path string) (string, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return "", common.NewUserError("Could not open the image", err)
	}
	defer func() { _ = f.Close() }()

	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	bar := cli.NewUploadBar(cmd.ErrOrStderr(), size, "Uploading "+filepath.Base(path))
	id, err := a.client.UploadReceiptImage(ctx, cli.TrackReader(f, bar), mime.TypeByExtension(filepath.Ext(path)))
	if err != nil {
		return "", failure("Uploading the image", err)
	}
	_ = bar.Finish()
	return id, nil
}

func printReceipt(out io.Writer, r *model.Receipt) {
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s %s\n", "Type:", r.ReceiptType)
	fmt.Fprintf(&b, "%-14s %s\n", "Date:", r.Date)
	fmt.Fprintf(&b, "%-14s %s\n", "Delivered by:", r.DeliveredBy)
	fmt.Fprintf(&b, "%-14s %s\n", "Delivered to:", r.DeliveredTo)
	fmt.Fprintf(&b, "%-14s %s\n", "Address:", r.Address)
	if id := r.CategoryID(); id != 0 {
		fmt.Fprintf(&b, "%-14s %d\n", "Category:", id)
	}
	if r.ImageUUID != "" {
		fmt.Fprintf(&b, "%-14s %s\n", "Image:", r.ImageUUID)
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nItem\tUnit price\tAmount")
	for _, it := range r.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Description, it.UnitPrice.StringFixed(2), it.Amount.StringFixed(2))
	}
	_ = tw.Flush()

	total := form.FormatTotal(r.Total)
	if !form.TotalMatches(*r) {
		total += " " + cli.WarningStyle.Render("(items add up to "+form.FormatTotal(form.RecomputeTotal(r.Items))+")")
	}
	fmt.Fprintf(&b, "\n%-14s %s", "Total:", total)

	title := cli.ReceiptIcon + " Receipt " + r.ReceiptNumber
	if r.ID != 0 {
		title += fmt.Sprintf(" (#%d)", r.ID)
	}
	fmt.Fprintln(out, cli.RenderBox(title, b.String()))
}
