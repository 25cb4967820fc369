package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/till/internal/cli"
	"github.com/Veraticus/till/internal/common"
	"github.com/Veraticus/till/internal/model"
)

func categoriesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "categories [sales|expense]",
		Short:     "List the categories entries can be filed under",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"sales", "expense"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			kinds := []model.Kind{model.KindSale, model.KindExpense}
			if len(args) == 1 {
				kind, err := model.ParseKind(strings.ToLower(args[0]))
				if err != nil {
					return common.NewUserError(err.Error(), err)
				}
				kinds = []model.Kind{kind}
			}

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if _, err := a.requireSession(ctx); err != nil {
				return err
			}

			for i, kind := range kinds {
				cats, err := a.client.Categories(ctx, kind)
				if err != nil {
					return failure("Loading categories", err)
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				printCategories(out, kind, cats)
			}
			return nil
		},
	}
}

func printCategories(out io.Writer, kind model.Kind, cats []model.Category) {
	fmt.Fprintln(out, cli.FormatTitle("", kindNoun(kind)+" categories"))
	if len(cats) == 0 {
		fmt.Fprintln(out, cli.SubtleStyle.Render("  none"))
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range cats {
		fmt.Fprintf(w, "  %d\t%s\t%s\n", c.ID, c.Name, cli.SubtleStyle.Render(c.Description))
	}
	_ = w.Flush()
}
