package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/till/internal/cli"
)

func statementCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "statement",
		Short: "Show this month's sales and expense totals",
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

			st, err := a.client.MonthlyStatement(ctx)
			if err != nil {
				return failure("Loading the statement", err)
			}

			net := st.Net()
			content := fmt.Sprintf("%-10s %s\n%-10s %s\n%-10s %s",
				"Sales:", cli.FormatMoney(st.Sales, true),
				"Expenses:", cli.FormatMoney(st.Expenses, false),
				"Net:", cli.FormatMoney(net, !net.IsNegative()))

			month := a.now().In(a.loc).Format("January 2006")
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.ChartIcon+" "+month, content))
			return nil
		},
	}
}
