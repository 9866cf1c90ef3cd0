package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newBalanceCommand() *cobra.Command {
	var accountID int
	var asOf string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show an account's balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			asOfT := time.Now()
			if asOf != "" {
				asOfT, err = time.Parse(dateFormat, asOf)
				if err != nil {
					return fmt.Errorf("parsing --as-of %q: %w", asOf, err)
				}
			}

			bal, err := e.reports.BalanceOf(cmd.Context(), accountID, asOfT)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", bal.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().IntVar(&accountID, "account", 0, "account ID (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&asOf, "as-of", "", "balance date YYYY-MM-DD (default today)")

	return cmd
}

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build financial statements",
	}
	cmd.AddCommand(newBalanceSheetCommand())
	cmd.AddCommand(newIncomeCommand())
	return cmd
}

func newBalanceSheetCommand() *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "balance-sheet",
		Short: "Balance sheet as of a date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			asOfT := time.Now()
			if asOf != "" {
				asOfT, err = time.Parse(dateFormat, asOf)
				if err != nil {
					return fmt.Errorf("parsing --as-of %q: %w", asOf, err)
				}
			}

			bs, err := e.reports.BalanceSheet(cmd.Context(), asOfT)
			if err != nil {
				return err
			}
			fmt.Printf("Balance sheet as of %s\n", asOfT.Format(dateFormat))
			fmt.Printf("  Assets:      %s\n", bs.Assets.StringFixed(2))
			fmt.Printf("  Liabilities: %s\n", bs.Liabilities.StringFixed(2))
			fmt.Printf("  Equity:      %s\n", bs.Equity.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "statement date YYYY-MM-DD (default today)")
	return cmd
}

func newIncomeCommand() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "income",
		Short: "Income statement over a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			fromT, toT, err := parseRange(from, to)
			if err != nil {
				return err
			}
			if toT.IsZero() {
				toT = time.Now()
			}

			is, err := e.reports.IncomeStatement(cmd.Context(), fromT, toT)
			if err != nil {
				return err
			}
			fmt.Printf("Income statement %s to %s\n", fromT.Format(dateFormat), toT.Format(dateFormat))
			fmt.Printf("  Revenues:   %s\n", is.Revenues.StringFixed(2))
			fmt.Printf("  Expenses:   %s\n", is.Expenses.StringFixed(2))
			fmt.Printf("  Net income: %s\n", is.NetIncome.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "period start YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "period end YYYY-MM-DD (default today)")

	return cmd
}
