package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/greybooks/greybooks/internal/journal"
)

const dateFormat = "2006-01-02"

func newPostCommand() *cobra.Command {
	var date, description, token string
	var debits, credits []string

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a balanced journal entry",
		Example: `  greybooks post --date 2026-03-01 --desc "Cash sale" \
    --debit 1010:100.00 --credit 4010:100.00`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			when, err := time.Parse(dateFormat, date)
			if err != nil {
				return fmt.Errorf("parsing date %q: %w", date, err)
			}

			var lines []journal.Line
			for _, d := range debits {
				l, err := parseLine(d, true)
				if err != nil {
					return err
				}
				lines = append(lines, l)
			}
			for _, c := range credits {
				l, err := parseLine(c, false)
				if err != nil {
					return err
				}
				lines = append(lines, l)
			}

			entry, err := e.journal.Post(cmd.Context(), journal.PostParams{
				Date:             when,
				Description:      description,
				Lines:            lines,
				IdempotencyToken: token,
			})
			if err != nil {
				return err
			}
			e.record("post", description, entry.ID)
			fmt.Printf("Posted %s (%s)\n", entry.ID, entry.TotalDebit().StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "entry date YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("date")
	cmd.Flags().StringVar(&description, "desc", "", "entry description (required)")
	_ = cmd.MarkFlagRequired("desc")
	cmd.Flags().StringArrayVar(&debits, "debit", nil, "debit line ACCOUNT:AMOUNT (repeatable)")
	cmd.Flags().StringArrayVar(&credits, "credit", nil, "credit line ACCOUNT:AMOUNT (repeatable)")
	cmd.Flags().StringVar(&token, "token", "", "idempotency token")

	return cmd
}

func newReverseCommand() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "reverse <entry-id>",
		Short: "Reverse a posted journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			entry, err := e.journal.Reverse(cmd.Context(), args[0], token)
			if err != nil {
				return err
			}
			e.record("reverse", args[0], entry.ID)
			fmt.Printf("Reversed %s with %s\n", args[0], entry.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "idempotency token")
	return cmd
}

// parseLine parses "ACCOUNT:AMOUNT" into a debit or credit line.
func parseLine(s string, debit bool) (journal.Line, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return journal.Line{}, fmt.Errorf("invalid line %q, want ACCOUNT:AMOUNT", s)
	}
	accountID, err := strconv.Atoi(parts[0])
	if err != nil {
		return journal.Line{}, fmt.Errorf("invalid account in %q: %w", s, err)
	}
	amount, err := decimal.NewFromString(parts[1])
	if err != nil {
		return journal.Line{}, fmt.Errorf("invalid amount in %q: %w", s, err)
	}

	l := journal.Line{AccountID: accountID}
	if debit {
		l.Debit = amount
	} else {
		l.Credit = amount
	}
	return l, nil
}
