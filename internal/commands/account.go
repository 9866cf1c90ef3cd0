package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greybooks/greybooks/internal/model"
)

func newAccountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(newAccountAddCommand())
	cmd.AddCommand(newAccountListCommand())
	cmd.AddCommand(newAccountRenameCommand())
	cmd.AddCommand(newAccountRetypeCommand())
	return cmd
}

func newAccountAddCommand() *cobra.Command {
	var name, accountType, description string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			a, err := e.registry.Create(cmd.Context(), name, model.AccountType(accountType), description)
			if err != nil {
				return err
			}
			e.record("account add", a.Name, fmt.Sprint(a.ID))
			fmt.Printf("Created account %d %q (%s)\n", a.ID, a.Name, a.Type)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "account name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&accountType, "type", "", "asset|liability|equity|revenue|expense (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&description, "description", "", "account description")

	return cmd
}

func newAccountListCommand() *cobra.Command {
	var accountType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			accts, err := e.registry.List(cmd.Context(), model.AccountType(accountType))
			if err != nil {
				return err
			}
			for _, a := range accts {
				fmt.Printf("%d\t%-10s\t%s\n", a.ID, a.Type, a.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountType, "type", "", "filter by account type")
	return cmd
}

func newAccountRenameCommand() *cobra.Command {
	var accountID int
	var name string

	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Rename an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			a, err := e.registry.Rename(cmd.Context(), accountID, name)
			if err != nil {
				return err
			}
			e.record("account rename", a.Name, fmt.Sprint(a.ID))
			fmt.Printf("Renamed account %d to %q\n", a.ID, a.Name)
			return nil
		},
	}

	cmd.Flags().IntVar(&accountID, "id", 0, "account ID (required)")
	_ = cmd.MarkFlagRequired("id")
	cmd.Flags().StringVar(&name, "name", "", "new name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newAccountRetypeCommand() *cobra.Command {
	var accountID int
	var accountType string

	cmd := &cobra.Command{
		Use:   "retype",
		Short: "Change an account's type (only while unused)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			a, err := e.registry.Retype(cmd.Context(), accountID, model.AccountType(accountType))
			if err != nil {
				return err
			}
			e.record("account retype", string(a.Type), fmt.Sprint(a.ID))
			fmt.Printf("Account %d is now %s\n", a.ID, a.Type)
			return nil
		},
	}

	cmd.Flags().IntVar(&accountID, "id", 0, "account ID (required)")
	_ = cmd.MarkFlagRequired("id")
	cmd.Flags().StringVar(&accountType, "type", "", "new account type (required)")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}
