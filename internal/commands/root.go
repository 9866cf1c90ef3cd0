package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greybooks/greybooks/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "greybooks",
		Short:   "Small business ledger and stock tracking",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "greybooks.yaml", "path to greybooks.yaml")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newAccountCommand())
	rootCmd.AddCommand(newPostCommand())
	rootCmd.AddCommand(newReverseCommand())
	rootCmd.AddCommand(newStockCommand())
	rootCmd.AddCommand(newBalanceCommand())
	rootCmd.AddCommand(newReportCommand())

	return rootCmd
}
