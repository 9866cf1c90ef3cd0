package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/greybooks/greybooks/internal/accounts"
	"github.com/greybooks/greybooks/internal/config"
	"github.com/greybooks/greybooks/internal/storage/csvfile"
)

func newInitCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new books directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runInit(cmd.Context(), absDir, name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runInit(ctx context.Context, dir, name string) error {
	for _, d := range []string{"accounts", "inventory", "logs", "import"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(name, dir)
	if err := config.Save(filepath.Join(dir, "greybooks.yaml"), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	store := csvfile.New(dir)
	for _, a := range accounts.DefaultChart() {
		if err := store.SaveAccount(ctx, a); err != nil {
			return fmt.Errorf("writing chart of accounts: %w", err)
		}
	}

	fmt.Printf("Initialized greybooks at %s\n", dir)
	return nil
}
