package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/greybooks/greybooks/internal/accounts"
	"github.com/greybooks/greybooks/internal/audit"
	"github.com/greybooks/greybooks/internal/config"
	"github.com/greybooks/greybooks/internal/consistency"
	"github.com/greybooks/greybooks/internal/events"
	"github.com/greybooks/greybooks/internal/inventory"
	"github.com/greybooks/greybooks/internal/journal"
	"github.com/greybooks/greybooks/internal/reports"
	"github.com/greybooks/greybooks/internal/storage"
	"github.com/greybooks/greybooks/internal/storage/csvfile"
	"github.com/greybooks/greybooks/internal/storage/memory"
	"github.com/greybooks/greybooks/internal/storage/postgres"
)

// env wires config, store, supervisor, publisher and engines for one command
// invocation.
type env struct {
	cfg       *config.Config
	store     storage.Store
	registry  *accounts.Registry
	journal   *journal.Engine
	inventory *inventory.Engine
	reports   *reports.Builder
	closeFns  []func() error
}

func newEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}

	switch cfg.Storage.Backend {
	case "csv", "":
		dir := cfg.Storage.BooksDir
		if dir == "" {
			dir = "."
		}
		e.store = csvfile.New(dir)
	case "memory":
		e.store = memory.New()
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		e.store = pg
		e.closeFns = append(e.closeFns, pg.Close)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	var pub events.Publisher
	if len(cfg.Events.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Events.KafkaBrokers)
		e.closeFns = append(e.closeFns, kp.Close)
		pub = kp
	} else {
		pub = events.NewSlogPublisher(nil)
	}

	retry := cfg.Retry
	if retry.Attempts == 0 {
		retry.Attempts = 3
	}
	if retry.BaseDelay == 0 {
		retry.BaseDelay = 50 * time.Millisecond
	}
	sup := consistency.New(e.store, consistency.WithRetry(retry.Attempts, retry.BaseDelay))

	e.registry = accounts.NewRegistry(e.store, e.store, sup)
	e.journal = journal.NewEngine(e.store, e.store, sup, pub)
	e.inventory = inventory.NewEngine(e.store, sup, pub)
	e.reports = reports.NewBuilder(e.store, e.store)
	return e, nil
}

func (e *env) close() {
	for _, fn := range e.closeFns {
		_ = fn()
	}
}

// record appends one audit row for a mutating command. Audit is best-effort
// and only meaningful for the csv backend's books directory.
func (e *env) record(command, details, resultID string) {
	if e.cfg.Storage.Backend != "csv" && e.cfg.Storage.Backend != "" {
		return
	}
	dir := e.cfg.Storage.BooksDir
	if dir == "" {
		dir = "."
	}
	actor := os.Getenv("USER")
	if actor == "" {
		actor = "cli"
	}
	_ = audit.Append(dir, []audit.Entry{{
		Timestamp: time.Now(),
		Actor:     actor,
		Command:   command,
		Details:   details,
		ResultID:  resultID,
	}})
}
