package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/mad-auth/console/internal/config"
	"github.com/mad-auth/console/internal/migrate"
	"github.com/mad-auth/console/internal/obs"
)

// command is one migrate subcommand; it writes its report to out.
type command struct {
	summary string
	run     func(ctx context.Context, mgr *migrate.Manager, out io.Writer) error
}

var commands = map[string]command{
	"up": {"apply every pending audit migration", func(ctx context.Context, mgr *migrate.Manager, out io.Writer) error {
		applied, err := mgr.Up(ctx)
		for _, name := range applied {
			fmt.Fprintln(out, "applied", name)
		}
		if err == nil && len(applied) == 0 {
			fmt.Fprintln(out, "audit schema is up to date")
		}
		return err
	}},
	"down": {"roll back the most recent audit migration", func(ctx context.Context, mgr *migrate.Manager, out io.Writer) error {
		reverted, err := mgr.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			fmt.Fprintln(out, "nothing to roll back")
			return nil
		}
		if err == nil {
			fmt.Fprintln(out, "reverted", reverted)
		}
		return err
	}},
	"status": {"print the applied migrations with their timestamps", func(ctx context.Context, mgr *migrate.Manager, out io.Writer) error {
		history, err := mgr.Status(ctx)
		for _, item := range history {
			fmt.Fprintln(out, item)
		}
		return err
	}},
	"list": {"print the migrations embedded in this binary", func(_ context.Context, mgr *migrate.Manager, out io.Writer) error {
		names, err := mgr.Available()
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return err
	}},
}

var commandOrder = []string{"up", "down", "status", "list"}

func usage(out io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(out, "Usage: %s [flags] <command>\n\n", fs.Name())
	fmt.Fprintln(out, "Manages the console audit schema. The SQL is embedded in the binary,")
	fmt.Fprintln(out, "so no migrations directory is needed at runtime.")
	fmt.Fprintln(out, "\nCommands:")
	for _, name := range commandOrder {
		fmt.Fprintf(out, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(out, "\nFlags:")
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// dispatch runs the named command; "list" never touches the database.
func dispatch(ctx context.Context, mgr *migrate.Manager, name string, out io.Writer) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (want one of %s)", name, strings.Join(commandOrder, ", "))
	}
	return cmd.run(ctx, mgr, out)
}

func main() {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	var (
		configPath = fs.String("config", os.Getenv("MAD_CONFIG"), "path to the console YAML config; audit.dsn is read from it")
		dsn        = fs.String("dsn", "", "audit store DSN, overriding audit.dsn and MAD_PG_DSN")
		table      = fs.String("table", "", "bookkeeping table, overriding audit.migrations_table")
		timeout    = fs.Duration("timeout", 30*time.Second, "deadline for the whole command")
	)
	fs.Usage = func() { usage(os.Stderr, fs) }
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := obs.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if *dsn == "" {
		*dsn = cfg.Audit.DSN
	}
	if *table == "" {
		*table = cfg.Audit.MigrationsTable
	}

	name := fs.Arg(0)
	var db *sql.DB
	if name != "list" {
		if *dsn == "" {
			logger.Fatal("missing audit store DSN: set audit.dsn, MAD_PG_DSN or -dsn")
		}
		db, err = sql.Open("pgx", *dsn)
		if err != nil {
			logger.Fatal("open audit store", zap.Error(err))
		}
		defer db.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	mgr := migrate.NewEmbedded(db, migrate.WithMigrationsTable(*table))
	if err := dispatch(ctx, mgr, name, os.Stdout); err != nil {
		logger.Error("migrate failed", zap.String("command", name), zap.String("table", *table), zap.Error(err))
		cancel()
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Debug("migrate done", zap.String("command", name))
}
