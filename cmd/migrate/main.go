// Command migrate applies or rolls back the journal schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/namn-grg/dual-channel-bot/internal/config"
	"github.com/namn-grg/dual-channel-bot/internal/journal/migrations"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
)

const defaultTimeout = 30 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout, os.LookupEnv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type command struct {
	dsn     string
	dir     string
	timeout time.Duration
	quiet   bool
	args    []string
}

func parse(args []string, lookup func(string) (string, bool)) (command, error) {
	var cmd command
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.StringVar(&cmd.dsn, "database", "", "PostgreSQL DSN (defaults to the journal dsn of -config)")
	configPath := fs.String("config", "", "Bot configuration file providing journal.dsn")
	fs.StringVar(&cmd.dir, "path", "", "Directory containing SQL migrations (default: embedded)")
	fs.DurationVar(&cmd.timeout, "timeout", defaultTimeout, "Maximum time to wait for database connectivity")
	fs.BoolVar(&cmd.quiet, "quiet", false, "Suppress informational logs")
	if err := fs.Parse(args); err != nil {
		return command{}, err
	}
	cmd.args = fs.Args()

	if strings.TrimSpace(cmd.dsn) == "" {
		path := *configPath
		if path == "" {
			if v, ok := lookup(config.EnvConfig); ok {
				path = v
			}
		}
		if path != "" {
			cfg, err := config.Load(context.Background(), path)
			if err != nil {
				return command{}, err
			}
			cmd.dsn = cfg.Journal.DSN
		}
	}
	if strings.TrimSpace(cmd.dsn) == "" {
		return command{}, errors.New("-database flag or journal.dsn is required")
	}
	if len(cmd.args) == 0 {
		return command{}, errors.New("command required (up|down|version)")
	}
	return cmd, nil
}

func run(args []string, out io.Writer, lookup func(string) (string, bool)) error {
	cmd, err := parse(args, lookup)
	if err != nil {
		return err
	}

	logger := observability.Noop()
	if !cmd.quiet {
		logger = observability.NewLogrus(observability.LogrusOptions{Level: "info", Output: out})
	}
	opts := []migrations.Option{migrations.WithLogger(logger)}
	if cmd.dir != "" {
		opts = append(opts, migrations.WithDir(cmd.dir))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmd.timeout)
	defer cancel()

	switch cmd.args[0] {
	case "up":
		return migrations.Up(ctx, cmd.dsn, opts...)
	case "down":
		steps := 1
		if len(cmd.args) > 1 {
			n, err := strconv.Atoi(cmd.args[1])
			if err != nil {
				return fmt.Errorf("invalid down steps %q: %w", cmd.args[1], err)
			}
			steps = n
		}
		return migrations.Down(ctx, cmd.dsn, steps, opts...)
	case "version":
		version, dirty, err := migrations.Version(ctx, cmd.dsn, opts...)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "version=%d dirty=%t\n", version, dirty)
		return err
	default:
		return fmt.Errorf("unknown command %q (expected up, down or version)", cmd.args[0])
	}
}
