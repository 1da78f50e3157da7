// Package migrations applies the journal schema with golang-migrate.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migrations loader
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	dbmigrations "github.com/namn-grg/dual-channel-bot/db/migrations"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
	"github.com/namn-grg/dual-channel-bot/internal/telemetry"
)

var (
	errNotDirectory = errors.New("migrations path must be a directory")

	migrationsCounter   metric.Int64Counter
	migrationsCounterMu sync.Once
)

type options struct {
	dir    string
	logger observability.Logger
}

// Option customises a migration run.
type Option func(*options)

// WithDir reads migrations from a directory instead of the embedded set.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithLogger reports progress.
func WithLogger(logger observability.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Up applies every pending migration. An up-to-date schema is not an error.
func Up(ctx context.Context, dsn string, opts ...Option) error {
	return run(ctx, dsn, "up", opts, func(m *migrate.Migrate) error { return m.Up() })
}

// Down rolls back steps migrations.
func Down(ctx context.Context, dsn string, steps int, opts ...Option) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be > 0")
	}
	return run(ctx, dsn, "down", opts, func(m *migrate.Migrate) error { return m.Steps(-steps) })
}

// Version reports the applied version and whether it is dirty.
func Version(ctx context.Context, dsn string, opts ...Option) (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := run(ctx, dsn, "version", opts, func(m *migrate.Migrate) error {
		var err error
		version, dirty, err = m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		return err
	})
	return version, dirty, err
}

func run(ctx context.Context, dsn, op string, opts []Option, fn func(*migrate.Migrate) error) error {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	logger := observability.Or(o.logger)

	sourceName := "iofs"
	var sourceURL string
	if strings.TrimSpace(o.dir) != "" {
		resolved, err := resolveDir(o.dir)
		if err != nil {
			return err
		}
		sourceURL = fileURL(resolved)
		sourceName = resolved
	}
	if strings.TrimSpace(dsn) == "" {
		return fmt.Errorf("database dsn required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migrations connection: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("migrations connection close", observability.F("error", cerr))
		}
	}()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping migrations database: %w", err)
	}

	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		return fmt.Errorf("initialise pgx v5 driver: %w", err)
	}

	var m *migrate.Migrate
	if sourceURL != "" {
		m, err = migrate.NewWithDatabaseInstance(sourceURL, "pgx5", driver)
	} else {
		src, serr := iofs.New(dbmigrations.Files, ".")
		if serr != nil {
			return fmt.Errorf("open embedded migrations: %w", serr)
		}
		m, err = migrate.NewWithInstance("iofs", src, "pgx5", driver)
	}
	if err != nil {
		return fmt.Errorf("initialise migrate instance: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if sourceErr != nil {
			logger.Warn("migrations source close", observability.F("error", sourceErr))
		}
		if dbErr != nil {
			logger.Warn("migrations db close", observability.F("error", dbErr))
		}
	}()

	logger.Info("running database migrations", observability.F("op", op), observability.F("source", sourceName))
	if err := fn(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			recordMigrationMetric(ctx, op, "noop")
			logger.Info("database migrations up-to-date")
			return nil
		}
		recordMigrationMetric(ctx, op, "failed")
		return fmt.Errorf("%s migrations: %w", op, err)
	}
	recordMigrationMetric(ctx, op, "applied")
	logger.Info("database migrations finished", observability.F("op", op))
	return nil
}

func resolveDir(dir string) (string, error) {
	clean := strings.TrimSpace(dir)
	if clean == "" {
		return "", fmt.Errorf("migrations path required")
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("resolve migrations path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("migrations directory: %w", err)
		}
		return "", fmt.Errorf("stat migrations directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("migrations directory: %w", errNotDirectory)
	}
	return abs, nil
}

func fileURL(path string) string {
	slashed := filepath.ToSlash(path)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

func recordMigrationMetric(ctx context.Context, op, result string) {
	migrationsCounterMu.Do(func() {
		counter, err := otel.Meter("journal.migrations").Int64Counter("dualbot_db_migrations_total",
			metric.WithDescription("Migration runs executed via golang-migrate"),
			metric.WithUnit("{run}"))
		if err == nil {
			migrationsCounter = counter
		}
	})
	if migrationsCounter == nil {
		return
	}
	migrationsCounter.Add(ctx, 1, metric.WithAttributes(
		telemetry.AttrEnvironment.String(telemetry.Environment()),
		telemetry.AttrCommandType.String(op),
		telemetry.AttrResult.String(result)))
}
