// Command dualbot runs the dual-channel market maker against the configured venue.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/namn-grg/dual-channel-bot/internal/app"
	"github.com/namn-grg/dual-channel-bot/internal/config"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
	httpserver "github.com/namn-grg/dual-channel-bot/internal/server/http"
)

const telemetryShutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags("dualbot", os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	ctx, cancel := newSignalContext()
	defer cancel()

	cfg, err := config.Resolve(ctx, flags, os.LookupEnv)
	if err != nil {
		return err
	}

	logger := observability.NewLogrus(observability.LogrusOptions{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Fields: []observability.Field{
			observability.F("symbol", cfg.Symbol),
			observability.F("network", string(cfg.Network)),
		},
	})
	observability.SetLogger(logger)

	if cfg.Network == config.NetworkMainnet {
		logger.Warn("mainnet selected; orders are routed to the paper venue")
	}

	bot, err := app.Assemble(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var lifecycle conc.WaitGroup
	var statusServer *http.Server
	if cfg.Server.Addr != "" {
		meta := httpserver.Meta{Symbol: cfg.Symbol, Network: string(cfg.Network), Policy: cfg.Policy.Kind}
		statusServer = httpserver.NewServer(cfg.Server.Addr, httpserver.NewHandler(meta, bot.Engine, bot.Tracker))
		startStatusServer(&lifecycle, logger, statusServer)
		logger.Info("status server listening", observability.F("addr", cfg.Server.Addr))
	}

	logger.Info("dualbot started; awaiting shutdown signal")
	runErr := bot.Engine.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("engine stopped", observability.F("error", runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownTimeout.Std()+telemetryShutdownTimeout)
	defer shutdownCancel()
	if statusServer != nil {
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown", observability.F("error", err))
		}
		lifecycle.Wait()
	}
	if err := bot.Close(shutdownCtx); err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func startStatusServer(lifecycle *conc.WaitGroup, logger observability.Logger, server *http.Server) {
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server", observability.F("error", err))
		}
	})
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
