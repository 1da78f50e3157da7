// Command backtest replays recorded ticks through the bot against the paper venue.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/namn-grg/dual-channel-bot/internal/app"
	"github.com/namn-grg/dual-channel-bot/internal/backtest"
	"github.com/namn-grg/dual-channel-bot/internal/config"
	"github.com/namn-grg/dual-channel-bot/internal/engine"
	"github.com/namn-grg/dual-channel-bot/internal/exchange"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
)

const defaultPace = 5 * time.Millisecond

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if _, err := run(ctx, os.Args[1:], os.Stdout, os.LookupEnv); err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, lookup func(string) (string, bool)) (backtest.Summary, error) {
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	fs.SetOutput(out)
	dataPath := fs.String("data", "", "Tick data: a .csv of timestamp_ms,bid,ask[,symbol] or a recorded JSONL tick log")
	configPath := fs.String("config", "", "Bot configuration file")
	pace := fs.Duration("pace", defaultPace, "Wall-clock gap between replayed ticks")
	symbol := fs.String("symbol", "", "Traded symbol")
	size := fs.String("size", "", "Quote size per channel")
	logLevel := fs.String("log-level", "warn", "Log level")
	if err := fs.Parse(args); err != nil {
		return backtest.Summary{}, err
	}
	if *dataPath == "" {
		return backtest.Summary{}, errors.New("-data is required")
	}

	ticks, err := backtest.Load(*dataPath)
	if err != nil {
		return backtest.Summary{}, fmt.Errorf("load ticks: %w", err)
	}
	if len(ticks) == 0 {
		return backtest.Summary{}, errors.New("no ticks to replay")
	}

	cfg, err := config.Resolve(ctx, config.Flags{ConfigPath: *configPath, Symbol: *symbol, Size: *size}, lookup)
	if err != nil {
		return backtest.Summary{}, err
	}
	cfg.Journal.DSN = ""
	cfg.Market.RecordPath = ""
	cfg.Telemetry.EnableMetrics = false

	logger := observability.NewLogrus(observability.LogrusOptions{Level: *logLevel, Output: out})

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var replay *backtest.Replay
	var analytics *backtest.Analytics
	bot, err := app.Assemble(runCtx, cfg, logger,
		app.WithExternalMarket(),
		app.WithStream(func(b *app.Bot) exchange.Stream {
			replay = backtest.NewReplay(backtest.ReplayOptions{
				Ticks:  ticks,
				Venue:  b.Venue,
				Pace:   *pace,
				OnDone: stop,
			})
			return replay
		}),
		app.WithRecorder(func(b *app.Bot) engine.TickRecorder {
			analytics = backtest.NewAnalytics(b.Tracker)
			return analytics
		}),
	)
	if err != nil {
		return backtest.Summary{}, err
	}

	started := time.Now()
	runErr := bot.Engine.Run(runCtx)
	closeErr := bot.Close(context.Background())
	if err := errors.Join(runErr, closeErr); err != nil {
		return backtest.Summary{}, err
	}

	summary := analytics.Summary()
	printSummary(out, summary, replay.Replayed(), len(ticks), time.Since(started))
	return summary, nil
}

func printSummary(out io.Writer, s backtest.Summary, replayed, total int, elapsed time.Duration) {
	_, _ = fmt.Fprintf(out, "replayed %d/%d ticks in %s (%d accepted)\n", replayed, total, elapsed.Round(time.Millisecond), s.Ticks)
	_, _ = fmt.Fprintf(out, "fills:          %d\n", s.Fills)
	_, _ = fmt.Fprintf(out, "net size:       %s @ %s\n", s.NetSize, s.AvgEntryPrice.StringFixed(4))
	_, _ = fmt.Fprintf(out, "max |net|:      %s\n", s.MaxAbsNet)
	_, _ = fmt.Fprintf(out, "realized pnl:   %s\n", s.RealizedPnL.StringFixed(4))
	_, _ = fmt.Fprintf(out, "unrealized pnl: %s (mid %s)\n", s.UnrealizedPnL.StringFixed(4), s.LastMid)
	_, _ = fmt.Fprintf(out, "max drawdown:   %s\n", s.MaxDrawdown.StringFixed(4))
}
