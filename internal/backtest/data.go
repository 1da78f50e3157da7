// Package backtest replays recorded market data through the bot against the paper venue.
package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/market"
)

// Load reads ticks from path. Files ending in .csv are parsed by ReadCSV; anything
// else is treated as a tick log written by market.Recorder.
func Load(path string) ([]schema.Tick, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		// #nosec G304 -- file path is operator provided via CLI flags.
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open csv file: %w", err)
		}
		defer func() { _ = file.Close() }()
		return ReadCSV(file)
	}
	return market.LoadTickFile(path)
}

// ReadCSV parses rows of timestamp_ms,bid,ask[,symbol] after a header row.
func ReadCSV(rd io.Reader) ([]schema.Tick, error) {
	reader := csv.NewReader(rd)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var out []schema.Tick
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("read csv record: %w", err)
		}
		tick, err := parseRecord(record)
		if err != nil {
			return out, fmt.Errorf("csv row %d: %w", row, err)
		}
		out = append(out, tick)
	}
}

func parseRecord(record []string) (schema.Tick, error) {
	if len(record) < 3 {
		return schema.Tick{}, fmt.Errorf("want at least 3 columns, got %d", len(record))
	}
	ms, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return schema.Tick{}, fmt.Errorf("parse timestamp: %w", err)
	}
	bid, err := decimal.NewFromString(record[1])
	if err != nil {
		return schema.Tick{}, fmt.Errorf("parse bid: %w", err)
	}
	ask, err := decimal.NewFromString(record[2])
	if err != nil {
		return schema.Tick{}, fmt.Errorf("parse ask: %w", err)
	}
	tick := schema.Tick{BestBid: bid, BestAsk: ask, Time: time.UnixMilli(ms)}
	if len(record) > 3 {
		tick.Symbol = schema.Symbol(strings.ToUpper(strings.TrimSpace(record[3])))
	}
	return tick, nil
}
