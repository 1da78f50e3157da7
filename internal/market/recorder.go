package market

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

type tickRecord struct {
	Symbol  string          `json:"symbol"`
	BestBid decimal.Decimal `json:"bestBid"`
	BestAsk decimal.Decimal `json:"bestAsk"`
	Mid     decimal.Decimal `json:"mid"`
	Time    time.Time       `json:"time"`
}

// Recorder appends ticks to a JSON lines file.
type Recorder struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	enc *json.Encoder
}

// OpenRecorder opens path for appending, creating it when missing.
func OpenRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tick log %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	return &Recorder{f: f, w: w, enc: json.NewEncoder(w)}, nil
}

// Record appends a tick.
func (r *Recorder) Record(tick schema.Tick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return errors.New("tick recorder closed")
	}
	rec := tickRecord{
		Symbol:  string(tick.Symbol),
		BestBid: tick.BestBid,
		BestAsk: tick.BestAsk,
		Mid:     tick.Mid,
		Time:    tick.Time,
	}
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode tick: %w", err)
	}
	return nil
}

// Flush writes buffered ticks to disk.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	return r.w.Flush()
}

// Close flushes and closes the underlying file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	flushErr := r.w.Flush()
	closeErr := r.f.Close()
	r.f, r.w, r.enc = nil, nil, nil
	return errors.Join(flushErr, closeErr)
}

// LoadTicks reads ticks previously written by a Recorder. Malformed lines abort the load.
func LoadTicks(rd io.Reader) ([]schema.Tick, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	var out []schema.Tick
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec tickRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return out, fmt.Errorf("tick log line %d: %w", line, err)
		}
		out = append(out, schema.Tick{
			Symbol:  schema.Symbol(rec.Symbol),
			BestBid: rec.BestBid,
			BestAsk: rec.BestAsk,
			Mid:     rec.Mid,
			Time:    rec.Time,
		})
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("read tick log: %w", err)
	}
	return out, nil
}

// LoadTickFile opens path and loads its ticks.
func LoadTickFile(path string) ([]schema.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tick log %s: %w", path, err)
	}
	defer f.Close()
	return LoadTicks(f)
}
