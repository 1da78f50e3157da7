// Package postgres persists the order and fill journal in PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/errs"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

const component = "journal.postgres"

const (
	orderUpsertSQL = `
INSERT INTO journal_orders (
    client_id,
    exchange_id,
    symbol,
    channel,
    side,
    price,
    size,
    filled,
    status,
    reason,
    metadata,
    updated_at
)
VALUES (
    @client_id,
    NULLIF(@exchange_id, ''),
    @symbol,
    @channel,
    @side,
    @price,
    @size,
    @filled,
    @status,
    NULLIF(@reason, ''),
    @metadata::jsonb,
    @updated_at
)
ON CONFLICT (client_id) DO UPDATE SET
    exchange_id = COALESCE(EXCLUDED.exchange_id, journal_orders.exchange_id),
    filled = GREATEST(EXCLUDED.filled, journal_orders.filled),
    status = EXCLUDED.status,
    reason = COALESCE(EXCLUDED.reason, journal_orders.reason),
    updated_at = EXCLUDED.updated_at;
`

	fillInsertSQL = `
INSERT INTO journal_fills (
    trade_id,
    order_id,
    client_id,
    symbol,
    channel,
    side,
    price,
    size,
    traded_at,
    metadata
)
VALUES (
    @trade_id,
    NULLIF(@order_id, ''),
    NULLIF(@client_id, ''),
    @symbol,
    @channel,
    @side,
    @price,
    @size,
    @traded_at,
    @metadata::jsonb
)
ON CONFLICT (trade_id) DO NOTHING;
`

	orderSelectSQL = `
SELECT client_id, COALESCE(exchange_id, ''), channel, side, price::text, size::text, filled::text, status, COALESCE(reason, ''), updated_at
FROM journal_orders
WHERE symbol = $1
ORDER BY updated_at DESC
LIMIT $2;
`

	fillSelectSQL = `
SELECT trade_id, COALESCE(order_id, ''), COALESCE(client_id, ''), channel, side, price::text, size::text, traded_at
FROM journal_fills
WHERE symbol = $1
ORDER BY traded_at ASC, trade_id ASC;
`
)

// Store implements journal.Journal on a pgx pool.
type Store struct {
	pool     *pgxpool.Pool
	symbol   schema.Symbol
	metadata []byte
}

// Option customises a Store.
type Option func(*Store) error

// WithMetadata attaches JSON metadata (run id, network) to every row.
func WithMetadata(meta map[string]any) Option {
	return func(s *Store) error {
		if len(meta) == 0 {
			return nil
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal journal metadata: %w", err)
		}
		s.metadata = raw
		return nil
	}
}

// New wraps pool. The pool is owned by the caller.
func New(pool *pgxpool.Pool, symbol schema.Symbol, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, errs.New(component, errs.CodeConfig, errs.WithMessage("pgx pool required"))
	}
	s := &Store{pool: pool, symbol: symbol, metadata: []byte("{}")}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Connect opens a pool for dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errs.New(component, errs.CodeConfig, errs.WithMessage("journal dsn required"))
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.New(component, errs.CodeUnavailable, errs.WithMessage("ping journal database"), errs.WithCause(err))
	}
	return pool, nil
}

// RecordOrder upserts the order keyed by client id.
func (s *Store) RecordOrder(ctx context.Context, order schema.Order) error {
	if order.ClientID == "" {
		return errs.New(component, errs.CodeInvalid, errs.WithMessage("order without client id"), errs.WithOrder(order.Ref()))
	}
	price, err := numeric(order.Price.String())
	if err != nil {
		return err
	}
	size, err := numeric(order.Size.String())
	if err != nil {
		return err
	}
	filled, err := numeric(order.Filled.String())
	if err != nil {
		return err
	}
	updated := order.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	args := pgx.NamedArgs{
		"client_id":   order.ClientID,
		"exchange_id": order.ExchangeID,
		"symbol":      string(s.symbol),
		"channel":     string(order.Channel),
		"side":        string(order.Side),
		"price":       price,
		"size":        size,
		"filled":      filled,
		"status":      string(order.Status),
		"reason":      order.Reason,
		"metadata":    string(s.metadata),
		"updated_at":  updated.UTC(),
	}
	if _, err := s.pool.Exec(ctx, orderUpsertSQL, args); err != nil {
		return fmt.Errorf("upsert journal order %s: %w", order.ClientID, err)
	}
	return nil
}

// RecordFill inserts the fill once per trade id.
func (s *Store) RecordFill(ctx context.Context, channel schema.ChannelID, fill schema.Fill) error {
	if fill.TradeID == "" {
		return errs.New(component, errs.CodeInvalid, errs.WithMessage("fill without trade id"), errs.WithOrder(fill.OrderID))
	}
	price, err := numeric(fill.Price.String())
	if err != nil {
		return err
	}
	size, err := numeric(fill.Size.String())
	if err != nil {
		return err
	}
	traded := fill.Time
	if traded.IsZero() {
		traded = time.Now()
	}
	args := pgx.NamedArgs{
		"trade_id":  fill.TradeID,
		"order_id":  fill.OrderID,
		"client_id": fill.ClientID,
		"symbol":    string(s.symbol),
		"channel":   string(channel),
		"side":      string(fill.Side),
		"price":     price,
		"size":      size,
		"traded_at": traded.UTC(),
		"metadata":  string(s.metadata),
	}
	if _, err := s.pool.Exec(ctx, fillInsertSQL, args); err != nil {
		return fmt.Errorf("insert journal fill %s: %w", fill.TradeID, err)
	}
	return nil
}

// RecentOrders returns up to limit orders for the store's symbol, newest first.
func (s *Store) RecentOrders(ctx context.Context, limit int) ([]schema.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, orderSelectSQL, string(s.symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("query journal orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (schema.Order, error) {
		var (
			o                    schema.Order
			channel, side, state string
			price, size, filled  string
		)
		if err := row.Scan(&o.ClientID, &o.ExchangeID, &channel, &side, &price, &size, &filled, &state, &o.Reason, &o.UpdatedAt); err != nil {
			return schema.Order{}, err
		}
		o.Channel = schema.ChannelID(channel)
		o.Side = schema.Side(side)
		o.Status = schema.OrderStatus(state)
		var err error
		if o.Price, err = parseDecimal("price", price); err != nil {
			return schema.Order{}, err
		}
		if o.Size, err = parseDecimal("size", size); err != nil {
			return schema.Order{}, err
		}
		if o.Filled, err = parseDecimal("filled", filled); err != nil {
			return schema.Order{}, err
		}
		return o, nil
	})
}

// FillEntry is a journaled fill with its channel.
type FillEntry struct {
	Channel schema.ChannelID
	Fill    schema.Fill
}

// Fills returns every fill for the store's symbol in trade order.
func (s *Store) Fills(ctx context.Context) ([]FillEntry, error) {
	rows, err := s.pool.Query(ctx, fillSelectSQL, string(s.symbol))
	if err != nil {
		return nil, fmt.Errorf("query journal fills: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (FillEntry, error) {
		var (
			e             FillEntry
			channel, side string
			price, size   string
		)
		if err := row.Scan(&e.Fill.TradeID, &e.Fill.OrderID, &e.Fill.ClientID, &channel, &side, &price, &size, &e.Fill.Time); err != nil {
			return FillEntry{}, err
		}
		e.Channel = schema.ChannelID(channel)
		e.Fill.Side = schema.Side(side)
		var err error
		if e.Fill.Price, err = parseDecimal("price", price); err != nil {
			return FillEntry{}, err
		}
		if e.Fill.Size, err = parseDecimal("size", size); err != nil {
			return FillEntry{}, err
		}
		return e, nil
	})
}

func parseDecimal(column, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("journal %s %q: %w", column, value, err)
	}
	return d, nil
}

// numeric converts a decimal string into a pgtype.Numeric value.
func numeric(value string) (pgtype.Numeric, error) {
	var out pgtype.Numeric
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, fmt.Errorf("numeric value required")
	}
	if err := out.Scan(trimmed); err != nil {
		return out, fmt.Errorf("parse numeric %q: %w", trimmed, err)
	}
	return out, nil
}
