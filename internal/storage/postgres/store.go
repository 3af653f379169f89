package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"poolOracle/internal/model"
	"poolOracle/internal/retry"
	"poolOracle/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Config holds connection settings.
type Config struct {
	DSN          string
	MinConns     int32
	MaxConns     int32
	ConnRetries  int
	RetryBackoff time.Duration
}

// Store provides Postgres persistence for pool prices.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore connects with bounded retries and verifies the connection.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pg dsn: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	var pool *pgxpool.Pool
	err = retry.Do(ctx, logger, "postgres_connection", cfg.ConnRetries, cfg.RetryBackoff, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", model.ErrStorage, err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the price table and index if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", model.ErrStorage, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Save inserts one price point and returns its pool.
func (s *Store) Save(ctx context.Context, point model.PricePoint) (solana.PublicKey, error) {
	if math.IsNaN(point.Price) || math.IsInf(point.Price, 0) || point.Price < 0 {
		return solana.PublicKey{}, fmt.Errorf("%w: invalid price %v", model.ErrStorage, point.Price)
	}
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		INSERT INTO pool_prices (pool_pk, price, updated_at)
		VALUES ($1, $2, $3)
		RETURNING pool_pk
	`, point.Pool.Bytes(), point.Price, point.Timestamp.UTC()).Scan(&raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: insert price: %v", model.ErrStorage, err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("%w: stored pool key has %d bytes", model.ErrStorage, len(raw))
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// Current returns the latest price for pool.
func (s *Store) Current(ctx context.Context, pool solana.PublicKey) (model.OptionalPrice, error) {
	var price float64
	row := s.pool.QueryRow(ctx, `
		SELECT price FROM pool_prices
		WHERE pool_pk = $1
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`, pool.Bytes())
	if err := row.Scan(&price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NotFound(), nil
		}
		return model.OptionalPrice{}, fmt.Errorf("%w: current price: %v", model.ErrStorage, err)
	}
	return model.Found(price), nil
}

// Average returns the mean price over [now-window, now].
func (s *Store) Average(ctx context.Context, pool solana.PublicKey, window time.Duration) (model.OptionalPrice, error) {
	now := s.now().UTC()
	var avg *float64
	row := s.pool.QueryRow(ctx, `
		SELECT AVG(price) FROM pool_prices
		WHERE pool_pk = $1 AND updated_at >= $2 AND updated_at <= $3
	`, pool.Bytes(), now.Add(-window), now)
	if err := row.Scan(&avg); err != nil {
		return model.OptionalPrice{}, fmt.Errorf("%w: average price: %v", model.ErrStorage, err)
	}
	if avg == nil {
		return model.NotFound(), nil
	}
	return model.Found(*avg), nil
}

// DeleteOlderThan removes every point stamped before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pool_prices WHERE updated_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: delete old prices: %v", model.ErrStorage, err)
	}
	return tag.RowsAffected(), nil
}

var _ storage.PriceStore = (*Store)(nil)
