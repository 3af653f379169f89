package storage

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"poolOracle/internal/model"
)

// PriceStore persists a price time series per pool.
//
// Average covers the inclusive window [now-window, now]. Lookups that match
// no rows return model.NotFound() and a nil error.
type PriceStore interface {
	Save(ctx context.Context, point model.PricePoint) (solana.PublicKey, error)
	Current(ctx context.Context, pool solana.PublicKey) (model.OptionalPrice, error)
	Average(ctx context.Context, pool solana.PublicKey, window time.Duration) (model.OptionalPrice, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
