package query

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"poolOracle/internal/storage"
)

// DefaultAverageWindow is used when no window is configured.
const DefaultAverageWindow = 5 * time.Minute

// Service answers price queries from the store.
type Service struct {
	store  storage.PriceStore
	pools  []solana.PublicKey
	window time.Duration
}

// NewService builds a query service over store. pools is the configured
// pool list, returned as is by SupportedPools.
func NewService(store storage.PriceStore, pools []solana.PublicKey, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultAverageWindow
	}
	return &Service{store: store, pools: pools, window: window}
}

// Window returns the averaging window.
func (s *Service) Window() time.Duration {
	return s.window
}

func (s *Service) Current(ctx context.Context, pool solana.PublicKey) Response {
	addr := pool.String()
	price, err := s.store.Current(ctx, pool)
	if err != nil {
		return Error{Pool: addr, Message: err.Error()}
	}
	if !price.Found {
		return NoData{Pool: addr}
	}
	return CurrentPrice{Pool: addr, Value: price.Value}
}

// Average returns the mean price over window. A zero or negative window
// uses the configured one.
func (s *Service) Average(ctx context.Context, pool solana.PublicKey, window time.Duration) Response {
	if window <= 0 {
		window = s.window
	}
	addr := pool.String()
	price, err := s.store.Average(ctx, pool, window)
	if err != nil {
		return Error{Pool: addr, Message: err.Error()}
	}
	if !price.Found {
		return NoData{Pool: addr}
	}
	return AveragePrice{Pool: addr, Value: price.Value, Window: window}
}

// SupportedPools lists the configured pools in configuration order.
func (s *Service) SupportedPools() []string {
	out := make([]string, 0, len(s.pools))
	for _, pool := range s.pools {
		out = append(out, pool.String())
	}
	return out
}
