package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"poolOracle/internal/model"
	"poolOracle/internal/storage"
)

// Store keeps price points in memory. It is used by tests and by the CLI
// when no database is configured.
type Store struct {
	mu     sync.RWMutex
	points map[solana.PublicKey][]model.PricePoint
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{
		points: make(map[solana.PublicKey][]model.PricePoint),
		now:    time.Now,
	}
}

// SetClock replaces the clock used for window bounds.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Save(_ context.Context, point model.PricePoint) (solana.PublicKey, error) {
	if math.IsNaN(point.Price) || math.IsInf(point.Price, 0) || point.Price < 0 {
		return solana.PublicKey{}, fmt.Errorf("%w: invalid price %v", model.ErrStorage, point.Price)
	}
	s.mu.Lock()
	s.points[point.Pool] = append(s.points[point.Pool], point)
	s.mu.Unlock()
	return point.Pool, nil
}

// Current returns the point with the latest timestamp. Ties go to the point
// saved last.
func (s *Store) Current(_ context.Context, pool solana.PublicKey) (model.OptionalPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.points[pool]
	if len(points) == 0 {
		return model.NotFound(), nil
	}
	latest := points[0]
	for _, p := range points[1:] {
		if !p.Timestamp.Before(latest.Timestamp) {
			latest = p
		}
	}
	return model.Found(latest.Price), nil
}

func (s *Store) Average(_ context.Context, pool solana.PublicKey, window time.Duration) (model.OptionalPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	from := now.Add(-window)
	var sum float64
	var count int
	for _, p := range s.points[pool] {
		if p.Timestamp.Before(from) || p.Timestamp.After(now) {
			continue
		}
		sum += p.Price
		count++
	}
	if count == 0 {
		return model.NotFound(), nil
	}
	return model.Found(sum / float64(count)), nil
}

func (s *Store) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for pool, points := range s.points {
		kept := points[:0]
		for _, p := range points {
			if p.Timestamp.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == 0 {
			delete(s.points, pool)
			continue
		}
		s.points[pool] = kept
	}
	return deleted, nil
}

var _ storage.PriceStore = (*Store)(nil)
