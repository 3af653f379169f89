// Package notify fans saved prices out to downstream consumers.
package notify

import (
	"context"
	"errors"

	"poolOracle/internal/model"
)

// Publisher receives every price point after it has been persisted.
type Publisher interface {
	Publish(ctx context.Context, point model.PricePoint) error
}

// Nop discards every point.
type Nop struct{}

func (Nop) Publish(context.Context, model.PricePoint) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, point model.PricePoint) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, point); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
