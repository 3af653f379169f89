package model

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// PricePoint is one persisted price observation for a pool.
type PricePoint struct {
	Pool      solana.PublicKey `json:"pool"`
	Price     float64          `json:"price"`
	Timestamp time.Time        `json:"timestamp"`
}

// OptionalPrice is the result of a price lookup. Found is false when the
// store has no matching points.
type OptionalPrice struct {
	Value float64
	Found bool
}

// Found wraps a price value.
func Found(value float64) OptionalPrice {
	return OptionalPrice{Value: value, Found: true}
}

// NotFound is the empty lookup result.
func NotFound() OptionalPrice {
	return OptionalPrice{}
}
