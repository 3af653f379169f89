package query

import (
	"fmt"
	"strconv"
	"time"
)

// Response is the result of a price query. It is one of CurrentPrice,
// AveragePrice, NoData or Error.
type Response interface {
	fmt.Stringer
	PoolAddress() string
	isResponse()
}

type CurrentPrice struct {
	Pool  string
	Value float64
}

type AveragePrice struct {
	Pool   string
	Value  float64
	Window time.Duration
}

type NoData struct {
	Pool string
}

type Error struct {
	Pool    string
	Message string
}

func (r CurrentPrice) String() string {
	return fmt.Sprintf("Current price: %s. Pool address: %s", formatPrice(r.Value), r.Pool)
}

func (r AveragePrice) String() string {
	return fmt.Sprintf("Average price for last %d minutes: %s. Pool address: %s", Minutes(r.Window), formatPrice(r.Value), r.Pool)
}

func (r NoData) String() string {
	return fmt.Sprintf("No data found. Pool address: %s", r.Pool)
}

func (r Error) String() string {
	return fmt.Sprintf("Error: %s. Pool address: %s", r.Message, r.Pool)
}

func (r CurrentPrice) PoolAddress() string { return r.Pool }
func (r AveragePrice) PoolAddress() string { return r.Pool }
func (r NoData) PoolAddress() string       { return r.Pool }
func (r Error) PoolAddress() string        { return r.Pool }

func (CurrentPrice) isResponse() {}
func (AveragePrice) isResponse() {}
func (NoData) isResponse()       {}
func (Error) isResponse()        {}

// Minutes rounds d to whole minutes, halves rounding up.
func Minutes(d time.Duration) int64 {
	secs := int64(d / time.Second)
	return (secs + 30) / 60
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
