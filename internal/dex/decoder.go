package dex

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"poolOracle/internal/model"
)

// PoolDecoder turns raw pool account bytes into pool state.
type PoolDecoder interface {
	Decode(data []byte) (model.AmmPoolState, error)
}

// AccountFetcher loads raw account data from the chain.
//
// GetMultipleAccounts preserves the order of addrs and fails the whole call
// when any account is absent.
type AccountFetcher interface {
	GetAccount(ctx context.Context, addr solana.PublicKey) ([]byte, error)
	GetMultipleAccounts(ctx context.Context, addrs []solana.PublicKey) ([][]byte, error)
}
