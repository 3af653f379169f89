package dex

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"poolOracle/internal/model"
)

// MarketResolver loads a market account and derives its key set.
type MarketResolver struct {
	fetcher AccountFetcher
}

func NewMarketResolver(fetcher AccountFetcher) *MarketResolver {
	return &MarketResolver{fetcher: fetcher}
}

// Resolve fetches the market once and returns its keys. There are no retries.
func (r *MarketResolver) Resolve(ctx context.Context, program, market solana.PublicKey) (model.MarketKeys, error) {
	if r.fetcher == nil {
		return model.MarketKeys{}, fmt.Errorf("account fetcher is nil")
	}
	data, err := r.fetcher.GetAccount(ctx, market)
	if err != nil {
		return model.MarketKeys{}, fmt.Errorf("fetch market %s: %w", market, err)
	}
	return ParseMarket(program, market, data)
}

// ParseMarket validates a raw market account owned by program and derives
// the dependent addresses.
func ParseMarket(program, market solana.PublicKey, data []byte) (model.MarketKeys, error) {
	state, err := DecodeMarketState(data)
	if err != nil {
		return model.MarketKeys{}, err
	}
	if !state.OwnAddress.Equals(market) {
		return model.MarketKeys{}, fmt.Errorf("%w: layout address %s, requested %s", model.ErrSelfAddressMismatch, state.OwnAddress, market)
	}

	signer, err := VaultSignerKey(state.VaultSignerNonce, market, program)
	if err != nil {
		return model.MarketKeys{}, err
	}

	return model.MarketKeys{
		Market:       market,
		RequestQueue: state.RequestQueue,
		EventQueue:   state.EventQueue,
		Bids:         state.Bids,
		Asks:         state.Asks,
		CoinVault:    state.CoinVault,
		PcVault:      state.PcVault,
		VaultSigner:  signer,
		CoinMint:     state.CoinMint,
		PcMint:       state.PcMint,
		CoinLotSize:  state.CoinLotSize,
		PcLotSize:    state.PcLotSize,
	}, nil
}

// VaultSignerKey derives the market vault signer from the stored nonce.
func VaultSignerKey(nonce uint64, market, program solana.PublicKey) (solana.PublicKey, error) {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], nonce)
	signer, err := solana.CreateProgramAddress([][]byte{market[:], seed[:]}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: derive vault signer: %v", model.ErrDecode, err)
	}
	return signer, nil
}
