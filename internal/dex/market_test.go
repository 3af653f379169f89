package dex_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"poolOracle/internal/dex"
	"poolOracle/internal/dex/dextest"
	"poolOracle/internal/model"
)

func sampleMarket(addr solana.PublicKey) dextest.Market {
	return dextest.Market{
		OwnAddress:       addr,
		VaultSignerNonce: dextest.VaultSignerNonce(addr, dextest.MarketProgram),
		CoinMint:         dextest.Key(3),
		PcMint:           dextest.Key(4),
		CoinVault:        dextest.Key(11),
		PcVault:          dextest.Key(12),
		RequestQueue:     dextest.Key(13),
		EventQueue:       dextest.Key(14),
		Bids:             dextest.Key(15),
		Asks:             dextest.Key(16),
		CoinLotSize:      1000,
		PcLotSize:        10,
	}
}

func TestParseMarketV1(t *testing.T) {
	addr := dextest.Key(7)
	market := sampleMarket(addr)

	keys, err := dex.ParseMarket(dextest.MarketProgram, addr, market.Bytes())
	require.NoError(t, err)

	signer, err := dex.VaultSignerKey(market.VaultSignerNonce, addr, dextest.MarketProgram)
	require.NoError(t, err)

	require.Equal(t, addr, keys.Market)
	require.Equal(t, signer, keys.VaultSigner)
	require.Equal(t, market.EventQueue, keys.EventQueue)
	require.Equal(t, market.RequestQueue, keys.RequestQueue)
	require.Equal(t, market.Bids, keys.Bids)
	require.Equal(t, market.Asks, keys.Asks)
	require.Equal(t, market.CoinVault, keys.CoinVault)
	require.Equal(t, market.PcVault, keys.PcVault)
	require.Equal(t, uint64(1000), keys.CoinLotSize)
	require.Equal(t, uint64(10), keys.PcLotSize)
}

func TestParseMarketPermissioned(t *testing.T) {
	addr := dextest.Key(7)
	market := sampleMarket(addr)
	market.Flags = dex.FlagInitialized | dex.FlagMarket | dex.FlagPermissioned

	data := market.Bytes()
	require.Len(t, data, dex.MarketStateV2Size+12)

	state, err := dex.DecodeMarketState(data)
	require.NoError(t, err)
	require.True(t, state.Permissioned)

	// A permissioned flag on a V1-sized payload is too short.
	short := dextest.Pad(market.Inner()[:dex.MarketStateV1Size])
	_, err = dex.DecodeMarketState(short)
	require.ErrorIs(t, err, model.ErrDecode)
}

func TestParseMarketDisabledAllowed(t *testing.T) {
	addr := dextest.Key(7)
	market := sampleMarket(addr)
	market.Flags = dex.FlagInitialized | dex.FlagMarket | dex.FlagDisabled

	_, err := dex.ParseMarket(dextest.MarketProgram, addr, market.Bytes())
	require.NoError(t, err)
}

func TestParseMarketPadding(t *testing.T) {
	addr := dextest.Key(7)
	valid := sampleMarket(addr).Bytes()

	noHead := append([]byte("xxxxx"), valid[5:]...)
	noTail := append(append([]byte(nil), valid[:len(valid)-7]...), "xxxxxxx"...)

	cases := map[string][]byte{
		"missing head": noHead,
		"missing tail": noTail,
		"too short":    []byte("serum"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := dex.ParseMarket(dextest.MarketProgram, addr, data)
			if !errors.Is(err, model.ErrPaddingMismatch) {
				t.Fatalf("expected ErrPaddingMismatch, got %v", err)
			}
		})
	}
}

func TestParseMarketSelfAddressMismatch(t *testing.T) {
	market := sampleMarket(dextest.Key(7))

	_, err := dex.ParseMarket(dextest.MarketProgram, dextest.Key(8), market.Bytes())
	require.ErrorIs(t, err, model.ErrSelfAddressMismatch)
}

func TestParseMarketFlagMismatch(t *testing.T) {
	addr := dextest.Key(7)
	cases := map[string]uint64{
		"open orders":  dex.FlagInitialized | dex.FlagOpenOrders,
		"unknown bits": dex.FlagInitialized | dex.FlagMarket | 1<<20,
		"closed":       dex.FlagInitialized | dex.FlagMarket | dex.FlagClosed,
		"missing init": dex.FlagMarket,
	}
	for name, flags := range cases {
		t.Run(name, func(t *testing.T) {
			market := sampleMarket(addr)
			market.Flags = flags
			_, err := dex.ParseMarket(dextest.MarketProgram, addr, market.Bytes())
			if !errors.Is(err, model.ErrFlagMismatch) {
				t.Fatalf("expected ErrFlagMismatch, got %v", err)
			}
		})
	}
}

func TestMarketResolver(t *testing.T) {
	addr := dextest.Key(7)
	accounts := dextest.NewAccounts()
	accounts.Set(addr, sampleMarket(addr).Bytes())

	resolver := dex.NewMarketResolver(accounts)
	keys, err := resolver.Resolve(context.Background(), dextest.MarketProgram, addr)
	require.NoError(t, err)
	require.Equal(t, dextest.Key(14), keys.EventQueue)
	require.Equal(t, 1, accounts.Calls())

	_, err = resolver.Resolve(context.Background(), dextest.MarketProgram, dextest.Key(99))
	require.ErrorIs(t, err, model.ErrAccountNotFound)
}

func TestDecodeOpenOrders(t *testing.T) {
	data := dextest.OpenOrders{
		Market:          dextest.Key(7),
		Owner:           dextest.Key(20),
		NativeCoinTotal: 500,
		NativePcTotal:   700,
	}.Bytes()

	oo, err := dex.DecodeOpenOrders(data)
	require.NoError(t, err)
	require.Equal(t, uint64(500), oo.NativeCoinTotal)
	require.Equal(t, uint64(700), oo.NativePcTotal)
	require.Equal(t, dextest.Key(20), oo.Owner)

	closed := dextest.OpenOrders{Flags: dex.FlagInitialized | dex.FlagOpenOrders | dex.FlagClosed}.Bytes()
	_, err = dex.DecodeOpenOrders(closed)
	require.ErrorIs(t, err, model.ErrFlagMismatch)
}

func TestEventQueueEachWrapsRing(t *testing.T) {
	owner := dextest.Key(6)
	queue := dextest.EventQueue{
		Head:     3,
		Capacity: 4,
		Events: []dextest.Event{
			{Flags: dex.EventFill | dex.EventMaker, Owner: owner, Released: 1, Paid: 10},
			{Flags: dex.EventFill | dex.EventBid | dex.EventMaker, Owner: owner, Released: 2, Paid: 20},
			{Flags: dex.EventOut, Owner: owner, Released: 3},
		},
	}

	q, err := dex.DecodeEventQueue(queue.Bytes())
	require.NoError(t, err)
	require.Equal(t, uint64(3), q.Count)

	var released []uint64
	err = q.Each(func(ev dex.Event) error {
		released = append(released, ev.NativeQtyReleased)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, released)

	stop := errors.New("stop")
	calls := 0
	err = q.Each(func(dex.Event) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, calls)
}

func TestEventFlags(t *testing.T) {
	ev := dex.Event{Flags: dex.EventFill | dex.EventBid}
	if !ev.IsFill() || !ev.IsBid() || ev.IsMaker() {
		t.Fatalf("flag helpers mismatch for %#x", ev.Flags)
	}
}

func TestDecodeTokenAmount(t *testing.T) {
	amount, err := dex.DecodeTokenAmount(dextest.TokenAccount(dextest.Key(3), dextest.Key(1), 987))
	require.NoError(t, err)
	require.Equal(t, uint64(987), amount)

	_, err = dex.DecodeTokenAmount(make([]byte, 100))
	require.ErrorIs(t, err, model.ErrDecode)

	uninit := dextest.TokenAccount(dextest.Key(3), dextest.Key(1), 1)
	uninit[108] = 0
	_, err = dex.DecodeTokenAmount(uninit)
	require.ErrorIs(t, err, model.ErrDecode)
}
