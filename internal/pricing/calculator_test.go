package pricing

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"poolOracle/internal/dex"
	"poolOracle/internal/dex/dextest"
	"poolOracle/internal/model"
)

type fixture struct {
	accounts *dextest.Accounts
	state    model.AmmPoolState
	market   model.MarketKeys
	pool     solana.PublicKey
}

func newFixture(t *testing.T, status model.AmmStatus) fixture {
	t.Helper()

	marketAddr := dextest.Key(7)
	market := dextest.Market{
		OwnAddress:       marketAddr,
		VaultSignerNonce: dextest.VaultSignerNonce(marketAddr, dextest.MarketProgram),
		EventQueue:       dextest.Key(14),
	}

	pool := dextest.AmmInfo{
		Status:          uint64(status),
		CoinDecimals:    9,
		PcDecimals:      6,
		NeedTakePnlCoin: 100,
		NeedTakePnlPc:   50,
		CoinVault:       dextest.Key(1),
		PcVault:         dextest.Key(2),
		OpenOrders:      dextest.Key(6),
		Market:          marketAddr,
		MarketProgram:   dextest.MarketProgram,
		LpAmount:        77,
	}
	state, err := dex.DecodeAmmInfo(pool.Bytes())
	require.NoError(t, err)

	accounts := dextest.NewAccounts()
	accounts.Set(pool.CoinVault, dextest.TokenAccount(dextest.Key(3), dextest.Key(30), 10_000))
	accounts.Set(pool.PcVault, dextest.TokenAccount(dextest.Key(4), dextest.Key(30), 20_000))
	accounts.Set(marketAddr, market.Bytes())
	accounts.Set(pool.OpenOrders, dextest.OpenOrders{
		Market:          marketAddr,
		NativeCoinTotal: 1_000,
		NativePcTotal:   2_000,
	}.Bytes())
	accounts.Set(market.EventQueue, dextest.EventQueue{Capacity: 8}.Bytes())

	keys, err := dex.ParseMarket(dextest.MarketProgram, marketAddr, market.Bytes())
	require.NoError(t, err)

	return fixture{accounts: accounts, state: state, market: keys, pool: dextest.Key(42)}
}

func TestCalculateWithoutOrderbook(t *testing.T) {
	f := newFixture(t, model.AmmStatusSwapOnly)

	snapshot, err := NewCalculator(f.accounts).Calculate(context.Background(), f.pool, f.state, f.market)
	require.NoError(t, err)
	require.False(t, snapshot.OrderbookEnabled)
	require.Equal(t, uint64(20_000), snapshot.PcAmount)
	require.Equal(t, uint64(10_000), snapshot.CoinAmount)
	require.Equal(t, uint64(6), snapshot.PcDecimals)
	require.Equal(t, uint64(9), snapshot.CoinDecimals)
	require.Equal(t, uint64(77), snapshot.LpAmount)
	require.Equal(t, 1, f.accounts.Calls())
}

func TestCalculateWithOrderbook(t *testing.T) {
	f := newFixture(t, model.AmmStatusInitialized)

	snapshot, err := NewCalculator(f.accounts).Calculate(context.Background(), f.pool, f.state, f.market)
	require.NoError(t, err)
	require.True(t, snapshot.OrderbookEnabled)
	// vault + open orders total - need take pnl
	require.Equal(t, uint64(20_000+2_000-50), snapshot.PcAmount)
	require.Equal(t, uint64(10_000+1_000-100), snapshot.CoinAmount)
	require.Equal(t, 1, f.accounts.Calls())
}

func TestCalculateAppliesMakerFills(t *testing.T) {
	f := newFixture(t, model.AmmStatusOrderBookOnly)
	other := dextest.Key(99)
	f.accounts.Set(f.market.EventQueue, dextest.EventQueue{
		Head:     6,
		Capacity: 8,
		Events: []dextest.Event{
			// bid maker fill: pc paid, coin released
			{Flags: dex.EventFill | dex.EventBid | dex.EventMaker, Owner: f.state.OpenOrders, Paid: 300, Released: 30},
			// ask maker fill: coin paid, pc released
			{Flags: dex.EventFill | dex.EventMaker, Owner: f.state.OpenOrders, Paid: 40, Released: 400},
			// taker fill and foreign owner are ignored
			{Flags: dex.EventFill | dex.EventBid, Owner: f.state.OpenOrders, Paid: 1, Released: 1},
			{Flags: dex.EventFill | dex.EventMaker, Owner: other, Paid: 5, Released: 5},
			{Flags: dex.EventOut, Owner: f.state.OpenOrders, Released: 9},
		},
	}.Bytes())

	snapshot, err := NewCalculator(f.accounts).Calculate(context.Background(), f.pool, f.state, f.market)
	require.NoError(t, err)
	require.Equal(t, uint64(20_000+2_000-300+400-50), snapshot.PcAmount)
	require.Equal(t, uint64(10_000+1_000+30-40-100), snapshot.CoinAmount)
}

func TestCalculateFillUnderflow(t *testing.T) {
	f := newFixture(t, model.AmmStatusWaitingTrade)
	f.accounts.Set(f.market.EventQueue, dextest.EventQueue{
		Capacity: 4,
		Events: []dextest.Event{
			{Flags: dex.EventFill | dex.EventBid | dex.EventMaker, Owner: f.state.OpenOrders, Paid: 1_000_000},
		},
	}.Bytes())

	_, err := NewCalculator(f.accounts).Calculate(context.Background(), f.pool, f.state, f.market)
	require.ErrorIs(t, err, model.ErrDecode)
}

func TestCalculatePnlExceedsReserve(t *testing.T) {
	f := newFixture(t, model.AmmStatusInitialized)
	f.state.NeedTakePnlPc = 1_000_000

	_, err := NewCalculator(f.accounts).Calculate(context.Background(), f.pool, f.state, f.market)
	require.ErrorIs(t, err, model.ErrDecode)
}

func TestCalculateOpenOrdersForeignMarket(t *testing.T) {
	f := newFixture(t, model.AmmStatusInitialized)
	f.accounts.Set(f.state.OpenOrders, dextest.OpenOrders{Market: dextest.Key(8)}.Bytes())

	_, err := NewCalculator(f.accounts).Calculate(context.Background(), f.pool, f.state, f.market)
	require.ErrorIs(t, err, model.ErrDecode)
}

func TestCalculateMissingVault(t *testing.T) {
	f := newFixture(t, model.AmmStatusSwapOnly)
	f.accounts.Delete(f.state.PcVault)

	_, err := NewCalculator(f.accounts).Calculate(context.Background(), f.pool, f.state, f.market)
	require.ErrorIs(t, err, model.ErrAccountNotFound)
}
