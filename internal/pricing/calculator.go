package pricing

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"

	"poolOracle/internal/dex"
	"poolOracle/internal/model"
)

// Calculator computes pool reserves from vault and order book accounts.
type Calculator struct {
	fetcher dex.AccountFetcher
}

func NewCalculator(fetcher dex.AccountFetcher) *Calculator {
	return &Calculator{fetcher: fetcher}
}

// Calculate fetches every account it needs in one call and returns the
// pool's reserves. Pools with order book permission include funds held in
// the market and exclude pnl owed to the protocol; other pools use the raw
// vault balances.
func (c *Calculator) Calculate(ctx context.Context, pool solana.PublicKey, state model.AmmPoolState, market model.MarketKeys) (model.ReserveSnapshot, error) {
	if c.fetcher == nil {
		return model.ReserveSnapshot{}, fmt.Errorf("account fetcher is nil")
	}

	orderbook := state.Status.OrderbookPermission()
	addrs := []solana.PublicKey{state.PcVault, state.CoinVault}
	if orderbook {
		addrs = append(addrs, state.OpenOrders, state.Market, market.EventQueue)
	}

	accounts, err := c.fetcher.GetMultipleAccounts(ctx, addrs)
	if err != nil {
		return model.ReserveSnapshot{}, fmt.Errorf("fetch reserves for %s: %w", pool, err)
	}
	if len(accounts) != len(addrs) {
		return model.ReserveSnapshot{}, fmt.Errorf("%w: fetched %d accounts, want %d", model.ErrNetwork, len(accounts), len(addrs))
	}

	pcVault, err := dex.DecodeTokenAmount(accounts[0])
	if err != nil {
		return model.ReserveSnapshot{}, fmt.Errorf("pc vault: %w", err)
	}
	coinVault, err := dex.DecodeTokenAmount(accounts[1])
	if err != nil {
		return model.ReserveSnapshot{}, fmt.Errorf("coin vault: %w", err)
	}

	snapshot := model.ReserveSnapshot{
		PcAmount:           pcVault,
		PcDecimals:         state.PcDecimals,
		CoinAmount:         coinVault,
		CoinDecimals:       state.CoinDecimals,
		LpAmount:           state.LpAmount,
		SwapFeeNumerator:   state.Fees.SwapFeeNumerator,
		SwapFeeDenominator: state.Fees.SwapFeeDenominator,
		OrderbookEnabled:   orderbook,
	}
	if !orderbook {
		return snapshot, nil
	}

	inPc, inCoin, err := orderbookTotals(state, accounts[2], accounts[3], accounts[4])
	if err != nil {
		return model.ReserveSnapshot{}, err
	}

	pcTotal, err := totalWithoutPnl(pcVault, inPc, state.NeedTakePnlPc)
	if err != nil {
		return model.ReserveSnapshot{}, fmt.Errorf("pc total: %w", err)
	}
	coinTotal, err := totalWithoutPnl(coinVault, inCoin, state.NeedTakePnlCoin)
	if err != nil {
		return model.ReserveSnapshot{}, fmt.Errorf("coin total: %w", err)
	}
	snapshot.PcAmount = pcTotal
	snapshot.CoinAmount = coinTotal
	return snapshot, nil
}

// orderbookTotals returns the pool funds held by the market: the open
// orders totals adjusted by maker fills that have not been consumed yet.
func orderbookTotals(state model.AmmPoolState, openOrdersData, marketData, eventQueueData []byte) (uint64, uint64, error) {
	if _, err := dex.ParseMarket(state.MarketProgram, state.Market, marketData); err != nil {
		return 0, 0, fmt.Errorf("market: %w", err)
	}

	oo, err := dex.DecodeOpenOrders(openOrdersData)
	if err != nil {
		return 0, 0, fmt.Errorf("open orders: %w", err)
	}
	if !oo.Market.Equals(state.Market) {
		return 0, 0, fmt.Errorf("%w: open orders market %s, pool market %s", model.ErrDecode, oo.Market, state.Market)
	}

	queue, err := dex.DecodeEventQueue(eventQueueData)
	if err != nil {
		return 0, 0, fmt.Errorf("event queue: %w", err)
	}

	pc, coin := oo.NativePcTotal, oo.NativeCoinTotal
	err = queue.Each(func(ev dex.Event) error {
		if !ev.IsFill() || !ev.IsMaker() || !ev.Owner.Equals(state.OpenOrders) {
			return nil
		}
		var ok bool
		if ev.IsBid() {
			pc, ok = checkedSub(pc, ev.NativeQtyPaid)
			if ok {
				coin, ok = checkedAdd(coin, ev.NativeQtyReleased)
			}
		} else {
			coin, ok = checkedSub(coin, ev.NativeQtyPaid)
			if ok {
				pc, ok = checkedAdd(pc, ev.NativeQtyReleased)
			}
		}
		if !ok {
			return fmt.Errorf("%w: fill arithmetic out of range", model.ErrDecode)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return pc, coin, nil
}

func totalWithoutPnl(vault, inMarket, pnl uint64) (uint64, error) {
	total, ok := checkedAdd(vault, inMarket)
	if !ok {
		return 0, fmt.Errorf("%w: reserve overflow", model.ErrDecode)
	}
	total, ok = checkedSub(total, pnl)
	if !ok {
		return 0, fmt.Errorf("%w: pnl %d exceeds reserve %d", model.ErrDecode, pnl, total)
	}
	return total, nil
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

func checkedSub(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}
