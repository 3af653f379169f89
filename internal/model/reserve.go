package model

// ReserveSnapshot holds the total pool reserves used for pricing. Decimals are
// copied from the owning AmmPoolState.
type ReserveSnapshot struct {
	PcAmount           uint64 `json:"pc_amount"`
	PcDecimals         uint64 `json:"pc_decimals"`
	CoinAmount         uint64 `json:"coin_amount"`
	CoinDecimals       uint64 `json:"coin_decimals"`
	LpAmount           uint64 `json:"lp_amount"`
	SwapFeeNumerator   uint64 `json:"swap_fee_numerator"`
	SwapFeeDenominator uint64 `json:"swap_fee_denominator"`
	OrderbookEnabled   bool   `json:"orderbook_enabled"`
}
