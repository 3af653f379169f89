package model

import "github.com/gagliardetto/solana-go"

// AmmStatus is the pool status word of an AMM v4 account.
type AmmStatus uint64

const (
	AmmStatusUninitialized AmmStatus = iota
	AmmStatusInitialized
	AmmStatusDisabled
	AmmStatusWithdrawOnly
	AmmStatusLiquidityOnly
	AmmStatusOrderBookOnly
	AmmStatusSwapOnly
	AmmStatusWaitingTrade
)

// OrderbookPermission reports whether the pool keeps resting orders on its market.
// Unknown status values have no order book permission.
func (s AmmStatus) OrderbookPermission() bool {
	switch s {
	case AmmStatusInitialized, AmmStatusOrderBookOnly, AmmStatusWaitingTrade:
		return true
	default:
		return false
	}
}

func (s AmmStatus) String() string {
	switch s {
	case AmmStatusUninitialized:
		return "uninitialized"
	case AmmStatusInitialized:
		return "initialized"
	case AmmStatusDisabled:
		return "disabled"
	case AmmStatusWithdrawOnly:
		return "withdraw_only"
	case AmmStatusLiquidityOnly:
		return "liquidity_only"
	case AmmStatusOrderBookOnly:
		return "orderbook_only"
	case AmmStatusSwapOnly:
		return "swap_only"
	case AmmStatusWaitingTrade:
		return "waiting_trade"
	default:
		return "unknown"
	}
}

// AmmFees holds the fee ratios stored in the pool account.
type AmmFees struct {
	MinSeparateNumerator   uint64 `json:"min_separate_numerator"`
	MinSeparateDenominator uint64 `json:"min_separate_denominator"`
	TradeFeeNumerator      uint64 `json:"trade_fee_numerator"`
	TradeFeeDenominator    uint64 `json:"trade_fee_denominator"`
	PnlNumerator           uint64 `json:"pnl_numerator"`
	PnlDenominator         uint64 `json:"pnl_denominator"`
	SwapFeeNumerator       uint64 `json:"swap_fee_numerator"`
	SwapFeeDenominator     uint64 `json:"swap_fee_denominator"`
}

// AmmPoolState is the decoded AMM v4 pool account. It is rebuilt from raw
// bytes on every update and never mutated.
type AmmPoolState struct {
	Status       AmmStatus `json:"status"`
	Nonce        uint64    `json:"nonce"`
	OrderNum     uint64    `json:"order_num"`
	Depth        uint64    `json:"depth"`
	CoinDecimals uint64    `json:"coin_decimals"`
	PcDecimals   uint64    `json:"pc_decimals"`
	State        uint64    `json:"state"`
	ResetFlag    uint64    `json:"reset_flag"`
	MinSize      uint64    `json:"min_size"`
	CoinLotSize  uint64    `json:"coin_lot_size"`
	PcLotSize    uint64    `json:"pc_lot_size"`
	Fees         AmmFees   `json:"fees"`

	NeedTakePnlCoin uint64 `json:"need_take_pnl_coin"`
	NeedTakePnlPc   uint64 `json:"need_take_pnl_pc"`
	TotalPnlPc      uint64 `json:"total_pnl_pc"`
	TotalPnlCoin    uint64 `json:"total_pnl_coin"`
	PoolOpenTime    uint64 `json:"pool_open_time"`

	CoinVault     solana.PublicKey `json:"coin_vault"`
	PcVault       solana.PublicKey `json:"pc_vault"`
	CoinMint      solana.PublicKey `json:"coin_mint"`
	PcMint        solana.PublicKey `json:"pc_mint"`
	LpMint        solana.PublicKey `json:"lp_mint"`
	OpenOrders    solana.PublicKey `json:"open_orders"`
	Market        solana.PublicKey `json:"market"`
	MarketProgram solana.PublicKey `json:"market_program"`
	TargetOrders  solana.PublicKey `json:"target_orders"`
	AmmOwner      solana.PublicKey `json:"amm_owner"`
	LpAmount      uint64           `json:"lp_amount"`
}

// AmmKeys is the key set of a pool, including the derived AMM authority.
type AmmKeys struct {
	Pool          solana.PublicKey `json:"pool"`
	CoinMint      solana.PublicKey `json:"coin_mint"`
	PcMint        solana.PublicKey `json:"pc_mint"`
	Authority     solana.PublicKey `json:"authority"`
	Target        solana.PublicKey `json:"target_orders"`
	CoinVault     solana.PublicKey `json:"coin_vault"`
	PcVault       solana.PublicKey `json:"pc_vault"`
	LpMint        solana.PublicKey `json:"lp_mint"`
	OpenOrders    solana.PublicKey `json:"open_orders"`
	MarketProgram solana.PublicKey `json:"market_program"`
	Market        solana.PublicKey `json:"market"`
	Nonce         uint8            `json:"nonce"`
}
