package dex

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"poolOracle/internal/model"
)

// AmmInfoSize is the byte length of an AMM v4 pool account.
const AmmInfoSize = 752

var ammAuthoritySeed = []byte("amm authority")

// AmmV4Decoder decodes AMM v4 pool accounts.
type AmmV4Decoder struct{}

func (AmmV4Decoder) Decode(data []byte) (model.AmmPoolState, error) {
	return DecodeAmmInfo(data)
}

// DecodeAmmInfo decodes an AMM v4 pool account field by field. The buffer
// must be exactly AmmInfoSize bytes long.
func DecodeAmmInfo(data []byte) (model.AmmPoolState, error) {
	if len(data) != AmmInfoSize {
		return model.AmmPoolState{}, fmt.Errorf("%w: amm info length %d, want %d", model.ErrDecode, len(data), AmmInfoSize)
	}

	c := newCursor(data)
	var s model.AmmPoolState

	s.Status = model.AmmStatus(c.u64())
	s.Nonce = c.u64()
	s.OrderNum = c.u64()
	s.Depth = c.u64()
	s.CoinDecimals = c.u64()
	s.PcDecimals = c.u64()
	s.State = c.u64()
	s.ResetFlag = c.u64()
	s.MinSize = c.u64()
	c.skip(16) // vol_max_cut_ratio, amount_wave
	s.CoinLotSize = c.u64()
	s.PcLotSize = c.u64()
	c.skip(24) // min/max price multiplier, sys_decimal_value

	s.Fees = model.AmmFees{
		MinSeparateNumerator:   c.u64(),
		MinSeparateDenominator: c.u64(),
		TradeFeeNumerator:      c.u64(),
		TradeFeeDenominator:    c.u64(),
		PnlNumerator:           c.u64(),
		PnlDenominator:         c.u64(),
		SwapFeeNumerator:       c.u64(),
		SwapFeeDenominator:     c.u64(),
	}

	s.NeedTakePnlCoin = c.u64()
	s.NeedTakePnlPc = c.u64()
	s.TotalPnlPc = c.u64()
	s.TotalPnlCoin = c.u64()
	s.PoolOpenTime = c.u64()
	c.skip(24) // padding, orderbook_to_init_time
	c.skip(80) // swap volume accumulators

	s.CoinVault = c.pubkey()
	s.PcVault = c.pubkey()
	s.CoinMint = c.pubkey()
	s.PcMint = c.pubkey()
	s.LpMint = c.pubkey()
	s.OpenOrders = c.pubkey()
	s.Market = c.pubkey()
	s.MarketProgram = c.pubkey()
	s.TargetOrders = c.pubkey()
	c.skip(64)
	s.AmmOwner = c.pubkey()
	s.LpAmount = c.u64()
	c.skip(24) // client_order_id, recent_epoch, padding

	if err := c.finish("amm info"); err != nil {
		return model.AmmPoolState{}, err
	}
	return s, nil
}

// AmmAuthority derives the pool authority for the given nonce.
func AmmAuthority(program solana.PublicKey, nonce uint8) (solana.PublicKey, error) {
	authority, err := solana.CreateProgramAddress([][]byte{ammAuthoritySeed, {nonce}}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: derive amm authority: %v", model.ErrDecode, err)
	}
	return authority, nil
}

// LoadAmmKeys collects the pool key set from decoded state.
func LoadAmmKeys(program, pool solana.PublicKey, s model.AmmPoolState) (model.AmmKeys, error) {
	nonce := uint8(s.Nonce)
	authority, err := AmmAuthority(program, nonce)
	if err != nil {
		return model.AmmKeys{}, err
	}
	return model.AmmKeys{
		Pool:          pool,
		CoinMint:      s.CoinMint,
		PcMint:        s.PcMint,
		Authority:     authority,
		Target:        s.TargetOrders,
		CoinVault:     s.CoinVault,
		PcVault:       s.PcVault,
		LpMint:        s.LpMint,
		OpenOrders:    s.OpenOrders,
		MarketProgram: s.MarketProgram,
		Market:        s.Market,
		Nonce:         nonce,
	}, nil
}
