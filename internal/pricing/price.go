package pricing

import (
	"fmt"
	"math"

	"poolOracle/internal/model"
)

// Price returns the pc price of one whole coin unit:
// (pc / 10^pcDecimals) / coin * 10^coinDecimals.
func Price(s model.ReserveSnapshot) (float64, error) {
	if s.CoinAmount == 0 {
		return 0, fmt.Errorf("%w: coin reserve is zero", model.ErrZeroReserve)
	}
	pc := float64(s.PcAmount) / pow10(s.PcDecimals)
	price := pc / float64(s.CoinAmount) * pow10(s.CoinDecimals)
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: price is not finite", model.ErrZeroReserve)
	}
	return price, nil
}

func pow10(decimals uint64) float64 {
	if decimals > 400 {
		return math.Inf(1)
	}
	return math.Pow10(int(decimals))
}
