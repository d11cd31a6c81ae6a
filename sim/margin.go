package sim

import (
	"github.com/rustyeddy/replaytrader/market"
	"github.com/shopspring/decimal"
)

// RequiredMargin is qty * price * multiplier * marginRate.
func RequiredMargin(in market.Instrument, qty int, price decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(qty)).
		Mul(price).
		Mul(decimal.NewFromFloat(in.Multiplier)).
		Mul(decimal.NewFromFloat(in.MarginRate))
}
