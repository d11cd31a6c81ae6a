package sim

import (
	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/market"
	"github.com/shopspring/decimal"
)

// Position is the net holding in one instrument. Flat positions do not
// exist; the ledger removes them.
type Position struct {
	Instrument string           `json:"instrument"`
	Direction  broker.Direction `json:"direction"`
	Qty        int              `json:"qty"`
	AvgPrice   decimal.Decimal  `json:"avg_price"`
}

// FloatingPnL is (mark - avg) * qty * direction * multiplier.
func (p Position) FloatingPnL(mark decimal.Decimal, in market.Instrument) decimal.Decimal {
	return mark.Sub(p.AvgPrice).
		Mul(decimal.NewFromInt(int64(p.Qty))).
		Mul(decimal.NewFromInt(int64(p.Direction))).
		Mul(decimal.NewFromFloat(in.Multiplier))
}

// Margin is the margin held against the position, priced at mark.
func (p Position) Margin(mark decimal.Decimal, in market.Instrument) decimal.Decimal {
	return RequiredMargin(in, p.Qty, mark)
}

// Holding is a position valued at the current mark.
type Holding struct {
	Position
	Mark        decimal.Decimal `json:"mark"`
	FloatingPnL decimal.Decimal `json:"floating_pnl"`
	Margin      decimal.Decimal `json:"margin"`
}
