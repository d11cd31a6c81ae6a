// Package risk sizes futures orders from a stop distance and a risk
// budget.
package risk

import (
	"errors"
	"math"

	"github.com/rustyeddy/replaytrader/market"
)

var ErrNoStopDistance = errors.New("entry and stop must differ")

type Inputs struct {
	Equity     float64
	FreeMargin float64
	RiskPct    float64 // fraction of equity, 0.01 = 1%
	Entry      float64
	Stop       float64
	TakeProfit float64 // optional
}

type Result struct {
	Lots       int     `json:"lots"`
	RiskAmount float64 `json:"risk_amount"`  // equity × RiskPct
	LossPerLot float64 `json:"loss_per_lot"` // stop loss plus the round-trip fee
	Margin     float64 `json:"margin"`       // required margin for Lots at Entry
	MarginCap  bool    `json:"margin_capped"`
	RR         float64 `json:"rr,omitempty"`
}

// Calculate returns the largest whole lot count whose loss at the stop,
// fees included, stays within the risk budget. The count is then capped
// by free margin.
func Calculate(in market.Instrument, x Inputs) (Result, error) {
	dist := math.Abs(x.Entry - x.Stop)
	if dist == 0 {
		return Result{}, ErrNoStopDistance
	}

	r := Result{
		RiskAmount: x.Equity * x.RiskPct,
		LossPerLot: dist*in.Multiplier + 2*in.Fee,
		RR:         RR(x.Entry, x.Stop, x.TakeProfit),
	}
	lots := math.Floor(r.RiskAmount / r.LossPerLot)

	perLot := x.Entry * in.Multiplier * in.MarginRate
	if perLot > 0 {
		if byMargin := math.Floor(x.FreeMargin / perLot); byMargin < lots {
			lots = byMargin
			r.MarginCap = true
		}
	}
	if lots < 0 {
		lots = 0
	}
	r.Lots = int(lots)
	r.Margin = float64(r.Lots) * perLot
	return r, nil
}

// RR is reward over risk, zero without a target or a stop distance.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 || takeProfit == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}
