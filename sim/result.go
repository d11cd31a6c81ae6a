package sim

import "github.com/shopspring/decimal"

// Result summarises a settled session.
type Result struct {
	Initial     decimal.Decimal `json:"initial"`
	FinalEquity decimal.Decimal `json:"final_equity"`
	NetPnL      decimal.Decimal `json:"net_pnl"`
	ReturnPct   float64         `json:"return_pct"`
	Trades      int             `json:"trades"`
	Wins        int             `json:"wins"`
	WinRate     float64         `json:"win_rate"`
}

// Result reports performance at the current marks. After Settle the
// equity is pure cash.
func (e *Engine) Result() Result {
	a := e.Account()
	r := Result{
		Initial:     a.Initial,
		FinalEquity: a.Equity,
		NetPnL:      a.Equity.Sub(a.Initial),
		Trades:      a.TradeCount,
		Wins:        a.WinCount,
		WinRate:     a.WinRate() * 100,
	}
	if a.Initial.IsPositive() {
		r.ReturnPct = r.NetPnL.Div(a.Initial).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return r
}
