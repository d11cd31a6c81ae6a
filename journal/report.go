package journal

import (
	"io"
	"text/template"
	"time"
)

var reportFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"pnl": func(p *float64) string {
		if p == nil {
			return ""
		}
		return f(*p)
	},
}

type report struct {
	SessionRun
	Fills []TradeRecord
}

// WriteOrg renders an org-mode report of a settled session and its trades.
func (s SessionRun) WriteOrg(w io.Writer, trades []TradeRecord) error {
	t, err := template.New("session").Funcs(reportFuncs).Parse(SessionOrgTemplate)
	if err != nil {
		return err
	}
	return t.Execute(w, report{SessionRun: s, Fills: trades})
}

const SessionOrgTemplate = `* REPLAY: {{.Instrument}} {{.Timeframe}}
:PROPERTIES:
:SESSION_ID:  {{.SessionID}}
:INSTRUMENT:  {{.Instrument}}
:TIMEFRAME:   {{.Timeframe}}
:SEED:        {{.Seed}}
:START_DATE:  {{.Start.Format "2006-01-02 15:04"}}
:END_DATE:    {{.End.Format "2006-01-02 15:04"}}
:BARS:        {{.Bars}}
:START_BAL:   {{printf "%.2f" .InitialBalance}}
:END_EQUITY:  {{printf "%.2f" .FinalEquity}}
:NET_PL:      {{printf "%.2f" .NetPnL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Net P/L:   *{{printf "%.2f" .NetPnL}}*
- Return:    *{{printf "%.2f" .ReturnPct}}%*
- Win Rate:  *{{printf "%.2f" (mul100 .WinRate)}}%*

** Fills
| Time | Instrument | Type | Dir | Qty | Price | Fee | PnL | Reason |
|------+------------+------+-----+-----+-------+-----+-----+--------|
{{- range .Fills }}
| {{.Time.Format "2006-01-02 15:04"}} | {{.Instrument}} | {{.Type}} | {{.Direction}} | {{.Qty}} | {{printf "%.2f" .Price}} | {{printf "%.2f" .Fee}} | {{pnl .PnL}} | {{.Reason}} |
{{- end }}
`
