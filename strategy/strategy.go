// Package strategy drives a replay session from bar-by-bar rules instead
// of a hand-written script.
package strategy

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/market"
	"github.com/rustyeddy/replaytrader/replay"
	"github.com/rustyeddy/replaytrader/session"
	"github.com/rustyeddy/replaytrader/sim"
)

// Strategy decides a target position after each closed bar.
type Strategy interface {
	Name() string
	Reset()
	// OnBar returns the desired signed lot count: positive long, negative
	// short, zero flat.
	OnBar(b market.Bar, acct broker.Account) int
}

// Session is the part of session.Controller a runner needs.
type Session interface {
	replay.Driver
	Bars(code string) ([]market.Bar, error)
	Snapshot() session.Snapshot
	Result() (sim.Result, bool)
}

var _ Session = (*session.Controller)(nil)

// Report is what a run did.
type Report struct {
	Strategy string     `json:"strategy"`
	Orders   int        `json:"orders"`
	Rejected int        `json:"rejected"`
	Result   sim.Result `json:"result"`
}

// Run replays the display instrument of a started session to the end.
// Warm-up bars prime the strategy without trading. Each later bar close
// moves the position to the strategy's target with one market order.
func Run(s Session, st Strategy, log zerolog.Logger) (Report, error) {
	rep := Report{Strategy: st.Name()}
	snap := s.Snapshot()
	if snap.Status == session.StatusIdle {
		return rep, session.ErrNotStarted
	}
	code := snap.Instrument

	bars, err := s.Bars(code)
	if err != nil {
		return rep, err
	}
	st.Reset()
	target := 0
	for _, b := range bars {
		target = st.OnBar(b, snap.Account)
	}

	for {
		if err := rebalance(s, code, target, &rep, log); err != nil {
			return rep, err
		}
		done, err := s.Step()
		if err != nil {
			return rep, err
		}
		if done {
			break
		}
		snap = s.Snapshot()
		if snap.Bar == nil {
			return rep, fmt.Errorf("no bar at cursor %d", snap.Cursor)
		}
		target = st.OnBar(*snap.Bar, snap.Account)
	}

	res, ok := s.Result()
	if !ok {
		return rep, fmt.Errorf("session did not settle")
	}
	rep.Result = res
	return rep, nil
}

func rebalance(s Session, code string, target int, rep *Report, log zerolog.Logger) error {
	delta := target - netLots(s.Snapshot(), code)
	if delta == 0 {
		return nil
	}
	dir := broker.Long
	if delta < 0 {
		dir, delta = broker.Short, -delta
	}

	sub, err := s.Submit(broker.OrderRequest{Instrument: code, Kind: broker.Market, Direction: dir, Qty: delta})
	rep.Orders++
	if sub.Status == sim.StatusRejected {
		rep.Rejected++
		log.Info().Str("instrument", code).Int("target", target).Str("reason", sub.Reason).Msg("rebalance rejected")
		return nil
	}
	return err
}

func netLots(snap session.Snapshot, code string) int {
	for _, h := range snap.Positions {
		if h.Instrument == code {
			return h.Qty * int(h.Direction)
		}
	}
	return 0
}

// Config selects and parameterises a strategy by name.
type Config struct {
	Name      string  `json:"name" yaml:"name"`
	Lots      int     `json:"lots" yaml:"lots"`
	Fast      int     `json:"fast" yaml:"fast"`
	Slow      int     `json:"slow" yaml:"slow"`
	ADXPeriod int     `json:"adx_period,omitempty" yaml:"adx_period,omitempty"`
	ADXMin    float64 `json:"adx_min,omitempty" yaml:"adx_min,omitempty"`
	RiskPct   float64 `json:"risk_pct,omitempty" yaml:"risk_pct,omitempty"`
	ATRPeriod int     `json:"atr_period,omitempty" yaml:"atr_period,omitempty"`
	StopATR   float64 `json:"stop_atr,omitempty" yaml:"stop_atr,omitempty"`
}

// New builds a strategy. in is the traded contract, used for risk sizing.
func New(cfg Config, in market.Instrument) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "noop", "none", "":
		return Noop{}, nil
	case "hold-long", "hold":
		return &Hold{Lots: max(cfg.Lots, 1)}, nil
	case "hold-short":
		return &Hold{Lots: -max(cfg.Lots, 1)}, nil
	case "ema-cross", "emacross":
		return NewEMACross(cfg, in)
	}
	return nil, fmt.Errorf("unknown strategy %q (supported: noop, hold-long, hold-short, ema-cross)", cfg.Name)
}

// Noop never trades.
type Noop struct{}

func (Noop) Name() string                         { return "noop" }
func (Noop) Reset()                               {}
func (Noop) OnBar(market.Bar, broker.Account) int { return 0 }

// Hold opens Lots on the first playable bar and keeps it until settlement.
type Hold struct {
	Lots int
}

func (h *Hold) Name() string                         { return fmt.Sprintf("hold(%d)", h.Lots) }
func (h *Hold) Reset()                               {}
func (h *Hold) OnBar(market.Bar, broker.Account) int { return h.Lots }
