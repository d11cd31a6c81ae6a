package strategy

import (
	"fmt"

	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/market"
	"github.com/rustyeddy/replaytrader/market/indicators"
	"github.com/rustyeddy/replaytrader/risk"
)

// EMACross is long while the fast EMA is above the slow one and short
// while it is below. It only changes side on a cross, so the first
// target after warm-up waits for one.
//
// With ADXMin set a cross is ignored unless ADX is at least ADXMin. With
// RiskPct set the lot count comes from risk.Calculate with a stop StopATR
// average true ranges away, else it is Lots.
type EMACross struct {
	cfg Config
	in  market.Instrument

	fast *indicators.EMA
	slow *indicators.EMA
	adx  *indicators.ADX
	atr  *indicators.ATR

	lastDiff float64
	haveDiff bool
	target   int
}

func NewEMACross(cfg Config, in market.Instrument) (*EMACross, error) {
	if cfg.Fast <= 0 {
		cfg.Fast = 10
	}
	if cfg.Slow <= 0 {
		cfg.Slow = 30
	}
	if cfg.Fast >= cfg.Slow {
		return nil, fmt.Errorf("ema-cross: fast period %d must be below slow period %d", cfg.Fast, cfg.Slow)
	}
	if cfg.Lots <= 0 {
		cfg.Lots = 1
	}
	s := &EMACross{
		cfg:  cfg,
		in:   in,
		fast: indicators.NewEMA(cfg.Fast),
		slow: indicators.NewEMA(cfg.Slow),
	}
	if cfg.ADXMin > 0 {
		if cfg.ADXPeriod <= 0 {
			cfg.ADXPeriod = 14
		}
		s.adx = indicators.NewADX(cfg.ADXPeriod)
	}
	if cfg.RiskPct > 0 {
		if cfg.ATRPeriod <= 0 {
			cfg.ATRPeriod = 14
		}
		if cfg.StopATR <= 0 {
			cfg.StopATR = 2
		}
		s.atr = indicators.NewATR(cfg.ATRPeriod)
	}
	s.cfg = cfg
	return s, nil
}

func (s *EMACross) Name() string {
	name := fmt.Sprintf("ema-cross(%d,%d)", s.cfg.Fast, s.cfg.Slow)
	if s.adx != nil {
		name += fmt.Sprintf(" adx>=%g", s.cfg.ADXMin)
	}
	return name
}

func (s *EMACross) Reset() {
	s.fast.Reset()
	s.slow.Reset()
	if s.adx != nil {
		s.adx.Reset()
	}
	if s.atr != nil {
		s.atr.Reset()
	}
	s.lastDiff, s.haveDiff, s.target = 0, false, 0
}

func (s *EMACross) OnBar(b market.Bar, acct broker.Account) int {
	s.fast.Update(b)
	s.slow.Update(b)
	if s.adx != nil {
		s.adx.Update(b)
	}
	if s.atr != nil {
		s.atr.Update(b)
	}
	if !s.fast.Ready() || !s.slow.Ready() {
		return s.target
	}

	diff := s.fast.Value() - s.slow.Value()
	crossed := s.haveDiff && (s.lastDiff <= 0) != (diff <= 0)
	s.lastDiff, s.haveDiff = diff, true
	if !crossed {
		return s.target
	}
	if s.adx != nil && (!s.adx.Ready() || s.adx.Value() < s.cfg.ADXMin) {
		return s.target
	}

	dir := 1
	if diff < 0 {
		dir = -1
	}
	s.target = dir * s.lots(b, acct, dir)
	return s.target
}

func (s *EMACross) lots(b market.Bar, acct broker.Account, dir int) int {
	if s.atr == nil {
		return s.cfg.Lots
	}
	if !s.atr.Ready() {
		return 0
	}
	stop := b.Close - float64(dir)*s.cfg.StopATR*s.atr.Value()
	res, err := risk.Calculate(s.in, risk.Inputs{
		Equity:     acct.Equity.InexactFloat64(),
		FreeMargin: acct.Equity.InexactFloat64(),
		RiskPct:    s.cfg.RiskPct,
		Entry:      b.Close,
		Stop:       stop,
	})
	if err != nil {
		return 0
	}
	return res.Lots
}
