package strategy

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/market"
	"github.com/rustyeddy/replaytrader/session"
	"github.com/rustyeddy/replaytrader/synth"
)

var rebar = market.Instrument{Code: "rb", Name: "Rebar", BasePrice: 3300, Multiplier: 10,
	MarginRate: 0.1, Fee: 5, Volatility: 0.006, Sector: market.SectorMetal}

// flat, then up, then down: one cross each way for a short EMA pair.
func path() []float64 {
	var out []float64
	for i := 0; i < 10; i++ {
		out = append(out, 3300)
	}
	for i := 1; i <= 10; i++ {
		out = append(out, 3300+float64(i)*10)
	}
	for i := 1; i <= 10; i++ {
		out = append(out, 3400-float64(i)*10)
	}
	return out
}

type pathData struct{ closes []float64 }

func (p pathData) Generate(date time.Time, tf market.Timeframe, _ *rand.Rand) (*synth.MarketData, error) {
	start := date.Add(9 * time.Hour).Unix()
	md := &synth.MarketData{Timeframe: tf, Start: start, TotalBars: len(p.closes), Bars: map[string][]market.Bar{}}
	for i, c := range p.closes {
		md.Bars["rb"] = append(md.Bars["rb"], market.Bar{
			Time: start + int64(i)*tf.Seconds(), Open: c, High: c, Low: c, Close: c, Volume: 100,
		})
	}
	return md, nil
}

func started(t *testing.T) *session.Controller {
	t.Helper()
	cat, err := market.NewCatalog([]market.Instrument{rebar})
	require.NoError(t, err)
	c := session.New(session.WithCatalog(cat), session.WithGenerator(pathData{path()}), session.WithWarmupBars(1))
	t.Cleanup(func() { _ = c.Close() })
	_, err = c.Start(session.StartRequest{
		Instrument: "rb",
		StartDate:  time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		Timeframe:  market.TF1h,
		Balance:    100000,
	})
	require.NoError(t, err)
	return c
}

func bars(closes []float64) []market.Bar {
	out := make([]market.Bar, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{Time: int64(i), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestEMACrossTargets(t *testing.T) {
	s, err := NewEMACross(Config{Fast: 2, Slow: 4, Lots: 2}, rebar)
	require.NoError(t, err)

	var targets []int
	for _, b := range bars(path()) {
		targets = append(targets, s.OnBar(b, broker.Account{}))
	}
	assert.Equal(t, 0, targets[9], "no cross on a flat tape")
	assert.Equal(t, 2, targets[10], "first up bar crosses")
	assert.Equal(t, -2, targets[len(targets)-1])

	flips := 0
	for i := 1; i < len(targets); i++ {
		if targets[i] != targets[i-1] {
			flips++
		}
	}
	assert.Equal(t, 2, flips)

	s.Reset()
	assert.Equal(t, 0, s.OnBar(bars([]float64{3300})[0], broker.Account{}))
}

func TestEMACrossADXFilterBlocksShortHistory(t *testing.T) {
	s, err := NewEMACross(Config{Fast: 2, Slow: 4, ADXMin: 20, ADXPeriod: 14}, rebar)
	require.NoError(t, err)

	for _, b := range bars(path()[:12]) {
		assert.Equal(t, 0, s.OnBar(b, broker.Account{}), "adx is not ready yet")
	}
	assert.Contains(t, s.Name(), "adx>=20")
}

func TestEMACrossRiskSizing(t *testing.T) {
	s, err := NewEMACross(Config{Fast: 2, Slow: 4, RiskPct: 0.01, ATRPeriod: 3, StopATR: 2}, rebar)
	require.NoError(t, err)

	acct := broker.Account{Equity: decimal.NewFromInt(1000000)}
	var got int
	for _, b := range bars(path()[:11]) {
		got = s.OnBar(b, acct)
	}
	// atr after the first up bar: (0+0+10)/3, stop distance 2*atr
	atr := 10.0 / 3
	want := int(10000 / (2*atr*10 + 10))
	assert.Equal(t, want, got)
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "noop", "hold", "hold-short", "ema-cross"} {
		_, err := New(Config{Name: name}, rebar)
		assert.NoError(t, err, name)
	}
	_, err := New(Config{Name: "martingale"}, rebar)
	assert.Error(t, err)
	_, err = New(Config{Name: "ema-cross", Fast: 30, Slow: 10}, rebar)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		orders int
		trades int
	}{
		{name: "noop", cfg: Config{Name: "noop"}, orders: 0, trades: 0},
		{name: "hold", cfg: Config{Name: "hold", Lots: 2}, orders: 1, trades: 1},
		// buy 1, then sell 2 (close + reverse), then settlement closes
		{name: "ema-cross", cfg: Config{Name: "ema-cross", Fast: 2, Slow: 4}, orders: 2, trades: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := started(t)
			st, err := New(tt.cfg, rebar)
			require.NoError(t, err)

			rep, err := Run(c, st, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.orders, rep.Orders)
			assert.Zero(t, rep.Rejected)
			assert.Equal(t, tt.trades, rep.Result.Trades)
			assert.Equal(t, session.StatusFinished, c.Snapshot().Status)
		})
	}
}

func TestRunNotStarted(t *testing.T) {
	c := session.New()
	defer c.Close()
	_, err := Run(c, Noop{}, zerolog.Nop())
	assert.ErrorIs(t, err, session.ErrNotStarted)
}
