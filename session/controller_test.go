package session

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/journal"
	"github.com/rustyeddy/replaytrader/market"
	"github.com/rustyeddy/replaytrader/replay"
	"github.com/rustyeddy/replaytrader/sim"
	"github.com/rustyeddy/replaytrader/synth"
)

var (
	rebar = market.Instrument{Code: "rb", Name: "Rebar", BasePrice: 3300, Multiplier: 10,
		MarginRate: 0.1, Fee: 5, Volatility: 0.006, Sector: market.SectorMetal}
	copper = market.Instrument{Code: "cu", Name: "Copper", BasePrice: 68000, Multiplier: 5,
		MarginRate: 0.1, Fee: 20, Volatility: 0.007, Sector: market.SectorMetal}
	day = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
)

// fixedData hands out flat bars at 3300 (rb) and 68000 (cu): 10 bars for
// hourly data and 5 for daily. Individual lows can be overridden.
type fixedData struct {
	rbLows map[int]float64
	calls  int
}

func (f *fixedData) Generate(date time.Time, tf market.Timeframe, _ *rand.Rand) (*synth.MarketData, error) {
	f.calls++
	if date.Year() > 2025 {
		return &synth.MarketData{Timeframe: tf, Bars: map[string][]market.Bar{}}, synth.ErrNoBars
	}
	n := 10
	if tf == market.TF1D {
		n = 5
	}
	start := date.Add(9 * time.Hour).Unix()
	md := &synth.MarketData{Timeframe: tf, Start: start, TotalBars: n, Bars: map[string][]market.Bar{}}
	for i := 0; i < n; i++ {
		ts := start + int64(i)*tf.Seconds()
		rb := market.Bar{Time: ts, Open: 3300, High: 3300, Low: 3300, Close: 3300, Volume: 100}
		if low, ok := f.rbLows[i]; ok {
			rb.Low = low
		}
		md.Bars["rb"] = append(md.Bars["rb"], rb)
		md.Bars["cu"] = append(md.Bars["cu"], market.Bar{Time: ts, Open: 68000, High: 68000, Low: 68000, Close: 68000, Volume: 10})
	}
	md.Events = []market.MacroEvent{
		{ID: synth.SessionStartID, Time: start, Title: "Session start", Impact: market.ImpactLow},
		{ID: "late", Time: start + 8*tf.Seconds(), Title: "Late", Impact: market.ImpactHigh},
	}
	return md, nil
}

func newController(t *testing.T, src *fixedData, opts ...Option) (*Controller, *journal.Memory) {
	t.Helper()
	cat, err := market.NewCatalog([]market.Instrument{rebar, copper})
	require.NoError(t, err)
	j := journal.NewMemory()
	base := []Option{WithCatalog(cat), WithGenerator(src), WithJournal(j), WithWarmupBars(1)}
	return New(append(base, opts...)...), j
}

func start(t *testing.T, c *Controller) Snapshot {
	t.Helper()
	snap, err := c.Start(StartRequest{Instrument: "rb", StartDate: day, Timeframe: market.TF1h, Balance: 100000, Seed: 7})
	require.NoError(t, err)
	return snap
}

func buy(qty int) broker.OrderRequest {
	return broker.OrderRequest{Kind: broker.Market, Direction: broker.Long, Qty: qty}
}

func TestStartValidation(t *testing.T) {
	c, _ := newController(t, &fixedData{})
	good := StartRequest{Instrument: "rb", StartDate: day, Timeframe: market.TF1h, Balance: 100000, Seed: 1}

	tests := []struct {
		name   string
		mutate func(*StartRequest)
		want   error
	}{
		{"unknown instrument", func(r *StartRequest) { r.Instrument = "zz" }, sim.ErrUnknownInstrument},
		{"bad timeframe", func(r *StartRequest) { r.Timeframe = "2h" }, sim.ErrInvalidInput},
		{"no date", func(r *StartRequest) { r.StartDate = time.Time{} }, sim.ErrInvalidInput},
		{"zero balance", func(r *StartRequest) { r.Balance = 0 }, sim.ErrInvalidInput},
		{"beyond horizon", func(r *StartRequest) { r.StartDate = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }, ErrCannotStart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := good
			tt.mutate(&req)
			_, err := c.Start(req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, StatusIdle, c.Snapshot().Status)
		})
	}
}

func TestOperationsBeforeStart(t *testing.T) {
	c, _ := newController(t, &fixedData{})
	_, err := c.Tick()
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = c.Submit(buy(1))
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, c.Seek(1), ErrNotStarted)
	assert.ErrorIs(t, c.Play(), ErrNotStarted)
	_, err = c.SetInstrument("cu")
	assert.ErrorIs(t, err, ErrNotStarted)
	_, ok := c.Result()
	assert.False(t, ok)
}

func TestStartPositionsAfterWarmup(t *testing.T) {
	c, _ := newController(t, &fixedData{})
	snap := start(t, c)

	assert.Equal(t, StatusPaused, snap.Status)
	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, 1, snap.Cursor)
	assert.Equal(t, 10, snap.Total)
	require.NotNil(t, snap.Bar)
	assert.Equal(t, 3300.0, snap.Bar.Close)
	assert.True(t, snap.Account.Equity.Equal(decimal.NewFromInt(100000)))

	require.NotNil(t, snap.Depth)
	assert.Len(t, snap.Depth.Asks, DepthLevels)
	assert.Greater(t, snap.Depth.Asks[0].Price, 3300.0)
	assert.Less(t, snap.Depth.Bids[0].Price, 3300.0)

	require.Len(t, snap.Events, 1)
	assert.Equal(t, synth.SessionStartID, snap.Events[0].ID)

	bars, err := c.Bars("rb")
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestWarmupIsCappedAtLastBar(t *testing.T) {
	c, _ := newController(t, &fixedData{}, WithWarmupBars(200))
	snap := start(t, c)
	assert.Equal(t, 9, snap.Cursor)

	require.NoError(t, c.Play())
	assert.False(t, c.Snapshot().Status == StatusPlaying)
}

func TestTradeThroughToSettlement(t *testing.T) {
	c, j := newController(t, &fixedData{})
	start(t, c)

	sub, err := c.Submit(buy(2))
	require.NoError(t, err)
	assert.Equal(t, sim.StatusFilled, sub.Status)
	assert.Equal(t, "rb", sub.Order.Instrument)

	snap, err := c.Tick()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Cursor)
	require.Len(t, snap.Positions, 1)
	assert.Len(t, j.Equity(), 1)

	for snap.Status != StatusFinished {
		snap, err = c.Tick()
		require.NoError(t, err)
	}
	assert.Equal(t, 9, snap.Cursor)
	assert.Empty(t, snap.Positions)
	require.NotNil(t, snap.Result)
	assert.True(t, snap.Result.FinalEquity.Equal(decimal.NewFromInt(99990)))
	assert.Equal(t, 1, snap.Result.Trades)
	assert.Equal(t, 0, snap.Result.Wins)

	hist := snap.History
	require.Len(t, hist, 2)
	assert.Equal(t, sim.ReasonSettlement, hist[1].Reason)
	require.Len(t, snap.Events, 2)

	sessions := j.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, snap.SessionID, sessions[0].SessionID)
	assert.Equal(t, 10, sessions[0].Bars)
	assert.Equal(t, int64(7), sessions[0].Seed)

	// finished sessions stay finished
	again, err := c.Tick()
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, again.Status)
	_, err = c.Submit(buy(1))
	assert.ErrorIs(t, err, ErrFinished)

	res, ok := c.Result()
	require.True(t, ok)
	assert.True(t, res.NetPnL.Equal(decimal.NewFromInt(-10)))
}

func TestSeekSkipsPendingEvaluation(t *testing.T) {
	src := &fixedData{rbLows: map[int]float64{3: 3200, 7: 3200}}
	c, _ := newController(t, src)
	start(t, c)

	sub, err := c.Submit(broker.OrderRequest{Kind: broker.Limit, Direction: broker.Long, Qty: 1, Price: 3250})
	require.NoError(t, err)
	require.Equal(t, sim.StatusPending, sub.Status)

	require.NoError(t, c.Seek(5))
	snap := c.Snapshot()
	assert.Equal(t, 5, snap.Cursor)
	assert.Len(t, snap.Pending, 1)
	assert.Empty(t, snap.History)

	assert.ErrorIs(t, c.Seek(10), replay.ErrSeekRange)

	for i := 0; i < 2; i++ {
		_, err = c.Tick()
		require.NoError(t, err)
	}
	snap = c.Snapshot()
	assert.Equal(t, 7, snap.Cursor)
	assert.Empty(t, snap.Pending)
	require.Len(t, snap.History, 1)
	assert.True(t, snap.History[0].Price.Equal(decimal.NewFromInt(3250)))
}

func TestSetTimeframeRegenerates(t *testing.T) {
	src := &fixedData{}
	c, _ := newController(t, src)
	start(t, c)
	_, err := c.Submit(buy(1))
	require.NoError(t, err)

	snap, err := c.SetTimeframe(market.TF1D)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, market.TF1D, snap.Timeframe)
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 1, snap.Cursor)
	assert.Empty(t, snap.Positions)
	assert.Empty(t, snap.History)
	assert.True(t, snap.Account.Cash.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, "rb", snap.Instrument)

	_, err = c.SetTimeframe("3d")
	assert.ErrorIs(t, err, sim.ErrInvalidInput)
}

func TestSetInstrumentKeepsPositions(t *testing.T) {
	c, _ := newController(t, &fixedData{})
	start(t, c)
	_, err := c.Submit(buy(1))
	require.NoError(t, err)

	snap, err := c.SetInstrument("cu")
	require.NoError(t, err)
	assert.Equal(t, "cu", snap.Instrument)
	assert.Equal(t, 68000.0, snap.Bar.Close)
	assert.Len(t, snap.Positions, 1)

	_, err = c.SetInstrument("zz")
	assert.ErrorIs(t, err, sim.ErrUnknownInstrument)

	sub, err := c.ClosePosition("rb")
	require.NoError(t, err)
	assert.Equal(t, sim.ReasonManual, sub.Fill.Records[0].Reason)
	_, err = c.ClosePosition("")
	assert.ErrorIs(t, err, sim.ErrNoPosition)
}

func TestCancelAndRejections(t *testing.T) {
	c, _ := newController(t, &fixedData{})
	start(t, c)

	sub, err := c.Submit(broker.OrderRequest{Kind: broker.Stop, Direction: broker.Long, Qty: 1, Price: 3400})
	require.NoError(t, err)
	require.NoError(t, c.Cancel(sub.Order.ID))
	assert.ErrorIs(t, c.Cancel(sub.Order.ID), sim.ErrUnknownOrder)

	_, err = c.Submit(buy(1000))
	assert.ErrorIs(t, err, sim.ErrInsufficientMargin)
	_, err = c.Submit(buy(0))
	assert.ErrorIs(t, err, sim.ErrInvalidInput)
	assert.Empty(t, c.Snapshot().History)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	c, _ := newController(t, &fixedData{})
	ch, cancel := c.Subscribe()
	start(t, c)

	select {
	case snap := <-ch:
		assert.Equal(t, 1, snap.Cursor)
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
	}

	_, err := c.Tick()
	require.NoError(t, err)
	snap := <-ch
	assert.Equal(t, 2, snap.Cursor)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	c, _ := newController(t, &fixedData{})
	_, cancel := c.Subscribe()
	defer cancel()
	start(t, c)
	for i := 0; i < subscriberBuffer+5; i++ {
		_, err := c.SetInstrument("rb")
		require.NoError(t, err)
	}
}

func TestPlayAdvancesAndPauses(t *testing.T) {
	c, _ := newController(t, &fixedData{}, WithInterval(time.Millisecond))
	start(t, c)

	require.NoError(t, c.Play())
	require.Eventually(t, func() bool { return c.Snapshot().Status == StatusFinished }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 9, c.Cursor())

	c2, _ := newController(t, &fixedData{}, WithInterval(time.Hour))
	start(t, c2)
	require.NoError(t, c2.Play())
	assert.Equal(t, StatusPlaying, c2.Snapshot().Status)
	require.NoError(t, c2.SetSpeed(time.Hour))
	assert.Equal(t, StatusPlaying, c2.Snapshot().Status)
	c2.Pause()
	assert.Equal(t, StatusPaused, c2.Snapshot().Status)
	assert.Equal(t, 1, c2.Cursor())
	assert.ErrorIs(t, c2.SetSpeed(0), sim.ErrInvalidInput)
}

// Orders, cancels, seeks and speed changes race the clock goroutine. Run
// with -race.
func TestConcurrentOperationsWhilePlaying(t *testing.T) {
	cat, err := market.NewCatalog([]market.Instrument{rebar, copper})
	require.NoError(t, err)
	j := journal.NewMemory()
	c := New(WithCatalog(cat), WithJournal(j), WithWarmupBars(1),
		WithGenerator(synth.NewGenerator(cat, synth.WithMaxBars(400))),
		WithInterval(time.Millisecond))
	start(t, c)
	require.NoError(t, c.Play())

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		filled []string
	)
	tolerated := func(err error) bool {
		return err == nil ||
			errors.Is(err, sim.ErrInsufficientMargin) ||
			errors.Is(err, sim.ErrUnknownOrder) ||
			errors.Is(err, ErrFinished)
	}

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				dir := broker.Long
				if (w+i)%2 == 1 {
					dir = broker.Short
				}
				req := broker.OrderRequest{Kind: broker.Market, Direction: dir, Qty: 1}
				if i%3 == 0 {
					snap := c.Snapshot()
					if snap.Bar == nil {
						continue
					}
					req.Kind = broker.Limit
					req.Price = snap.Bar.Close - float64(dir)*5
				}

				sub, err := c.Submit(req)
				assert.True(t, tolerated(err), "submit: %v", err)
				switch {
				case sub.Status == sim.StatusFilled:
					mu.Lock()
					filled = append(filled, sub.Order.ID)
					mu.Unlock()
				case sub.Status == sim.StatusPending && i%5 == 0:
					assert.True(t, tolerated(c.Cancel(sub.Order.ID)))
				}

				if w == 0 && i%10 == 0 {
					cur := c.Cursor()
					if err := c.Seek(min(cur+3, 399)); err != nil {
						assert.ErrorIs(t, err, ErrFinished)
					}
					assert.NoError(t, c.SetSpeed(time.Duration(1+i%2)*time.Millisecond))
				}
			}
		}(w)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return c.Snapshot().Status == StatusFinished }, 10*time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.Empty(t, snap.Positions)
	assert.Empty(t, snap.Pending)
	assert.Len(t, j.Trades(), len(snap.History))

	res, ok := c.Result()
	require.True(t, ok)

	orders := make(map[string]bool)
	closes, wins := 0, 0
	equity := res.Initial
	for _, r := range snap.History {
		orders[r.OrderID] = true
		equity = equity.Sub(r.Fee)
		if r.Type == sim.Close {
			closes++
			equity = equity.Add(r.PnL.Decimal)
			if r.PnL.Decimal.IsPositive() {
				wins++
			}
		}
	}
	assert.Equal(t, closes, res.Trades)
	assert.Equal(t, wins, res.Wins)
	assert.True(t, equity.Equal(res.FinalEquity), "replayed %s, final %s", equity, res.FinalEquity)
	for _, id := range filled {
		assert.True(t, orders[id], "filled order %s missing from history", id)
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	c, _ := newController(t, &fixedData{})
	start(t, c)
	_, err := c.Submit(buy(1))
	require.NoError(t, err)

	snap := c.Reset()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Positions)
	assert.Empty(t, snap.History)
	_, err = c.Tick()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestRunScriptAgainstController(t *testing.T) {
	c, j := newController(t, &fixedData{rbLows: map[int]float64{4: 3200}})
	start(t, c)

	script := "cursor,action,arg1,arg2,arg3\n1,buy,limit,1,3250\n2,buy,market,1\n6,close\n"
	out, err := replay.RunScript(strings.NewReader(script), c, replay.ScriptOptions{Instrument: "rb", RunToEnd: true})
	require.NoError(t, err)
	require.Len(t, out, 3)

	res, ok := c.Result()
	require.True(t, ok)
	// bought 3250 and 3300, sold both at 3300 by hand: +500, fees 4*5
	assert.True(t, res.FinalEquity.Equal(decimal.NewFromInt(100480)), "equity %s", res.FinalEquity)
	assert.Len(t, j.Sessions(), 1)
}

func TestClose(t *testing.T) {
	c, j := newController(t, &fixedData{})
	ch, _ := c.Subscribe()
	require.NoError(t, c.Close())
	_, open := <-ch
	assert.False(t, open)
	assert.True(t, j.Closed())
}
