// Package session owns one replay session: generated market data, the
// playback clock and the matching engine, serialised behind one mutex.
package session

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/journal"
	"github.com/rustyeddy/replaytrader/market"
	"github.com/rustyeddy/replaytrader/metrics"
	"github.com/rustyeddy/replaytrader/pkg/id"
	"github.com/rustyeddy/replaytrader/replay"
	"github.com/rustyeddy/replaytrader/sim"
	"github.com/rustyeddy/replaytrader/synth"
)

var (
	ErrNotStarted  = errors.New("session not started")
	ErrCannotStart = errors.New("cannot start session")
	ErrFinished    = errors.New("session finished")
)

const (
	DefaultBalance    = 1_000_000
	DefaultWarmupBars = 200
	subscriberBuffer  = 16
)

var _ replay.Driver = (*Controller)(nil)

// Generator produces market data for a session.
type Generator interface {
	Generate(date time.Time, tf market.Timeframe, rng *rand.Rand) (*synth.MarketData, error)
}

// StartRequest comes from the setup form.
type StartRequest struct {
	Instrument string           `json:"instrument" yaml:"instrument"`
	StartDate  time.Time        `json:"start_date" yaml:"start_date"`
	Timeframe  market.Timeframe `json:"timeframe" yaml:"timeframe"`
	Balance    float64          `json:"balance" yaml:"balance"`
	// Seed drives generation. Zero seeds from the clock.
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

func (r StartRequest) validate(cat *market.Catalog) error {
	if _, ok := cat.Get(r.Instrument); !ok {
		return fmt.Errorf("%w: %q", sim.ErrUnknownInstrument, r.Instrument)
	}
	if !r.Timeframe.Valid() {
		return fmt.Errorf("%w: timeframe %q", sim.ErrInvalidInput, r.Timeframe)
	}
	if r.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", sim.ErrInvalidInput)
	}
	if !(r.Balance > 0) {
		return fmt.Errorf("%w: balance must be positive, got %v", sim.ErrInvalidInput, r.Balance)
	}
	return nil
}

// Controller is the single owner of session state. All operations are
// serialised; observers get Snapshot copies through Subscribe.
type Controller struct {
	mu       sync.Mutex
	catalog  *market.Catalog
	gen      Generator
	clock    *replay.Clock
	engine   *sim.Engine
	journal  journal.Journal
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
	warmup   int
	interval time.Duration

	id         string
	req        StartRequest
	instrument string
	data       *synth.MarketData
	depthRng   *rand.Rand
	result     *sim.Result

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}
}

type Option func(*Controller)

func WithCatalog(c *market.Catalog) Option { return func(s *Controller) { s.catalog = c } }

func WithGenerator(g Generator) Option { return func(s *Controller) { s.gen = g } }

func WithJournal(j journal.Journal) Option { return func(s *Controller) { s.journal = j } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Controller) { s.metrics = m } }

func WithLogger(l zerolog.Logger) Option { return func(s *Controller) { s.log = l } }

// WithWarmupBars sets how many bars of history precede the first playable
// bar.
func WithWarmupBars(n int) Option { return func(s *Controller) { s.warmup = n } }

// WithInterval sets the initial playback cadence.
func WithInterval(d time.Duration) Option { return func(s *Controller) { s.interval = d } }

// WithNow replaces the wall clock used for seeds and timestamps.
func WithNow(now func() time.Time) Option { return func(s *Controller) { s.now = now } }

func New(opts ...Option) *Controller {
	c := &Controller{
		journal:  journal.Nop{},
		log:      zerolog.Nop(),
		now:      time.Now,
		warmup:   DefaultWarmupBars,
		interval: replay.DefaultInterval,
		subs:     make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.catalog == nil {
		c.catalog = market.DefaultCatalog()
	}
	if c.gen == nil {
		c.gen = synth.NewGenerator(c.catalog)
	}
	if c.warmup < 0 {
		c.warmup = 0
	}
	c.clock = replay.NewClock(0, 0, c.interval)
	c.engine = sim.NewEngine(c.catalog, decimal.NewFromInt(DefaultBalance),
		sim.WithJournal(c.journal), sim.WithLogger(c.log), sim.WithIDFunc(id.NewGenerator(c.now).New))
	return c
}

// Catalog returns the instruments this controller trades.
func (c *Controller) Catalog() *market.Catalog { return c.catalog }

// Start generates market data and opens a fresh session positioned after
// the warm-up bars.
func (c *Controller) Start(req StartRequest) (Snapshot, error) {
	if err := req.validate(c.catalog); err != nil {
		return Snapshot{}, err
	}
	if req.Seed == 0 {
		req.Seed = c.now().UnixNano()
	}

	c.mu.Lock()
	if err := c.loadLocked(req); err != nil {
		c.mu.Unlock()
		return Snapshot{}, err
	}
	c.id = uuid.NewString()
	c.instrument = req.Instrument
	c.engine.SetSessionID(c.id)
	c.log.Info().Str("session", c.id).Str("instrument", req.Instrument).
		Str("timeframe", string(req.Timeframe)).Time("start", req.StartDate).
		Int64("seed", req.Seed).Int("bars", c.data.TotalBars).Msg("session started")
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return snap, nil
}

// loadLocked generates data for req and resets trading state. On failure
// the previous session is left untouched.
func (c *Controller) loadLocked(req StartRequest) error {
	md, err := c.gen.Generate(req.StartDate, req.Timeframe, rand.New(rand.NewSource(req.Seed)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotStart, err)
	}
	if md.Empty() {
		return fmt.Errorf("%w: %w", ErrCannotStart, synth.ErrNoBars)
	}

	c.clock.Reset(md.TotalBars, min(c.warmup, md.TotalBars-1))
	c.req = req
	c.data = md
	c.result = nil
	c.depthRng = rand.New(rand.NewSource(req.Seed))
	c.engine.Reset(decimal.NewFromFloat(req.Balance))
	c.engine.SetMarks(c.marksAt(c.clock.Cursor()))
	c.metrics.Cursor(c.clock.Cursor())
	c.updateGaugesLocked()
	return nil
}

// Reset abandons the session and returns to the idle state.
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	c.clock.Reset(0, 0)
	c.engine.Reset(decimal.NewFromFloat(c.balanceLocked()))
	c.data = nil
	c.result = nil
	c.id = ""
	c.log.Info().Msg("session reset")
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return snap
}

// SetTimeframe regenerates data for the new timeframe and resets trading
// state. Balance, instrument, start date and seed are kept.
func (c *Controller) SetTimeframe(tf market.Timeframe) (Snapshot, error) {
	if !tf.Valid() {
		return Snapshot{}, fmt.Errorf("%w: timeframe %q", sim.ErrInvalidInput, tf)
	}
	c.mu.Lock()
	if c.data == nil {
		c.mu.Unlock()
		return Snapshot{}, ErrNotStarted
	}
	req := c.req
	req.Timeframe = tf
	if err := c.loadLocked(req); err != nil {
		c.mu.Unlock()
		return Snapshot{}, err
	}
	c.log.Info().Str("session", c.id).Str("timeframe", string(tf)).Int("bars", c.data.TotalBars).Msg("timeframe changed")
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return snap, nil
}

// SetInstrument switches the displayed instrument. Positions in other
// instruments stay open.
func (c *Controller) SetInstrument(code string) (Snapshot, error) {
	if _, ok := c.catalog.Get(code); !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", sim.ErrUnknownInstrument, code)
	}
	c.mu.Lock()
	if c.data == nil {
		c.mu.Unlock()
		return Snapshot{}, ErrNotStarted
	}
	c.instrument = code
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return snap, nil
}

// SetSpeed changes the playback interval without moving the cursor.
func (c *Controller) SetSpeed(d time.Duration) error {
	c.mu.Lock()
	if err := c.clock.SetSpeed(d); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", sim.ErrInvalidInput, err)
	}
	c.interval = d
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// Play starts automatic ticking. It is a no-op on the final bar.
func (c *Controller) Play() error {
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.clock.Start(c.onClock) {
		c.mu.Unlock()
		return nil
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

func (c *Controller) Pause() {
	c.mu.Lock()
	c.clock.Pause()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// onClock runs on the clock goroutine. Ticks from a replaced schedule are
// dropped.
func (c *Controller) onClock(gen uint64) {
	c.mu.Lock()
	if !c.clock.Current(gen) || c.data == nil || c.result != nil {
		c.mu.Unlock()
		return
	}
	c.stepLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// Tick replays one bar by hand. Running out of data settles the session
// and is reported through the snapshot status, not as an error.
func (c *Controller) Tick() (Snapshot, error) {
	c.mu.Lock()
	if c.data == nil {
		c.mu.Unlock()
		return Snapshot{}, ErrNotStarted
	}
	if c.result == nil {
		c.stepLocked()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return snap, nil
}

// Step is Tick for script drivers.
func (c *Controller) Step() (bool, error) {
	snap, err := c.Tick()
	return snap.Status == StatusFinished, err
}

func (c *Controller) stepLocked() {
	cursor, err := c.clock.Advance()
	if errors.Is(err, replay.ErrExhausted) {
		c.settleLocked()
		return
	}

	ev := c.engine.Advance(c.marksAt(cursor))
	for _, f := range ev.Fills {
		c.countRecords(f.Records)
	}
	for _, r := range ev.Rejections {
		c.metrics.Rejection(cause(sim.ErrInsufficientMargin))
		c.log.Info().Str("session", c.id).Str("order", r.Order.ID).Str("reason", r.Reason).Msg("triggered order dropped")
	}
	c.metrics.Tick(cursor)
	c.recordEquityLocked(cursor)
	c.updateGaugesLocked()
}

func (c *Controller) settleLocked() {
	c.clock.Pause()
	for _, f := range c.engine.Settle() {
		c.countRecords(f.Records)
	}
	res := c.engine.Result()
	c.result = &res
	c.recordEquityLocked(c.clock.Cursor())
	c.updateGaugesLocked()

	run := journal.SessionRun{
		SessionID:      c.id,
		Created:        c.now().UTC(),
		Instrument:     c.req.Instrument,
		Timeframe:      string(c.data.Timeframe),
		Start:          time.Unix(c.data.Start, 0).UTC(),
		End:            time.Unix(c.lastTimeLocked(), 0).UTC(),
		Bars:           c.data.TotalBars,
		Seed:           c.req.Seed,
		InitialBalance: res.Initial.InexactFloat64(),
		FinalEquity:    res.FinalEquity.InexactFloat64(),
		NetPnL:         res.NetPnL.InexactFloat64(),
		ReturnPct:      res.ReturnPct,
		Trades:         res.Trades,
		Wins:           res.Wins,
		WinRate:        res.WinRate / 100,
	}
	if err := c.journal.RecordSession(run); err != nil {
		c.log.Error().Err(err).Str("session", c.id).Msg("journal session")
	}
	c.log.Info().Str("session", c.id).Str("equity", res.FinalEquity.StringFixed(2)).
		Float64("return_pct", res.ReturnPct).Int("trades", res.Trades).Msg("session settled")
}

// Seek jumps to bar i. Pending orders are not evaluated against the bars
// jumped over.
func (c *Controller) Seek(i int) error {
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.clock.Seek(i); err != nil {
		c.mu.Unlock()
		return err
	}
	c.engine.SetMarks(c.marksAt(i))
	c.metrics.Cursor(i)
	c.updateGaugesLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// Submit routes an order to the engine. An empty instrument means the
// active one.
func (c *Controller) Submit(req broker.OrderRequest) (sim.Submission, error) {
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return sim.Submission{}, err
	}
	if req.Instrument == "" {
		req.Instrument = c.instrument
	}
	sub, err := c.engine.Submit(req)
	c.noteSubmissionLocked(string(req.Kind), sub, err)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return sub, err
}

// ClosePosition flattens code at market. An empty code means the active
// instrument.
func (c *Controller) ClosePosition(code string) (sim.Submission, error) {
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return sim.Submission{}, err
	}
	if code == "" {
		code = c.instrument
	}
	sub, err := c.engine.ClosePosition(code)
	c.noteSubmissionLocked(string(broker.Market), sub, err)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return sub, err
}

func (c *Controller) Cancel(orderID string) error {
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.engine.Cancel(orderID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.updateGaugesLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

func (c *Controller) noteSubmissionLocked(kind string, sub sim.Submission, err error) {
	if err != nil {
		c.metrics.Rejection(cause(err))
		c.log.Info().Err(err).Str("session", c.id).Msg("order rejected")
	}
	if sub.Status != "" {
		c.metrics.Order(kind, string(sub.Status))
	}
	if sub.Fill != nil {
		c.countRecords(sub.Fill.Records)
	}
	c.updateGaugesLocked()
}

func (c *Controller) countRecords(records []sim.TradeRecord) {
	for _, r := range records {
		c.metrics.Trade(string(r.Type), r.Reason)
	}
}

func cause(err error) string {
	switch {
	case errors.Is(err, sim.ErrInsufficientMargin):
		return "insufficient_margin"
	case errors.Is(err, sim.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, sim.ErrUnknownInstrument):
		return "unknown_instrument"
	case errors.Is(err, sim.ErrNoActiveBar):
		return "no_active_bar"
	case errors.Is(err, sim.ErrNoPosition):
		return "no_position"
	}
	return "other"
}

// Result is available once the session has settled.
func (c *Controller) Result() (sim.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return sim.Result{}, false
	}
	return *c.result, true
}

// Cursor is the current bar index.
func (c *Controller) Cursor() int { return c.clock.Cursor() }

// Bars returns the bars of code up to and including the cursor.
func (c *Controller) Bars(code string) ([]market.Bar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		return nil, ErrNotStarted
	}
	bars, ok := c.data.Bars[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", sim.ErrUnknownInstrument, code)
	}
	n := c.clock.Cursor() + 1
	out := make([]market.Bar, n)
	copy(out, bars[:n])
	return out, nil
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Status:    StatusIdle,
		SpeedMS:   c.clock.Interval().Milliseconds(),
		Account:   c.engine.Account(),
		Positions: c.engine.Holdings(),
		Pending:   c.engine.Pending(),
		History:   c.engine.History(),
	}
	s.Markers = sim.Markers(s.History)
	if c.data == nil {
		return s
	}

	s.SessionID = c.id
	s.Instrument = c.instrument
	s.Timeframe = c.data.Timeframe
	s.Cursor = c.clock.Cursor()
	s.Total = c.data.TotalBars
	switch {
	case c.result != nil:
		s.Status = StatusFinished
		r := *c.result
		s.Result = &r
	case c.clock.Playing():
		s.Status = StatusPlaying
	default:
		s.Status = StatusPaused
	}

	if b, ok := c.data.Bar(c.instrument, s.Cursor); ok {
		s.Bar = &b
		in, _ := c.catalog.Get(c.instrument)
		d := market.CosmeticDepth(b.Close, in, DepthLevels, c.depthRng)
		s.Depth = &d
		s.Events = c.data.EventsUntil(b.Time)
	}
	return s
}

// Subscribe returns a channel of snapshots published after each
// operation, and a function that ends the subscription. Slow readers miss
// snapshots rather than block the session.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.metrics.Subscribers(len(c.subs))
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
			c.metrics.Subscribers(len(c.subs))
		})
	}
}

func (c *Controller) publish(s Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Close stops playback, ends every subscription and closes the journal.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.clock.Pause()
	c.mu.Unlock()

	c.subMu.Lock()
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
	c.subMu.Unlock()
	return c.journal.Close()
}

func (c *Controller) activeLocked() error {
	if c.data == nil {
		return ErrNotStarted
	}
	if c.result != nil {
		return ErrFinished
	}
	return nil
}

func (c *Controller) balanceLocked() float64 {
	if c.req.Balance > 0 {
		return c.req.Balance
	}
	return DefaultBalance
}

func (c *Controller) marksAt(i int) []market.Mark {
	marks := make([]market.Mark, 0, c.catalog.Len())
	for _, code := range c.catalog.Codes() {
		if b, ok := c.data.Bar(code, i); ok {
			marks = append(marks, market.Mark{Instrument: code, Bar: b})
		}
	}
	return marks
}

func (c *Controller) lastTimeLocked() int64 {
	if b, ok := c.data.Bar(c.req.Instrument, c.data.TotalBars-1); ok {
		return b.Time
	}
	return c.data.Start
}

func (c *Controller) recordEquityLocked(cursor int) {
	a := c.engine.Account()
	var ts int64
	if b, ok := c.data.Bar(c.req.Instrument, cursor); ok {
		ts = b.Time
	}
	err := c.journal.RecordEquity(journal.EquitySnapshot{
		SessionID:   c.id,
		Time:        time.Unix(ts, 0).UTC(),
		Cursor:      cursor,
		Cash:        a.Cash.InexactFloat64(),
		Equity:      a.Equity.InexactFloat64(),
		MarginUsed:  a.MarginUsed.InexactFloat64(),
		FreeMargin:  a.FreeMargin.InexactFloat64(),
		MarginLevel: a.MarginLevel.InexactFloat64(),
	})
	if err != nil {
		c.log.Error().Err(err).Str("session", c.id).Msg("journal equity")
	}
}

func (c *Controller) updateGaugesLocked() {
	a := c.engine.Account()
	c.metrics.Account(a.Cash.InexactFloat64(), a.Equity.InexactFloat64(),
		a.MarginUsed.InexactFloat64(), len(c.engine.Pending()))
}
