package synth

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/rustyeddy/replaytrader/market"
)

const (
	DefaultMaxBars       = 3000
	DefaultOpenHour      = 9
	DefaultResidualScale = 0.004
	DefaultBaseVolume    = 2000

	SessionStartID = "session-start"

	// Share of per-bar volatility used to extend wicks past the body.
	wickScale = 0.6
	// Upper bound on a single bar's return, keeps prices positive.
	maxMove = 0.5
	// Size of the market-wide residual relative to the sector one.
	macroWeight = 0.5
)

// DefaultHorizon is the fixed terminal timestamp generated data may not pass.
var DefaultHorizon = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrNoBars means the requested start leaves no room before the horizon.
var ErrNoBars = errors.New("no bars available before horizon")

// MarketData is one generation: equally long bar sequences for every
// catalog instrument sharing the same timestamps, plus aligned events.
type MarketData struct {
	Timeframe market.Timeframe        `json:"timeframe"`
	Start     int64                   `json:"start"`
	TotalBars int                     `json:"total_bars"`
	Bars      map[string][]market.Bar `json:"bars"`
	Events    []market.MacroEvent     `json:"events"`
}

func (md *MarketData) Empty() bool {
	return md == nil || md.TotalBars == 0
}

// Bar returns the i-th bar of an instrument.
func (md *MarketData) Bar(code string, i int) (market.Bar, bool) {
	if md == nil {
		return market.Bar{}, false
	}
	bars, ok := md.Bars[code]
	if !ok || i < 0 || i >= len(bars) {
		return market.Bar{}, false
	}
	return bars[i], true
}

// EventsUntil returns the events at or before ts.
func (md *MarketData) EventsUntil(ts int64) []market.MacroEvent {
	var out []market.MacroEvent
	for _, ev := range md.Events {
		if ev.Time <= ts {
			out = append(out, ev)
		}
	}
	return out
}

type Options struct {
	MaxBars       int
	Horizon       time.Time
	OpenHour      int
	ResidualScale float64
	BaseVolume    float64
	Calendar      []CalendarEvent
}

type Option func(*Options)

func WithMaxBars(n int) Option              { return func(o *Options) { o.MaxBars = n } }
func WithHorizon(t time.Time) Option        { return func(o *Options) { o.Horizon = t.UTC() } }
func WithCalendar(c []CalendarEvent) Option { return func(o *Options) { o.Calendar = c } }
func WithResidualScale(s float64) Option    { return func(o *Options) { o.ResidualScale = s } }

// Generator synthesizes bars for every instrument of a catalog.
type Generator struct {
	catalog *market.Catalog
	opts    Options
}

func NewGenerator(c *market.Catalog, options ...Option) *Generator {
	opts := Options{
		MaxBars:       DefaultMaxBars,
		Horizon:       DefaultHorizon,
		OpenHour:      DefaultOpenHour,
		ResidualScale: DefaultResidualScale,
		BaseVolume:    DefaultBaseVolume,
		Calendar:      Calendar,
	}
	for _, opt := range options {
		opt(&opts)
	}
	return &Generator{catalog: c, opts: opts}
}

// StartTime is the first bar open for a start date.
func (g *Generator) StartTime(date time.Time) time.Time {
	y, m, d := date.UTC().Date()
	return time.Date(y, m, d, g.opts.OpenHour, 0, 0, 0, time.UTC)
}

// TotalBars is min(MaxBars, floor((horizon-start)/step)), never negative.
func (g *Generator) TotalBars(date time.Time, tf market.Timeframe) int {
	step := tf.Seconds()
	if step <= 0 {
		return 0
	}
	avail := (g.opts.Horizon.Unix() - g.StartTime(date).Unix()) / step
	if avail <= 0 {
		return 0
	}
	if avail > int64(g.opts.MaxBars) {
		return g.opts.MaxBars
	}
	return int(avail)
}

// shock collects the calendar events aligned to one bar index.
type shock []CalendarEvent

// impact returns the summed bias and the largest volatility boost of the
// events touching a sector.
func (s shock) impact(sec market.Sector) (bias, boost float64) {
	boost = 1
	for _, ce := range s {
		if !ce.affects(sec) {
			continue
		}
		bias += ce.Bias
		boost = math.Max(boost, ce.Impact.VolatilityBoost())
	}
	return bias, boost
}

// Generate produces bars for every catalog instrument. The same rng state
// and inputs always yield the same data.
func (g *Generator) Generate(date time.Time, tf market.Timeframe, rng *rand.Rand) (*MarketData, error) {
	md := &MarketData{
		Timeframe: tf,
		Bars:      make(map[string][]market.Bar),
	}
	if !tf.Valid() {
		return md, errors.New("invalid timeframe " + string(tf))
	}

	total := g.TotalBars(date, tf)
	if total <= 0 {
		return md, ErrNoBars
	}

	step := tf.Seconds()
	start := g.StartTime(date).Unix()
	md.Start = start
	md.TotalBars = total

	events, shocks := g.schedule(start, step, total)
	md.Events = events

	tfMult := tf.VolatilityMultiplier()
	baseVolume := g.opts.BaseVolume / tfMult
	minVolume := math.Floor(baseVolume * 0.05)
	maxVolume := math.Floor(baseVolume * 20)

	instruments := g.catalog.All()
	residuals := g.residuals(instruments, total, tfMult, rng)

	for _, in := range instruments {
		bars := make([]market.Bar, total)
		sector := residuals[in.Sector]
		price := in.BasePrice * (1 + (rng.Float64()-0.5)*0.05)
		phase := rng.Float64() * 1000

		for i := 0; i < total; i++ {
			bias, boost := shocks[i].impact(in.Sector)
			bias *= tfMult

			vol := in.Volatility * tfMult * boost
			noise := math.Sin(phase+float64(i)*0.1)*0.001 + (rng.Float64()-0.5)*vol
			change := clamp(noise+sector[i]+bias, -maxMove, maxMove)

			open := price
			cl := open * (1 + change)
			high := math.Max(open, cl) * (1 + rng.Float64()*vol*wickScale)
			low := math.Min(open, cl) * (1 - rng.Float64()*vol*wickScale)

			move := math.Abs(cl-open) / open
			volume := math.Floor(baseVolume * (1 + move*200) * boost * (0.2 + rng.Float64()))

			bars[i] = market.Bar{
				Time:   start + int64(i)*step,
				Open:   open,
				High:   high,
				Low:    low,
				Close:  cl,
				Volume: clamp(volume, minVolume, maxVolume),
			}
			price = cl
		}
		md.Bars[in.Code] = bars
	}

	return md, nil
}

// residuals draws one shared market term per bar and one term per sector
// per bar, in catalog order. Instruments of a sector move on the same draw.
func (g *Generator) residuals(instruments []market.Instrument, total int, tfMult float64, rng *rand.Rand) map[market.Sector][]float64 {
	scale := g.opts.ResidualScale * tfMult
	macro := make([]float64, total)
	for i := range macro {
		macro[i] = (rng.Float64() - 0.5) * scale * macroWeight
	}

	out := make(map[market.Sector][]float64)
	for _, in := range instruments {
		if _, ok := out[in.Sector]; ok {
			continue
		}
		r := make([]float64, total)
		for i := range r {
			r[i] = macro[i] + (rng.Float64()-0.5)*scale
		}
		out[in.Sector] = r
	}
	return out
}

// schedule aligns calendar events to bar indexes. Sub-daily timeframes use
// the first bar of the event date.
func (g *Generator) schedule(start, step int64, total int) ([]market.MacroEvent, map[int]shock) {
	events := []market.MacroEvent{{
		ID:          SessionStartID,
		Time:        start,
		Title:       "Session start",
		Description: "Replay begins.",
		Impact:      market.ImpactLow,
	}}
	shocks := make(map[int]shock)
	end := start + int64(total)*step

	for _, ce := range g.opts.Calendar {
		day, err := ce.day()
		if err != nil {
			continue
		}
		dayStart := day.Unix()
		dayEnd := dayStart + 86400
		if dayEnd <= start || dayStart >= end {
			continue
		}

		idx := 0
		if dayStart > start {
			idx = int((dayStart - start + step - 1) / step)
		}
		ts := start + int64(idx)*step
		if idx >= total || ts >= dayEnd {
			continue
		}

		events = append(events, market.MacroEvent{
			ID:          ce.ID,
			Time:        ts,
			Title:       ce.Title,
			Description: ce.Description,
			Impact:      ce.Impact,
		})

		shocks[idx] = append(shocks[idx], ce)
	}
	return events, shocks
}

// Generate runs the default catalog with a seeded source.
func Generate(date time.Time, tf market.Timeframe, seed int64) (*MarketData, error) {
	return NewGenerator(market.DefaultCatalog()).Generate(date, tf, rand.New(rand.NewSource(seed)))
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
