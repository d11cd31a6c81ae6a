package indicators

import (
	"fmt"

	"github.com/rustyeddy/replaytrader/market"
)

// SMA is a streaming simple moving average of closes.
type SMA struct {
	period int
	window []float64
	next   int
	sum    float64
	seen   int
}

func NewSMA(period int) *SMA {
	if period <= 0 {
		panic("SMA period must be > 0")
	}
	return &SMA{period: period, window: make([]float64, period)}
}

func (m *SMA) Name() string { return fmt.Sprintf("SMA(%d)", m.period) }
func (m *SMA) Warmup() int  { return m.period }
func (m *SMA) Ready() bool  { return m.seen >= m.period }

func (m *SMA) Reset() {
	clear(m.window)
	m.next, m.sum, m.seen = 0, 0, 0
}

func (m *SMA) Update(b market.Bar) {
	m.sum += b.Close - m.window[m.next]
	m.window[m.next] = b.Close
	m.next = (m.next + 1) % m.period
	m.seen++
}

func (m *SMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.sum / float64(m.period)
}

// EMA is an exponential moving average of closes, seeded with the first
// close.
type EMA struct {
	n     int
	alpha float64
	seen  int
	value float64
}

func NewEMA(period int) *EMA {
	if period <= 0 {
		panic("EMA period must be > 0")
	}
	return &EMA{n: period, alpha: 2.0 / float64(period+1)}
}

func (e *EMA) Name() string   { return fmt.Sprintf("EMA(%d)", e.n) }
func (e *EMA) Warmup() int    { return e.n }
func (e *EMA) Ready() bool    { return e.seen >= e.n }
func (e *EMA) Value() float64 { return e.value }

func (e *EMA) Reset() {
	e.seen = 0
	e.value = 0
}

func (e *EMA) Update(b market.Bar) {
	e.seen++
	if e.seen == 1 {
		e.value = b.Close
		return
	}
	e.value = e.alpha*b.Close + (1.0-e.alpha)*e.value
}
