// Package indicators computes chart overlays from replayed bars.
package indicators

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/replaytrader/market"
)

// Indicator computes a single streaming value from closed bars.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)".
	Name() string

	// Warmup returns how many bars are needed before Ready can be true.
	Warmup() int

	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	Ready() bool

	// Value is meaningless until Ready.
	Value() float64
}

// Point is one indicator value at a bar open time.
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Series resets ind, feeds it bars in order and returns one point per bar
// once the indicator is ready.
func Series(ind Indicator, bars []market.Bar) []Point {
	ind.Reset()
	out := make([]Point, 0, len(bars))
	for _, b := range bars {
		ind.Update(b)
		if ind.Ready() {
			out = append(out, Point{Time: b.Time, Value: ind.Value()})
		}
	}
	return out
}

// New builds an indicator by name: sma, ema, atr or adx.
func New(name string, period int) (Indicator, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	switch strings.ToLower(name) {
	case "sma", "ma":
		return NewSMA(period), nil
	case "ema":
		return NewEMA(period), nil
	case "atr":
		return NewATR(period), nil
	case "adx":
		return NewADX(period), nil
	}
	return nil, fmt.Errorf("unknown indicator %q", name)
}
