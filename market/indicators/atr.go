package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/replaytrader/market"
)

// ATR is the Wilder average true range. The first bar only seeds the
// previous close.
type ATR struct {
	period  int
	atr     float64
	count   int
	sum     float64
	prev    market.Bar
	hasPrev bool
}

func NewATR(period int) *ATR {
	if period <= 0 {
		panic("ATR period must be > 0")
	}
	return &ATR{period: period}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }

// Warmup is period+1 since the true range needs a previous bar.
func (a *ATR) Warmup() int { return a.period + 1 }
func (a *ATR) Ready() bool { return a.count >= a.period }

func (a *ATR) Reset() {
	*a = ATR{period: a.period}
}

func (a *ATR) Update(b market.Bar) {
	if !a.hasPrev {
		a.prev = b
		a.hasPrev = true
		return
	}
	tr := trueRange(b, a.prev)
	a.prev = b

	if a.count < a.period {
		a.sum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.sum / float64(a.period)
		}
		return
	}
	a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
}

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

func trueRange(cur, prev market.Bar) float64 {
	return max(cur.High-cur.Low, math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close))
}
