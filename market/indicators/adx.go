package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/replaytrader/market"
)

// ADX is the Wilder average directional index, 0..100.
//
// The first N periods build the smoothed TR and directional movement, the
// next N DX values seed the ADX. A period is the step between two bars, so
// Warmup reports 2N.
type ADX struct {
	n int

	prev    market.Bar
	hasPrev bool
	periods int
	ready   bool

	adx     float64
	plusDI  float64
	minusDI float64
	lastDX  float64

	smTR      float64
	smPlusDM  float64
	smMinusDM float64

	dxSum   float64
	dxCount int
}

func NewADX(period int) *ADX {
	if period <= 0 {
		panic("ADX period must be > 0")
	}
	return &ADX{n: period}
}

func (a *ADX) Name() string   { return fmt.Sprintf("ADX(%d)", a.n) }
func (a *ADX) Warmup() int    { return 2 * a.n }
func (a *ADX) Ready() bool    { return a.ready }
func (a *ADX) Value() float64 { return a.adx }

func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }
func (a *ADX) DX() float64      { return a.lastDX }

func (a *ADX) Reset() {
	*a = ADX{n: a.n}
}

func (a *ADX) Update(b market.Bar) {
	if !a.hasPrev {
		a.prev = b
		a.hasPrev = true
		return
	}

	tr := trueRange(b, a.prev)
	up := b.High - a.prev.High
	down := a.prev.Low - b.Low
	a.prev = b

	var plusDM, minusDM float64
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}

	a.periods++
	nf := float64(a.n)

	if a.periods <= a.n {
		a.smTR += tr
		a.smPlusDM += plusDM
		a.smMinusDM += minusDM
		if a.periods == a.n {
			a.plusDI, a.minusDI = di(a.smPlusDM, a.smMinusDM, a.smTR)
			a.lastDX = dx(a.plusDI, a.minusDI)
			a.dxSum = a.lastDX
			a.dxCount = 1
		}
		return
	}

	// smoothed = prior - prior/N + current
	a.smTR = a.smTR - a.smTR/nf + tr
	a.smPlusDM = a.smPlusDM - a.smPlusDM/nf + plusDM
	a.smMinusDM = a.smMinusDM - a.smMinusDM/nf + minusDM

	a.plusDI, a.minusDI = di(a.smPlusDM, a.smMinusDM, a.smTR)
	a.lastDX = dx(a.plusDI, a.minusDI)

	if a.ready {
		a.adx = (a.adx*(nf-1.0) + a.lastDX) / nf
		return
	}
	a.dxSum += a.lastDX
	a.dxCount++
	if a.dxCount >= a.n {
		a.adx = a.dxSum / nf
		a.ready = true
	}
}

func di(smPlusDM, smMinusDM, smTR float64) (plusDI, minusDI float64) {
	if smTR <= 0 {
		return 0, 0
	}
	return 100.0 * smPlusDM / smTR, 100.0 * smMinusDM / smTR
}

func dx(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if den <= 0 {
		return 0
	}
	return 100.0 * math.Abs(plusDI-minusDI) / den
}
