package market

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Bar is one OHLCV sample for a fixed time step. Time is unix seconds
// for the bar open.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Valid reports whether the OHLCV invariant holds.
func (b Bar) Valid() bool {
	if b.Volume < 0 {
		return false
	}
	return b.Low <= math.Min(b.Open, b.Close) && b.High >= math.Max(b.Open, b.Close)
}

// UTC returns the bar open time.
func (b Bar) UTC() time.Time {
	return time.Unix(b.Time, 0).UTC()
}

// Change is the close-over-open move as a fraction.
func (b Bar) Change() float64 {
	if b.Open == 0 {
		return 0
	}
	return (b.Close - b.Open) / b.Open
}

// Timeframe is a supported bar width.
type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1D  Timeframe = "1D"
)

// Timeframes lists the supported widths, shortest first.
var Timeframes = []Timeframe{TF15m, TF1h, TF4h, TF1D}

// ParseTimeframe accepts the canonical names plus a few common aliases.
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.TrimSpace(s) {
	case "15m", "M15", "m15":
		return TF15m, nil
	case "1h", "H1", "h1":
		return TF1h, nil
	case "4h", "H4", "h4":
		return TF4h, nil
	case "1D", "1d", "D1", "d1":
		return TF1D, nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Seconds is the fixed step between consecutive bars.
func (tf Timeframe) Seconds() int64 {
	switch tf {
	case TF15m:
		return 900
	case TF1h:
		return 3600
	case TF4h:
		return 14400
	case TF1D:
		return 86400
	}
	return 0
}

// VolatilityMultiplier scales per-bar volatility down for sub-daily bars.
func (tf Timeframe) VolatilityMultiplier() float64 {
	switch tf {
	case TF15m:
		return 0.2
	case TF1h:
		return 0.4
	case TF4h:
		return 0.6
	case TF1D:
		return 1.0
	}
	return 0
}

func (tf Timeframe) Valid() bool { return tf.Seconds() > 0 }

func (tf Timeframe) String() string { return string(tf) }
