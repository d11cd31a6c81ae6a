package market

import "math/rand"

// Level is one row of the cosmetic order book.
type Level struct {
	Price  float64 `json:"price"`
	Volume int     `json:"volume"`
}

// Depth is a display-only book around the current close. It carries no
// liquidity and is never consulted by matching.
type Depth struct {
	Asks []Level `json:"asks"` // nearest first
	Bids []Level `json:"bids"` // nearest first
}

// BookTick is the price gap between cosmetic levels, as a fraction of the
// instrument base price.
const BookTick = 0.0001

// CosmeticDepth builds levels at close ± i*basePrice*BookTick with random
// sizes in [10, 90).
func CosmeticDepth(close float64, in Instrument, levels int, rng *rand.Rand) Depth {
	d := Depth{
		Asks: make([]Level, 0, levels),
		Bids: make([]Level, 0, levels),
	}
	step := in.BasePrice * BookTick
	for i := 1; i <= levels; i++ {
		d.Asks = append(d.Asks, Level{Price: close + float64(i)*step, Volume: 10 + rng.Intn(80)})
		d.Bids = append(d.Bids, Level{Price: close - float64(i)*step, Volume: 10 + rng.Intn(80)})
	}
	return d
}
