package sim

import (
	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/market"
)

// triggered reports whether a resting order fires on bar. Both stops and
// limits fill at the order price.
//
//	buy-stop    high >= price
//	sell-stop   low  <= price
//	buy-limit   low  <= price
//	sell-limit  high >= price
func triggered(o Order, b market.Bar) bool {
	switch o.Kind {
	case broker.Stop:
		if o.Direction == broker.Long {
			return b.High >= o.Price
		}
		return b.Low <= o.Price
	case broker.Limit:
		if o.Direction == broker.Long {
			return b.Low <= o.Price
		}
		return b.High >= o.Price
	}
	return false
}

// marketable reports whether a limit order already crosses close.
func marketable(o Order, close float64) bool {
	if o.Kind != broker.Limit {
		return false
	}
	if o.Direction == broker.Long {
		return o.Price >= close
	}
	return o.Price <= close
}
