package sim

import (
	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/market"
)

// Order is a submitted instruction. Orders are never mutated; they leave
// the book on fill or cancel.
type Order struct {
	ID         string           `json:"id"`
	Instrument string           `json:"instrument"`
	Kind       broker.OrderKind `json:"kind"`
	Direction  broker.Direction `json:"direction"`
	Qty        int              `json:"qty"`
	Price      float64          `json:"price,omitempty"`
	Time       int64            `json:"time"`
}

// Trigger is a resting order that fired on a bar.
type Trigger struct {
	Order Order
	Price float64
	Time  int64
}

// Book holds pending orders in submission order.
type Book struct {
	orders []Order
}

func NewBook() *Book { return &Book{} }

func (b *Book) Add(o Order) { b.orders = append(b.orders, o) }

// Cancel removes the order with id and reports whether it was present.
func (b *Book) Cancel(id string) bool {
	for i, o := range b.orders {
		if o.ID == id {
			b.orders = append(b.orders[:i:i], b.orders[i+1:]...)
			return true
		}
	}
	return false
}

// Orders returns a copy of the pending orders.
func (b *Book) Orders() []Order {
	out := make([]Order, len(b.orders))
	copy(out, b.orders)
	return out
}

func (b *Book) Len() int { return len(b.orders) }

func (b *Book) Clear() { b.orders = nil }

func (b *Book) replace(orders []Order) { b.orders = orders }

// Evaluate checks every pending order against the bar returned by bar for
// its instrument. It does not modify the book. Orders whose instrument has
// no bar stay pending.
func (b *Book) Evaluate(bar func(code string) (market.Bar, bool)) (fills []Trigger, remaining []Order) {
	for _, o := range b.orders {
		cur, ok := bar(o.Instrument)
		if ok && triggered(o, cur) {
			fills = append(fills, Trigger{Order: o, Price: o.Price, Time: cur.Time})
			continue
		}
		remaining = append(remaining, o)
	}
	return fills, remaining
}
