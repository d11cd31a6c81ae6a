package sim

import (
	"github.com/rustyeddy/replaytrader/broker"
	"github.com/shopspring/decimal"
)

type TradeType string

const (
	Open    TradeType = "Open"
	Close   TradeType = "Close"
	Reverse TradeType = "Reverse"
)

const (
	ReasonOrder      = "order"
	ReasonManual     = "manual"
	ReasonSettlement = "settlement"
)

// TradeRecord is one leg of a fill. History is append-only.
type TradeRecord struct {
	ID         string              `json:"id"`
	OrderID    string              `json:"order_id,omitempty"`
	Time       int64               `json:"time"`
	Instrument string              `json:"instrument"`
	Type       TradeType           `json:"type"`
	Direction  broker.Direction    `json:"direction"`
	Price      decimal.Decimal     `json:"price"`
	Qty        int                 `json:"qty"`
	Fee        decimal.Decimal     `json:"fee"`
	PnL        decimal.NullDecimal `json:"pnl"`
	Reason     string              `json:"reason"`
}

// MarkerKind labels a chart marker.
type MarkerKind string

const (
	MarkerBuy   MarkerKind = "buy"
	MarkerSell  MarkerKind = "sell"
	MarkerClose MarkerKind = "close"
)

type Marker struct {
	Time       int64      `json:"time"`
	Instrument string     `json:"instrument"`
	Kind       MarkerKind `json:"kind"`
	Price      float64    `json:"price"`
	Qty        int        `json:"qty"`
}

// Markers turns trade records into chart markers. Close legs become close
// markers, opening legs buy or sell by direction.
func Markers(records []TradeRecord) []Marker {
	out := make([]Marker, 0, len(records))
	for _, r := range records {
		kind := MarkerClose
		if r.Type != Close {
			kind = MarkerBuy
			if r.Direction == broker.Short {
				kind = MarkerSell
			}
		}
		out = append(out, Marker{
			Time:       r.Time,
			Instrument: r.Instrument,
			Kind:       kind,
			Price:      r.Price.InexactFloat64(),
			Qty:        r.Qty,
		})
	}
	return out
}
