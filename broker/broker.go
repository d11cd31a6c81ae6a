package broker

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput marks requests rejected before touching any state.
var ErrInvalidInput = errors.New("invalid input")

// Direction is +1 for long-seeking orders and -1 for short-seeking ones.
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) Valid() bool { return d == Long || d == Short }

func (d Direction) Opposite() Direction { return -d }

func (d Direction) String() string {
	switch d {
	case Long:
		return "buy"
	case Short:
		return "sell"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection accepts buy/sell, long/short and +1/-1.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long", "1", "+1":
		return Long, nil
	case "sell", "short", "-1":
		return Short, nil
	}
	return 0, fmt.Errorf("%w: direction %q", ErrInvalidInput, s)
}

// OrderKind selects how an order executes.
type OrderKind string

const (
	Market OrderKind = "Market"
	Limit  OrderKind = "Limit"
	Stop   OrderKind = "Stop"
)

func (k OrderKind) Valid() bool {
	return k == Market || k == Limit || k == Stop
}

// ParseOrderKind is case-insensitive.
func ParseOrderKind(s string) (OrderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "market":
		return Market, nil
	case "limit":
		return Limit, nil
	case "stop":
		return Stop, nil
	}
	return "", fmt.Errorf("%w: order kind %q", ErrInvalidInput, s)
}

// OrderRequest is what a trade-entry form submits. Price is ignored for
// market orders.
type OrderRequest struct {
	Instrument string    `json:"instrument"`
	Kind       OrderKind `json:"kind"`
	Direction  Direction `json:"direction"`
	Qty        int       `json:"qty"`
	Price      float64   `json:"price,omitempty"`
}

// Validate checks the request shape. It does not know about instruments.
func (r OrderRequest) Validate() error {
	switch {
	case r.Instrument == "":
		return fmt.Errorf("%w: instrument is required", ErrInvalidInput)
	case !r.Kind.Valid():
		return fmt.Errorf("%w: order kind %q", ErrInvalidInput, r.Kind)
	case !r.Direction.Valid():
		return fmt.Errorf("%w: direction %d", ErrInvalidInput, r.Direction)
	case r.Qty < 1:
		return fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidInput, r.Qty)
	}
	if r.Kind != Market {
		if math.IsNaN(r.Price) || math.IsInf(r.Price, 0) || r.Price <= 0 {
			return fmt.Errorf("%w: %s order needs a positive price, got %v", ErrInvalidInput, r.Kind, r.Price)
		}
	}
	return nil
}

// Account is a read-only view of the account for display.
type Account struct {
	Initial     decimal.Decimal `json:"initial"`
	Cash        decimal.Decimal `json:"cash"`
	Equity      decimal.Decimal `json:"equity"`
	FloatingPnL decimal.Decimal `json:"floating_pnl"`
	MarginUsed  decimal.Decimal `json:"margin_used"`
	FreeMargin  decimal.Decimal `json:"free_margin"`
	MarginLevel decimal.Decimal `json:"margin_level"`
	TradeCount  int             `json:"trade_count"`
	WinCount    int             `json:"win_count"`
}

// WinRate is WinCount/TradeCount, zero before the first closing trade.
func (a Account) WinRate() float64 {
	if a.TradeCount == 0 {
		return 0
	}
	return float64(a.WinCount) / float64(a.TradeCount)
}
