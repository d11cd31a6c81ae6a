package sim

import (
	"fmt"
	"sort"

	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/market"
	"github.com/shopspring/decimal"
)

// Account is the ledger's own state. Equity and margin depend on marks and
// are computed by the Engine.
type Account struct {
	Initial    decimal.Decimal
	Cash       decimal.Decimal
	TradeCount int
	WinCount   int
}

// Fill is an execution handed to the ledger.
type Fill struct {
	OrderID    string
	Instrument market.Instrument
	Direction  broker.Direction
	Qty        int
	Price      decimal.Decimal
	Time       int64
	FeePerLot  decimal.Decimal
	Reason     string
}

// FillResult is everything one fill changed.
type FillResult struct {
	Position *Position       `json:"position"` // nil when the fill left the instrument flat
	Records  []TradeRecord   `json:"records"`
	Fee      decimal.Decimal `json:"fee"`
	Realized decimal.Decimal `json:"realized"`
	Closed   bool            `json:"closed"`
	Win      bool            `json:"win"`
	Cash     decimal.Decimal `json:"cash"`
}

// Ledger tracks cash, positions and the trade history.
type Ledger struct {
	acct      Account
	positions map[string]Position
	history   []TradeRecord
	newID     func() string
}

func NewLedger(initial decimal.Decimal, newID func() string) *Ledger {
	return &Ledger{
		acct:      Account{Initial: initial, Cash: initial},
		positions: make(map[string]Position),
		newID:     newID,
	}
}

// Reset clears positions, history and counters and restores cash.
func (l *Ledger) Reset(initial decimal.Decimal) {
	l.acct = Account{Initial: initial, Cash: initial}
	l.positions = make(map[string]Position)
	l.history = nil
}

func (l *Ledger) Account() Account { return l.acct }

func (l *Ledger) Position(code string) (Position, bool) {
	p, ok := l.positions[code]
	return p, ok
}

// Positions returns open positions sorted by instrument code.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// History returns a copy of every trade record in fill order.
func (l *Ledger) History() []TradeRecord {
	out := make([]TradeRecord, len(l.history))
	copy(out, l.history)
	return out
}

// ApplyFill books f in one step: position, cash, fee, history and
// counters change together. A non-positive quantity panics.
func (l *Ledger) ApplyFill(f Fill) FillResult {
	if f.Qty <= 0 {
		panic(fmt.Sprintf("sim: fill quantity must be positive, got %d", f.Qty))
	}
	code := f.Instrument.Code
	res := FillResult{
		Fee:      f.FeePerLot.Mul(decimal.NewFromInt(int64(f.Qty))),
		Realized: decimal.Zero,
	}
	leg := func(typ TradeType, qty int) TradeRecord {
		return TradeRecord{
			ID:         l.newID(),
			OrderID:    f.OrderID,
			Time:       f.Time,
			Instrument: code,
			Type:       typ,
			Direction:  f.Direction,
			Price:      f.Price,
			Qty:        qty,
			Fee:        f.FeePerLot.Mul(decimal.NewFromInt(int64(qty))),
			Reason:     f.Reason,
		}
	}

	pos, held := l.positions[code]
	var next *Position

	switch {
	case !held:
		next = &Position{Instrument: code, Direction: f.Direction, Qty: f.Qty, AvgPrice: f.Price}
		res.Records = append(res.Records, leg(Open, f.Qty))

	case pos.Direction == f.Direction:
		total := pos.Qty + f.Qty
		avg := pos.AvgPrice.Mul(decimal.NewFromInt(int64(pos.Qty))).
			Add(f.Price.Mul(decimal.NewFromInt(int64(f.Qty)))).
			Div(decimal.NewFromInt(int64(total)))
		next = &Position{Instrument: code, Direction: pos.Direction, Qty: total, AvgPrice: avg}
		res.Records = append(res.Records, leg(Open, f.Qty))

	default:
		closed := min(pos.Qty, f.Qty)
		res.Realized = f.Price.Sub(pos.AvgPrice).
			Mul(decimal.NewFromInt(int64(closed))).
			Mul(decimal.NewFromInt(int64(pos.Direction))).
			Mul(decimal.NewFromFloat(f.Instrument.Multiplier))
		res.Closed = true
		res.Win = res.Realized.IsPositive()

		rec := leg(Close, closed)
		rec.PnL = decimal.NewNullDecimal(res.Realized)
		res.Records = append(res.Records, rec)

		switch left, over := pos.Qty-closed, f.Qty-closed; {
		case left > 0:
			next = &Position{Instrument: code, Direction: pos.Direction, Qty: left, AvgPrice: pos.AvgPrice}
		case over > 0:
			next = &Position{Instrument: code, Direction: f.Direction, Qty: over, AvgPrice: f.Price}
			res.Records = append(res.Records, leg(Reverse, over))
		}
	}

	// commit
	if next == nil {
		delete(l.positions, code)
	} else {
		l.positions[code] = *next
		cp := *next
		res.Position = &cp
	}
	l.acct.Cash = l.acct.Cash.Sub(res.Fee).Add(res.Realized)
	if res.Closed {
		l.acct.TradeCount++
		if res.Win {
			l.acct.WinCount++
		}
	}
	l.history = append(l.history, res.Records...)
	res.Cash = l.acct.Cash
	return res
}
