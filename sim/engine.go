package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/journal"
	"github.com/rustyeddy/replaytrader/market"
	"github.com/rustyeddy/replaytrader/pkg/id"
)

var (
	ErrInvalidInput       = broker.ErrInvalidInput
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrNoActiveBar        = errors.New("no active bar")
	ErrUnknownOrder       = errors.New("unknown order")
	ErrUnknownInstrument  = errors.New("unknown instrument")
	ErrNoPosition         = errors.New("no open position")
)

// Status is the outcome of a submission.
type Status string

const (
	StatusFilled   Status = "filled"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
)

type Submission struct {
	Status Status      `json:"status"`
	Order  Order       `json:"order"`
	Fill   *FillResult `json:"fill,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// Rejection is a triggered order dropped for lack of margin.
type Rejection struct {
	Order  Order  `json:"order"`
	Reason string `json:"reason"`
}

// Evaluation is what one bar did to the book.
type Evaluation struct {
	Fills      []FillResult
	Rejections []Rejection
}

// Engine matches orders against the current marks and books fills into
// the ledger. It is safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	catalog *market.Catalog
	marks   *market.MarkStore
	book    *Book
	ledger  *Ledger
	journal journal.Journal
	log     zerolog.Logger
	session string
	newID   func() string
}

type Option func(*Engine)

func WithJournal(j journal.Journal) Option { return func(e *Engine) { e.journal = j } }

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithSessionID tags journal rows.
func WithSessionID(s string) Option { return func(e *Engine) { e.session = s } }

// WithIDFunc replaces the ULID generator, mostly for tests.
func WithIDFunc(f func() string) Option { return func(e *Engine) { e.newID = f } }

func NewEngine(catalog *market.Catalog, initial decimal.Decimal, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		marks:   market.NewMarkStore(),
		book:    NewBook(),
		journal: journal.Nop{},
		log:     zerolog.Nop(),
		newID:   id.New,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ledger = NewLedger(initial, e.newID)
	return e
}

// SetSessionID changes the id written to journal rows.
func (e *Engine) SetSessionID(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = s
}

// Reset drops marks, pending orders, positions and history.
func (e *Engine) Reset(initial decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.marks.Reset()
	e.book.Clear()
	e.ledger.Reset(initial)
}

// Mark returns the current bar for code.
func (e *Engine) Mark(code string) (market.Mark, error) {
	return e.marks.Get(code)
}

// Submit validates req and either fills it at the current close, rests it
// in the book or rejects it. A margin rejection returns both a rejected
// Submission and ErrInsufficientMargin.
func (e *Engine) Submit(req broker.OrderRequest) (Submission, error) {
	return e.submit(req, ReasonOrder)
}

func (e *Engine) submit(req broker.OrderRequest, reason string) (Submission, error) {
	if err := req.Validate(); err != nil {
		return Submission{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	in, ok := e.catalog.Get(req.Instrument)
	if !ok {
		return Submission{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, req.Instrument)
	}
	mark, err := e.marks.Get(in.Code)
	if err != nil {
		return Submission{}, fmt.Errorf("submit %s: %w", in.Code, ErrNoActiveBar)
	}

	o := Order{
		ID:         e.newID(),
		Instrument: in.Code,
		Kind:       req.Kind,
		Direction:  req.Direction,
		Qty:        req.Qty,
		Price:      req.Price,
		Time:       mark.Time,
	}
	if o.Kind == broker.Market {
		o.Price = 0
	}

	if o.Kind == broker.Stop || (o.Kind == broker.Limit && !marketable(o, mark.Close)) {
		e.book.Add(o)
		e.log.Debug().Str("order", o.ID).Str("instrument", o.Instrument).
			Str("kind", string(o.Kind)).Stringer("side", o.Direction).
			Int("qty", o.Qty).Float64("price", o.Price).Msg("order resting")
		return Submission{Status: StatusPending, Order: o}, nil
	}

	res, err := e.fillLocked(o, in, decimal.NewFromFloat(mark.Close), mark.Time, reason)
	if err != nil {
		return Submission{Status: StatusRejected, Order: o, Reason: err.Error()}, err
	}
	return Submission{Status: StatusFilled, Order: o, Fill: &res}, nil
}

// ClosePosition flattens code at market, paying the normal fee.
func (e *Engine) ClosePosition(code string) (Submission, error) {
	e.mu.Lock()
	pos, ok := e.ledger.Position(code)
	e.mu.Unlock()
	if !ok {
		return Submission{}, fmt.Errorf("close %s: %w", code, ErrNoPosition)
	}
	return e.submit(broker.OrderRequest{
		Instrument: code,
		Kind:       broker.Market,
		Direction:  pos.Direction.Opposite(),
		Qty:        pos.Qty,
	}, ReasonManual)
}

// Cancel removes a pending order.
func (e *Engine) Cancel(orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.book.Cancel(orderID) {
		return fmt.Errorf("cancel %q: %w", orderID, ErrUnknownOrder)
	}
	e.log.Debug().Str("order", orderID).Msg("order cancelled")
	return nil
}

// SetMarks installs bars without evaluating the book. Used for the
// warm-up position and for seeks, where skipped bars are not replayed.
func (e *Engine) SetMarks(marks []market.Mark) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range marks {
		e.marks.Set(m)
	}
}

// Advance installs the bars just replayed into and fills any pending
// orders they trigger, in submission order. Triggered orders that fail the
// margin check are dropped and reported as rejections.
func (e *Engine) Advance(marks []market.Mark) Evaluation {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, m := range marks {
		e.marks.Set(m)
	}

	triggers, remaining := e.book.Evaluate(func(code string) (market.Bar, bool) {
		m, err := e.marks.Get(code)
		return m.Bar, err == nil
	})
	e.book.replace(remaining)

	var ev Evaluation
	for _, tr := range triggers {
		in, ok := e.catalog.Get(tr.Order.Instrument)
		if !ok {
			ev.Rejections = append(ev.Rejections, Rejection{Order: tr.Order, Reason: ErrUnknownInstrument.Error()})
			continue
		}
		res, err := e.fillLocked(tr.Order, in, decimal.NewFromFloat(tr.Price), tr.Time, ReasonOrder)
		if err != nil {
			ev.Rejections = append(ev.Rejections, Rejection{Order: tr.Order, Reason: err.Error()})
			continue
		}
		ev.Fills = append(ev.Fills, res)
	}
	return ev
}

// Settle closes every position at its last close with no fee and cancels
// every pending order.
func (e *Engine) Settle() []FillResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.book.Clear()
	var out []FillResult
	for _, p := range e.ledger.Positions() {
		in, _ := e.catalog.Get(p.Instrument)
		price := p.AvgPrice
		var ts int64
		if m, err := e.marks.Get(p.Instrument); err == nil {
			price = decimal.NewFromFloat(m.Close)
			ts = m.Time
		}
		res := e.ledger.ApplyFill(Fill{
			Instrument: in,
			Direction:  p.Direction.Opposite(),
			Qty:        p.Qty,
			Price:      price,
			Time:       ts,
			FeePerLot:  decimal.Zero,
			Reason:     ReasonSettlement,
		})
		e.recordLocked(res.Records)
		out = append(out, res)
	}
	e.log.Info().Int("closed", len(out)).Str("cash", e.ledger.Account().Cash.StringFixed(2)).Msg("settled")
	return out
}

func (e *Engine) fillLocked(o Order, in market.Instrument, price decimal.Decimal, ts int64, reason string) (FillResult, error) {
	pos, held := e.ledger.Position(in.Code)
	if !held || pos.Direction == o.Direction {
		need := RequiredMargin(in, o.Qty, e.markLocked(in.Code, price))
		free := e.accountLocked().FreeMargin
		if need.GreaterThan(free) {
			e.log.Info().Str("order", o.ID).Str("required", need.StringFixed(2)).
				Str("free", free.StringFixed(2)).Msg("order rejected")
			return FillResult{}, fmt.Errorf("%w: need %s, free %s", ErrInsufficientMargin, need.StringFixed(2), free.StringFixed(2))
		}
	}

	res := e.ledger.ApplyFill(Fill{
		OrderID:    o.ID,
		Instrument: in,
		Direction:  o.Direction,
		Qty:        o.Qty,
		Price:      price,
		Time:       ts,
		FeePerLot:  decimal.NewFromFloat(in.Fee),
		Reason:     reason,
	})
	e.recordLocked(res.Records)
	e.log.Debug().Str("order", o.ID).Str("instrument", in.Code).Stringer("side", o.Direction).
		Int("qty", o.Qty).Str("price", price.String()).Str("realized", res.Realized.String()).Msg("fill")
	return res, nil
}

// markLocked is the current close of code, or fallback when it has no bar.
func (e *Engine) markLocked(code string, fallback decimal.Decimal) decimal.Decimal {
	m, err := e.marks.Get(code)
	if err != nil {
		return fallback
	}
	return decimal.NewFromFloat(m.Close)
}

func (e *Engine) recordLocked(records []TradeRecord) {
	for _, r := range records {
		if err := e.journal.RecordTrade(journalRecord(e.session, r)); err != nil {
			e.log.Error().Err(err).Str("trade", r.ID).Msg("journal trade")
		}
	}
}

func journalRecord(session string, r TradeRecord) journal.TradeRecord {
	jr := journal.TradeRecord{
		TradeID:    r.ID,
		SessionID:  session,
		OrderID:    r.OrderID,
		Time:       time.Unix(r.Time, 0).UTC(),
		Instrument: r.Instrument,
		Type:       string(r.Type),
		Direction:  int(r.Direction),
		Price:      r.Price.InexactFloat64(),
		Qty:        r.Qty,
		Fee:        r.Fee.InexactFloat64(),
		Reason:     r.Reason,
	}
	if r.PnL.Valid {
		v := r.PnL.Decimal.InexactFloat64()
		jr.PnL = &v
	}
	return jr
}

// Account values the ledger at the current marks.
func (e *Engine) Account() broker.Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accountLocked()
}

func (e *Engine) accountLocked() broker.Account {
	la := e.ledger.Account()
	floating, used := decimal.Zero, decimal.Zero
	for _, h := range e.holdingsLocked() {
		floating = floating.Add(h.FloatingPnL)
		used = used.Add(h.Margin)
	}
	equity := la.Cash.Add(floating)
	acct := broker.Account{
		Initial:     la.Initial,
		Cash:        la.Cash,
		Equity:      equity,
		FloatingPnL: floating,
		MarginUsed:  used,
		FreeMargin:  equity.Sub(used),
		MarginLevel: decimal.Zero,
		TradeCount:  la.TradeCount,
		WinCount:    la.WinCount,
	}
	if used.IsPositive() {
		acct.MarginLevel = equity.DivRound(used, 4)
	}
	return acct
}

// Holdings values every open position at its mark. A position without a
// mark is valued at its average price.
func (e *Engine) Holdings() []Holding {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.holdingsLocked()
}

func (e *Engine) holdingsLocked() []Holding {
	positions := e.ledger.Positions()
	out := make([]Holding, 0, len(positions))
	for _, p := range positions {
		in, _ := e.catalog.Get(p.Instrument)
		mark := p.AvgPrice
		if m, err := e.marks.Get(p.Instrument); err == nil {
			mark = decimal.NewFromFloat(m.Close)
		}
		out = append(out, Holding{
			Position:    p,
			Mark:        mark,
			FloatingPnL: p.FloatingPnL(mark, in),
			Margin:      p.Margin(mark, in),
		})
	}
	return out
}

func (e *Engine) Position(code string) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Position(code)
}

func (e *Engine) Positions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Positions()
}

// Pending returns resting orders in submission order.
func (e *Engine) Pending() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Orders()
}

func (e *Engine) History() []TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.History()
}

// Markers returns chart markers for every trade so far.
func (e *Engine) Markers() []Marker {
	return Markers(e.History())
}
