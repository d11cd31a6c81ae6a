// journal/journal.go
package journal

import (
	"sync"
	"time"
)

// TradeRecord is the audit row for one fill leg.
type TradeRecord struct {
	TradeID    string
	SessionID  string
	OrderID    string
	Time       time.Time
	Instrument string
	Type       string // Open, Close, Reverse
	Direction  int
	Price      float64
	Qty        int
	Fee        float64
	PnL        *float64 // only set on Close legs
	Reason     string
}

// EquitySnapshot is written once per replayed bar.
type EquitySnapshot struct {
	SessionID   string
	Time        time.Time
	Cursor      int
	Cash        float64
	Equity      float64
	MarginUsed  float64
	FreeMargin  float64
	MarginLevel float64
}

// SessionRun summarises a settled session.
type SessionRun struct {
	SessionID      string
	Created        time.Time
	Instrument     string
	Timeframe      string
	Start          time.Time
	End            time.Time
	Bars           int
	Seed           int64
	InitialBalance float64
	FinalEquity    float64
	NetPnL         float64
	ReturnPct      float64
	Trades         int
	Wins           int
	WinRate        float64 // fraction, 0..1
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordSession(SessionRun) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) RecordSession(SessionRun) error    { return nil }
func (Nop) Close() error                      { return nil }

// Memory keeps records in memory. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	trades   []TradeRecord
	equity   []EquitySnapshot
	sessions []SessionRun
	closed   bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTrade(t TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}

func (m *Memory) RecordEquity(e EquitySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, e)
	return nil
}

func (m *Memory) RecordSession(s SessionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) Trades() []TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TradeRecord(nil), m.trades...)
}

func (m *Memory) Equity() []EquitySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EquitySnapshot(nil), m.equity...)
}

func (m *Memory) Sessions() []SessionRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SessionRun(nil), m.sessions...)
}

func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Tee writes every record to each journal in order and returns the first
// error. All journals are written even when one fails.
type Tee []Journal

func (t Tee) RecordTrade(r TradeRecord) error {
	return t.each(func(j Journal) error { return j.RecordTrade(r) })
}

func (t Tee) RecordEquity(e EquitySnapshot) error {
	return t.each(func(j Journal) error { return j.RecordEquity(e) })
}

func (t Tee) RecordSession(s SessionRun) error {
	return t.each(func(j Journal) error { return j.RecordSession(s) })
}

func (t Tee) Close() error {
	return t.each(Journal.Close)
}

func (t Tee) each(fn func(Journal) error) error {
	var first error
	for _, j := range t {
		if err := fn(j); err != nil && first == nil {
			first = err
		}
	}
	return first
}
