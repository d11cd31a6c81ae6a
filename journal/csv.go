// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVJournal writes trades and equity to two files. Session summaries are
// not part of the CSV export.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

var (
	tradesHeader = []string{"trade_id", "session_id", "order_id", "time", "instrument", "type", "direction", "price", "qty", "fee", "pnl", "reason"}
	equityHeader = []string{"session_id", "time", "cursor", "cash", "equity", "margin_used", "free_margin", "margin_level"}
)

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	if err := tw.Write(tradesHeader); err != nil {
		return nil, err
	}
	if err := ew.Write(equityHeader); err != nil {
		return nil, err
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{tw, ew, tf, ef}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	pnl := ""
	if t.PnL != nil {
		pnl = f(*t.PnL)
	}
	err := j.trades.Write([]string{
		t.TradeID,
		t.SessionID,
		t.OrderID,
		t.Time.UTC().Format(time.RFC3339),
		t.Instrument,
		t.Type,
		strconv.Itoa(t.Direction),
		f(t.Price),
		strconv.Itoa(t.Qty),
		f(t.Fee),
		pnl,
		t.Reason,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.SessionID,
		e.Time.UTC().Format(time.RFC3339),
		strconv.Itoa(e.Cursor),
		f(e.Cash),
		f(e.Equity),
		f(e.MarginUsed),
		f(e.FreeMargin),
		f(e.MarginLevel),
	})
	if err != nil {
		return err
	}

	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) RecordSession(SessionRun) error { return nil }

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	if err := j.ef.Close(); err != nil {
		return err
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
