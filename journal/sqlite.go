package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, session_id, order_id, time, instrument, type, direction, price, qty, fee, pnl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.SessionID, t.OrderID, t.Time.Unix(), t.Instrument, t.Type,
		t.Direction, t.Price, t.Qty, t.Fee, t.PnL, t.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(session_id, time, cursor, cash, equity, margin_used, free_margin, margin_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Time.Unix(), e.Cursor, e.Cash, e.Equity, e.MarginUsed, e.FreeMargin, e.MarginLevel,
	)
	return err
}

func (j *SQLite) RecordSession(s SessionRun) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO sessions
		(session_id, created, instrument, timeframe, start_time, end_time, bars, seed,
		 initial_balance, final_equity, net_pnl, return_pct, trades, wins, win_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.Created.Unix(), s.Instrument, s.Timeframe, s.Start.Unix(), s.End.Unix(), s.Bars, s.Seed,
		s.InitialBalance, s.FinalEquity, s.NetPnL, s.ReturnPct, s.Trades, s.Wins, s.WinRate,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
