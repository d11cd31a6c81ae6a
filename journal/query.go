package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tradeColumns = `trade_id, session_id, order_id, time, instrument, type, direction, price, qty, fee, pnl, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var (
		rec TradeRecord
		ts  int64
		pnl sql.NullFloat64
	)
	err := s.Scan(
		&rec.TradeID,
		&rec.SessionID,
		&rec.OrderID,
		&ts,
		&rec.Instrument,
		&rec.Type,
		&rec.Direction,
		&rec.Price,
		&rec.Qty,
		&rec.Fee,
		&pnl,
		&rec.Reason,
	)
	if err != nil {
		return TradeRecord{}, err
	}
	rec.Time = time.Unix(ts, 0).UTC()
	if pnl.Valid {
		v := pnl.Float64
		rec.PnL = &v
	}
	return rec, nil
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTrades returns a session's trades in fill order.
func (j *SQLite) ListTrades(sessionID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`SELECT `+tradeColumns+` FROM trades
		WHERE session_id = ?
		ORDER BY time ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquity returns a session's equity curve.
func (j *SQLite) ListEquity(sessionID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT session_id, time, cursor, cash, equity, margin_used, free_margin, margin_level
		FROM equity
		WHERE session_id = ?
		ORDER BY time ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var (
			e  EquitySnapshot
			ts int64
		)
		if err := rows.Scan(&e.SessionID, &ts, &e.Cursor, &e.Cash, &e.Equity, &e.MarginUsed, &e.FreeMargin, &e.MarginLevel); err != nil {
			return nil, err
		}
		e.Time = time.Unix(ts, 0).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession returns the summary of a settled session.
func (j *SQLite) GetSession(sessionID string) (SessionRun, error) {
	var (
		s                   SessionRun
		created, start, end int64
	)
	err := j.db.QueryRow(`
		SELECT session_id, created, instrument, timeframe, start_time, end_time, bars, seed,
		       initial_balance, final_equity, net_pnl, return_pct, trades, wins, win_rate
		FROM sessions WHERE session_id = ?`, sessionID).Scan(
		&s.SessionID, &created, &s.Instrument, &s.Timeframe, &start, &end, &s.Bars, &s.Seed,
		&s.InitialBalance, &s.FinalEquity, &s.NetPnL, &s.ReturnPct, &s.Trades, &s.Wins, &s.WinRate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRun{}, fmt.Errorf("session %q not found", sessionID)
		}
		return SessionRun{}, err
	}
	s.Created = time.Unix(created, 0).UTC()
	s.Start = time.Unix(start, 0).UTC()
	s.End = time.Unix(end, 0).UTC()
	return s, nil
}
