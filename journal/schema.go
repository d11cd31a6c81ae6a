// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	time INTEGER NOT NULL,
	instrument TEXT NOT NULL,
	type TEXT NOT NULL,
	direction INTEGER NOT NULL,
	price REAL NOT NULL,
	qty INTEGER NOT NULL,
	fee REAL NOT NULL,
	pnl REAL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id, time);

CREATE TABLE IF NOT EXISTS equity (
	session_id TEXT NOT NULL,
	time INTEGER NOT NULL,
	cursor INTEGER NOT NULL,
	cash REAL NOT NULL,
	equity REAL NOT NULL,
	margin_used REAL NOT NULL,
	free_margin REAL NOT NULL,
	margin_level REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_session ON equity(session_id, time);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	created INTEGER NOT NULL,
	instrument TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	start_time INTEGER NOT NULL,
	end_time INTEGER NOT NULL,
	bars INTEGER NOT NULL,
	seed INTEGER NOT NULL,
	initial_balance REAL NOT NULL,
	final_equity REAL NOT NULL,
	net_pnl REAL NOT NULL,
	return_pct REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	win_rate REAL NOT NULL
);
`
