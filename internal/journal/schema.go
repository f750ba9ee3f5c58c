package journal

const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	simulation_id TEXT NOT NULL,
	origin TEXT NOT NULL,
	status TEXT NOT NULL,
	initial_cash REAL NOT NULL,
	started_at TEXT NOT NULL,
	stopped_at TEXT
);

CREATE TABLE IF NOT EXISTS equity (
	session_id TEXT NOT NULL,
	ts TEXT NOT NULL,
	equity REAL NOT NULL,
	price REAL
);

CREATE TABLE IF NOT EXISTS trades (
	session_id TEXT NOT NULL,
	ts TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	fee REAL NOT NULL,
	pnl REAL
);

CREATE INDEX IF NOT EXISTS idx_equity_session ON equity(session_id);
CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id);
`
