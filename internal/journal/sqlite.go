package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sdibella/simwatch/internal/sim"
)

// SQLite records observed sessions into a SQLite database.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) Start(s SessionStart) error {
	if s.Time == "" {
		s.Time = now()
	}
	_, err := j.db.Exec(`
		INSERT INTO sessions (session_id, simulation_id, origin, status, initial_cash, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.SimulationID, s.Origin, s.Status, s.InitialCash, s.Time,
	)
	return err
}

func (j *SQLite) Equity(sessionID string, samples ...sim.EquitySample) error {
	return j.inTx(func(tx *sql.Tx) error {
		for _, s := range samples {
			if _, err := tx.Exec(`INSERT INTO equity (session_id, ts, equity, price) VALUES (?, ?, ?, ?)`,
				sessionID, formatTime(s.Timestamp), s.Equity, s.Price); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *SQLite) Trades(sessionID string, trades ...sim.Trade) error {
	return j.inTx(func(tx *sql.Tx) error {
		for _, t := range trades {
			if _, err := tx.Exec(`
				INSERT INTO trades (session_id, ts, symbol, side, quantity, price, fee, pnl)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				sessionID, formatTime(t.Timestamp), t.Symbol, string(t.Side), t.Quantity, t.Price, t.Fee, t.PnL,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *SQLite) InitialCash(sessionID string, cash float64) error {
	_, err := j.db.Exec(`UPDATE sessions SET initial_cash = ? WHERE session_id = ?`, cash, sessionID)
	return err
}

func (j *SQLite) Stopped(s Stopped) error {
	if s.Time == "" {
		s.Time = now()
	}
	_, err := j.db.Exec(`UPDATE sessions SET status = ?, stopped_at = ? WHERE session_id = ?`,
		s.Status, s.Time, s.SessionID)
	return err
}

// Load rebuilds one session. An empty sessionID loads the most recent one.
func (j *SQLite) Load(ctx context.Context, sessionID string) (*Replay, error) {
	var row *sql.Row
	if sessionID == "" {
		row = j.db.QueryRowContext(ctx, `
			SELECT session_id, simulation_id, origin, status, initial_cash
			FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	} else {
		row = j.db.QueryRowContext(ctx, `
			SELECT session_id, simulation_id, origin, status, initial_cash
			FROM sessions WHERE session_id = ?`, sessionID)
	}

	r := &Replay{}
	if err := row.Scan(&r.SessionID, &r.SimulationID, &r.Origin, &r.Status, &r.InitialCash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no recorded session %q", sessionID)
		}
		return nil, err
	}

	eqRows, err := j.db.QueryContext(ctx,
		`SELECT ts, equity, price FROM equity WHERE session_id = ? ORDER BY rowid`, r.SessionID)
	if err != nil {
		return nil, err
	}
	defer eqRows.Close()
	for eqRows.Next() {
		var ts string
		var s sim.EquitySample
		var price sql.NullFloat64
		if err := eqRows.Scan(&ts, &s.Equity, &price); err != nil {
			return nil, err
		}
		if s.Timestamp, err = sim.ParseTime(ts); err != nil {
			return nil, err
		}
		if price.Valid {
			s.Price = sim.Float(price.Float64)
		}
		r.Series = sim.TrimSeries(append(r.Series, s))
	}
	if err := eqRows.Err(); err != nil {
		return nil, err
	}

	trRows, err := j.db.QueryContext(ctx, `
		SELECT ts, symbol, side, quantity, price, fee, pnl
		FROM trades WHERE session_id = ? ORDER BY rowid`, r.SessionID)
	if err != nil {
		return nil, err
	}
	defer trRows.Close()
	for trRows.Next() {
		var ts, side string
		var t sim.Trade
		var pnl sql.NullFloat64
		if err := trRows.Scan(&ts, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Fee, &pnl); err != nil {
			return nil, err
		}
		if t.Timestamp, err = sim.ParseTime(ts); err != nil {
			return nil, err
		}
		t.Side = sim.Side(side)
		if pnl.Valid {
			t.PnL = sim.Float(pnl.Float64)
		}
		r.Trades = append(r.Trades, t)
	}
	return r, trRows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func (j *SQLite) inTx(fn func(*sql.Tx) error) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func formatTime(t sim.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
