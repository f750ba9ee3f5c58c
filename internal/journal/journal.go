package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sdibella/simwatch/internal/sim"
)

// Recorder receives every change an observation session applies, in order.
type Recorder interface {
	Start(s SessionStart) error
	Equity(sessionID string, samples ...sim.EquitySample) error
	Trades(sessionID string, trades ...sim.Trade) error
	InitialCash(sessionID string, cash float64) error
	Stopped(s Stopped) error
	Close() error
}

// Journal is an append-only JSONL writer for observed session events.
type Journal struct {
	f  *os.File
	mu sync.Mutex
}

// New opens (or creates) the journal file in append mode.
func New(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Journal{f: f}, nil
}

// Log marshals event to JSON and appends it as a single line.
func (j *Journal) Log(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err = j.f.Write(data); err != nil {
		return err
	}
	return j.f.Sync()
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

func (j *Journal) Start(s SessionStart) error {
	s.Type = "session_start"
	if s.Time == "" {
		s.Time = now()
	}
	return j.Log(s)
}

func (j *Journal) Equity(sessionID string, samples ...sim.EquitySample) error {
	for _, s := range samples {
		if err := j.Log(EquityEvent{Type: "equity", SessionID: sessionID, EquitySample: s}); err != nil {
			return err
		}
	}
	return nil
}

func (j *Journal) Trades(sessionID string, trades ...sim.Trade) error {
	for _, t := range trades {
		if err := j.Log(TradeEvent{Type: "trade", SessionID: sessionID, Trade: t}); err != nil {
			return err
		}
	}
	return nil
}

func (j *Journal) InitialCash(sessionID string, cash float64) error {
	return j.Log(CashEvent{Type: "initial_cash", Time: now(), SessionID: sessionID, InitialCash: cash})
}

func (j *Journal) Stopped(s Stopped) error {
	s.Type = "stopped"
	if s.Time == "" {
		s.Time = now()
	}
	return j.Log(s)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Event types.

type SessionStart struct {
	Type         string  `json:"type"`
	Time         string  `json:"time"`
	SessionID    string  `json:"session_id"`
	SimulationID string  `json:"simulation_id"`
	Origin       string  `json:"origin"` // "live" or "historical"
	Status       string  `json:"status"`
	InitialCash  float64 `json:"initial_cash"`
}

type EquityEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	sim.EquitySample
}

type TradeEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	sim.Trade
}

type CashEvent struct {
	Type        string  `json:"type"`
	Time        string  `json:"time"`
	SessionID   string  `json:"session_id"`
	InitialCash float64 `json:"initial_cash"`
}

type Stopped struct {
	Type      string   `json:"type"`
	Time      string   `json:"time"`
	SessionID string   `json:"session_id"`
	Status    string   `json:"status"`
	Equity    *float64 `json:"equity,omitempty"`
	Cash      *float64 `json:"cash,omitempty"`
}

// Open returns the recorder for format ("jsonl" or "sqlite") writing to path.
func Open(format, path string) (Recorder, error) {
	switch format {
	case "jsonl", "":
		j, err := New(path)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "sqlite":
		db, err := NewSQLite(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown journal format %q", format)
	}
}
