package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sdibella/simwatch/internal/sim"
)

// Replay is one observation session rebuilt from a journal.
type Replay struct {
	SessionID    string
	SimulationID string
	Origin       string
	Status       string
	InitialCash  float64
	Series       []sim.EquitySample
	Trades       []sim.Trade
}

// ReadFile parses a JSONL journal and returns its sessions in the order they
// started. Each series keeps the same window the live view does. Events for a session id never seen in a session_start line are
// skipped.
func ReadFile(filename string) ([]*Replay, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file %s: %w", filename, err)
	}
	defer f.Close()

	var sessions []*Replay
	byID := make(map[string]*Replay)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(line) == 0 {
			continue
		}

		var typeOnly struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(line, &typeOnly); err != nil {
			return nil, fmt.Errorf("failed to parse type field at line %d: %w", lineNum, err)
		}

		if typeOnly.Type == "session_start" {
			var ss SessionStart
			if err := json.Unmarshal(line, &ss); err != nil {
				return nil, fmt.Errorf("failed to parse session_start at line %d: %w", lineNum, err)
			}
			r := &Replay{
				SessionID:    ss.SessionID,
				SimulationID: ss.SimulationID,
				Origin:       ss.Origin,
				Status:       ss.Status,
				InitialCash:  ss.InitialCash,
			}
			byID[ss.SessionID] = r
			sessions = append(sessions, r)
			continue
		}

		r := byID[typeOnly.SessionID]
		if r == nil {
			continue
		}

		switch typeOnly.Type {
		case "equity":
			var ev EquityEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				return nil, fmt.Errorf("failed to parse equity at line %d: %w", lineNum, err)
			}
			r.Series = sim.TrimSeries(append(r.Series, ev.EquitySample))

		case "trade":
			var ev TradeEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				return nil, fmt.Errorf("failed to parse trade at line %d: %w", lineNum, err)
			}
			r.Trades = append(r.Trades, ev.Trade)

		case "initial_cash":
			var ev CashEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				return nil, fmt.Errorf("failed to parse initial_cash at line %d: %w", lineNum, err)
			}
			r.InitialCash = ev.InitialCash

		case "stopped":
			var ev Stopped
			if err := json.Unmarshal(line, &ev); err != nil {
				return nil, fmt.Errorf("failed to parse stopped at line %d: %w", lineNum, err)
			}
			r.Status = ev.Status
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading journal file: %w", err)
	}

	return sessions, nil
}
