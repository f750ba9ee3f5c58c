package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sdibella/simwatch/internal/sim"
)

// Event is a parsed inbound feed message: *TickEvent or *StoppedEvent.
type Event interface {
	isEvent()
}

// TickEvent is one simulation time-step.
type TickEvent struct {
	Tick      int
	Timestamp sim.Time
	Equity    float64
	Cash      float64
	Positions []sim.Position
	Prices    Prices
	Trade     *sim.Trade
}

// StoppedEvent announces the end of the run.
type StoppedEvent struct {
	Status sim.Status
	Equity *float64
	Cash   *float64
}

func (*TickEvent) isEvent()    {}
func (*StoppedEvent) isEvent() {}

// Prices is the per-symbol price map of a tick, keeping the order the server
// sent the symbols in.
type Prices struct {
	Symbols []string
	Values  map[string]float64
}

// First returns the price of the first symbol on the wire.
func (p Prices) First() (float64, bool) {
	if len(p.Symbols) == 0 {
		return 0, false
	}
	return p.Values[p.Symbols[0]], true
}

func (p *Prices) UnmarshalJSON(data []byte) error {
	*p = Prices{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("prices: want object, got %v", tok)
	}

	p.Values = make(map[string]float64)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		sym := tok.(string)
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("prices[%s]: %w", sym, err)
		}
		if _, seen := p.Values[sym]; !seen {
			p.Symbols = append(p.Symbols, sym)
		}
		p.Values[sym] = v
	}
	_, err = dec.Token()
	return err
}

var errMalformed = errors.New("malformed feed message")

type wsMessage struct {
	Type string `json:"type"`
}

type wsTick struct {
	Tick      int            `json:"tick"`
	Timestamp sim.Time       `json:"timestamp"`
	Equity    *float64       `json:"equity"`
	Cash      float64        `json:"cash"`
	Positions []sim.Position `json:"positions"`
	Prices    Prices         `json:"prices"`
	Trade     *wsTrade       `json:"trade"`
}

type wsTrade struct {
	Symbol   string   `json:"symbol"`
	Side     sim.Side `json:"side"`
	Quantity float64  `json:"quantity"`
	Price    float64  `json:"price"`
	Fee      *float64 `json:"fee"`
	PnL      *float64 `json:"pnl"`
}

type wsStopped struct {
	Status string   `json:"status"`
	Equity *float64 `json:"equity"`
	Cash   *float64 `json:"cash"`
}

// ParseEvent decodes one inbound message. Unknown types and payloads missing
// required fields are reported as malformed.
func ParseEvent(data []byte) (Event, error) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	switch msg.Type {
	case "tick":
		var t wsTick
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("%w: tick: %v", errMalformed, err)
		}
		if t.Equity == nil || t.Timestamp.IsZero() {
			return nil, fmt.Errorf("%w: tick without equity or timestamp", errMalformed)
		}
		ev := &TickEvent{
			Tick:      t.Tick,
			Timestamp: t.Timestamp,
			Equity:    *t.Equity,
			Cash:      t.Cash,
			Positions: t.Positions,
			Prices:    t.Prices,
		}
		if t.Trade != nil {
			// The trade carries the tick's timestamp and defaults fee to zero.
			tr := sim.Trade{
				Timestamp: t.Timestamp,
				Symbol:    t.Trade.Symbol,
				Side:      t.Trade.Side,
				Quantity:  t.Trade.Quantity,
				Price:     t.Trade.Price,
				PnL:       t.Trade.PnL,
			}
			if t.Trade.Fee != nil {
				tr.Fee = *t.Trade.Fee
			}
			ev.Trade = &tr
		}
		return ev, nil

	case "stopped":
		var s wsStopped
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%w: stopped: %v", errMalformed, err)
		}
		status := sim.StatusStopped
		if sim.ParseStatus(s.Status) == sim.StatusCompleted {
			status = sim.StatusCompleted
		}
		return &StoppedEvent{Status: status, Equity: s.Equity, Cash: s.Cash}, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", errMalformed, msg.Type)
	}
}

// Control messages sent to the runner.

type controlMessage struct {
	Type  string   `json:"type"`
	Speed *float64 `json:"speed,omitempty"`
}

const (
	MinSpeed = 1
	MaxSpeed = 50
)

func PauseMessage() []byte  { return mustMarshal(controlMessage{Type: "pause"}) }
func ResumeMessage() []byte { return mustMarshal(controlMessage{Type: "resume"}) }

// SpeedMessage builds a set_speed command, clamping speed to [MinSpeed, MaxSpeed].
func SpeedMessage(speed float64) []byte {
	return mustMarshal(controlMessage{Type: "set_speed", Speed: sim.Float(ClampSpeed(speed))})
}

func ClampSpeed(speed float64) float64 {
	return max(MinSpeed, min(speed, MaxSpeed))
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
