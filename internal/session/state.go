package session

import "github.com/sdibella/simwatch/internal/sim"

// MaxSeriesLen caps the equity series; older samples are evicted first.
const MaxSeriesLen = sim.MaxSeriesLen

// DefaultInitialCash is assumed until a historical record supplies the real one.
const DefaultInitialCash = 100000

// State is everything one observation session knows about a simulation.
// It is owned by the session's loop goroutine.
//
// Series and Trades only ever grow at the end, shrink at the front, or get
// replaced wholesale; elements are never written in place. Snapshots can
// therefore share their backing arrays.
type State struct {
	SimulationID string         `json:"simulation_id"`
	Status       sim.Status     `json:"status"`
	RunnerAlive  bool           `json:"runner_alive"`
	Paused       bool           `json:"paused"`
	Equity       float64        `json:"equity"`
	Cash         float64        `json:"cash"`
	Positions    []sim.Position `json:"positions"`
	TickCount    int            `json:"tick_count"`
	Speed        float64        `json:"speed"`
	InitialCash  float64        `json:"initial_cash"`
	ErrorMessage string         `json:"error_message,omitempty"`

	Series []sim.EquitySample `json:"-"`
	Trades []sim.Trade        `json:"-"`

	seeded bool
	ticked bool
}

func newState(simID string) *State {
	return &State{
		SimulationID: simID,
		Status:       sim.StatusLoading,
		Speed:        1,
		InitialCash:  DefaultInitialCash,
	}
}

// snapshot returns a copy whose slices are capped, so appends by the holder
// can never write into the live state's arrays.
func (s *State) snapshot() State {
	c := *s
	c.Series = s.Series[:len(s.Series):len(s.Series)]
	c.Trades = s.Trades[:len(s.Trades):len(s.Trades)]
	c.Positions = s.Positions[:len(s.Positions):len(s.Positions)]
	return c
}

// Live reports whether a feed connection is warranted.
func (s *State) Live() bool {
	return s.RunnerAlive && s.Status == sim.StatusRunning
}
