package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sdibella/simwatch/internal/sim"
	"github.com/sdibella/simwatch/internal/simapi"
)

// ErrUnresolved means neither the live runner nor the historical record
// answered for a simulation.
var ErrUnresolved = errors.New("simulation state unavailable")

// Source is the request/response side of the server.
type Source interface {
	Runner(ctx context.Context, id string) (*simapi.RunnerState, error)
	Record(ctx context.Context, id string) (*simapi.Record, error)
	Stop(ctx context.Context, id string) error
}

// Origin tags which source a Resolution came from.
type Origin int

const (
	OriginFailed Origin = iota
	OriginLive
	OriginHistorical
)

func (o Origin) String() string {
	switch o {
	case OriginLive:
		return "live"
	case OriginHistorical:
		return "historical"
	}
	return "failed"
}

// Resolution is the initial state of a session and whether to open the feed.
type Resolution struct {
	Origin  Origin
	State   *State
	Connect bool
	Err     error
}

// Resolve asks the live runner first and falls back to the historical record.
// A failed resolution carries no state.
func Resolve(ctx context.Context, src Source, id string) Resolution {
	rs, runnerErr := src.Runner(ctx, id)
	if runnerErr == nil {
		st := fromRunner(id, rs)
		return Resolution{Origin: OriginLive, State: st, Connect: st.Live()}
	}
	slog.Debug("runner unavailable, trying record", "id", id, "err", runnerErr)

	if err := ctx.Err(); err != nil {
		return Resolution{Origin: OriginFailed, Err: err}
	}

	rec, recordErr := src.Record(ctx, id)
	if recordErr == nil {
		return Resolution{Origin: OriginHistorical, State: fromRecord(id, rec)}
	}
	if err := ctx.Err(); err != nil {
		return Resolution{Origin: OriginFailed, Err: err}
	}

	return Resolution{
		Origin: OriginFailed,
		Err:    fmt.Errorf("%w: %s: runner: %v; record: %v", ErrUnresolved, id, runnerErr, recordErr),
	}
}

func fromRunner(id string, rs *simapi.RunnerState) *State {
	st := newState(id)
	st.RunnerAlive = true
	st.Status = sim.ParseStatus(rs.Status)
	st.Equity = rs.Equity
	st.Cash = rs.Cash
	st.Positions = rs.Positions
	st.TickCount = rs.TickCount
	st.Speed = rs.Speed
	st.Paused = rs.Paused
	if rs.Error != nil {
		st.ErrorMessage = *rs.Error
	}
	st.Seed(rs.EquityCurve)
	return st
}

func fromRecord(id string, rec *simapi.Record) *State {
	st := newState(id)
	st.Status = sim.ParseStatus(rec.Status)
	// A record that still says running has lost its runner.
	if st.Status == sim.StatusRunning {
		st.Status = sim.StatusStopped
	}
	st.Trades = append([]sim.Trade(nil), rec.Trades...)
	if rec.InitialCash > 0 {
		st.InitialCash = rec.InitialCash
	}
	if rec.Speed > 0 {
		st.Speed = rec.Speed
	}
	if rec.ErrorMessage != nil {
		st.ErrorMessage = *rec.ErrorMessage
	}
	if fm := rec.FinalMetrics; fm != nil {
		st.Equity = fm.Equity
		st.Cash = fm.Cash
		st.Seed(fm.EquityCurve)
	}
	return st
}
