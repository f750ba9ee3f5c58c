package session

import (
	"github.com/sdibella/simwatch/internal/feed"
	"github.com/sdibella/simwatch/internal/sim"
)

// Seed replaces the series with a bulk load. It applies at most once, and
// never after a tick has been appended.
func (s *State) Seed(samples []sim.EquitySample) bool {
	if s.seeded || s.ticked || len(samples) == 0 {
		return false
	}
	s.Series = append([]sim.EquitySample(nil), sim.TrimSeries(samples)...)
	s.seeded = true
	return true
}

// ApplyTick folds one tick into the state and returns the sample it
// appended. Positions are replaced, not merged.
func (s *State) ApplyTick(ev *feed.TickEvent) sim.EquitySample {
	s.ticked = true
	s.Equity = ev.Equity
	s.Cash = ev.Cash
	s.Positions = append([]sim.Position(nil), ev.Positions...)
	s.TickCount = ev.Tick

	sample := sim.EquitySample{Timestamp: ev.Timestamp, Equity: ev.Equity}
	if price, ok := ev.Prices.First(); ok {
		sample.Price = sim.Float(price)
	}
	s.Series = sim.TrimSeries(append(s.Series, sample))

	if ev.Trade != nil {
		s.Trades = append(s.Trades, *ev.Trade)
	}
	return sample
}

// ApplyStopped records the end of the run. The series is left as is.
func (s *State) ApplyStopped(ev *feed.StoppedEvent) {
	s.Status = sim.StatusStopped
	if ev.Status == sim.StatusCompleted {
		s.Status = sim.StatusCompleted
	}
	if ev.Equity != nil {
		s.Equity = *ev.Equity
	}
	if ev.Cash != nil {
		s.Cash = *ev.Cash
	}
}

// BackfillTrades fills an empty ledger. A non-empty ledger may already hold
// trades received over the feed and is left alone.
func (s *State) BackfillTrades(trades []sim.Trade) bool {
	if len(s.Trades) > 0 || len(trades) == 0 {
		return false
	}
	s.Trades = append([]sim.Trade(nil), trades...)
	return true
}
