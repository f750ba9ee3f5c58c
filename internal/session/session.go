package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sdibella/simwatch/internal/feed"
	"github.com/sdibella/simwatch/internal/journal"
	"github.com/sdibella/simwatch/internal/metrics"
	"github.com/sdibella/simwatch/internal/sim"
	"github.com/sdibella/simwatch/internal/simapi"
)

// ErrClosed is returned for commands issued to a session that is not running.
var ErrClosed = errors.New("session closed")

type Options struct {
	Source    Source
	Transport feed.Transport
	// FeedURL maps a simulation id to its feed endpoint.
	FeedURL    func(simID string) string
	RetryDelay time.Duration

	// Recorder, if set, receives every applied change.
	Recorder journal.Recorder
	// OnUpdate, if set, is called on the session goroutine after each change.
	OnUpdate func(View)
}

// View is an immutable snapshot of a session with its derived metrics.
type View struct {
	SessionID string          `json:"session_id"`
	Origin    string          `json:"origin"`
	Connected bool            `json:"connected"`
	State     State           `json:"state"`
	Metrics   metrics.Metrics `json:"metrics"`
}

type controlKind int

const (
	controlPause controlKind = iota
	controlResume
	controlSpeed
	controlStopped
)

type control struct {
	kind  controlKind
	speed float64
}

// Session observes one simulation. All state changes happen on the goroutine
// running Run, one event at a time, each followed by a metrics recompute.
type Session struct {
	id    string
	simID string
	opts  Options

	events   chan feed.Event
	controls chan control
	link     chan struct{} // feed connection state changed
	done     chan struct{}
	started  chan struct{}

	// loop-owned
	state  *State
	origin Origin

	mu         sync.RWMutex
	view       View
	mgr        *feed.Manager
	feedCancel context.CancelFunc
	feedDone   chan struct{}
}

func New(simID string, opts Options) *Session {
	s := &Session{
		id:       newID(),
		simID:    simID,
		opts:     opts,
		events:   make(chan feed.Event, 64),
		controls: make(chan control),
		link:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		started:  make(chan struct{}),
	}
	s.view = View{SessionID: s.id, Origin: OriginFailed.String(), State: *newState(simID)}
	return s
}

func (s *Session) ID() string           { return s.id }
func (s *Session) SimulationID() string { return s.simID }

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// View returns the latest published snapshot.
func (s *Session) View() View {
	s.mu.RLock()
	v := s.view
	mgr := s.mgr
	s.mu.RUnlock()
	v.Connected = mgr != nil && mgr.Connected()
	return v
}

// Run resolves the initial state, opens the feed when the simulation is live
// and applies events until ctx is canceled. A resolution failure is returned
// before any state is published. Run may be called once.
func (s *Session) Run(ctx context.Context) error {
	close(s.started)
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The second fetch of the record runs alongside resolution. Its result
	// is applied on this goroutine and dropped if the session has ended.
	backfill := make(chan *simapi.Record, 1)
	go func() {
		rec, err := s.opts.Source.Record(ctx, s.simID)
		if err != nil {
			slog.Debug("record backfill unavailable", "id", s.simID, "err", err)
			return
		}
		backfill <- rec
	}()

	res := Resolve(ctx, s.opts.Source, s.simID)
	if res.Origin == OriginFailed {
		return res.Err
	}
	// Torn down while resolving: publish nothing and open nothing.
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = res.State
	s.origin = res.Origin
	slog.Info("session resolved", "session", s.id, "id", s.simID, "origin", s.origin, "status", s.state.Status, "samples", len(s.state.Series))
	s.recordStart()
	s.publish()

	defer s.stopFeed()
	if res.Connect {
		s.startFeed(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec := <-backfill:
			s.applyBackfill(rec)

		case ev := <-s.events:
			switch ev := ev.(type) {
			case *feed.TickEvent:
				s.applyTick(ev)
			case *feed.StoppedEvent:
				s.applyStopped(ev)
			}

		case c := <-s.controls:
			s.applyControl(c)

		case <-s.link:
		}
		s.publish()
	}
}

// Pause asks the runner to pause and marks the session paused right away.
func (s *Session) Pause(ctx context.Context) error {
	return s.submit(ctx, control{kind: controlPause})
}

func (s *Session) Resume(ctx context.Context) error {
	return s.submit(ctx, control{kind: controlResume})
}

// SetSpeed changes playback speed, clamped to [feed.MinSpeed, feed.MaxSpeed].
func (s *Session) SetSpeed(ctx context.Context, speed float64) error {
	return s.submit(ctx, control{kind: controlSpeed, speed: speed})
}

// Stop asks the server to stop the simulation. On success the session is
// marked stopped and its feed closed.
func (s *Session) Stop(ctx context.Context) error {
	if err := s.opts.Source.Stop(ctx, s.simID); err != nil {
		return err
	}
	return s.submit(ctx, control{kind: controlStopped})
}

func (s *Session) submit(ctx context.Context, c control) error {
	select {
	case <-s.started:
	default:
		return ErrClosed
	}
	select {
	case s.controls <- c:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) applyTick(ev *feed.TickEvent) {
	sample := s.state.ApplyTick(ev)
	if rec := s.opts.Recorder; rec != nil {
		s.logRecordErr(rec.Equity(s.id, sample))
		if ev.Trade != nil {
			s.logRecordErr(rec.Trades(s.id, *ev.Trade))
		}
	}
}

func (s *Session) applyStopped(ev *feed.StoppedEvent) {
	s.state.ApplyStopped(ev)
	slog.Info("simulation stopped", "session", s.id, "id", s.simID, "status", s.state.Status)
	s.recordStopped()
	s.stopFeed()
}

func (s *Session) applyBackfill(rec *simapi.Record) {
	if rec.InitialCash > 0 && rec.InitialCash != s.state.InitialCash {
		s.state.InitialCash = rec.InitialCash
		if r := s.opts.Recorder; r != nil {
			s.logRecordErr(r.InitialCash(s.id, rec.InitialCash))
		}
	}
	if s.state.BackfillTrades(rec.Trades) {
		slog.Debug("trade ledger backfilled", "session", s.id, "trades", len(rec.Trades))
		if r := s.opts.Recorder; r != nil {
			s.logRecordErr(r.Trades(s.id, rec.Trades...))
		}
	}
}

func (s *Session) applyControl(c control) {
	var msg []byte
	switch c.kind {
	case controlPause:
		msg = feed.PauseMessage()
		s.state.Paused = true
	case controlResume:
		msg = feed.ResumeMessage()
		s.state.Paused = false
	case controlSpeed:
		msg = feed.SpeedMessage(c.speed)
		s.state.Speed = feed.ClampSpeed(c.speed)
	case controlStopped:
		if !s.state.Status.Terminal() {
			s.state.Status = sim.StatusStopped
			s.recordStopped()
		}
		s.stopFeed()
		return
	}

	s.mu.RLock()
	mgr := s.mgr
	s.mu.RUnlock()
	if mgr != nil {
		mgr.Send(msg)
	}
}

func (s *Session) startFeed(ctx context.Context) {
	url := s.opts.FeedURL(s.simID)
	mgr := feed.NewManager(s.opts.Transport, url, s.opts.RetryDelay)
	mgr.OnStateChange(func(feed.State) {
		select {
		case s.link <- struct{}{}:
		default:
		}
	})
	feedCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.mgr = mgr
	s.feedCancel = cancel
	s.feedDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		err := mgr.Run(feedCtx, func(ev feed.Event) {
			select {
			case s.events <- ev:
			case <-feedCtx.Done():
			}
		})
		if err != nil && feedCtx.Err() == nil {
			slog.Error("feed error", "session", s.id, "err", err)
		}
	}()
}

// stopFeed tears the feed down and waits for it, so no reconnect can follow.
func (s *Session) stopFeed() {
	s.mu.Lock()
	cancel, done := s.feedCancel, s.feedDone
	s.mgr, s.feedCancel, s.feedDone = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Session) publish() {
	st := s.state.snapshot()
	v := View{
		SessionID: s.id,
		Origin:    s.origin.String(),
		State:     st,
		Metrics:   metrics.Compute(st.Series, st.Trades, st.InitialCash),
	}

	s.mu.Lock()
	s.view = v
	s.mu.Unlock()

	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate(s.View())
	}
}

func (s *Session) recordStart() {
	rec := s.opts.Recorder
	if rec == nil {
		return
	}
	s.logRecordErr(rec.Start(journal.SessionStart{
		SessionID:    s.id,
		SimulationID: s.simID,
		Origin:       s.origin.String(),
		Status:       string(s.state.Status),
		InitialCash:  s.state.InitialCash,
	}))
	s.logRecordErr(rec.Equity(s.id, s.state.Series...))
	s.logRecordErr(rec.Trades(s.id, s.state.Trades...))
}

func (s *Session) recordStopped() {
	if rec := s.opts.Recorder; rec != nil {
		s.logRecordErr(rec.Stopped(journal.Stopped{
			SessionID: s.id,
			Status:    string(s.state.Status),
			Equity:    sim.Float(s.state.Equity),
			Cash:      sim.Float(s.state.Cash),
		}))
	}
}

func (s *Session) logRecordErr(err error) {
	if err != nil {
		slog.Warn("journal write failed", "session", s.id, "err", err)
	}
}
