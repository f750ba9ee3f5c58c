package session

import (
	"context"
	"log/slog"
	"sync"
)

// Observer holds the session for the simulation currently being watched.
// Observing another id tears the old session down and starts a fresh one;
// nothing carries over between them.
type Observer struct {
	opts Options

	// switchMu serializes Observe and Close so each switch tears down
	// exactly the session it replaces.
	switchMu sync.Mutex

	mu     sync.Mutex
	cur    *Session
	cancel context.CancelFunc
}

func NewObserver(opts Options) *Observer {
	return &Observer{opts: opts}
}

// Observe switches to simID and returns the new session together with a
// channel that receives its Run result.
func (o *Observer) Observe(ctx context.Context, simID string) (*Session, <-chan error) {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()
	o.closeCurrent()

	s := New(simID, o.opts)
	ctx, cancel := context.WithCancel(ctx)
	errs := make(chan error, 1)

	o.mu.Lock()
	o.cur, o.cancel = s, cancel
	o.mu.Unlock()

	go func() {
		err := s.Run(ctx)
		if err != nil && ctx.Err() == nil {
			slog.Error("session ended", "session", s.ID(), "id", simID, "err", err)
		}
		errs <- err
	}()
	return s, errs
}

// Current returns the active session, or nil.
func (o *Observer) Current() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cur
}

// Close tears down the active session and waits for it to finish.
func (o *Observer) Close() {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()
	o.closeCurrent()
}

func (o *Observer) closeCurrent() {
	o.mu.Lock()
	s, cancel := o.cur, o.cancel
	o.cur, o.cancel = nil, nil
	o.mu.Unlock()

	if s == nil {
		return
	}
	cancel()
	<-s.Done()
}
