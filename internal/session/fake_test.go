package session

import (
	"context"
	"sync"

	"github.com/sdibella/simwatch/internal/simapi"
)

// fakeSource serves canned runner/record responses. When recordGate is set,
// Record blocks until it is closed.
type fakeSource struct {
	mu         sync.Mutex
	runner     *simapi.RunnerState
	runnerErr  error
	record     *simapi.Record
	recordErr  error
	recordGate chan struct{}
	stopErr    error
	// onRunner, if set, runs at the start of every Runner call.
	onRunner func()

	runnerCalls int
	recordCalls int
	stops       []string
}

func (f *fakeSource) Runner(ctx context.Context, id string) (*simapi.RunnerState, error) {
	if f.onRunner != nil {
		f.onRunner()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runnerCalls++
	if f.runner == nil {
		if f.runnerErr != nil {
			return nil, f.runnerErr
		}
		return nil, simapi.ErrNotFound
	}
	rs := *f.runner
	return &rs, nil
}

func (f *fakeSource) Record(ctx context.Context, id string) (*simapi.Record, error) {
	f.mu.Lock()
	f.recordCalls++
	gate := f.recordGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record == nil {
		if f.recordErr != nil {
			return nil, f.recordErr
		}
		return nil, simapi.ErrNotFound
	}
	rec := *f.record
	return &rec, nil
}

func (f *fakeSource) Stop(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, id)
	return f.stopErr
}

func (f *fakeSource) stopCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stops...)
}
