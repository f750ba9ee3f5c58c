package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdibella/simwatch/internal/feed/feedtest"
	"github.com/sdibella/simwatch/internal/journal"
	"github.com/sdibella/simwatch/internal/sim"
	"github.com/sdibella/simwatch/internal/simapi"
)

const (
	waitFor = 2 * time.Second
	poll    = 5 * time.Millisecond
)

type harness struct {
	src  *fakeSource
	tr   *feedtest.Transport
	sess *Session

	cancel context.CancelFunc
	errc   chan error
}

func newHarness(t *testing.T, src *fakeSource, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{src: src, tr: feedtest.NewTransport(), errc: make(chan error, 1)}

	opts := Options{
		Source:     src,
		Transport:  h.tr,
		FeedURL:    func(id string) string { return "ws://test/ws/simulation/" + id },
		RetryDelay: 10 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.sess = New("sim-1", opts)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.errc <- h.sess.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.sess.Done()
	})
	return h
}

func (h *harness) conn(t *testing.T) *feedtest.Conn {
	t.Helper()
	select {
	case c := <-h.tr.Dialed:
		return c
	case <-time.After(waitFor):
		t.Fatal("feed never dialed")
		return nil
	}
}

func (h *harness) waitView(t *testing.T, cond func(View) bool) View {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.sess.View()) }, waitFor, poll)
	return h.sess.View()
}

func runningRunner() *fakeSource {
	return &fakeSource{runner: &simapi.RunnerState{
		Status:      "running",
		Equity:      100000,
		Cash:        100000,
		Speed:       1,
		EquityCurve: samples(3),
	}}
}

func TestSessionLiveFlow(t *testing.T) {
	h := newHarness(t, runningRunner())
	conn := h.conn(t)
	assert.Equal(t, "ws://test/ws/simulation/sim-1", h.tr.LastURL())

	v := h.waitView(t, func(v View) bool { return v.Connected })
	assert.Equal(t, "live", v.Origin)
	assert.True(t, v.State.RunnerAlive)
	assert.Len(t, v.State.Series, 3)

	conn.Push(`{"type":"tick","tick":4,"timestamp":"2024-01-01T00:03:00","equity":110000,"cash":5000,
		"positions":[{"symbol":"AAPL","quantity":500,"avg_price":190,"unrealized_pnl":10000}],"prices":{"AAPL":210}}`)
	conn.Push(`{"type":"tick","tick":5,"timestamp":"2024-01-01T00:04:00","equity":99000,"cash":5000,"positions":[],
		"prices":{"AAPL":188},"trade":{"symbol":"AAPL","side":"SELL","quantity":500,"price":188,"fee":9.4,"pnl":-1000}}`)

	v = h.waitView(t, func(v View) bool { return v.State.TickCount == 5 })
	require.Len(t, v.State.Series, 5)
	assert.Equal(t, 99000.0, v.State.Equity)
	assert.Empty(t, v.State.Positions)
	require.Len(t, v.State.Trades, 1)
	assert.Equal(t, 10.0, v.Metrics.MaxDrawdownPct)
	assert.Equal(t, -1.0, v.Metrics.ReturnPct)
	assert.Equal(t, 1, v.Metrics.TotalTrades)
	assert.Zero(t, v.Metrics.WinRate)

	conn.Push(`{"type":"stopped","status":"completed","equity":99100,"cash":99100}`)
	v = h.waitView(t, func(v View) bool { return v.State.Status == sim.StatusCompleted })
	assert.Equal(t, 99100.0, v.State.Equity)
	assert.Len(t, v.State.Series, 5, "stop leaves the series intact")

	select {
	case <-conn.Closed():
	case <-time.After(waitFor):
		t.Fatal("feed not closed after stop")
	}
	assert.False(t, h.sess.View().Connected)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, h.tr.Dials(), "no reconnect once the simulation stopped")
}

func TestSessionHistoricalNeverConnects(t *testing.T) {
	src := &fakeSource{record: &simapi.Record{Status: "running", InitialCash: 20000}}
	h := newHarness(t, src)

	v := h.waitView(t, func(v View) bool { return v.State.Status != sim.StatusLoading })
	assert.Equal(t, sim.StatusStopped, v.State.Status)
	assert.False(t, v.State.RunnerAlive)
	assert.Equal(t, "historical", v.Origin)
	assert.Equal(t, 20000.0, v.State.InitialCash)

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, h.tr.Dials())
}

func TestSessionResolutionFailure(t *testing.T) {
	h := newHarness(t, &fakeSource{})

	select {
	case err := <-h.errc:
		assert.ErrorIs(t, err, ErrUnresolved)
	case <-time.After(waitFor):
		t.Fatal("Run did not fail")
	}
	v := h.sess.View()
	assert.Equal(t, sim.StatusLoading, v.State.Status, "no partial state")
	assert.Empty(t, v.State.Series)
	assert.Zero(t, h.tr.Dials())
}

func TestSessionBackfillKeepsLiveLedger(t *testing.T) {
	src := runningRunner()
	src.recordGate = make(chan struct{})
	src.record = &simapi.Record{
		Status:      "running",
		InitialCash: 200000,
		Trades:      []sim.Trade{{Symbol: "OLD1"}, {Symbol: "OLD2"}},
	}
	h := newHarness(t, src)

	conn := h.conn(t)
	conn.Push(`{"type":"tick","tick":1,"timestamp":"2024-01-01T00:05:00","equity":100100,"cash":1,"positions":[],
		"trade":{"symbol":"LIVE","side":"BUY","quantity":1,"price":10}}`)
	h.waitView(t, func(v View) bool { return len(v.State.Trades) == 1 })

	close(src.recordGate)
	v := h.waitView(t, func(v View) bool { return v.State.InitialCash == 200000 })
	require.Len(t, v.State.Trades, 1)
	assert.Equal(t, "LIVE", v.State.Trades[0].Symbol)
}

func TestSessionBackfillFillsEmptyLedger(t *testing.T) {
	src := runningRunner()
	src.record = &simapi.Record{
		Status:      "running",
		InitialCash: 200000,
		Trades:      []sim.Trade{{Symbol: "OLD1"}, {Symbol: "OLD2"}},
	}
	h := newHarness(t, src)

	v := h.waitView(t, func(v View) bool { return len(v.State.Trades) == 2 })
	assert.Equal(t, 200000.0, v.State.InitialCash)
	assert.Equal(t, 2, v.Metrics.TotalTrades)
}

func TestSessionReconnectsAndTearsDown(t *testing.T) {
	h := newHarness(t, runningRunner(), func(o *Options) { o.RetryDelay = time.Hour })

	h.conn(t).Drop()
	h.waitView(t, func(v View) bool { return !v.Connected })
	assert.Equal(t, sim.StatusRunning, h.sess.View().State.Status, "connection loss is not surfaced")

	h.cancel()
	select {
	case err := <-h.errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after teardown")
	}

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, h.tr.Dials(), "no socket opened after teardown")
}

func TestSessionReconnectKeepsSeries(t *testing.T) {
	h := newHarness(t, runningRunner())

	first := h.conn(t)
	first.Push(`{"type":"tick","tick":1,"timestamp":"2024-01-01T00:05:00","equity":1,"cash":1,"positions":[]}`)
	first.Drop()

	second := h.conn(t)
	second.Push(`{"type":"tick","tick":2,"timestamp":"2024-01-01T00:06:00","equity":2,"cash":1,"positions":[]}`)

	v := h.waitView(t, func(v View) bool { return v.State.TickCount == 2 })
	assert.Len(t, v.State.Series, 5)
}

func TestSessionControls(t *testing.T) {
	h := newHarness(t, runningRunner())
	conn := h.conn(t)
	h.waitView(t, func(v View) bool { return v.Connected })

	ctx := context.Background()
	require.NoError(t, h.sess.Pause(ctx))
	v := h.waitView(t, func(v View) bool { return v.State.Paused })

	require.NoError(t, h.sess.SetSpeed(ctx, 80))
	v = h.waitView(t, func(v View) bool { return v.State.Speed == 50 })
	assert.True(t, v.State.Paused)

	require.NoError(t, h.sess.Resume(ctx))
	h.waitView(t, func(v View) bool { return !v.State.Paused })

	assert.Equal(t, []string{
		`{"type":"pause"}`,
		`{"type":"set_speed","speed":50}`,
		`{"type":"resume"}`,
	}, conn.Written())
}

func TestSessionControlsWithoutFeed(t *testing.T) {
	src := &fakeSource{runner: &simapi.RunnerState{Status: "completed"}}
	h := newHarness(t, src)
	h.waitView(t, func(v View) bool { return v.State.Status == sim.StatusCompleted })

	require.NoError(t, h.sess.SetSpeed(context.Background(), 7))
	v := h.waitView(t, func(v View) bool { return v.State.Speed == 7 })
	assert.False(t, v.Connected)
	assert.Zero(t, h.tr.Dials())
}

func TestSessionStop(t *testing.T) {
	h := newHarness(t, runningRunner())
	conn := h.conn(t)
	h.waitView(t, func(v View) bool { return v.Connected })

	require.NoError(t, h.sess.Stop(context.Background()))
	h.waitView(t, func(v View) bool { return v.State.Status == sim.StatusStopped })
	assert.Equal(t, []string{"sim-1"}, h.src.stopCalls())

	select {
	case <-conn.Closed():
	case <-time.After(waitFor):
		t.Fatal("feed not closed after stop")
	}
}

func TestSessionCommandsAfterClose(t *testing.T) {
	s := New("sim-1", Options{Source: &fakeSource{}})
	assert.ErrorIs(t, s.Pause(context.Background()), ErrClosed, "not started")

	_ = s.Run(context.Background())
	assert.ErrorIs(t, s.Resume(context.Background()), ErrClosed)
}

func TestSessionRecordsJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := journal.New(path)
	require.NoError(t, err)

	h := newHarness(t, runningRunner(), func(o *Options) { o.Recorder = j })
	conn := h.conn(t)
	conn.Push(`{"type":"tick","tick":1,"timestamp":"2024-01-01T00:05:00","equity":100500,"cash":1,"positions":[],
		"trade":{"symbol":"AAPL","side":"SELL","quantity":1,"price":10,"pnl":500}}`)
	conn.Push(`{"type":"stopped","status":"completed"}`)
	live := h.waitView(t, func(v View) bool { return v.State.Status == sim.StatusCompleted })

	h.cancel()
	<-h.sess.Done()
	require.NoError(t, j.Close())

	sessions, err := journal.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	r := sessions[0]
	assert.Equal(t, h.sess.ID(), r.SessionID)
	assert.Equal(t, "completed", r.Status)
	assert.Len(t, r.Series, 4)
	assert.Len(t, r.Trades, 1)
	assert.Equal(t, live.State.InitialCash, r.InitialCash)
}

func TestSessionOnUpdate(t *testing.T) {
	updates := make(chan View, 16)
	h := newHarness(t, runningRunner(), func(o *Options) {
		o.OnUpdate = func(v View) {
			select {
			case updates <- v:
			default:
			}
		}
	})

	select {
	case v := <-updates:
		assert.Equal(t, h.sess.ID(), v.SessionID)
		assert.Equal(t, sim.StatusRunning, v.State.Status)
	case <-time.After(waitFor):
		t.Fatal("no update published")
	}
}

func TestObserverSwitchesSessions(t *testing.T) {
	src := runningRunner()
	tr := feedtest.NewTransport()
	o := NewObserver(Options{
		Source:     src,
		Transport:  tr,
		FeedURL:    func(id string) string { return "ws://test/" + id },
		RetryDelay: time.Hour,
	})
	t.Cleanup(o.Close)

	first, _ := o.Observe(context.Background(), "sim-a")
	firstConn := <-tr.Dialed

	second, _ := o.Observe(context.Background(), "sim-b")
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Same(t, second, o.Current())

	select {
	case <-first.Done():
	default:
		t.Fatal("previous session still running")
	}
	select {
	case <-firstConn.Closed():
	case <-time.After(waitFor):
		t.Fatal("previous feed still open")
	}

	<-tr.Dialed
	assert.Equal(t, "ws://test/sim-b", tr.LastURL())
	assert.Equal(t, "sim-b", second.View().State.SimulationID)

	o.Close()
	assert.Nil(t, o.Current())
	<-second.Done()
}

func TestObserverConcurrentSwitches(t *testing.T) {
	tr := feedtest.NewTransport()
	o := NewObserver(Options{
		Source:     runningRunner(),
		Transport:  tr,
		FeedURL:    func(id string) string { return "ws://test/" + id },
		RetryDelay: 5 * time.Millisecond,
	})

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions []*Session
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, _ := o.Observe(context.Background(), "sim-x")
			mu.Lock()
			sessions = append(sessions, s)
			mu.Unlock()
		}()
	}
	wg.Wait()
	o.Close()

	require.Len(t, sessions, n)
	for _, s := range sessions {
		select {
		case <-s.Done():
		default:
			t.Fatalf("session %s still running after Close", s.ID())
		}
	}

	dials := tr.Dials()
	for {
		select {
		case c := <-tr.Dialed:
			select {
			case <-c.Closed():
			default:
				t.Fatal("feed connection left open")
			}
			continue
		default:
		}
		break
	}
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, dials, tr.Dials(), "no reconnect after Close")
}

func TestSessionTornDownDuringResolution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := runningRunner()
	src.onRunner = cancel

	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := journal.New(path)
	require.NoError(t, err)

	tr := feedtest.NewTransport()
	updates := 0
	s := New("sim-1", Options{
		Source:    src,
		Transport: tr,
		FeedURL:   func(id string) string { return "ws://test/" + id },
		Recorder:  j,
		OnUpdate:  func(View) { updates++ },
	})

	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
	require.NoError(t, j.Close())

	assert.Zero(t, updates)
	assert.Zero(t, tr.Dials())
	assert.Equal(t, sim.StatusLoading, s.View().State.Status)

	sessions, err := journal.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, sessions, "nothing recorded")
}
