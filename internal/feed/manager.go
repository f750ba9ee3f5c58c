package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is the connection state of a Manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

var ErrAlreadyRunning = errors.New("feed manager already running")

// Manager owns the single live connection to one feed URL. It reconnects at
// a fixed interval, with no attempt ceiling, until its context is canceled.
type Manager struct {
	transport  Transport
	url        string
	retryDelay time.Duration

	mu      sync.Mutex
	conn    Conn
	state   State
	dials   int
	running bool
	onState func(State)
}

func NewManager(transport Transport, url string, retryDelay time.Duration) *Manager {
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Manager{
		transport:  transport,
		url:        url,
		retryDelay: retryDelay,
	}
}

// Run connects and delivers every parsed event to handle, on the calling
// goroutine, until ctx is canceled. Canceling ctx closes the connection at
// once and cancels any pending reconnect; nothing is dialed afterwards.
// An empty URL means there is nothing to connect to and Run returns nil.
func (m *Manager) Run(ctx context.Context, handle func(Event)) error {
	if m.url == "" {
		return nil
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.state = StateIdle
		m.running = false
		m.mu.Unlock()
	}()

	for {
		if err := m.connect(ctx, handle); err != nil && ctx.Err() == nil {
			slog.Warn("feed disconnected", "url", m.url, "err", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.setState(StateReconnecting)
		timer := time.NewTimer(m.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			slog.Info("feed reconnecting", "url", m.url)
		}
	}
}

func (m *Manager) connect(ctx context.Context, handle func(Event)) error {
	m.mu.Lock()
	m.state = StateConnecting
	m.dials++
	m.mu.Unlock()

	conn, err := m.transport.Dial(ctx, m.url)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.setState(StateOpen)

	// Teardown closes the socket immediately so the blocked read returns.
	stop := context.AfterFunc(ctx, func() {
		m.setState(StateClosing)
		conn.Close()
	})

	defer func() {
		stop()
		conn.Close()
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
	}()

	slog.Info("feed connected", "url", m.url)

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		ev, err := ParseEvent(msg)
		if err != nil {
			slog.Debug("feed message dropped", "err", err)
			continue
		}
		handle(ev)
	}
}

// Send writes a control message if the connection is open. Otherwise the
// message is dropped; nothing is queued.
func (m *Manager) Send(data []byte) bool {
	m.mu.Lock()
	conn := m.conn
	open := m.state == StateOpen
	m.mu.Unlock()

	if !open || conn == nil {
		slog.Debug("feed not open, control message dropped", "msg", string(data))
		return false
	}
	if err := conn.WriteMessage(data); err != nil {
		slog.Debug("feed write failed", "err", err)
		return false
	}
	return true
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connected() bool {
	return m.State() == StateOpen
}

// Dials returns how many connection attempts have been made.
func (m *Manager) Dials() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dials
}

func (m *Manager) URL() string {
	return m.url
}

// OnStateChange registers fn to be called after each transition to Open,
// Reconnecting or Closing. Set it before Run; fn must not block.
func (m *Manager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	m.onState = fn
	m.mu.Unlock()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	fn := m.onState
	m.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
