// Package feedtest provides an in-memory feed.Transport for tests.
package feedtest

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/sdibella/simwatch/internal/feed"
)

var ErrRefused = errors.New("feedtest: connection refused")

// Transport hands out in-memory connections. Each successful Dial is also
// published on Dialed so a test can drive the server side.
type Transport struct {
	Dialed chan *Conn

	mu      sync.Mutex
	fail    int
	dials   int
	lastURL string
}

func NewTransport() *Transport {
	return &Transport{Dialed: make(chan *Conn, 64)}
}

// FailNext makes the next n dials fail.
func (t *Transport) FailNext(n int) {
	t.mu.Lock()
	t.fail += n
	t.mu.Unlock()
}

func (t *Transport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func (t *Transport) LastURL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastURL
}

func (t *Transport) Dial(ctx context.Context, url string) (feed.Conn, error) {
	t.mu.Lock()
	t.dials++
	t.lastURL = url
	fail := t.fail > 0
	if fail {
		t.fail--
	}
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail {
		return nil, ErrRefused
	}

	c := &Conn{
		in:     make(chan []byte, 256),
		closed: make(chan struct{}),
	}
	t.Dialed <- c
	return c, nil
}

// Conn is the client end of an in-memory connection.
type Conn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written [][]byte
}

// Push queues an inbound message for the client.
func (c *Conn) Push(msg string) {
	select {
	case c.in <- []byte(msg):
	case <-c.closed:
	}
}

// Drop simulates the server closing the connection.
func (c *Conn) Drop() {
	c.Close()
}

// Closed is closed once the connection is closed by either side.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// Written returns the messages the client sent.
func (c *Conn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

func (c *Conn) ReadMessage() ([]byte, error) {
	// Deliver queued messages before reporting the close.
	select {
	case msg := <-c.in:
		return msg, nil
	default:
	}
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *Conn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, append([]byte(nil), data...))
	c.mu.Unlock()
	return nil
}

func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}
