package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport opens duplex message connections. The Manager only talks to the
// feed through it, so tests can substitute an in-memory implementation.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is one open feed connection. ReadMessage blocks until a message
// arrives or the connection fails; Close unblocks a pending read.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// WSTransport dials the feed over WebSocket.
type WSTransport struct {
	Dialer *websocket.Dialer

	// ReadTimeout bounds each read when non-zero. A paused simulation sends
	// nothing, so the default is no deadline.
	ReadTimeout time.Duration
}

func (t *WSTransport) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	return &wsConn{conn: conn, readTimeout: t.ReadTimeout}, nil
}

type wsConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	writeMu     sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
