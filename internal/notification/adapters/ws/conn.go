package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Options bound the connection's I/O behavior.
type Options struct {
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	PongTimeout   time.Duration
	MaxMessageLen int64
}

// Conn wraps a websocket connection as a push channel. Writes are
// serialized by a mutex and bounded by the write timeout; a write that
// exceeds it fails and lets the registry evict the connection.
type Conn struct {
	conn   *websocket.Conn
	opts   Options
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewConn wraps an upgraded websocket connection.
func NewConn(conn *websocket.Conn, opts Options, logger *slog.Logger) *Conn {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 10 * time.Second
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 15 * time.Second
	}
	if opts.MaxMessageLen > 0 {
		conn.SetReadLimit(opts.MaxMessageLen)
	}
	return &Conn{
		conn:   conn,
		opts:   opts,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Write sends a text frame within the write timeout.
func (c *Conn) Write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame best-effort and tears the socket down.
// Idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// ReadLoop consumes inbound frames until the peer disconnects or goes
// silent past the pong timeout, then invokes onClose exactly once. Clients
// only ever send heartbeat answers; payload frames are discarded.
func (c *Conn) ReadLoop(onClose func()) {
	defer onClose()

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout)); err != nil {
		return
	}

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// PingLoop sends pings on the heartbeat interval until the connection is
// closed. A failed ping stops the loop; the read loop then notices the
// dead peer via its deadline.
func (c *Conn) PingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("Heartbeat ping failed, stopping ping loop", "error", err)
				return
			}
		case <-c.done:
			return
		}
	}
}
