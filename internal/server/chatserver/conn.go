package chatserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devansh-12/messaging-app/internal/core/domain"
)

const (
	writeWait = 10 * time.Second

	// maxCloseReason is the longest reason that fits in a close frame.
	maxCloseReason = 123
)

// conn adapts a websocket to service.Conn.
type conn struct {
	ws     *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	closeOnce   sync.Once
	closing     chan struct{}
	closeCode   int
	closeReason string

	done chan struct{}
}

func newConn(ws *websocket.Conn, buffer int, logger *slog.Logger) *conn {
	return &conn{
		ws:      ws,
		send:    make(chan []byte, buffer),
		logger:  logger,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Send queues frame for the write goroutine.
func (c *conn) Send(frame []byte) error {
	select {
	case <-c.closing:
		return domain.ErrSessionClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return domain.ErrSendBufferFull
	}
}

// Close flushes queued frames, sends a close frame and closes the socket.
// Only the first call has an effect.
func (c *conn) Close(code int, reason string) error {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	c.closeOnce.Do(func() {
		c.closeCode, c.closeReason = code, reason
		close(c.closing)
	})
	return nil
}

// RemoteAddr implements service.Conn.
func (c *conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// abort marks the connection closed without a close frame.
func (c *conn) abort() {
	c.closeOnce.Do(func() { close(c.closing) })
}

// writePump owns every write to the socket until the connection closes.
func (c *conn) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		close(c.done)
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("write failed", "remote", c.RemoteAddr(), "error", err)
				c.abort()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.abort()
				return
			}
		case <-c.closing:
			c.flush()
			if c.closeCode != 0 {
				msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
				_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			}
			return
		}
	}
}

func (c *conn) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}
