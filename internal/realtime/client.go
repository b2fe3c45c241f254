package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

var ErrClientClosed = errors.New("realtime client closed")

// Client represents a websocket client connection. Writes go through a
// buffered queue drained by WritePump.
type Client struct {
	ID     string
	UserID uint64

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	subs []*Subscription
}

// NewClient constructs a client wrapper.
func NewClient(conn *websocket.Conn, userID uint64) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Send queues a message. A client that cannot keep up is reported as failed.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return errors.New("realtime client send buffer full")
	}
}

// Close terminates the connection and releases every subscription.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Attach records a subscription so it is released when the client stops.
func (c *Client) Attach(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, sub)
}

func (c *Client) release() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// Run pumps the connection until either side goes away, then tears down all
// subscriptions.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
	c.release()
	c.Close()
}

// readPump only services control frames; clients never send data.
func (c *Client) readPump() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithFields(logrus.Fields{"client_id": c.ID, "error": err}).Warn("Realtime connection closed unexpectedly")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.WithFields(logrus.Fields{"client_id": c.ID, "error": err}).Warn("Realtime send failed")
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
