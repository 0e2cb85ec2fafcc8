package notifications

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linkup/linkup/backend/go-services/pkg/logger"
	"github.com/linkup/linkup/backend/go-services/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Message is the frame pushed to a client.
type Message struct {
	Event        string        `json:"event"`
	Notification *Notification `json:"notification"`
}

// Client is one live connection. Writes are serialized by mu.
type Client struct {
	UserID string
	conn   *websocket.Conn
	mu     sync.Mutex
	once   sync.Once
	done   chan struct{}
}

func newClient(userID string, conn *websocket.Conn) *Client {
	return &Client{UserID: userID, conn: conn, done: make(chan struct{})}
}

func (c *Client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// keepalive pings until the client is closed.
func (c *Client) keepalive() {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := c.ping(); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.mu.Unlock()
		_ = c.conn.Close()
	})
}

// Hub is the online registry: at most one live connection per user.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Client)}
}

// Add registers conn for userID. A previous connection of the same user is
// replaced and closed.
func (h *Hub) Add(userID string, conn *websocket.Conn) *Client {
	c := newClient(userID, conn)
	h.mu.Lock()
	old := h.conns[userID]
	h.conns[userID] = c
	h.mu.Unlock()
	if old != nil {
		logger.Debugf("replacing websocket for user %s", userID)
		old.Close()
	}
	return c
}

// Remove unregisters c only if it is still the user's registered connection,
// so a stale socket closing never evicts its replacement.
func (h *Hub) Remove(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[c.UserID]; ok && cur == c {
		delete(h.conns, c.UserID)
		return true
	}
	return false
}

func (h *Hub) Get(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[userID]
	return c, ok
}

func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Push delivers n to the recipient if online. Offline users pick it up from
// the list endpoint; a failed write drops the connection.
func (h *Hub) Push(userID string, n *Notification) {
	c, ok := h.Get(userID)
	if !ok {
		metrics.NotificationsPushed.WithLabelValues("offline").Inc()
		return
	}
	if err := c.WriteJSON(Message{Event: "notification", Notification: n}); err != nil {
		logger.Warnw("websocket push failed", "userID", userID, "err", err)
		metrics.NotificationsPushed.WithLabelValues("error").Inc()
		h.Remove(c)
		c.Close()
		return
	}
	metrics.NotificationsPushed.WithLabelValues("delivered").Inc()
}

// CloseAll closes every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*Client)
	h.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
