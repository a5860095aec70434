package live

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10

	defaultQueueSize = 32

	// UpdatePrefix starts every message the hub delivers.
	UpdatePrefix = "Update: "
)

// Hub fans text messages out to every connected listener. A listener that
// cannot keep up or whose connection fails is dropped on its own; the rest
// keep receiving.
type Hub struct {
	logger    *slog.Logger
	queueSize int
	upgrader  websocket.Upgrader
	origins   []string

	mu        sync.RWMutex
	listeners map[string]*listener
}

type listener struct {
	id   string
	conn *websocket.Conn
	send chan string
	done chan struct{}
	once sync.Once
}

// NewHub accepts browser connections from allowedOrigins, the same list the
// CORS middleware uses. "*" allows any origin.
func NewHub(logger *slog.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger:    logger,
		queueSize: defaultQueueSize,
		origins:   slices.Clone(allowedOrigins),
		listeners: make(map[string]*listener),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin admits requests without an Origin header, same-host origins
// and listed origins.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if slices.Contains(h.origins, "*") || slices.Contains(h.origins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	h.logger.Warn("websocket origin rejected", "origin", origin)
	return false
}

// Len reports the number of connected listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Hub) add(conn *websocket.Conn) *listener {
	l := &listener{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan string, h.queueSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.listeners[l.id] = l
	h.mu.Unlock()
	return l
}

func (h *Hub) remove(l *listener, reason string) {
	h.mu.Lock()
	_, present := h.listeners[l.id]
	delete(h.listeners, l.id)
	h.mu.Unlock()
	l.once.Do(func() { close(l.done) })
	if present {
		h.logger.Debug("live listener removed", "listener", l.id, "reason", reason)
	}
}

// Broadcast queues msg for every listener and returns how many accepted it.
// It never blocks on a slow listener.
func (h *Hub) Broadcast(msg string) int {
	h.mu.RLock()
	targets := make([]*listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		targets = append(targets, l)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, l := range targets {
		select {
		case <-l.done:
			continue
		default:
		}
		select {
		case l.send <- msg:
			delivered++
		default:
			h.remove(l, "send queue full")
		}
	}
	return delivered
}

// ServeHTTP upgrades the request and echoes every inbound text message to
// all listeners as "Update: <text>".
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	l := h.add(conn)
	h.logger.Debug("live listener connected", "listener", l.id, "remote", r.RemoteAddr)

	go h.writeLoop(l)
	h.readLoop(l)
}

func (h *Hub) readLoop(l *listener) {
	defer h.remove(l, "read closed")

	if err := l.conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		kind, data, err := l.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.Broadcast(UpdatePrefix + string(data))
	}
}

func (h *Hub) writeLoop(l *listener) {
	ticker := time.NewTicker(wsPingEvery)
	defer func() {
		ticker.Stop()
		_ = l.conn.Close()
	}()

	for {
		select {
		case <-l.done:
			_ = l.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = l.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-l.send:
			if err := l.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				h.remove(l, "write deadline")
				return
			}
			if err := l.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				h.remove(l, "write failed")
				return
			}
		case <-ticker.C:
			if err := l.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				h.remove(l, "write deadline")
				return
			}
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(l, "ping failed")
				return
			}
		}
	}
}

// Close drops every listener.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		all = append(all, l)
	}
	h.mu.RUnlock()
	for _, l := range all {
		h.remove(l, "hub closed")
	}
}
