package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"TickChart/internal/domain/models"
	"TickChart/internal/usecase"
	"TickChart/pkg/http/middleware"
	xlogger "TickChart/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsSendBuffer = 8
	wsReadLimit  = 4096
)

// viewerCommand is what a viewer may send over the socket.
type viewerCommand struct {
	Type      string `json:"type"` // "select" | "clear" | "timeframe"
	Time      int64  `json:"time,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes chart snapshots to connected websocket viewers. A viewer that
// cannot keep up is disconnected rather than slowing the others down.
type Hub struct {
	session  *usecase.ChartSession
	logger   *xlogger.Logger
	origins  []string
	upgrader websocket.Upgrader
	onCount  func(int)

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool

	// countMu is taken before mu is released so viewer counts are reported
	// in the order the client set changed.
	countMu sync.Mutex
}

// NewHub creates a hub admitting browser handshakes from origins (same
// matching as the CORS middleware) or from the serving host itself.
func NewHub(session *usecase.ChartSession, logger *xlogger.Logger, origins []string, onCount func(int)) *Hub {
	if onCount == nil {
		onCount = func(int) {}
	}
	h := &Hub{
		session: session,
		logger:  logger,
		origins: origins,
		onCount: onCount,
		clients: make(map[*wsClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if middleware.OriginAllowed(h.origins, origin) {
		return true
	}
	h.logger.Warn("websocket origin rejected", xlogger.String("origin", origin))
	return false
}

// unlockAndReport releases mu, which the caller holds, and reports n.
func (h *Hub) unlockAndReport(n int) {
	h.countMu.Lock()
	h.mu.Unlock()
	defer h.countMu.Unlock()
	h.onCount(n)
}

// Broadcast sends snap to every viewer without blocking.
func (h *Hub) Broadcast(snap models.ViewSnapshot) {
	msg, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("marshal snapshot", xlogger.Error(err))
		return
	}

	h.mu.Lock()
	dropped := false
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("websocket viewer too slow, dropping")
			dropped = h.removeLocked(c) || dropped
		}
	}
	if !dropped {
		h.mu.Unlock()
		return
	}
	h.unlockAndReport(len(h.clients))
}

// Serve upgrades the request and streams snapshots until the viewer leaves.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}

	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	if !h.add(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(wsWriteWait))
		_ = conn.Close()
		return nil
	}

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// add registers c and queues the current snapshot as its first message. Both
// happen under mu so a concurrent broadcast lands after the snapshot.
func (h *Hub) add(c *wsClient) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	if msg, err := json.Marshal(h.session.Snapshot()); err == nil {
		c.send <- msg
	} else {
		h.logger.Error("marshal snapshot", xlogger.Error(err))
	}
	n := len(h.clients)
	h.unlockAndReport(n)

	h.logger.Info("websocket viewer connected", xlogger.Int("viewers", n))
	return true
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	if !h.removeLocked(c) {
		h.mu.Unlock()
		return
	}
	h.unlockAndReport(len(h.clients))
}

// removeLocked closes c's send channel; the write pump then closes the conn.
func (h *Hub) removeLocked(c *wsClient) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	return true
}

func (h *Hub) readPump(c *wsClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", xlogger.Error(err))
			}
			return
		}
		h.handleCommand(message)
	}
}

func (h *Hub) handleCommand(message []byte) {
	var cmd viewerCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		h.logger.Debug("ignoring malformed viewer command", xlogger.Error(err))
		return
	}
	switch cmd.Type {
	case "select":
		_, _ = h.session.Select(cmd.Time)
	case "clear":
		h.session.ClearSelection()
	case "timeframe":
		if err := h.session.SetTimeframe(cmd.Timeframe); err != nil {
			h.logger.Debug("viewer timeframe rejected", xlogger.String("timeframe", cmd.Timeframe), xlogger.Error(err))
		}
	default:
		h.logger.Debug("unknown viewer command", xlogger.String("type", cmd.Type))
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every viewer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return
	}
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.unlockAndReport(0)
}
