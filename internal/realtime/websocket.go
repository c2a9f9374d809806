package realtime

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsSubscriber adapts a single websocket connection to EventSubscriber,
// dropping events for any site other than the one the page loaded from.
type wsSubscriber struct {
	baseSubscriber
	conn   *websocket.Conn
	site   string
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (s *wsSubscriber) Send(event Event) error {
	if s.site != "" {
		if eventSite, ok := event.Data["site"].(string); ok && eventSite != s.site {
			return nil
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(event)
}

func (s *wsSubscriber) Close() error {
	s.cancel()
	return s.conn.Close()
}

// Handler upgrades GET /ws to a websocket connection scoped to the site
// named by the request's Host header, with the port stripped as
// webstatus.Handler does. The name is not checked against the site tree.
type Handler struct {
	Bus    EventBus
	Logger *slog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if hostOnly, _, err := net.SplitHostPort(r.Host); err == nil {
		host = hostOnly
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sub := &wsSubscriber{
		baseSubscriber: baseSubscriber{id: uuid.New().String(), ctx: ctx},
		conn:           conn,
		site:           host,
		cancel:         cancel,
	}

	if err := h.Bus.Subscribe(sub); err != nil {
		h.Logger.Warn("websocket subscribe failed", "error", err)
		_ = conn.Close()
		cancel()
		return
	}

	go h.readLoop(sub)
}

// readLoop drains client frames (the status page never sends any) purely to
// detect disconnects; exiting it unsubscribes the connection.
func (h *Handler) readLoop(sub *wsSubscriber) {
	defer h.Bus.Unsubscribe(sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}
