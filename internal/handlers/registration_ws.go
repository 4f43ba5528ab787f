package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/middleware"
	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/services"
	"github.com/gorilla/websocket"
)

const (
	wsPongWait   = 90 * time.Second
	wsPingPeriod = 60 * time.Second
	wsWriteWait  = 10 * time.Second
)

// wsConn serialises writes; the feed and the pinger write concurrently.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (c *wsConn) Close() error { return c.conn.Close() }

// RegistrationFeed upgrades to a websocket that receives the signed-in
// retailer's status: once on connect and again after every review.
func (h *Handler) RegistrationFeed(w http.ResponseWriter, r *http.Request) {
	p, found := middleware.PrincipalFrom(r.Context())
	if !found {
		writeJSON(w, http.StatusUnauthorized, fail(models.CodeUnauthorized, "Please log in to continue"))
		return
	}

	status, err := h.Registrations.Status(r.Context(), p.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}
	conn := &wsConn{conn: raw}
	defer conn.Close()

	// changes published from here on reach this connection
	h.Feed.Subscribe(p.Email, conn)
	h.Metrics.FeedClients.Inc()
	defer func() {
		h.Feed.Unsubscribe(p.Email, conn)
		h.Metrics.FeedClients.Dec()
	}()

	if err := conn.WriteJSON(services.StatusEvent{
		Type:      services.StatusEventSnapshot,
		Email:     p.Email,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(wsPingPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := conn.ping(); err != nil {
					return
				}
			}
		}
	}()

	// the feed is one-way; reads only service pongs and detect close
	raw.SetReadLimit(4 * 1024)
	_ = raw.SetReadDeadline(time.Now().Add(wsPongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := raw.ReadMessage(); err != nil {
			return
		}
	}
}
