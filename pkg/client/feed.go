package client

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
)

// RegistrationFeedPath is the retailer's live status websocket.
const RegistrationFeedPath = "/ws/retailer/registration-status"

// StatusUpdate is one message of the live registration feed. The first one
// is a snapshot (models.RegistrationEventSnapshot).
type StatusUpdate struct {
	Type      string                    `json:"type"`
	Email     string                    `json:"email"`
	Status    models.RegistrationStatus `json:"status"`
	Timestamp time.Time                 `json:"timestamp"`
}

// WatchRegistration streams the signed-in retailer's status to fn until ctx
// is done or the server closes the feed. Both end it with a nil error.
func (c *Client) WatchRegistration(ctx context.Context, fn func(StatusUpdate)) error {
	const op = "watch-registration"

	u, err := url.Parse(c.baseURL + RegistrationFeedPath)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}

	dialer := websocket.Dialer{Jar: c.http.Jar, HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && errors.Is(err, websocket.ErrBadHandshake) {
			return &RejectionError{Status: resp.StatusCode, Code: fallbackCode(resp.StatusCode), Message: GenericMessage}
		}
		return &NetworkError{Op: op, Err: err}
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var ev StatusUpdate
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return &NetworkError{Op: op, Err: err}
		}
		fn(ev)
	}
}
