package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StatusChannelPrefix is the Redis pub/sub channel: registration:status:<email>
const StatusChannelPrefix = "registration:status:"

// Event types written to feed clients.
const (
	StatusEventSnapshot = models.RegistrationEventSnapshot
	StatusEventChanged  = models.RegistrationEventChanged
)

// StatusEvent is broadcast over Redis and written to websocket clients.
type StatusEvent struct {
	Type      string                    `json:"type"`
	Email     string                    `json:"email"`
	Status    models.RegistrationStatus `json:"status"`
	Timestamp time.Time                 `json:"timestamp"`
}

// FeedConn is the part of a websocket connection the feed writes to.
type FeedConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// RegistrationFeed fans status changes out to the websocket connections of
// this instance. One Redis pattern subscriber per instance feeds it, so a
// review handled by any instance reaches every connected retailer.
type RegistrationFeed struct {
	rdb *redis.Client
	log zerolog.Logger

	mu   sync.RWMutex
	subs map[string]map[FeedConn]struct{}

	started sync.Once
}

func NewRegistrationFeed(rdb *redis.Client, log zerolog.Logger) *RegistrationFeed {
	return &RegistrationFeed{
		rdb:  rdb,
		log:  log.With().Str("component", "registration-feed").Logger(),
		subs: make(map[string]map[FeedConn]struct{}),
	}
}

// Subscribe registers conn for changes to email's registration.
func (f *RegistrationFeed) Subscribe(email string, conn FeedConn) {
	email = utils.NormalizeEmail(email)
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.subs[email]
	if !ok {
		set = make(map[FeedConn]struct{})
		f.subs[email] = set
	}
	set[conn] = struct{}{}
}

// Unsubscribe removes conn. Safe to call more than once.
func (f *RegistrationFeed) Unsubscribe(email string, conn FeedConn) {
	email = utils.NormalizeEmail(email)
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.subs[email]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(f.subs, email)
		}
	}
}

// Subscribers returns the number of local connections for email.
func (f *RegistrationFeed) Subscribers(email string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[utils.NormalizeEmail(email)])
}

// PublishStatus sends the change to every instance through Redis.
func (f *RegistrationFeed) PublishStatus(ctx context.Context, email string, status models.RegistrationStatus) error {
	email = utils.NormalizeEmail(email)
	data, err := json.Marshal(StatusEvent{
		Type:      StatusEventChanged,
		Email:     email,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, StatusChannelPrefix+email, data).Err()
}

// FanOut writes ev to every local connection watching ev.Email.
func (f *RegistrationFeed) FanOut(ev StatusEvent) {
	f.mu.RLock()
	conns := make([]FeedConn, 0, len(f.subs[ev.Email]))
	for c := range f.subs[ev.Email] {
		conns = append(conns, c)
	}
	f.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(ev); err != nil {
			f.log.Debug().Err(err).Str("email", ev.Email).Msg("write status event; dropping connection")
			f.Unsubscribe(ev.Email, c)
			c.Close()
		}
	}
}

// Start launches the shared Redis subscriber once.
func (f *RegistrationFeed) Start(ctx context.Context) {
	f.started.Do(func() {
		go f.run(ctx)
	})
}

func (f *RegistrationFeed) run(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := f.rdb.PSubscribe(ctx, StatusChannelPrefix+"*")
			defer pubsub.Close()

			f.log.Info().Str("pattern", StatusChannelPrefix+"*").Msg("registration status subscriber started")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					f.log.Warn().Err(err).Dur("backoff", backoff).Msg("redis subscriber error")
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var ev StatusEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					f.log.Warn().Err(err).Msg("decode status event")
					continue
				}
				if ev.Email == "" {
					ev.Email = strings.TrimPrefix(msg.Channel, StatusChannelPrefix)
				}
				f.FanOut(ev)
			}
		}()
	}
}
