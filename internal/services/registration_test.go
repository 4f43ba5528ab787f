package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/rs/zerolog"
)

type fakeRegistrations struct {
	mu    sync.Mutex
	regs  map[string]*models.RetailerRegistration
	finds int
}

func newFakeRegistrations() *fakeRegistrations {
	return &fakeRegistrations{regs: make(map[string]*models.RetailerRegistration)}
}

func (f *fakeRegistrations) Find(_ context.Context, email string) (*models.RetailerRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	reg, ok := f.regs[email]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	cp := *reg
	return &cp, nil
}

func (f *fakeRegistrations) Submit(_ context.Context, reg *models.RetailerRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg.RegistrationCompleted = true
	reg.VerificationStatus = models.VerificationPending
	reg.RejectionReason = ""
	cp := *reg
	f.regs[reg.Email] = &cp
	return nil
}

func (f *fakeRegistrations) Pending(_ context.Context, _ int64) ([]models.RetailerRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RetailerRegistration
	for _, r := range f.regs {
		if r.VerificationStatus == models.VerificationPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRegistrations) Review(_ context.Context, email string, status models.VerificationStatus, reason string) (*models.RetailerRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[email]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	reg.VerificationStatus = status
	reg.RejectionReason = ""
	if status == models.VerificationRejected {
		reg.RejectionReason = reason
	}
	cp := *reg
	return &cp, nil
}

type capturedStatus struct {
	email  string
	status models.RegistrationStatus
}

type captureFeed struct {
	mu      sync.Mutex
	changes []capturedStatus
}

func (c *captureFeed) PublishStatus(_ context.Context, email string, status models.RegistrationStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, capturedStatus{email, status})
	return nil
}

func newTestRegistrationService(t *testing.T) (*RegistrationService, *fakeRegistrations, *captureFeed) {
	t.Helper()
	_, rdb := newTestRedis(t)
	store := newFakeRegistrations()
	feed := &captureFeed{}
	return NewRegistrationService(store, NewCacheService(rdb), feed, zerolog.Nop()), store, feed
}

func TestRegistrationStatusIncompleteWithoutDocument(t *testing.T) {
	svc, _, _ := newTestRegistrationService(t)

	status, err := svc.Status(context.Background(), "new@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if status.RegistrationCompleted || status.VerificationStatus != models.VerificationPending {
		t.Errorf("unknown retailer should be incomplete/pending : %+v", status)
	}
}

func TestRegistrationLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, store, feed := newTestRegistrationService(t)

	// Given a status read that warms the cache
	svc.Status(ctx, "shop@example.com")
	svc.Status(ctx, "shop@example.com")
	if store.finds != 1 {
		t.Errorf("second read should be served from cache, store hit %d times", store.finds)
	}

	// When the retailer submits the form
	if err := svc.Submit(ctx, &models.RetailerRegistration{Email: "shop@example.com", StoreName: "Green Basket"}); err != nil {
		t.Fatal(err)
	}

	// Then the cache is dropped and the new status is visible
	status, _ := svc.Status(ctx, "shop@example.com")
	if !status.RegistrationCompleted || status.VerificationStatus != models.VerificationPending {
		t.Errorf("submitted registration should be pending : %+v", status)
	}

	// When an admin rejects it
	st, err := svc.Review(ctx, "shop@example.com", false, "GST number does not match licence")
	if err != nil {
		t.Fatal(err)
	}
	if st.VerificationStatus != models.VerificationRejected || st.RejectionReason == "" {
		t.Errorf("rejection should carry the reason : %+v", st)
	}
	status, _ = svc.Status(ctx, "shop@example.com")
	if status.VerificationStatus != models.VerificationRejected {
		t.Errorf("cached status should be refreshed after review : %+v", status)
	}

	// And every change was published
	if len(feed.changes) != 2 {
		t.Fatalf("expected submit and review to publish, got %d", len(feed.changes))
	}
	if feed.changes[1].status.VerificationStatus != models.VerificationRejected {
		t.Errorf("last published change should be the rejection : %+v", feed.changes[1])
	}
}

func TestRegistrationReviewUnknown(t *testing.T) {
	svc, _, _ := newTestRegistrationService(t)
	_, err := svc.Review(context.Background(), "ghost@example.com", true, "")
	if !errors.Is(err, ErrRegistrationNotFound) {
		t.Errorf("reviewing a missing registration should fail : %v", err)
	}
}

type fakeConn struct {
	mu     sync.Mutex
	events []StatusEvent
	fail   bool
	closed bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.events = append(c.events, v.(StatusEvent))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) first() StatusEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[0]
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestRegistrationFeedFanOut(t *testing.T) {
	_, rdb := newTestRedis(t)
	feed := NewRegistrationFeed(rdb, zerolog.Nop())

	mine, other, broken := &fakeConn{}, &fakeConn{}, &fakeConn{fail: true}
	feed.Subscribe("Shop@Example.com", mine)
	feed.Subscribe("shop@example.com", broken)
	feed.Subscribe("other@example.com", other)

	feed.FanOut(StatusEvent{Email: "shop@example.com", Status: models.RegistrationStatus{RegistrationCompleted: true, VerificationStatus: models.VerificationApproved}})

	if mine.count() != 1 {
		t.Errorf("subscriber should receive the event")
	}
	if other.count() != 0 {
		t.Errorf("other retailers must not see the event")
	}
	if !broken.closed || feed.Subscribers("shop@example.com") != 1 {
		t.Errorf("failing connection should be dropped")
	}
}

func TestRegistrationFeedThroughRedis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, rdb := newTestRedis(t)
	feed := NewRegistrationFeed(rdb, zerolog.Nop())
	conn := &fakeConn{}
	feed.Subscribe("shop@example.com", conn)
	feed.Start(ctx)

	status := models.RegistrationStatus{RegistrationCompleted: true, VerificationStatus: models.VerificationApproved}
	deadline := time.Now().Add(2 * time.Second)
	// the subscriber connects asynchronously; publish until it is listening
	for conn.count() == 0 && time.Now().Before(deadline) {
		if err := feed.PublishStatus(ctx, "shop@example.com", status); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if conn.count() == 0 {
		t.Fatal("event published on Redis should reach the local subscriber")
	}
	if ev := conn.first(); ev.Status.VerificationStatus != models.VerificationApproved {
		t.Errorf("unexpected event : %+v", ev)
	}
}
