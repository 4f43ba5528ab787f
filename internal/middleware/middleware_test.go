package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/services"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type fakeSessions map[string]*models.Principal

func (f fakeSessions) Validate(_ context.Context, role models.Role, token string) (*models.Principal, bool, error) {
	p, ok := f[string(role)+":"+token]
	return p, ok, nil
}

// refreshingSessions counts Refresh calls.
type refreshingSessions struct {
	fakeSessions
	refreshed []string
}

func (r *refreshingSessions) Refresh(_ context.Context, role models.Role, token string) error {
	r.refreshed = append(r.refreshed, string(role)+":"+token)
	return nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if p, ok := PrincipalFrom(r.Context()); ok {
		w.Write([]byte(p.Email))
		return
	}
	w.Write([]byte("public"))
})

func decode(t *testing.T, rec *httptest.ResponseRecorder) models.Response {
	t.Helper()
	var resp models.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestRequireSession(t *testing.T) {
	sessions := fakeSessions{
		"retailer:tok-r": {Email: "shop@example.com", Role: models.RoleRetailer},
	}
	h := RequireSession(sessions, models.RoleRetailer, zerolog.Nop())(okHandler)

	// Without a cookie the request is turned away with the login path
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/retailer/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if resp := decode(t, rec); resp.Code != models.CodeUnauthorized || resp.Redirect != "/retailer/login" {
		t.Errorf("unexpected body %+v", resp)
	}

	// A customer cookie does not open a retailer route
	req := httptest.NewRequest("GET", "/api/retailer/me", nil)
	req.AddCookie(&http.Cookie{Name: services.SessionCookieName(models.RoleCustomer), Value: "tok-r"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("cookie of another role should not authenticate, got %d", rec.Code)
	}

	// The retailer cookie does
	req = httptest.NewRequest("GET", "/api/retailer/me", nil)
	req.AddCookie(&http.Cookie{Name: services.SessionCookieName(models.RoleRetailer), Value: "tok-r"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "shop@example.com" {
		t.Errorf("retailer should pass, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequireSessionRefreshesLiveSession(t *testing.T) {
	sessions := &refreshingSessions{fakeSessions: fakeSessions{
		"customer:tok-c": {Email: "asha@example.com", Role: models.RoleCustomer},
	}}
	h := RequireSession(sessions, models.RoleCustomer, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(SessionTokenFrom(r.Context())))
	}))

	// Given a request without a session
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/customer/me", nil))
	if len(sessions.refreshed) != 0 {
		t.Fatalf("rejected request must not refresh, got %v", sessions.refreshed)
	}

	// When the customer cookie is sent
	req := httptest.NewRequest("GET", "/api/customer/me", nil)
	req.AddCookie(&http.Cookie{Name: services.SessionCookieName(models.RoleCustomer), Value: "tok-c"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// Then the session is extended and its token handed to the handler
	if len(sessions.refreshed) != 1 || sessions.refreshed[0] != "customer:tok-c" {
		t.Errorf("expected one refresh of customer:tok-c, got %v", sessions.refreshed)
	}
	if rec.Body.String() != "tok-c" {
		t.Errorf("handler should see the session token, got %q", rec.Body.String())
	}
}

func TestPublicOnly(t *testing.T) {
	sessions := fakeSessions{
		"deliveryBoy:tok-d": {Email: "rider@example.com", Role: models.RoleDeliveryBoy},
	}
	h := PublicOnly(sessions, models.RoleDeliveryBoy, zerolog.Nop())(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/auth/deliveryBoy-login", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("anonymous request should pass, got %d", rec.Code)
	}

	req := httptest.NewRequest("POST", "/api/auth/deliveryBoy-login", nil)
	req.AddCookie(&http.Cookie{Name: services.SessionCookieName(models.RoleDeliveryBoy), Value: "tok-d"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("signed-in rider should be redirected, got %d", rec.Code)
	}
	if resp := decode(t, rec); resp.Code != models.CodeAlreadyAuthenticated || resp.Redirect != "/deliveryBoy/dashboard" {
		t.Errorf("unexpected body %+v", resp)
	}
}

func TestIPLimiter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewIPLimiter(rate.Every(time.Second), 2)
	l.now = func() time.Time { return now }

	if !l.Allow("1.1.1.1") || !l.Allow("1.1.1.1") {
		t.Fatal("burst of two should be allowed")
	}
	if l.Allow("1.1.1.1") {
		t.Error("third request inside a second should be refused")
	}
	if !l.Allow("2.2.2.2") {
		t.Error("other IPs have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("1.1.1.1") {
		t.Error("bucket should refill after a second")
	}
}

func TestIPLimiterMiddleware(t *testing.T) {
	h := NewIPLimiter(rate.Every(time.Minute), 1).Middleware(false, "slow down")(okHandler)

	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
	if resp := decode(t, rec); resp.Code != models.CodeRateLimited {
		t.Errorf("unexpected code %s", resp.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After should be 60, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRedisRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := &RedisRateLimit{RDB: rdb, Name: "otp", Window: time.Minute, Max: 3, Block: 10 * time.Minute, Log: zerolog.Nop()}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _, err := l.Hit(ctx, "9.9.9.9"); err != nil || !ok {
			t.Fatalf("request %d should pass: ok=%v err=%v", i+1, ok, err)
		}
	}
	if ok, _, _ := l.Hit(ctx, "9.9.9.9"); ok {
		t.Fatal("fourth request should be refused")
	}

	// the block outlives the counting window
	mr.FastForward(2 * time.Minute)
	if ok, _, _ := l.Hit(ctx, "9.9.9.9"); ok {
		t.Error("blocked IP should stay blocked after the window")
	}

	if err := l.Unblock(ctx, "9.9.9.9"); err != nil {
		t.Fatal(err)
	}
	if ok, _, _ := l.Hit(ctx, "9.9.9.9"); !ok {
		t.Error("unblocked IP should be allowed again")
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("missing security headers: %v", rec.Header())
	}
}

func TestCORSAllowsConfiguredOriginWithCredentials(t *testing.T) {
	h := CORS([]string{"https://shop.example.com"})(okHandler)

	req := httptest.NewRequest("OPTIONS", "/api/auth/login", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "https://shop.example.com" {
		t.Errorf("origin should be echoed: %v", rec.Header())
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials must be allowed for session cookies")
	}

	req = httptest.NewRequest("GET", "/api/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origins must not be allowed")
	}
}
