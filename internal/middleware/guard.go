package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/AnshRaj112/freshcart-backend/internal/guard"
	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/services"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	tokenKey     contextKey = "session_token"
)

// SessionValidator resolves a role's session token.
type SessionValidator interface {
	Validate(ctx context.Context, role models.Role, token string) (*models.Principal, bool, error)
}

// SessionRefresher slides a live session's expiry forward.
type SessionRefresher interface {
	Refresh(ctx context.Context, role models.Role, token string) error
}

// PrincipalFrom returns the principal stored by RequireSession.
func PrincipalFrom(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*models.Principal)
	return p, ok && p != nil
}

// SessionTokenFrom returns the token that authenticated the request.
func SessionTokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// WithPrincipal is used by tests and by handlers that authenticate inline.
func WithPrincipal(ctx context.Context, p *models.Principal, token string) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return context.WithValue(ctx, tokenKey, token)
}

func lookup(r *http.Request, sessions SessionValidator, role models.Role, log zerolog.Logger) (*models.Principal, string) {
	cookie, err := r.Cookie(services.SessionCookieName(role))
	if err != nil || cookie.Value == "" {
		return nil, ""
	}
	p, ok, err := sessions.Validate(r.Context(), role, cookie.Value)
	if err != nil {
		log.Error().Err(err).Str("role", string(role)).Msg("session lookup failed")
		return nil, ""
	}
	if !ok {
		return nil, ""
	}
	return p, cookie.Value
}

func writeRedirect(w http.ResponseWriter, status int, code models.ReasonCode, message, redirect string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.Response{Success: false, Code: code, Message: message, Redirect: redirect})
}

// RequireSession serves the route only to a signed-in principal of role.
// When sessions is also a SessionRefresher every authenticated request
// extends the session by its full TTL.
func RequireSession(sessions SessionValidator, role models.Role, log zerolog.Logger) func(http.Handler) http.Handler {
	refresher, _ := sessions.(SessionRefresher)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, token := lookup(r, sessions, role, log)
			d := guard.Protected(role, p)
			if !d.Render {
				writeRedirect(w, http.StatusUnauthorized, models.CodeUnauthorized, "Please log in to continue", d.Redirect)
				return
			}
			if refresher != nil {
				if err := refresher.Refresh(r.Context(), role, token); err != nil {
					log.Warn().Err(err).Str("role", string(role)).Msg("session refresh failed")
				}
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p, token)))
		})
	}
}

// PublicOnly serves the route only when role has no live session, e.g. the
// role's login endpoint.
func PublicOnly(sessions SessionValidator, role models.Role, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := lookup(r, sessions, role, log)
			d := guard.PublicOnly(role, p)
			if !d.Render {
				writeRedirect(w, http.StatusConflict, models.CodeAlreadyAuthenticated, "You are already logged in", d.Redirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
