package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/AnshRaj112/freshcart-backend/internal/logger"
	"github.com/AnshRaj112/freshcart-backend/internal/metrics"
	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/services"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Unblocker lifts a rate-limit block for an IP.
type Unblocker interface {
	Unblock(ctx context.Context, ip string) error
}

// Deps wires the handlers to the services they call.
type Deps struct {
	OTP           *services.OTPService
	Sessions      *services.SessionStore
	Tokens        *services.TokenService
	Accounts      services.AccountStore
	Registrations *services.RegistrationService
	Feed          *services.RegistrationFeed
	Dashboards    services.DashboardStore
	// Uploader is nil when Cloudinary is not configured.
	Uploader services.DocumentUploader
	Limits   []Unblocker
	Metrics  *metrics.Metrics
	Log      zerolog.Logger

	SecureCookies  bool
	AllowedOrigins []string
}

type Handler struct {
	Deps
	upgrader websocket.Upgrader
}

func New(d Deps) *Handler {
	h := &Handler{Deps: d}
	if h.Metrics == nil {
		h.Metrics = metrics.New()
	}
	h.Log = d.Log.With().Str(logger.Component, "http").Logger()
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func ok(message string) models.Response {
	return models.Response{Success: true, Code: models.CodeOK, Message: message}
}

func fail(code models.ReasonCode, message string) models.Response {
	return models.Response{Success: false, Code: code, Message: message}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, fail(models.CodeInvalidRequest, "Invalid request body"))
		return false
	}
	return true
}

// writeError maps service errors onto reason codes. Anything unrecognised is
// logged and reported as INTERNAL.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *utils.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, fail(models.CodeValidationFailed, ve.Message))
	case errors.Is(err, services.ErrAccountExists):
		writeJSON(w, http.StatusConflict, fail(models.CodeAccountExists, "An account with this email already exists"))
	case errors.Is(err, services.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, fail(models.CodeAccountNotFound, "No account found with this email"))
	case errors.Is(err, services.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, fail(models.CodeInvalidCredentials, "Invalid email or password"))
	case errors.Is(err, services.ErrRoleNotAllowed):
		writeJSON(w, http.StatusForbidden, fail(models.CodeForbidden, "This account type cannot sign up"))
	case errors.Is(err, services.ErrOTPInvalid):
		writeJSON(w, http.StatusBadRequest, fail(models.CodeOTPInvalid, "Invalid OTP. Please try again."))
	case errors.Is(err, services.ErrOTPExpired):
		writeJSON(w, http.StatusBadRequest, fail(models.CodeOTPExpired, "OTP has expired. Please request a new one."))
	case errors.Is(err, services.ErrOTPAttemptsExceeded):
		writeJSON(w, http.StatusTooManyRequests, fail(models.CodeOTPAttemptsExceeded, "Too many incorrect attempts. Please request a new OTP."))
	case errors.Is(err, services.ErrResendTooSoon):
		writeJSON(w, http.StatusTooManyRequests, fail(models.CodeResendTooSoon, err.Error()))
	case errors.Is(err, services.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, fail(models.CodeUnauthorized, "This link is invalid or has expired"))
	case errors.Is(err, services.ErrRegistrationNotFound):
		writeJSON(w, http.StatusNotFound, fail(models.CodeNotFound, "Registration not found"))
	case errors.Is(err, services.ErrUploadRejected):
		writeJSON(w, http.StatusBadRequest, fail(models.CodeValidationFailed, err.Error()))
	default:
		h.Log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, fail(models.CodeInternal, "Something went wrong. Please try again."))
	}
}

// reasonOf is the code writeError would report, for metrics labels.
func reasonOf(err error) models.ReasonCode {
	var ve *utils.ValidationError
	switch {
	case err == nil:
		return models.CodeOK
	case errors.As(err, &ve), errors.Is(err, services.ErrUploadRejected):
		return models.CodeValidationFailed
	case errors.Is(err, services.ErrAccountExists):
		return models.CodeAccountExists
	case errors.Is(err, services.ErrAccountNotFound):
		return models.CodeAccountNotFound
	case errors.Is(err, services.ErrInvalidCredentials):
		return models.CodeInvalidCredentials
	case errors.Is(err, services.ErrOTPInvalid):
		return models.CodeOTPInvalid
	case errors.Is(err, services.ErrOTPExpired):
		return models.CodeOTPExpired
	case errors.Is(err, services.ErrOTPAttemptsExceeded):
		return models.CodeOTPAttemptsExceeded
	case errors.Is(err, services.ErrResendTooSoon):
		return models.CodeResendTooSoon
	}
	return models.CodeInternal
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, role models.Role, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     services.SessionCookieName(role),
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.Sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter, role models.Role) {
	http.SetCookie(w, &http.Cookie{
		Name:     services.SessionCookieName(role),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// ceilSeconds rounds a duration in seconds up to whole seconds.
func ceilSeconds(s float64) int {
	if s <= 0 {
		return 0
	}
	return int(math.Ceil(s - 1e-9))
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ok("OK"))
}
