package routes

import (
	"net/http"

	"github.com/AnshRaj112/freshcart-backend/internal/handlers"
	"github.com/AnshRaj112/freshcart-backend/internal/metrics"
	"github.com/AnshRaj112/freshcart-backend/internal/middleware"
	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Options selects the middleware that differ between environments.
type Options struct {
	AllowedOrigins []string
	TrustProxy     bool
	// Production adds security headers and the per-IP limiters.
	Production bool
	// OTPLimit is the shared Redis limit on OTP endpoints; nil disables it.
	OTPLimit *middleware.RedisRateLimit
}

// NewRouter builds the HTTP surface: /health, /metrics and the /api tree.
func NewRouter(h *handlers.Handler, sessions middleware.SessionValidator, m *metrics.Metrics, log zerolog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogging(log, m))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.Production {
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.GlobalRateLimit(opts.TrustProxy))
	}

	r.Get("/health", handlers.Health)
	r.Handle("/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		SetupRoutes(r, h, sessions, log, opts)
	})
	return r
}

// SetupRoutes mounts the API routes on r.
func SetupRoutes(r chi.Router, h *handlers.Handler, sessions middleware.SessionValidator, log zerolog.Logger, opts Options) {
	protected := func(role models.Role) func(http.Handler) http.Handler {
		return middleware.RequireSession(sessions, role, log)
	}
	publicOnly := func(role models.Role) func(http.Handler) http.Handler {
		return middleware.PublicOnly(sessions, role, log)
	}
	var loginLimit func(http.Handler) http.Handler
	if opts.Production {
		loginLimit = middleware.LoginRateLimit(opts.TrustProxy)
	}

	// OTP channel
	r.Group(func(r chi.Router) {
		if opts.OTPLimit != nil {
			r.Use(opts.OTPLimit.Middleware)
		}
		if loginLimit != nil {
			r.Use(loginLimit)
		}
		r.Post("/auth/send-otp", h.SendOTP)
		r.Post("/auth/verify-otp", h.VerifyOTP)
		r.Post("/auth/reset-password", h.ResetPassword)
	})

	// Password logins, one endpoint per role
	loginPaths := map[models.Role]string{
		models.RoleCustomer:    "/auth/login",
		models.RoleRetailer:    "/auth/retailer-login",
		models.RoleDeliveryBoy: "/auth/deliveryBoy-login",
		models.RoleAdmin:       "/auth/admin-login",
	}
	logoutPaths := map[models.Role]string{
		models.RoleCustomer:    "/auth/logout",
		models.RoleRetailer:    "/auth/retailer-logout",
		models.RoleDeliveryBoy: "/auth/deliveryBoy-logout",
		models.RoleAdmin:       "/auth/admin-logout",
	}
	for _, role := range models.AllRoles {
		role := role
		r.Group(func(r chi.Router) {
			if loginLimit != nil {
				r.Use(loginLimit)
			}
			r.Use(publicOnly(role))
			r.Post(loginPaths[role], h.Login(role))
		})
		r.Post(logoutPaths[role], h.Logout(role))
		r.With(protected(role)).Get("/"+string(role)+"/me", h.Me)
	}

	// Retailer
	r.Group(func(r chi.Router) {
		r.Use(protected(models.RoleRetailer))
		r.Get("/retailer/registration-status", h.RegistrationStatus)
		r.Post("/retailer/registration", h.SubmitRegistration)
		r.Get("/retailer/dashboard", h.Dashboard)
		r.Get("/ws/retailer/registration-status", h.RegistrationFeed)
	})

	// Admin
	r.Group(func(r chi.Router) {
		r.Use(protected(models.RoleAdmin))
		r.Get("/admin/retailers/pending", h.PendingRetailers)
		r.Put("/admin/retailers/review", h.ReviewRetailer)
		r.Put("/admin/unblock-ip", h.UnblockIP)
	})
}
