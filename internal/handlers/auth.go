package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/AnshRaj112/freshcart-backend/internal/logger"
	"github.com/AnshRaj112/freshcart-backend/internal/middleware"
	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/services"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
)

type SendOTPRequest struct {
	Email  string `json:"email"`
	Action string `json:"action"`
	Role   string `json:"role"`
}

type OTPResponse struct {
	models.Response
	ResendAfter int `json:"resend_after,omitempty"`
	ExpiresIn   int `json:"expires_in,omitempty"`
}

// VerifyOTPRequest carries the pending form fields merged with the code.
type VerifyOTPRequest struct {
	Email           string `json:"email"`
	OTP             string `json:"otp"`
	Role            string `json:"role"`
	Action          string `json:"action"`
	Name            string `json:"name,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Password        string `json:"password,omitempty"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password,omitempty"`
}

// AuthResponse returns the principal after a login.
type AuthResponse struct {
	models.Response
	UserData   *models.Principal `json:"userData,omitempty"`
	ResetToken string            `json:"reset_token,omitempty"`
}

func parseActionRole(action, role string) (models.OTPAction, models.Role, error) {
	a := models.OTPAction(strings.TrimSpace(action))
	if !a.Valid() {
		return "", "", &utils.ValidationError{Field: "action", Message: "Action must be signup, login or reset-password"}
	}
	ro, ok := models.ParseRole(role)
	if !ok {
		return "", "", &utils.ValidationError{Field: "role", Message: "Unknown role"}
	}
	return a, ro, nil
}

// SendOTP issues a code for signup, login or reset-password.
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	action, role, err := parseActionRole(req.Action, req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := utils.ValidateEmail(req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}

	ticket, err := h.OTP.Issue(r.Context(), req.Email, action, role)
	if err != nil {
		var tooSoon *services.ResendTooSoonError
		if errors.As(err, &tooSoon) {
			secs := ceilSeconds(tooSoon.RetryAfter.Seconds())
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeJSON(w, http.StatusTooManyRequests, OTPResponse{
				Response:    fail(models.CodeResendTooSoon, "Please wait before requesting another OTP"),
				ResendAfter: secs,
			})
			return
		}
		h.writeError(w, r, err)
		return
	}

	h.Metrics.OTPIssued.WithLabelValues(string(action), string(role)).Inc()
	writeJSON(w, http.StatusOK, OTPResponse{
		Response:    ok("OTP sent to your email"),
		ResendAfter: ceilSeconds(ticket.ResendAfter.Seconds()),
		ExpiresIn:   ceilSeconds(ticket.ExpiresIn.Seconds()),
	})
}

// VerifyOTP checks the code and completes the pending action: signup creates
// the account, login opens a session, reset-password hands out a reset token.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	action, role, err := parseActionRole(req.Action, req.Role)
	if err == nil {
		err = utils.ValidateEmail(req.Email)
	}
	if err == nil {
		err = utils.ValidateOTP(req.OTP)
	}
	if err == nil && action == models.OTPActionSignup {
		// check the form before the code is consumed
		err = validateSignup(req)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	email := utils.NormalizeEmail(req.Email)
	_, err = h.OTP.Verify(ctx, email, action, role, req.OTP)
	h.Metrics.OTPVerified.WithLabelValues(string(action), string(reasonOf(err))).Inc()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	switch action {
	case models.OTPActionSignup:
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		acc := &models.Account{
			Role:         role,
			Email:        email,
			Name:         strings.TrimSpace(req.Name),
			Phone:        strings.TrimSpace(req.Phone),
			PasswordHash: hash,
			IsVerified:   true,
		}
		if err := h.Accounts.Create(ctx, acc); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.Log.Info().Str(logger.Email, email).Str(logger.Role, string(role)).Msg("account created")
		writeJSON(w, http.StatusCreated, ok("Account created successfully. Please log in."))

	case models.OTPActionLogin:
		acc, err := h.Accounts.FindByEmail(ctx, role, email)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.startSession(w, r, acc.Principal())

	case models.OTPActionResetPassword:
		token, err := h.Tokens.IssueReset(role, email)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AuthResponse{
			Response:   ok("OTP verified. You can now set a new password."),
			ResetToken: token,
		})
	}
}

func validateSignup(req VerifyOTPRequest) error {
	if err := utils.ValidateName(req.Name); err != nil {
		return err
	}
	if req.Phone != "" {
		if err := utils.ValidatePhone(req.Phone); err != nil {
			return err
		}
	}
	confirm := req.ConfirmPassword
	if confirm == "" {
		confirm = req.Password
	}
	return utils.ValidatePasswordPair(req.Password, confirm)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, p models.Principal) {
	token, err := h.Sessions.Create(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, p.Role, token)
	writeJSON(w, http.StatusOK, AuthResponse{Response: ok("Login successful"), UserData: &p})
}

// Login returns the password login handler for role.
func (h *Handler) Login(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := utils.ValidateEmail(req.Email); err != nil {
			h.writeError(w, r, err)
			return
		}
		if req.Password == "" {
			h.writeError(w, r, &utils.ValidationError{Field: "password", Message: "Password is required"})
			return
		}

		acc, err := services.Authenticate(r.Context(), h.Accounts, role, req.Email, req.Password)
		h.Metrics.Logins.WithLabelValues(string(role), string(reasonOf(err))).Inc()
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.startSession(w, r, acc.Principal())
	}
}

// Logout returns the logout handler for role. It always succeeds and clears
// the role's cookie; other roles' sessions are untouched.
func (h *Handler) Logout(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(services.SessionCookieName(role)); err == nil && c.Value != "" {
			if err := h.Sessions.Invalidate(r.Context(), role, c.Value); err != nil {
				h.Log.Warn().Err(err).Str(logger.Role, string(role)).Msg("session invalidate failed")
			}
		}
		h.clearSessionCookie(w, role)
		writeJSON(w, http.StatusOK, ok("Logged out successfully"))
	}
}

// ResetPassword consumes a reset token and sets the new password. The
// account's live session is ended.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	confirm := req.ConfirmPassword
	if confirm == "" {
		confirm = req.NewPassword
	}
	if err := utils.ValidatePasswordPair(req.NewPassword, confirm); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	claims, err := h.Tokens.ConsumeReset(ctx, req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.setPassword(ctx, claims, req.NewPassword); err != nil {
		if rerr := h.Tokens.ReleaseReset(ctx, claims); rerr != nil {
			h.Log.Warn().Err(rerr).Str(logger.Email, claims.Email).Msg("failed to release reset token")
		}
		h.writeError(w, r, err)
		return
	}
	if err := h.Sessions.InvalidateAccount(ctx, claims.Role, claims.Email); err != nil {
		h.Log.Warn().Err(err).Str(logger.Email, claims.Email).Msg("failed to end session after password reset")
	}
	writeJSON(w, http.StatusOK, ok("Password updated. Please log in."))
}

func (h *Handler) setPassword(ctx context.Context, claims *services.ResetClaims, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	return h.Accounts.UpdatePassword(ctx, claims.Role, claims.Email, hash)
}

// Me returns the principal of the request's session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, found := middleware.PrincipalFrom(r.Context())
	if !found {
		writeJSON(w, http.StatusUnauthorized, fail(models.CodeUnauthorized, "Please log in to continue"))
		return
	}
	// the session was just extended; keep the cookie in step
	if token := middleware.SessionTokenFrom(r.Context()); token != "" {
		h.setSessionCookie(w, p.Role, token)
	}
	writeJSON(w, http.StatusOK, AuthResponse{Response: ok(""), UserData: p})
}
