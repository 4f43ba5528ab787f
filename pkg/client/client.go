// Package client is the storefront's Auth API client. It maps actions onto
// HTTP calls and decodes typed results; it has no business logic and never
// retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/regstatus"
)

// Client talks to the /api surface of the server. Cookies set by the server
// (one session cookie per role) are kept in its jar.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its jar, if any, is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client rooted at baseURL, e.g. http://localhost:8080/api.
func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Result is the outcome every call carries.
type Result struct {
	Code    models.ReasonCode
	Message string
}

func (r Result) OK() bool { return r.Code == models.CodeOK }

// OTPTicket is the answer to SendOTP.
type OTPTicket struct {
	Result
	ResendAfter time.Duration
	ExpiresIn   time.Duration
}

// PendingAuth is the form a code was requested for. It lives only while a
// challenge is outstanding.
type PendingAuth struct {
	Action models.OTPAction
	Role   models.Role
	Email  string
	// Data holds the remaining form fields (name, password, confirmPassword...).
	Data map[string]string
}

// VerifyResult is the answer to VerifyOTP. UserData is set for login,
// ResetToken for reset-password.
type VerifyResult struct {
	Result
	UserData   *models.Principal
	ResetToken string
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DashboardView is the gated retailer dashboard.
type DashboardView struct {
	Restricted bool
	Banner     *regstatus.Banner
	Status     models.RegistrationStatus
	Dashboard  *models.Dashboard
}

// envelope is the superset of response fields the server sends.
type envelope struct {
	models.Response
	ResendAfter int               `json:"resend_after"`
	ExpiresIn   int               `json:"expires_in"`
	UserData    *models.Principal `json:"userData"`
	ResetToken  string            `json:"reset_token"`

	RegistrationCompleted bool                      `json:"registrationCompleted"`
	VerificationStatus    models.VerificationStatus `json:"verificationStatus"`
	RejectionReason       string                    `json:"rejectionReason"`

	Restricted bool                      `json:"restricted"`
	Banner     *regstatus.Banner         `json:"banner"`
	Status     models.RegistrationStatus `json:"registrationStatus"`
	Dashboard  *models.Dashboard         `json:"dashboard"`
}

func (e *envelope) result() Result {
	return Result{Code: e.Code, Message: e.Message}
}

// LoginPath is the role's password login endpoint.
func LoginPath(role models.Role) string {
	if role == models.RoleCustomer {
		return "/auth/login"
	}
	return "/auth/" + string(role) + "-login"
}

// LogoutPath is the role's logout endpoint.
func LogoutPath(role models.Role) string {
	if role == models.RoleCustomer {
		return "/auth/logout"
	}
	return "/auth/" + string(role) + "-logout"
}

// SendOTP asks the server to issue a code. On RESEND_TOO_SOON the returned
// ticket still carries ResendAfter alongside the *RejectionError.
func (c *Client) SendOTP(ctx context.Context, email string, action models.OTPAction, role models.Role) (OTPTicket, error) {
	body := map[string]string{"email": email, "action": string(action), "role": string(role)}
	env, err := c.do(ctx, "send otp", http.MethodPost, "/auth/send-otp", body)
	var t OTPTicket
	if env != nil {
		t = OTPTicket{
			Result:      env.result(),
			ResendAfter: time.Duration(env.ResendAfter) * time.Second,
			ExpiresIn:   time.Duration(env.ExpiresIn) * time.Second,
		}
	}
	return t, err
}

// VerifyOTP submits the code merged with the pending form fields.
func (c *Client) VerifyOTP(ctx context.Context, code string, pending PendingAuth) (VerifyResult, error) {
	body := make(map[string]string, len(pending.Data)+4)
	for k, v := range pending.Data {
		body[k] = v
	}
	body["email"] = pending.Email
	body["otp"] = code
	body["role"] = string(pending.Role)
	body["action"] = string(pending.Action)

	env, err := c.do(ctx, "verify otp", http.MethodPost, "/auth/verify-otp", body)
	if err != nil {
		var vr VerifyResult
		if env != nil {
			vr.Result = env.result()
		}
		return vr, err
	}
	return VerifyResult{Result: env.result(), UserData: env.UserData, ResetToken: env.ResetToken}, nil
}

// Login signs in with a password on the role's endpoint.
func (c *Client) Login(ctx context.Context, role models.Role, creds Credentials) (models.Principal, error) {
	env, err := c.do(ctx, "login", http.MethodPost, LoginPath(role), creds)
	if err != nil {
		return models.Principal{}, err
	}
	if env.UserData == nil {
		return models.Principal{}, &RejectionError{Status: http.StatusOK, Code: models.CodeInternal, Message: GenericMessage}
	}
	return *env.UserData, nil
}

// Logout ends the role's server session. Callers clear the local slot
// whatever this returns.
func (c *Client) Logout(ctx context.Context, role models.Role) error {
	_, err := c.do(ctx, "logout", http.MethodPost, LogoutPath(role), nil)
	return err
}

// ResetPassword consumes a reset token from VerifyOTP.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"token": token, "new_password": newPassword}
	_, err := c.do(ctx, "reset password", http.MethodPost, "/auth/reset-password", body)
	return err
}

// Me returns the principal of the role's current server session.
func (c *Client) Me(ctx context.Context, role models.Role) (models.Principal, error) {
	env, err := c.do(ctx, "me", http.MethodGet, "/"+string(role)+"/me", nil)
	if err != nil {
		return models.Principal{}, err
	}
	if env.UserData == nil {
		return models.Principal{}, &RejectionError{Status: http.StatusOK, Code: models.CodeInternal, Message: GenericMessage}
	}
	return *env.UserData, nil
}

// RegistrationStatus fetches a retailer's status.
func (c *Client) RegistrationStatus(ctx context.Context, email string) (models.RegistrationStatus, error) {
	path := "/retailer/registration-status?email=" + url.QueryEscape(email)
	env, err := c.do(ctx, "registration status", http.MethodGet, path, nil)
	if err != nil {
		return models.RegistrationStatus{}, err
	}
	return models.RegistrationStatus{
		RegistrationCompleted: env.RegistrationCompleted,
		VerificationStatus:    env.VerificationStatus,
		RejectionReason:       env.RejectionReason,
	}, nil
}

// Dashboard fetches the gated retailer dashboard.
func (c *Client) Dashboard(ctx context.Context) (DashboardView, error) {
	env, err := c.do(ctx, "dashboard", http.MethodGet, "/retailer/dashboard", nil)
	if err != nil {
		return DashboardView{}, err
	}
	return DashboardView{
		Restricted: env.Restricted,
		Banner:     env.Banner,
		Status:     env.Status,
		Dashboard:  env.Dashboard,
	}, nil
}

// Document is one file attached to a registration.
type Document struct {
	Field    string // license_document or id_document
	Filename string
	Content  io.Reader
}

// SubmitRegistration posts the retailer registration form as multipart.
func (c *Client) SubmitRegistration(ctx context.Context, fields map[string]string, docs ...Document) (models.RegistrationStatus, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return models.RegistrationStatus{}, err
		}
	}
	for _, d := range docs {
		fw, err := mw.CreateFormFile(d.Field, d.Filename)
		if err != nil {
			return models.RegistrationStatus{}, err
		}
		if _, err := io.Copy(fw, d.Content); err != nil {
			return models.RegistrationStatus{}, fmt.Errorf("read %s: %w", d.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return models.RegistrationStatus{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/retailer/registration", &buf)
	if err != nil {
		return models.RegistrationStatus{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	env, err := c.send("submit registration", req)
	if err != nil {
		return models.RegistrationStatus{}, err
	}
	return env.Status, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (*envelope, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(op, req)
}

// send performs req. A nil error means a 2xx answer with success:true. The
// envelope is returned alongside a *RejectionError when the body decoded.
func (c *Client) send(op string, req *http.Request) (*envelope, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &RejectionError{Status: resp.StatusCode, Code: fallbackCode(resp.StatusCode), Message: GenericMessage}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		rej := &RejectionError{Status: resp.StatusCode, Code: env.Code, Message: env.Message, Redirect: env.Redirect}
		if rej.Code == "" {
			rej.Code = fallbackCode(resp.StatusCode)
		}
		if rej.Message == "" {
			rej.Message = GenericMessage
		}
		env.Code, env.Message = rej.Code, rej.Message
		return &env, rej
	}
	if env.Code == "" {
		env.Code = models.CodeOK
	}
	return &env, nil
}

func fallbackCode(status int) models.ReasonCode {
	switch status {
	case http.StatusBadRequest:
		return models.CodeInvalidRequest
	case http.StatusUnauthorized:
		return models.CodeUnauthorized
	case http.StatusForbidden:
		return models.CodeForbidden
	case http.StatusNotFound:
		return models.CodeNotFound
	case http.StatusTooManyRequests:
		return models.CodeRateLimited
	}
	return models.CodeInternal
}

// IsRejection reports whether err is a server rejection with code.
func IsRejection(err error, code models.ReasonCode) bool {
	var r *RejectionError
	return errors.As(err, &r) && r.Code == code
}
