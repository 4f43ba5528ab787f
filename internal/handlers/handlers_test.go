package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/services"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
	"github.com/rs/zerolog"
)

func TestWriteErrorMapsReasonCodes(t *testing.T) {
	h := New(Deps{Log: zerolog.Nop()})
	cases := []struct {
		err    error
		status int
		code   models.ReasonCode
	}{
		{&utils.ValidationError{Field: "email", Message: "bad"}, http.StatusBadRequest, models.CodeValidationFailed},
		{fmt.Errorf("create: %w", services.ErrAccountExists), http.StatusConflict, models.CodeAccountExists},
		{services.ErrAccountNotFound, http.StatusNotFound, models.CodeAccountNotFound},
		{services.ErrInvalidCredentials, http.StatusUnauthorized, models.CodeInvalidCredentials},
		{services.ErrRoleNotAllowed, http.StatusForbidden, models.CodeForbidden},
		{services.ErrOTPInvalid, http.StatusBadRequest, models.CodeOTPInvalid},
		{services.ErrOTPExpired, http.StatusBadRequest, models.CodeOTPExpired},
		{services.ErrOTPAttemptsExceeded, http.StatusTooManyRequests, models.CodeOTPAttemptsExceeded},
		{&services.ResendTooSoonError{RetryAfter: 5 * time.Second}, http.StatusTooManyRequests, models.CodeResendTooSoon},
		{services.ErrInvalidToken, http.StatusUnauthorized, models.CodeUnauthorized},
		{services.ErrRegistrationNotFound, http.StatusNotFound, models.CodeNotFound},
		{fmt.Errorf("%w: too big", services.ErrUploadRejected), http.StatusBadRequest, models.CodeValidationFailed},
		{errors.New("connection reset"), http.StatusInternalServerError, models.CodeInternal},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)

		var resp models.Response
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("%v: decode: %v", tc.err, err)
		}
		if rec.Code != tc.status || resp.Code != tc.code || resp.Success {
			t.Errorf("%v: got %d %s, want %d %s", tc.err, rec.Code, resp.Code, tc.status, tc.code)
		}
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	h := New(Deps{Log: zerolog.Nop()})
	rec := httptest.NewRecorder()
	h.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))

	var resp models.Response
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Message != "Something went wrong. Please try again." {
		t.Errorf("internal error text leaked: %q", resp.Message)
	}
}

func TestCheckOrigin(t *testing.T) {
	h := New(Deps{Log: zerolog.Nop(), AllowedOrigins: []string{"https://shop.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if !h.checkOrigin(req) {
		t.Error("requests without Origin are allowed")
	}
	req.Header.Set("Origin", "https://shop.example.com")
	if !h.checkOrigin(req) {
		t.Error("configured origin should be allowed")
	}
	req.Header.Set("Origin", "https://evil.example.com")
	if h.checkOrigin(req) {
		t.Error("unknown origin should be rejected")
	}
}

func TestValidateRegistration(t *testing.T) {
	valid := func() *models.RetailerRegistration {
		return &models.RetailerRegistration{
			StoreName:     "Green Grocer",
			Phone:         "+919876543210",
			Street:        "12 MG Road",
			City:          "Bengaluru",
			State:         "KA",
			ZipCode:       "560001",
			GSTNumber:     "29ABCDE1234F1Z5",
			LicenseNumber: "LIC-1",
		}
	}
	if err := validateRegistration(valid()); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}

	mutations := map[string]func(*models.RetailerRegistration){
		"store name": func(r *models.RetailerRegistration) { r.StoreName = "" },
		"phone":      func(r *models.RetailerRegistration) { r.Phone = "123" },
		"address":    func(r *models.RetailerRegistration) { r.City = "" },
		"zip":        func(r *models.RetailerRegistration) { r.ZipCode = "ABC" },
		"gst":        func(r *models.RetailerRegistration) { r.GSTNumber = "NOTAGST" },
		"licence":    func(r *models.RetailerRegistration) { r.LicenseNumber = "" },
	}
	for name, mutate := range mutations {
		reg := valid()
		mutate(reg)
		var ve *utils.ValidationError
		if err := validateRegistration(reg); !errors.As(err, &ve) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestCeilSeconds(t *testing.T) {
	cases := map[float64]int{0: 0, -1: 0, 0.2: 1, 1: 1, 29.4: 30, 30: 30}
	for in, want := range cases {
		if got := ceilSeconds(in); got != want {
			t.Errorf("ceilSeconds(%v) = %d, want %d", in, got, want)
		}
	}
}
