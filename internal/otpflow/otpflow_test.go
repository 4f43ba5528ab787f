package otpflow

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/appstate"
	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/pkg/client"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
)

type fakeAPI struct {
	mu        sync.Mutex
	sends     int
	verifies  []string
	ticket    client.OTPTicket
	sendErr   error
	result    client.VerifyResult
	verifyErr error

	// block, when set, holds calls until closed
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeAPI) SendOTP(ctx context.Context, email string, action models.OTPAction, role models.Role) (client.OTPTicket, error) {
	f.mu.Lock()
	f.sends++
	block, entered := f.block, f.entered
	f.mu.Unlock()
	if block != nil {
		entered <- struct{}{}
		<-block
	}
	return f.ticket, f.sendErr
}

func (f *fakeAPI) VerifyOTP(ctx context.Context, code string, pending client.PendingAuth) (client.VerifyResult, error) {
	f.mu.Lock()
	f.verifies = append(f.verifies, code)
	block, entered := f.block, f.entered
	f.mu.Unlock()
	if block != nil {
		entered <- struct{}{}
		<-block
	}
	return f.result, f.verifyErr
}

func okTicket() client.OTPTicket {
	return client.OTPTicket{Result: client.Result{Code: models.CodeOK, Message: "OTP sent"}}
}

func signupForm(role models.Role) client.PendingAuth {
	return client.PendingAuth{
		Action: models.OTPActionSignup,
		Role:   role,
		Email:  "asha@example.com",
		Data:   map[string]string{"name": "Asha Rao", "password": "secret123", "confirmPassword": "secret123"},
	}
}

func loginForm(role models.Role) client.PendingAuth {
	return client.PendingAuth{Action: models.OTPActionLogin, Role: role, Email: "asha@example.com"}
}

func typeCode(f *Flow, code string) {
	for i, r := range code {
		f.Input(i, r)
	}
}

func startedFlow(t *testing.T, api *fakeAPI, ui SignUpToggle, pending client.PendingAuth) *Flow {
	t.Helper()
	f := New(api, ui, Options{})
	if err := f.Submit(context.Background(), pending); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if f.State() != OtpEntry {
		t.Fatalf("state = %s, want otp_entry", f.State())
	}
	return f
}

func TestDigitInput(t *testing.T) {
	f := startedFlow(t, &fakeAPI{ticket: okTicket()}, nil, loginForm(models.RoleCustomer))

	// Given an empty first box, a letter leaves it unchanged
	f.Input(0, 'a')
	if f.Code() != "" || f.Focus() != 0 {
		t.Fatalf("non-digit should be ignored, code=%q focus=%d", f.Code(), f.Focus())
	}

	// When a digit is typed, focus advances
	f.Input(0, '1')
	if f.Code() != "1" || f.Focus() != 1 {
		t.Fatalf("code=%q focus=%d", f.Code(), f.Focus())
	}
	f.Input(1, '٣') // non-ASCII digit
	if f.Code() != "1" {
		t.Fatalf("non-ASCII digit accepted: %q", f.Code())
	}

	f.Input(1, '2')
	f.Input(2, '3')
	if f.CanVerify() {
		t.Fatal("three digits must not be verifiable")
	}

	// The last box keeps focus
	f.Input(3, '4')
	if f.Focus() != 3 || f.Code() != "1234" || !f.CanVerify() {
		t.Fatalf("code=%q focus=%d", f.Code(), f.Focus())
	}

	// Backspace clears a filled box, then moves back on an empty one
	f.Backspace(3)
	if f.Code() != "123" || f.Focus() != 3 {
		t.Fatalf("code=%q focus=%d", f.Code(), f.Focus())
	}
	f.Backspace(3)
	if f.Focus() != 2 {
		t.Fatalf("backspace on empty box should move focus to 2, got %d", f.Focus())
	}
	f.Backspace(0)
	f.Backspace(0)
	if f.Focus() != 0 {
		t.Fatalf("focus must not go below 0, got %d", f.Focus())
	}

	// Out-of-range boxes are ignored
	f.Input(4, '9')
	f.Input(-1, '9')
	if len(f.Code()) != 2 {
		t.Fatalf("code=%q", f.Code())
	}
}

func TestResendEnabledExactlyAtZero(t *testing.T) {
	api := &fakeAPI{ticket: okTicket()}
	f := startedFlow(t, api, nil, loginForm(models.RoleRetailer))

	if f.ResendIn() != DefaultResendSeconds {
		t.Fatalf("countdown = %d, want %d", f.ResendIn(), DefaultResendSeconds)
	}
	for i := 0; i < DefaultResendSeconds-1; i++ {
		f.Tick()
	}
	if f.CanResend() {
		t.Fatal("resend must be disabled at 1s remaining")
	}
	if err := f.Resend(context.Background()); !errors.Is(err, ErrResendNotReady) {
		t.Fatalf("expected ErrResendNotReady, got %v", err)
	}
	if api.sends != 1 {
		t.Fatalf("early resend must not reach the server, sends=%d", api.sends)
	}

	f.Tick()
	if !f.CanResend() || f.ResendIn() != 0 {
		t.Fatalf("resend should be enabled at 0, in=%d", f.ResendIn())
	}
	f.Tick()
	if f.ResendIn() != 0 {
		t.Fatal("countdown must not go negative")
	}

	if err := f.Resend(context.Background()); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if api.sends != 2 || f.ResendIn() != DefaultResendSeconds {
		t.Fatalf("resend should reset the countdown, sends=%d in=%d", api.sends, f.ResendIn())
	}
}

func TestServerResendAfterIsAdopted(t *testing.T) {
	ticket := okTicket()
	ticket.ResendAfter = 45 * time.Second
	f := startedFlow(t, &fakeAPI{ticket: ticket}, nil, loginForm(models.RoleCustomer))
	if f.ResendIn() != 45 {
		t.Fatalf("countdown = %d, want 45", f.ResendIn())
	}
}

func TestCustomerSignupFlipsToLoginForm(t *testing.T) {
	state := appstate.New()
	api := &fakeAPI{ticket: okTicket(), result: client.VerifyResult{Result: client.Result{Code: models.CodeOK}}}
	f := startedFlow(t, api, state, signupForm(models.RoleCustomer))

	typeCode(f, "4821")
	out, err := f.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Action != models.OTPActionSignup || out.Principal != nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if f.State() != VerifiedSuccess || f.RedirectIn() != DefaultRedirectSeconds {
		t.Fatalf("state=%s redirect=%d", f.State(), f.RedirectIn())
	}
	if _, ok := f.Pending(); ok {
		t.Fatal("pending data should be cleared after success")
	}

	for i := 0; i < DefaultRedirectSeconds-1; i++ {
		f.Tick()
		if !state.UI().IsSignUp {
			t.Fatalf("form flipped early after %d ticks", i+1)
		}
	}
	f.Tick()
	if state.UI().IsSignUp {
		t.Fatal("signup form should flip to login after the delay")
	}
	if f.State() != Idle {
		t.Fatalf("state = %s, want idle", f.State())
	}
	if state.Customer().Get() != nil {
		t.Fatal("signup must not create a session")
	}
}

func TestLoginReturnsPrincipal(t *testing.T) {
	p := &models.Principal{Email: "asha@example.com", Name: "Asha", Role: models.RoleDeliveryBoy}
	api := &fakeAPI{ticket: okTicket(), result: client.VerifyResult{Result: client.Result{Code: models.CodeOK}, UserData: p}}
	f := startedFlow(t, api, nil, loginForm(models.RoleDeliveryBoy))

	typeCode(f, "1111")
	out, err := f.Verify(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.Principal == nil || *out.Principal != *p {
		t.Fatalf("principal = %+v", out.Principal)
	}
	if f.RedirectIn() != 0 {
		t.Fatal("login has no redirect countdown")
	}
}

func TestVerifyFailureKeepsDigits(t *testing.T) {
	api := &fakeAPI{
		ticket:    okTicket(),
		verifyErr: &client.RejectionError{Status: http.StatusBadRequest, Code: models.CodeOTPInvalid, Message: "Invalid OTP"},
	}
	f := startedFlow(t, api, nil, loginForm(models.RoleCustomer))
	typeCode(f, "9999")

	if _, err := f.Verify(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	if f.State() != VerifiedFailure || f.Message() != "Invalid OTP" || f.Code() != "9999" {
		t.Fatalf("state=%s msg=%q code=%q", f.State(), f.Message(), f.Code())
	}

	// Editing returns to entry
	f.Backspace(3)
	if f.State() != OtpEntry {
		t.Fatalf("state = %s, want otp_entry", f.State())
	}
}

func TestVerifyFailureWithoutMessageIsGeneric(t *testing.T) {
	api := &fakeAPI{ticket: okTicket(), result: client.VerifyResult{Result: client.Result{Code: models.CodeOTPInvalid}}}
	f := startedFlow(t, api, nil, loginForm(models.RoleCustomer))
	typeCode(f, "1234")

	if _, err := f.Verify(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	if f.Message() != client.GenericMessage {
		t.Fatalf("message = %q", f.Message())
	}
}

func TestValidationBeforeNetwork(t *testing.T) {
	api := &fakeAPI{ticket: okTicket()}
	f := New(api, nil, Options{})

	form := signupForm(models.RoleRetailer)
	form.Data["confirmPassword"] = "different1"
	err := f.Submit(context.Background(), form)
	var ve *utils.ValidationError
	if !errors.As(err, &ve) || ve.Field != "confirmPassword" {
		t.Fatalf("expected password mismatch, got %v", err)
	}
	if api.sends != 0 {
		t.Fatal("validation failures must not reach the server")
	}

	f = startedFlow(t, api, nil, loginForm(models.RoleRetailer))
	typeCode(f, "12")
	if _, err := f.Verify(context.Background()); !errors.Is(err, ErrIncompleteCode) {
		t.Fatalf("expected incomplete code error, got %v", err)
	}
	if len(api.verifies) != 0 {
		t.Fatal("incomplete code must not reach the server")
	}
}

func TestSubmitFailureReturnsToIdle(t *testing.T) {
	api := &fakeAPI{sendErr: &client.NetworkError{Op: "send otp", Err: errors.New("refused")}}
	f := New(api, nil, Options{})

	if err := f.Submit(context.Background(), loginForm(models.RoleCustomer)); err == nil {
		t.Fatal("expected error")
	}
	if f.State() != Idle || f.Message() != client.GenericMessage {
		t.Fatalf("state=%s msg=%q", f.State(), f.Message())
	}
	if _, ok := f.Pending(); ok {
		t.Fatal("pending should be discarded")
	}
}

func TestCancelDiscardsPending(t *testing.T) {
	api := &fakeAPI{ticket: okTicket()}
	f := startedFlow(t, api, nil, signupForm(models.RoleCustomer))
	typeCode(f, "12")

	f.Cancel()
	if f.State() != Idle || f.Code() != "" {
		t.Fatalf("state=%s code=%q", f.State(), f.Code())
	}
	if _, ok := f.Pending(); ok {
		t.Fatal("pending should be discarded")
	}
	if api.sends != 1 || len(api.verifies) != 0 {
		t.Fatal("cancel must not contact the server")
	}
}

func TestDoubleSubmitIsRejected(t *testing.T) {
	api := &fakeAPI{ticket: okTicket(), block: make(chan struct{}), entered: make(chan struct{}, 1)}
	f := New(api, nil, Options{})

	done := make(chan error, 1)
	go func() { done <- f.Submit(context.Background(), loginForm(models.RoleCustomer)) }()
	<-api.entered

	if err := f.Submit(context.Background(), loginForm(models.RoleCustomer)); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if api.sends != 1 {
		t.Fatalf("sends = %d, want 1", api.sends)
	}
}

func TestCancelWhileVerifying(t *testing.T) {
	api := &fakeAPI{ticket: okTicket(), result: client.VerifyResult{Result: client.Result{Code: models.CodeOK}}}
	f := startedFlow(t, api, nil, loginForm(models.RoleCustomer))
	typeCode(f, "1234")

	api.mu.Lock()
	api.block = make(chan struct{})
	api.entered = make(chan struct{}, 1)
	api.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := f.Verify(context.Background())
		done <- err
	}()
	<-api.entered
	f.Cancel()
	close(api.block)

	if err := <-done; !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if f.State() != Idle {
		t.Fatalf("state = %s, want idle", f.State())
	}
}
