// Package otpflow is the client-side OTP verification state machine shared
// by the signup, login and reset-password forms of every role.
//
// The flow is driven by one owner loop: user events call Input, Backspace,
// Submit, Verify, Resend and Cancel, and a single ticker calls Tick once per
// second. No goroutines are started here.
package otpflow

import (
	"context"
	"errors"
	"sync"
	"unicode"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/pkg/client"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
)

type State int

const (
	Idle State = iota
	OtpRequested
	OtpEntry
	Verifying
	VerifiedSuccess
	VerifiedFailure
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case OtpRequested:
		return "otp_requested"
	case OtpEntry:
		return "otp_entry"
	case Verifying:
		return "verifying"
	case VerifiedSuccess:
		return "verified_success"
	case VerifiedFailure:
		return "verified_failure"
	}
	return "unknown"
}

// Digits is the number of OTP boxes.
const Digits = utils.OTPLength

const (
	DefaultResendSeconds   = 30
	DefaultRedirectSeconds = 3
)

var (
	ErrBusy           = errors.New("a request is already in flight")
	ErrWrongState     = errors.New("action not available in the current state")
	ErrResendNotReady = errors.New("resend is not available yet")
	ErrCanceled       = errors.New("flow was canceled")
	ErrIncompleteCode = &utils.ValidationError{Field: "otp", Message: "Please enter the complete OTP"}
)

// API is the slice of the Auth API client the flow calls.
type API interface {
	SendOTP(ctx context.Context, email string, action models.OTPAction, role models.Role) (client.OTPTicket, error)
	VerifyOTP(ctx context.Context, code string, pending client.PendingAuth) (client.VerifyResult, error)
}

// SignUpToggle flips the signup/login form. appstate.Store implements it.
type SignUpToggle interface {
	SetSignUp(bool)
}

type Options struct {
	ResendSeconds   int
	RedirectSeconds int
}

// Outcome is what a successful Verify hands back to the caller.
type Outcome struct {
	Action models.OTPAction
	// Principal is set for login; the caller stores it in the role's slot.
	Principal *models.Principal
	// ResetToken is set for reset-password.
	ResetToken string
}

type Flow struct {
	api  API
	ui   SignUpToggle
	opts Options

	mu       sync.Mutex
	state    State
	pending  *client.PendingAuth
	digits   [Digits]rune
	focus    int
	resend   int
	redirect int
	message  string
	busy     bool
	gen      uint64
}

func New(api API, ui SignUpToggle, opts Options) *Flow {
	if opts.ResendSeconds <= 0 {
		opts.ResendSeconds = DefaultResendSeconds
	}
	if opts.RedirectSeconds <= 0 {
		opts.RedirectSeconds = DefaultRedirectSeconds
	}
	return &Flow{api: api, ui: ui, opts: opts}
}

// Validate checks the form before any network call.
func Validate(p client.PendingAuth) error {
	if !p.Action.Valid() {
		return &utils.ValidationError{Field: "action", Message: "Unknown action"}
	}
	if _, ok := models.ParseRole(string(p.Role)); !ok {
		return &utils.ValidationError{Field: "role", Message: "Unknown role"}
	}
	if err := utils.ValidateEmail(p.Email); err != nil {
		return err
	}
	switch p.Action {
	case models.OTPActionSignup:
		if err := utils.ValidateName(p.Data["name"]); err != nil {
			return err
		}
		return utils.ValidatePasswordPair(p.Data["password"], p.Data["confirmPassword"])
	case models.OTPActionResetPassword:
		if p.Data["password"] != "" || p.Data["confirmPassword"] != "" {
			return utils.ValidatePasswordPair(p.Data["password"], p.Data["confirmPassword"])
		}
	}
	return nil
}

// Submit requests a code for the form and enters OtpEntry.
func (f *Flow) Submit(ctx context.Context, pending client.PendingAuth) error {
	if err := Validate(pending); err != nil {
		f.mu.Lock()
		f.message = err.Error()
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	if f.state != Idle && f.state != VerifiedSuccess {
		f.mu.Unlock()
		return ErrWrongState
	}
	p := pending
	f.pending = &p
	f.state = OtpRequested
	f.message = ""
	f.redirect = 0
	f.busy = true
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	ticket, err := f.api.SendOTP(ctx, p.Email, p.Action, p.Role)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if f.gen != gen {
		return ErrCanceled
	}
	if err != nil || !ticket.OK() {
		f.state = Idle
		f.pending = nil
		f.message = failureMessage(ticket.Result, err)
		if err == nil {
			err = &client.RejectionError{Code: ticket.Code, Message: f.message}
		}
		return err
	}
	f.state = OtpEntry
	f.clearDigits()
	f.resend = f.resendSeconds(ticket)
	f.message = ticket.Message
	return nil
}

// Input types r into box i. Non-digits are ignored; a digit advances focus
// except on the last box.
func (f *Flow) Input(i int, r rune) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.editable() || i < 0 || i >= Digits {
		return
	}
	if r > unicode.MaxASCII || !unicode.IsDigit(r) {
		return
	}
	f.enterEntry()
	f.digits[i] = r
	if i < Digits-1 {
		f.focus = i + 1
	} else {
		f.focus = i
	}
}

// Backspace clears box i, or moves focus back when it is already empty.
func (f *Flow) Backspace(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.editable() || i < 0 || i >= Digits {
		return
	}
	f.enterEntry()
	if f.digits[i] == 0 {
		if i > 0 {
			f.focus = i - 1
		}
		return
	}
	f.digits[i] = 0
	f.focus = i
}

// Code is the concatenation of the boxes in order.
func (f *Flow) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code()
}

func (f *Flow) code() string {
	var b []rune
	for _, d := range f.digits {
		if d != 0 {
			b = append(b, d)
		}
	}
	return string(b)
}

// CanVerify is true once every box holds a digit.
func (f *Flow) CanVerify() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete()
}

func (f *Flow) complete() bool {
	for _, d := range f.digits {
		if d == 0 {
			return false
		}
	}
	return true
}

// Verify submits the code. Failures keep the digits and land in
// VerifiedFailure, from which the user may edit, verify again or resend.
func (f *Flow) Verify(ctx context.Context) (Outcome, error) {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	if !f.editable() || f.pending == nil {
		f.mu.Unlock()
		return Outcome{}, ErrWrongState
	}
	if !f.complete() {
		f.message = ErrIncompleteCode.Message
		f.mu.Unlock()
		return Outcome{}, ErrIncompleteCode
	}
	code := f.code()
	pending := *f.pending
	f.state = Verifying
	f.message = ""
	f.busy = true
	gen := f.gen
	f.mu.Unlock()

	res, err := f.api.VerifyOTP(ctx, code, pending)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if f.gen != gen {
		return Outcome{}, ErrCanceled
	}
	if err != nil || !res.OK() {
		f.state = VerifiedFailure
		f.message = failureMessage(res.Result, err)
		if err == nil {
			err = &client.RejectionError{Code: res.Code, Message: f.message}
		}
		return Outcome{}, err
	}

	out := Outcome{Action: pending.Action, Principal: res.UserData, ResetToken: res.ResetToken}
	f.state = VerifiedSuccess
	f.pending = nil
	f.clearDigits()
	f.resend = 0
	f.message = res.Message
	if pending.Action == models.OTPActionSignup {
		f.redirect = f.opts.RedirectSeconds
	}
	return out, nil
}

// Resend asks for a fresh code. Only allowed once the countdown is zero.
func (f *Flow) Resend(ctx context.Context) error {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	if !f.editable() || f.pending == nil {
		f.mu.Unlock()
		return ErrWrongState
	}
	if f.resend > 0 {
		f.mu.Unlock()
		return ErrResendNotReady
	}
	p := *f.pending
	f.busy = true
	gen := f.gen
	f.mu.Unlock()

	ticket, err := f.api.SendOTP(ctx, p.Email, p.Action, p.Role)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if f.gen != gen {
		return ErrCanceled
	}
	if err != nil || !ticket.OK() {
		f.message = failureMessage(ticket.Result, err)
		if ticket.ResendAfter > 0 {
			f.resend = int(ticket.ResendAfter.Seconds())
		}
		if err == nil {
			err = &client.RejectionError{Code: ticket.Code, Message: f.message}
		}
		return err
	}
	f.state = OtpEntry
	f.clearDigits()
	f.resend = f.resendSeconds(ticket)
	f.message = ticket.Message
	return nil
}

// Cancel discards the pending form without contacting the server.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == VerifiedSuccess {
		return
	}
	f.reset()
}

// Reset returns a finished flow to Idle.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
}

func (f *Flow) reset() {
	f.gen++
	f.state = Idle
	f.pending = nil
	f.clearDigits()
	f.resend = 0
	f.redirect = 0
	f.message = ""
}

// Tick advances the resend and redirect countdowns by one second. When the
// signup redirect reaches zero the login form is selected and the flow goes
// back to Idle.
func (f *Flow) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resend > 0 && f.editable() {
		f.resend--
	}
	if f.state == VerifiedSuccess && f.redirect > 0 {
		f.redirect--
		if f.redirect == 0 {
			if f.ui != nil {
				f.ui.SetSignUp(false)
			}
			f.reset()
		}
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Focus is the index of the box that should hold the cursor.
func (f *Flow) Focus() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focus
}

// ResendIn is the remaining resend countdown in seconds.
func (f *Flow) ResendIn() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resend
}

// CanResend is true exactly when the countdown has reached zero.
func (f *Flow) CanResend() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editable() && f.resend == 0 && !f.busy
}

// RedirectIn is the remaining signup redirect countdown in seconds.
func (f *Flow) RedirectIn() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.redirect
}

// Message is the last status or error text to display.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Pending returns a copy of the form awaiting verification.
func (f *Flow) Pending() (client.PendingAuth, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return client.PendingAuth{}, false
	}
	return *f.pending, true
}

func (f *Flow) editable() bool {
	return f.state == OtpEntry || f.state == VerifiedFailure
}

func (f *Flow) enterEntry() {
	if f.state == VerifiedFailure {
		f.state = OtpEntry
	}
}

func (f *Flow) clearDigits() {
	f.digits = [Digits]rune{}
	f.focus = 0
}

func (f *Flow) resendSeconds(t client.OTPTicket) int {
	if s := int(t.ResendAfter.Seconds()); s > 0 {
		return s
	}
	return f.opts.ResendSeconds
}

func failureMessage(r client.Result, err error) string {
	if err != nil {
		return client.UserMessage(err)
	}
	if r.Message != "" {
		return r.Message
	}
	return client.GenericMessage
}
