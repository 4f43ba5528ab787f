package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/rs/zerolog"
)

// Publisher hands an issued OTP to whatever delivers it.
type Publisher interface {
	PublishOTP(ctx context.Context, ev models.OTPIssued) error
}

// Notifier delivers a message to a recipient (email, SMS, console).
type Notifier interface {
	Notify(ctx context.Context, to, subject, message string) error
}

// LogNotifier writes messages to the log. Used in development and by the
// notifier worker until a mail provider is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, to, subject, message string) error {
	n.log.Info().Str("to", to).Str("subject", subject).Msg(message)
	return nil
}

// PublishOTP lets LogNotifier stand in for a broker when RABBIT_URL is unset.
func (n *LogNotifier) PublishOTP(ctx context.Context, ev models.OTPIssued) error {
	return Deliver(ctx, n, ev)
}

// Deliver renders the OTP message for ev and sends it through n.
func Deliver(ctx context.Context, n Notifier, ev models.OTPIssued) error {
	if ev.Email == "" || ev.Code == "" {
		return errors.New("otp event missing email or code")
	}
	subject, body := otpMessage(ev)
	return n.Notify(ctx, ev.Email, subject, body)
}

func otpMessage(ev models.OTPIssued) (string, string) {
	var subject string
	switch ev.Action {
	case models.OTPActionSignup:
		subject = "Verify your FreshCart account"
	case models.OTPActionLogin:
		subject = "Your FreshCart login code"
	case models.OTPActionResetPassword:
		subject = "Reset your FreshCart password"
	default:
		subject = "Your FreshCart code"
	}
	body := fmt.Sprintf("Your %s verification code is %s. It expires at %s.",
		ev.Role, ev.Code, ev.ExpiresAt.Format("15:04 MST"))
	return subject, body
}
