package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/otpflow"
)

// lines feeds stdin to the owner loop. The channel closes on EOF.
func lines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- strings.TrimSpace(sc.Text())
		}
	}()
	return ch
}

// enterCode drives an OTP flow that is already in OtpEntry until it verifies
// or the user quits. Typing "r" resends, "q" cancels.
func enterCode(ctx context.Context, flow *otpflow.Flow, in <-chan string, out io.Writer) (otpflow.Outcome, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	fmt.Fprintf(out, "Enter the %d-digit code (r: resend, q: quit)\n", otpflow.Digits)
	var outcome otpflow.Outcome
	announced := false

	for {
		select {
		case <-ctx.Done():
			flow.Cancel()
			return otpflow.Outcome{}, otpflow.ErrCanceled

		case <-ticker.C:
			before := flow.State()
			flow.Tick()
			switch {
			case before == otpflow.VerifiedSuccess && flow.State() == otpflow.Idle:
				return outcome, nil
			case flow.State() == otpflow.VerifiedSuccess:
				fmt.Fprintf(out, "Redirecting to login in %d...\n", flow.RedirectIn())
			case flow.CanResend() && !announced:
				fmt.Fprintln(out, "You can request a new code now (r).")
				announced = true
			}

		case line, ok := <-in:
			if !ok {
				flow.Cancel()
				return otpflow.Outcome{}, otpflow.ErrCanceled
			}
			if flow.State() == otpflow.VerifiedSuccess {
				continue
			}
			switch line {
			case "q":
				flow.Cancel()
				return otpflow.Outcome{}, otpflow.ErrCanceled
			case "r":
				if err := flow.Resend(ctx); err != nil {
					fmt.Fprintln(out, describe(err))
					continue
				}
				announced = false
				fmt.Fprintf(out, "New code sent. Resend again in %ds.\n", flow.ResendIn())
				continue
			}

			typeCode(flow, line)
			if !flow.CanVerify() {
				fmt.Fprintln(out, otpflow.ErrIncompleteCode.Message)
				continue
			}
			res, err := flow.Verify(ctx)
			if err != nil {
				fmt.Fprintln(out, describe(err))
				continue
			}
			if msg := flow.Message(); msg != "" {
				fmt.Fprintln(out, msg)
			}
			if flow.RedirectIn() == 0 {
				return res, nil
			}
			outcome = res
		}
	}
}

// typeCode replaces the boxes with the digits of s.
func typeCode(flow *otpflow.Flow, s string) {
	for i := otpflow.Digits - 1; i >= 0; i-- {
		flow.Backspace(i)
	}
	i := 0
	for _, r := range s {
		if i >= otpflow.Digits {
			break
		}
		if r < '0' || r > '9' {
			continue
		}
		flow.Input(i, r)
		i++
	}
}
