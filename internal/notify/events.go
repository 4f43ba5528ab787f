package notify

import (
	"encoding/json"
	"fmt"
)

// routing keys on the auth exchange
const (
	RKOTPIssued = "otp.issued"
)

// Decode unmarshals an event payload.
func Decode[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
