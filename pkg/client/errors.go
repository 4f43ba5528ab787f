package client

import (
	"errors"
	"fmt"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
)

// GenericMessage is shown when the server gave no usable message.
const GenericMessage = "Something went wrong. Please try again."

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RejectionError is a response the server answered with a failure.
type RejectionError struct {
	Status   int
	Code     models.ReasonCode
	Message  string
	Redirect string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// UserMessage is the text to show for err.
func UserMessage(err error) string {
	var r *RejectionError
	if errors.As(err, &r) && r.Message != "" {
		return r.Message
	}
	return GenericMessage
}
