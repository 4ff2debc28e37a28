package assessment

import (
	"errors"
	"fmt"
)

// Kind classifies a submission failure so callers can choose between
// prompting for re-authentication and offering a retry.
type Kind string

const (
	KindAuthentication    Kind = "authentication"
	KindNetwork           Kind = "network"
	KindService           Kind = "service"
	KindMalformedResponse Kind = "malformed_response"
)

// Error is a classified submission failure.
type Error struct {
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Cause      error  `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether offering a retry makes sense. Authentication
// failures need a fresh session instead.
func (e *Error) Retryable() bool {
	return e.Kind != KindAuthentication
}

// UserMessage returns the text shown to the user for this failure.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindAuthentication:
		return "Your session has expired. Please sign in again to get your assessment."
	case KindNetwork:
		return "We couldn't reach the assessment service. Check your connection and try again."
	case KindMalformedResponse:
		return "The assessment service returned an unexpected response. Please try again."
	default:
		if e.Message != "" {
			return e.Message
		}
		return "The assessment service could not complete your request. Please try again."
	}
}

// AsError returns err as an *Error. Unclassified errors become service errors.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindService, Message: err.Error(), Cause: err}
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
