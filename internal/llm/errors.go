package llm

import (
	"errors"
	"fmt"
)

// ProviderError wraps a failed provider API call.
type ProviderError struct {
	Provider   Provider
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RateLimited reports whether the provider rejected the call with 429.
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == 429
}

// InvalidResponseError indicates the provider answered without usable content.
type InvalidResponseError struct {
	Provider Provider
	Reason   string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid %s response: %s", e.Provider, e.Reason)
}

// IsRateLimited reports whether err is a rate-limited provider error.
func IsRateLimited(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.RateLimited()
}
