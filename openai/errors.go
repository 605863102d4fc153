package openai

import "fmt"

// ProviderError is a failed upstream call. StatusCode is zero for transport
// and timeout failures.
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("openai: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("openai: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("openai: %s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Unauthorized reports whether the failure looks like a rejected credential.
func (e *ProviderError) Unauthorized() bool {
	return e.StatusCode == 401
}
