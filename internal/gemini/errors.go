package gemini

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey means the backend credential is absent. This is an
// environment misconfiguration, not a user error.
var ErrMissingAPIKey = errors.New("missing " + APIKeyEnv)

// ErrEmptyContent means the backend call succeeded but returned no usable
// text. Distinct from a JSON parse failure downstream; it usually indicates
// safety filtering rather than an instruction-following failure.
var ErrEmptyContent = errors.New("model returned empty content")

// UpstreamError carries the status and message of a failed backend call.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gemini request: %s", e.Message)
	}
	return fmt.Sprintf("gemini error (%d): %s", e.StatusCode, e.Message)
}
