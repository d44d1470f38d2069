package extraction

import (
	"errors"
	"fmt"
)

// Extraction errors. All of them are terminal for the current page attempt.
var (
	ErrInvalidImage     = errors.New("no decodable image")
	ErrNoTextRecognized = errors.New("no text recognized")
	ErrUpstreamService  = errors.New("upstream service error")
	ErrParseFailure     = errors.New("model reply is not the expected JSON")
)

// UpstreamError describes a failed call to the vision service.
// StatusCode is 0 when the failure happened before an HTTP response (timeout, network).
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream service error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream service error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUpstreamService) match any UpstreamError
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamService
}

// ValidationWarning flags a malformed field on an extracted item. The item is kept.
type ValidationWarning struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (w ValidationWarning) String() string {
	return fmt.Sprintf("item %d: %s=%q %s", w.Index, w.Field, w.Value, w.Message)
}
