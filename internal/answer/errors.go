package answer

import "errors"

var (
	// ErrMissingQuestion rejects empty or whitespace-only questions.
	ErrMissingQuestion = errors.New("missing question")
	// ErrUpstream marks a web search that could not be performed.
	ErrUpstream = errors.New("upstream unavailable")
)

// UpstreamError carries the search adapter's message.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string { return e.Message }

func (e *UpstreamError) Unwrap() error { return ErrUpstream }
