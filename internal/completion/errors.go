package completion

import "errors"

var (
	// ErrTimeout is the cancellation cause when the configured request
	// timeout elapses before the upstream answered.
	ErrTimeout = errors.New("request timed out")

	// ErrNoChoices is returned by the default full-content extractor when
	// the body has no choices[0].message object.
	ErrNoChoices = errors.New("response has no choices[0].message")

	errNilStream = errors.New("stream builder returned no frames")
)

// RequestError reports a response that could not be turned into an answer:
// an unexpected content type, an empty or malformed body, or an error
// message embedded by the provider.
type RequestError struct {
	Message string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface, returning the message.
func (e *RequestError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed round trip, including aborts caused by
// cancellation or the request timeout.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return "upstream request failed: " + e.Err.Error()
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// StreamBuildError reports that a streaming response was expected but no
// frame sequence could be built for it.
type StreamBuildError struct {
	Err error
}

// Error implements the error interface.
func (e *StreamBuildError) Error() string {
	return "cannot read response stream: " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *StreamBuildError) Unwrap() error {
	return e.Err
}
