package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Header wait states shared by a call and its timeout timer. Whichever side
// leaves headerWaiting first decides whether the call timed out.
const (
	headerWaiting int32 = iota
	headerReceived
	headerTimedOut
)

// Client posts chat-completion requests and maps the responses to answers.
// A Client is safe for concurrent use; every call owns its own context,
// accumulator and extractor set.
type Client struct {
	httpClient        *http.Client
	timeout           time.Duration
	minUpdateInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for upstream calls. Its transport
// is expected to handle authentication. Client.Timeout should stay zero so
// long streams are not cut off; use WithTimeout instead.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds the time until the upstream answers with headers.
// Zero or negative disables the timeout. Reading a streamed body is not
// bounded by it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithMinUpdateInterval sets the minimum time between partial deliveries.
// Zero or negative disables time-based throttling.
func WithMinUpdateInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.minUpdateInterval = interval
	}
}

// NewClient creates a Client. Without WithHTTPClient it uses a client with
// the default transport and no client-level timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestChatCompletion posts body as JSON to url and returns the sanitized
// answer.
//
// If onPartial is set and the upstream streams, partial answers are
// delivered while the stream is read. overrides replaces individual
// extractors; nil uses the OpenAI defaults.
//
// The timeout timer is stopped as soon as the round trip settles. Transport
// failures, including a timeout abort, are returned as *TransportError;
// errors.Is(err, ErrTimeout) reports the latter.
func (c *Client) RequestChatCompletion(
	ctx context.Context,
	url string,
	header http.Header,
	body any,
	onPartial PartialFunc,
	overrides *Extractors,
) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		timer *time.Timer
		state atomic.Int32
	)
	if c.timeout > 0 {
		timer = time.AfterFunc(c.timeout, func() {
			if state.CompareAndSwap(headerWaiting, headerTimedOut) {
				cancel(ErrTimeout)
			}
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		if timer != nil {
			timer.Stop()
		}
		return "", fmt.Errorf("creating request: %w", err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if timer != nil {
		timer.Stop()
	}
	// Once headers are claimed the timer can no longer cancel the body read.
	if !state.CompareAndSwap(headerWaiting, headerReceived) {
		if err == nil {
			_ = resp.Body.Close()
			return "", &TransportError{Err: fmt.Errorf("%w after %s", ErrTimeout, c.timeout)}
		}
		return "", &TransportError{Err: fmt.Errorf("%w after %s: %w", ErrTimeout, c.timeout, err)}
	}
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	slog.DebugContext(ctx, "upstream responded",
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
	)

	mapper := Mapper{
		Extractors: overrides,
		Stream: StreamConsumer{
			MinUpdateInterval: c.minUpdateInterval,
		},
	}
	return mapper.MapToAnswer(ctx, NewHTTPResponse(resp), onPartial)
}
