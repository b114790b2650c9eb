package completion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Response is the view of an upstream HTTP response the mapper works with.
// It is owned by a single request and not modified after it is received.
type Response interface {
	// OK reports whether the status code is in the 2xx range.
	OK() bool
	// StatusText is the human readable status, used as the error message
	// when a response cannot be interpreted.
	StatusText() string
	// Header returns the first value of the named header, or "".
	Header(key string) string
	// DecodeJSON reads the whole body as one JSON document. An empty body
	// yields a nil message and no error.
	DecodeJSON() (json.RawMessage, error)
	// Body exposes the raw body for stream decoding.
	Body() io.ReadCloser
}

// httpResponse adapts *http.Response to Response.
type httpResponse struct {
	resp *http.Response
}

// NewHTTPResponse wraps a net/http response.
func NewHTTPResponse(resp *http.Response) Response {
	return httpResponse{resp: resp}
}

func (r httpResponse) OK() bool {
	return r.resp.StatusCode >= 200 && r.resp.StatusCode < 300
}

func (r httpResponse) StatusText() string {
	if text := http.StatusText(r.resp.StatusCode); text != "" {
		return text
	}
	if r.resp.Status != "" {
		return r.resp.Status
	}
	return fmt.Sprintf("HTTP %d", r.resp.StatusCode)
}

func (r httpResponse) Header(key string) string {
	return r.resp.Header.Get(key)
}

func (r httpResponse) DecodeJSON() (json.RawMessage, error) {
	if r.resp.Body == nil {
		return nil, nil
	}

	data, err := io.ReadAll(r.resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var msg json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r httpResponse) Body() io.ReadCloser {
	return r.resp.Body
}
