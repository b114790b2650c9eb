package completion

import (
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"strings"
)

// newResponse builds a Response backed by an in-memory body.
func newResponse(status int, contentType, body string) Response {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return NewHTTPResponse(&http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	})
}

// deltaFrame encodes an OpenAI streaming chunk carrying content.
func deltaFrame(content string) Frame {
	frame, err := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"index": 0, "delta": map[string]any{"content": content}},
		},
	})
	if err != nil {
		panic(err)
	}
	return frame
}

// framesOf yields one OpenAI chunk per delta, then failure if non-nil.
func framesOf(failure error, deltas ...string) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for _, d := range deltas {
			if !yield(deltaFrame(d), nil) {
				return
			}
		}
		if failure != nil {
			yield(nil, failure)
		}
	}
}

// sseBody renders deltas as an OpenAI event stream.
func sseBody(deltas ...string) string {
	var b strings.Builder
	b.WriteString("data: {\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\"}}]}\n\n")
	for _, d := range deltas {
		b.WriteString("data: ")
		b.Write(deltaFrame(d))
		b.WriteString("\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

var errBoom = errors.New("boom")
