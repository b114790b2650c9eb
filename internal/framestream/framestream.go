package framestream

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/openai/openai-go/packages/ssestream"
)

// Open adapts a streaming response body into a sequence of JSON frames. The
// decoder is chosen from contentType; anything that is not a line-delimited
// JSON type is treated as an event stream.
//
// An event stream may end without the blank line after its last event; that
// event is still delivered.
//
// The body is closed when iteration finishes or the consumer stops early.
// Cancelling ctx aborts iteration with the context's cause.
func Open(ctx context.Context, body io.ReadCloser, contentType string) iter.Seq2[json.RawMessage, error] {
	var decoder ssestream.Decoder
	if IsLineDelimited(contentType) {
		decoder = newLineDecoder(body)
	} else {
		// An empty header selects ssestream's built-in event-stream decoder
		// regardless of registered content types.
		decoder = ssestream.NewDecoder(&http.Response{Header: http.Header{}, Body: terminated(body)})
	}

	stream := ssestream.NewStream[json.RawMessage](skipEmpty{decoder}, nil)

	return func(yield func(json.RawMessage, error) bool) {
		defer func() { _ = stream.Close() }()

		for stream.Next() {
			if ctx.Err() != nil {
				yield(nil, context.Cause(ctx))
				return
			}
			if !yield(stream.Current(), nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				err = context.Cause(ctx)
			}
			yield(nil, err)
		}
	}
}

// IsLineDelimited reports whether contentType names a newline-delimited JSON
// framing.
func IsLineDelimited(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/stream+json") ||
		strings.Contains(ct, "application/x-ndjson") ||
		strings.Contains(ct, "application/jsonl")
}

// eventBody reads from Reader and closes the original body.
type eventBody struct {
	io.Reader
	io.Closer
}

// terminated appends a blank line to body. The event-stream decoder only
// dispatches on blank lines, so a final unterminated event would be dropped.
// A spare blank line yields an empty event, which skipEmpty discards.
func terminated(body io.ReadCloser) io.ReadCloser {
	return eventBody{
		Reader: io.MultiReader(body, strings.NewReader("\n\n")),
		Closer: body,
	}
}

// skipEmpty drops events without data. The event-stream decoder dispatches
// on every blank line, so keep-alive comments would otherwise reach the JSON
// decoder as empty payloads.
type skipEmpty struct {
	ssestream.Decoder
}

func (d skipEmpty) Next() bool {
	for d.Decoder.Next() {
		if len(strings.TrimSpace(string(d.Event().Data))) > 0 {
			return true
		}
	}
	return false
}
