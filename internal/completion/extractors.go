package completion

import (
	"context"
	"encoding/json"
	"errors"
	"iter"

	"github.com/tidwall/gjson"

	"github.com/florianilch/distill/internal/framestream"
)

// Frame is one decoded stream event, prior to content extraction.
type Frame = json.RawMessage

type (
	// StreamBuilder turns a streaming response into a frame sequence. The
	// sequence must stop when ctx is cancelled.
	StreamBuilder func(ctx context.Context, resp Response) (iter.Seq2[Frame, error], error)

	// DeltaExtractor returns the text fragment carried by a frame, or false
	// when the frame carries none.
	DeltaExtractor func(frame Frame) (string, bool)

	// FullExtractor returns the answer carried by a complete response body.
	// Missing content yields "" and no error; a body of the wrong shape is
	// an error.
	FullExtractor func(body json.RawMessage) (string, error)

	// ErrorExtractor returns the provider error message embedded in a
	// response body, or false when there is none.
	ErrorExtractor func(body json.RawMessage) (string, bool)
)

// Extractors decodes a provider-specific response envelope. Nil fields fall
// back to the OpenAI chat-completions defaults when resolved.
type Extractors struct {
	BuildStream StreamBuilder
	Delta       DeltaExtractor
	Full        FullExtractor
	Error       ErrorExtractor
}

// OpenAI returns the default extractors for the OpenAI chat-completions shape:
// choices[0].delta.content, choices[0].message.content and error.message.
func OpenAI() *Extractors {
	return &Extractors{
		BuildStream: BuildFrameStream,
		Delta:       openAIDelta,
		Full:        openAIFull,
		Error:       openAIError,
	}
}

// Resolve returns a fully populated copy of e. Fields set by the caller win;
// the rest are taken from OpenAI(). A nil receiver resolves to the defaults.
// The receiver is never modified and resolving twice yields the same set.
func (e *Extractors) Resolve() Extractors {
	var resolved Extractors
	if e != nil {
		resolved = *e
	}

	defaults := OpenAI()
	if resolved.BuildStream == nil {
		resolved.BuildStream = defaults.BuildStream
	}
	if resolved.Delta == nil {
		resolved.Delta = defaults.Delta
	}
	if resolved.Full == nil {
		resolved.Full = defaults.Full
	}
	if resolved.Error == nil {
		resolved.Error = defaults.Error
	}

	return resolved
}

// BuildFrameStream is the default StreamBuilder. It decodes the body as
// server-sent events or line-delimited JSON depending on the content type.
func BuildFrameStream(ctx context.Context, resp Response) (iter.Seq2[Frame, error], error) {
	body := resp.Body()
	if body == nil {
		return nil, errors.New("response has no body")
	}
	return framestream.Open(ctx, body, resp.Header("Content-Type")), nil
}

// openAIDelta reads choices[0].delta.content. Frames without it (role-only
// chunks, usage chunks, malformed frames) carry no text.
func openAIDelta(frame Frame) (string, bool) {
	content := gjson.GetBytes(frame, "choices.0.delta.content")
	if content.Type != gjson.String {
		return "", false
	}
	return content.Str, true
}

// openAIFull reads choices[0].message.content. Unlike openAIDelta it is
// strict: the choices[0].message object must exist.
func openAIFull(body json.RawMessage) (string, error) {
	message := gjson.GetBytes(body, "choices.0.message")
	if !message.IsObject() {
		return "", ErrNoChoices
	}

	content := message.Get("content")
	if content.Type != gjson.String {
		return "", nil
	}
	return content.Str, nil
}

// openAIError reads the top-level error.message.
func openAIError(body json.RawMessage) (string, bool) {
	message := gjson.GetBytes(body, "error.message")
	if message.Type != gjson.String || message.Str == "" {
		return "", false
	}
	return message.Str, true
}
