package completion

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// errNoContent is returned when an Anthropic message body has no content array.
var errNoContent = errors.New("response has no content blocks")

// Anthropic returns extractors for the Anthropic Messages API. Streams use
// the default frame decoder; only the envelope differs.
//
// Stream text comes from content_block_delta events with a text_delta.
// Thinking deltas are dropped; full responses join all text blocks and skip
// thinking blocks.
func Anthropic() *Extractors {
	return &Extractors{
		Delta: anthropicDelta,
		Full:  anthropicFull,
		Error: anthropicError,
	}
}

// PresetFor returns the extractors for a configured upstream format. Unknown
// formats and "openai" resolve to the OpenAI defaults.
func PresetFor(format string) *Extractors {
	switch strings.ToLower(format) {
	case FormatAnthropic:
		return Anthropic()
	default:
		return OpenAI()
	}
}

func anthropicDelta(frame Frame) (string, bool) {
	var event anthropic.MessageStreamEventUnion
	if err := json.Unmarshal(frame, &event); err != nil {
		return "", false
	}
	if event.Type != "content_block_delta" || event.Delta.Type != "text_delta" {
		return "", false
	}
	return event.Delta.Text, true
}

func anthropicFull(body json.RawMessage) (string, error) {
	var message anthropic.Message
	if err := json.Unmarshal(body, &message); err != nil {
		return "", err
	}
	if message.Content == nil {
		return "", errNoContent
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

func anthropicError(body json.RawMessage) (string, bool) {
	var errResp anthropic.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return "", false
	}
	if errResp.Error.Message == "" {
		return "", false
	}
	return errResp.Error.Message, true
}
