package completion

import "strings"

// Upstream API formats understood by NewRequestBody and PresetFor.
const (
	FormatOpenAI    = "openai"
	FormatAnthropic = "anthropic"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system developer user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatRequest is the OpenAI chat-completions request body.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream,omitempty"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// AnthropicRequest is the Anthropic Messages request body. System turns are
// hoisted into System because the Messages API rejects them inline.
type AnthropicRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream,omitempty"`
	MaxTokens int       `json:"max_tokens"`
}

// NewRequestBody builds the request body for the given upstream format.
func NewRequestBody(format, model string, messages []Message, stream bool, maxTokens int) any {
	if !strings.EqualFold(format, FormatAnthropic) {
		return ChatRequest{
			Model:     model,
			Messages:  messages,
			Stream:    stream,
			MaxTokens: maxTokens,
		}
	}

	req := AnthropicRequest{
		Model:     model,
		Stream:    stream,
		MaxTokens: maxTokens,
	}
	for _, m := range messages {
		if m.Role == "system" || m.Role == "developer" {
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += m.Content
			continue
		}
		req.Messages = append(req.Messages, m)
	}
	return req
}
