package completion

import "context"

// Mapper turns an upstream response into the final answer.
type Mapper struct {
	// Extractors overrides the envelope decoding. Nil fields use the OpenAI
	// defaults.
	Extractors *Extractors
	// Stream configures partial delivery on the streaming path.
	Stream StreamConsumer
}

// MapToAnswer returns the sanitized answer carried by resp.
//
// The streaming path is taken only when onPartial is set and resp is a
// successful event stream; its result is returned as produced by the
// StreamConsumer, including any inline error annotation. Every other
// response must be JSON: provider errors embedded in the body and malformed
// bodies fail with *RequestError.
func (m Mapper) MapToAnswer(ctx context.Context, resp Response, onPartial PartialFunc) (string, error) {
	ex := m.Extractors.Resolve()

	if onPartial != nil && resp.OK() && IsEventStream(resp) {
		frames, err := ex.BuildStream(ctx, resp)
		if err != nil {
			return "", &StreamBuildError{Err: err}
		}
		if frames == nil {
			return "", &StreamBuildError{Err: errNilStream}
		}
		return m.Stream.Consume(ctx, frames, ex.Delta, onPartial).Text, nil
	}

	if !IsJSON(resp) {
		return "", &RequestError{Message: resp.StatusText()}
	}

	body, err := resp.DecodeJSON()
	if err != nil {
		return "", &RequestError{Message: "Invalid response body", Err: err}
	}
	if len(body) == 0 || string(body) == "null" {
		return "", &RequestError{Message: "Empty response"}
	}

	if message, ok := ex.Error(body); ok {
		if message == "" {
			message = "Unknown error"
		}
		return "", &RequestError{Message: message}
	}

	content, err := ex.Full(body)
	if err != nil {
		return "", &RequestError{Message: "Unexpected response shape", Err: err}
	}

	return Sanitize(content), nil
}
