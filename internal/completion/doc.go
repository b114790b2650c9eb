// Package completion turns chat-completion HTTP responses from
// OpenAI-compatible APIs into a single plain-text answer.
//
// Responses arrive either as a stream (text/event-stream or
// application/stream+json) or as a single JSON document. Both paths share one
// contract:
//
//   - Client.RequestChatCompletion posts the request with a per-call
//     cancellable context and an optional timeout, then hands the response
//     to a Mapper.
//
//   - Mapper.MapToAnswer picks the streaming path when the caller supplied a
//     PartialFunc and the upstream answered with a successful event stream;
//     otherwise it requires a JSON body, surfaces provider errors and
//     extracts the full content.
//
//   - StreamConsumer.Consume accumulates deltas and hands throttled,
//     sanitized snapshots to the PartialFunc. Mid-stream failures do not
//     fail the call; they are appended to the answer as "\nError: <message>".
//
// Provider envelopes are decoded by Extractors. Unset fields fall back to the
// OpenAI chat-completions shape; Anthropic returns a preset for the Anthropic
// Messages API.
//
// Every answer, final or partial, passes through Sanitize, which removes
// model reasoning markup (<think>, <thinking>).
package completion
