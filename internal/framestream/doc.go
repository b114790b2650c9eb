// Package framestream decodes streaming chat-completion response bodies into
// a pull sequence of JSON frames, one per stream event.
//
// Two framings are supported:
//
//   - text/event-stream: server-sent events, decoded with the openai-go
//     ssestream package. Comment-only keep-alive events are skipped and the
//     OpenAI "[DONE]" sentinel ends the sequence.
//
//   - application/stream+json (and application/x-ndjson): one JSON document
//     per line.
//
// Frames carrying a top-level "error" object terminate the sequence with an
// error, as do read failures and context cancellation. The sequence is
// forward-only and must be consumed at most once.
package framestream
