package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/distill/internal/completion"
	"github.com/florianilch/distill/internal/observability"
	"github.com/florianilch/distill/internal/observability/middleware"
)

// SSE event names of a streamed answer.
const (
	eventPartial = "partial"
	eventAnswer  = "answer"
	eventError   = "error"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// answerRequest is the body of POST /v1/answers.
type answerRequest struct {
	Messages []completion.Message `json:"messages" validate:"required,min=1,dive"`
	Stream   bool                 `json:"stream"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

type partialEvent struct {
	Text string `json:"text"`
}

// AnswersHandler answers a conversation, either as one JSON document or as
// a stream of partial events followed by the final answer.
type AnswersHandler struct {
	Answerer Answerer
}

// Compile-time check to ensure AnswersHandler implements http.Handler
var _ http.Handler = (*AnswersHandler)(nil)

func (h *AnswersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			slog.WarnContext(ctx, "request exceeds size limit", "limit_bytes", maxBytesErr.Limit)
			writeJSONError(ctx, w, http.StatusRequestEntityTooLarge, errorBody{
				Message: http.StatusText(http.StatusRequestEntityTooLarge),
				Type:    errorTypeInvalidRequest,
			})
			return
		}
		slog.DebugContext(ctx, "failed to decode request", "error", err)
		writeJSONError(ctx, w, http.StatusBadRequest, errorBody{
			Message: "request body must be a JSON object",
			Type:    errorTypeInvalidRequest,
		})
		return
	}

	if err := validate.Struct(req); err != nil {
		writeJSONError(ctx, w, http.StatusBadRequest, errorBody{
			Message: describeValidationError(err),
			Type:    errorTypeInvalidRequest,
		})
		return
	}

	middleware.SetLogAttrs(ctx,
		slog.Int("messages", len(req.Messages)),
		slog.Bool("stream", req.Stream),
	)

	if req.Stream {
		h.streamResponse(ctx, w, req.Messages)
	} else {
		h.writeResponse(ctx, w, req.Messages)
	}
}

// writeResponse answers with a single JSON document.
func (h *AnswersHandler) writeResponse(ctx context.Context, w http.ResponseWriter, messages []completion.Message) {
	answer, err := h.Answerer.Ask(ctx, messages, nil)
	if err != nil {
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected before answer")
			return
		}
		slog.ErrorContext(ctx, "request failed", "error", err)
		status, body := classifyError(err)
		writeJSONError(ctx, w, status, body)
		return
	}

	writeJSON(ctx, w, answerResponse{Answer: answer}, http.StatusOK)
}

// streamResponse answers with server-sent events. The stream is opened
// lazily so that failures before the first partial still get a proper
// status code.
func (h *AnswersHandler) streamResponse(ctx context.Context, w http.ResponseWriter, messages []completion.Message) {
	observability.StreamingConnections.Inc()
	defer observability.StreamingConnections.Dec()

	var sse *SSEWriter
	open := func() error {
		if sse != nil {
			return nil
		}
		var err error
		sse, err = NewSSEWriter(w)
		return err
	}

	onPartial := func(ctx context.Context, partial string) error {
		if err := open(); err != nil {
			return err
		}
		if err := sse.WriteEvent(eventPartial); err != nil {
			return err
		}
		return sse.WriteData(partialEvent{Text: partial})
	}

	answer, err := h.Answerer.Ask(ctx, messages, onPartial)
	if err != nil {
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected during stream")
			return
		}
		slog.ErrorContext(ctx, "streaming request failed", "error", err)
		status, body := classifyError(err)
		if sse == nil {
			writeJSONError(ctx, w, status, body)
			return
		}
		if writeErr := sse.WriteEvent(eventError); writeErr != nil {
			slog.ErrorContext(ctx, "failed to write error event type", "error", writeErr)
			return
		}
		if writeErr := sse.WriteData(errorResponse{Err: body}); writeErr != nil {
			slog.ErrorContext(ctx, "failed to write error", "error", writeErr)
		}
		return
	}

	if err := open(); err != nil {
		// Nothing was streamed, so the answer can still go out as JSON.
		slog.WarnContext(ctx, "SSE not supported, answering with JSON", "error", err)
		writeJSON(ctx, w, answerResponse{Answer: answer}, http.StatusOK)
		return
	}
	if err := sse.WriteEvent(eventAnswer); err != nil {
		slog.DebugContext(ctx, "failed to write answer event type", "error", err)
		return
	}
	if err := sse.WriteData(answerResponse{Answer: answer}); err != nil {
		slog.DebugContext(ctx, "failed to write answer", "error", err)
	}
}

// describeValidationError lists failed fields by their JSON path.
func describeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		field := jsonPath(fe.Namespace())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must contain at least %s item", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}

// jsonPath turns "answerRequest.Messages[0].Role" into "messages[0].role".
func jsonPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		path = namespace
	}
	return strings.ToLower(path)
}
