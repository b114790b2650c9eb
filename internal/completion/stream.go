package completion

import (
	"context"
	"iter"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// initialUpdateStep is the number of characters that must accumulate
	// before the first partial delivery.
	initialUpdateStep = 50
	// updateStepGrowth widens the threshold after every flush so that long
	// answers are delivered less often.
	updateStepGrowth = 20
	// partialMarker is appended to every partial delivery.
	partialMarker = "\n..."
)

// PartialFunc receives sanitized partial answers while a stream is consumed.
// Consumption waits for it to return; a non-nil error stops the stream the
// same way a read failure does.
type PartialFunc func(ctx context.Context, partial string) error

// StreamConsumer accumulates a frame sequence into an answer.
type StreamConsumer struct {
	// MinUpdateInterval is the minimum time between two partial deliveries.
	// Zero or negative disables time-based throttling.
	MinUpdateInterval time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// StreamResult is the outcome of consuming a stream.
type StreamResult struct {
	// Text is the sanitized answer. When Err is set it ends with
	// "\nError: <message>".
	Text string
	// Err is the failure that cut the stream short, nil on clean completion.
	Err error
}

// Annotated reports whether the stream ended with an inline error.
func (r StreamResult) Annotated() bool {
	return r.Err != nil
}

// accumulator is the per-call state of Consume.
type accumulator struct {
	text strings.Builder
	// lengthDelta counts characters appended since the last flush.
	lengthDelta int
	// updateStep is the threshold lengthDelta must exceed to flush.
	updateStep int
	// lastFlush starts at the beginning of consumption, so the first
	// partial also waits one interval.
	lastFlush     time.Time
	lastDelivered string
}

// Consume reads frames to exhaustion, extracting text with delta and
// delivering throttled snapshots to onPartial (which may be nil).
//
// A failing sequence or sink does not fail the call. Consumption stops and
// the error message is appended to the accumulated text, so the caller still
// gets the partial answer. The returned text is always sanitized.
func (c StreamConsumer) Consume(
	ctx context.Context,
	frames iter.Seq2[Frame, error],
	delta DeltaExtractor,
	onPartial PartialFunc,
) StreamResult {
	acc := &accumulator{
		updateStep: initialUpdateStep,
		lastFlush:  c.now(),
	}

	var failure error
	for frame, err := range frames {
		if err != nil {
			failure = err
			break
		}

		text, ok := delta(frame)
		if !ok || text == "" {
			continue
		}

		acc.text.WriteString(text)
		acc.lengthDelta += utf8.RuneCountInString(text)

		if err := c.flush(ctx, acc, onPartial); err != nil {
			failure = err
			break
		}
	}

	if failure != nil {
		acc.text.WriteString("\nError: " + failure.Error())
	}

	return StreamResult{
		Text: Sanitize(acc.text.String()),
		Err:  failure,
	}
}

// flush delivers a snapshot when enough text has accumulated and the minimum
// interval has passed. A throttled attempt leaves lengthDelta untouched, so
// the next delta retries.
func (c StreamConsumer) flush(ctx context.Context, acc *accumulator, onPartial PartialFunc) error {
	if acc.lengthDelta <= acc.updateStep {
		return nil
	}

	now := c.now()
	if c.MinUpdateInterval > 0 && now.Sub(acc.lastFlush) < c.MinUpdateInterval {
		return nil
	}

	acc.lengthDelta = 0
	acc.updateStep += updateStepGrowth
	acc.lastFlush = now

	snapshot := Sanitize(acc.text.String())
	if onPartial == nil || snapshot == "" || snapshot == acc.lastDelivered {
		return nil
	}
	acc.lastDelivered = snapshot

	return onPartial(ctx, snapshot+partialMarker)
}

func (c StreamConsumer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
