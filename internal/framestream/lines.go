package framestream

import (
	"bufio"
	"bytes"
	"io"

	"github.com/openai/openai-go/packages/ssestream"
)

// lineDecoder implements ssestream.Decoder for newline-delimited JSON
// bodies. Each non-blank line becomes one untyped event.
type lineDecoder struct {
	rc  io.ReadCloser
	scn *bufio.Scanner
	evt ssestream.Event
	err error
}

var _ ssestream.Decoder = (*lineDecoder)(nil)

func newLineDecoder(rc io.ReadCloser) *lineDecoder {
	scn := bufio.NewScanner(rc)
	// Same ceiling as the event-stream decoder (~32MiB per line).
	scn.Buffer(nil, bufio.MaxScanTokenSize<<9)
	return &lineDecoder{rc: rc, scn: scn}
}

func (d *lineDecoder) Next() bool {
	if d.err != nil {
		return false
	}

	for d.scn.Scan() {
		line := bytes.TrimSpace(d.scn.Bytes())
		if len(line) == 0 {
			continue
		}
		// Some servers keep the SSE prefix even on line-delimited bodies.
		line = bytes.TrimPrefix(line, []byte("data:"))
		line = bytes.TrimSpace(line)

		d.evt = ssestream.Event{Data: append([]byte(nil), line...)}
		return true
	}

	d.err = d.scn.Err()
	return false
}

func (d *lineDecoder) Event() ssestream.Event {
	return d.evt
}

func (d *lineDecoder) Close() error {
	return d.rc.Close()
}

func (d *lineDecoder) Err() error {
	return d.err
}
