package stream

import (
	"context"
	"fmt"
	"io"

	"github.com/tjfontaine/ragchat/internal/api/chatapi"
	"github.com/tjfontaine/ragchat/internal/domain"
)

// readBufferSize is the per-read buffer for the accumulator loop. Reads are
// demand-driven: the loop never pulls faster than the source yields.
const readBufferSize = 4096

// Sink receives the growing answer. SetAnswer always carries the full
// cumulative text, not a delta — every chunk replaces the visible text, so a
// backend emitting corrective deltas still renders correctly and observers
// never need to diff.
type Sink interface {
	SetAnswer(text string)
}

// Result is the side-channel metadata collected from the stream. Each field
// stays zero until a chunk carries it; when several chunks do, the last one
// wins.
type Result struct {
	Text              string
	Thoughts          string
	DataPoints        []string
	FollowupQuestions []string
}

// Accumulator drives a Decoder over a live response body and folds each
// chunk into a running answer. One Accumulator serves one exchange.
type Accumulator struct {
	dec       Decoder
	assembled []byte
	res       Result
}

// Run reads the body until end of stream, cancellation, or a read error.
//
// After every content-bearing chunk the sink holds the cumulative text and
// onProgress fires, in strict chunk-arrival order. Cancellation (via ctx) is
// a normal termination: Run stops consuming, keeps the partial answer in the
// sink, fires no further callbacks, and returns the metadata gathered so
// far with a nil error. A mid-read transport failure or an undecodable
// trailing chunk is returned as an error; partial text stays in the sink.
func (a *Accumulator) Run(ctx context.Context, body io.Reader, sink Sink, onProgress func()) (Result, error) {
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := body.Read(buf)

		// Cancellation is checked before acting on freshly read data so no
		// progress callback ever follows an acknowledged cancel.
		select {
		case <-ctx.Done():
			a.res.Text = string(a.assembled)
			return a.res, nil
		default:
		}

		if n > 0 {
			for _, chunk := range a.dec.Feed(buf[:n]) {
				a.apply(chunk, sink, onProgress)
			}
		}

		if readErr == io.EOF {
			tail, err := a.dec.Flush()
			if err != nil {
				a.res.Text = string(a.assembled)
				return a.res, err
			}
			if tail != nil {
				a.apply(*tail, sink, onProgress)
			}
			a.res.Text = string(a.assembled)
			return a.res, nil
		}
		if readErr != nil {
			a.res.Text = string(a.assembled)
			return a.res, domain.ErrTransport(fmt.Sprintf("stream read: %v", readErr))
		}
	}
}

// apply folds one chunk into the running state. Only content-bearing chunks
// touch the sink and fire progress; metadata-only chunks update the result
// silently, so observers are not woken for text that did not change.
func (a *Accumulator) apply(chunk chatapi.ChatChunk, sink Sink, onProgress func()) {
	delta := chunk.Delta()
	if delta.Context != nil {
		if delta.Context.Thoughts != "" {
			a.res.Thoughts = delta.Context.Thoughts
		}
		if len(delta.Context.DataPoints) > 0 {
			a.res.DataPoints = delta.Context.DataPoints
		}
		if len(delta.Context.FollowupQuestions) > 0 {
			a.res.FollowupQuestions = delta.Context.FollowupQuestions
		}
	}
	if delta.Content == "" {
		return
	}
	a.assembled = append(a.assembled, delta.Content...)
	sink.SetAnswer(string(a.assembled))
	if onProgress != nil {
		onProgress()
	}
}
