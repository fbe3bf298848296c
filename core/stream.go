package core

import (
	"context"
	"strings"
)

// Fragment is one unit of incrementally produced output text, or a terminal
// error indicator. A fragment with a non-nil Err is always the last one
// delivered.
type Fragment struct {
	Text string
	Err  error
}

// Stream is a finite, ordered sequence of fragments consumed at most once by
// a single caller. The producer closes the underlying channel to signal end of
// stream; a fresh stream is required per model invocation (not restartable).
type Stream struct {
	ch <-chan Fragment
}

// NewStream wraps a producer channel. The producer must close the channel when
// the underlying model signals completion.
func NewStream(ch <-chan Fragment) *Stream { return &Stream{ch: ch} }

// Next pulls the next fragment, suspending until the producer emits one. The
// second return value is false when the stream has ended. Cancelling ctx
// releases the consumer; abandonment is treated like a timeout by producers
// observing the same context.
func (s *Stream) Next(ctx context.Context) (Fragment, bool) {
	select {
	case <-ctx.Done():
		return Fragment{Err: ctx.Err()}, true
	case f, ok := <-s.ch:
		return f, ok
	}
}

// Fragments exposes the raw channel for range-based consumption.
func (s *Stream) Fragments() <-chan Fragment { return s.ch }

// Drain consumes the remaining fragments in emission order and returns their
// concatenation. A terminal error fragment stops consumption and is returned
// alongside the text accumulated so far.
func (s *Stream) Drain(ctx context.Context) (string, error) {
	var b strings.Builder
	for {
		f, ok := s.Next(ctx)
		if !ok {
			return b.String(), nil
		}
		if f.Err != nil {
			return b.String(), f.Err
		}
		b.WriteString(f.Text)
	}
}
