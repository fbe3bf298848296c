package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// doneSentinel terminates an SSE stream. Clients stop reading when they see
// it; it is not JSON on purpose.
const doneSentinel = "[DONE]"

// sseWriter frames chat fragments as Server-Sent Events. Every frame is a
// single "data:" line followed by a blank line, flushed immediately so
// proxies and the client see tokens as they arrive.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter sets the event-stream headers and returns a writer, or an
// error when the underlying ResponseWriter cannot flush.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) writeFrame(payload string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteContent sends one content fragment as {"content": ...}.
func (s *sseWriter) WriteContent(text string) error {
	frame, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return err
	}
	return s.writeFrame(string(frame))
}

// WriteError sends an error frame as {"error": ...}.
func (s *sseWriter) WriteError(msg string) error {
	frame, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return err
	}
	return s.writeFrame(string(frame))
}

// WriteDone sends the terminating sentinel.
func (s *sseWriter) WriteDone() error {
	return s.writeFrame(doneSentinel)
}
