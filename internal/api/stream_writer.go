package api

import (
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// SSEStreamWriter emits a message reply as server-sent events: one
// message.delta per fragment, then message.completed or message.failed.
type SSEStreamWriter struct {
	w       io.Writer
	header  http.Header
	flusher func()
	seq     int
	begun   bool
	err     error
}

// NewSSEStreamWriter defers the event-stream headers to the first event, so a
// request that fails before producing output can still answer with JSON.
func NewSSEStreamWriter(c *echo.Context) (*SSEStreamWriter, error) {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	return &SSEStreamWriter{
		w:       res,
		header:  res.Header(),
		flusher: flusher.Flush,
		seq:     1,
	}, nil
}

// Started reports whether any event has been written, after which an HTTP
// error status can no longer be sent.
func (s *SSEStreamWriter) Started() bool {
	return s.begun
}

// EmitToken writes one delta. Write errors are kept and returned by
// Complete or Failed so the generation loop is never interrupted.
func (s *SSEStreamWriter) EmitToken(delta string) {
	if s.err != nil {
		return
	}
	s.err = s.send(streamEvent{Type: "message.delta", Delta: delta})
}

func (s *SSEStreamWriter) Complete(msg MessageResponse) error {
	if s.err != nil {
		return s.err
	}
	return s.send(streamEvent{Type: "message.completed", Message: &msg})
}

func (s *SSEStreamWriter) Failed(errType string, err error) error {
	if s.err != nil {
		return s.err
	}
	return s.send(streamEvent{
		Type:  "message.failed",
		Error: &ErrorBody{Message: err.Error(), Type: errType},
	})
}

func (s *SSEStreamWriter) send(ev streamEvent) error {
	if !s.begun {
		s.header.Set(echo.HeaderContentType, "text/event-stream")
		s.header.Set("Cache-Control", "no-cache")
		s.header.Set("Connection", "keep-alive")
		s.begun = true
	}
	ev.SequenceNumber = s.seq
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.flush()
	s.seq++
	return nil
}

func (s *SSEStreamWriter) flush() {
	if s.flusher != nil {
		s.flusher()
	}
}
