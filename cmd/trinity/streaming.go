package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

type StreamMode string

const (
	StreamInstant    StreamMode = "instant"
	StreamSmooth     StreamMode = "smooth"
	StreamTypewriter StreamMode = "typewriter"
)

func parseStreamMode(s string) (StreamMode, error) {
	switch mode := StreamMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return StreamInstant, nil
	case StreamInstant, StreamSmooth, StreamTypewriter:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown stream mode %q (want instant, smooth or typewriter)", s)
	}
}

// StreamWriter is the terminal sink for session output. Sessions write one
// fragment per Write call; the mode decides how fast it reaches the screen.
type StreamWriter struct {
	mode   StreamMode
	buffer *bufio.Writer

	mu            sync.Mutex
	batch         strings.Builder
	lastFlush     time.Time
	flushInterval time.Duration
	batchSize     int // flush after N words

	// pending holds a trailing partial UTF-8 sequence in typewriter mode.
	pending []byte

	stop chan struct{}
	done chan struct{}
}

func NewStreamWriter(mode StreamMode, out io.Writer) *StreamWriter {
	w := &StreamWriter{
		mode:          mode,
		buffer:        bufio.NewWriterSize(out, 4096),
		flushInterval: 50 * time.Millisecond,
		batchSize:     5,
		lastFlush:     time.Now(),
	}
	if mode == StreamSmooth {
		w.stop = make(chan struct{})
		w.done = make(chan struct{})
		go w.backgroundFlusher()
	}
	return w
}

func (w *StreamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.mode {
	case StreamSmooth:
		w.batch.Write(p)
		// Count words by spaces (rough approximation)
		words := strings.Count(w.batch.String(), " ") + 1
		if words >= w.batchSize || strings.ContainsRune(w.batch.String(), '\n') || time.Since(w.lastFlush) >= w.flushInterval {
			if err := w.flushBatch(); err != nil {
				return 0, err
			}
		}
	case StreamTypewriter:
		data := append(append([]byte(nil), w.pending...), p...)
		w.pending = nil
		for len(data) > 0 {
			if !utf8.FullRune(data) {
				w.pending = data
				break
			}
			_, size := utf8.DecodeRune(data)
			if _, err := w.buffer.Write(data[:size]); err != nil {
				return 0, err
			}
			if err := w.buffer.Flush(); err != nil {
				return 0, err
			}
			data = data[size:]
		}
	default:
		if _, err := w.buffer.Write(p); err != nil {
			return 0, err
		}
		if err := w.buffer.Flush(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush writes everything still buffered.
func (w *StreamWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		_, _ = w.buffer.Write(w.pending)
		w.pending = nil
	}
	if err := w.flushBatch(); err != nil {
		return err
	}
	return w.buffer.Flush()
}

// Close flushes and stops the background flusher.
func (w *StreamWriter) Close() error {
	if w.stop != nil {
		close(w.stop)
		<-w.done
		w.stop = nil
	}
	return w.Flush()
}

// flushBatch writes the accumulated batch (must hold lock)
func (w *StreamWriter) flushBatch() error {
	if w.batch.Len() == 0 {
		return nil
	}
	if _, err := w.buffer.WriteString(w.batch.String()); err != nil {
		return err
	}
	w.batch.Reset()
	w.lastFlush = time.Now()
	return w.buffer.Flush()
}

func (w *StreamWriter) backgroundFlusher() {
	defer close(w.done)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.mu.Lock()
			if time.Since(w.lastFlush) >= w.flushInterval && w.batch.Len() > 0 {
				_ = w.flushBatch()
			}
			w.mu.Unlock()
		}
	}
}
