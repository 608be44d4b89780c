package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samcharles93/trinity/internal/chat"
	"github.com/samcharles93/trinity/internal/inference"
)

// SendOptions controls a single Send. Start from DefaultSendOptions; the zero
// value disables streaming, printing and history recording.
type SendOptions struct {
	Role     chat.Role
	Grammar  *inference.Grammar
	Sampling inference.Sampling
	// Stop nil means the formatter's default stop sequences. An empty,
	// non-nil slice sends no stop sequences at all.
	Stop []string

	Stream bool
	// AddToHistory records the response under the role the formatter handed
	// the turn to.
	AddToHistory bool
	// Print writes the response to the session output, fragment by fragment
	// when streaming, followed by a newline.
	Print bool
	// Fragments, when set, receives every fragment in order whether or not
	// the response is printed.
	Fragments func(fragment string)
}

func DefaultSendOptions() SendOptions {
	return SendOptions{
		Role:         chat.RoleUser,
		Sampling:     inference.DefaultSampling(),
		Stream:       true,
		AddToHistory: true,
		Print:        true,
	}
}

// Send appends message to the history, renders the system prompt plus the
// history, and asks the engine to continue it. The caller's message stays in
// the history even when the engine is missing or fails.
func (s *Session) Send(ctx context.Context, message string, opts SendOptions) (string, error) {
	reply, err := s.Reply(ctx, message, opts)
	return reply.Content, err
}

// Reply is Send, but also reports the role the response was generated for.
// The content is the unsanitized engine output.
func (s *Session) Reply(ctx context.Context, message string, opts SendOptions) (chat.Message, error) {
	role := opts.Role
	if role == "" {
		role = chat.RoleUser
	}
	if !role.Valid() {
		return chat.Message{}, fmt.Errorf("%w %q", chat.ErrInvalidRole, role)
	}

	s.messages = append(s.messages, chat.Message{Role: role, Content: message})

	prompt, responseRole, err := s.formatter.Format(s.requestMessages())
	if err != nil {
		return chat.Message{}, fmt.Errorf("format prompt: %w", err)
	}
	if s.debug {
		s.print(prompt)
	}
	s.log.Debug("prompt rendered",
		"formatter", s.formatter.Name(),
		"role", role,
		"response_role", responseRole,
		"history", len(s.messages),
		"prompt_chars", len(prompt),
	)

	stop := opts.Stop
	if stop == nil {
		stop = s.formatter.StopSequences()
	}

	if s.engine == nil {
		s.log.Warn("send without engine", "message", trimForLog(message, 80))
		return chat.Message{}, ErrNoEngine
	}

	req := &inference.Request{
		Prompt:   prompt,
		Stream:   opts.Stream,
		Sampling: opts.Sampling,
		Stop:     stop,
		Grammar:  opts.Grammar,
	}

	var response strings.Builder
	sink := func(fragment string) {
		response.WriteString(fragment)
		if opts.Fragments != nil {
			opts.Fragments(fragment)
		}
		if opts.Print {
			s.print(fragment)
		}
	}

	var stream inference.StreamFunc
	if opts.Stream {
		stream = sink
	}

	start := time.Now()
	result, err := s.engine.Complete(ctx, req, stream)
	if err != nil {
		return chat.Message{}, fmt.Errorf("complete: %w", err)
	}
	if !opts.Stream && result != nil {
		sink(result.Text)
	}
	if opts.Print {
		s.print("\n")
	}

	text := response.String()
	if opts.AddToHistory {
		recorded := text
		if s.sanitize != nil {
			recorded = s.sanitize(recorded)
		}
		s.messages = append(s.messages, chat.Message{Role: responseRole, Content: recorded})
	}

	attrs := []any{
		"stream", opts.Stream,
		"response_role", responseRole,
		"chars", len(text),
		"elapsed", time.Since(start),
	}
	if result != nil && result.Stats.TokensGenerated > 0 {
		attrs = append(attrs, "tokens", result.Stats.TokensGenerated, "tps", result.Stats.TPS)
	}
	s.log.Debug("response complete", attrs...)

	return chat.Message{Role: responseRole, Content: text}, nil
}
