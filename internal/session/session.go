// Package session keeps a linear chat history and forwards it, rendered by a
// prompt formatter, to an inference engine.
//
// A Session is not safe for concurrent use. Every Send blocks until the
// engine has finished.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/samcharles93/trinity/internal/chat"
	"github.com/samcharles93/trinity/internal/chatfmt"
	"github.com/samcharles93/trinity/internal/inference"
	"github.com/samcharles93/trinity/internal/logger"
)

const (
	DefaultName         = "model"
	DefaultSystemPrompt = "You are helpful assistant."

	// NoModelLoaded is the user-facing text for ErrNoEngine.
	NoModelLoaded = "Error: No model loaded!"
)

// ErrNoEngine is returned by Send when the session has no engine.
var ErrNoEngine = errors.New("no model loaded")

type Config struct {
	Name         string
	SystemPrompt string
	// Format selects a chatfmt preset. Ignored when Formatter is set.
	Format    string
	Formatter chatfmt.Formatter
	// Debug writes every rendered prompt to Output before it is sent.
	Debug bool
	// Output receives printed responses and debug prompts. Defaults to stdout.
	Output io.Writer
	Logger logger.Logger
	// Sanitize, when set, rewrites responses before they enter the history.
	// The text returned from Send is never rewritten.
	Sanitize func(string) string
}

type Session struct {
	id           string
	name         string
	systemPrompt string
	formatter    chatfmt.Formatter
	engine       inference.Engine
	debug        bool
	out          io.Writer
	log          logger.Logger
	sanitize     func(string) string

	messages []chat.Message
}

// New creates a session. engine may be nil; Send then reports ErrNoEngine.
func New(engine inference.Engine, cfg Config) (*Session, error) {
	formatter := cfg.Formatter
	if formatter == nil {
		f, err := chatfmt.Lookup(cfg.Format)
		if err != nil {
			return nil, err
		}
		formatter = f
	}

	s := &Session{
		id:           uuid.Must(uuid.NewV7()).String(),
		name:         cfg.Name,
		systemPrompt: cfg.SystemPrompt,
		formatter:    formatter,
		engine:       engine,
		debug:        cfg.Debug,
		out:          cfg.Output,
		log:          cfg.Logger,
		sanitize:     cfg.Sanitize,
		messages:     make([]chat.Message, 0, 16),
	}
	if s.name == "" {
		s.name = DefaultName
	}
	if s.systemPrompt == "" {
		s.systemPrompt = DefaultSystemPrompt
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	s.log = s.log.With("session", s.name, "session_id", s.id)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Name() string {
	return s.name
}

func (s *Session) SystemPrompt() string {
	return s.systemPrompt
}

func (s *Session) SetSystemPrompt(prompt string) {
	s.systemPrompt = prompt
}

func (s *Session) Formatter() chatfmt.Formatter {
	return s.formatter
}

func (s *Session) Engine() inference.Engine {
	return s.engine
}

// SetEngine swaps the engine; nil unloads it.
func (s *Session) SetEngine(engine inference.Engine) {
	s.engine = engine
}

// Messages returns a copy of the history. The system prompt is not part of it.
func (s *Session) Messages() []chat.Message {
	return chat.Clone(s.messages)
}

// Len reports the number of history entries.
func (s *Session) Len() int {
	return len(s.messages)
}

// Truncate removes the last k messages. k larger than the history clears it;
// k <= 0 does nothing. It returns how many messages were removed.
func (s *Session) Truncate(k int) int {
	if k <= 0 {
		return 0
	}
	k = min(k, len(s.messages))
	clear(s.messages[len(s.messages)-k:])
	s.messages = s.messages[:len(s.messages)-k]
	return k
}

// Reset clears the history.
func (s *Session) Reset() {
	s.Truncate(len(s.messages))
}

// Prompt renders the system prompt plus the current history, exactly as the
// next Send would before appending its own message.
func (s *Session) Prompt() (string, chat.Role, error) {
	return s.formatter.Format(s.requestMessages())
}

func (s *Session) requestMessages() []chat.Message {
	msgs := make([]chat.Message, 0, len(s.messages)+1)
	msgs = append(msgs, chat.Message{Role: chat.RoleSystem, Content: s.systemPrompt})
	msgs = append(msgs, s.messages...)
	return msgs
}

func (s *Session) String() string {
	return fmt.Sprintf("%s (%s, %d messages)", s.name, s.formatter.Name(), len(s.messages))
}

func (s *Session) print(text string) {
	_, _ = io.WriteString(s.out, text)
}

func trimForLog(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
