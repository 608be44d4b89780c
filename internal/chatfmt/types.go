// Package chatfmt renders a chat history into the prompt layout a model was
// trained on.
package chatfmt

import (
	"errors"

	"github.com/samcharles93/trinity/internal/chat"
)

var (
	ErrUnknownPreset = errors.New("unknown format preset")
	// ErrInvalidConversation is returned when a history cannot be expressed in
	// a preset's layout.
	ErrInvalidConversation = errors.New("invalid conversation")
)

// Formatter turns a full message list (system message first, when present)
// into a prompt string. The returned role names the speaker the prompt hands
// over to; the engine's output is attributed to that role.
type Formatter interface {
	Name() string
	Format(msgs []chat.Message) (prompt string, next chat.Role, err error)
	// StopSequences is the default stop set for prompts built by this formatter.
	StopSequences() []string
}
