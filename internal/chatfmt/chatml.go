package chatfmt

import (
	"fmt"
	"strings"

	"github.com/samcharles93/trinity/internal/chat"
)

type chatMLFormatter struct {
	// keepPastThinking leaves <think> blocks in earlier assistant turns.
	keepPastThinking bool
}

func (chatMLFormatter) Name() string {
	return "chatml"
}

func (chatMLFormatter) StopSequences() []string {
	return []string{"<|im_end|>", "<|endoftext|>"}
}

func (f chatMLFormatter) Format(msgs []chat.Message) (string, chat.Role, error) {
	var b strings.Builder

	lastAssistant := lastIndexOfRole(msgs, chat.RoleAssistant)
	last := chat.RoleAssistant
	for i, m := range msgs {
		if !m.Role.Valid() {
			return "", "", fmt.Errorf("chatml: %w %q", chat.ErrInvalidRole, m.Role)
		}
		text := m.Content
		if m.Role == chat.RoleAssistant && !f.keepPastThinking && i != lastAssistant {
			text = stripPastThinking(text)
		}
		b.WriteString("<|im_start|>")
		b.WriteString(string(m.Role))
		b.WriteString("\n")
		b.WriteString(text)
		b.WriteString("<|im_end|>\n")
		last = m.Role
	}

	next := openNextTurn(&b, last, "<|im_start|>assistant\n", "<|im_start|>user\n")
	return b.String(), next, nil
}
