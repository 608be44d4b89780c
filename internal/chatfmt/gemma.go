package chatfmt

import (
	"fmt"
	"strings"

	"github.com/samcharles93/trinity/internal/chat"
)

// gemmaFormatter has no system turn; system text is folded into the start of
// the next user turn. The assistant speaks as "model".
type gemmaFormatter struct{}

func (gemmaFormatter) Name() string {
	return "gemma"
}

func (gemmaFormatter) StopSequences() []string {
	return []string{"<end_of_turn>", "<eos>"}
}

func (gemmaFormatter) Format(msgs []chat.Message) (string, chat.Role, error) {
	var b strings.Builder
	b.WriteString("<bos>")

	var pendingSystem []string
	last := chat.RoleAssistant
	for _, msg := range msgs {
		switch msg.Role {
		case chat.RoleSystem:
			if s := strings.TrimSpace(msg.Content); s != "" {
				pendingSystem = append(pendingSystem, s)
			}
		case chat.RoleUser:
			b.WriteString("<start_of_turn>user\n")
			if len(pendingSystem) > 0 {
				b.WriteString(strings.Join(pendingSystem, "\n\n"))
				b.WriteString("\n\n")
				pendingSystem = pendingSystem[:0]
			}
			b.WriteString(strings.TrimSpace(msg.Content))
			b.WriteString("<end_of_turn>\n")
		case chat.RoleAssistant:
			b.WriteString("<start_of_turn>model\n")
			b.WriteString(strings.TrimSpace(msg.Content))
			b.WriteString("<end_of_turn>\n")
		default:
			return "", "", fmt.Errorf("gemma: %w %q", chat.ErrInvalidRole, msg.Role)
		}
		last = msg.Role
	}

	// System text with no user turn after it still has to reach the model.
	if len(pendingSystem) > 0 {
		b.WriteString("<start_of_turn>user\n")
		b.WriteString(strings.Join(pendingSystem, "\n\n"))
		b.WriteString("<end_of_turn>\n")
	}

	next := openNextTurn(&b, last, "<start_of_turn>model\n", "<start_of_turn>user\n")
	return b.String(), next, nil
}
