package chatfmt

import (
	"fmt"
	"strings"

	"github.com/samcharles93/trinity/internal/chat"
)

type mistralFormatter struct{}

func (mistralFormatter) Name() string {
	return "mistral"
}

func (mistralFormatter) StopSequences() []string {
	return []string{"</s>", "[INST]"}
}

func (mistralFormatter) Format(msgs []chat.Message) (string, chat.Role, error) {
	if err := validateMistralAlternation(msgs); err != nil {
		return "", "", err
	}

	var b strings.Builder
	b.WriteString("<s>")

	last := chat.RoleAssistant
	for _, msg := range msgs {
		switch msg.Role {
		case chat.RoleSystem:
			b.WriteString("[SYSTEM_PROMPT]")
			b.WriteString(msg.Content)
			b.WriteString("[/SYSTEM_PROMPT]")
		case chat.RoleUser:
			b.WriteString("[INST]")
			b.WriteString(msg.Content)
			b.WriteString("[/INST]")
		case chat.RoleAssistant:
			if msg.Content == "" {
				return "", "", fmt.Errorf("mistral: %w: assistant message must have content", ErrInvalidConversation)
			}
			b.WriteString(msg.Content)
			b.WriteString("</s>")
		default:
			return "", "", fmt.Errorf("mistral: %w %q", chat.ErrInvalidRole, msg.Role)
		}
		last = msg.Role
	}

	next := openNextTurn(&b, last, "", "[INST]")
	return b.String(), next, nil
}

func validateMistralAlternation(msgs []chat.Message) error {
	index := 0
	for _, msg := range msgs {
		if msg.Role != chat.RoleUser && msg.Role != chat.RoleAssistant {
			continue
		}
		expectedUser := index%2 == 0
		if (msg.Role == chat.RoleUser) != expectedUser {
			return fmt.Errorf("mistral: %w: messages must alternate user/assistant roles", ErrInvalidConversation)
		}
		index++
	}
	return nil
}
