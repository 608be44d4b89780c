package chatfmt

import (
	"slices"
	"strings"

	"github.com/samcharles93/trinity/internal/chat"
)

// openNextTurn appends the opener for whoever speaks after last and reports
// that speaker. System and user turns hand over to the assistant; an
// assistant turn hands back to the user.
func openNextTurn(b *strings.Builder, last chat.Role, assistantOpen, userOpen string) chat.Role {
	if last == chat.RoleSystem || last == chat.RoleUser {
		b.WriteString(assistantOpen)
		return chat.RoleAssistant
	}
	b.WriteString(userOpen)
	return chat.RoleUser
}

// lastIndexOfRole returns the index of the final message with the given role,
// or -1.
func lastIndexOfRole(msgs []chat.Message, role chat.Role) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return i
		}
	}
	return -1
}

// stripPastThinking drops everything up to the last </think> tag.
func stripPastThinking(text string) string {
	if cut := strings.LastIndex(text, "</think>"); cut >= 0 {
		return strings.TrimSpace(text[cut+len("</think>"):])
	}
	return text
}

func cloneStops(stops []string) []string {
	return slices.Clone(stops)
}
