package inference

import "strings"

var endOfTurnMarkers = []string{
	"<|im_end|>",
	"<|endoftext|>",
	"<|end_of_text|>",
	"<|eot_id|>",
	"<|end_of_turn|>",
	"<end_of_turn>",
	"</s>",
}

// SanitizeResponse removes reasoning blocks and end-of-turn markers from a
// generated response so it can be fed back into later turns.
func SanitizeResponse(text string) string {
	return sanitize(text, nil)
}

// NewSanitizer returns a SanitizeResponse variant that also strips the given
// stop sequences, typically the active formatter's defaults.
func NewSanitizer(stops []string) func(string) string {
	extra := make([]string, 0, len(stops))
	for _, s := range stops {
		if s != "" {
			extra = append(extra, s)
		}
	}
	return func(text string) string {
		return sanitize(text, extra)
	}
}

func sanitize(text string, extra []string) string {
	s := stripThinkBlocks(text)
	for _, token := range endOfTurnMarkers {
		s = strings.ReplaceAll(s, token, "")
	}
	for _, token := range extra {
		s = strings.ReplaceAll(s, token, "")
	}
	return strings.TrimSpace(s)
}

func stripThinkBlocks(text string) string {
	source := text
	lower := strings.ToLower(source)
	const (
		openTag  = "<think>"
		closeTag = "</think>"
	)

	var b strings.Builder
	cursor := 0
	for cursor < len(source) {
		start := strings.Index(lower[cursor:], openTag)
		if start < 0 {
			b.WriteString(source[cursor:])
			break
		}
		start += cursor
		b.WriteString(source[cursor:start])

		thinkStart := start + len(openTag)
		end := strings.Index(lower[thinkStart:], closeTag)
		if end < 0 {
			break // unclosed block: drop the tail
		}
		cursor = thinkStart + end + len(closeTag)
	}
	return b.String()
}
