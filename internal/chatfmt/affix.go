package chatfmt

import (
	"fmt"
	"strings"

	"github.com/samcharles93/trinity/internal/chat"
)

// affixFormatter wraps each message in fixed per-role markers. Most
// instruction-tuned models from the llama family use a layout of this shape.
type affixFormatter struct {
	name string

	prePrompt         string
	systemStart       string
	systemEnd         string
	userStart         string
	userEnd           string
	assistantStart    string
	assistantEnd      string
	stopSequences     []string
	systemInFirstUser bool
}

func (f *affixFormatter) Name() string {
	return f.name
}

func (f *affixFormatter) StopSequences() []string {
	return cloneStops(f.stopSequences)
}

func (f *affixFormatter) Format(msgs []chat.Message) (string, chat.Role, error) {
	var b strings.Builder
	b.WriteString(f.prePrompt)

	last := chat.RoleAssistant
	for _, msg := range msgs {
		switch msg.Role {
		case chat.RoleSystem:
			b.WriteString(f.systemStart)
			b.WriteString(msg.Content)
			b.WriteString(f.systemEnd)
		case chat.RoleUser:
			// The system block already opened the instruction, so the
			// first user turn continues it.
			if f.systemInFirstUser && last == chat.RoleSystem {
				b.WriteString(msg.Content)
			} else {
				b.WriteString(f.userStart)
				b.WriteString(msg.Content)
			}
			b.WriteString(f.userEnd)
		case chat.RoleAssistant:
			b.WriteString(f.assistantStart)
			b.WriteString(msg.Content)
			b.WriteString(f.assistantEnd)
		default:
			return "", "", fmt.Errorf("%s: %w %q", f.name, chat.ErrInvalidRole, msg.Role)
		}
		last = msg.Role
	}

	next := openNextTurn(&b, last, f.assistantStart, f.userStart)
	return b.String(), next, nil
}

var (
	mixtralFormatter = &affixFormatter{
		name:              "mixtral",
		prePrompt:         "<s>",
		systemStart:       "[INST] ",
		systemEnd:         "\n\n",
		userStart:         "[INST] ",
		userEnd:           " [/INST]",
		assistantStart:    "",
		assistantEnd:      "</s>",
		systemInFirstUser: true,
		stopSequences:     []string{"</s>"},
	}

	llama2Formatter = &affixFormatter{
		name:              "llama-2",
		prePrompt:         "<s>",
		systemStart:       "[INST] <<SYS>>\n",
		systemEnd:         "\n<</SYS>>\n\n",
		userStart:         "[INST] ",
		userEnd:           " [/INST]",
		assistantStart:    " ",
		assistantEnd:      " </s><s>",
		systemInFirstUser: true,
		stopSequences:     []string{"</s>"},
	}

	vicunaFormatter = &affixFormatter{
		name:           "vicuna",
		systemEnd:      "\n\n",
		userStart:      "USER: ",
		userEnd:        "\n",
		assistantStart: "ASSISTANT: ",
		assistantEnd:   "</s>\n",
		stopSequences:  []string{"</s>", "USER:"},
	}

	synthiaFormatter = &affixFormatter{
		name:           "synthia",
		systemStart:    "SYSTEM: ",
		systemEnd:      "\n",
		userStart:      "USER: ",
		userEnd:        "\n",
		assistantStart: "ASSISTANT: ",
		assistantEnd:   "\n",
		stopSequences:  []string{"</s>", "USER:"},
	}

	neuralChatFormatter = &affixFormatter{
		name:           "neural-chat",
		systemStart:    "### System:\n",
		systemEnd:      "\n",
		userStart:      "### User:\n",
		userEnd:        "\n",
		assistantStart: "### Assistant:\n",
		assistantEnd:   "\n",
		stopSequences:  []string{"### User:"},
	}

	solarFormatter = &affixFormatter{
		name:           "solar",
		systemEnd:      "\n\n",
		userStart:      "### User:\n",
		userEnd:        "\n\n",
		assistantStart: "### Assistant:\n",
		assistantEnd:   "</s>\n\n",
		stopSequences:  []string{"</s>", "### User:"},
	}

	openChatFormatter = &affixFormatter{
		name:           "open-chat",
		systemEnd:      "<|end_of_turn|>",
		userStart:      "GPT4 Correct User: ",
		userEnd:        "<|end_of_turn|>",
		assistantStart: "GPT4 Correct Assistant: ",
		assistantEnd:   "<|end_of_turn|>",
		stopSequences:  []string{"<|end_of_turn|>"},
	}
)
