package chatfmt

import (
	"fmt"
	"strings"
)

// Presets returns the canonical preset names accepted by Lookup.
func Presets() []string {
	return []string{
		"chatml",
		"mixtral",
		"vicuna",
		"llama-2",
		"synthia",
		"neural-chat",
		"solar",
		"open-chat",
		"gemma",
		"mistral",
	}
}

// Default returns the ChatML formatter.
func Default() Formatter {
	return chatMLFormatter{}
}

// Lookup returns the formatter for a preset name. Architecture names used by
// model configs (qwen3, lfm2, gemma3, mistral3) resolve to their preset.
func Lookup(name string) (Formatter, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "-")
	switch key {
	case "", "chatml", "chat-ml", "qwen", "qwen2", "qwen3", "lfm2":
		return chatMLFormatter{}, nil
	case "mixtral":
		return mixtralFormatter, nil
	case "vicuna":
		return vicunaFormatter, nil
	case "llama-2", "llama2":
		return llama2Formatter, nil
	case "synthia":
		return synthiaFormatter, nil
	case "neural-chat", "neuralchat":
		return neuralChatFormatter, nil
	case "solar":
		return solarFormatter, nil
	case "open-chat", "openchat":
		return openChatFormatter, nil
	case "gemma", "gemma2", "gemma3", "gemma3-text":
		return gemmaFormatter{}, nil
	case "mistral", "mistral3", "ministral":
		return mistralFormatter{}, nil
	default:
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownPreset, name, strings.Join(Presets(), ", "))
	}
}

// Detect picks a preset from the markers found in a Jinja chat template, such
// as the chat_template field of tokenizer_config.json. ok is false when no
// preset matches.
func Detect(template string) (Formatter, bool) {
	tpl := template
	switch {
	case strings.Contains(tpl, "<start_of_turn>"):
		return gemmaFormatter{}, true
	case strings.Contains(tpl, "[SYSTEM_PROMPT]") && strings.Contains(tpl, "[INST]"):
		return mistralFormatter{}, true
	case strings.Contains(tpl, "<|im_start|>") && strings.Contains(tpl, "<|im_end|>"):
		return chatMLFormatter{}, true
	case strings.Contains(tpl, "GPT4 Correct"):
		return openChatFormatter, true
	case strings.Contains(tpl, "<<SYS>>"):
		return llama2Formatter, true
	case strings.Contains(tpl, "[INST]"):
		return mixtralFormatter, true
	case strings.Contains(tpl, "### System:"):
		return neuralChatFormatter, true
	case strings.Contains(tpl, "### User:"):
		return solarFormatter, true
	case strings.Contains(tpl, "USER:") && strings.Contains(tpl, "ASSISTANT:"):
		return vicunaFormatter, true
	default:
		return nil, false
	}
}
