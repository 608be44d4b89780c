package chatfmt

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/samcharles93/trinity/internal/chat"
)

func TestChatMLHandsOverToAssistant(t *testing.T) {
	t.Parallel()

	out, next, err := Default().Format([]chat.Message{
		{Role: chat.RoleSystem, Content: "You are helpful."},
		{Role: chat.RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("format error: %v", err)
	}
	want := "<|im_start|>system\nYou are helpful.<|im_end|>\n" +
		"<|im_start|>user\nhello<|im_end|>\n" +
		"<|im_start|>assistant\n"
	if out != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", out, want)
	}
	if next != chat.RoleAssistant {
		t.Fatalf("expected next role assistant, got %q", next)
	}
}

func TestChatMLHandsOverToUserAfterAssistant(t *testing.T) {
	t.Parallel()

	out, next, err := Default().Format([]chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hey"},
	})
	if err != nil {
		t.Fatalf("format error: %v", err)
	}
	if next != chat.RoleUser {
		t.Fatalf("expected next role user, got %q", next)
	}
	if !strings.HasSuffix(out, "<|im_start|>user\n") {
		t.Fatalf("expected user opener suffix: %q", out)
	}
}

func TestChatMLStripsPastThinking(t *testing.T) {
	t.Parallel()

	out, _, err := Default().Format([]chat.Message{
		{Role: chat.RoleUser, Content: "a"},
		{Role: chat.RoleAssistant, Content: "<think>plan</think>\nfirst"},
		{Role: chat.RoleUser, Content: "b"},
		{Role: chat.RoleAssistant, Content: "<think>more</think>second"},
	})
	if err != nil {
		t.Fatalf("format error: %v", err)
	}
	if strings.Contains(out, "plan") {
		t.Fatalf("expected earlier thinking to be stripped: %q", out)
	}
	if !strings.Contains(out, "<|im_start|>assistant\nfirst<|im_end|>") {
		t.Fatalf("expected stripped earlier turn: %q", out)
	}
	if !strings.Contains(out, "<think>more</think>second") {
		t.Fatalf("expected last assistant turn kept intact: %q", out)
	}
}

func TestMixtralFoldsSystemIntoFirstInstruction(t *testing.T) {
	t.Parallel()

	f, err := Lookup("mixtral")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	out, next, err := f.Format([]chat.Message{
		{Role: chat.RoleSystem, Content: "Be brief."},
		{Role: chat.RoleUser, Content: "Hi"},
		{Role: chat.RoleAssistant, Content: "Hello"},
		{Role: chat.RoleUser, Content: "Bye"},
	})
	if err != nil {
		t.Fatalf("format error: %v", err)
	}
	want := "<s>[INST] Be brief.\n\nHi [/INST]Hello</s>[INST] Bye [/INST]"
	if out != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", out, want)
	}
	if next != chat.RoleAssistant {
		t.Fatalf("expected next role assistant, got %q", next)
	}
}

func TestGemmaFoldsSystemIntoUserTurn(t *testing.T) {
	t.Parallel()

	f, err := Lookup("gemma3")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	out, next, err := f.Format([]chat.Message{
		{Role: chat.RoleSystem, Content: "Be brief."},
		{Role: chat.RoleUser, Content: "Hi"},
	})
	if err != nil {
		t.Fatalf("format error: %v", err)
	}
	want := "<bos><start_of_turn>user\nBe brief.\n\nHi<end_of_turn>\n<start_of_turn>model\n"
	if out != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", out, want)
	}
	if next != chat.RoleAssistant {
		t.Fatalf("expected next role assistant, got %q", next)
	}
}

func TestMistralRejectsBrokenAlternation(t *testing.T) {
	t.Parallel()

	f, err := Lookup("mistral3")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	_, _, err = f.Format([]chat.Message{
		{Role: chat.RoleUser, Content: "a"},
		{Role: chat.RoleUser, Content: "b"},
	})
	if !errors.Is(err, ErrInvalidConversation) || !strings.Contains(err.Error(), "alternate") {
		t.Fatalf("expected alternation error, got %v", err)
	}
}

func TestMistralOpensAssistantWithoutMarker(t *testing.T) {
	t.Parallel()

	f, _ := Lookup("mistral")
	out, next, err := f.Format([]chat.Message{
		{Role: chat.RoleSystem, Content: "sys"},
		{Role: chat.RoleUser, Content: "q"},
	})
	if err != nil {
		t.Fatalf("format error: %v", err)
	}
	if out != "<s>[SYSTEM_PROMPT]sys[/SYSTEM_PROMPT][INST]q[/INST]" {
		t.Fatalf("unexpected output: %q", out)
	}
	if next != chat.RoleAssistant {
		t.Fatalf("expected next role assistant, got %q", next)
	}
}

func TestEveryPresetResolves(t *testing.T) {
	t.Parallel()

	msgs := []chat.Message{
		{Role: chat.RoleSystem, Content: "sys"},
		{Role: chat.RoleUser, Content: "hello"},
	}
	for _, name := range Presets() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f, err := Lookup(name)
			if err != nil {
				t.Fatalf("Lookup(%q): %v", name, err)
			}
			if f.Name() != name {
				t.Fatalf("Lookup(%q).Name() = %q", name, f.Name())
			}
			if len(f.StopSequences()) == 0 {
				t.Fatalf("preset %q has no default stop sequences", name)
			}
			out, next, err := f.Format(msgs)
			if err != nil {
				t.Fatalf("format: %v", err)
			}
			if !strings.Contains(out, "hello") {
				t.Fatalf("user content missing from %q", out)
			}
			if next != chat.RoleAssistant {
				t.Fatalf("expected assistant after user turn, got %q", next)
			}
		})
	}
}

func TestStopSequencesAreCopies(t *testing.T) {
	t.Parallel()

	f, _ := Lookup("vicuna")
	stops := f.StopSequences()
	stops[0] = "mutated"
	if slices.Contains(f.StopSequences(), "mutated") {
		t.Fatalf("StopSequences returned shared backing array")
	}
}

func TestLookupUnknown(t *testing.T) {
	t.Parallel()

	_, err := Lookup("alpaca")
	if !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		template string
		want     string
	}{
		{"{% for m in messages %}<|im_start|>{{ m.role }}\n{{ m.content }}<|im_end|>{% endfor %}", "chatml"},
		{"<start_of_turn>user\n{{ content }}<end_of_turn>", "gemma"},
		{"[SYSTEM_PROMPT]{{ system }}[/SYSTEM_PROMPT][INST]{{ content }}[/INST]", "mistral"},
		{"<<SYS>>\n{{ system }}\n<</SYS>>", "llama-2"},
		{"[INST] {{ content }} [/INST]", "mixtral"},
		{"GPT4 Correct User: {{ content }}<|end_of_turn|>", "open-chat"},
		{"USER: {{ content }}\nASSISTANT:", "vicuna"},
	}
	for _, tc := range tests {
		f, ok := Detect(tc.template)
		if !ok {
			t.Errorf("Detect(%q): no match", tc.template)
			continue
		}
		if f.Name() != tc.want {
			t.Errorf("Detect(%q) = %q, want %q", tc.template, f.Name(), tc.want)
		}
	}

	if _, ok := Detect("plain text"); ok {
		t.Fatalf("expected no match for plain text")
	}
}
