package session

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/samcharles93/trinity/internal/chat"
	"github.com/samcharles93/trinity/internal/chatfmt"
	"github.com/samcharles93/trinity/internal/inference"
)

// stubEngine streams its fragments when asked to, or returns them joined.
type stubEngine struct {
	fragments []string
	err       error
	requests  []inference.Request
}

func (e *stubEngine) Complete(ctx context.Context, req *inference.Request, stream inference.StreamFunc) (*inference.Result, error) {
	e.requests = append(e.requests, *req)
	if e.err != nil {
		return nil, e.err
	}
	text := strings.Join(e.fragments, "")
	if req.Stream && stream != nil {
		for _, f := range e.fragments {
			stream(f)
		}
		return &inference.Result{}, nil
	}
	return &inference.Result{Text: text}, nil
}

func newTestSession(t *testing.T, engine inference.Engine, out *bytes.Buffer) *Session {
	t.Helper()
	s, err := New(engine, Config{
		SystemPrompt: "You are helpful.",
		Output:       out,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func quietOptions(stream bool) SendOptions {
	opts := DefaultSendOptions()
	opts.Stream = stream
	opts.Print = false
	return opts
}

func TestSendScenario(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{fragments: []string{"Hello!"}}
	s := newTestSession(t, engine, &bytes.Buffer{})

	got, err := s.Send(context.Background(), "Hi", quietOptions(false))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != "Hello!" {
		t.Fatalf("Send returned %q, want %q", got, "Hello!")
	}

	want := []chat.Message{
		{Role: chat.RoleUser, Content: "Hi"},
		{Role: chat.RoleAssistant, Content: "Hello!"},
	}
	if !reflect.DeepEqual(s.Messages(), want) {
		t.Fatalf("history = %+v, want %+v", s.Messages(), want)
	}
}

func TestSendBuildsRequestFromFormatter(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{fragments: []string{"ok"}}
	s := newTestSession(t, engine, &bytes.Buffer{})

	opts := quietOptions(true)
	opts.Sampling.Temperature = 0.9
	opts.Sampling.MirostatMode = 2
	opts.Grammar = inference.NewGrammar(`root ::= "ok"`)
	if _, err := s.Send(context.Background(), "Hi", opts); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(engine.requests) != 1 {
		t.Fatalf("expected 1 engine call, got %d", len(engine.requests))
	}
	req := engine.requests[0]
	wantPrompt := "<|im_start|>system\nYou are helpful.<|im_end|>\n" +
		"<|im_start|>user\nHi<|im_end|>\n" +
		"<|im_start|>assistant\n"
	if req.Prompt != wantPrompt {
		t.Fatalf("prompt = %q, want %q", req.Prompt, wantPrompt)
	}
	if !req.Stream {
		t.Fatalf("expected streaming request")
	}
	if !slices.Equal(req.Stop, chatfmt.Default().StopSequences()) {
		t.Fatalf("expected formatter stop sequences, got %v", req.Stop)
	}
	if req.Temperature != 0.9 || req.MirostatMode != 2 {
		t.Fatalf("sampling not forwarded: %+v", req.Sampling)
	}
	if req.Grammar == nil || req.Grammar.Source != `root ::= "ok"` {
		t.Fatalf("grammar not forwarded: %v", req.Grammar)
	}
}

func TestSendExplicitStopSequences(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{fragments: []string{"ok"}}
	s := newTestSession(t, engine, &bytes.Buffer{})

	opts := quietOptions(false)
	opts.Stop = []string{"\n\n"}
	if _, err := s.Send(context.Background(), "Hi", opts); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !slices.Equal(engine.requests[0].Stop, []string{"\n\n"}) {
		t.Fatalf("stop = %v", engine.requests[0].Stop)
	}
}

func TestSendStreamingMatchesBatch(t *testing.T) {
	t.Parallel()

	fragments := []string{"Hel", "lo", ", ", "world"}

	streamed := newTestSession(t, &stubEngine{fragments: fragments}, &bytes.Buffer{})
	batched := newTestSession(t, &stubEngine{fragments: fragments}, &bytes.Buffer{})

	a, err := streamed.Send(context.Background(), "Hi", quietOptions(true))
	if err != nil {
		t.Fatalf("streamed Send: %v", err)
	}
	b, err := batched.Send(context.Background(), "Hi", quietOptions(false))
	if err != nil {
		t.Fatalf("batched Send: %v", err)
	}
	if a != b || a != "Hello, world" {
		t.Fatalf("streamed %q vs batched %q", a, b)
	}
	if !reflect.DeepEqual(streamed.Messages(), batched.Messages()) {
		t.Fatalf("histories differ: %+v vs %+v", streamed.Messages(), batched.Messages())
	}
}

func TestSendPrintsFragmentsThenNewline(t *testing.T) {
	t.Parallel()

	for _, stream := range []bool{true, false} {
		var out bytes.Buffer
		s := newTestSession(t, &stubEngine{fragments: []string{"a", "b", "c"}}, &out)

		opts := DefaultSendOptions()
		opts.Stream = stream
		if _, err := s.Send(context.Background(), "x", opts); err != nil {
			t.Fatalf("Send(stream=%v): %v", stream, err)
		}
		if out.String() != "abc\n" {
			t.Fatalf("stream=%v printed %q, want %q", stream, out.String(), "abc\n")
		}
	}
}

func TestSendQuietPrintsNothing(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	s := newTestSession(t, &stubEngine{fragments: []string{"a"}}, &out)
	if _, err := s.Send(context.Background(), "x", quietOptions(true)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

func TestSendDebugWritesPrompt(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	s, err := New(&stubEngine{fragments: []string{"ok"}}, Config{Output: &out, Debug: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Send(context.Background(), "Hi", quietOptions(false)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.HasPrefix(out.String(), "<|im_start|>system\n"+DefaultSystemPrompt) {
		t.Fatalf("expected prompt echoed, got %q", out.String())
	}
}

func TestSendWithoutHistoryRecording(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, &stubEngine{fragments: []string{"reply"}}, &bytes.Buffer{})

	opts := quietOptions(true)
	opts.AddToHistory = false
	for _, msg := range []string{"one", "two"} {
		if _, err := s.Send(context.Background(), msg, opts); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	want := []chat.Message{
		{Role: chat.RoleUser, Content: "one"},
		{Role: chat.RoleUser, Content: "two"},
	}
	if !reflect.DeepEqual(s.Messages(), want) {
		t.Fatalf("history = %+v, want %+v", s.Messages(), want)
	}
}

func TestSendWithoutEngine(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	s := newTestSession(t, nil, &out)

	got, err := s.Send(context.Background(), "Hi", DefaultSendOptions())
	if !errors.Is(err, ErrNoEngine) {
		t.Fatalf("expected ErrNoEngine, got %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
	want := []chat.Message{{Role: chat.RoleUser, Content: "Hi"}}
	if !reflect.DeepEqual(s.Messages(), want) {
		t.Fatalf("history = %+v, want %+v", s.Messages(), want)
	}
	if out.Len() != 0 {
		t.Fatalf("expected nothing printed, got %q", out.String())
	}
}

func TestSendEngineErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("engine exploded")
	s := newTestSession(t, &stubEngine{err: boom}, &bytes.Buffer{})

	_, err := s.Send(context.Background(), "Hi", quietOptions(false))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped engine error, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected only the caller message in history, got %d", s.Len())
	}
}

func TestSendRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{fragments: []string{"x"}}
	s := newTestSession(t, engine, &bytes.Buffer{})

	opts := quietOptions(false)
	opts.Role = "tool"
	_, err := s.Send(context.Background(), "Hi", opts)
	if !errors.Is(err, chat.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if s.Len() != 0 || len(engine.requests) != 0 {
		t.Fatalf("invalid role must not touch history or engine")
	}
}

func TestSendAssistantRoleHandsTurnToUser(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, &stubEngine{fragments: []string{"next question"}}, &bytes.Buffer{})

	opts := quietOptions(false)
	opts.Role = chat.RoleAssistant
	if _, err := s.Send(context.Background(), "Ask me anything.", opts); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msgs := s.Messages()
	if len(msgs) != 2 || msgs[1].Role != chat.RoleUser {
		t.Fatalf("expected response recorded as user, got %+v", msgs)
	}
}

func TestSendSanitizesRecordedResponse(t *testing.T) {
	t.Parallel()

	s, err := New(&stubEngine{fragments: []string{"<think>hmm</think>", "Answer<|im_end|>"}}, Config{
		Output:   &bytes.Buffer{},
		Sanitize: inference.SanitizeResponse,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := s.Send(context.Background(), "q", quietOptions(true))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != "<think>hmm</think>Answer<|im_end|>" {
		t.Fatalf("returned text must be raw, got %q", got)
	}
	if last := s.Messages()[1].Content; last != "Answer" {
		t.Fatalf("recorded %q, want %q", last, "Answer")
	}
}

func TestSessionsDoNotShareHistory(t *testing.T) {
	t.Parallel()

	a := newTestSession(t, nil, &bytes.Buffer{})
	b := newTestSession(t, nil, &bytes.Buffer{})
	_, _ = a.Send(context.Background(), "only in a", quietOptions(false))
	if b.Len() != 0 {
		t.Fatalf("history leaked across sessions: %+v", b.Messages())
	}
	if a.ID() == b.ID() {
		t.Fatalf("expected distinct session ids")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	base := []chat.Message{
		{Role: chat.RoleUser, Content: "A"},
		{Role: chat.RoleAssistant, Content: "B"},
		{Role: chat.RoleUser, Content: "C"},
		{Role: chat.RoleAssistant, Content: "D"},
	}

	tests := []struct {
		name        string
		k           int
		wantRemoved int
		want        []chat.Message
	}{
		{"zero", 0, 0, base},
		{"negative", -3, 0, base},
		{"two", 2, 2, base[:2]},
		{"all", 4, 4, []chat.Message{}},
		{"more than history", 10, 4, []chat.Message{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newTestSession(t, nil, &bytes.Buffer{})
			s.messages = append(s.messages, base...)

			removed := s.Truncate(tc.k)
			if removed != tc.wantRemoved {
				t.Fatalf("Truncate(%d) removed %d, want %d", tc.k, removed, tc.wantRemoved)
			}
			if !reflect.DeepEqual(s.Messages(), tc.want) {
				t.Fatalf("history = %+v, want %+v", s.Messages(), tc.want)
			}
		})
	}
}

func TestResetAndPrompt(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, &stubEngine{fragments: []string{"B"}}, &bytes.Buffer{})
	if _, err := s.Send(context.Background(), "A", quietOptions(false)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	prompt, next, err := s.Prompt()
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if next != chat.RoleUser || !strings.Contains(prompt, "<|im_start|>assistant\nB<|im_end|>") {
		t.Fatalf("unexpected prompt %q next=%q", prompt, next)
	}

	s.Reset()
	if s.Len() != 0 {
		t.Fatalf("expected empty history after Reset, got %d", s.Len())
	}
}

func TestNewUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Format: "alpaca"})
	if !errors.Is(err, chatfmt.ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	s, err := New(nil, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Name() != DefaultName || s.SystemPrompt() != DefaultSystemPrompt {
		t.Fatalf("unexpected defaults: name=%q system=%q", s.Name(), s.SystemPrompt())
	}
	if s.Formatter().Name() != "chatml" {
		t.Fatalf("expected chatml formatter, got %q", s.Formatter().Name())
	}
}

func TestReplyReportsRoleAndFragments(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	s := newTestSession(t, &stubEngine{fragments: []string{"Hel", "lo"}}, &out)

	var seen []string
	opts := quietOptions(true)
	opts.Fragments = func(f string) { seen = append(seen, f) }

	reply, err := s.Reply(context.Background(), "Hi", opts)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply.Role != chat.RoleAssistant || reply.Content != "Hello" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if !slices.Equal(seen, []string{"Hel", "lo"}) {
		t.Fatalf("fragments = %q", seen)
	}
	if out.Len() != 0 {
		t.Fatalf("fragments hook must not print, got %q", out.String())
	}
}
