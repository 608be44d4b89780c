package llamacpp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/samcharles93/trinity/internal/inference"
)

func newTestRequest(stream bool) *inference.Request {
	return &inference.Request{
		Prompt:   "<|im_start|>user\nHi<|im_end|>\n<|im_start|>assistant\n",
		Stream:   stream,
		Sampling: inference.DefaultSampling(),
		Stop:     []string{"<|im_end|>"},
		Grammar:  inference.NewGrammar(`root ::= "Hello!"`),
	}
}

func TestCompleteNonStreaming(t *testing.T) {
	t.Parallel()

	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != completionPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"content":"Hello!","stop":true,"tokens_predicted":3,"tokens_evaluated":12,"timings":{"predicted_ms":30,"predicted_per_second":100,"prompt_ms":10}}`)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	res, err := c.Complete(context.Background(), newTestRequest(false), nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Text != "Hello!" {
		t.Fatalf("text = %q", res.Text)
	}
	if res.Stats.TokensGenerated != 3 || res.Stats.PromptTokens != 12 || res.Stats.TPS != 100 {
		t.Fatalf("unexpected stats %+v", res.Stats)
	}

	if got.NPredict != -1 {
		t.Fatalf("n_predict = %d, want -1 for unlimited", got.NPredict)
	}
	if got.Temperature != 0.4 || got.MinP != 0.05 || got.MirostatTau != 5.0 || got.TFSZ != 1.0 {
		t.Fatalf("sampling not encoded: %+v", got)
	}
	if got.Stream || got.Grammar != `root ::= "Hello!"` || !slices.Equal(got.Stop, []string{"<|im_end|>"}) {
		t.Fatalf("request fields not encoded: %+v", got)
	}
}

func TestCompleteStreaming(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, event := range []string{
			`{"content":"Hel","stop":false}`,
			`{"content":"lo","stop":false}`,
			`{"content":"!","stop":false}`,
			`{"content":"","stop":true,"tokens_predicted":3,"tokens_evaluated":7}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", event)
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var fragments []string
	res, err := c.Complete(context.Background(), newTestRequest(true), func(f string) {
		fragments = append(fragments, f)
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !slices.Equal(fragments, []string{"Hel", "lo", "!"}) {
		t.Fatalf("fragments = %q", fragments)
	}
	if res.Text != "Hello!" || res.Stats.TokensGenerated != 3 || res.Stats.PromptTokens != 7 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCompleteStreamCutShort(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"content\":\"Hel\",\"stop\":false}\n\n")
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var fragments []string
	res, err := c.Complete(context.Background(), newTestRequest(true), func(f string) {
		fragments = append(fragments, f)
	})
	if !errors.Is(err, ErrUnavailable) || !strings.Contains(err.Error(), "before stop event") {
		t.Fatalf("expected truncated stream error, got res=%+v err=%v", res, err)
	}
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
	if !slices.Equal(fragments, []string{"Hel"}) {
		t.Fatalf("fragments = %q", fragments)
	}
}

func TestCompleteServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Complete(context.Background(), newTestRequest(false), nil)
	if err == nil || !strings.Contains(err.Error(), "model is loading") {
		t.Fatalf("expected server message in error, got %v", err)
	}
}

func TestCompleteHonoursContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Complete(ctx, newTestRequest(false), nil); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != healthPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(int(status.Load()))
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}

	status.Store(http.StatusServiceUnavailable)
	if err := c.Health(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewClientNormalizesURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080/", "http://localhost:8080"},
		{"localhost:8080", "http://localhost:8080"},
		{" https://llm.internal ", "https://llm.internal"},
	}
	for _, tc := range cases {
		c, err := NewClient(tc.in, 0)
		if err != nil {
			t.Fatalf("NewClient(%q): %v", tc.in, err)
		}
		if c.BaseURL() != tc.want {
			t.Fatalf("NewClient(%q).BaseURL() = %q, want %q", tc.in, c.BaseURL(), tc.want)
		}
	}

	if _, err := NewClient("  ", 0); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
