// Package llamacpp implements inference.Engine against a running llama.cpp
// server.
package llamacpp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/samcharles93/trinity/internal/inference"
	"github.com/samcharles93/trinity/internal/logger"
)

const (
	completionPath = "/completion"
	healthPath     = "/health"

	maxErrorBody = 512
	// maxEventSize bounds one SSE line; a single event carries one token plus
	// timings, so this is generous.
	maxEventSize = 1 << 20
)

var ErrUnavailable = errors.New("llama.cpp server unavailable")

type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient returns a client for the server at baseURL. A zero timeout means
// requests are bounded only by their context.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("llamacpp: base url is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health reports whether the server is up and has a model loaded.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrUnavailable, statusError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type completionRequest struct {
	Prompt        string   `json:"prompt"`
	NPredict      int      `json:"n_predict"`
	Temperature   float64  `json:"temperature"`
	TopK          int      `json:"top_k"`
	TopP          float64  `json:"top_p"`
	MinP          float64  `json:"min_p"`
	TypicalP      float64  `json:"typical_p"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	Mirostat      int      `json:"mirostat"`
	MirostatTau   float64  `json:"mirostat_tau"`
	MirostatEta   float64  `json:"mirostat_eta"`
	TFSZ          float64  `json:"tfs_z"`
	Stop          []string `json:"stop"`
	Grammar       string   `json:"grammar,omitempty"`
	Seed          int64    `json:"seed"`
	Stream        bool     `json:"stream"`
	CachePrompt   bool     `json:"cache_prompt"`
}

type completionChunk struct {
	Content         string   `json:"content"`
	Stop            bool     `json:"stop"`
	TokensPredicted int      `json:"tokens_predicted"`
	TokensEvaluated int      `json:"tokens_evaluated"`
	Timings         *timings `json:"timings,omitempty"`
}

type timings struct {
	PredictedMS        float64 `json:"predicted_ms"`
	PredictedPerSecond float64 `json:"predicted_per_second"`
	PromptMS           float64 `json:"prompt_ms"`
}

func newCompletionRequest(req *inference.Request) completionRequest {
	nPredict := req.MaxTokens
	if nPredict <= 0 {
		nPredict = -1
	}
	stop := req.Stop
	if stop == nil {
		stop = []string{}
	}
	return completionRequest{
		Prompt:        req.Prompt,
		NPredict:      nPredict,
		Temperature:   req.Temperature,
		TopK:          req.TopK,
		TopP:          req.TopP,
		MinP:          req.MinP,
		TypicalP:      req.TypicalP,
		RepeatPenalty: req.RepeatPenalty,
		Mirostat:      req.MirostatMode,
		MirostatTau:   req.MirostatTau,
		MirostatEta:   req.MirostatEta,
		TFSZ:          req.TFSZ,
		Stop:          stop,
		Grammar:       req.Grammar.String(),
		Seed:          req.Seed,
		Stream:        req.Stream,
		CachePrompt:   true,
	}
}

// Complete posts the prompt to /completion. With req.Stream set the server
// answers with server-sent events, each forwarded to stream as it arrives.
func (c *Client) Complete(ctx context.Context, req *inference.Request, stream inference.StreamFunc) (*inference.Result, error) {
	if req == nil {
		return nil, fmt.Errorf("llamacpp: nil request")
	}
	body, err := json.Marshal(newCompletionRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llamacpp: completion failed: %s", statusError(resp))
	}

	var result *inference.Result
	if req.Stream {
		result, err = c.readStream(resp.Body, stream)
	} else {
		result, err = readSingle(resp.Body)
	}
	if err != nil {
		return nil, err
	}
	if result.Stats.Duration == 0 {
		result.Stats.Duration = time.Since(start)
	}
	if result.Stats.TPS == 0 && result.Stats.Duration > 0 {
		result.Stats.TPS = float64(result.Stats.TokensGenerated) / result.Stats.Duration.Seconds()
	}
	c.log.Debug("completion finished",
		"stream", req.Stream,
		"prompt_tokens", result.Stats.PromptTokens,
		"tokens", result.Stats.TokensGenerated,
		"elapsed", result.Stats.Duration,
	)
	return result, nil
}

func readSingle(r io.Reader) (*inference.Result, error) {
	var chunk completionChunk
	if err := json.NewDecoder(r).Decode(&chunk); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	result := &inference.Result{Text: chunk.Content}
	applyStats(&result.Stats, chunk)
	return result, nil
}

func (c *Client) readStream(r io.Reader, stream inference.StreamFunc) (*inference.Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var (
		text   strings.Builder
		result inference.Result
	)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk completionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, fmt.Errorf("decode stream event: %w", err)
		}
		if chunk.Content != "" {
			text.WriteString(chunk.Content)
			if stream != nil {
				stream(chunk.Content)
			}
		}
		if chunk.Stop {
			applyStats(&result.Stats, chunk)
			result.Text = text.String()
			return &result, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	c.log.Warn("stream ended without stop event", "chars", text.Len())
	return nil, fmt.Errorf("%w: stream ended before stop event", ErrUnavailable)
}

func applyStats(stats *inference.Stats, chunk completionChunk) {
	stats.PromptTokens = chunk.TokensEvaluated
	stats.TokensGenerated = chunk.TokensPredicted
	if chunk.Timings != nil {
		stats.Duration = time.Duration((chunk.Timings.PromptMS + chunk.Timings.PredictedMS) * float64(time.Millisecond))
		stats.TPS = chunk.Timings.PredictedPerSecond
	}
}

func statusError(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		return resp.Status
	}
	return resp.Status + ": " + msg
}
