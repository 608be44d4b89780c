package inference

import (
	"context"
	"time"
)

// StreamFunc receives one generated text fragment. Fragments arrive in order
// on the goroutine that called Complete.
type StreamFunc func(fragment string)

// Engine is a loaded model that completes prompts. Tokenization, sampling and
// grammar enforcement all happen behind this interface.
type Engine interface {
	// Complete generates a continuation of req.Prompt. When req.Stream is set
	// the engine calls stream for every fragment as it is produced; otherwise
	// the whole text is returned in Result.Text.
	Complete(ctx context.Context, req *Request, stream StreamFunc) (*Result, error)
}

type Request struct {
	Prompt string
	Stream bool

	Sampling

	// Stop ends generation when any of these strings is produced.
	Stop    []string
	Grammar *Grammar
}

type Result struct {
	Text  string
	Stats Stats
}

type Stats struct {
	PromptTokens    int
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}
