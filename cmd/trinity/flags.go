package main

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/trinity/internal/inference"
)

var (
	serverURL      string
	requestTimeout time.Duration

	sessionName  string
	systemPrompt string
	formatName   string
	showPrompt   bool
	stripThink   bool

	grammarFile   string
	stopSequences []string
	noStream      bool
	noHistory     bool

	logLevel  string
	logFormat string
	debug     bool
)

// Sampling flag targets. They are only read when the flag was set, so the
// zero values here never reach the engine.
var (
	maxTokens     int64
	temperature   float64
	topK          int64
	topP          float64
	minP          float64
	typicalP      float64
	repeatPenalty float64
	mirostatMode  int64
	mirostatTau   float64
	mirostatEta   float64
	tfsZ          float64
	seed          int64
)

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "server",
			Aliases:     []string{"s", "url"},
			Usage:       "llama.cpp server URL (empty = no model loaded)",
			Sources:     cli.EnvVars("TRINITY_SERVER"),
			Destination: &serverURL,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "per-request timeout (0 = none)",
			Destination: &requestTimeout,
		},
	}
}

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "name",
			Usage:       "session name",
			Value:       "model",
			Destination: &sessionName,
		},
		&cli.StringFlag{
			Name:        "system",
			Aliases:     []string{"sys"},
			Usage:       "system prompt",
			Value:       "You are helpful assistant.",
			Destination: &systemPrompt,
		},
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "prompt format preset (see the formats command)",
			Value:       "chatml",
			Destination: &formatName,
		},
		&cli.BoolFlag{
			Name:        "show-prompt",
			Usage:       "print every rendered prompt before it is sent",
			Destination: &showPrompt,
		},
		&cli.BoolFlag{
			Name:        "strip-think",
			Usage:       "drop <think> blocks and end-of-turn markers from replies kept in history",
			Destination: &stripThink,
		},
	}
}

func samplingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "max-tokens",
			Aliases:     []string{"n", "n-predict"},
			Usage:       "maximum tokens to generate (0 = until stop)",
			Destination: &maxTokens,
		},
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature", "t"},
			Usage:       "sampling temperature",
			Value:       0.4,
			Destination: &temperature,
		},
		&cli.Int64Flag{
			Name:        "top-k",
			Aliases:     []string{"top_k", "topk"},
			Usage:       "top-k sampling parameter (0 = disabled)",
			Destination: &topK,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Aliases:     []string{"top_p", "topp"},
			Usage:       "top-p sampling parameter",
			Value:       1.0,
			Destination: &topP,
		},
		&cli.Float64Flag{
			Name:        "min-p",
			Aliases:     []string{"min_p", "minp"},
			Usage:       "min-p sampling parameter (0.0 = disabled)",
			Value:       0.05,
			Destination: &minP,
		},
		&cli.Float64Flag{
			Name:        "typical-p",
			Aliases:     []string{"typical_p"},
			Usage:       "locally typical sampling parameter (1.0 = disabled)",
			Value:       1.0,
			Destination: &typicalP,
		},
		&cli.Float64Flag{
			Name:        "repeat-penalty",
			Aliases:     []string{"repeat_penalty"},
			Usage:       "repetition penalty (1.0 = disabled)",
			Value:       1.0,
			Destination: &repeatPenalty,
		},
		&cli.Int64Flag{
			Name:        "mirostat",
			Usage:       "mirostat mode (0 = off, 1, 2)",
			Destination: &mirostatMode,
		},
		&cli.Float64Flag{
			Name:        "mirostat-tau",
			Usage:       "mirostat target entropy",
			Value:       5.0,
			Destination: &mirostatTau,
		},
		&cli.Float64Flag{
			Name:        "mirostat-eta",
			Usage:       "mirostat learning rate",
			Value:       0.1,
			Destination: &mirostatEta,
		},
		&cli.Float64Flag{
			Name:        "tfs-z",
			Aliases:     []string{"tfs"},
			Usage:       "tail free sampling parameter (1.0 = disabled)",
			Value:       1.0,
			Destination: &tfsZ,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling RNG seed (-1 = random)",
			Value:       -1,
			Destination: &seed,
		},
		&cli.StringFlag{
			Name:        "grammar-file",
			Aliases:     []string{"grammar"},
			Usage:       "path to a GBNF grammar constraining the output",
			Destination: &grammarFile,
		},
		&cli.StringSliceFlag{
			Name:        "stop",
			Usage:       "stop sequence, repeatable (default: the format's own)",
			Destination: &stopSequences,
		},
		&cli.BoolFlag{
			Name:        "no-stream",
			Usage:       "wait for the whole reply instead of streaming it",
			Destination: &noStream,
		},
		&cli.BoolFlag{
			Name:        "no-history",
			Usage:       "do not record replies in the history",
			Destination: &noHistory,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "warn",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// flagSetter is the part of *cli.Command the config layer needs.
type flagSetter interface {
	IsSet(name string) bool
}

// samplingOverrides collects the sampling flags that were given explicitly.
func samplingOverrides(c flagSetter) inference.SamplingOptions {
	var o inference.SamplingOptions
	if c.IsSet("max-tokens") {
		v := int(maxTokens)
		o.MaxTokens = &v
	}
	if c.IsSet("temp") {
		o.Temperature = &temperature
	}
	if c.IsSet("top-k") {
		v := int(topK)
		o.TopK = &v
	}
	if c.IsSet("top-p") {
		o.TopP = &topP
	}
	if c.IsSet("min-p") {
		o.MinP = &minP
	}
	if c.IsSet("typical-p") {
		o.TypicalP = &typicalP
	}
	if c.IsSet("repeat-penalty") {
		o.RepeatPenalty = &repeatPenalty
	}
	if c.IsSet("mirostat") {
		v := int(mirostatMode)
		o.MirostatMode = &v
	}
	if c.IsSet("mirostat-tau") {
		o.MirostatTau = &mirostatTau
	}
	if c.IsSet("mirostat-eta") {
		o.MirostatEta = &mirostatEta
	}
	if c.IsSet("tfs-z") {
		o.TFSZ = &tfsZ
	}
	if c.IsSet("seed") {
		o.Seed = &seed
	}
	return o
}
