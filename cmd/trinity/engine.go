package main

import (
	"context"
	"io"
	"time"

	"github.com/samcharles93/trinity/internal/inference"
	"github.com/samcharles93/trinity/internal/llamacpp"
	"github.com/samcharles93/trinity/internal/logger"
	"github.com/samcharles93/trinity/internal/session"
)

const healthTimeout = 5 * time.Second

// connectEngine returns a llama.cpp client, or nil when no server is
// configured or it does not answer its health check. A nil engine makes
// every send report that no model is loaded.
func connectEngine(ctx context.Context, log logger.Logger) inference.Engine {
	if serverURL == "" {
		log.Warn("no llama.cpp server configured; running without a model")
		return nil
	}
	client, err := llamacpp.NewClient(serverURL, requestTimeout, llamacpp.WithLogger(log))
	if err != nil {
		log.Error("invalid server url", "url", serverURL, "error", err)
		return nil
	}

	hctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := client.Health(hctx); err != nil {
		log.Warn("llama.cpp server not ready; running without a model", "url", client.BaseURL(), "error", err)
		return nil
	}
	log.Info("connected to llama.cpp", "url", client.BaseURL())
	return client
}

func newSession(engine inference.Engine, out io.Writer, log logger.Logger) (*session.Session, error) {
	cfg := session.Config{
		Name:         sessionName,
		SystemPrompt: systemPrompt,
		Format:       formatName,
		Debug:        showPrompt,
		Output:       out,
		Logger:       log,
	}
	if stripThink {
		cfg.Sanitize = inference.SanitizeResponse
	}
	return session.New(engine, cfg)
}

func buildSendOptions(c flagSetter, cfg Config) (session.SendOptions, error) {
	opts := session.DefaultSendOptions()
	opts.Sampling = resolveSampling(c, cfg)
	opts.Stream = !noStream
	opts.AddToHistory = !noHistory
	if len(stopSequences) > 0 {
		opts.Stop = stopSequences
	}
	if grammarFile != "" {
		g, err := inference.LoadGrammar(grammarFile)
		if err != nil {
			return opts, err
		}
		opts.Grammar = g
	}
	return opts, nil
}
