package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/trinity/internal/api"
	"github.com/samcharles93/trinity/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		sessionTTL  time.Duration
	)

	flags := append(engineFlags(), sessionFlags()...)
	flags = append(flags, samplingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8081",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "drop sessions idle for this long",
			Value:       api.DefaultIdleTTL,
			Destination: &sessionTTL,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve chat sessions over HTTP",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyConfig(c, fileConfig)
			if fileConfig.ServerAddress != "" && !c.IsSet("addr") {
				addr = fileConfig.ServerAddress
			}
			if fileConfig.SessionTTL != nil && !c.IsSet("session-ttl") {
				sessionTTL = *fileConfig.SessionTTL
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine := connectEngine(ctx, log)

			server := api.NewServer(api.ServerConfig{
				Engine:        engine,
				Name:          sessionName,
				SystemPrompt:  systemPrompt,
				Format:        formatName,
				Sampling:      resolveSampling(c, fileConfig),
				StripThinking: stripThink,
				IdleTTL:       sessionTTL,
				Logger:        log,
			})
			defer server.Close()

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "model_loaded", engine != nil)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
