package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/trinity/internal/logger"
)

// fileConfig is loaded once before any subcommand runs.
var fileConfig Config

func main() {
	app := &cli.Command{
		Name:  "trinity",
		Usage: "Chat with a local model served by llama.cpp",
		Flags: loggingFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := LoadConfig(configPath())
			if err != nil {
				return ctx, cli.Exit(err.Error(), 1)
			}
			fileConfig = cfg
			applyLoggingConfig(cmd, cfg)

			level := logLevel
			if debug {
				level = "debug"
			}
			log, err := logger.Open(os.Stderr, logFormat, level)
			if err != nil {
				return ctx, cli.Exit(err.Error(), 1)
			}
			return logger.WithContext(ctx, log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			chatCmd(),
			askCmd(),
			serveCmd(),
			formatsCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
