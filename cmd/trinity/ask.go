package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/trinity/internal/chat"
	"github.com/samcharles93/trinity/internal/logger"
	"github.com/samcharles93/trinity/internal/session"
)

func askCmd() *cli.Command {
	var (
		role  string
		quiet bool
	)

	flags := append(engineFlags(), sessionFlags()...)
	flags = append(flags, samplingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "role",
			Usage:       "role of the message (system, user, assistant)",
			Value:       string(chat.RoleUser),
			Destination: &role,
		},
		&cli.BoolFlag{
			Name:        "quiet",
			Aliases:     []string{"q"},
			Usage:       "do not print the reply (useful with --show-prompt)",
			Destination: &quiet,
		},
	)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Send a single message and print the reply",
		ArgsUsage: "<message | ->",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyConfig(c, fileConfig)

			message, err := askMessage(c.Args().Slice(), os.Stdin)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			opts, err := buildSendOptions(c, fileConfig)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			r, err := chat.ParseRole(role)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			opts.Role = r
			opts.Print = !quiet

			engine := connectEngine(ctx, log)
			sess, err := newSession(engine, os.Stdout, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if _, err := sess.Send(ctx, message, opts); err != nil {
				if errors.Is(err, session.ErrNoEngine) {
					return cli.Exit(session.NoModelLoaded, 1)
				}
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

// askMessage joins the positional arguments, or reads stdin when there are
// none or the only argument is "-".
func askMessage(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	if len(args) == 0 && stdinIsTTY() {
		return "", errors.New("no message given")
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "", errors.New("empty message on stdin")
	}
	return msg, nil
}
