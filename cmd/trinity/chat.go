package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/trinity/internal/chat"
	"github.com/samcharles93/trinity/internal/logger"
	"github.com/samcharles93/trinity/internal/session"
)

const chatHelp = `Commands:
  /exit, /quit        leave the chat
  /undo [k]           drop the last k messages (default 2)
  /reset              clear the history
  /history            show the history
  /prompt             show the prompt the next message would extend
  /system [text]      show or replace the system prompt
  /role [role]        show or set the role for your next messages
  /help               show this help`

func chatCmd() *cli.Command {
	var streamMode string

	flags := append(engineFlags(), sessionFlags()...)
	flags = append(flags, samplingFlags()...)
	flags = append(flags, &cli.StringFlag{
		Name:        "stream-mode",
		Usage:       "how streamed replies are drawn (instant, smooth, typewriter)",
		Value:       string(StreamInstant),
		Destination: &streamMode,
	})

	return &cli.Command{
		Name:  "chat",
		Usage: "Start an interactive chat session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyConfig(c, fileConfig)
			if fileConfig.StreamMode != "" && !c.IsSet("stream-mode") {
				streamMode = fileConfig.StreamMode
			}
			mode, err := parseStreamMode(streamMode)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			opts, err := buildSendOptions(c, fileConfig)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			out := NewStreamWriter(mode, os.Stdout)
			defer func() { _ = out.Close() }()

			engine := connectEngine(ctx, log)
			sess, err := newSession(engine, out, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			fmt.Fprintf(os.Stderr, "Chatting with %s. Type /help for commands, /exit to quit.\n", sess)
			return runREPL(ctx, sess, opts, out)
		},
	}
}

func runREPL(ctx context.Context, sess *session.Session, opts session.SendOptions, out *StreamWriter) error {
	log := logger.FromContext(ctx)
	repl := &replState{sess: sess, opts: opts, out: os.Stdout}
	for {
		line, err := readInteractiveLine("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := repl.command(line)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			if quit {
				return nil
			}
			continue
		}

		// Ctrl+C aborts the reply in flight, not the chat.
		sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		_, err = sess.Send(sendCtx, line, repl.opts)
		stop()
		_ = out.Flush()

		switch {
		case errors.Is(err, session.ErrNoEngine):
			fmt.Fprintln(os.Stderr, session.NoModelLoaded)
		case errors.Is(err, context.Canceled) && ctx.Err() == nil:
			fmt.Fprintln(os.Stderr, "\n[interrupted]")
		case err != nil:
			log.Error("send failed", "error", err)
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

// replState holds what slash commands can change between messages.
type replState struct {
	sess *session.Session
	opts session.SendOptions
	out  io.Writer
}

// command runs a slash command and reports whether the chat should end.
func (r *replState) command(line string) (bool, error) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "exit", "quit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprintln(r.out, chatHelp)
	case "undo":
		k := 2
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return false, fmt.Errorf("undo: %q is not a number", arg)
			}
			k = n
		}
		removed := r.sess.Truncate(k)
		fmt.Fprintf(r.out, "removed %d message(s), %d left\n", removed, r.sess.Len())
	case "reset":
		r.sess.Reset()
		fmt.Fprintln(r.out, "history cleared")
	case "history":
		msgs := r.sess.Messages()
		if len(msgs) == 0 {
			fmt.Fprintln(r.out, "(empty)")
		}
		for i, m := range msgs {
			fmt.Fprintf(r.out, "%3d %-9s %s\n", i+1, m.Role, m.Content)
		}
	case "prompt":
		prompt, next, err := r.sess.Prompt()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%s\n[next: %s]\n", prompt, next)
	case "system":
		if arg == "" {
			fmt.Fprintln(r.out, r.sess.SystemPrompt())
			return false, nil
		}
		r.sess.SetSystemPrompt(arg)
		fmt.Fprintln(r.out, "system prompt updated")
	case "role":
		if arg == "" {
			fmt.Fprintln(r.out, r.opts.Role)
			return false, nil
		}
		role, err := chat.ParseRole(arg)
		if err != nil {
			return false, err
		}
		r.opts.Role = role
		fmt.Fprintf(r.out, "now speaking as %s\n", role)
	default:
		return false, fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return false, nil
}
