package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/trinity/internal/chatfmt"
)

func formatsCmd() *cli.Command {
	var detect string

	return &cli.Command{
		Name:  "formats",
		Usage: "List prompt format presets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "detect",
				Usage:       "guess the preset for a chat template file (e.g. chat_template.jinja)",
				Destination: &detect,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if detect != "" {
				raw, err := os.ReadFile(detect)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: read template: %v", err), 1)
				}
				f, ok := chatfmt.Detect(string(raw))
				if !ok {
					return cli.Exit("no matching preset", 1)
				}
				fmt.Println(f.Name())
				return nil
			}

			for _, name := range chatfmt.Presets() {
				f, err := chatfmt.Lookup(name)
				if err != nil {
					return err
				}
				marker := " "
				if f.Name() == chatfmt.Default().Name() {
					marker = "*"
				}
				fmt.Printf("%s %-12s stop: %s\n", marker, f.Name(), quoteAll(f.StopSequences()))
			}
			return nil
		},
	}
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}
