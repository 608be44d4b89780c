package main

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/trinity/internal/version"
)

func versionCmd() *cli.Command {
	var short, asJSON bool
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "short",
				Usage:       "print only the version and short commit",
				Destination: &short,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print build information as JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := version.Resolve()
			switch {
			case asJSON:
				b, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
			case short:
				fmt.Println(info)
			default:
				fmt.Print(info.Details())
			}
			return nil
		},
	}
}
