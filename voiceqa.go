package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/voiceqa/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "voiceqa",
		Usage:   "Comment threads with inline @-mentions for voice agent test management",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "",
			},
		},
		Commands: []*cli.Command{
			cmd.APICommand(),
			cmd.ConfigCommand(),
			cmd.ThreadCommand(),
			cmd.UserCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
