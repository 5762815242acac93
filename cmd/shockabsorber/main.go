package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Arusekk/Schockabsorber/internal/logger"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "shockabsorber",
		Usage: "Inspect and extract Director movies and casts",
		Flags: loggingFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return ctx, err
			}
			loadedConfig = cfg
			applyRootConfig(cmd, cfg)

			h, err := newLogHandler(logFormat, logLevel, debug, os.Stderr)
			if err != nil {
				return ctx, err
			}
			logHandler = h
			return logger.WithContext(ctx, logger.New(h)), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			inspectCmd(),
			extractCmd(),
			serveCmd(),
			catalogCmd(),
			versionCmd(),
		},
	}
}
