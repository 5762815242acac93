package main

import "github.com/urfave/cli/v3"

var (
	configFile string
	moviesPath string
	logLevel   string
	logFormat  string
	debug      bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (auto, pretty, json, text)",
			Value:       "auto",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func moviesFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "movies-dir",
		Aliases:     []string{"path"},
		Usage:       "directory containing .dir/.dxr/.cst/.cxt files",
		Destination: &moviesPath,
	}
}
