package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/Arusekk/Schockabsorber/internal/api"
	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/webui"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		preload     bool
		noUI        bool
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API over loaded movies",
		Flags: []cli.Flag{
			moviesFlag(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.BoolFlag{
				Name:        "preload",
				Usage:       "load every movie in the movies dir at startup",
				Destination: &preload,
			},
			&cli.BoolFlag{
				Name:        "no-ui",
				Usage:       "do not serve the browser at /",
				Destination: &noUI,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, loadedConfig, &addr)
			log := logger.FromContext(ctx)

			store := api.NewMovieStore()
			defer func() {
				if err := store.Close(); err != nil {
					log.Warn("closing movies failed", "error", err)
				}
			}()
			provider := api.NewCachedMovieProvider(api.MovieProviderConfig{
				MoviesPath: moviesPath,
				Loader:     api.LoaderFunc(loadMovie),
			}, store)
			if preload {
				names, err := provider.ListMovies()
				if err != nil {
					return err
				}
				for _, name := range names {
					if _, _, err := provider.Open(ctx, name); err != nil {
						log.Warn("preload failed", "movie", name, "error", err)
					}
				}
				log.Info("preloaded movies", "count", len(store.List()))
			}

			server := api.NewServer(provider, log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			if !noUI {
				e.GET("/*", echo.WrapHandler(webui.Handler()))
			}
			log.Info("starting server", "address", addr)
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
