package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/Arusekk/Schockabsorber/internal/catalog"
	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/report"
)

func defaultCatalogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", "shockabsorber.db")
	}
	return filepath.Join(dir, "shockabsorber", "catalog.db")
}

func catalogCmd() *cli.Command {
	var (
		dbPath   string
		search   string
		typeName string
		limit    int64
		list     bool
		remove   bool
	)

	return &cli.Command{
		Name:      "catalog",
		Usage:     "Index movies into a SQLite catalog and search their members",
		ArgsUsage: "[movie...]",
		Flags: []cli.Flag{
			moviesFlag(),
			&cli.StringFlag{
				Name:        "db",
				Usage:       "catalog database path",
				Value:       defaultCatalogPath(),
				Destination: &dbPath,
			},
			&cli.StringFlag{
				Name:        "search",
				Aliases:     []string{"s"},
				Usage:       "search member names (substring, case-insensitive)",
				Destination: &search,
			},
			&cli.StringFlag{
				Name:        "type",
				Usage:       "restrict search to a member type (image, script, ...)",
				Destination: &typeName,
			},
			&cli.Int64Flag{
				Name:        "limit",
				Usage:       "maximum search results",
				Value:       100,
				Destination: &limit,
			},
			&cli.BoolFlag{Name: "list", Usage: "list indexed files", Destination: &list},
			&cli.BoolFlag{Name: "remove", Usage: "remove the given files from the catalog", Destination: &remove},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyCatalogConfig(cmd, loadedConfig, &dbPath)
			log := logger.FromContext(ctx)

			if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			store, err := catalog.Open(ctx, dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			w := stdout(cmd)

			switch {
			case list:
				return printCatalogFiles(ctx, w, store)
			case search != "" || cmd.IsSet("type"):
				return printCatalogSearch(ctx, w, store, catalog.Query{Name: search, Type: typeName, Limit: int(limit)})
			}

			paths, err := resolveMoviePaths(cmd.Args().Slice(), moviesPath)
			if err != nil {
				return err
			}
			if remove {
				for _, path := range paths {
					abs, _ := filepath.Abs(path)
					ok, err := store.Remove(ctx, abs)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(w, "%s: removed=%v\n", path, ok)
				}
				return nil
			}

			var failed []error
			for _, path := range paths {
				n, err := indexMovie(ctx, store, path)
				if err != nil {
					log.Error("index failed", "path", path, "error", err)
					failed = append(failed, err)
					continue
				}
				_, _ = fmt.Fprintf(w, "%s: indexed %d members\n", path, n)
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d files failed to index: %w", len(failed), len(paths), errors.Join(failed...))
			}
			return nil
		},
	}
}

func indexMovie(ctx context.Context, store *catalog.Store, path string) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	m, warnings, err := loadMovie(ctx, abs)
	if err != nil {
		return 0, err
	}
	defer func() { _ = m.Close() }()

	summary := report.Summarize(m, warnings)
	if _, err := store.Index(ctx, summary); err != nil {
		return 0, err
	}
	members := 0
	for _, lib := range summary.Libraries {
		members += len(lib.Members)
	}
	return members, nil
}

func printCatalogFiles(ctx context.Context, w io.Writer, store *catalog.Store) error {
	files, err := store.Files(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{
			f.Path, f.Format, strconv.Itoa(f.Libraries), strconv.Itoa(f.Members),
			strconv.Itoa(f.Warnings), humanize.Time(f.IndexedAt),
		})
	}
	_, _ = fmt.Fprintln(w, renderTable("Catalog "+store.Path(),
		[]string{"Path", "Format", "Libraries", "Members", "Warnings", "Indexed"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight}))
	return nil
}

func printCatalogSearch(ctx context.Context, w io.Writer, store *catalog.Store, q catalog.Query) error {
	hits, err := store.Search(ctx, q)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		detail := ""
		if h.Width > 0 || h.Height > 0 {
			detail = fmt.Sprintf("%dx%d %dbpp", h.Width, h.Height, h.BPP)
		}
		tags := make([]string, 0, len(h.Media))
		for _, md := range h.Media {
			tags = append(tags, md.Tag)
		}
		rows = append(rows, []string{
			h.Path, fmt.Sprintf("%d:%d", h.Library, h.Ordinal), h.Type, h.Name, detail, strings.Join(tags, ","),
		})
	}
	_, _ = fmt.Fprintln(w, renderTable(fmt.Sprintf("%d matches", len(hits)),
		[]string{"Path", "Member", "Type", "Name", "Details", "Media"}, rows, nil))
	return nil
}
