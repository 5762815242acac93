package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/Arusekk/Schockabsorber/internal/cast"
	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/movie"
	"github.com/Arusekk/Schockabsorber/internal/report"
)

type extractStats struct {
	images int
	media  int
	failed int
	bytes  uint64
}

func extractCmd() *cli.Command {
	var (
		outDir string
		raw    bool
		ink    int64
	)

	return &cli.Command{
		Name:      "extract",
		Usage:     "Write member images as PNG and embedded media as files",
		ArgsUsage: "[movie...]",
		Flags: []cli.Flag{
			moviesFlag(),
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output directory (default: $SHOCKABSORBER_OUT_DIR/<movie> or ./out/<movie>)",
				Destination: &outDir,
			},
			&cli.BoolFlag{
				Name:        "raw",
				Usage:       "also write undecoded media payloads",
				Destination: &raw,
			},
			&cli.Int64Flag{
				Name:        "ink",
				Usage:       "ink used to render images (0 copy, 9 mask)",
				Value:       int64(movie.InkCopy),
				Destination: &ink,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyExtractConfig(cmd, loadedConfig, &outDir)
			paths, err := resolveMoviePaths(cmd.Args().Slice(), moviesPath)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			w := stdout(cmd)

			for _, path := range paths {
				dir, err := resolveOutDir(outDir, path, len(paths) > 1)
				if err != nil {
					return err
				}
				stats, err := extractMovie(ctx, path, dir, movie.Ink(ink), raw)
				if err != nil {
					return err
				}
				if stats.failed > 0 {
					log.Warn("some members could not be extracted", "path", path, "failed", stats.failed)
				}
				_, _ = fmt.Fprintf(w, "%s: %d images, %d media files, %s -> %s\n",
					path, stats.images, stats.media, humanize.Bytes(stats.bytes), dir)
			}
			return nil
		},
	}
}

func extractMovie(ctx context.Context, path, dir string, ink movie.Ink, raw bool) (extractStats, error) {
	var stats extractStats
	m, _, err := loadMovie(ctx, path)
	if err != nil {
		return stats, err
	}
	defer func() { _ = m.Close() }()
	log := logger.FromContext(ctx).With(logger.FileKey, path)

	for _, lib := range m.Libraries.Libraries() {
		for i, mem := range lib.Members() {
			if mem == nil {
				continue
			}
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			ordinal := i + 1
			prefix := memberPrefix(lib, ordinal, mem)

			if _, ok := mem.Image(); ok {
				n, err := writePNG(m, lib.Nr, ordinal, ink, filepath.Join(dir, prefix+".png"))
				if err != nil {
					log.Warn("render failed", "library", lib.Nr, "member", ordinal, "error", err)
					stats.failed++
				} else {
					stats.images++
					stats.bytes += n
				}
			}

			for _, tag := range mem.MediaTags() {
				ex := report.ExportMedia(mem.Media[tag])
				if ex.Ext == ".bin" && !raw {
					continue
				}
				name := filepath.Join(dir, prefix+"_"+safeName(string(tag))+ex.Ext)
				if err := os.WriteFile(name, ex.Data, 0o644); err != nil {
					return stats, err
				}
				stats.media++
				stats.bytes += uint64(len(ex.Data))
			}
		}
	}
	return stats, nil
}

func memberPrefix(lib *cast.Library, ordinal int, mem *cast.Member) string {
	prefix := fmt.Sprintf("L%d_%04d", lib.Nr, ordinal)
	if name := safeName(mem.Name); name != "" {
		prefix += "_" + name
	}
	return prefix
}

func writePNG(m *movie.Movie, lib, ordinal int, ink movie.Ink, path string) (uint64, error) {
	img, err := m.RenderMember(lib, ordinal, ink)
	if err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	st, err := f.Stat()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	return uint64(st.Size()), nil
}
