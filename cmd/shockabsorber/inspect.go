package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/report"
)

type inspectOutput struct {
	*report.Movie
	Size         uint64               `json:"size"`
	SectionList  []report.Section     `json:"section_list,omitempty"`
	Associations []report.Association `json:"associations,omitempty"`
}

func inspectCmd() *cli.Command {
	var (
		asJSON       bool
		showAll      bool
		showSections bool
		showAssoc    bool
		showOrder    bool
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Summarise the libraries and members of Director files",
		ArgsUsage: "[movie...]",
		Flags: []cli.Flag{
			moviesFlag(),
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of tables", Destination: &asJSON},
			&cli.BoolFlag{Name: "all", Usage: "show sections, associations and cast order", Destination: &showAll},
			&cli.BoolFlag{Name: "sections", Usage: "list the section map", Destination: &showSections},
			&cli.BoolFlag{Name: "assoc", Usage: "list the association table", Destination: &showAssoc},
			&cli.BoolFlag{Name: "order", Usage: "list the cast order", Destination: &showOrder},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyMoviesConfig(cmd, loadedConfig)
			if showAll {
				showSections, showAssoc, showOrder = true, true, true
			}
			paths, err := resolveMoviePaths(cmd.Args().Slice(), moviesPath)
			if err != nil {
				return err
			}

			log := logger.FromContext(ctx)
			outputs := make([]inspectOutput, 0, len(paths))
			for _, path := range paths {
				out, err := inspectMovie(ctx, path, showSections, showAssoc)
				if err != nil {
					return err
				}
				log.Debug("inspected movie", "path", path, "warnings", len(out.Warnings))
				outputs = append(outputs, out)
			}

			w := stdout(cmd)
			if asJSON {
				if len(outputs) == 1 {
					return report.WriteJSON(w, outputs[0])
				}
				return report.WriteJSON(w, outputs)
			}
			for i, out := range outputs {
				if i > 0 {
					_, _ = fmt.Fprintln(w)
				}
				printInspect(w, out, showSections, showAssoc, showOrder)
			}
			return nil
		},
	}
}

func inspectMovie(ctx context.Context, path string, withSections, withAssoc bool) (inspectOutput, error) {
	m, warnings, err := loadMovie(ctx, path)
	if err != nil {
		return inspectOutput{}, err
	}
	defer func() { _ = m.Close() }()

	out := inspectOutput{Movie: report.Summarize(m, warnings)}
	if st, err := os.Stat(path); err == nil {
		out.Size = uint64(st.Size())
	}
	if withSections {
		out.SectionList = report.Sections(m)
	}
	if withAssoc {
		out.Associations = report.Associations(m)
	}
	return out, nil
}

func printInspect(w io.Writer, out inspectOutput, showSections, showAssoc, showOrder bool) {
	order := "big-endian"
	if out.LittleEndian {
		order = "little-endian"
	}
	_, _ = fmt.Fprintf(w, "%s: %s, %s, %s, %d sections\n",
		out.Path, out.Format, order, humanize.Bytes(out.Size), out.Sections)
	if out.Palette != nil {
		_, _ = fmt.Fprintf(w, "movie palette: %d\n", *out.Palette)
	}

	libRows := make([][]string, 0, len(out.Libraries))
	for _, lib := range out.Libraries {
		libRows = append(libRows, []string{
			strconv.Itoa(lib.Nr), lib.Name, lib.Path, strconv.Itoa(lib.AssocID),
			strconv.Itoa(lib.Slots), strconv.Itoa(len(lib.Members)),
		})
	}
	_, _ = fmt.Fprintln(w, renderTable("Libraries",
		[]string{"Nr", "Name", "Path", "Assoc", "Slots", "Members"}, libRows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight}))

	for _, lib := range out.Libraries {
		if len(lib.Members) == 0 {
			continue
		}
		rows := make([][]string, 0, len(lib.Members))
		for _, mem := range lib.Members {
			rows = append(rows, []string{
				strconv.Itoa(mem.Ordinal), strconv.Itoa(mem.Section), mem.Type, mem.Name,
				memberDetail(mem), mediaSummary(mem.Media),
			})
		}
		title := fmt.Sprintf("Library %d", lib.Nr)
		if lib.Name != "" {
			title += " (" + lib.Name + ")"
		}
		_, _ = fmt.Fprintln(w, renderTable(title,
			[]string{"#", "Section", "Type", "Name", "Details", "Media"}, rows,
			[]columnAlignment{alignRight, alignRight}))
	}

	if showSections {
		rows := make([][]string, 0, len(out.SectionList))
		for _, s := range out.SectionList {
			rows = append(rows, []string{
				strconv.Itoa(s.Nr), s.Tag, fmt.Sprintf("0x%x", s.Offset), humanize.Bytes(uint64(max(s.Size, 0))),
			})
		}
		_, _ = fmt.Fprintln(w, renderTable("Sections", []string{"Nr", "Tag", "Offset", "Size"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignRight}))
	}
	if showAssoc {
		rows := make([][]string, 0, len(out.Associations))
		for _, a := range out.Associations {
			kind := "media"
			if a.Library {
				kind = "library"
			}
			rows = append(rows, []string{
				strconv.Itoa(a.Owned), strconv.Itoa(a.Owner), strconv.Itoa(a.Assoc), a.Tag, kind,
			})
		}
		_, _ = fmt.Fprintln(w, renderTable("Associations", []string{"Owned", "Owner", "Assoc", "Tag", "Kind"}, rows,
			[]columnAlignment{alignRight, alignRight, alignRight}))
	}
	if showOrder && len(out.Order) > 0 {
		rows := make([][]string, 0, len(out.Order))
		for i, e := range out.Order {
			rows = append(rows, []string{
				strconv.Itoa(i + 1), strconv.Itoa(e.Library), strconv.Itoa(e.Member), e.Name,
			})
		}
		_, _ = fmt.Fprintln(w, renderTable("Cast order", []string{"#", "Library", "Member", "Name"}, rows,
			[]columnAlignment{alignRight, alignRight, alignRight}))
	}

	if len(out.Warnings) > 0 {
		_, _ = fmt.Fprintf(w, "%d warnings:\n", len(out.Warnings))
		for _, msg := range out.Warnings {
			_, _ = fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
}

func memberDetail(m report.Member) string {
	switch {
	case m.Image != nil:
		s := fmt.Sprintf("%dx%d %dbpp", m.Image.Width, m.Image.Height, m.Image.BitsPerPixel)
		if m.Image.Palette != 0 {
			s += fmt.Sprintf(" palette %d", m.Image.Palette)
		}
		return s
	case m.Script != nil:
		return fmt.Sprintf("script %d", *m.Script)
	case m.Extended != "":
		return m.Extended
	}
	return ""
}

func mediaSummary(media []report.Media) string {
	parts := make([]string, 0, len(media))
	for _, md := range media {
		parts = append(parts, fmt.Sprintf("%s %s (%s)", md.Tag, humanize.Bytes(uint64(md.Size)), md.Kind))
	}
	return strings.Join(parts, ", ")
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
