package api

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/Arusekk/Schockabsorber/internal/cast"
	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/movie"
	"github.com/Arusekk/Schockabsorber/internal/report"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

type Server struct {
	provider *CachedMovieProvider
	log      logger.Logger
}

func NewServer(provider *CachedMovieProvider, log logger.Logger) *Server {
	if provider == nil {
		provider = NewCachedMovieProvider(MovieProviderConfig{}, nil)
	}
	return &Server{
		provider: provider,
		log:      logger.OrNop(log),
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/files", s.handleListFiles)

	e.GET("/v1/movies", s.handleListMovies)
	e.POST("/v1/movies", s.handleOpenMovie)
	e.GET("/v1/movies/:id", s.handleGetMovie)
	e.DELETE("/v1/movies/:id", s.handleDeleteMovie)
	e.GET("/v1/movies/:id/sections", s.handleSections)
	e.GET("/v1/movies/:id/associations", s.handleAssociations)

	e.GET("/v1/movies/:id/libraries", s.handleListLibraries)
	e.GET("/v1/movies/:id/libraries/:lib", s.handleGetLibrary)
	e.GET("/v1/movies/:id/libraries/:lib/members/:member", s.handleGetMember)
	e.GET("/v1/movies/:id/libraries/:lib/members/:member/image", s.handleMemberImage)
	e.GET("/v1/movies/:id/libraries/:lib/members/:member/media/:tag", s.handleMemberMedia)
}

type MovieInfo struct {
	ID       string        `json:"id"`
	Object   string        `json:"object"`
	Path     string        `json:"path"`
	Format   string        `json:"format"`
	LoadedAt int64         `json:"loaded_at"`
	Warnings int           `json:"warnings"`
	Summary  *report.Movie `json:"summary,omitempty"`
}

type OpenMovieRequest struct {
	// Name is a file in the movies dir, with or without extension, or a path.
	Name string `json:"name"`
}

func describeRecord(rec *MovieRecord) MovieInfo {
	return MovieInfo{
		ID:       rec.ID,
		Object:   "movie",
		Path:     rec.Path,
		Format:   string(rec.Movie.Header.FileTag),
		LoadedAt: rec.LoadedAt.Unix(),
		Warnings: len(rec.Warnings),
	}
}

func (s *Server) handleListFiles(c *echo.Context) error {
	names, err := s.provider.ListMovies()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
	}
	data := make([]map[string]any, 0, len(names))
	for _, name := range names {
		data = append(data, map[string]any{"name": name, "object": "file"})
	}
	return c.JSON(http.StatusOK, map[string]any{"object": "list", "data": data})
}

func (s *Server) handleListMovies(c *echo.Context) error {
	recs := s.provider.Store().List()
	data := make([]MovieInfo, 0, len(recs))
	for _, rec := range recs {
		data = append(data, describeRecord(rec))
	}
	return c.JSON(http.StatusOK, map[string]any{"object": "list", "data": data})
}

func (s *Server) handleOpenMovie(c *echo.Context) error {
	req, err := decodeJSON[OpenMovieRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	start := time.Now()
	rec, created, err := s.provider.Open(c.Request().Context(), req.Name)
	if err != nil {
		s.log.Warn("movie load failed", "name", req.Name, "error", err)
		return writeLoadError(c, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.log.Info("movie loaded", "id", rec.ID, "path", rec.Path,
			"warnings", len(rec.Warnings), "elapsed", time.Since(start))
	}
	info := describeRecord(rec)
	info.Summary = report.Summarize(rec.Movie, rec.Warnings)
	return c.JSON(status, info)
}

func (s *Server) handleGetMovie(c *echo.Context) error {
	rec, ok := s.provider.Store().Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "movie not found")
	}
	info := describeRecord(rec)
	info.Summary = report.Summarize(rec.Movie, rec.Warnings)
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleDeleteMovie(c *echo.Context) error {
	id := c.Param("id")
	ok, err := s.provider.Store().Delete(id)
	if !ok {
		return writeNotFound(c, "movie not found")
	}
	if err != nil {
		s.log.Warn("closing movie failed", "id", id, "error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id, "object": "movie.deleted", "deleted": true})
}

func (s *Server) handleSections(c *echo.Context) error {
	rec, ok := s.provider.Store().Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "movie not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"object": "list", "data": report.Sections(rec.Movie)})
}

func (s *Server) handleAssociations(c *echo.Context) error {
	rec, ok := s.provider.Store().Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "movie not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"object": "list", "data": report.Associations(rec.Movie)})
}

func (s *Server) handleListLibraries(c *echo.Context) error {
	rec, ok := s.provider.Store().Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "movie not found")
	}
	libs := rec.Movie.Libraries.Libraries()
	data := make([]report.Library, 0, len(libs))
	for _, lib := range libs {
		l := report.DescribeLibrary(lib)
		l.Members = nil
		data = append(data, l)
	}
	return c.JSON(http.StatusOK, map[string]any{"object": "list", "data": data})
}

func (s *Server) handleGetLibrary(c *echo.Context) error {
	_, lib, err := s.library(c)
	if err != nil {
		return writeLoadError(c, err)
	}
	return c.JSON(http.StatusOK, report.DescribeLibrary(lib))
}

func (s *Server) handleGetMember(c *echo.Context) error {
	_, lib, ordinal, mem, err := s.member(c)
	if err != nil {
		return writeLoadError(c, err)
	}
	return c.JSON(http.StatusOK, report.DescribeMember(lib.Nr, ordinal, mem))
}

func (s *Server) handleMemberImage(c *echo.Context) error {
	rec, lib, ordinal, _, err := s.member(c)
	if err != nil {
		return writeLoadError(c, err)
	}
	ink := movie.InkCopy
	if raw := c.QueryParam("ink"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return writeError(c, http.StatusBadRequest, "invalid_request_error", "ink must be an integer", "ink")
		}
		ink = movie.Ink(v)
	}
	img, err := rec.Movie.RenderMember(lib.Nr, ordinal, ink)
	if err != nil {
		return writeLoadError(c, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleMemberMedia(c *echo.Context) error {
	_, _, _, mem, err := s.member(c)
	if err != nil {
		return writeLoadError(c, err)
	}
	tag := rifx.Tag(c.Param("tag"))
	md, ok := mem.Media[tag]
	if !ok {
		return writeNotFound(c, fmt.Sprintf("member has no %q media", tag))
	}
	if c.QueryParam("raw") != "" {
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, md.Data)
	}
	ex := report.ExportMedia(md)
	return c.Blob(http.StatusOK, ex.ContentType, ex.Data)
}

func (s *Server) library(c *echo.Context) (*MovieRecord, *cast.Library, error) {
	rec, ok := s.provider.Store().Get(c.Param("id"))
	if !ok {
		return nil, nil, ErrMovieNotFound
	}
	nr, err := intParam(c, "lib")
	if err != nil {
		return nil, nil, err
	}
	lib, ok := rec.Movie.Libraries.ByNr(nr)
	if !ok {
		return nil, nil, fmt.Errorf("%w: library %d", movie.ErrMemberNotFound, nr)
	}
	return rec, lib, nil
}

func (s *Server) member(c *echo.Context) (*MovieRecord, *cast.Library, int, *cast.Member, error) {
	rec, lib, err := s.library(c)
	if err != nil {
		return nil, nil, 0, nil, err
	}
	ordinal, err := intParam(c, "member")
	if err != nil {
		return nil, nil, 0, nil, err
	}
	mem, ok := lib.Member(ordinal)
	if !ok {
		return nil, nil, 0, nil, fmt.Errorf("%w: %d:%d", movie.ErrMemberNotFound, lib.Nr, ordinal)
	}
	return rec, lib, ordinal, mem, nil
}
