package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/Arusekk/Schockabsorber/internal/movie"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "")
}

func writeError(c *echo.Context, status int, errType, msg, param string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Param:   param,
		},
	})
}

// writeLoadError maps loader and render failures onto HTTP statuses.
func writeLoadError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return writeBadRequest(c, err.Error())
	case errors.Is(err, ErrMovieNotFound), errors.Is(err, movie.ErrMemberNotFound):
		return writeNotFound(c, err.Error())
	case errors.Is(err, rifx.ErrBadFileType), errors.Is(err, rifx.ErrUnsupportedEnvelope),
		errors.Is(err, rifx.ErrSectionNotFound), errors.Is(err, rifx.ErrSectionMismatch):
		return writeError(c, http.StatusUnprocessableEntity, "format_error", err.Error(), "")
	case errors.Is(err, movie.ErrNotImage), errors.Is(err, movie.ErrNoPixels):
		return writeError(c, http.StatusUnprocessableEntity, "render_error", err.Error(), "")
	}
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func intParam(c *echo.Context, name string) (int, error) {
	raw := c.Param(name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, newInvalidRequest(fmt.Sprintf("%s must be an integer, got %q", name, raw))
	}
	return v, nil
}
