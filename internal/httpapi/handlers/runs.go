package handlers

import (
	"errors"
	"net/http"
	"strings"

	"rastersalvage/internal/journal"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
)

func (h *Handler) ListRuns(c echo.Context) error {
	if h.journal == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run journal disabled")
	}

	limit := clampInt(queryInt(c, "limit", defaultRunsLimit), 1, maxRunsLimit)
	runs, err := h.journal.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []journal.Entry{}
	}
	return c.JSON(http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) GetRun(c echo.Context) error {
	if h.journal == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run journal disabled")
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}
	entry, err := h.journal.GetRun(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entry)
}
