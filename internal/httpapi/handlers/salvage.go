package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Salvage runs one object through the pipeline and answers with its result.
func (h *Handler) Salvage(c echo.Context) error {
	var req objectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := req.normalize(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.salvager.Run(c.Request().Context(), req.Bucket, req.Key)
	if err != nil {
		return mapRunError(err)
	}
	return c.JSON(http.StatusOK, res)
}
