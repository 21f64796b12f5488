package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const maxBatchKeys = 10000

func (h *Handler) StartBatch(c echo.Context) error {
	if h.batches == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "batches not configured")
	}

	var req struct {
		Bucket string   `json:"bucket"`
		Keys   []string `json:"keys"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	bucket := strings.TrimSpace(req.Bucket)
	keys := make([]string, 0, len(req.Keys))
	for _, k := range req.Keys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if bucket == "" || len(keys) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "bucket and at least one key are required")
	}
	if len(keys) > maxBatchKeys {
		return echo.NewHTTPError(http.StatusBadRequest, "too many keys")
	}

	if !h.batches.Trigger(bucket, keys) {
		return echo.NewHTTPError(http.StatusConflict, "a batch is already running")
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"ok":      true,
		"message": "batch started",
		"objects": len(keys),
	})
}

func (h *Handler) GetBatchStatus(c echo.Context) error {
	if h.batches == nil {
		return c.JSON(http.StatusOK, map[string]any{
			"configured": false,
			"running":    false,
		})
	}
	return c.JSON(http.StatusOK, h.batches.Status())
}
