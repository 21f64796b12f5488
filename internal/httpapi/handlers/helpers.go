package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"rastersalvage/internal/salvage"
	"rastersalvage/internal/storage"

	"github.com/labstack/echo/v4"
)

func mapRunError(err error) error {
	switch {
	case errors.Is(err, salvage.ErrPolicyRejected), errors.Is(err, salvage.ErrParse):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, salvage.ErrStorage):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func queryInt(c echo.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.QueryParam(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func clampInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

type objectRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (r *objectRequest) normalize() error {
	r.Bucket = strings.TrimSpace(r.Bucket)
	r.Key = strings.TrimSpace(r.Key)
	if r.Bucket == "" || r.Key == "" {
		return errors.New("bucket and key are required")
	}
	return nil
}
