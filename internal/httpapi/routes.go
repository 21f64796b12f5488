package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

func (a *API) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"ok":        true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	v1 := e.Group("/api/v1")
	v1.Use(a.auth.Middleware)
	v1.POST("/salvage", a.handler.Salvage)
	v1.GET("/runs", a.handler.ListRuns)
	v1.GET("/runs/:id", a.handler.GetRun)
	v1.POST("/batches", a.handler.StartBatch)
	v1.GET("/batches/status", a.handler.GetBatchStatus)
}
