package httpapi

import (
	"rastersalvage/internal/auth"
	"rastersalvage/internal/config"
	"rastersalvage/internal/httpapi/handlers"
	"rastersalvage/internal/httpapi/middlewares"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type API struct {
	cfg     config.Config
	auth    *auth.Authenticator
	handler *handlers.Handler
}

// New wires the API. runs and batches may be nil.
func New(cfg config.Config, salvager handlers.Salvager, runs handlers.RunJournal, batches handlers.BatchTrigger, authn *auth.Authenticator) *API {
	return &API{
		cfg:     cfg,
		auth:    authn,
		handler: handlers.New(salvager, runs, batches),
	}
}

func (a *API) NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(middlewares.NewRateLimitMiddleware(a.auth, middlewares.RateLimitConfig{
		Window:          a.cfg.RateLimitWindow,
		SalvagePerIP:    a.cfg.RateLimitIP,
		SalvagePerToken: a.cfg.RateLimitKey,
	}))

	a.registerRoutes(e)
	return e
}
