package api

import (
	"log/slog"

	"dashboard/internal/pipeline"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// NewServer wires the dashboard routes and middleware into a fresh echo
// instance. ratePerSecond bounds requests per client IP.
func NewServer(ctrl *pipeline.Controller, ratePerSecond float64, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = JSONSerializer{}
	e.Renderer = NewTemplates()

	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(ratePerSecond))))

	NewHandler(ctrl, log).RegisterRoutes(e)
	return e
}
