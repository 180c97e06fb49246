package server

import (
	"context"
	"net/http"

	"github.com/Real-Bird/upload-server/internal/config"
	"github.com/Real-Bird/upload-server/internal/index"
	"github.com/Real-Bird/upload-server/internal/logger"
	"github.com/Real-Bird/upload-server/internal/metrics"
	"github.com/Real-Bird/upload-server/internal/session"
	"github.com/Real-Bird/upload-server/internal/upload"
	"github.com/Real-Bird/upload-server/internal/user"
	"github.com/Real-Bird/upload-server/internal/web"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is satisfied by the MongoDB connection manager.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker is satisfied by the object storage upload backend.
type Checker interface {
	Check(ctx context.Context) error
}

// Dependencies is the application context handed to the router. Handlers reach shared
// resources through it instead of package state.
type Dependencies struct {
	Config      config.Config
	Logger      *zap.Logger
	DB          Pinger
	ObjectStore Checker
	Uploads     *upload.Service
}

// NewRouter builds the gin engine. Middleware order matters: recovery, access log, metrics,
// error handler, static pages, session, then the route tables and the 404 fallback.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(Recovery(deps.Logger))
	router.Use(logger.Middleware(deps.Logger))
	router.Use(metrics.Middleware())
	router.Use(ErrorHandler(deps.Logger))
	router.Use(Static(web.Pages()))
	router.Use(session.Middleware(deps.Config.Session))
	router.SetHTMLTemplate(web.Views())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	index.RegisterRoutes(router)
	user.RegisterRoutes(router.Group("/user"))
	if deps.Uploads != nil {
		upload.RegisterRoutes(router, deps.Uploads, web.Pages(), deps.Logger)
	}

	router.NoRoute(notFound)

	return router
}

func notFound(c *gin.Context) {
	c.String(http.StatusNotFound, http.StatusText(http.StatusNotFound))
}
