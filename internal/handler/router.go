package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/aprendices-roster/internal/middleware"
	"github.com/noah-isme/aprendices-roster/internal/service"
	"github.com/noah-isme/aprendices-roster/pkg/logger"
	corsmiddleware "github.com/noah-isme/aprendices-roster/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/aprendices-roster/pkg/middleware/requestid"
)

// RouterConfig holds the transport settings.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	SecureCookies  bool
}

// Handlers groups the route handlers. Export may be nil when downloads are
// disabled.
type Handlers struct {
	Page    *PageHandler
	Viewer  *ViewerHandler
	Export  *ExportHandler
	Metrics *MetricsHandler
}

// NewRouter builds the gin engine with the page, API, export and ops routes.
func NewRouter(cfg RouterConfig, logr *zap.Logger, metrics *service.MetricsService, scopes middleware.ScopeIssuer, h Handlers) (*gin.Engine, error) {
	tmpl, err := Templates()
	if err != nil {
		return nil, err
	}
	if logr == nil {
		logr = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.SetHTMLTemplate(tmpl)

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	r.GET("/metrics/summary", h.Metrics.Snapshot)

	scoped := r.Group("/")
	scoped.Use(middleware.ClientScope(scopes, cfg.SecureCookies))

	scoped.GET("/", h.Page.Index)
	scoped.POST("/login", h.Page.Login)
	scoped.POST("/logout", h.Page.Logout)
	scoped.POST("/cohort", h.Page.SelectCohort)
	scoped.POST("/search", h.Page.Search)
	scoped.POST("/search/clear", h.Page.ClearSearch)

	if h.Export != nil {
		scoped.GET("/exports/cohorts/:code", h.Export.ExportCohort)
		r.GET("/exports/download", h.Export.Download)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.ClientScope(scopes, cfg.SecureCookies))
	api.GET("/view", h.Viewer.View)
	api.POST("/session", h.Viewer.Login)
	api.DELETE("/session", h.Viewer.Logout)
	api.PUT("/selection", h.Viewer.SelectCohort)
	api.POST("/search", h.Viewer.Search)
	api.POST("/search/live", h.Viewer.LiveSearch)
	api.DELETE("/search", h.Viewer.ClearSearch)
	api.GET("/search/history", h.Viewer.SearchHistory)
	api.GET("/cohorts", h.Viewer.Cohorts)
	api.GET("/cohorts/:code/statistics", h.Viewer.Statistics)
	api.GET("/storage", h.Viewer.Storage)

	return r, nil
}
