// Package api - Router setup
package api

import (
	"net/http"
	"time"

	"github.com/aethra/glow/internal/auth"
	"github.com/aethra/glow/internal/client"
	"github.com/aethra/glow/internal/config"
	"github.com/aethra/glow/internal/controller"
	"github.com/aethra/glow/internal/engine"
	"github.com/aethra/glow/internal/metrics"
	"github.com/aethra/glow/internal/ui"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the services the router wires together.
type Deps struct {
	Config   *config.Config
	Schema   *engine.SchemaEngine
	Portal   client.Fallback // answers the JSON API
	Client   *client.Client  // feeds the dashboard UI
	Sessions *controller.Sessions
	Auth     *auth.SessionService
	Renderer *ui.Renderer
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// SetupRouter creates and configures the Gin router
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(d.Logger))
	if d.Metrics != nil {
		r.Use(MetricsMiddleware(d.Metrics))
	}

	// When credentials are used, specific origins must be provided (not *)
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "X-Request-ID"},
		AllowCredentials: d.Config.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	handler := NewHandler(d.Schema, d.Portal, d.Config.API.Portal, d.Config.Pagination.PageSize)

	// Health check and metrics
	r.GET("/api/health", handler.Health)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// ==========================================================================
	// PORTAL API - schema, lists and the current user
	// ==========================================================================
	portal := r.Group("/api/:version/portals/:portal")
	portal.Use(handler.PortalMiddleware())
	{
		portal.GET("/:resource", handler.Resource)
	}

	// ==========================================================================
	// DASHBOARD UI
	// ==========================================================================
	r.StaticFS("/static", http.FS(ui.Static()))

	uiHandler := NewUIHandler(d)
	app := r.Group("/")
	app.Use(SessionMiddleware(d.Auth, d.Config.Preferences(), d.Config.Auth.SecureCookie))
	{
		app.GET("/", uiHandler.Dashboard)
		app.GET("/m/:module", uiHandler.Module)
		app.GET("/m/:module/table", uiHandler.Table)
		app.GET("/m/:module/filters", uiHandler.ToggleFilters)
		app.GET("/m/:module/new", uiHandler.New)
		app.POST("/prefs", uiHandler.Preferences)
	}

	return r
}
