// Package api - UI Handler for the dashboard pages
package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aethra/glow/internal/auth"
	"github.com/aethra/glow/internal/client"
	"github.com/aethra/glow/internal/config"
	"github.com/aethra/glow/internal/controller"
	"github.com/aethra/glow/internal/metrics"
	"github.com/aethra/glow/internal/models"
	"github.com/aethra/glow/internal/query"
	"github.com/aethra/glow/internal/ui"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Client hint headers read for layout and theme.
const (
	hintViewportWidth = "Sec-CH-Viewport-Width"
	hintColorScheme   = "Sec-CH-Prefers-Color-Scheme"
)

// UIHandler renders the dashboard
type UIHandler struct {
	cfg      *config.Config
	client   *client.Client
	sessions *controller.Sessions
	auth     *auth.SessionService
	renderer *ui.Renderer
	metrics  *metrics.Collector
	builder  query.Builder
	wait     time.Duration
	logger   zerolog.Logger
}

// NewUIHandler creates a new UI handler
func NewUIHandler(d Deps) *UIHandler {
	// Long enough for every retry of a slow API plus the search debounce.
	wait := d.Config.API.Timeout*time.Duration(max(d.Config.API.RetryMax, 1)) +
		d.Config.Pagination.SearchDebounce + time.Second
	return &UIHandler{
		cfg:      d.Config,
		client:   d.Client,
		sessions: d.Sessions,
		auth:     d.Auth,
		renderer: d.Renderer,
		metrics:  d.Metrics,
		builder:  query.Builder{PageSize: d.Config.Pagination.PageSize},
		wait:     wait,
		logger:   d.Logger.With().Str("component", "ui").Logger(),
	}
}

// =============================================================================
// PAGES
// =============================================================================

// Dashboard serves the four summary sections
// GET /
func (h *UIHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	ctrl := h.controller(c)
	ctrl.Leave()
	modules := h.client.Modules(ctx)

	sections := h.cfg.Dashboard
	if len(sections) == 0 {
		sections = controller.DefaultDashboardSections()
	}
	loaded, err := controller.LoadDashboard(ctx, h.client, modules, sections, controller.DashboardLimit)
	if err != nil {
		h.fail(c, err)
		return
	}

	page := h.page(c, ctrl, modules, "dashboard", "Dashboard")
	h.html(c, http.StatusOK, func(buf *bytes.Buffer) error {
		return h.renderer.Dashboard(buf, page, ui.BuildDashboard(loaded))
	})
}

// Module serves an entity list. A bare link reopens the session's list
// state; a link with parameters replaces it.
// GET /m/:module
func (h *UIHandler) Module(c *gin.Context) {
	ctx := c.Request.Context()
	ctrl := h.controller(c)
	modules := h.client.Modules(ctx)
	id := c.Param("module")

	params := c.Request.URL.Query()
	if params.Get("promote") == "1" {
		ctrl.PromoteNav(modules, viewportWidth(c), id)
	}
	params.Del("promote")

	m := findModule(modules, id)
	if m == nil {
		ctrl.Leave()
		h.notFound(c, ctrl, modules, id)
		return
	}
	if len(m.Fields) == 0 {
		ctrl.Leave()
		page := h.page(c, ctrl, modules, id, m.Label)
		h.html(c, http.StatusOK, func(buf *bytes.Buffer) error { return h.renderer.Placeholder(buf, page) })
		return
	}

	if len(params) == 0 {
		ctrl.View(id)
	} else {
		ctrl.Navigate(id, query.State(h.builder.Decode(params, m)))
	}
	view := h.moduleView(ctx, ctrl, m)

	page := h.page(c, ctrl, modules, id, m.Label)
	h.html(c, http.StatusOK, func(buf *bytes.Buffer) error { return h.renderer.Module(buf, page, view) })
}

// Table applies one list action and returns the list fragment. Actions are
// search (search=), sort (field=), page (page=) and filter (filter keys).
// GET /m/:module/table
func (h *UIHandler) Table(c *gin.Context) {
	ctx := c.Request.Context()
	ctrl := h.controller(c)
	id := c.Param("module")
	m := findModule(h.client.Modules(ctx), id)
	if m == nil {
		c.String(http.StatusNotFound, "module not found")
		return
	}

	switch action := c.Query("action"); action {
	case "search":
		ctrl.OnSearchChange(id, c.Query(query.ParamSearch))
	case "sort":
		field, ok := m.Field(c.Query("field"))
		if !ok || !field.Sortable {
			c.String(http.StatusBadRequest, "field is not sortable")
			return
		}
		ctrl.OnSortToggle(id, field.ID)
	case "page":
		page, err := strconv.Atoi(c.Query(query.ParamPage))
		if err != nil {
			c.String(http.StatusBadRequest, "page must be an integer")
			return
		}
		ctrl.OnPageChange(id, page)
	case "filter":
		filters := h.builder.Decode(c.Request.URL.Query(), m).Filters
		ctrl.OnFilterApply(id, filters)
	case "":
		ctrl.View(id)
	default:
		c.String(http.StatusBadRequest, "unknown action %q", action)
		return
	}

	view := h.moduleView(ctx, ctrl, m)
	h.html(c, http.StatusOK, func(buf *bytes.Buffer) error { return h.renderer.List(buf, view) })
}

// ToggleFilters opens or closes the filter panel. Closing clears filters.
// GET /m/:module/filters?open=0|1
func (h *UIHandler) ToggleFilters(c *gin.Context) {
	ctrl := h.controller(c)
	id := c.Param("module")
	ctrl.OnFilterToggle(id, c.Query("open") == "1")
	c.Redirect(http.StatusSeeOther, ui.ModuleURL(id, nil))
}

// New is the placeholder behind the Add button
// GET /m/:module/new
func (h *UIHandler) New(c *gin.Context) {
	ctrl := h.controller(c)
	modules := h.client.Modules(c.Request.Context())
	id := c.Param("module")
	m := findModule(modules, id)
	if m == nil {
		h.notFound(c, ctrl, modules, id)
		return
	}
	ctrl.Leave()
	page := h.page(c, ctrl, modules, id, "Add "+m.Label)
	h.html(c, http.StatusOK, func(buf *bytes.Buffer) error { return h.renderer.Placeholder(buf, page) })
}

// Preferences stores the theme or accent and returns to the previous page
// POST /prefs
func (h *UIHandler) Preferences(c *gin.Context) {
	sess := sessionFrom(c)
	if theme := c.PostForm("theme"); theme != "" {
		sess.Preferences = controller.SetTheme(sess.Preferences, theme)
	}
	if accent := c.PostForm("accent"); accent != "" {
		sess.Preferences = controller.SetAccent(sess.Preferences, accent)
	}
	if err := writeSession(c, h.auth, sess, h.cfg.Auth.SecureCookie); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, backTo(c.GetHeader("Referer")))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *UIHandler) controller(c *gin.Context) *controller.Controller {
	ctrl := h.sessions.Get(sessionFrom(c).ID)
	if h.metrics != nil {
		h.metrics.Sessions.Set(float64(h.sessions.Len()))
	}
	return ctrl
}

// moduleView waits for the module's pending load and builds its view. A load
// that outlives the wait renders as loading.
func (h *UIHandler) moduleView(ctx context.Context, ctrl *controller.Controller, m *models.Module) ui.ModuleView {
	waitCtx, cancel := context.WithTimeout(ctx, h.wait)
	defer cancel()
	st, err := ctrl.Wait(waitCtx, m.ID)
	if err != nil {
		h.logger.Warn().Err(err).Str("module", m.ID).Msg("list not ready")
	}

	q := h.builder.Build(st.UIState())
	result := models.PagedResult{Data: st.List, Meta: st.Meta()}
	view := ui.BuildModuleView(m, q, result, st.FiltersOpen)
	view.Loading = st.Status != controller.Loaded
	return view
}

func (h *UIHandler) page(c *gin.Context, ctrl *controller.Controller, modules []models.Module, active, title string) ui.Page {
	prefs := sessionFrom(c).Preferences
	effective := controller.EffectiveTheme(prefs, c.GetHeader(hintColorScheme))
	c.Header("Accept-CH", hintViewportWidth+", "+hintColorScheme)

	return ui.Page{
		AppName:  h.cfg.Server.AppName,
		Title:    title,
		ActiveID: active,
		Theme:    ui.BuildTheme(prefs, effective),
		Nav:      ui.BuildNav(modules, ctrl.PrimaryNav(modules, viewportWidth(c)), active),
		Profile:  ui.BuildProfile(h.client.CurrentUser(c.Request.Context())),
	}
}

func (h *UIHandler) notFound(c *gin.Context, ctrl *controller.Controller, modules []models.Module, id string) {
	page := h.page(c, ctrl, modules, "", fmt.Sprintf("Module %q not found", id))
	h.html(c, http.StatusNotFound, func(buf *bytes.Buffer) error { return h.renderer.Placeholder(buf, page) })
}

// html renders into a buffer first so a template error still yields a clean
// error response.
func (h *UIHandler) html(c *gin.Context, status int, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.fail(c, err)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (h *UIHandler) fail(c *gin.Context, err error) {
	requestLogger(c, &h.logger).Error().Err(err).Msg("page failed")
	c.String(http.StatusInternalServerError, "Something went wrong.")
}

func findModule(modules []models.Module, id string) *models.Module {
	for i := range modules {
		if modules[i].ID == id {
			return &modules[i]
		}
	}
	return nil
}

func viewportWidth(c *gin.Context) int {
	for _, name := range []string{hintViewportWidth, "Viewport-Width"} {
		if w, err := strconv.Atoi(strings.TrimSpace(c.GetHeader(name))); err == nil && w > 0 {
			return w
		}
	}
	return controller.DefaultViewportWidth
}

// backTo keeps redirects on this site.
func backTo(referer string) string {
	u, err := url.Parse(referer)
	if err != nil || u.Path == "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}
