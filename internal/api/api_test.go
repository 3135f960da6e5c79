package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aethra/glow/internal/auth"
	"github.com/aethra/glow/internal/client"
	"github.com/aethra/glow/internal/config"
	"github.com/aethra/glow/internal/controller"
	"github.com/aethra/glow/internal/engine"
	"github.com/aethra/glow/internal/metrics"
	"github.com/aethra/glow/internal/models"
	"github.com/aethra/glow/internal/ui"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router   *gin.Engine
	sessions *controller.Sessions
	auth     *auth.SessionService
	metrics  *metrics.Collector
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Pagination.SearchDebounce = 10 * time.Millisecond
	for _, opt := range opts {
		opt(cfg)
	}

	schema, err := engine.NewSchemaEngine(engine.DefaultModules(), zerolog.Nop())
	require.NoError(t, err)
	mock, err := engine.NewMockEngine(schema, zerolog.Nop())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	local := engine.Local{DataEngine: engine.NewDataEngine(schema, mock, zerolog.Nop(), engine.WithObserver(m)), User: engine.DefaultUser()}
	cl := client.New(client.Config{Portal: cfg.API.Portal, DefaultLimit: cfg.Pagination.PageSize}, zerolog.Nop(),
		client.WithFallback(local), client.WithRecorder(m))

	sessions := controller.NewSessions(func() *controller.Controller {
		return controller.New(cl, zerolog.Nop(), controller.WithDebounce(cfg.Pagination.SearchDebounce))
	}, time.Minute, zerolog.Nop())
	t.Cleanup(sessions.Stop)

	renderer, err := ui.NewRenderer()
	require.NoError(t, err)
	svc := auth.NewSessionService("test-secret", time.Hour)

	router := SetupRouter(Deps{
		Config:   cfg,
		Schema:   schema,
		Portal:   local,
		Client:   cl,
		Sessions: sessions,
		Auth:     svc,
		Renderer: renderer,
		Metrics:  m,
		Gatherer: reg,
		Logger:   zerolog.Nop(),
	})
	return &testServer{router: router, sessions: sessions, auth: svc, metrics: m}
}

func (s *testServer) do(t *testing.T, method, target string, cookie *http.Cookie, body url.Values, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(t *testing.T, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	return s.do(t, http.MethodGet, target, cookie, nil, nil)
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

// controllerFor returns the list controller behind a session cookie.
func (s *testServer) controllerFor(t *testing.T, cookie *http.Cookie) *controller.Controller {
	t.Helper()
	sess, err := s.auth.Parse(cookie.Value)
	require.NoError(t, err)
	return s.sessions.Get(sess.ID)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

const portalBase = "/api/v1/portals/abiportal/"

// ===== JSON API =====

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.get(t, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 6, body["modules"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestList_Page(t *testing.T) {
	s := newTestServer(t)
	w := s.get(t, portalBase+"services?page=2&limit=4", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res models.PagedResult
	decode(t, w, &res)
	assert.Equal(t, models.Meta{Total: 10, Page: 2, Limit: 4}, res.Meta)
	require.Len(t, res.Data, 4)
	assert.Equal(t, "5", res.Data[0].ID())
	assert.Equal(t, "Tyre Change", res.Data[0]["name"])
}

func TestList_FilterAlias(t *testing.T) {
	s := newTestServer(t)

	var byField, byAlias models.PagedResult
	decode(t, s.get(t, portalBase+"work_orders?customer=1", nil), &byField)
	decode(t, s.get(t, portalBase+"work_orders?contacts=1", nil), &byAlias)

	assert.NotZero(t, byField.Meta.Total)
	assert.Equal(t, byField, byAlias)
	for _, r := range byField.Data {
		assert.Equal(t, "1", models.Stringify(r["customer"]))
	}
}

func TestList_Errors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"unknown module", portalBase + "ghosts", http.StatusNotFound, "NOT_FOUND"},
		{"unknown portal", "/api/v1/portals/other/services", http.StatusNotFound, "NOT_FOUND"},
		{"unknown version", "/api/v2/portals/abiportal/services", http.StatusNotFound, "NOT_FOUND"},
		{"bad page", portalBase + "services?page=two", http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.get(t, tt.target, nil)
			assert.Equal(t, tt.status, w.Code)
			var body map[string]any
			decode(t, w, &body)
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestList_HugePageIsEmpty(t *testing.T) {
	s := newTestServer(t)
	w := s.get(t, portalBase+"services?page=4611686018427387904&limit=4", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res models.PagedResult
	decode(t, w, &res)
	assert.Empty(t, res.Data)
	assert.Equal(t, models.Meta{Total: 10, Page: 1 << 62, Limit: 4}, res.Meta)

	decode(t, s.get(t, portalBase+"services?limit=100000", nil), &res)
	assert.Equal(t, models.MaxPageSize, res.Meta.Limit)
	assert.Len(t, res.Data, 10)
}

func TestModulesAndMe(t *testing.T) {
	s := newTestServer(t)

	for _, target := range []string{portalBase + "modules", portalBase + "modules.json"} {
		w := s.get(t, target, nil)
		require.Equal(t, http.StatusOK, w.Code, target)
		var body struct {
			Data []models.Module `json:"data"`
		}
		decode(t, w, &body)
		require.Len(t, body.Data, 6)

		var orders *models.Module
		for i := range body.Data {
			if body.Data[i].ID == "work_orders" {
				orders = &body.Data[i]
			}
		}
		require.NotNil(t, orders)
		customer, ok := orders.Field("customer")
		require.True(t, ok)
		assert.Len(t, customer.Options, 10)
	}

	var u models.User
	decode(t, s.get(t, portalBase+"me", nil), &u)
	assert.Equal(t, "Priya", u.Name)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.get(t, portalBase+"services", nil)

	w := s.get(t, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `glow_http_requests_total{method="GET",route="/api/:version/portals/:portal/:resource",status="200"}`)
	assert.Contains(t, w.Body.String(), `glow_list_queries_total{module="services",outcome="ok"} 1`)
}

// ===== DASHBOARD UI =====

func TestDashboardPage(t *testing.T) {
	s := newTestServer(t)
	w := s.get(t, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Recent leads")
	assert.Contains(t, body, `id="dashboard-section-services"`)
	assert.Contains(t, body, "Oil Change")
	assert.Contains(t, body, `data-theme-mode="system"`)
	assert.Contains(t, body, "Signed in as Priya")
	sessionCookie(t, w)
	assert.Equal(t, 1, s.sessions.Len())
}

func TestModulePage_KeepsStateAcrossVisits(t *testing.T) {
	s := newTestServer(t)

	w := s.get(t, "/m/services?page=2&limit=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Tyre Change")
	assert.NotContains(t, w.Body.String(), "Oil Change")
	cookie := sessionCookie(t, w)

	w = s.get(t, "/m/services", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Tyre Change")
	assert.Contains(t, w.Body.String(), "Page 2 of 3")
}

func TestModulePage_HugePageKeepsServing(t *testing.T) {
	s := newTestServer(t)

	w := s.get(t, "/m/services?page=4611686018427387904&limit=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Oil Change")
	cookie := sessionCookie(t, w)

	w = s.get(t, "/m/services/table?action=page&page=4611686018427387904", cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.get(t, "/m/services?page=1&limit=4", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Oil Change")
}

func TestModulePage_LeavingCancelsPendingSearch(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Pagination.SearchDebounce = 200 * time.Millisecond
	})
	servicesLoads := func() float64 {
		return testutil.ToFloat64(s.metrics.QueriesTotal.WithLabelValues("services", "ok"))
	}

	cookie := sessionCookie(t, s.get(t, "/m/services", nil))
	require.Equal(t, 1.0, servicesLoads())

	// A search typed just before the user follows a link elsewhere.
	ctrl := s.controllerFor(t, cookie)
	ctrl.OnSearchChange("services", "oil")
	w := s.get(t, "/m/contacts", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "contacts", ctrl.Active())

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1.0, servicesLoads())
	st := ctrl.State("services")
	assert.Equal(t, controller.Unloaded, st.Status)
	assert.Equal(t, "oil", st.Search)

	// Coming back runs the search that was left pending.
	w = s.get(t, "/m/services", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, servicesLoads())
	assert.Contains(t, w.Body.String(), "Oil Change")
	assert.NotContains(t, w.Body.String(), "Tyre Change")

	s.get(t, "/", cookie)
	assert.Empty(t, ctrl.Active())
}

func TestTableFragment_Actions(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, s.get(t, "/m/services", nil))

	w := s.get(t, "/m/services/table?action=sort&field=name", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `aria-sort="ascending"`)
	assert.NotContains(t, body, "<html")
	assert.Less(t, strings.Index(body, "AC Repair"), strings.Index(body, "Wheel Alignment"))

	w = s.get(t, "/m/services/table?action=sort&field=name", cookie)
	assert.Contains(t, w.Body.String(), `aria-sort="descending"`)

	w = s.get(t, "/m/services/table?action=search&search=brake", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Brake Discs")
	assert.NotContains(t, w.Body.String(), "Oil Change")

	w = s.get(t, "/m/services/table?action=filter&price=100000", cookie)
	assert.Contains(t, w.Body.String(), ui.FilteredEmptyMessage)

	for _, bad := range []string{"action=sort&field=price", "action=page&page=x", "action=explode"} {
		assert.Equal(t, http.StatusBadRequest, s.get(t, "/m/services/table?"+bad, cookie).Code, bad)
	}
	assert.Equal(t, http.StatusNotFound, s.get(t, "/m/ghosts/table", cookie).Code)
}

func TestToggleFilters(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, s.get(t, "/m/work_orders?status=Done", nil))

	w := s.get(t, "/m/work_orders/filters?open=1", cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/m/work_orders", w.Header().Get("Location"))

	body := s.get(t, "/m/work_orders", cookie).Body.String()
	assert.NotContains(t, body, "module-filters--collapsed")
	assert.Contains(t, body, `<option value="Done" selected>`)

	s.get(t, "/m/work_orders/filters?open=0", cookie)
	body = s.get(t, "/m/work_orders", cookie).Body.String()
	assert.Contains(t, body, "module-filters--collapsed")
	assert.NotContains(t, body, `<option value="Done" selected>`)
}

func TestPreferences(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, s.get(t, "/", nil))

	w := s.do(t, http.MethodPost, "/prefs", cookie, url.Values{"theme": {"dark"}},
		map[string]string{"Referer": "http://localhost/m/services?page=2"})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/m/services?page=2", w.Header().Get("Location"))
	cookie = sessionCookie(t, w)

	w = s.do(t, http.MethodPost, "/prefs", cookie, url.Values{"accent": {"green"}}, nil)
	assert.Equal(t, "/", w.Header().Get("Location"))
	cookie = sessionCookie(t, w)

	sess, err := s.auth.Parse(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, models.Preferences{Theme: "dark", Accent: "green"}, sess.Preferences)

	body := s.get(t, "/", cookie).Body.String()
	assert.Contains(t, body, `data-theme="dark"`)
	assert.Contains(t, body, `data-accent="green"`)
	assert.Equal(t, 1, s.sessions.Len())
}

func TestSystemThemeFollowsHint(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/", nil, nil, map[string]string{hintColorScheme: "dark"})
	assert.Contains(t, w.Body.String(), `data-theme="dark" data-theme-mode="system"`)
	assert.Contains(t, w.Header().Get("Accept-CH"), hintColorScheme)
}

func TestNavPromotion(t *testing.T) {
	s := newTestServer(t)
	narrow := map[string]string{hintViewportWidth: "400"}

	w := s.do(t, http.MethodGet, "/m/services", nil, nil, narrow)
	cookie := sessionCookie(t, w)
	assert.Contains(t, w.Body.String(), `href="/m/vehicles?promote=1"`)

	w = s.do(t, http.MethodGet, "/m/vehicles?promote=1", cookie, nil, narrow)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `class="nav-item active" href="/m/vehicles"`)
	assert.Contains(t, body, `href="/m/staffs?promote=1"`)
}

func TestPlaceholders(t *testing.T) {
	s := newTestServer(t)

	w := s.get(t, "/m/services/new", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Add Services")

	assert.Equal(t, http.StatusNotFound, s.get(t, "/m/ghosts", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.get(t, "/m/ghosts/new", nil).Code)
}

func TestInvalidCookieStartsNewSession(t *testing.T) {
	s := newTestServer(t)
	w := s.get(t, "/", &http.Cookie{Name: auth.CookieName, Value: "garbage"})
	require.Equal(t, http.StatusOK, w.Code)
	fresh := sessionCookie(t, w)
	_, err := s.auth.Parse(fresh.Value)
	assert.NoError(t, err)
}

func TestBackTo(t *testing.T) {
	assert.Equal(t, "/m/a?x=1", backTo("https://glow.test/m/a?x=1"))
	assert.Equal(t, "/", backTo(""))
	assert.Equal(t, "/", backTo("::bad"))
	assert.Equal(t, "/", backTo("https://evil.test"))
}
