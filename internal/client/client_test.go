package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aethra/glow/internal/engine"
	"github.com/aethra/glow/internal/models"
	"github.com/aethra/glow/internal/query"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu      sync.Mutex
	sources []string
}

func (r *fakeRecorder) RecordFetch(resource, source string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, resource+":"+source)
}

func newFallback(t *testing.T) *engine.MockEngine {
	t.Helper()
	schema, err := engine.NewSchemaEngine(engine.DefaultModules(), zerolog.Nop())
	require.NoError(t, err)
	mock, err := engine.NewMockEngine(schema, zerolog.Nop())
	require.NoError(t, err)
	return mock
}

func newClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Portal: "garage"}, zerolog.Nop(), opts...)
}

func TestList_PagedResponse(t *testing.T) {
	var gotPath, gotQuery string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Write([]byte(`{"data":[{"id":5,"name":"Tyre Change"}],"meta":{"total":10,"page":2,"limit":4}}`))
	}))

	res := c.List(context.Background(), "services", query.UIState{
		Page: 2, Limit: 4, Search: " tyre ", Filters: map[string]string{"status": "all", "name": "Tyre"},
		SortBy: "name", SortOrder: "desc",
	})

	assert.Equal(t, "/api/v1/portals/garage/services", gotPath)
	assert.Equal(t, "limit=4&name=Tyre&page=2&search=tyre&sortBy=name&sortOrder=desc", gotQuery)
	assert.Equal(t, models.Meta{Total: 10, Page: 2, Limit: 4}, res.Meta)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 5, res.Data[0]["id"])
}

func TestList_BareArrayIsPagedLocally(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1},{"id":2},{"id":3},{"id":4},{"id":5},{"id":6},{"id":7},{"id":8},{"id":9},{"id":10}]`))
	}))

	res := c.List(context.Background(), "services", query.UIState{Page: 2, Limit: 4})
	assert.Equal(t, models.Meta{Total: 10, Page: 2, Limit: 4}, res.Meta)
	require.Len(t, res.Data, 4)
	assert.Equal(t, 5, res.Data[0]["id"])
	assert.Equal(t, 8, res.Data[3]["id"])
}

func TestList_FallsBackOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"not json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) }},
		{"wrong shape", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"items":[]}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			c := newClient(t, tt.handler, WithFallback(newFallback(t)), WithRecorder(rec))

			res := c.List(context.Background(), "services", query.UIState{Page: 2, Limit: 4})
			assert.Equal(t, models.Meta{Total: 10, Page: 2, Limit: 4}, res.Meta)
			require.Len(t, res.Data, 4)
			assert.Equal(t, "Tyre Change", res.Data[0]["name"])
			assert.Equal(t, []string{"services:fallback"}, rec.sources)
		})
	}
}

func TestList_EmptyWithoutFallback(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	res := c.List(context.Background(), "services", query.UIState{Page: 3})
	assert.Equal(t, models.EmptyResult(3, models.DefaultPageSize), res)
}

func TestList_DisabledGoesStraightToFallback(t *testing.T) {
	c := New(Config{}, zerolog.Nop(), WithFallback(newFallback(t)))
	res := c.List(context.Background(), "contacts", query.UIState{Limit: 3})
	assert.Equal(t, 10, res.Meta.Total)
	assert.Len(t, res.Data, 3)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	c := New(Config{BaseURL: srv.URL, Portal: "garage", RetryMax: 2, RetryDelay: time.Millisecond}, zerolog.Nop(), WithRecorder(rec))
	res := c.List(context.Background(), "services", query.UIState{})
	assert.Equal(t, 1, res.Meta.Total)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"services:api"}, rec.sources)
}

func TestModules(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/portals/garage/modules", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/api/v1/portals/garage/modules.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"parts","label":"Parts","fields":[{"id":"grade","type":"select","options":["A",{"value":"B","label":"Grade B"}]}]}]}`))
	})
	c := newClient(t, mux)

	modules := c.Modules(context.Background())
	require.Len(t, modules, 1)
	assert.Equal(t, "parts", modules[0].ID)
	assert.Equal(t, []models.Option{{Value: "A", Label: "A"}, {Value: "B", Label: "Grade B"}}, modules[0].Fields[0].Options)
}

func TestModules_Fallback(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"oops":true}`))
	}), WithFallback(newFallback(t)))
	assert.Len(t, c.Modules(context.Background()), len(engine.DefaultModules()))

	bare := newClient(t, http.NotFoundHandler())
	assert.Empty(t, bare.Modules(context.Background()))
}

func TestCurrentUser(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":7,"name":"Arun","role":"Owner"}`))
	}))
	u := c.CurrentUser(context.Background())
	require.NotNil(t, u)
	assert.Equal(t, "Arun", u.Name)

	anon := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}), WithFallback(newFallback(t)))
	u = anon.CurrentUser(context.Background())
	require.NotNil(t, u)
	assert.Equal(t, "Priya", u.Name)

	none := newClient(t, http.NotFoundHandler())
	assert.Nil(t, none.CurrentUser(context.Background()))
}
