package controller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aethra/glow/internal/models"
	"github.com/aethra/glow/internal/query"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoader answers with one row whose id is the requested page. Requests
// for a gated page block until the gate is closed.
type fakeLoader struct {
	mu    sync.Mutex
	calls []query.UIState
	gates map[int]chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{gates: make(map[int]chan struct{})}
}

func (f *fakeLoader) gate(page int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[page] = ch
	return ch
}

func (f *fakeLoader) List(_ context.Context, moduleID string, s query.UIState) models.PagedResult {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	gate := f.gates[s.Page]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return models.PagedResult{
		Data: []models.Row{{"id": fmt.Sprintf("%s-%d", moduleID, s.Page)}},
		Meta: models.Meta{Total: 100, Page: s.Page, Limit: s.Limit},
	}
}

func (f *fakeLoader) Calls() []query.UIState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]query.UIState(nil), f.calls...)
}

func waitState(t *testing.T, c *Controller, id string) EntityViewState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := c.Wait(ctx, id)
	require.NoError(t, err)
	return st
}

// ===== LOADING =====

func TestView_LoadsFirstPageOnce(t *testing.T) {
	loader := newFakeLoader()
	c := New(loader, zerolog.Nop(), WithPageSize(4))
	defer c.Close()

	st := c.View("services")
	assert.Equal(t, Loading, st.Status)
	assert.Nil(t, st.List)

	st = waitState(t, c, "services")
	assert.Equal(t, Loaded, st.Status)
	assert.Equal(t, 100, st.Total)
	assert.Equal(t, "services-1", st.List[0].ID())

	c.View("services")
	assert.Len(t, loader.Calls(), 1)
	assert.Equal(t, query.UIState{Page: 1, Limit: 4, SortOrder: "asc"}, loader.Calls()[0])
}

func TestStaleResponseIsDropped(t *testing.T) {
	loader := newFakeLoader()
	release := loader.gate(1)
	c := New(loader, zerolog.Nop())
	defer c.Close()

	c.Navigate("services", query.UIState{Page: 1})
	c.OnPageChange("services", 2)

	st := waitState(t, c, "services")
	assert.Equal(t, "services-2", st.List[0].ID())

	close(release)
	require.Eventually(t, func() bool { return len(loader.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	st = c.State("services")
	assert.Equal(t, 2, st.Page)
	assert.Equal(t, "services-2", st.List[0].ID())
}

func TestSearch_Debounced(t *testing.T) {
	loader := newFakeLoader()
	c := New(loader, zerolog.Nop(), WithDebounce(20*time.Millisecond))
	defer c.Close()

	c.OnPageChange("services", 3)
	waitState(t, c, "services")

	for _, term := range []string{"b", "br", " brake "} {
		st := c.OnSearchChange("services", term)
		assert.Equal(t, term, st.Search)
	}

	st := waitState(t, c, "services")
	calls := loader.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "brake", calls[1].Search)
	assert.Equal(t, 1, calls[1].Page)
	assert.Equal(t, "brake", st.Search)
	assert.Equal(t, Loaded, st.Status)
}

func TestSortToggle(t *testing.T) {
	loader := newFakeLoader()
	c := New(loader, zerolog.Nop())
	defer c.Close()

	c.OnPageChange("services", 4)
	st := c.OnSortToggle("services", "price")
	assert.Equal(t, "price", st.SortBy)
	assert.Equal(t, models.SortAsc, st.SortOrder)
	assert.Equal(t, 1, st.Page)

	st = c.OnSortToggle("services", "price")
	assert.Equal(t, models.SortDesc, st.SortOrder)

	st = c.OnSortToggle("services", "name")
	assert.Equal(t, "name", st.SortBy)
	assert.Equal(t, models.SortAsc, st.SortOrder)

	st = waitState(t, c, "services")
	assert.Equal(t, Loaded, st.Status)
	assert.Equal(t, "name", st.SortBy)
}

func TestFilterApplyAndToggle(t *testing.T) {
	loader := newFakeLoader()
	c := New(loader, zerolog.Nop())
	defer c.Close()

	st := c.OnFilterApply("work_orders", map[string]string{"status": "Done", "customer": "all"})
	assert.Equal(t, map[string]string{"status": "Done"}, st.Filters)
	assert.Equal(t, 1, st.Page)
	waitState(t, c, "work_orders")
	calls := len(loader.Calls())

	st = c.OnFilterToggle("work_orders", true)
	assert.True(t, st.FiltersOpen)
	assert.Equal(t, map[string]string{"status": "Done"}, st.Filters)
	waitState(t, c, "work_orders")
	assert.Len(t, loader.Calls(), calls)

	st = c.OnFilterToggle("work_orders", false)
	assert.False(t, st.FiltersOpen)
	assert.Empty(t, st.Filters)
	waitState(t, c, "work_orders")
	assert.Len(t, loader.Calls(), calls+1)
}

func TestNavigate_NormalizesState(t *testing.T) {
	loader := newFakeLoader()
	c := New(loader, zerolog.Nop(), WithPageSize(10))
	defer c.Close()

	st := c.Navigate("contacts", query.UIState{Page: -2, Search: "  kavya ", Filters: map[string]string{"city": ""}})
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, 10, st.Limit)
	assert.Equal(t, "kavya", st.Search)
	assert.Empty(t, st.Filters)
	assert.Equal(t, models.SortAsc, st.SortOrder)
}

func TestListenerReceivesCompletedLoads(t *testing.T) {
	loader := newFakeLoader()
	got := make(chan EntityViewState, 1)
	c := New(loader, zerolog.Nop(), WithListener(func(id string, st EntityViewState) {
		assert.Equal(t, "staffs", id)
		got <- st
	}))
	defer c.Close()

	c.View("staffs")
	select {
	case st := <-got:
		assert.Equal(t, Loaded, st.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("listener not called")
	}
}

// ===== LIFECYCLE =====

func TestTeardown_DropsInFlightLoad(t *testing.T) {
	loader := newFakeLoader()
	release := loader.gate(1)
	c := New(loader, zerolog.Nop())
	defer c.Close()

	c.View("services")
	c.Teardown("services")

	st := c.State("services")
	assert.Equal(t, Unloaded, st.Status)
	assert.Nil(t, st.List)

	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Unloaded, c.State("services").Status)

	c.View("services")
	st = waitState(t, c, "services")
	assert.Equal(t, Loaded, st.Status)
	assert.Len(t, loader.Calls(), 2)
}

func TestTeardown_StopsDebounce(t *testing.T) {
	loader := newFakeLoader()
	c := New(loader, zerolog.Nop(), WithDebounce(10*time.Millisecond))
	defer c.Close()

	c.OnSearchChange("services", "oil")
	c.Teardown("services")
	time.Sleep(40 * time.Millisecond)

	assert.Empty(t, loader.Calls())
	assert.Equal(t, "oil", c.State("services").Search)
}

func TestSwitchingModules_TearsDownPrevious(t *testing.T) {
	loader := newFakeLoader()
	c := New(loader, zerolog.Nop(), WithDebounce(30*time.Millisecond))
	defer c.Close()

	c.View("services")
	waitState(t, c, "services")
	c.OnSearchChange("services", " oil ")
	c.View("contacts")
	assert.Equal(t, "contacts", c.Active())
	waitState(t, c, "contacts")
	time.Sleep(60 * time.Millisecond)

	for _, call := range loader.Calls() {
		assert.Empty(t, call.Search)
	}
	st := c.State("services")
	assert.Equal(t, Unloaded, st.Status)
	assert.Equal(t, "oil", st.Search)

	c.View("services")
	st = waitState(t, c, "services")
	assert.Equal(t, Loaded, st.Status)
	calls := loader.Calls()
	assert.Equal(t, "oil", calls[len(calls)-1].Search)
	assert.Equal(t, 1, calls[len(calls)-1].Page)
}

func TestSwitchingModules_KeepsLoadedState(t *testing.T) {
	loader := newFakeLoader()
	c := New(loader, zerolog.Nop())
	defer c.Close()

	c.OnPageChange("services", 3)
	waitState(t, c, "services")
	c.OnSortToggle("contacts", "name")
	waitState(t, c, "contacts")

	st := c.View("services")
	assert.Equal(t, Loaded, st.Status)
	assert.Equal(t, 3, st.Page)
	assert.Len(t, loader.Calls(), 2)
}

func TestLeave_DropsInFlightLoad(t *testing.T) {
	loader := newFakeLoader()
	release := loader.gate(1)
	c := New(loader, zerolog.Nop())
	defer c.Close()

	c.View("services")
	c.Leave()
	assert.Empty(t, c.Active())

	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Unloaded, c.State("services").Status)
}

type panickingLoader struct{}

func (panickingLoader) List(context.Context, string, query.UIState) models.PagedResult {
	panic("slice bounds out of range")
}

func TestLoaderPanicYieldsEmptyPage(t *testing.T) {
	c := New(panickingLoader{}, zerolog.Nop())
	defer c.Close()

	c.OnPageChange("services", 2)
	st := waitState(t, c, "services")
	assert.Equal(t, Loaded, st.Status)
	assert.Empty(t, st.List)
	assert.Equal(t, 2, st.Page)
}

func TestClose_StopsIssuingLoads(t *testing.T) {
	loader := newFakeLoader()
	c := New(loader, zerolog.Nop())
	c.Close()

	st := c.OnPageChange("services", 3)
	assert.Equal(t, 3, st.Page)
	assert.Equal(t, Unloaded, st.Status)
	c.View("services")
	assert.Empty(t, loader.Calls())
}

func TestWait_HonorsContext(t *testing.T) {
	loader := newFakeLoader()
	release := loader.gate(1)
	defer close(release)
	c := New(loader, zerolog.Nop())
	defer c.Close()

	c.View("services")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	st, err := c.Wait(ctx, "services")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Loading, st.Status)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "unloaded", Unloaded.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "loaded", Loaded.String())
}
