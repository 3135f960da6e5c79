// Package controller holds per-session list state and turns user actions into
// loads against a list source.
package controller

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aethra/glow/internal/models"
	"github.com/aethra/glow/internal/query"
	"github.com/aethra/glow/internal/ui"
	"github.com/rs/zerolog"
)

// DefaultSearchDebounce is the quiet period after the last keystroke before a
// search is issued.
const DefaultSearchDebounce = 350 * time.Millisecond

// Status is the load state of one module's list.
type Status int

const (
	Unloaded Status = iota
	Loading
	Loaded
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	}
	return "unloaded"
}

// Loader fetches one page of a module. The portal client is one; it never
// fails, falling back to local data instead.
type Loader interface {
	List(ctx context.Context, moduleID string, s query.UIState) models.PagedResult
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, moduleID string, s query.UIState) models.PagedResult

func (f LoaderFunc) List(ctx context.Context, moduleID string, s query.UIState) models.PagedResult {
	return f(ctx, moduleID, s)
}

// EntityViewState is the list state of one module. List is nil until the
// first load completes.
type EntityViewState struct {
	List        []models.Row
	Total       int
	Page        int
	Limit       int
	Search      string
	Filters     map[string]string
	SortBy      string
	SortOrder   models.SortOrder
	FiltersOpen bool
	Status      Status
	Seq         uint64
}

// UIState is the state as a query builder input.
func (s EntityViewState) UIState() query.UIState {
	return query.UIState{
		Page:      s.Page,
		Limit:     s.Limit,
		Search:    s.Search,
		Filters:   s.Filters,
		SortBy:    s.SortBy,
		SortOrder: string(s.SortOrder),
	}
}

// Meta is the pagination metadata of the last load.
func (s EntityViewState) Meta() models.Meta {
	return models.Meta{Total: s.Total, Page: s.Page, Limit: s.Limit}
}

func (s EntityViewState) clone() EntityViewState {
	out := s
	if s.Filters != nil {
		out.Filters = make(map[string]string, len(s.Filters))
		for k, v := range s.Filters {
			out.Filters[k] = v
		}
	}
	if s.List != nil {
		out.List = append([]models.Row(nil), s.List...)
	}
	return out
}

type entity struct {
	state    EntityViewState
	timer    *time.Timer
	cancel   context.CancelFunc
	inFlight bool
	idle     chan struct{} // closed when no load or debounce is pending
}

func (e *entity) busy() bool {
	return e.inFlight || e.timer != nil
}

// markBusy replaces a closed idle channel so new waiters block.
func (e *entity) markBusy() {
	select {
	case <-e.idle:
		e.idle = make(chan struct{})
	default:
	}
}

func (e *entity) markIdle() {
	if e.busy() {
		return
	}
	select {
	case <-e.idle:
	default:
		close(e.idle)
	}
}

// Listener is called after every completed load.
type Listener func(moduleID string, state EntityViewState)

// Controller owns the list state of every module for one session. State is
// guarded by a mutex; loads run outside it and are tagged with a sequence
// number so only the answer to the latest request is kept.
type Controller struct {
	loader   Loader
	limit    int
	debounce time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	entities map[string]*entity
	active   string // module the session is viewing
	navOrder []string
	listener Listener
	closed   bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize sets the limit of every load.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithDebounce sets the search debounce.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithListener registers a callback for completed loads.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listener = l }
}

// New creates a controller over loader.
func New(loader Loader, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		loader:   loader,
		limit:    models.DefaultPageSize,
		debounce: DefaultSearchDebounce,
		logger:   logger.With().Str("component", "controller").Logger(),
		entities: make(map[string]*entity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// entityLocked returns the module's entity, creating it on first use.
func (c *Controller) entityLocked(moduleID string) *entity {
	e, ok := c.entities[moduleID]
	if !ok {
		idle := make(chan struct{})
		close(idle)
		e = &entity{state: EntityViewState{Page: 1, Limit: c.limit, SortOrder: models.SortAsc}, idle: idle}
		c.entities[moduleID] = e
	}
	return e
}

// =============================================================================
// ACTIONS
// =============================================================================

// View opens a module. The first visit loads page 1 with no filters; later
// visits keep the current state and only reload if a load was torn down.
func (c *Controller) View(moduleID string) EntityViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focusLocked(moduleID)
	e := c.entityLocked(moduleID)
	if e.state.Status == Unloaded && !c.closed {
		c.issueLocked(moduleID, e)
	}
	return e.state.clone()
}

// Navigate replaces the whole list state, as when a page is opened from a
// link, and loads it.
func (c *Controller) Navigate(moduleID string, s query.UIState) EntityViewState {
	q := query.Builder{PageSize: c.limit}.Build(s)
	return c.update(moduleID, func(st *EntityViewState) {
		st.Page, st.Limit = q.Page, q.Limit
		st.Search = q.Search
		st.Filters = q.Filters
		st.SortBy, st.SortOrder = q.SortBy, q.SortOrder
		if st.SortOrder == "" {
			st.SortOrder = models.SortAsc
		}
	})
}

// OnFilterApply sets the filters and reloads page 1.
func (c *Controller) OnFilterApply(moduleID string, filters map[string]string) EntityViewState {
	q := query.Build(query.UIState{Filters: filters})
	return c.update(moduleID, func(st *EntityViewState) {
		st.Filters = q.Filters
		st.Page = 1
	})
}

// OnSortToggle sorts by fieldID, flipping the direction when it is already
// the sort column, and reloads page 1.
func (c *Controller) OnSortToggle(moduleID, fieldID string) EntityViewState {
	return c.update(moduleID, func(st *EntityViewState) {
		next := ui.NextSort(ui.SortState{SortBy: st.SortBy, SortOrder: st.SortOrder}, fieldID)
		st.SortBy, st.SortOrder = next.SortBy, next.SortOrder
		st.Page = 1
	})
}

// OnPageChange loads the requested page, clamped to at least 1.
func (c *Controller) OnPageChange(moduleID string, page int) EntityViewState {
	return c.update(moduleID, func(st *EntityViewState) {
		st.Page = max(page, 1)
	})
}

// OnFilterToggle opens or closes the filter panel. Closing it clears the
// filters and reloads page 1.
func (c *Controller) OnFilterToggle(moduleID string, open bool) EntityViewState {
	c.mu.Lock()
	c.focusLocked(moduleID)
	e := c.entityLocked(moduleID)
	e.state.FiltersOpen = open
	if open || c.closed {
		st := e.state.clone()
		c.mu.Unlock()
		return st
	}
	c.mu.Unlock()

	return c.update(moduleID, func(st *EntityViewState) {
		st.Filters = nil
		st.Page = 1
	})
}

// OnSearchChange records the search term and issues the search once no
// further change arrives within the debounce period. Each call restarts the
// period.
func (c *Controller) OnSearchChange(moduleID, term string) EntityViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focusLocked(moduleID)
	e := c.entityLocked(moduleID)
	e.state.Search = term
	if c.closed {
		return e.state.clone()
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	e.markBusy()
	var t *time.Timer
	t = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e.timer != t || c.closed {
			return
		}
		e.timer = nil
		e.state.Search = strings.TrimSpace(e.state.Search)
		e.state.Page = 1
		c.issueLocked(moduleID, e)
	})
	e.timer = t
	return e.state.clone()
}

func (c *Controller) update(moduleID string, mutate func(*EntityViewState)) EntityViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focusLocked(moduleID)
	e := c.entityLocked(moduleID)
	mutate(&e.state)
	if !c.closed {
		c.issueLocked(moduleID, e)
	}
	return e.state.clone()
}

// focusLocked makes moduleID the active module. The module being left has
// its debounce timer and in-flight load torn down.
func (c *Controller) focusLocked(moduleID string) {
	if c.active == moduleID {
		return
	}
	if prev, ok := c.entities[c.active]; ok {
		c.teardownLocked(prev)
	}
	c.active = moduleID
}

// Leave tears down the active module, as when the session opens a page that
// is not an entity list.
func (c *Controller) Leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focusLocked("")
}

// Active returns the module the session is viewing, or "" when none.
func (c *Controller) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// issueLocked starts a load for the entity's current state. Any earlier load
// is cancelled and its answer will be discarded.
func (c *Controller) issueLocked(moduleID string, e *entity) {
	if e.cancel != nil {
		e.cancel()
	}
	e.state.Seq++
	e.state.Status = Loading
	e.inFlight = true
	e.markBusy()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	seq := e.state.Seq
	s := e.state.UIState()

	go c.load(ctx, moduleID, e, seq, s)
}

func (c *Controller) load(ctx context.Context, moduleID string, e *entity, seq uint64, s query.UIState) {
	res := c.list(ctx, moduleID, s)

	c.mu.Lock()
	if e.state.Seq != seq || ctx.Err() != nil {
		c.mu.Unlock()
		c.logger.Debug().Str("module", moduleID).Uint64("seq", seq).Msg("discarding stale response")
		return
	}
	e.cancel()
	e.cancel = nil
	e.inFlight = false
	e.state.List = res.Data
	if e.state.List == nil {
		e.state.List = []models.Row{}
	}
	e.state.Total = res.Meta.Total
	e.state.Page = max(res.Meta.Page, 1)
	e.state.Status = Loaded
	e.markIdle()
	st := e.state.clone()
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener(moduleID, st)
	}
}

// list calls the loader. A panicking loader yields an empty page instead of
// taking the process down with the load goroutine.
func (c *Controller) list(ctx context.Context, moduleID string, s query.UIState) (res models.PagedResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("module", moduleID).Interface("panic", r).Msg("list load panicked")
			res = models.PagedResult{Data: []models.Row{}, Meta: models.Meta{Page: s.Page, Limit: s.Limit}}
		}
	}()
	return c.loader.List(ctx, moduleID, s)
}

// =============================================================================
// STATE & LIFECYCLE
// =============================================================================

// State returns a copy of a module's state.
func (c *Controller) State(moduleID string) EntityViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entityLocked(moduleID).state.clone()
}

// Wait blocks until the module has no pending debounce or load, then returns
// its state.
func (c *Controller) Wait(ctx context.Context, moduleID string) (EntityViewState, error) {
	for {
		c.mu.Lock()
		e := c.entityLocked(moduleID)
		if !e.busy() {
			st := e.state.clone()
			c.mu.Unlock()
			return st, nil
		}
		idle := e.idle
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return c.State(moduleID), ctx.Err()
		case <-idle:
		}
	}
}

// Teardown stops a module's debounce timer and in-flight load. A module left
// mid-load or with a pending search reloads on its next View.
func (c *Controller) Teardown(moduleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entities[moduleID]; ok {
		c.teardownLocked(e)
	}
}

func (c *Controller) teardownLocked(e *entity) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
		// The recorded term was never searched.
		e.state.Search = strings.TrimSpace(e.state.Search)
		e.state.Page = 1
		e.state.Status = Unloaded
		e.state.List = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	// Bump the sequence so a load that is already returning is dropped.
	e.state.Seq++
	e.inFlight = false
	if e.state.Status == Loading {
		e.state.Status = Unloaded
		e.state.List = nil
	}
	e.markIdle()
}

// Close tears down every module. Later actions only record state.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, e := range c.entities {
		c.teardownLocked(e)
	}
}
