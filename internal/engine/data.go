// Package engine - Data Engine
// Applies search, filters, sorting and pagination to the rows of any module
// based on its field schema.
package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aethra/glow/internal/models"
	"github.com/rs/zerolog"
)

// RowSource supplies the full row set of a module.
type RowSource interface {
	Rows(ctx context.Context, moduleID string) ([]models.Row, error)
}

// QueryObserver is told about every evaluated query. matched is the row
// count after search and filters.
type QueryObserver interface {
	RecordQuery(module string, matched int, d time.Duration, err error)
}

// DataEngine answers list queries for rows held by a RowSource.
type DataEngine struct {
	schema   *SchemaEngine
	source   RowSource
	observer QueryObserver
	logger   zerolog.Logger
}

// DataOption configures a DataEngine.
type DataOption func(*DataEngine)

// WithObserver reports query outcomes to o.
func WithObserver(o QueryObserver) DataOption {
	return func(e *DataEngine) { e.observer = o }
}

// NewDataEngine creates a new data engine
func NewDataEngine(schema *SchemaEngine, source RowSource, logger zerolog.Logger, opts ...DataOption) *DataEngine {
	e := &DataEngine{
		schema: schema,
		source: source,
		logger: logger.With().Str("component", "data").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query returns one page of a module's rows.
func (e *DataEngine) Query(ctx context.Context, moduleID string, q models.Query) (result models.PagedResult, err error) {
	start := time.Now()
	if e.observer != nil {
		defer func() {
			e.observer.RecordQuery(moduleID, result.Meta.Total, time.Since(start), err)
		}()
	}

	m, err := e.schema.Module(moduleID)
	if err != nil {
		return models.PagedResult{}, err
	}
	rows, err := e.source.Rows(ctx, moduleID)
	if err != nil {
		return models.PagedResult{}, err
	}
	result = Evaluate(m, rows, q)
	e.logger.Debug().Str("module", moduleID).Int("page", result.Meta.Page).
		Int("total", result.Meta.Total).Msg("query")
	return result, nil
}

// Schema returns the registry the engine reads fields from.
func (e *DataEngine) Schema() *SchemaEngine {
	return e.schema
}

// Modules returns the schema with reference options resolved from the source.
// A module whose rows cannot be read yields empty options.
func (e *DataEngine) Modules(ctx context.Context) ([]models.Module, error) {
	modules := e.schema.Modules()
	cache := make(map[string][]models.Row)
	for _, m := range modules {
		for _, ref := range m.References() {
			if _, ok := cache[ref]; ok || !e.schema.Has(ref) {
				continue
			}
			rows, err := e.source.Rows(ctx, ref)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				e.logger.Warn().Err(err).Str("module", ref).Msg("reference rows unavailable")
			}
			cache[ref] = rows
		}
	}
	return ResolveModules(modules, func(id string) []models.Row { return cache[id] }), nil
}

// Local serves a DataEngine and a fixed user in the shape of a portal, so the
// dashboard can read local rows without an HTTP hop.
type Local struct {
	*DataEngine
	User models.User
}

// CurrentUser returns the configured user.
func (l Local) CurrentUser(ctx context.Context) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := l.User
	return &u, nil
}

// =============================================================================
// QUERY EVALUATION
// =============================================================================

// NormalizeQuery clamps page and limit to at least 1 and limit to
// models.MaxPageSize. A zero limit means the default page size.
func NormalizeQuery(q models.Query) models.Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = models.DefaultPageSize
	}
	if q.Limit < 1 {
		q.Limit = 1
	}
	if q.Limit > models.MaxPageSize {
		q.Limit = models.MaxPageSize
	}
	if q.SortOrder != models.SortDesc {
		q.SortOrder = models.SortAsc
	}
	return q
}

// Evaluate runs search, filters, sort and pagination over rows, in that order.
// meta.total counts the filtered rows before pagination.
func Evaluate(m *models.Module, rows []models.Row, q models.Query) models.PagedResult {
	q = NormalizeQuery(q)
	term := strings.ToLower(strings.TrimSpace(q.Search))

	filtered := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		if matchesSearch(m, row, term) && matchesFilters(m, row, q.Filters) {
			filtered = append(filtered, row)
		}
	}

	if f, ok := m.Field(q.SortBy); ok && f.Sortable {
		sortRows(filtered, f, q.SortOrder)
	}

	total := len(filtered)
	data := []models.Row{}
	if start, ok := pageStart(total, q.Page, q.Limit); ok {
		end := min(start+q.Limit, total)
		data = make([]models.Row, 0, end-start)
		for _, r := range filtered[start:end] {
			data = append(data, r.Clone())
		}
	}
	return models.PagedResult{
		Data: data,
		Meta: models.Meta{Total: total, Page: q.Page, Limit: q.Limit},
	}
}

// Paginate slices an unfiltered row list into a page. Used when a backend
// returns a bare array instead of a paged result.
func Paginate(rows []models.Row, page, limit int) models.PagedResult {
	q := NormalizeQuery(models.Query{Page: page, Limit: limit})
	total := len(rows)
	data := []models.Row{}
	if start, ok := pageStart(total, q.Page, q.Limit); ok {
		data = rows[start:min(start+q.Limit, total)]
	}
	return models.PagedResult{Data: data, Meta: models.Meta{Total: total, Page: q.Page, Limit: q.Limit}}
}

// pageStart returns the offset of page within total rows, or false when the
// page lies past the end. The bound is checked before multiplying so huge
// page numbers cannot overflow.
func pageStart(total, page, limit int) (int, bool) {
	if total == 0 || page-1 > (total-1)/limit {
		return 0, false
	}
	return (page - 1) * limit, true
}

func matchesSearch(m *models.Module, row models.Row, term string) bool {
	if term == "" {
		return true
	}
	for i := range m.Fields {
		f := &m.Fields[i]
		if !f.IsSearchable() {
			continue
		}
		v, ok := row[f.ID]
		if !ok || v == nil {
			continue
		}
		if strings.Contains(strings.ToLower(models.Stringify(v)), term) {
			return true
		}
	}
	return false
}

func matchesFilters(m *models.Module, row models.Row, filters map[string]string) bool {
	for key, raw := range filters {
		value := strings.TrimSpace(raw)
		if value == "" || strings.EqualFold(value, models.AllValue) {
			continue
		}
		f, ok := m.FilterField(key)
		if !ok {
			continue
		}
		if !matchesFilter(f, row[f.ID], value) {
			return false
		}
	}
	return true
}

func matchesFilter(f *models.FieldDescriptor, v any, value string) bool {
	switch f.Type {
	case models.FieldSelect, models.FieldReference:
		for _, member := range models.AsList(v) {
			if models.Stringify(member) == value {
				return true
			}
		}
		return false
	case models.FieldNumber:
		threshold, ok := models.AsFloat(value)
		if !ok {
			// Not a number: the filter does not apply.
			return true
		}
		n, ok := models.AsFloat(v)
		return ok && n >= threshold
	default:
		if v == nil {
			return false
		}
		return strings.Contains(strings.ToLower(models.Stringify(v)), strings.ToLower(value))
	}
}

func sortRows(rows []models.Row, f *models.FieldDescriptor, order models.SortOrder) {
	desc := order == models.SortDesc
	if f.Type.Numeric() {
		sort.SliceStable(rows, func(i, j int) bool {
			a, aok := models.AsFloat(rows[i][f.ID])
			b, bok := models.AsFloat(rows[j][f.ID])
			switch {
			case aok && bok:
				if desc {
					return a > b
				}
				return a < b
			case aok:
				// Non-numeric values always sort last.
				return true
			default:
				return false
			}
		})
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a := strings.ToLower(models.Stringify(rows[i][f.ID]))
		b := strings.ToLower(models.Stringify(rows[j][f.ID]))
		if desc {
			return a > b
		}
		return a < b
	})
}

// =============================================================================
// REFERENCE OPTIONS
// =============================================================================

// ResolveModules fills the options of reference fields from the referenced
// modules' rows. Missing targets leave options empty.
func ResolveModules(modules []models.Module, rowsFor func(id string) []models.Row) []models.Module {
	byID := make(map[string]*models.Module, len(modules))
	for i := range modules {
		byID[modules[i].ID] = &modules[i]
	}

	out := make([]models.Module, len(modules))
	for i, m := range modules {
		fields := make([]models.FieldDescriptor, len(m.Fields))
		copy(fields, m.Fields)
		for fi := range fields {
			f := &fields[fi]
			if f.Type != models.FieldReference {
				continue
			}
			ref, ok := byID[f.ReferencedModuleID]
			if !ok {
				f.Options = nil
				continue
			}
			f.Options = ReferenceOptions(ref, rowsFor(ref.ID))
		}
		m.Fields = fields
		out[i] = m
	}
	return out
}

// ReferenceOptions turns a module's rows into {value, label} pairs. The label
// comes from "name", then "registration", then the first non-id field.
func ReferenceOptions(ref *models.Module, rows []models.Row) []models.Option {
	labelKey := referenceLabelKey(ref)
	opts := make([]models.Option, 0, len(rows))
	for _, row := range rows {
		label := models.Stringify(row[labelKey])
		if labelKey == "" || row[labelKey] == nil {
			label = "Item " + row.ID()
		}
		opts = append(opts, models.Option{Value: row["id"], Label: label})
	}
	return opts
}

func referenceLabelKey(m *models.Module) string {
	for _, key := range []string{"name", "registration"} {
		if _, ok := m.Field(key); ok {
			return key
		}
	}
	for _, f := range m.Fields {
		if f.Type != models.FieldID {
			return f.ID
		}
	}
	return ""
}
