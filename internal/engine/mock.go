// Package engine - Mock Data Engine
// Generates deterministic rows for every module from its fields and answers
// list queries against them.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	glowerrors "github.com/aethra/glow/internal/errors"
	"github.com/aethra/glow/internal/models"
	"github.com/rs/zerolog"
)

// DefaultRowCount is the number of rows generated for a module that does not
// set its own count.
const DefaultRowCount = 10

// Name pools for generated text. Row i takes firstNames[i%n] and lastNames[i%n].
var (
	firstNames = []string{"Anita", "Kavya", "Divya", "Shruti", "Rekha", "Priya", "Anjali", "Kavitha", "Deepa", "Lakshmi", "Meera", "Sneha", "Riya", "Neha", "Pooja"}
	lastNames  = []string{"Sharma", "Reddy", "Nair", "Patel", "Kumar", "Iyer", "Pillai", "Menon", "Rao", "Singh", "Gupta", "Mehta", "Joshi", "Desai", "Narayan"}
)

// MockEngine holds generated rows for every module in the schema.
type MockEngine struct {
	schema   *SchemaEngine
	user     models.User
	delay    time.Duration
	rowCount int
	logger   zerolog.Logger

	mu    sync.RWMutex
	built map[string][]models.Row
}

// MockOption configures a MockEngine.
type MockOption func(*MockEngine)

// WithDelay simulates backend latency on every query and row read.
func WithDelay(d time.Duration) MockOption {
	return func(e *MockEngine) { e.delay = d }
}

// WithRowCount overrides DefaultRowCount.
func WithRowCount(n int) MockOption {
	return func(e *MockEngine) {
		if n > 0 {
			e.rowCount = n
		}
	}
}

// WithUser sets the user returned by CurrentUser.
func WithUser(u models.User) MockOption {
	return func(e *MockEngine) { e.user = u }
}

// NewMockEngine builds rows for every module. It fails when the schema has
// no valid build order.
func NewMockEngine(schema *SchemaEngine, logger zerolog.Logger, opts ...MockOption) (*MockEngine, error) {
	e := &MockEngine{
		schema:   schema,
		user:     DefaultUser(),
		rowCount: DefaultRowCount,
		logger:   logger.With().Str("component", "mock").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Build(); err != nil {
		return nil, err
	}
	schema.OnChange(func([]models.Module) {
		if err := e.Build(); err != nil {
			e.logger.Error().Err(err).Msg("rebuild after schema change failed")
		}
	})
	return e, nil
}

// =============================================================================
// GENERATION
// =============================================================================

// Build regenerates all modules in dependency order.
func (e *MockEngine) Build() error {
	built, err := BuildAll(e.schema.Modules(), e.rowCount)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.built = built
	e.mu.Unlock()

	total := 0
	for _, rows := range built {
		total += len(rows)
	}
	e.logger.Debug().Int("modules", len(built)).Int("rows", total).Msg("mock data built")
	return nil
}

// BuildAll generates rows for every module. Seed rows are used as-is;
// other modules get Rows (or defaultCount) generated rows.
func BuildAll(modules []models.Module, defaultCount int) (map[string][]models.Row, error) {
	order, err := BuildOrder(modules)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Module, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
	}

	built := make(map[string][]models.Row, len(modules))
	for _, id := range order {
		m := byID[id]
		if len(m.Seed) > 0 {
			built[id] = seedRows(m.Seed)
			continue
		}
		count := m.Rows
		if count == 0 {
			count = defaultCount
		}
		rows, err := Generate(&m, count, built)
		if err != nil {
			return nil, err
		}
		built[id] = rows
	}
	return built, nil
}

// Generate synthesizes count rows for module m. Values depend only on the row
// index, the field and the rows already built for referenced modules, so equal
// inputs always produce equal rows.
func (e *MockEngine) Generate(moduleID string, count int, alreadyBuilt map[string][]models.Row) ([]models.Row, error) {
	m, err := e.schema.Module(moduleID)
	if err != nil {
		return nil, err
	}
	return Generate(m, count, alreadyBuilt)
}

// Generate is the schema-independent form of MockEngine.Generate.
func Generate(m *models.Module, count int, alreadyBuilt map[string][]models.Row) ([]models.Row, error) {
	if count < 0 {
		return nil, glowerrors.NewValidationError("count", "row count must not be negative")
	}
	for _, ref := range m.References() {
		if ref == m.ID {
			return nil, glowerrors.NewConfigError(fmt.Sprintf("module '%s' references itself", m.ID), m.ID)
		}
	}

	rows := make([]models.Row, count)
	for i := 0; i < count; i++ {
		row := models.Row{"id": i + 1}
		for fi := range m.Fields {
			f := &m.Fields[fi]
			row[f.ID] = cellValue(f, i, alreadyBuilt)
		}
		rows[i] = row
	}
	return rows, nil
}

func cellValue(f *models.FieldDescriptor, i int, built map[string][]models.Row) any {
	switch f.Type {
	case models.FieldID:
		return i + 1
	case models.FieldReference:
		return referenceValue(f, i, built[f.ReferencedModuleID])
	case models.FieldSelect:
		if len(f.Options) > 0 {
			return f.Options[i%len(f.Options)].Value
		}
	case models.FieldNumber:
		return 100 + i%4000
	case models.FieldText:
		if n := len(f.Options); n > 1 {
			return models.Stringify(f.Options[i%n].Value) + ", " + models.Stringify(f.Options[(i+2)%n].Value)
		}
		switch f.Format {
		case models.FormatPhone:
			return phone(i)
		case models.FormatEmail:
			return email(i)
		}
		return firstNames[i%len(firstNames)] + " " + lastNames[i%len(lastNames)]
	}
	return "Value " + strconv.Itoa(i)
}

// referenceValue picks ids cyclically from the referenced module's rows. Multi
// fields take 1 to 3 consecutive distinct ids.
func referenceValue(f *models.FieldDescriptor, i int, ref []models.Row) any {
	if len(ref) == 0 {
		return nil
	}
	if !f.Multi {
		return ref[i%len(ref)]["id"]
	}
	n := 1 + i%min(3, len(ref))
	ids := make([]any, 0, n)
	seen := make(map[string]bool, n)
	for k := 0; k < n; k++ {
		id := ref[(i+k)%len(ref)]["id"]
		key := models.Stringify(id)
		if id == nil || seen[key] {
			continue
		}
		seen[key] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []any{ref[0]["id"]}
	}
	return ids
}

func phone(i int) string {
	digits := strconv.Itoa(9000000000 + i%999999999)
	return "+91 " + digits[:5] + " " + digits[5:]
}

func email(i int) string {
	a := strings.ToLower(firstNames[i%len(firstNames)])
	b := strings.ToLower(lastNames[i%len(lastNames)])
	return a + "." + b + "@example.com"
}

func seedRows(seed []models.Row) []models.Row {
	out := make([]models.Row, len(seed))
	for i, r := range seed {
		row := r.Clone()
		if _, ok := row["id"]; !ok {
			row["id"] = i + 1
		}
		out[i] = row
	}
	return out
}

// =============================================================================
// QUERIES
// =============================================================================

// Rows returns the generated rows of a module after the simulated latency.
func (e *MockEngine) Rows(ctx context.Context, moduleID string) ([]models.Row, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	return e.rows(moduleID)
}

func (e *MockEngine) rows(moduleID string) ([]models.Row, error) {
	if !e.schema.Has(moduleID) {
		return nil, glowerrors.NewNotFoundError(fmt.Sprintf("module '%s'", moduleID))
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.built[moduleID], nil
}

// Query answers a list query against generated rows.
func (e *MockEngine) Query(ctx context.Context, moduleID string, q models.Query) (models.PagedResult, error) {
	if err := e.wait(ctx); err != nil {
		return models.PagedResult{}, err
	}
	m, err := e.schema.Module(moduleID)
	if err != nil {
		return models.PagedResult{}, err
	}
	rows, err := e.rows(moduleID)
	if err != nil {
		return models.PagedResult{}, err
	}
	return Evaluate(m, rows, q), nil
}

// Modules returns the schema with reference options resolved from generated rows.
func (e *MockEngine) Modules(ctx context.Context) ([]models.Module, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ResolveModules(e.schema.Modules(), func(id string) []models.Row { return e.built[id] }), nil
}

// CurrentUser returns the configured user.
func (e *MockEngine) CurrentUser(ctx context.Context) (*models.User, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	u := e.user
	return &u, nil
}

func (e *MockEngine) wait(ctx context.Context) error {
	if e.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
