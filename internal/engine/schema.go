// Package engine contains the core Glow entity-list engine.
// It reads the module schema and derives generated rows, reference options
// and query results from it; nothing here is specific to a single module.
package engine

import (
	"fmt"
	"os"
	"strings"
	"sync"

	glowerrors "github.com/aethra/glow/internal/errors"
	"github.com/aethra/glow/internal/models"
	"github.com/aethra/glow/internal/security"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// SchemaEngine is the module registry. Modules are replaced as a whole, so
// readers always see one consistent schema.
type SchemaEngine struct {
	mu       sync.RWMutex
	modules  []models.Module
	index    map[string]int
	logger   zerolog.Logger
	onChange []func([]models.Module)
}

// NewSchemaEngine validates modules and creates a registry holding them.
func NewSchemaEngine(modules []models.Module, logger zerolog.Logger) (*SchemaEngine, error) {
	e := &SchemaEngine{logger: logger.With().Str("component", "schema").Logger()}
	if err := e.Replace(modules); err != nil {
		return nil, err
	}
	return e, nil
}

// =============================================================================
// SCHEMA RETRIEVAL
// =============================================================================

// Modules returns a copy of all modules in registry order.
func (e *SchemaEngine) Modules() []models.Module {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Module, len(e.modules))
	copy(out, e.modules)
	return out
}

// Module returns the module with the given id.
func (e *SchemaEngine) Module(id string) (*models.Module, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	i, ok := e.index[id]
	if !ok {
		return nil, glowerrors.NewNotFoundError(fmt.Sprintf("module '%s'", id))
	}
	m := e.modules[i]
	return &m, nil
}

// Has reports whether a module id is registered.
func (e *SchemaEngine) Has(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.index[id]
	return ok
}

// BuildOrder returns module ids so that every module comes after the modules
// its reference fields point at. Ties keep registry order. References to
// unknown modules do not constrain the order. A cycle is a ConfigError.
func (e *SchemaEngine) BuildOrder() ([]string, error) {
	return BuildOrder(e.Modules())
}

// BuildOrder computes a dependency order for modules.
func BuildOrder(modules []models.Module) ([]string, error) {
	known := make(map[string]bool, len(modules))
	for _, m := range modules {
		known[m.ID] = true
	}

	order := make([]string, 0, len(modules))
	added := make(map[string]bool, len(modules))
	depsSatisfied := func(m models.Module) bool {
		for _, ref := range m.References() {
			if known[ref] && !added[ref] {
				return false
			}
		}
		return true
	}

	for len(order) < len(modules) {
		progress := false
		for _, m := range modules {
			if !added[m.ID] && depsSatisfied(m) {
				order = append(order, m.ID)
				added[m.ID] = true
				progress = true
			}
		}
		if !progress {
			var stuck []string
			for _, m := range modules {
				if !added[m.ID] {
					stuck = append(stuck, m.ID)
				}
			}
			return nil, glowerrors.NewConfigError(
				fmt.Sprintf("cyclic module references between: %s", strings.Join(stuck, ", ")), stuck...)
		}
	}
	return order, nil
}

// =============================================================================
// SCHEMA UPDATES
// =============================================================================

// Replace validates and installs a new module set, then notifies listeners.
// Cyclic references are rejected. On error the current schema is kept.
func (e *SchemaEngine) Replace(modules []models.Module) error {
	normalized, err := normalizeModules(modules)
	if err != nil {
		return err
	}
	if _, err := BuildOrder(normalized); err != nil {
		return err
	}

	index := make(map[string]int, len(normalized))
	for i, m := range normalized {
		index[m.ID] = i
	}
	for _, m := range normalized {
		for _, ref := range m.References() {
			if _, ok := index[ref]; !ok {
				e.logger.Warn().Str("module", m.ID).Str("references", ref).
					Msg("reference to unknown module, options will be empty")
			}
		}
	}

	e.mu.Lock()
	e.modules = normalized
	e.index = index
	listeners := append([]func([]models.Module){}, e.onChange...)
	e.mu.Unlock()

	e.logger.Info().Int("modules", len(normalized)).Msg("schema loaded")
	for _, fn := range listeners {
		fn(normalized)
	}
	return nil
}

// OnChange registers a callback invoked after every successful Replace.
func (e *SchemaEngine) OnChange(fn func([]models.Module)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = append(e.onChange, fn)
}

// =============================================================================
// LOADING & VALIDATION
// =============================================================================

// schemaFile is the on-disk layout of a modules file.
type schemaFile struct {
	Modules []models.Module `yaml:"modules"`
}

// LoadModulesFile reads modules from a YAML file.
func LoadModulesFile(path string) ([]models.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modules file: %w", err)
	}
	return ParseModules(data)
}

// ParseModules decodes a YAML modules document.
func ParseModules(data []byte) ([]models.Module, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse modules: %w", err)
	}
	if len(f.Modules) == 0 {
		return nil, glowerrors.NewValidationError("modules", "modules file defines no modules")
	}
	return f.Modules, nil
}

func normalizeModules(modules []models.Module) ([]models.Module, error) {
	out := make([]models.Module, 0, len(modules))
	seen := make(map[string]bool, len(modules))

	for _, m := range modules {
		if err := security.ValidateIdentifier(m.ID); err != nil {
			return nil, glowerrors.NewValidationError("id", fmt.Sprintf("module: %v", err))
		}
		if seen[m.ID] {
			return nil, glowerrors.NewValidationError("id", fmt.Sprintf("duplicate module id '%s'", m.ID))
		}
		seen[m.ID] = true
		if m.Label == "" {
			m.Label = m.ID
		}
		if m.Rows < 0 {
			return nil, glowerrors.NewValidationError("rows", fmt.Sprintf("module '%s': rows must not be negative", m.ID))
		}

		fields := make([]models.FieldDescriptor, 0, len(m.Fields))
		fieldSeen := make(map[string]bool, len(m.Fields))
		for _, f := range m.Fields {
			nf, err := normalizeField(m.ID, f)
			if err != nil {
				return nil, err
			}
			if fieldSeen[nf.ID] {
				return nil, glowerrors.NewValidationError(nf.ID, fmt.Sprintf("module '%s': duplicate field id '%s'", m.ID, nf.ID))
			}
			fieldSeen[nf.ID] = true
			fields = append(fields, nf)
		}
		m.Fields = fields
		out = append(out, m)
	}
	return out, nil
}

func normalizeField(moduleID string, f models.FieldDescriptor) (models.FieldDescriptor, error) {
	if err := security.ValidateFieldID(f.ID); err != nil {
		return f, glowerrors.NewValidationError(f.ID, fmt.Sprintf("module '%s': field: %v", moduleID, err))
	}
	if f.Type == "" {
		f.Type = models.FieldText
	}
	if f.ID == "id" {
		f.Type = models.FieldID
	}
	if !f.Type.Valid() {
		return f, glowerrors.NewValidationError(f.ID, fmt.Sprintf("module '%s': field '%s' has unknown type '%s'", moduleID, f.ID, f.Type))
	}
	if f.Type == models.FieldReference && f.ReferencedModuleID == "" {
		return f, glowerrors.NewValidationError(f.ID, fmt.Sprintf("module '%s': reference field '%s' needs referencedModuleId", moduleID, f.ID))
	}
	f.Format = models.Format(strings.ToLower(string(f.Format)))

	// The "all" sentinel is a filter concept, not a value.
	opts := make([]models.Option, 0, len(f.Options))
	for _, o := range f.Options {
		if strings.EqualFold(models.Stringify(o.Value), models.AllValue) {
			continue
		}
		if o.ChipClass == "" && f.ChipPalette != nil {
			o.ChipClass = f.ChipPalette[models.Stringify(o.Value)]
		}
		opts = append(opts, o)
	}
	if len(f.Options) > 0 {
		f.Options = opts
	}
	return f, nil
}
