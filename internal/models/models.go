// Package models contains the core Glow data structures.
// A Module and its FieldDescriptors are the configuration that drives every
// list, filter panel and generated row in the dashboard.
package models

import (
	"strings"
)

// =============================================================================
// SCHEMA MODELS
// =============================================================================

// FieldType is the closed set of field kinds the engine and renderer switch on.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldNumber    FieldType = "number"
	FieldSelect    FieldType = "select"
	FieldID        FieldType = "id"
	FieldReference FieldType = "reference"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldSelect, FieldID, FieldReference:
		return true
	}
	return false
}

// Numeric reports whether values of this type compare as numbers.
func (t FieldType) Numeric() bool {
	return t == FieldNumber || t == FieldID
}

// Format hints how a value is generated and displayed.
type Format string

const (
	FormatNone     Format = ""
	FormatPhone    Format = "phone"
	FormatEmail    Format = "email"
	FormatCurrency Format = "currency"
	FormatNumber   Format = "number"
	FormatPercent  Format = "percent"
)

// DefaultPageSize is the page size used when a query does not set one.
const DefaultPageSize = 25

// MaxPageSize caps the limit of a single query.
const MaxPageSize = 500

// AllValue is the filter sentinel meaning "no filter".
const AllValue = "all"

// Module is a named entity type with its own field schema and row set.
type Module struct {
	ID     string            `json:"id" yaml:"id"`
	Label  string            `json:"label" yaml:"label"`
	Fields []FieldDescriptor `json:"fields" yaml:"fields"`

	// Rows is the number of rows generated for this module (0 = default).
	Rows int `json:"-" yaml:"rows,omitempty"`
	// Seed rows replace generated rows when present.
	Seed []Row `json:"-" yaml:"seed,omitempty"`
}

// Field returns the descriptor with the given id.
func (m *Module) Field(id string) (*FieldDescriptor, bool) {
	for i := range m.Fields {
		if m.Fields[i].ID == id {
			return &m.Fields[i], true
		}
	}
	return nil, false
}

// FilterField resolves a filter key to a field. Besides field ids, the id of
// the module a reference field points at is accepted.
func (m *Module) FilterField(key string) (*FieldDescriptor, bool) {
	if f, ok := m.Field(key); ok {
		return f, true
	}
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Type == FieldReference && f.ReferencedModuleID == key {
			return f, true
		}
	}
	return nil, false
}

// ListFields returns the fields shown as table columns, in schema order.
func (m *Module) ListFields() []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(m.Fields))
	for _, f := range m.Fields {
		if !f.HideInList {
			out = append(out, f)
		}
	}
	return out
}

// FilterFields returns the fields offered in the filter panel.
func (m *Module) FilterFields() []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(m.Fields))
	for _, f := range m.Fields {
		if !f.HideInFilter {
			out = append(out, f)
		}
	}
	return out
}

// References returns the ids of modules this module's reference fields point at.
func (m *Module) References() []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range m.Fields {
		if f.Type == FieldReference && f.ReferencedModuleID != "" && !seen[f.ReferencedModuleID] {
			seen[f.ReferencedModuleID] = true
			out = append(out, f.ReferencedModuleID)
		}
	}
	return out
}

// FieldDescriptor describes one column's type, display, and filter/sort behavior.
type FieldDescriptor struct {
	ID                 string            `json:"id" yaml:"id"`
	Label              string            `json:"label" yaml:"label"`
	Type               FieldType         `json:"type" yaml:"type"`
	Options            []Option          `json:"options,omitempty" yaml:"options,omitempty"`
	Placeholder        string            `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Width              string            `json:"width,omitempty" yaml:"width,omitempty"`
	Sortable           bool              `json:"sortable,omitempty" yaml:"sortable,omitempty"`
	Searchable         *bool             `json:"searchable,omitempty" yaml:"searchable,omitempty"`
	HideInList         bool              `json:"hideInList,omitempty" yaml:"hideInList,omitempty"`
	HideInFilter       bool              `json:"hideInFilter,omitempty" yaml:"hideInFilter,omitempty"`
	Multi              bool              `json:"multi,omitempty" yaml:"multi,omitempty"`
	ReferencedModuleID string            `json:"referencedModuleId,omitempty" yaml:"referencedModuleId,omitempty"`
	Format             Format            `json:"format,omitempty" yaml:"format,omitempty"`
	CurrencyCode       string            `json:"currencyCode,omitempty" yaml:"currencyCode,omitempty"`
	ChipByValue        bool              `json:"chipByValue,omitempty" yaml:"chipByValue,omitempty"`
	ChipPalette        map[string]string `json:"chipPalette,omitempty" yaml:"chipPalette,omitempty"`
}

// IsSearchable reports whether free-text search looks at this field (default true).
func (f *FieldDescriptor) IsSearchable() bool {
	return f.Searchable == nil || *f.Searchable
}

// DisplayLabel returns the label, falling back to the id.
func (f *FieldDescriptor) DisplayLabel() string {
	if strings.TrimSpace(f.Label) != "" {
		return f.Label
	}
	return f.ID
}

// Choice reports whether the field's values come from a fixed option list.
func (f *FieldDescriptor) Choice() bool {
	return f.Type == FieldSelect || f.Type == FieldReference
}

// Option finds the option whose value matches v.
func (f *FieldDescriptor) Option(v any) (Option, bool) {
	key := Stringify(v)
	for _, o := range f.Options {
		if Stringify(o.Value) == key {
			return o, true
		}
	}
	return Option{}, false
}

// =============================================================================
// QUERY MODELS
// =============================================================================

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder normalizes any input to asc or desc.
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(s), string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

// Toggle returns the opposite direction.
func (o SortOrder) Toggle() SortOrder {
	if o == SortAsc {
		return SortDesc
	}
	return SortAsc
}

// Query is a normalized request for a page of rows.
type Query struct {
	Page      int               `json:"page"`
	Limit     int               `json:"limit"`
	Search    string            `json:"search,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
	SortBy    string            `json:"sortBy,omitempty"`
	SortOrder SortOrder         `json:"sortOrder,omitempty"`
}

// Meta carries the total-count metadata of a page.
type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// PagedResult is a page of rows plus total-count metadata.
type PagedResult struct {
	Data []Row `json:"data"`
	Meta Meta  `json:"meta"`
}

// EmptyResult returns a result with no rows and total 0.
func EmptyResult(page, limit int) PagedResult {
	return PagedResult{Data: []Row{}, Meta: Meta{Total: 0, Page: page, Limit: limit}}
}

// TotalPages returns the page count for the result, never less than 1.
func (m Meta) TotalPages() int {
	if m.Limit < 1 || m.Total <= 0 {
		return 1
	}
	return (m.Total + m.Limit - 1) / m.Limit
}

// =============================================================================
// SESSION MODELS
// =============================================================================

// User is the signed-in user shown in the profile panel.
type User struct {
	ID       int    `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Role     string `json:"role" yaml:"role"`
	Email    string `json:"email" yaml:"email"`
	Initials string `json:"initials" yaml:"initials"`
}

// Theme modes and accents a user may choose.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"

	AccentAmber = "amber"
	AccentBlue  = "blue"
	AccentGreen = "green"
)

var (
	ThemeModes = []string{ThemeLight, ThemeDark, ThemeSystem}
	Accents    = []string{AccentAmber, AccentBlue, AccentGreen}
)

// Preferences are the appearance settings kept in the session cookie.
type Preferences struct {
	Theme  string `json:"theme"`
	Accent string `json:"accent"`
}

// DefaultPreferences follows the system theme with the amber accent.
func DefaultPreferences() Preferences {
	return Preferences{Theme: ThemeSystem, Accent: AccentAmber}
}

// Normalize replaces unknown values with the defaults.
func (p Preferences) Normalize() Preferences {
	d := DefaultPreferences()
	if !contains(ThemeModes, p.Theme) {
		p.Theme = d.Theme
	}
	if !contains(Accents, p.Accent) {
		p.Accent = d.Accent
	}
	return p
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// DashboardSection places a module's first rows on the dashboard.
type DashboardSection struct {
	ID       string `json:"id" yaml:"id"`
	Label    string `json:"label" yaml:"label"`
	ModuleID string `json:"moduleId" yaml:"moduleId"`
}
