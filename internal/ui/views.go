package ui

import (
	"net/url"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aethra/glow/internal/models"
	"github.com/aethra/glow/internal/query"
)

// ===== FILTER PANEL =====

// FilterOption is one entry of a filter select.
type FilterOption struct {
	Value    string
	Label    string
	Selected bool
}

// FilterControl is one labelled input of the filter panel.
type FilterControl struct {
	Key         string
	Label       string
	Kind        string // "select", "number" or "text"
	Placeholder string
	Value       string
	Options     []FilterOption
}

// FilterPanel is the filter sidebar of a module.
type FilterPanel struct {
	ModuleID string
	Open     bool
	Controls []FilterControl
}

// BuildFilterPanel creates one control per filterable field. Choice fields
// get a select whose first entry is "All".
func BuildFilterPanel(m *models.Module, filters map[string]string, open bool) FilterPanel {
	fields := m.FilterFields()
	p := FilterPanel{ModuleID: m.ID, Open: open, Controls: make([]FilterControl, 0, len(fields))}
	for i := range fields {
		f := &fields[i]
		value := strings.TrimSpace(filters[f.ID])
		c := FilterControl{Key: f.ID, Label: f.DisplayLabel(), Value: value}

		switch {
		case f.Choice():
			c.Kind = "select"
			none := value == "" || strings.EqualFold(value, models.AllValue)
			c.Options = append(c.Options, FilterOption{Value: models.AllValue, Label: "All", Selected: none})
			for _, o := range f.Options {
				v := models.Stringify(o.Value)
				c.Options = append(c.Options, FilterOption{Value: v, Label: o.Label, Selected: !none && v == value})
			}
		case f.Type == models.FieldNumber:
			c.Kind = "number"
		default:
			c.Kind = "text"
		}
		if c.Kind != "select" {
			c.Placeholder = f.Placeholder
			if c.Placeholder == "" {
				c.Placeholder = "Filter..."
			}
		}
		p.Controls = append(p.Controls, c)
	}
	return p
}

// ===== NAVIGATION =====

// NavItem is a link to a module.
type NavItem struct {
	ID     string
	Label  string
	Href   string
	Active bool
}

// Nav is the topbar: primary items plus an overflow "More" menu.
type Nav struct {
	Primary    []NavItem
	Overflow   []NavItem
	MoreActive bool
}

// BuildNav splits modules into primary and overflow items. Both keep module
// order; primaryIDs only decides membership.
func BuildNav(modules []models.Module, primaryIDs []string, active string) Nav {
	primary := make(map[string]bool, len(primaryIDs))
	for _, id := range primaryIDs {
		primary[id] = true
	}

	var nav Nav
	for _, m := range modules {
		item := NavItem{ID: m.ID, Label: m.Label, Href: ModuleURL(m.ID, nil), Active: m.ID == active}
		if primary[m.ID] {
			nav.Primary = append(nav.Primary, item)
			continue
		}
		item.Href = ModuleURL(m.ID, url.Values{"promote": {"1"}})
		nav.Overflow = append(nav.Overflow, item)
		if item.Active {
			nav.MoreActive = true
		}
	}
	return nav
}

// ===== PROFILE & THEME =====

// Profile is the signed-in user panel.
type Profile struct {
	Initial  string
	Name     string
	Role     string
	Email    string
	Subtitle string
}

// BuildProfile fills the panel from a user. The avatar letter comes from the
// initials, then the name, then "U".
func BuildProfile(u *models.User) Profile {
	if u == nil {
		return Profile{Initial: "U"}
	}
	p := Profile{Initial: "U", Name: u.Name, Role: u.Role, Email: u.Email}
	for _, s := range []string{u.Initials, u.Name} {
		if r, _ := utf8.DecodeRuneInString(strings.TrimSpace(s)); r != utf8.RuneError {
			p.Initial = string(unicode.ToUpper(r))
			break
		}
	}
	if u.Name != "" {
		p.Subtitle = "Signed in as " + u.Name
	}
	return p
}

// ThemeChoice is one selectable theme mode or accent.
type ThemeChoice struct {
	Value  string
	Label  string
	Active bool
}

// ThemeView drives the data-theme and data-accent attributes and the
// switchers in the profile panel.
type ThemeView struct {
	Mode      string
	Effective string
	Accent    string
	Modes     []ThemeChoice
	Accents   []ThemeChoice
}

// BuildTheme describes the preference switchers. effective is the resolved
// light or dark theme.
func BuildTheme(p models.Preferences, effective string) ThemeView {
	p = p.Normalize()
	v := ThemeView{Mode: p.Theme, Effective: effective, Accent: p.Accent}
	for _, m := range models.ThemeModes {
		v.Modes = append(v.Modes, ThemeChoice{Value: m, Label: title(m), Active: m == p.Theme})
	}
	for _, a := range models.Accents {
		v.Accents = append(v.Accents, ThemeChoice{Value: a, Label: title(a), Active: a == p.Accent})
	}
	return v
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ===== DASHBOARD =====

// DashboardPanel is one loaded dashboard section.
type DashboardPanel struct {
	ID    string
	Label string
	Href  string
	Table Table
}

// SectionData is a section with the module and rows loaded for it. A nil
// Module renders an empty section.
type SectionData struct {
	Section models.DashboardSection
	Module  *models.Module
	Rows    []models.Row
}

// BuildDashboard renders each section as an unsorted table.
func BuildDashboard(sections []SectionData) []DashboardPanel {
	out := make([]DashboardPanel, 0, len(sections))
	for _, s := range sections {
		m := s.Module
		if m == nil {
			m = &models.Module{ID: s.Section.ModuleID}
		}
		out = append(out, DashboardPanel{
			ID:    s.Section.ID,
			Label: s.Section.Label,
			Href:  ModuleURL(s.Section.ModuleID, nil),
			Table: BuildTable(m, s.Rows, SortState{}, DashboardEmptyMessage),
		})
	}
	return out
}

// ===== MODULE VIEW =====

// Param is a hidden form field that carries list state across a form submit.
type Param struct {
	Key   string
	Value string
}

// ModuleView is a full entity-module screen.
type ModuleView struct {
	ID         string
	Label      string
	Search     string
	Loading    bool
	Filters    FilterPanel
	Table      Table
	Pagination Pagination
	ClearHref  string

	SearchCarry []Param // filters and sort kept by the search form
	FilterCarry []Param // search and sort kept by the filter form
}

// BuildModuleView assembles header, filter panel, table and pagination for
// the current query. Links carry the full list state so every page can be
// reloaded or shared.
func BuildModuleView(m *models.Module, q models.Query, result models.PagedResult, filtersOpen bool) ModuleView {
	current := SortState{SortBy: q.SortBy, SortOrder: q.SortOrder}
	empty := DefaultEmptyMessage
	if len(q.Filters) > 0 || q.Search != "" {
		empty = FilteredEmptyMessage
	}

	v := ModuleView{
		ID:         m.ID,
		Label:      m.Label,
		Search:     q.Search,
		Filters:    BuildFilterPanel(m, q.Filters, filtersOpen),
		Table:      BuildTable(m, result.Data, current, empty),
		Pagination: BuildPagination(result.Meta, len(result.Data)),
		ClearHref:  ModuleURL(m.ID, nil),
	}

	withoutSearch := q
	withoutSearch.Search = ""
	v.SearchCarry = carry(withoutSearch)
	withoutFilters := q
	withoutFilters.Filters = nil
	v.FilterCarry = carry(withoutFilters)

	for i := range v.Table.Headers {
		h := &v.Table.Headers[i]
		if !h.Sortable {
			continue
		}
		next := q
		next.Page = 1
		next.SortBy, next.SortOrder = h.Next.SortBy, h.Next.SortOrder
		h.Href = ModuleURL(m.ID, query.Encode(next))
	}

	p := &v.Pagination
	if p.HasPrev {
		prev := q
		prev.Page = p.CurrentPage - 1
		p.PrevHref = ModuleURL(m.ID, query.Encode(prev))
	}
	if p.HasNext {
		next := q
		next.Page = p.CurrentPage + 1
		p.NextHref = ModuleURL(m.ID, query.Encode(next))
	}
	return v
}

// carry lists the state parameters of q a form should resubmit. Page and
// limit are dropped since every form submit starts over at page 1.
func carry(q models.Query) []Param {
	values := query.Encode(q)
	values.Del(query.ParamPage)
	values.Del(query.ParamLimit)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Param, 0, len(keys))
	for _, k := range keys {
		out = append(out, Param{Key: k, Value: values.Get(k)})
	}
	return out
}

// ModuleURL is the UI path of a module list.
func ModuleURL(moduleID string, params url.Values) string {
	u := "/m/" + url.PathEscape(moduleID)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}
