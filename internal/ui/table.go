package ui

import (
	"strconv"

	"github.com/aethra/glow/internal/models"
)

// Empty-state messages.
const (
	DefaultEmptyMessage   = "No results."
	FilteredEmptyMessage  = "No results match your filters."
	DashboardEmptyMessage = "No items."
)

// SortState is the active sort of a list. An empty SortBy means unsorted.
type SortState struct {
	SortBy    string
	SortOrder models.SortOrder
}

// NextSort returns the sort after clicking fieldID: the same column flips
// direction, another column starts ascending.
func NextSort(current SortState, fieldID string) SortState {
	if current.SortBy == fieldID {
		order := current.SortOrder
		if order == "" {
			order = models.SortAsc
		}
		return SortState{SortBy: fieldID, SortOrder: order.Toggle()}
	}
	return SortState{SortBy: fieldID, SortOrder: models.SortAsc}
}

// HeaderCell is one column header.
type HeaderCell struct {
	FieldID   string
	Label     string
	Width     string
	Sortable  bool
	Active    bool
	Direction models.SortOrder // set only on the active column
	Next      SortState
	Title     string
	Class     string
	Href      string
}

// TableRow is one formatted row.
type TableRow struct {
	ID    string
	Cells []Cell
}

// Table describes a rendered list. With no rows it holds a single empty-state
// message spanning all columns.
type Table struct {
	ModuleID     string
	Headers      []HeaderCell
	Rows         []TableRow
	EmptyMessage string
}

// Empty reports whether the table shows its empty state.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// ColSpan is the width of the empty-state cell.
func (t Table) ColSpan() int {
	return len(t.Headers)
}

// BuildTable lays out rows under the module's list columns.
func BuildTable(m *models.Module, rows []models.Row, sort SortState, emptyMessage string) Table {
	if emptyMessage == "" {
		emptyMessage = DefaultEmptyMessage
	}
	fields := m.ListFields()

	t := Table{ModuleID: m.ID, Headers: make([]HeaderCell, 0, len(fields)), EmptyMessage: emptyMessage}
	for i := range fields {
		t.Headers = append(t.Headers, header(&fields[i], sort))
	}
	if len(rows) == 0 {
		return t
	}

	t.Rows = make([]TableRow, 0, len(rows))
	for _, row := range rows {
		tr := TableRow{ID: row.ID(), Cells: make([]Cell, 0, len(fields))}
		for i := range fields {
			tr.Cells = append(tr.Cells, FormatCell(&fields[i], row[fields[i].ID]))
		}
		t.Rows = append(t.Rows, tr)
	}
	return t
}

func header(f *models.FieldDescriptor, sort SortState) HeaderCell {
	h := HeaderCell{
		FieldID: f.ID,
		Label:   f.DisplayLabel(),
		Width:   f.Width,
		Class:   "entity-list-th",
	}
	if !f.Sortable {
		return h
	}

	h.Sortable = true
	h.Class += " entity-list-th--sortable"
	h.Next = NextSort(sort, f.ID)
	h.Title = "Sort by " + h.Label
	if sort.SortBy == f.ID {
		h.Active = true
		h.Direction = models.ParseSortOrder(string(sort.SortOrder))
		h.Class += " entity-list-th--sorted-" + string(h.Direction)
		if h.Direction == models.SortAsc {
			h.Title = "Sorted ascending. Click for descending."
		} else {
			h.Title = "Sorted descending. Click for ascending."
		}
	}
	return h
}

// =============================================================================
// PAGINATION
// =============================================================================

// Pagination is the "Page X of Y" control with its range summary.
type Pagination struct {
	CurrentPage int
	TotalPages  int
	RangeFrom   int
	RangeTo     int
	TotalCount  int
	HasPrev     bool
	HasNext     bool
	PrevHref    string
	NextHref    string
}

// BuildPagination derives page controls from result metadata and the number
// of rows on the current page.
func BuildPagination(meta models.Meta, rowCount int) Pagination {
	totalPages := meta.TotalPages()
	current := min(max(meta.Page, 1), totalPages)
	limit := max(meta.Limit, 1)

	p := Pagination{
		CurrentPage: current,
		TotalPages:  totalPages,
		TotalCount:  meta.Total,
		HasPrev:     current > 1,
		HasNext:     current < totalPages,
	}
	if meta.Total > 0 {
		p.RangeFrom = (current-1)*limit + 1
		p.RangeTo = (current-1)*limit + rowCount
	}
	return p
}

// Info is the "Page X of Y" label.
func (p Pagination) Info() string {
	return "Page " + strconv.Itoa(p.CurrentPage) + " of " + strconv.Itoa(p.TotalPages)
}
