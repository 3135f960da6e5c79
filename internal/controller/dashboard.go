package controller

import (
	"context"

	"github.com/aethra/glow/internal/models"
	"github.com/aethra/glow/internal/query"
	"github.com/aethra/glow/internal/ui"
	"golang.org/x/sync/errgroup"
)

// DashboardLimit is the number of rows each dashboard section shows.
const DashboardLimit = 8

// DefaultDashboardSections are the four summary sections.
func DefaultDashboardSections() []models.DashboardSection {
	return []models.DashboardSection{
		{ID: "leads", Label: "Recent leads", ModuleID: "enquiries"},
		{ID: "works", Label: "Work orders", ModuleID: "work_orders"},
		{ID: "customers", Label: "Customers", ModuleID: "contacts"},
		{ID: "services", Label: "Services", ModuleID: "services"},
	}
}

// LoadDashboard fetches the first page of every section concurrently.
// Sections whose module is unknown stay empty.
func LoadDashboard(ctx context.Context, loader Loader, modules []models.Module, sections []models.DashboardSection, limit int) ([]ui.SectionData, error) {
	if limit < 1 {
		limit = DashboardLimit
	}
	byID := make(map[string]*models.Module, len(modules))
	for i := range modules {
		byID[modules[i].ID] = &modules[i]
	}

	out := make([]ui.SectionData, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range sections {
		out[i] = ui.SectionData{Section: s, Module: byID[s.ModuleID]}
		if out[i].Module == nil {
			continue
		}
		i, s := i, s
		g.Go(func() error {
			res := loader.List(gctx, s.ModuleID, query.UIState{Page: 1, Limit: limit})
			out[i].Rows = res.Data
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
