package controller

import "github.com/aethra/glow/internal/models"

// DefaultViewportWidth is assumed when the client sends no width hint.
const DefaultViewportWidth = 1024

// MaxPrimary is how many modules fit in the topbar at a viewport width.
func MaxPrimary(width int) int {
	switch {
	case width < 560:
		return 4
	case width < 768:
		return 5
	case width < 1024:
		return 7
	}
	return 9
}

// PrimaryIDs returns the first limit ids of order and the order to keep.
// Unknown ids are pruned, an empty order starts from module order, and
// modules beyond the primary set follow in module order.
func PrimaryIDs(modules []models.Module, order []string, limit int) (primary, next []string) {
	known := make(map[string]bool, len(modules))
	for _, m := range modules {
		known[m.ID] = true
	}

	var pruned []string
	for _, id := range order {
		if known[id] {
			pruned = append(pruned, id)
		}
	}
	if len(pruned) == 0 {
		for _, m := range modules {
			pruned = append(pruned, m.ID)
		}
	}

	limit = max(limit, 0)
	primary = append([]string(nil), pruned[:min(limit, len(pruned))]...)
	inPrimary := make(map[string]bool, len(primary))
	for _, id := range primary {
		inPrimary[id] = true
	}
	next = append([]string(nil), primary...)
	for _, m := range modules {
		if !inPrimary[m.ID] {
			next = append(next, m.ID)
		}
	}
	return primary, next
}

// Promote moves an overflow module into the primary set just before its last
// item. The last item drops into the overflow. Ids already primary leave the
// order unchanged.
func Promote(order, primary []string, id string) []string {
	if len(primary) == 0 {
		return order
	}
	for _, p := range primary {
		if p == id {
			return order
		}
	}

	last := primary[len(primary)-1]
	skip := map[string]bool{id: true, last: true}
	for _, p := range primary {
		skip[p] = true
	}

	out := make([]string, 0, len(order)+1)
	out = append(out, primary[:len(primary)-1]...)
	out = append(out, id, last)
	for _, o := range order {
		if !skip[o] {
			out = append(out, o)
		}
	}
	return out
}

// PrimaryNav returns the primary ids for this session at a viewport width.
func (c *Controller) PrimaryNav(modules []models.Module, width int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	primary, next := PrimaryIDs(modules, c.navOrder, MaxPrimary(width))
	c.navOrder = next
	return primary
}

// PromoteNav moves an overflow module into this session's primary nav.
func (c *Controller) PromoteNav(modules []models.Module, width int, id string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	primary, next := PrimaryIDs(modules, c.navOrder, MaxPrimary(width))
	c.navOrder = Promote(next, primary, id)
	primary, c.navOrder = PrimaryIDs(modules, c.navOrder, MaxPrimary(width))
	return primary
}
