// internal/core/services/inventory_controller.go
package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ammerola/medboard/internal/core/domain"
)

// PageSize is the number of inventory rows per table page.
const PageSize = 7

// FilterKind selects the inventory table predicate
type FilterKind string

const (
	FilterAll      FilterKind = "all"
	FilterCritical FilterKind = "critical"
	FilterRecent   FilterKind = "recent"
)

// ParseFilter returns the filter for s, defaulting to all
func ParseFilter(s string) FilterKind {
	switch FilterKind(strings.ToLower(strings.TrimSpace(s))) {
	case FilterCritical:
		return FilterCritical
	case FilterRecent:
		return FilterRecent
	default:
		return FilterAll
	}
}

// InventoryView is a consistent snapshot of the controller state: the visible
// page of the filtered rows plus aggregates over the full collection.
type InventoryView struct {
	Items         []domain.InventoryItem  `json:"items"`
	Filter        FilterKind              `json:"filter"`
	Search        string                  `json:"search"`
	Page          int                     `json:"page"`
	PageCount     int                     `json:"page_count"`
	TotalFiltered int                     `json:"total_filtered"`
	TableInfo     string                  `json:"table_info"`
	HasPrev       bool                    `json:"has_prev"`
	HasNext       bool                    `json:"has_next"`
	Summary       domain.InventorySummary `json:"summary"`
	Categories    []domain.CategoryTotal  `json:"categories"`
	Chart         domain.ChartData        `json:"chart"`
}

// InventoryController owns one client's inventory collection together with
// its filter, search term and page. Filter or search changes reset the page
// to 1; explicit page moves are clamped to [1, PageCount].
type InventoryController struct {
	mu       sync.RWMutex
	items    []domain.InventoryItem
	filtered []domain.InventoryItem
	filter   FilterKind
	search   string
	page     int

	listenerMu sync.Mutex
	listeners  map[int]func(InventoryView)
	nextID     int

	now func() time.Time
}

// NewInventoryController creates an empty controller on page 1 of the
// "all" filter.
func NewInventoryController() *InventoryController {
	return &InventoryController{
		filter:    FilterAll,
		page:      1,
		listeners: make(map[int]func(InventoryView)),
		now:       time.Now,
	}
}

// Load replaces the collection with a fresh backend snapshot. The current
// filter and search survive; the page is clamped to the new page count.
func (c *InventoryController) Load(items []domain.InventoryItem) InventoryView {
	c.mu.Lock()
	c.items = append([]domain.InventoryItem(nil), items...)
	c.refilter()
	c.page = clampPage(c.page, pageCount(len(c.filtered)))
	view := c.view()
	c.mu.Unlock()

	c.notify(view)
	return view
}

// SetFilter switches the active filter and returns to page 1
func (c *InventoryController) SetFilter(kind FilterKind) InventoryView {
	c.mu.Lock()
	c.filter = kind
	c.page = 1
	c.refilter()
	view := c.view()
	c.mu.Unlock()

	c.notify(view)
	return view
}

// SetSearch changes the search term and returns to page 1
func (c *InventoryController) SetSearch(term string) InventoryView {
	c.mu.Lock()
	c.search = strings.TrimSpace(term)
	c.page = 1
	c.refilter()
	view := c.view()
	c.mu.Unlock()

	c.notify(view)
	return view
}

// GotoPage moves to page n, clamped to the valid range.
func (c *InventoryController) GotoPage(n int) InventoryView {
	c.mu.Lock()
	c.page = clampPage(n, pageCount(len(c.filtered)))
	view := c.view()
	c.mu.Unlock()

	c.notify(view)
	return view
}

// View returns the current state without changing it
func (c *InventoryController) View() InventoryView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view()
}

// Filtered returns every item passing the current filter and search, across
// all pages.
func (c *InventoryController) Filtered() []domain.InventoryItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.InventoryItem(nil), c.filtered...)
}

// OnStateChanged registers fn to receive every view produced by a state
// change. Listeners run after the controller lock is released. The returned
// func unsubscribes.
func (c *InventoryController) OnStateChanged(fn func(InventoryView)) func() {
	c.listenerMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		delete(c.listeners, id)
		c.listenerMu.Unlock()
	}
}

func (c *InventoryController) notify(view InventoryView) {
	c.listenerMu.Lock()
	fns := make([]func(InventoryView), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenerMu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

// refilter must be called with mu held.
func (c *InventoryController) refilter() {
	out := make([]domain.InventoryItem, 0, len(c.items))
	for i := range c.items {
		item := c.items[i]
		if c.filter == FilterCritical && !item.IsCritical() {
			continue
		}
		if !item.Matches(c.search) {
			continue
		}
		out = append(out, item)
	}

	if c.filter == FilterRecent {
		now := c.now()
		sort.SliceStable(out, func(i, j int) bool {
			ti, _ := domain.ParseLastUpdated(out[i].LastUpdated, now)
			tj, _ := domain.ParseLastUpdated(out[j].LastUpdated, now)
			return ti.After(tj)
		})
	}
	c.filtered = out
}

// view must be called with mu held.
func (c *InventoryController) view() InventoryView {
	total := len(c.filtered)
	pages := pageCount(total)

	start := (c.page - 1) * PageSize
	end := start + PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return InventoryView{
		Items:         append([]domain.InventoryItem(nil), c.filtered[start:end]...),
		Filter:        c.filter,
		Search:        c.search,
		Page:          c.page,
		PageCount:     pages,
		TotalFiltered: total,
		TableInfo:     TableInfo(start, end, total),
		HasPrev:       c.page > 1,
		HasNext:       c.page < pages,
		Summary:       ComputeSummary(c.items),
		Categories:    AggregateByCategory(c.items),
		Chart:         BuildChartData(c.items),
	}
}

// TableInfo renders the "start-end of total items" caption for the half-open
// slice [start, end).
func TableInfo(start, end, total int) string {
	if total == 0 {
		return "0-0 of 0 items"
	}
	return fmt.Sprintf("%d-%d of %d items", start+1, end, total)
}

func pageCount(total int) int {
	return (total + PageSize - 1) / PageSize
}

func clampPage(n, pages int) int {
	if n > pages {
		n = pages
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ComputeSummary counts the dashboard cards. Out-of-stock is counted by
// quantity alone, so a low item with zero quantity counts in both LowStock
// and OutOfStock.
func ComputeSummary(items []domain.InventoryItem) domain.InventorySummary {
	s := domain.InventorySummary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case domain.StatusGood, domain.StatusMedium:
			s.InStock++
		case domain.StatusLow:
			s.LowStock++
		}
		if item.Quantity == 0 {
			s.OutOfStock++
		}
	}
	return s
}

// AggregateByCategory sums quantities per category in first-seen order
func AggregateByCategory(items []domain.InventoryItem) []domain.CategoryTotal {
	index := make(map[string]int)
	var out []domain.CategoryTotal
	for _, item := range items {
		i, ok := index[item.Category]
		if !ok {
			i = len(out)
			index[item.Category] = i
			out = append(out, domain.CategoryTotal{Category: item.Category})
		}
		out[i].Quantity += item.Quantity
	}
	return out
}

// BuildChartData shapes the category totals and status split for the
// dashboard charts.
func BuildChartData(items []domain.InventoryItem) domain.ChartData {
	var chart domain.ChartData
	for _, ct := range AggregateByCategory(items) {
		chart.CategoryLabels = append(chart.CategoryLabels, ct.Category)
		chart.CategoryValues = append(chart.CategoryValues, ct.Quantity)
	}

	s := ComputeSummary(items)
	chart.StatusLabels = []string{"In Stock", "Low Stock", "Out of Stock"}
	chart.StatusValues = []int{s.InStock, s.LowStock, s.OutOfStock}
	return chart
}
