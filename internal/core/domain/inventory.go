// internal/core/domain/inventory.go
package domain

import (
	"fmt"
	"strings"
	"time"
)

// StockStatus is the stock level reported by the backend
type StockStatus string

const (
	StatusGood   StockStatus = "good"
	StatusMedium StockStatus = "medium"
	StatusLow    StockStatus = "low"
)

// Quantity thresholds used by the backend when it assigns a status.
const (
	LowStockThreshold    = 50
	MediumStockThreshold = 200
)

// IsValid reports whether s is one of the known statuses
func (s StockStatus) IsValid() bool {
	switch s {
	case StatusGood, StatusMedium, StatusLow:
		return true
	}
	return false
}

// StatusForQuantity mirrors the backend rule for deriving a status.
func StatusForQuantity(quantity int) StockStatus {
	switch {
	case quantity < LowStockThreshold:
		return StatusLow
	case quantity < MediumStockThreshold:
		return StatusMedium
	default:
		return StatusGood
	}
}

// InventoryItem is one row of the inventory snapshot returned by the backend.
// Items are never mutated once loaded.
type InventoryItem struct {
	ID             int64       `json:"id,omitempty"`
	Name           string      `json:"name"`
	Category       string      `json:"category"`
	Location       string      `json:"location"`
	Quantity       int         `json:"quantity"`
	Status         StockStatus `json:"status"`
	LastUpdated    string      `json:"last_updated"`
	ExpirationDate *string     `json:"expiration_date,omitempty"`
}

// Validate checks the invariants of a snapshot row
func (i *InventoryItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if i.Quantity < 0 {
		return fmt.Errorf("quantity must be >= 0 for %s", i.Name)
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("unknown status %q for %s", i.Status, i.Name)
	}
	return nil
}

// IsCritical reports whether the item belongs to the critical filter
func (i *InventoryItem) IsCritical() bool {
	return i.Status == StatusLow || i.Quantity < LowStockThreshold
}

// Matches reports a case-insensitive substring match of term against the
// name, category or location. An empty term matches everything.
func (i *InventoryItem) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(i.Name), term) ||
		strings.Contains(strings.ToLower(i.Category), term) ||
		strings.Contains(strings.ToLower(i.Location), term)
}

// Layouts the backend uses for last_updated.
const (
	LastUpdatedDateLayout      = "Jan 02, 2006"
	LastUpdatedClockLayout     = "03:04 PM"
	ActivityTimestampLayout    = "Jan 02, 2006 03:04 PM"
	ExpirationDateLayout       = "2006-01-02"
	lastUpdatedTodayPrefix     = "Today, "
	lastUpdatedYesterdayPrefix = "Yesterday, "
)

// ParseLastUpdated turns a display timestamp into a time so items can be
// ordered by recency. Relative forms ("Today, 03:04 PM") resolve against now.
// Unparseable values return the zero time and false, sorting them last.
func ParseLastUpdated(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	day := func(offset int) time.Time {
		y, m, d := now.AddDate(0, 0, offset).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
	relative := func(rest string, base time.Time) (time.Time, bool) {
		clock, err := time.Parse(LastUpdatedClockLayout, strings.TrimSpace(rest))
		if err != nil {
			return base, true
		}
		return base.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), true
	}

	switch {
	case strings.HasPrefix(s, lastUpdatedTodayPrefix):
		return relative(strings.TrimPrefix(s, lastUpdatedTodayPrefix), day(0))
	case strings.HasPrefix(s, lastUpdatedYesterdayPrefix):
		return relative(strings.TrimPrefix(s, lastUpdatedYesterdayPrefix), day(-1))
	}

	for _, layout := range []string{LastUpdatedDateLayout, time.RFC3339, "2006-01-02T15:04:05", ExpirationDateLayout} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ActivityEntry is one row of the backend activity log
type ActivityEntry struct {
	ID             int64  `json:"id"`
	Timestamp      string `json:"timestamp"`
	Action         string `json:"action"`
	ItemName       string `json:"item_name"`
	QuantityChange int    `json:"quantity_change"`
	Description    string `json:"description"`
}

// InventorySummary holds the four dashboard counters. InStock and LowStock
// partition the items by status; OutOfStock counts zero-quantity items
// independently of status.
type InventorySummary struct {
	Total      int `json:"total"`
	InStock    int `json:"in_stock"`
	LowStock   int `json:"low_stock"`
	OutOfStock int `json:"out_of_stock"`
}

// CategoryTotal is the summed quantity of one category
type CategoryTotal struct {
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

// ChartData is the shape consumed by the dashboard charts
type ChartData struct {
	CategoryLabels []string `json:"category_labels"`
	CategoryValues []int    `json:"category_values"`
	StatusLabels   []string `json:"status_labels"`
	StatusValues   []int    `json:"status_values"`
}
