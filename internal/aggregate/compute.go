// Package aggregate flattens a user's in-scope inventory sources into one item list and
// derives the dashboard, analytics and AI views from it. Every derivation in this file is
// a pure function over []FlatItem.
package aggregate

import (
	"sort"
	"strings"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/samber/lo"
)

// ABC class boundaries, as cumulative share of total value.
const (
	ClassABoundary = 80.0
	ClassBBoundary = 95.0
)

// FlatItem is an inventory item annotated with the source it came from.
type FlatItem struct {
	models.InventoryItem
	SourceType enums.SourceType `json:"source"`
	SourceID   string           `json:"sourceId"`
}

// Flatten concatenates source data in source order, preserving each source's row order.
func Flatten(srcs []models.InventorySource) []FlatItem {
	return lo.FlatMap(srcs, func(src models.InventorySource, _ int) []FlatItem {
		return lo.Map(src.Data, func(item models.InventoryItem, _ int) FlatItem {
			return FlatItem{InventoryItem: item, SourceType: src.SourceType, SourceID: src.SourceID}
		})
	})
}

// StatusCounts tallies items per stock status.
type StatusCounts struct {
	InStock    int `json:"inStock"`
	LowStock   int `json:"lowStock"`
	OutOfStock int `json:"outOfStock"`
}

// Stats are the headline totals of a view. TotalValue is unrounded.
type Stats struct {
	TotalProducts   int
	TotalQuantity   int
	TotalValue      float64
	Status          StatusCounts
	CategoriesCount int
}

func ComputeStats(items []FlatItem) Stats {
	stats := Stats{TotalProducts: len(items)}
	categories := make(map[string]struct{})
	for _, item := range items {
		stats.TotalQuantity += item.Quantity
		stats.TotalValue += item.Value()
		if strings.TrimSpace(item.Category) != "" {
			categories[item.Category] = struct{}{}
		}
	}
	stats.Status = StatusBreakdown(items)
	stats.CategoriesCount = len(categories)
	return stats
}

func StatusBreakdown(items []FlatItem) StatusCounts {
	var counts StatusCounts
	for _, item := range items {
		switch item.Status {
		case enums.StockStatusInStock:
			counts.InStock++
		case enums.StockStatusLowStock:
			counts.LowStock++
		case enums.StockStatusOutOfStock:
			counts.OutOfStock++
		}
	}
	return counts
}

// CategoryStat sums one category.
type CategoryStat struct {
	Category  string
	ItemCount int
	Quantity  int
	Value     float64
}

// CategoryBreakdown groups by exact category value, ordered by value descending and then
// by name. The Value fields sum to ComputeStats(items).TotalValue.
func CategoryBreakdown(items []FlatItem) []CategoryStat {
	byName := make(map[string]*CategoryStat)
	for _, item := range items {
		stat, ok := byName[item.Category]
		if !ok {
			stat = &CategoryStat{Category: item.Category}
			byName[item.Category] = stat
		}
		stat.ItemCount++
		stat.Quantity += item.Quantity
		stat.Value += item.Value()
	}

	out := make([]CategoryStat, 0, len(byName))
	for _, stat := range byName {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// ABCClass is the Pareto bucket of a ranked item.
type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

// ABCEntry is one ranked item of the Pareto analysis.
type ABCEntry struct {
	Rank              int
	Item              FlatItem
	Value             float64
	CumulativeValue   float64
	CumulativePercent float64
	Class             ABCClass
}

// ABCAnalysis ranks items by value descending, keeping input order among equal values, and
// returns the first topN ranks (all when topN <= 0). Percentages are taken against the value
// of the whole view, not just the returned ranks. A view worth nothing classifies every item C.
func ABCAnalysis(items []FlatItem, topN int) []ABCEntry {
	ranked := make([]FlatItem, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value() > ranked[j].Value()
	})

	total := 0.0
	for _, item := range ranked {
		total += item.Value()
	}

	if topN <= 0 || topN > len(ranked) {
		topN = len(ranked)
	}
	out := make([]ABCEntry, 0, topN)
	cumulative := 0.0
	for i := 0; i < topN; i++ {
		item := ranked[i]
		cumulative += item.Value()
		entry := ABCEntry{
			Rank:            i + 1,
			Item:            item,
			Value:           item.Value(),
			CumulativeValue: cumulative,
			Class:           ClassC,
		}
		if total > 0 {
			entry.CumulativePercent = cumulative * 100 / total
			entry.Class = classify(entry.CumulativePercent)
		}
		out = append(out, entry)
	}
	return out
}

func classify(percent float64) ABCClass {
	switch {
	case percent <= ClassABoundary:
		return ClassA
	case percent <= ClassBBoundary:
		return ClassB
	default:
		return ClassC
	}
}

// NeedsAttention reports a low-stock or out-of-stock status.
func NeedsAttention(item FlatItem) bool {
	return item.Status == enums.StockStatusLowStock || item.Status == enums.StockStatusOutOfStock
}

// LowStockItems keeps items whose status is low-stock or out-of-stock, in view order.
func LowStockItems(items []FlatItem) []FlatItem {
	return lo.Filter(items, func(item FlatItem, _ int) bool { return NeedsAttention(item) })
}

// ReorderSet widens LowStockItems with anything under the display threshold. The display
// threshold is independent of the per-item alert threshold.
func ReorderSet(items []FlatItem, displayThreshold int) []FlatItem {
	return lo.Filter(items, func(item FlatItem, _ int) bool {
		return NeedsAttention(item) || item.Quantity < displayThreshold
	})
}

// Filter narrows the inventory listing. Zero values match everything.
type Filter struct {
	Search   string
	Category string
	Status   enums.StockStatus
}

// Apply matches Search case-insensitively against name, SKU and category; Category and
// Status must match exactly.
func (f Filter) Apply(items []FlatItem) []FlatItem {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" && f.Category == "" && f.Status == "" {
		return items
	}
	return lo.Filter(items, func(item FlatItem, _ int) bool {
		if f.Category != "" && item.Category != f.Category {
			return false
		}
		if f.Status != "" && item.Status != f.Status {
			return false
		}
		if search == "" {
			return true
		}
		return strings.Contains(strings.ToLower(item.ProductName), search) ||
			strings.Contains(strings.ToLower(item.SKU), search) ||
			strings.Contains(strings.ToLower(item.Category), search)
	})
}
