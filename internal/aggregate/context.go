package aggregate

import (
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/samber/lo"
)

const (
	MessageNoSources     = "No inventory data found. Please upload a file or activate a connected sheet."
	MessageNoItems       = "No items in inventory."
	MessageStoreFailure  = "Error fetching inventory data."
	defaultTopProducts   = 10
	defaultLowStockItems = 50
	defaultRawItems      = 100
	defaultCategories    = 50
)

// ContextLimits bound every list in the AI digest.
type ContextLimits struct {
	TopProducts   int
	LowStockItems int
	RawItems      int
	Categories    int
}

func DefaultContextLimits() ContextLimits {
	return ContextLimits{
		TopProducts:   defaultTopProducts,
		LowStockItems: defaultLowStockItems,
		RawItems:      defaultRawItems,
		Categories:    defaultCategories,
	}
}

func (l ContextLimits) normalize() ContextLimits {
	d := DefaultContextLimits()
	if l.TopProducts <= 0 {
		l.TopProducts = d.TopProducts
	}
	if l.LowStockItems <= 0 {
		l.LowStockItems = d.LowStockItems
	}
	if l.RawItems <= 0 {
		l.RawItems = d.RawItems
	}
	if l.Categories <= 0 {
		l.Categories = d.Categories
	}
	return l
}

type ContextSummary struct {
	TotalProducts int      `json:"totalProducts"`
	TotalItems    int      `json:"totalItems"`
	TotalValue    float64  `json:"totalValue"`
	Categories    []string `json:"categories"`
	CategoryCount int      `json:"categoryCount"`
}

type ContextCategory struct {
	Items    int     `json:"items"`
	Quantity int     `json:"quantity"`
	Value    float64 `json:"value"`
}

type ContextProduct struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

type ContextLowStock struct {
	Name     string            `json:"name"`
	Quantity int               `json:"quantity"`
	Status   enums.StockStatus `json:"status"`
	Category string            `json:"category"`
}

// AIContext is the digest sent to the completion service. It never carries more items
// than its ContextLimits allow, whatever the size of the inventory.
type AIContext struct {
	HasData           bool                       `json:"hasData"`
	Message           string                     `json:"message,omitempty"`
	Summary           *ContextSummary            `json:"summary,omitempty"`
	CategoryBreakdown map[string]ContextCategory `json:"categoryBreakdown,omitempty"`
	StockStatus       *StatusCounts              `json:"stockStatus,omitempty"`
	TopProducts       []ContextProduct           `json:"topProducts,omitempty"`
	LowStockItems     []ContextLowStock          `json:"lowStockItems,omitempty"`
	AllItems          []FlatItem                 `json:"allItems,omitempty"`
	Truncated         bool                       `json:"truncated,omitempty"`
}

// BuildAIContext digests a view. Unavailable or empty views produce HasData=false with a
// user-facing message.
func BuildAIContext(view *View, limits ContextLimits) AIContext {
	switch {
	case view == nil || !view.Available:
		return AIContext{Message: MessageStoreFailure}
	case view.SourceCount == 0:
		return AIContext{Message: MessageNoSources}
	case len(view.Items) == 0:
		return AIContext{Message: MessageNoItems}
	}
	limits = limits.normalize()
	items := view.Items
	stats := ComputeStats(items)

	categories := CategoryBreakdown(items)
	truncated := len(categories) > limits.Categories
	categories = lo.Subset(categories, 0, uint(limits.Categories))

	breakdown := make(map[string]ContextCategory, len(categories))
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		breakdown[c.Category] = ContextCategory{Items: c.ItemCount, Quantity: c.Quantity, Value: Money(c.Value)}
		if c.Category != "" {
			names = append(names, c.Category)
		}
	}

	top := lo.Map(ABCAnalysis(items, limits.TopProducts), func(e ABCEntry, _ int) ContextProduct {
		return ContextProduct{
			Name:     e.Item.ProductName,
			Value:    Money(e.Value),
			Quantity: e.Item.Quantity,
			Price:    e.Item.Price,
			Category: e.Item.Category,
		}
	})

	low := LowStockItems(items)
	truncated = truncated || len(low) > limits.LowStockItems || len(items) > limits.RawItems
	lowDigest := lo.Map(lo.Subset(low, 0, uint(limits.LowStockItems)), func(item FlatItem, _ int) ContextLowStock {
		return ContextLowStock{Name: item.ProductName, Quantity: item.Quantity, Status: item.Status, Category: item.Category}
	})

	status := stats.Status
	return AIContext{
		HasData: true,
		Summary: &ContextSummary{
			TotalProducts: stats.TotalProducts,
			TotalItems:    stats.TotalQuantity,
			TotalValue:    Money(stats.TotalValue),
			Categories:    names,
			CategoryCount: stats.CategoriesCount,
		},
		CategoryBreakdown: breakdown,
		StockStatus:       &status,
		TopProducts:       top,
		LowStockItems:     lowDigest,
		AllItems:          lo.Subset(items, 0, uint(limits.RawItems)),
		Truncated:         truncated,
	}
}
