package aggregate

import "github.com/samber/lo"

type DashboardStats struct {
	TotalProducts   int     `json:"totalProducts"`
	TotalQuantity   int     `json:"totalQuantity"`
	TotalValue      float64 `json:"totalValue"`
	LowStockCount   int     `json:"lowStockCount"`
	OutOfStockCount int     `json:"outOfStockCount"`
	CategoriesCount int     `json:"categoriesCount"`
	FilesCount      int     `json:"filesCount"`
	ActiveSheets    int     `json:"activeSheets"`
}

// Available=false marks a degraded response built without inventory data.
type DashboardDTO struct {
	Available     bool           `json:"available"`
	Message       string         `json:"message,omitempty"`
	Stats         DashboardStats `json:"stats"`
	LowStockItems []FlatItem     `json:"lowStockItems"`
}

// InventoryStatsDTO keeps totalValue as a fixed two-decimal string.
type InventoryStatsDTO struct {
	Available       bool   `json:"available"`
	Message         string `json:"message,omitempty"`
	TotalItems      int    `json:"totalItems"`
	TotalValue      string `json:"totalValue"`
	LowStockCount   int    `json:"lowStockCount"`
	OutOfStockCount int    `json:"outOfStockCount"`
	TotalProducts   int    `json:"totalProducts"`
}

type ItemPageDTO struct {
	Available   bool       `json:"available"`
	Items       []FlatItem `json:"inventory"`
	Count       int        `json:"count"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	Message     string     `json:"message,omitempty"`
}

type CategoryDTO struct {
	Category  string  `json:"category"`
	ItemCount int     `json:"itemCount"`
	Quantity  int     `json:"quantity"`
	Value     float64 `json:"value"`
}

type ABCEntryDTO struct {
	Rank              int      `json:"rank"`
	ProductName       string   `json:"productName"`
	SKU               string   `json:"sku,omitempty"`
	Category          string   `json:"category"`
	Value             float64  `json:"value"`
	CumulativePercent float64  `json:"cumulativePercent"`
	Class             ABCClass `json:"class"`
}

type LowStockDTO struct {
	Items     []FlatItem `json:"items"`
	Count     int        `json:"count"`
	Available bool       `json:"available"`
	Message   string     `json:"message,omitempty"`
}

type AnalyticsDTO struct {
	Available       bool          `json:"available"`
	Message         string        `json:"message,omitempty"`
	TotalProducts   int           `json:"totalProducts"`
	TotalQuantity   int           `json:"totalQuantity"`
	TotalValue      float64       `json:"totalValue"`
	CategoriesCount int           `json:"categoriesCount"`
	Categories      []CategoryDTO `json:"categories"`
	StockStatus     StatusCounts  `json:"stockStatus"`
	ABC             []ABCEntryDTO `json:"abc"`
	Reorder         []FlatItem    `json:"reorder"`
}

// NewAnalyticsDTO derives every analytics view from one item list. Rounding happens here
// and nowhere earlier.
func NewAnalyticsDTO(items []FlatItem, topN, displayThreshold int) *AnalyticsDTO {
	stats := ComputeStats(items)
	return &AnalyticsDTO{
		TotalProducts:   stats.TotalProducts,
		TotalQuantity:   stats.TotalQuantity,
		TotalValue:      Money(stats.TotalValue),
		CategoriesCount: stats.CategoriesCount,
		Categories: lo.Map(CategoryBreakdown(items), func(c CategoryStat, _ int) CategoryDTO {
			return CategoryDTO{Category: c.Category, ItemCount: c.ItemCount, Quantity: c.Quantity, Value: Money(c.Value)}
		}),
		StockStatus: stats.Status,
		ABC: lo.Map(ABCAnalysis(items, topN), func(e ABCEntry, _ int) ABCEntryDTO {
			return ABCEntryDTO{
				Rank:              e.Rank,
				ProductName:       e.Item.ProductName,
				SKU:               e.Item.SKU,
				Category:          e.Item.Category,
				Value:             Money(e.Value),
				CumulativePercent: Money(e.CumulativePercent),
				Class:             e.Class,
			}
		}),
		Reorder: nonNil(ReorderSet(items, displayThreshold)),
	}
}
