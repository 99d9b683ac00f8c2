// Package normalize maps arbitrary spreadsheet rows onto the canonical inventory item.
package normalize

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
)

// RawRow is one spreadsheet row keyed by its header cell.
type RawRow map[string]string

const (
	DefaultProductName = "Unknown"
	DefaultCategory    = "Uncategorized"

	// LowStockBelow is the quantity under which an item counts as low stock.
	LowStockBelow = 10
)

// Aliases are matched in order after folding case and dropping spaces, underscores and dashes.
var (
	productNameAliases = []string{"product_name", "product", "name", "item", "product name", "item_name"}
	skuAliases         = []string{"sku", "code", "item_code"}
	categoryAliases    = []string{"category", "type"}
	quantityAliases    = []string{"quantity", "stock", "qty"}
	priceAliases       = []string{"price", "cost", "unit_price"}
	supplierAliases    = []string{"supplier", "vendor"}
	locationAliases    = []string{"location", "warehouse"}
	thresholdAliases   = []string{"low_stock_threshold", "reorder_point", "threshold", "min_stock"}
)

var knownKeys = buildKnownKeys(
	productNameAliases, skuAliases, categoryAliases, quantityAliases,
	priceAliases, supplierAliases, locationAliases, thresholdAliases,
)

// Row converts a raw row into an InventoryItem. It never fails: unparseable numbers become 0
// and unknown columns land in CustomFields unchanged.
func Row(row RawRow) models.InventoryItem {
	folded := make(map[string]string, len(row))
	custom := map[string]string{}
	for _, key := range slices.Sorted(maps.Keys(row)) {
		value := row[key]
		fk := foldKey(key)
		if _, ok := knownKeys[fk]; ok {
			// keys are visited in byte order; the first non-blank spelling of an alias wins
			if _, seen := folded[fk]; !seen || strings.TrimSpace(folded[fk]) == "" {
				folded[fk] = value
			}
			continue
		}
		custom[key] = value
	}

	item := models.InventoryItem{
		ProductName: firstPresent(folded, productNameAliases),
		SKU:         firstPresent(folded, skuAliases),
		Category:    firstPresent(folded, categoryAliases),
		Supplier:    firstPresent(folded, supplierAliases),
		Location:    firstPresent(folded, locationAliases),
	}
	if item.ProductName == "" {
		item.ProductName = DefaultProductName
	}
	if item.Category == "" {
		item.Category = DefaultCategory
	}

	item.Quantity = truncate(CoerceNonNegativeNumber(firstPresent(folded, quantityAliases), 0))
	item.Price = CoerceNonNegativeNumber(firstPresent(folded, priceAliases), 0)
	item.LowStockThreshold = truncate(CoerceNonNegativeNumber(firstPresent(folded, thresholdAliases), 0))
	item.Status = StatusFor(item.Quantity)

	if len(custom) > 0 {
		item.CustomFields = custom
	}
	return item
}

// Rows normalizes every row in order.
func Rows(rows []RawRow) []models.InventoryItem {
	items := make([]models.InventoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, Row(row))
	}
	return items
}

// StatusFor derives the stock status from quantity alone.
func StatusFor(quantity int) enums.StockStatus {
	switch {
	case quantity <= 0:
		return enums.StockStatusOutOfStock
	case quantity < LowStockBelow:
		return enums.StockStatusLowStock
	default:
		return enums.StockStatusInStock
	}
}

// CoerceNonNegativeNumber parses raw as a finite, non-negative number. Blank input, garbage,
// NaN, infinities and negatives all yield def. Thousands separators and a leading currency
// symbol are tolerated.
func CoerceNonNegativeNumber(raw string, def float64) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def
	}
	s = strings.TrimLeftFunc(s, func(r rune) bool { return unicode.Is(unicode.Sc, r) })
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return def
	}
	return v
}

func truncate(v float64) int {
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Trunc(v))
}

func firstPresent(folded map[string]string, aliases []string) string {
	for _, alias := range aliases {
		if v := strings.TrimSpace(folded[foldKey(alias)]); v != "" {
			return v
		}
	}
	return ""
}

// foldKey makes "Product Name", "product_name" and "productName" compare equal.
func foldKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func buildKnownKeys(groups ...[]string) map[string]struct{} {
	keys := map[string]struct{}{}
	for _, group := range groups {
		for _, alias := range group {
			keys[foldKey(alias)] = struct{}{}
		}
	}
	return keys
}
