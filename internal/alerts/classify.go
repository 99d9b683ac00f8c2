// Package alerts scans aggregated inventory for threshold breaches, records deduplicated
// alerts and hands new ones to the notification worker.
package alerts

import (
	"strings"

	"github.com/finxan/finxan-backend/pkg/enums"
)

const (
	DefaultThreshold     = 10
	DefaultCriticalBelow = 5
)

// Rules parameterize classification.
type Rules struct {
	DefaultThreshold int
	CriticalBelow    int
}

func DefaultRules() Rules {
	return Rules{DefaultThreshold: DefaultThreshold, CriticalBelow: DefaultCriticalBelow}
}

func (r Rules) normalize() Rules {
	if r.DefaultThreshold <= 0 {
		r.DefaultThreshold = DefaultThreshold
	}
	if r.CriticalBelow <= 0 {
		r.CriticalBelow = DefaultCriticalBelow
	}
	return r
}

// ThresholdFor returns the item override when positive, else the default.
func (r Rules) ThresholdFor(override int) int {
	if override > 0 {
		return override
	}
	return r.normalize().DefaultThreshold
}

// Classify maps a quantity against its threshold. The boolean is false when no alert is due.
func (r Rules) Classify(quantity, threshold int) (enums.AlertType, bool) {
	r = r.normalize()
	switch {
	case quantity <= 0:
		return enums.AlertTypeOutOfStock, true
	case quantity < threshold && quantity < r.CriticalBelow:
		return enums.AlertTypeCritical, true
	case quantity < threshold:
		return enums.AlertTypeLowStock, true
	default:
		return "", false
	}
}

// Classify applies DefaultRules.
func Classify(quantity, threshold int) (enums.AlertType, bool) {
	return DefaultRules().Classify(quantity, threshold)
}

// DedupKey identifies a product across scans: its SKU when present, otherwise its name.
func DedupKey(sku, productName string) string {
	if key := strings.TrimSpace(sku); key != "" {
		return key
	}
	return strings.TrimSpace(productName)
}
