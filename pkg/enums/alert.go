package enums

import "fmt"

// AlertType is the severity assigned by alert classification.
type AlertType string

const (
	AlertTypeLowStock   AlertType = "low-stock"
	AlertTypeOutOfStock AlertType = "out-of-stock"
	AlertTypeCritical   AlertType = "critical"
)

var validAlertTypes = []AlertType{
	AlertTypeLowStock,
	AlertTypeOutOfStock,
	AlertTypeCritical,
}

func (a AlertType) String() string {
	return string(a)
}

func (a AlertType) IsValid() bool {
	for _, candidate := range validAlertTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// AlertStatus tracks an alert through active -> resolved|dismissed.
type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "active"
	AlertStatusResolved  AlertStatus = "resolved"
	AlertStatusDismissed AlertStatus = "dismissed"
)

var validAlertStatuses = []AlertStatus{
	AlertStatusActive,
	AlertStatusResolved,
	AlertStatusDismissed,
}

func (a AlertStatus) String() string {
	return string(a)
}

func (a AlertStatus) IsValid() bool {
	for _, candidate := range validAlertStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAlertStatus converts raw input into an AlertStatus.
func ParseAlertStatus(value string) (AlertStatus, error) {
	for _, candidate := range validAlertStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert status %q", value)
}
