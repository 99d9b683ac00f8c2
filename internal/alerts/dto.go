package alerts

import (
	"time"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/google/uuid"
)

type AlertDTO struct {
	ID              uuid.UUID         `json:"id"`
	ProductName     string            `json:"productName"`
	SKU             string            `json:"sku,omitempty"`
	Category        string            `json:"category,omitempty"`
	CurrentQuantity int               `json:"currentQuantity"`
	Threshold       int               `json:"threshold"`
	AlertType       enums.AlertType   `json:"alertType"`
	Status          enums.AlertStatus `json:"status"`
	SourceType      enums.SourceType  `json:"sourceType,omitempty"`
	SourceID        string            `json:"sourceId,omitempty"`
	EmailSent       bool              `json:"emailSent"`
	EmailSentAt     *time.Time        `json:"emailSentAt,omitempty"`
	ResolvedAt      *time.Time        `json:"resolvedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func FromModel(a models.Alert) AlertDTO {
	return AlertDTO{
		ID:              a.ID,
		ProductName:     a.ProductName,
		SKU:             a.SKU,
		Category:        a.Category,
		CurrentQuantity: a.CurrentQuantity,
		Threshold:       a.Threshold,
		AlertType:       a.AlertType,
		Status:          a.Status,
		SourceType:      a.SourceType,
		SourceID:        a.SourceID,
		EmailSent:       a.EmailSent,
		EmailSentAt:     a.EmailSentAt,
		ResolvedAt:      a.ResolvedAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func fromModels(rows []models.Alert) []AlertDTO {
	out := make([]AlertDTO, len(rows))
	for i, row := range rows {
		out[i] = FromModel(row)
	}
	return out
}

// Stats counts alerts matching the list filter (Total) and active alerts per type.
type Stats struct {
	Total      int64 `json:"total"`
	Critical   int64 `json:"critical"`
	LowStock   int64 `json:"lowStock"`
	OutOfStock int64 `json:"outOfStock"`
}

type ListParams struct {
	UserID uuid.UUID
	// Status is "active" when blank; "all" disables the filter.
	Status string
	Limit  int
	Cursor string
}

type ListResult struct {
	Alerts []AlertDTO `json:"alerts"`
	Stats  Stats      `json:"stats"`
	Cursor string     `json:"cursor,omitempty"`
}

type GenerateDTO struct {
	AlertsCreated int        `json:"alertsCreated"`
	Message       string     `json:"message"`
	Alerts        []AlertDTO `json:"alerts"`
}
