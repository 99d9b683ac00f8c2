package models

import (
	"time"

	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/google/uuid"
)

// Alert is a stock notification raised for one product.
type Alert struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	ProductName     string            `gorm:"column:product_name;type:text;not null"`
	SKU             string            `gorm:"column:sku;type:text;not null"`
	DedupKey        string            `gorm:"column:dedup_key;type:text;not null"`
	Category        string            `gorm:"column:category;type:text;not null"`
	CurrentQuantity int               `gorm:"column:current_quantity;not null"`
	Threshold       int               `gorm:"column:threshold;not null"`
	AlertType       enums.AlertType   `gorm:"column:alert_type;type:text;not null"`
	Status          enums.AlertStatus `gorm:"column:status;type:text;not null"`
	SourceType      enums.SourceType  `gorm:"column:source_type;type:text;not null"`
	SourceID        string            `gorm:"column:source_id;type:text;not null"`
	EmailSent       bool              `gorm:"column:email_sent;not null"`
	EmailSentAt     *time.Time        `gorm:"column:email_sent_at"`
	ResolvedAt      *time.Time        `gorm:"column:resolved_at"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
