package models

import (
	"time"

	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/google/uuid"
)

// InventoryItem is the canonical row produced by normalization. It is stored inside
// InventorySource.Data rather than in its own table.
type InventoryItem struct {
	ProductName       string            `json:"productName"`
	SKU               string            `json:"sku,omitempty"`
	Category          string            `json:"category"`
	Quantity          int               `json:"quantity"`
	Price             float64           `json:"price"`
	Supplier          string            `json:"supplier,omitempty"`
	Location          string            `json:"location,omitempty"`
	LowStockThreshold int               `json:"lowStockThreshold,omitempty"`
	Status            enums.StockStatus `json:"status"`
	CustomFields      map[string]string `json:"customFields,omitempty"`
}

// Value is quantity times unit price.
func (i InventoryItem) Value() float64 {
	return float64(i.Quantity) * i.Price
}

// InventorySource holds one upload's or one sheet tab's normalized rows.
type InventorySource struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID        `gorm:"column:user_id;type:uuid;not null"`
	SourceType    enums.SourceType `gorm:"column:source_type;type:text;not null"`
	SourceID      string           `gorm:"column:source_id;type:text;not null"`
	SpreadsheetID *string          `gorm:"column:spreadsheet_id;type:text"`
	FileID        *uuid.UUID       `gorm:"column:file_id;type:uuid"`
	Data          []InventoryItem  `gorm:"column:data;type:jsonb;serializer:json;not null"`
	ItemCount     int              `gorm:"column:item_count;not null;default:0"`
	LastSynced    *time.Time       `gorm:"column:last_synced"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventorySource) TableName() string { return "inventory_sources" }

// SheetSourceID is the only constructor for a Google Sheet source key.
func SheetSourceID(spreadsheetID, sheetName string) string {
	return spreadsheetID + "_" + sheetName
}
