package models

import (
	"time"

	"github.com/google/uuid"
)

// User is created on first authenticated request from a Firebase identity.
type User struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	FirebaseUID        string     `gorm:"column:firebase_uid;type:text;not null;uniqueIndex"`
	Email              string     `gorm:"column:email;type:text;not null"`
	DisplayName        string     `gorm:"column:display_name;type:text;not null"`
	NotifyLowStock     bool       `gorm:"column:notify_low_stock;not null"`
	NotifyNewFiles     bool       `gorm:"column:notify_new_files;not null"`
	NotifyWeeklyReport bool       `gorm:"column:notify_weekly_report;not null"`
	LastLoginAt        *time.Time `gorm:"column:last_login_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// ConnectedSheet records a sheet tab the user linked, whether or not it is active.
type ConnectedSheet struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	SpreadsheetID    string     `gorm:"column:spreadsheet_id;type:text;not null"`
	SheetName        string     `gorm:"column:sheet_name;type:text;not null"`
	SpreadsheetTitle string     `gorm:"column:spreadsheet_title;type:text;not null"`
	RowCount         int        `gorm:"column:row_count;not null"`
	LastSynced       *time.Time `gorm:"column:last_synced"`
	ConnectedAt      time.Time  `gorm:"column:connected_at;autoCreateTime"`
}

func (ConnectedSheet) TableName() string { return "connected_sheets" }

// SourceID returns the inventory source key for this sheet tab.
func (c ConnectedSheet) SourceID() string {
	return SheetSourceID(c.SpreadsheetID, c.SheetName)
}

// ActiveSheet marks a connected sheet tab as included in the user's inventory view.
type ActiveSheet struct {
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	SourceID      string    `gorm:"column:source_id;type:text;primaryKey"`
	SpreadsheetID string    `gorm:"column:spreadsheet_id;type:text;not null"`
	SheetName     string    `gorm:"column:sheet_name;type:text;not null"`
	ActivatedAt   time.Time `gorm:"column:activated_at;autoCreateTime"`
}

func (ActiveSheet) TableName() string { return "active_sheets" }
