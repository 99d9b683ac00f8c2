package sources

import (
	"time"

	"github.com/finxan/finxan-backend/pkg/db/models"
)

// ConnectInput names the sheet tab to link.
type ConnectInput struct {
	SpreadsheetID    string
	SheetName        string
	SpreadsheetTitle string
}

// SheetRef identifies one tab of one spreadsheet.
type SheetRef struct {
	SpreadsheetID string
	SheetName     string
}

type ConnectResult struct {
	Rows      int    `json:"rows"`
	SheetName string `json:"sheetName"`
	Refreshed bool   `json:"refreshed"`
	Message   string `json:"message"`
}

type SyncResult struct {
	Rows       int       `json:"rows"`
	SheetName  string    `json:"sheetName"`
	LastSynced time.Time `json:"lastSynced"`
}

type ActivationResult struct {
	Changed bool   `json:"changed"`
	Message string `json:"message"`
}

// ConnectedSheetDTO is the list shape of a connected tab.
type ConnectedSheetDTO struct {
	SpreadsheetID    string     `json:"sheetId"`
	SheetName        string     `json:"sheetName"`
	SpreadsheetTitle string     `json:"spreadsheetTitle"`
	SourceID         string     `json:"sourceId"`
	RowCount         int        `json:"rowCount"`
	LastSynced       *time.Time `json:"lastSynced,omitempty"`
	ConnectedAt      time.Time  `json:"connectedAt"`
	Active           bool       `json:"active"`
}

type ActiveSheetDTO struct {
	SpreadsheetID string    `json:"spreadsheetId"`
	SheetName     string    `json:"sheetName"`
	SourceID      string    `json:"sourceId"`
	ActivatedAt   time.Time `json:"activatedAt"`
}

func connectedFromModel(sheet models.ConnectedSheet, active bool) ConnectedSheetDTO {
	return ConnectedSheetDTO{
		SpreadsheetID:    sheet.SpreadsheetID,
		SheetName:        sheet.SheetName,
		SpreadsheetTitle: sheet.SpreadsheetTitle,
		SourceID:         sheet.SourceID(),
		RowCount:         sheet.RowCount,
		LastSynced:       sheet.LastSynced,
		ConnectedAt:      sheet.ConnectedAt,
		Active:           active,
	}
}

func activeFromModel(sheet models.ActiveSheet) ActiveSheetDTO {
	return ActiveSheetDTO{
		SpreadsheetID: sheet.SpreadsheetID,
		SheetName:     sheet.SheetName,
		SourceID:      models.SheetSourceID(sheet.SpreadsheetID, sheet.SheetName),
		ActivatedAt:   sheet.ActivatedAt,
	}
}
