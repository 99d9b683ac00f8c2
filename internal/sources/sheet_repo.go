package sources

import (
	"context"
	"time"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SheetRepository persists connected and active sheet tabs.
type SheetRepository struct {
	db *gorm.DB
}

func NewSheetRepository(db *gorm.DB) *SheetRepository {
	return &SheetRepository{db: db}
}

func (r *SheetRepository) WithTx(tx *gorm.DB) *SheetRepository {
	if tx == nil {
		return r
	}
	return &SheetRepository{db: tx}
}

func (r *SheetRepository) ListConnected(ctx context.Context, userID uuid.UUID) ([]models.ConnectedSheet, error) {
	var out []models.ConnectedSheet
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("connected_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListAllConnected pages through every connected sheet ordered by id, for background resyncs.
func (r *SheetRepository) ListAllConnected(ctx context.Context, after uuid.UUID, limit int) ([]models.ConnectedSheet, error) {
	if limit <= 0 {
		limit = 200
	}
	query := r.db.WithContext(ctx).Order("id ASC").Limit(limit)
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	var out []models.ConnectedSheet
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SheetRepository) FindConnected(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (*models.ConnectedSheet, error) {
	var sheet models.ConnectedSheet
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND spreadsheet_id = ? AND sheet_name = ?", userID, spreadsheetID, sheetName).
		First(&sheet).Error; err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (r *SheetRepository) CreateConnected(ctx context.Context, sheet *models.ConnectedSheet) error {
	if sheet.ID == uuid.Nil {
		sheet.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(sheet).Error
}

// MarkSynced records the latest row count and sync time.
func (r *SheetRepository) MarkSynced(ctx context.Context, id uuid.UUID, rowCount int, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ConnectedSheet{}).
		Where("id = ?", id).
		Updates(map[string]any{"row_count": rowCount, "last_synced": at}).Error
}

func (r *SheetRepository) DeleteConnected(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND spreadsheet_id = ? AND sheet_name = ?", userID, spreadsheetID, sheetName).
		Delete(&models.ConnectedSheet{})
	return res.RowsAffected, res.Error
}

func (r *SheetRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]models.ActiveSheet, error) {
	var out []models.ActiveSheet
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("activated_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// AddActive is idempotent; it reports whether a new row was written.
func (r *SheetRepository) AddActive(ctx context.Context, sheet *models.ActiveSheet) (bool, error) {
	sheet.SourceID = models.SheetSourceID(sheet.SpreadsheetID, sheet.SheetName)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(sheet)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *SheetRepository) RemoveActive(ctx context.Context, userID uuid.UUID, sourceID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND source_id = ?", userID, sourceID).
		Delete(&models.ActiveSheet{})
	return res.RowsAffected, res.Error
}
