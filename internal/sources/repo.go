package sources

import (
	"context"
	"time"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists inventory sources. A source's data array is always written whole.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a source repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Upsert inserts the source or replaces data, counts and sync time of the existing
// (user_id, source_id) row in one statement.
func (r *Repository) Upsert(ctx context.Context, src *models.InventorySource) error {
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	if src.Data == nil {
		src.Data = []models.InventoryItem{}
	}
	src.ItemCount = len(src.Data)
	now := time.Now().UTC()
	if src.LastSynced == nil {
		src.LastSynced = &now
	}
	src.UpdatedAt = now

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"source_type", "spreadsheet_id", "file_id", "data", "item_count", "last_synced", "updated_at",
			}),
		}).
		Create(src).Error
}

// ReplaceData swaps the whole data array of an existing source. It reports false when no
// row matched.
func (r *Repository) ReplaceData(ctx context.Context, userID uuid.UUID, sourceID string, items []models.InventoryItem, syncedAt time.Time) (bool, error) {
	if items == nil {
		items = []models.InventoryItem{}
	}
	res := r.db.WithContext(ctx).
		Model(&models.InventorySource{}).
		Where("user_id = ? AND source_id = ?", userID, sourceID).
		Select("data", "item_count", "last_synced", "updated_at").
		Updates(&models.InventorySource{
			Data:       items,
			ItemCount:  len(items),
			LastSynced: &syncedAt,
			UpdatedAt:  time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListInScope returns the user's sources admitted by scope: every non-sheet source plus
// the active sheet sources.
func (r *Repository) ListInScope(ctx context.Context, scope Scope) ([]models.InventorySource, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", scope.UserID)

	active := scope.ActiveSourceIDs()
	if len(active) == 0 {
		query = query.Where("source_type <> ?", enums.SourceTypeGoogleSheet)
	} else {
		query = query.Where("(source_type <> ? OR source_id IN ?)", enums.SourceTypeGoogleSheet, active)
	}

	var out []models.InventorySource
	if err := query.Order("created_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes one source and reports how many rows went away.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID, sourceID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND source_id = ?", userID, sourceID).
		Delete(&models.InventorySource{})
	return res.RowsAffected, res.Error
}

// DeleteByFileID removes the source produced by an uploaded file.
func (r *Repository) DeleteByFileID(ctx context.Context, userID, fileID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND file_id = ?", userID, fileID).
		Delete(&models.InventorySource{})
	return res.RowsAffected, res.Error
}

// UserIDsWithSources lists tenants that own at least one source.
func (r *Repository) UserIDsWithSources(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.InventorySource{}).
		Distinct("user_id").
		Order("user_id").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
