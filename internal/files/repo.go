package files

import (
	"context"
	"time"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists upload records.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the upload record.
func (r *Repository) Create(ctx context.Context, file *models.File) error {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(file).Error
}

// FindByID loads a file owned by userID.
func (r *Repository) FindByID(ctx context.Context, userID, id uuid.UUID) (*models.File, error) {
	var file models.File
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

// List returns the user's uploads, newest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]models.File, error) {
	var out []models.File
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.File{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ?", id).
		Update("status", enums.FileStatusProcessing).Error
}

// MarkCompleted stores the parse metadata. Metadata goes through a struct update so the
// JSON serializer applies.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, meta models.FileMetadata, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ?", id).
		Select("status", "metadata", "error_message", "processed_at").
		Updates(&models.File{
			Status:      enums.FileStatusCompleted,
			Metadata:    meta,
			ProcessedAt: &at,
		}).Error
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.FileStatusFailed,
			"error_message": message,
			"processed_at":  at,
		}).Error
}

// Delete removes the record and reports how many rows went away.
func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.File{})
	return res.RowsAffected, res.Error
}
