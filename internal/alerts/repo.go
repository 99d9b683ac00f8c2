package alerts

import (
	"context"
	"time"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/finxan/finxan-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActiveDedupIndex is the partial unique index guarding one active alert per product.
const ActiveDedupIndex = "alerts_active_dedup_idx"

// Repository persists alerts.
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

type listParams struct {
	UserID uuid.UUID
	Status *enums.AlertStatus
	Limit  int
	Cursor *pagination.Cursor
}

type typeCount struct {
	AlertType enums.AlertType
	Count     int64
}

func (r *Repository) Create(ctx context.Context, alert *models.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(alert).Error
}

// HasActive reports whether the user already has an active alert for the dedup key.
func (r *Repository) HasActive(ctx context.Context, userID uuid.UUID, dedupKey string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("user_id = ? AND dedup_key = ? AND status = ?", userID, dedupKey, enums.AlertStatusActive).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) List(ctx context.Context, params listParams) ([]models.Alert, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Alert{}).Where("user_id = ?", params.UserID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Alert
	if err := query.Order("created_at DESC, id DESC").Limit(normalized + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[normalized-1]
		return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}

// Count counts the user's alerts, optionally restricted to one status.
func (r *Repository) Count(ctx context.Context, userID uuid.UUID, status *enums.AlertStatus) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Alert{}).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

// ActiveCountsByType groups the user's active alerts by type.
func (r *Repository) ActiveCountsByType(ctx context.Context, userID uuid.UUID) (map[enums.AlertType]int64, error) {
	var rows []typeCount
	err := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Select("alert_type, COUNT(*) AS count").
		Where("user_id = ? AND status = ?", userID, enums.AlertStatusActive).
		Group("alert_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.AlertType]int64, len(rows))
	for _, row := range rows {
		out[row.AlertType] = row.Count
	}
	return out, nil
}

func (r *Repository) FindByID(ctx context.Context, userID, alertID uuid.UUID) (*models.Alert, error) {
	var alert models.Alert
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", alertID, userID).Take(&alert).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// FindByIDs returns the user's alerts among ids, oldest first.
func (r *Repository) FindByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Alert, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Alert
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// Transition moves an active alert to status. It reports false when no active alert with
// that id belongs to the user.
func (r *Repository) Transition(ctx context.Context, userID, alertID uuid.UUID, status enums.AlertStatus, resolvedAt *time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ? AND user_id = ? AND status = ?", alertID, userID, enums.AlertStatusActive).
		Updates(map[string]any{
			"status":      status,
			"resolved_at": resolvedAt,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DismissAll dismisses every active alert of the user in one statement.
func (r *Repository) DismissAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("user_id = ? AND status = ?", userID, enums.AlertStatusActive).
		Updates(map[string]any{
			"status":     enums.AlertStatusDismissed,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *Repository) MarkEmailSent(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"email_sent": true, "email_sent_at": at}).Error
}
