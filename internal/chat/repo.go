package chat

import (
	"context"
	"time"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists chat sessions. The message list is written whole.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Find(ctx context.Context, userID uuid.UUID, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Take(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *Repository) Create(ctx context.Context, session *models.ChatSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Messages == nil {
		session.Messages = []models.ChatMessage{}
	}
	return r.db.WithContext(ctx).Create(session).Error
}

// SaveMessages replaces the stored message list.
func (r *Repository) SaveMessages(ctx context.Context, id uuid.UUID, messages []models.ChatMessage) error {
	return r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("id = ?", id).
		Select("messages", "updated_at").
		Updates(&models.ChatSession{Messages: messages, UpdatedAt: time.Now().UTC()}).Error
}

func (r *Repository) Delete(ctx context.Context, userID uuid.UUID, sessionID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Delete(&models.ChatSession{})
	return res.RowsAffected, res.Error
}
