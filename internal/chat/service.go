// Package chat answers inventory questions through the external AI service.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finxan/finxan-backend/internal/aggregate"
	"github.com/finxan/finxan-backend/pkg/ai"
	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/redis"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	FallbackAIFailure = "I'm having trouble processing your request. Please try again."
	FallbackNoData    = "I don't have any inventory data to analyze yet. Please upload a file first."

	defaultStaleTTL = 24 * time.Hour
	cacheOpTimeout  = 2 * time.Second
)

type completer interface {
	Chat(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error)
}

type contextBuilder interface {
	AIContext(ctx context.Context, userID uuid.UUID) aggregate.AIContext
}

type sessionStore interface {
	Find(ctx context.Context, userID uuid.UUID, sessionID string) (*models.ChatSession, error)
	Create(ctx context.Context, session *models.ChatSession) error
	SaveMessages(ctx context.Context, id uuid.UUID, messages []models.ChatMessage) error
	Delete(ctx context.Context, userID uuid.UUID, sessionID string) (int64, error)
}

// Service exposes chat session operations.
type Service interface {
	SendMessage(ctx context.Context, userID uuid.UUID, input SendInput) (*SendResult, error)
	NewSession(ctx context.Context, userID uuid.UUID) (string, error)
	History(ctx context.Context, userID uuid.UUID, sessionID string) ([]models.ChatMessage, error)
	DeleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error
}

type ServiceParams struct {
	Sessions  sessionStore
	Inventory contextBuilder
	AI        completer
	// Cache is optional; without it AI failures always fall back to the canned reply.
	Cache    redis.Cache
	StaleTTL time.Duration
	Logger   *logger.Logger
}

type service struct {
	sessions  sessionStore
	inventory contextBuilder
	ai        completer
	cache     redis.Cache
	staleTTL  time.Duration
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	return newService(p)
}

func newService(p ServiceParams) (*service, error) {
	if p.Sessions == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if p.Inventory == nil {
		return nil, fmt.Errorf("inventory context required")
	}
	if p.AI == nil {
		return nil, fmt.Errorf("ai client required")
	}
	ttl := p.StaleTTL
	if ttl <= 0 {
		ttl = defaultStaleTTL
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		sessions:  p.Sessions,
		inventory: p.Inventory,
		ai:        p.AI,
		cache:     p.Cache,
		staleTTL:  ttl,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// SendMessage appends the question and the assistant's reply to the session, creating the
// session when it does not exist. AI failures are answered with a fallback, never an error.
func (s *service) SendMessage(ctx context.Context, userID uuid.UUID, input SendInput) (*SendResult, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Message is required")
	}
	ctx = s.logg.WithUserID(ctx, userID.String())

	session, err := s.findOrCreate(ctx, userID, strings.TrimSpace(input.SessionID))
	if err != nil {
		return nil, err
	}
	session.Messages = append(session.Messages, models.ChatMessage{
		Role:      enums.ChatRoleUser,
		Content:   message,
		Timestamp: s.now().UTC(),
	})

	reply := s.answer(ctx, userID, session.SessionID, message)
	reply.Timestamp = s.now().UTC()
	session.Messages = append(session.Messages, reply)

	if err := s.sessions.SaveMessages(ctx, session.ID, session.Messages); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save chat session")
	}
	_, stale := reply.Metadata[metaStale]
	return &SendResult{Response: reply.Content, SessionID: session.SessionID, Stale: stale}, nil
}

func (s *service) answer(ctx context.Context, userID uuid.UUID, sessionID, message string) models.ChatMessage {
	inventory := s.inventory.AIContext(ctx, userID)
	if !inventory.HasData {
		content := inventory.Message
		if content == "" {
			content = FallbackNoData
		}
		return models.ChatMessage{Role: enums.ChatRoleAssistant, Content: content}
	}

	cacheKey := ""
	if s.cache != nil {
		cacheKey = s.cache.ChatCacheKey(userID.String(), message)
	}

	resp, err := s.ai.Chat(ctx, ai.ChatRequest{
		Message:   message,
		SessionID: sessionID,
		UserID:    userID.String(),
		Context:   inventory,
	})
	if err != nil {
		s.logg.WarnErr(ctx, "ai chat failed", err)
		if cached, ok := s.cachedAnswer(ctx, cacheKey); ok {
			return models.ChatMessage{
				Role:     enums.ChatRoleAssistant,
				Content:  cached,
				Metadata: map[string]any{metaStale: true},
			}
		}
		return models.ChatMessage{Role: enums.ChatRoleAssistant, Content: FallbackAIFailure}
	}

	s.remember(ctx, cacheKey, resp.Content)
	return models.ChatMessage{
		Role:    enums.ChatRoleAssistant,
		Content: resp.Content,
		Metadata: map[string]any{
			metaTokensUsed: resp.TokensUsed,
			metaModel:      resp.Model,
		},
	}
}

func (s *service) cachedAnswer(ctx context.Context, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	value, err := s.cache.Get(cacheCtx, key)
	if err != nil || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func (s *service) remember(ctx context.Context, key, content string) {
	if key == "" {
		return
	}
	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := s.cache.Set(cacheCtx, key, content, s.staleTTL); err != nil {
		s.logg.WarnErr(ctx, "cache chat answer", err)
	}
}

func (s *service) findOrCreate(ctx context.Context, userID uuid.UUID, sessionID string) (*models.ChatSession, error) {
	if sessionID != "" {
		session, err := s.sessions.Find(ctx, userID, sessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load chat session")
		}
	}
	return s.create(ctx, userID, sessionID)
}

func (s *service) create(ctx context.Context, userID uuid.UUID, sessionID string) (*models.ChatSession, error) {
	if sessionID == "" {
		sessionID = fmt.Sprintf("session_%d", s.now().UnixMilli())
	}
	session := &models.ChatSession{UserID: userID, SessionID: sessionID}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create chat session")
	}
	return session, nil
}

func (s *service) NewSession(ctx context.Context, userID uuid.UUID) (string, error) {
	session, err := s.create(ctx, userID, "")
	if err != nil {
		return "", err
	}
	return session.SessionID, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, sessionID string) ([]models.ChatMessage, error) {
	session, err := s.sessions.Find(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Chat session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load chat session")
	}
	return session.Messages, nil
}

// DeleteSession is idempotent: deleting a missing session succeeds.
func (s *service) DeleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if _, err := s.sessions.Delete(ctx, userID, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete chat session")
	}
	return nil
}
