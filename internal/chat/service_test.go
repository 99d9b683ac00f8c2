package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finxan/finxan-backend/internal/aggregate"
	"github.com/finxan/finxan-backend/pkg/ai"
	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/finxan/finxan-backend/pkg/migrate/migratetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAI struct {
	reply    string
	err      error
	requests []ai.ChatRequest
}

func (s *stubAI) Chat(_ context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &ai.ChatResponse{Content: s.reply, TokensUsed: 42, Model: "test-model"}, nil
}

type stubInventory struct {
	ctx aggregate.AIContext
}

func (s stubInventory) AIContext(context.Context, uuid.UUID) aggregate.AIContext {
	return s.ctx
}

type memoryCache struct {
	data map[string]string
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", errors.New("miss")
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = value.(string)
	return nil
}

func (m *memoryCache) ChatCacheKey(userID, message string) string {
	return userID + "|" + message
}

type fixture struct {
	svc    *service
	ai     *stubAI
	cache  *memoryCache
	userID uuid.UUID
}

func newFixture(t *testing.T, inventory aggregate.AIContext) *fixture {
	t.Helper()
	conn := migratetest.NewSQLite(t)
	user := &models.User{ID: uuid.New(), FirebaseUID: "fb-" + uuid.NewString()}
	require.NoError(t, conn.Create(user).Error)

	client := &stubAI{reply: "You have 3 items low on stock."}
	cache := &memoryCache{data: map[string]string{}}
	svc, err := newService(ServiceParams{
		Sessions:  NewRepository(conn),
		Inventory: stubInventory{ctx: inventory},
		AI:        client,
		Cache:     cache,
	})
	require.NoError(t, err)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	return &fixture{svc: svc, ai: client, cache: cache, userID: user.ID}
}

func withData() aggregate.AIContext {
	return aggregate.AIContext{HasData: true, Summary: &aggregate.ContextSummary{TotalProducts: 3}}
}

func TestSendMessageCreatesSessionAndStoresBothTurns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withData())

	res, err := f.svc.SendMessage(ctx, f.userID, SendInput{Message: " What is low? "})
	require.NoError(t, err)
	assert.Equal(t, "You have 3 items low on stock.", res.Response)
	assert.Regexp(t, `^session_\d+$`, res.SessionID)
	assert.False(t, res.Stale)

	require.Len(t, f.ai.requests, 1)
	req := f.ai.requests[0]
	assert.Equal(t, "What is low?", req.Message)
	assert.Equal(t, res.SessionID, req.SessionID)
	assert.Equal(t, f.userID.String(), req.UserID)
	assert.Equal(t, withData(), req.Context)

	history, err := f.svc.History(ctx, f.userID, res.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, enums.ChatRoleUser, history[0].Role)
	assert.Equal(t, enums.ChatRoleAssistant, history[1].Role)
	assert.EqualValues(t, 42, history[1].Metadata[metaTokensUsed])
	assert.Equal(t, "test-model", history[1].Metadata[metaModel])

	res2, err := f.svc.SendMessage(ctx, f.userID, SendInput{Message: "and out of stock?", SessionID: res.SessionID})
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, res2.SessionID)
	history, err = f.svc.History(ctx, f.userID, res.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestSendMessageUsesCallerSessionID(t *testing.T) {
	f := newFixture(t, withData())
	res, err := f.svc.SendMessage(context.Background(), f.userID, SendInput{Message: "hi", SessionID: "session_custom"})
	require.NoError(t, err)
	assert.Equal(t, "session_custom", res.SessionID)
}

func TestSendMessageWithoutInventory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, aggregate.AIContext{Message: aggregate.MessageNoSources})

	res, err := f.svc.SendMessage(ctx, f.userID, SendInput{Message: "How many bolts?"})
	require.NoError(t, err)
	assert.Equal(t, aggregate.MessageNoSources, res.Response)
	assert.Empty(t, f.ai.requests, "no AI call without data")

	f2 := newFixture(t, aggregate.AIContext{})
	res, err = f2.svc.SendMessage(ctx, f2.userID, SendInput{Message: "How many bolts?"})
	require.NoError(t, err)
	assert.Equal(t, FallbackNoData, res.Response)
}

func TestSendMessageAIFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withData())

	first, err := f.svc.SendMessage(ctx, f.userID, SendInput{Message: "What is low?"})
	require.NoError(t, err)

	f.ai.err = pkgerrors.New(pkgerrors.CodeDependency, "timeout")
	res, err := f.svc.SendMessage(ctx, f.userID, SendInput{Message: "What is low?", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.Equal(t, "You have 3 items low on stock.", res.Response)
	assert.True(t, res.Stale, "cached answer is served when the AI is down")

	res, err = f.svc.SendMessage(ctx, f.userID, SendInput{Message: "Something new", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.Equal(t, FallbackAIFailure, res.Response)
	assert.False(t, res.Stale)

	history, err := f.svc.History(ctx, f.userID, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 6)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t, withData())
	_, err := f.svc.SendMessage(context.Background(), f.userID, SendInput{Message: "   "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withData())

	id, err := f.svc.NewSession(ctx, f.userID)
	require.NoError(t, err)
	history, err := f.svc.History(ctx, f.userID, id)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = f.svc.History(ctx, uuid.New(), id)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "sessions are scoped to their owner")

	require.NoError(t, f.svc.DeleteSession(ctx, f.userID, id))
	_, err = f.svc.History(ctx, f.userID, id)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.NoError(t, f.svc.DeleteSession(ctx, f.userID, id))
}
