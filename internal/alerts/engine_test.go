package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/finxan/finxan-backend/internal/aggregate"
	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/finxan/finxan-backend/pkg/events"
	"github.com/finxan/finxan-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	held     map[string]string
	err      error
	released []string
}

func (f *fakeLocker) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held == nil {
		f.held = map[string]string{}
	}
	if _, ok := f.held[key]; ok {
		return false, nil
	}
	f.held[key] = value.(string)
	return true, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, key, owner string) error {
	if f.held[key] == owner {
		delete(f.held, key)
		f.released = append(f.released, key)
	}
	return nil
}

func (f *fakeLocker) LockKey(scope string, parts ...string) string {
	key := "fx:lock:" + scope
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

type fakePublisher struct {
	err   error
	data  [][]byte
	attrs []map[string]string
}

func (f *fakePublisher) PublishAlert(_ context.Context, data []byte, attrs map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.data = append(f.data, data)
	f.attrs = append(f.attrs, attrs)
	return "msg-1", nil
}

// racingStore never sees existing alerts, as if another scan inserted between check and insert.
type racingStore struct {
	*Repository
}

func (racingStore) HasActive(context.Context, uuid.UUID, string) (bool, error) {
	return false, nil
}

// flakyStore fails the existence check for one dedup key and delegates everything else.
type flakyStore struct {
	*Repository
	failKey string
}

func (f flakyStore) HasActive(ctx context.Context, userID uuid.UUID, dedupKey string) (bool, error) {
	if dedupKey == f.failKey {
		return false, errors.New("connection reset")
	}
	return f.Repository.HasActive(ctx, userID, dedupKey)
}

func newEngine(t *testing.T, p EngineParams) *Engine {
	t.Helper()
	engine, err := NewEngine(p)
	require.NoError(t, err)
	return engine
}

func TestGenerateAlertsClassifiesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	user := seedUser(t, conn)

	view := &stubView{items: []aggregate.FlatItem{
		flat("Empty", "E-1", 0, 0),
		flat("Scarce", "S-1", 3, 0),
		flat("Short", "L-1", 8, 0),
		flat("Plenty", "P-1", 25, 0),
		flat("Custom", "C-1", 15, 20),
	}}
	reg := prometheus.NewRegistry()
	alertMetrics := metrics.NewAlertMetrics(reg)
	engine := newEngine(t, EngineParams{Items: view, Alerts: repo, Metrics: alertMetrics})

	first, err := engine.GenerateAlerts(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 4, first.Count())
	assert.Equal(t, 5, first.Evaluated)

	byName := map[string]models.Alert{}
	for _, alert := range first.Created {
		byName[alert.ProductName] = alert
	}
	assert.Equal(t, enums.AlertTypeOutOfStock, byName["Empty"].AlertType)
	assert.Equal(t, enums.AlertTypeCritical, byName["Scarce"].AlertType)
	assert.Equal(t, enums.AlertTypeLowStock, byName["Short"].AlertType)
	assert.Equal(t, enums.AlertTypeLowStock, byName["Custom"].AlertType)
	assert.Equal(t, 20, byName["Custom"].Threshold)
	assert.Equal(t, 10, byName["Short"].Threshold)
	assert.Equal(t, enums.AlertStatusActive, byName["Short"].Status)
	assert.Equal(t, "file-1", byName["Short"].SourceID)
	assert.NotContains(t, byName, "Plenty")
	assert.Equal(t, 2.0, createdCount(t, reg, enums.AlertTypeLowStock))

	second, err := engine.GenerateAlerts(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Count())

	var count int64
	require.NoError(t, conn.Model(&models.Alert{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 4, count)
}

func createdCount(t *testing.T, reg *prometheus.Registry, alertType enums.AlertType) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "finxan_alerts_created_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "alert_type" && label.GetValue() == string(alertType) {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestGenerateAlertsDedupsBySKUThenName(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	user := seedUser(t, conn)

	view := &stubView{items: []aggregate.FlatItem{
		flat("Bolt", "B-1", 2, 0),
		flat("Bolt (warehouse copy)", "B-1", 1, 0),
		flat("Nameless Nut", "", 4, 0),
		flat("Nameless Nut", " ", 6, 0),
	}}
	engine := newEngine(t, EngineParams{Items: view, Alerts: repo})

	result, err := engine.GenerateAlerts(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Count())
	assert.Equal(t, "B-1", result.Created[0].DedupKey)
	assert.Equal(t, "Nameless Nut", result.Created[1].DedupKey)
}

func TestGenerateAlertsAfterDismissCreatesFresh(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	user := seedUser(t, conn)
	engine := newEngine(t, EngineParams{Items: &stubView{items: []aggregate.FlatItem{flat("Bolt", "B-1", 2, 0)}}, Alerts: repo})

	_, err := engine.GenerateAlerts(ctx, user.ID)
	require.NoError(t, err)
	dismissed, err := repo.DismissAll(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, dismissed)

	again, err := engine.GenerateAlerts(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Count())
}

func TestGenerateAlertsTreatsUniqueViolationAsExisting(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	user := seedUser(t, conn)
	items := &stubView{items: []aggregate.FlatItem{flat("Bolt", "B-1", 2, 0), flat("Nut", "N-1", 0, 0)}}

	_, err := newEngine(t, EngineParams{Items: items, Alerts: repo}).GenerateAlerts(ctx, user.ID)
	require.NoError(t, err)

	racing := newEngine(t, EngineParams{Items: items, Alerts: racingStore{repo}})
	result, err := racing.GenerateAlerts(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count())
}

func TestGenerateAlertsSkipsWhenLocked(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	locker := &fakeLocker{}
	view := &stubView{}
	engine := newEngine(t, EngineParams{Items: view, Alerts: racingStore{}, Locker: locker})

	key := locker.LockKey(scanLockScope, userID.String())
	locker.held = map[string]string{key: "someone-else"}

	result, err := engine.GenerateAlerts(ctx, userID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, view.calls)

	delete(locker.held, key)
	_, err = engine.GenerateAlerts(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.calls)
	assert.Equal(t, []string{key}, locker.released)
	assert.Empty(t, locker.held)
}

func TestGenerateAlertsProceedsWhenLockStoreFails(t *testing.T) {
	view := &stubView{}
	engine := newEngine(t, EngineParams{Items: view, Alerts: racingStore{}, Locker: &fakeLocker{err: errors.New("redis down")}})

	result, err := engine.GenerateAlerts(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, view.calls)
}

func TestGenerateAlertsPublishesCreatedEvent(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	user := seedUser(t, conn)
	publisher := &fakePublisher{}
	engine := newEngine(t, EngineParams{
		Items:     &stubView{items: []aggregate.FlatItem{flat("Bolt", "B-1", 2, 0), flat("Nut", "N-1", 0, 0)}},
		Alerts:    repo,
		Publisher: publisher,
	})

	result, err := engine.GenerateAlerts(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, result.Notified)
	require.Len(t, publisher.data, 1)
	assert.Equal(t, string(events.EventAlertsCreated), publisher.attrs[0][events.AttrEventType])

	var env events.PayloadEnvelope
	require.NoError(t, json.Unmarshal(publisher.data[0], &env))
	var payload events.AlertsCreated
	require.NoError(t, env.Decode(&payload))
	assert.Equal(t, user.ID, payload.UserID)
	assert.ElementsMatch(t, []uuid.UUID{result.Created[0].ID, result.Created[1].ID}, payload.AlertIDs)

	again, err := engine.GenerateAlerts(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, again.Notified)
	assert.Len(t, publisher.data, 1, "nothing new, nothing published")
}

func TestGenerateAlertsSwallowsPublishFailure(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	user := seedUser(t, conn)
	reg := prometheus.NewRegistry()
	engine := newEngine(t, EngineParams{
		Items:     &stubView{items: []aggregate.FlatItem{flat("Bolt", "B-1", 2, 0)}},
		Alerts:    repo,
		Publisher: &fakePublisher{err: errors.New("topic missing")},
		Metrics:   metrics.NewAlertMetrics(reg),
	})

	result, err := engine.GenerateAlerts(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count())
	assert.False(t, result.Notified)
}

func TestGenerateAlertsIsolatesItemFailures(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	user := seedUser(t, conn)
	publisher := &fakePublisher{}
	engine := newEngine(t, EngineParams{
		Items: &stubView{items: []aggregate.FlatItem{
			flat("Bolt", "B-1", 2, 0),
			flat("Nut", "N-1", 0, 0),
			flat("Washer", "W-1", 1, 0),
		}},
		Alerts:    flakyStore{Repository: repo, failKey: "N-1"},
		Publisher: publisher,
	})

	result, err := engine.GenerateAlerts(ctx, user.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Count(), "items after the failing one are still considered")
	assert.True(t, result.Notified)
	require.Len(t, publisher.data, 1)

	var env events.PayloadEnvelope
	require.NoError(t, json.Unmarshal(publisher.data[0], &env))
	var payload events.AlertsCreated
	require.NoError(t, env.Decode(&payload))
	assert.Len(t, payload.AlertIDs, 2)

	var persisted int64
	require.NoError(t, conn.Model(&models.Alert{}).Where("user_id = ?", user.ID).Count(&persisted).Error)
	assert.EqualValues(t, 2, persisted)
}

func TestGenerateAlertsPropagatesViewFailure(t *testing.T) {
	engine := newEngine(t, EngineParams{Items: &stubView{err: errors.New("db down")}, Alerts: racingStore{}})
	_, err := engine.GenerateAlerts(context.Background(), uuid.New())
	require.Error(t, err)
}
