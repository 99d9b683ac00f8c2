package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/finxan/finxan-backend/internal/aggregate"
	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/events"
	"github.com/finxan/finxan-backend/pkg/sendgrid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeMailer struct {
	err  error
	sent []sendgrid.Message
}

func (f *fakeMailer) Send(_ context.Context, msg sendgrid.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type userLookup struct {
	conn *gorm.DB
}

func (u userLookup) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := u.conn.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func createdEnvelope(t *testing.T, userID uuid.UUID, alerts []models.Alert) events.PayloadEnvelope {
	t.Helper()
	ids := make([]uuid.UUID, len(alerts))
	for i, a := range alerts {
		ids[i] = a.ID
	}
	env, err := events.NewEnvelope(userID, time.Now(), events.AlertsCreated{UserID: userID, AlertIDs: ids})
	require.NoError(t, err)
	return env
}

func setupNotifier(t *testing.T, mailer *fakeMailer, notify bool) (*Notifier, *Repository, *models.User, []models.Alert) {
	t.Helper()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	user := seedUser(t, conn)
	if !notify {
		require.NoError(t, conn.Model(&models.User{}).Where("id = ?", user.ID).Update("notify_low_stock", false).Error)
	}
	engine := newEngine(t, EngineParams{
		Items:  &stubView{items: []aggregate.FlatItem{flat("Bolt", "B-1", 0, 0), flat("Nut", "", 7, 0), flat("Washer <XL>", "W-1", 2, 0)}},
		Alerts: repo,
	})
	result, err := engine.GenerateAlerts(context.Background(), user.ID)
	require.NoError(t, err)

	notifier, err := NewNotifier(NotifierParams{
		Alerts:      repo,
		Users:       userLookup{conn: conn},
		Mailer:      mailer,
		FrontendURL: "https://app.example.com/",
	})
	require.NoError(t, err)
	return notifier, repo, user, result.Created
}

func TestNotifierSendsOneEmailAndMarksAlerts(t *testing.T) {
	ctx := context.Background()
	mailer := &fakeMailer{}
	notifier, repo, user, created := setupNotifier(t, mailer, true)

	require.NoError(t, notifier.Handle(ctx, createdEnvelope(t, user.ID, created)))
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "owner@example.com", msg.To)
	assert.Equal(t, "Low Stock Alert - 3 Items Need Attention", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Critical Alerts (2)")
	assert.Contains(t, msg.HTMLBody, "Low Stock Items (1)")
	assert.Contains(t, msg.HTMLBody, "OUT OF STOCK")
	assert.Contains(t, msg.HTMLBody, "Washer &lt;XL&gt;")
	assert.Contains(t, msg.HTMLBody, "SKU: N/A")
	assert.Contains(t, msg.HTMLBody, "https://app.example.com/alerts")
	assert.True(t, strings.HasPrefix(msg.TextBody, "Hi Owner,"))

	rows, err := repo.FindByIDs(ctx, user.ID, []uuid.UUID{created[0].ID, created[1].ID, created[2].ID})
	require.NoError(t, err)
	for _, row := range rows {
		assert.True(t, row.EmailSent)
		assert.NotNil(t, row.EmailSentAt)
	}

	require.NoError(t, notifier.Handle(ctx, createdEnvelope(t, user.ID, created)))
	assert.Len(t, mailer.sent, 1, "already emailed alerts are not sent twice")
}

func TestNotifierRespectsPreference(t *testing.T) {
	mailer := &fakeMailer{}
	notifier, _, user, created := setupNotifier(t, mailer, false)

	require.NoError(t, notifier.Handle(context.Background(), createdEnvelope(t, user.ID, created)))
	assert.Empty(t, mailer.sent)
}

func TestNotifierSendFailureLeavesAlertsPending(t *testing.T) {
	ctx := context.Background()
	mailer := &fakeMailer{err: errors.New("sendgrid 500")}
	notifier, repo, user, created := setupNotifier(t, mailer, true)

	require.Error(t, notifier.Handle(ctx, createdEnvelope(t, user.ID, created)))
	rows, err := repo.FindByIDs(ctx, user.ID, []uuid.UUID{created[0].ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].EmailSent)
}

type stubHandler struct {
	err    error
	called int
}

func (s *stubHandler) Handle(context.Context, events.PayloadEnvelope) error {
	s.called++
	return s.err
}

type stubManager struct {
	already bool
	err     error
	checked []uuid.UUID
	deleted []uuid.UUID
}

func (s *stubManager) CheckAndMarkProcessed(_ context.Context, _ string, id uuid.UUID) (bool, error) {
	s.checked = append(s.checked, id)
	return s.already, s.err
}

func (s *stubManager) Delete(_ context.Context, _ string, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func newTestConsumer(handler *stubHandler, manager *stubManager) *Consumer {
	return &Consumer{handler: handler, manager: manager, logg: nopLogger()}
}

func alertMessage(t *testing.T, eventType events.EventType) *gcppubsub.Message {
	t.Helper()
	env := createdEnvelope(t, uuid.New(), nil)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return &gcppubsub.Message{ID: "msg-1", Data: data, Attributes: env.Attributes(eventType)}
}

func TestConsumerProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("handles alerts.created", func(t *testing.T) {
		handler, manager := &stubHandler{}, &stubManager{}
		res := newTestConsumer(handler, manager).process(ctx, alertMessage(t, events.EventAlertsCreated))
		assert.False(t, res.nack)
		assert.Equal(t, 1, handler.called)
		assert.Len(t, manager.checked, 1)
	})

	t.Run("skips other events", func(t *testing.T) {
		handler, manager := &stubHandler{}, &stubManager{}
		res := newTestConsumer(handler, manager).process(ctx, alertMessage(t, "sheets.synced"))
		assert.False(t, res.nack)
		assert.Zero(t, handler.called)
		assert.Empty(t, manager.checked)
	})

	t.Run("acks garbage", func(t *testing.T) {
		handler, manager := &stubHandler{}, &stubManager{}
		msg := &gcppubsub.Message{Data: []byte("nope"), Attributes: map[string]string{events.AttrEventType: string(events.EventAlertsCreated)}}
		res := newTestConsumer(handler, manager).process(ctx, msg)
		assert.False(t, res.nack)
		assert.Zero(t, handler.called)
	})

	t.Run("duplicate delivery", func(t *testing.T) {
		handler, manager := &stubHandler{}, &stubManager{already: true}
		res := newTestConsumer(handler, manager).process(ctx, alertMessage(t, events.EventAlertsCreated))
		assert.False(t, res.nack)
		assert.Zero(t, handler.called)
	})

	t.Run("handler failure nacks and forgets", func(t *testing.T) {
		handler, manager := &stubHandler{err: errors.New("smtp")}, &stubManager{}
		res := newTestConsumer(handler, manager).process(ctx, alertMessage(t, events.EventAlertsCreated))
		assert.True(t, res.nack)
		assert.Len(t, manager.deleted, 1)
	})

	t.Run("idempotency store failure nacks", func(t *testing.T) {
		handler, manager := &stubHandler{}, &stubManager{err: errors.New("redis")}
		res := newTestConsumer(handler, manager).process(ctx, alertMessage(t, events.EventAlertsCreated))
		assert.True(t, res.nack)
		assert.Zero(t, handler.called)
	})
}
