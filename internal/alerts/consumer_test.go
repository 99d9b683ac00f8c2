package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/finxan/finxan-backend/pkg/events"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdempotency struct {
	processed map[uuid.UUID]bool
	deleteErr error
	deleted   []uuid.UUID
}

func (f *fakeIdempotency) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if f.processed == nil {
		f.processed = map[uuid.UUID]bool{}
	}
	if f.processed[eventID] {
		return true, nil
	}
	f.processed[eventID] = true
	return false, nil
}

func (f *fakeIdempotency) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	f.deleted = append(f.deleted, eventID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.processed, eventID)
	return nil
}

type fakeHandler struct {
	err   error
	calls int
}

func (f *fakeHandler) Handle(context.Context, events.PayloadEnvelope) error {
	f.calls++
	return f.err
}

func alertsMessage(t *testing.T) (*gcppubsub.Message, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	env, err := events.NewEnvelope(userID, time.Now(), events.AlertsCreated{UserID: userID, AlertIDs: []uuid.UUID{uuid.New()}})
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	id, err := env.ID()
	require.NoError(t, err)
	return &gcppubsub.Message{ID: "m-1", Data: data, Attributes: env.Attributes(events.EventAlertsCreated)}, id
}

func TestConsumerProcessHandlesOnce(t *testing.T) {
	handler := &fakeHandler{}
	consumer := &Consumer{handler: handler, manager: &fakeIdempotency{}, logg: nopLogger()}
	msg, _ := alertsMessage(t)

	assert.False(t, consumer.process(context.Background(), msg).nack)
	assert.False(t, consumer.process(context.Background(), msg).nack)
	assert.Equal(t, 1, handler.calls)
}

func TestConsumerProcessClearsMarkerOnFailure(t *testing.T) {
	handler := &fakeHandler{err: errors.New("sendgrid down")}
	manager := &fakeIdempotency{}
	consumer := &Consumer{handler: handler, manager: manager, logg: nopLogger()}
	msg, eventID := alertsMessage(t)

	assert.True(t, consumer.process(context.Background(), msg).nack)
	assert.Equal(t, []uuid.UUID{eventID}, manager.deleted)

	handler.err = nil
	assert.False(t, consumer.process(context.Background(), msg).nack)
	assert.Equal(t, 2, handler.calls, "redelivery is handled again")
}

func TestConsumerProcessLogsFailedMarkerRollback(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	manager := &fakeIdempotency{deleteErr: errors.New("redis timeout")}
	consumer := &Consumer{handler: &fakeHandler{err: errors.New("sendgrid down")}, manager: manager, logg: logg}
	msg, _ := alertsMessage(t)

	assert.True(t, consumer.process(context.Background(), msg).nack)
	assert.Contains(t, buf.String(), "processed marker not cleared")
	assert.Contains(t, buf.String(), "redis timeout")
}

func TestConsumerProcessSkipsOtherEvents(t *testing.T) {
	handler := &fakeHandler{}
	consumer := &Consumer{handler: handler, manager: &fakeIdempotency{}, logg: nopLogger()}
	msg := &gcppubsub.Message{ID: "m-2", Data: []byte("{}"), Attributes: map[string]string{events.AttrEventType: "files.uploaded"}}

	assert.False(t, consumer.process(context.Background(), msg).nack)
	assert.Zero(t, handler.calls)
}
