// Package events defines the messages exchanged over Pub/Sub between the API, the cron
// worker and the notification worker.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EnvelopeVersion = 1

	// AttrEventType is the message attribute consumers route on.
	AttrEventType = "event_type"
	AttrUserID    = "user_id"
)

// EventType names a published event.
type EventType string

const (
	EventAlertsCreated EventType = "alerts.created"
)

// PayloadEnvelope is the stable wire structure of every published event.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	UserID     uuid.UUID       `json:"userId"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope wraps data under a fresh event id.
func NewEnvelope(userID uuid.UUID, occurredAt time.Time, data any) (PayloadEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode event data: %w", err)
	}
	return PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		UserID:     userID,
		Data:       raw,
	}, nil
}

// Attributes returns the Pub/Sub attributes for an envelope of the given type.
func (e PayloadEnvelope) Attributes(eventType EventType) map[string]string {
	return map[string]string{
		AttrEventType: string(eventType),
		AttrUserID:    e.UserID.String(),
	}
}

// ID parses the event id.
func (e PayloadEnvelope) ID() (uuid.UUID, error) {
	id, err := uuid.Parse(e.EventID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid event id: %w", err)
	}
	return id, nil
}

// Decode unmarshals the envelope data into v.
func (e PayloadEnvelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event data missing")
	}
	return json.Unmarshal(e.Data, v)
}

// AlertsCreated is published after an alert scan created at least one alert.
type AlertsCreated struct {
	UserID   uuid.UUID   `json:"userId"`
	AlertIDs []uuid.UUID `json:"alertIds"`
}
