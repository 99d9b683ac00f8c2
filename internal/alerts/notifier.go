package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/events"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/metrics"
	"github.com/finxan/finxan-backend/pkg/sendgrid"
	"github.com/google/uuid"
)

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type emailAlertStore interface {
	FindByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Alert, error)
	MarkEmailSent(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type NotifierParams struct {
	Alerts      emailAlertStore
	Users       userFinder
	Mailer      sendgrid.Mailer
	FrontendURL string
	Metrics     *metrics.AlertMetrics
	Logger      *logger.Logger
}

// Notifier emails a user about newly created alerts.
type Notifier struct {
	alerts      emailAlertStore
	users       userFinder
	mailer      sendgrid.Mailer
	frontendURL string
	metrics     *metrics.AlertMetrics
	logg        *logger.Logger
	now         func() time.Time
}

func NewNotifier(p NotifierParams) (*Notifier, error) {
	if p.Alerts == nil {
		return nil, fmt.Errorf("alerts repository required")
	}
	if p.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if p.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Notifier{
		alerts:      p.Alerts,
		users:       p.Users,
		mailer:      p.Mailer,
		frontendURL: p.FrontendURL,
		metrics:     p.Metrics,
		logg:        logg,
		now:         time.Now,
	}, nil
}

// Handle sends one email for an alerts.created event and marks the alerts as emailed.
// Users who turned off low-stock notifications, and alerts already emailed, are skipped.
func (n *Notifier) Handle(ctx context.Context, envelope events.PayloadEnvelope) error {
	var payload events.AlertsCreated
	if err := envelope.Decode(&payload); err != nil {
		return fmt.Errorf("decode alerts.created: %w", err)
	}
	if payload.UserID == uuid.Nil {
		payload.UserID = envelope.UserID
	}
	ctx = n.logg.WithUserID(ctx, payload.UserID.String())

	user, err := n.users.FindByID(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !user.NotifyLowStock {
		n.logg.Info(ctx, "low stock emails disabled by user")
		return nil
	}
	if strings.TrimSpace(user.Email) == "" {
		n.logg.Warn(ctx, "user has no email address")
		return nil
	}

	rows, err := n.alerts.FindByIDs(ctx, payload.UserID, payload.AlertIDs)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	pending := make([]models.Alert, 0, len(rows))
	for _, row := range rows {
		if !row.EmailSent {
			pending = append(pending, row)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	subject, html, text, err := renderEmail(user, pending, n.frontendURL)
	if err != nil {
		return err
	}
	msg := sendgrid.Message{To: user.Email, ToName: user.DisplayName, Subject: subject, HTMLBody: html, TextBody: text}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.metrics.IncNotifyFailure()
		return fmt.Errorf("send alert email: %w", err)
	}

	ids := make([]uuid.UUID, len(pending))
	for i, row := range pending {
		ids[i] = row.ID
	}
	if err := n.alerts.MarkEmailSent(ctx, ids, n.now().UTC()); err != nil {
		return fmt.Errorf("mark alerts emailed: %w", err)
	}
	n.logg.Info(n.logg.WithField(ctx, "alerts", len(ids)), "alert email sent")
	return nil
}
