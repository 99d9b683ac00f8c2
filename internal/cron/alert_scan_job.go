package cron

import (
	"context"
	"fmt"

	"github.com/finxan/finxan-backend/internal/alerts"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

type tenantLister interface {
	UserIDsWithSources(ctx context.Context) ([]uuid.UUID, error)
}

type alertGenerator interface {
	GenerateAlerts(ctx context.Context, userID uuid.UUID) (*alerts.GenerateResult, error)
}

type AlertScanJobParams struct {
	Logger  *logger.Logger
	Tenants tenantLister
	Engine  alertGenerator
}

// NewAlertScanJob runs the alert engine for every user owning at least one source.
func NewAlertScanJob(params AlertScanJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("source repository required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("alert engine required")
	}
	return &alertScanJob{logg: params.Logger, tenants: params.Tenants, engine: params.Engine}, nil
}

type alertScanJob struct {
	logg    *logger.Logger
	tenants tenantLister
	engine  alertGenerator
}

func (j *alertScanJob) Name() string { return "alert-scan" }

func (j *alertScanJob) Run(ctx context.Context) error {
	userIDs, err := j.tenants.UserIDsWithSources(ctx)
	if err != nil {
		return fmt.Errorf("list users with sources: %w", err)
	}

	var errs error
	created, busy := 0, 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		userCtx := j.logg.WithUserID(ctx, userID.String())
		result, err := j.engine.GenerateAlerts(userCtx, userID)
		created += result.Count()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("scan user %s: %w", userID, err))
			continue
		}
		if result.Skipped {
			busy++
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"users":   len(userIDs),
		"created": created,
		"busy":    busy,
	}), "alert scan complete")
	return errs
}
