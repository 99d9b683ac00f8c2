package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finxan/finxan-backend/internal/aggregate"
	"github.com/finxan/finxan-backend/pkg/db"
	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/finxan/finxan-backend/pkg/events"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/metrics"
	"github.com/finxan/finxan-backend/pkg/redis"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	scanLockScope        = "alert-scan"
	defaultScanLockTTL   = 2 * time.Minute
	defaultNotifyTimeout = 10 * time.Second
)

type viewLoader interface {
	Aggregate(ctx context.Context, userID uuid.UUID) (*aggregate.View, error)
}

type alertStore interface {
	HasActive(ctx context.Context, userID uuid.UUID, dedupKey string) (bool, error)
	Create(ctx context.Context, alert *models.Alert) error
}

// Publisher sends alert events to the notification topic.
type Publisher interface {
	PublishAlert(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// EngineParams wires the alert engine. Locker and Publisher are optional.
type EngineParams struct {
	Items         viewLoader
	Alerts        alertStore
	Locker        redis.Locker
	Publisher     Publisher
	Metrics       *metrics.AlertMetrics
	Logger        *logger.Logger
	Rules         Rules
	LockTTL       time.Duration
	NotifyTimeout time.Duration
}

// Engine generates alerts for one user at a time.
type Engine struct {
	items         viewLoader
	alerts        alertStore
	locker        redis.Locker
	publisher     Publisher
	metrics       *metrics.AlertMetrics
	logg          *logger.Logger
	rules         Rules
	lockTTL       time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
}

// GenerateResult reports what a scan created. Skipped is set when another scan for the
// same user held the lock.
type GenerateResult struct {
	Created   []models.Alert
	Evaluated int
	Skipped   bool
	Notified  bool
}

func (r *GenerateResult) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Created)
}

func NewEngine(p EngineParams) (*Engine, error) {
	if p.Items == nil {
		return nil, fmt.Errorf("inventory view loader required")
	}
	if p.Alerts == nil {
		return nil, fmt.Errorf("alert store required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	lockTTL := p.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultScanLockTTL
	}
	notifyTimeout := p.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &Engine{
		items:         p.Items,
		alerts:        p.Alerts,
		locker:        p.Locker,
		publisher:     p.Publisher,
		metrics:       p.Metrics,
		logg:          logg,
		rules:         p.Rules.normalize(),
		lockTTL:       lockTTL,
		notifyTimeout: notifyTimeout,
		now:           time.Now,
	}, nil
}

// GenerateAlerts scans the user's in-scope items and creates an active alert for every
// breaching product that does not already have one. Running it twice without inventory
// changes creates nothing the second time. A failing item is logged and skipped; the result
// always covers the alerts that were created and the returned error joins the item failures.
func (e *Engine) GenerateAlerts(ctx context.Context, userID uuid.UUID) (*GenerateResult, error) {
	start := e.now()
	ctx = e.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "job": scanLockScope})
	defer func() { e.metrics.ObserveScan(e.now().Sub(start)) }()

	release, acquired := e.lock(ctx, userID)
	if !acquired {
		e.logg.Info(ctx, "alert scan already running")
		return &GenerateResult{Skipped: true}, nil
	}
	defer release()

	view, err := e.items.Aggregate(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{Evaluated: len(view.Items)}
	var errs error
	for _, item := range view.Items {
		alert, err := e.consider(ctx, userID, item)
		if err != nil {
			e.logg.WarnErr(e.logg.WithField(ctx, "product", item.ProductName), "alert item skipped", err)
			errs = multierr.Append(errs, err)
			continue
		}
		if alert != nil {
			result.Created = append(result.Created, *alert)
			e.metrics.IncCreated(string(alert.AlertType))
		}
	}

	if len(result.Created) > 0 {
		result.Notified = e.notify(ctx, userID, result.Created)
	}
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"created": len(result.Created),
		"failed":  len(multierr.Errors(errs)),
	}), "alert scan finished")
	return result, errs
}

func (e *Engine) consider(ctx context.Context, userID uuid.UUID, item aggregate.FlatItem) (*models.Alert, error) {
	threshold := e.rules.ThresholdFor(item.LowStockThreshold)
	alertType, due := e.rules.Classify(item.Quantity, threshold)
	if !due {
		return nil, nil
	}
	key := DedupKey(item.SKU, item.ProductName)
	if key == "" {
		return nil, nil
	}

	exists, err := e.alerts.HasActive(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("check active alert: %w", err)
	}
	if exists {
		return nil, nil
	}

	alert := &models.Alert{
		UserID:          userID,
		ProductName:     item.ProductName,
		SKU:             item.SKU,
		DedupKey:        key,
		Category:        item.Category,
		CurrentQuantity: max(item.Quantity, 0),
		Threshold:       threshold,
		AlertType:       alertType,
		Status:          enums.AlertStatusActive,
		SourceType:      item.SourceType,
		SourceID:        item.SourceID,
	}
	if err := e.alerts.Create(ctx, alert); err != nil {
		if db.IsUniqueViolation(err, ActiveDedupIndex) {
			return nil, nil
		}
		return nil, fmt.Errorf("create alert: %w", err)
	}
	return alert, nil
}

// lock is best-effort: a Redis failure lets the scan proceed and the unique index decides.
func (e *Engine) lock(ctx context.Context, userID uuid.UUID) (func(), bool) {
	if e.locker == nil {
		return func() {}, true
	}
	key := e.locker.LockKey(scanLockScope, userID.String())
	owner := uuid.NewString()
	ok, err := e.locker.SetNX(ctx, key, owner, e.lockTTL)
	if err != nil {
		e.logg.WarnErr(ctx, "alert scan lock unavailable", err)
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := e.locker.ReleaseLock(context.WithoutCancel(ctx), key, owner); err != nil {
			e.logg.WarnErr(ctx, "release alert scan lock", err)
		}
	}, true
}

// notify publishes alerts.created. Failures are logged and swallowed.
func (e *Engine) notify(ctx context.Context, userID uuid.UUID, created []models.Alert) bool {
	if e.publisher == nil {
		return false
	}
	ids := make([]uuid.UUID, len(created))
	for i, alert := range created {
		ids[i] = alert.ID
	}
	env, err := events.NewEnvelope(userID, e.now(), events.AlertsCreated{UserID: userID, AlertIDs: ids})
	if err == nil {
		var data []byte
		if data, err = json.Marshal(env); err == nil {
			pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.notifyTimeout)
			defer cancel()
			_, err = e.publisher.PublishAlert(pubCtx, data, env.Attributes(events.EventAlertsCreated))
		}
	}
	if err != nil {
		e.metrics.IncNotifyFailure()
		e.logg.WarnErr(ctx, "alert notification not published", err)
		return false
	}
	return true
}
