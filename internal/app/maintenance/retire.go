package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nferrante/accesshub/internal/services"
	"github.com/nferrante/accesshub/pkg/logger"
	"github.com/nferrante/accesshub/pkg/metrics"
)

const (
	defaultRetireSchedule = "@hourly"
	defaultPruneSchedule  = "@daily"
	defaultRetention      = 30 * 24 * time.Hour
	jobTimeout            = 5 * time.Minute
)

// Janitor runs the background hygiene jobs: retiring expired open invitations
// so the (account, email) slot frees up without waiting for the next create,
// and pruning read notifications past the retention window. Correctness never
// depends on it; expiry is always derived on read.
type Janitor struct {
	store         *services.InvitationStore
	notifications *services.NotificationService

	cron           *cron.Cron
	now            func() time.Time
	retention      time.Duration
	retireSchedule string
	pruneSchedule  string
	log            *zap.Logger
}

// JanitorOption customises a Janitor.
type JanitorOption func(*Janitor)

// WithNow overrides the clock, primarily for tests.
func WithNow(now func() time.Time) JanitorOption {
	return func(j *Janitor) {
		if now != nil {
			j.now = now
		}
	}
}

// WithSchedules overrides the cron expressions for the two jobs. Empty
// strings keep the defaults.
func WithSchedules(retire, prune string) JanitorOption {
	return func(j *Janitor) {
		if retire != "" {
			j.retireSchedule = retire
		}
		if prune != "" {
			j.pruneSchedule = prune
		}
	}
}

// WithNotificationRetention sets how long read notifications are kept.
func WithNotificationRetention(d time.Duration) JanitorOption {
	return func(j *Janitor) {
		if d > 0 {
			j.retention = d
		}
	}
}

// NewJanitor constructs a Janitor. The notification service may be nil, in
// which case only invitation retirement runs.
func NewJanitor(store *services.InvitationStore, notifications *services.NotificationService, opts ...JanitorOption) (*Janitor, error) {
	if store == nil {
		return nil, errors.New("maintenance: invitation store is required")
	}

	j := &Janitor{
		store:          store,
		notifications:  notifications,
		now:            time.Now,
		retention:      defaultRetention,
		retireSchedule: defaultRetireSchedule,
		pruneSchedule:  defaultPruneSchedule,
		log:            logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Start schedules the jobs and begins running them.
func (j *Janitor) Start() error {
	if j.cron != nil {
		return errors.New("maintenance: already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(j.retireSchedule, j.runJob("retire expired invitations", j.retireExpiredJob)); err != nil {
		return fmt.Errorf("maintenance: schedule retire job: %w", err)
	}
	if j.notifications != nil {
		if _, err := c.AddFunc(j.pruneSchedule, j.runJob("prune notifications", j.pruneNotificationsJob)); err != nil {
			return fmt.Errorf("maintenance: schedule prune job: %w", err)
		}
	}

	j.cron = c
	c.Start()
	j.log.Info("maintenance jobs scheduled",
		zap.String("retire_schedule", j.retireSchedule),
		zap.String("prune_schedule", j.pruneSchedule),
	)
	return nil
}

// Stop halts the scheduler and waits for any running job to finish, bounded
// by the context.
func (j *Janitor) Stop(ctx context.Context) {
	if j.cron == nil {
		return
	}
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
	j.cron = nil
}

// RunOnce executes both jobs immediately, combining their failures.
func (j *Janitor) RunOnce(ctx context.Context) error {
	_, retireErr := j.RetireExpired(ctx)

	var pruneErr error
	if j.notifications != nil {
		_, pruneErr = j.PruneNotifications(ctx)
	}
	return multierr.Combine(retireErr, pruneErr)
}

// RetireExpired clears the open marker of every expired, unresolved
// invitation and reports how many were retired. Rows that another caller
// resolves mid-scan are skipped by the conditional update.
func (j *Janitor) RetireExpired(ctx context.Context) (int, error) {
	now := j.now().UTC()

	rows, err := j.store.ListOpenExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	var (
		retired int
		errs    error
	)
	for i := range rows {
		ok, err := j.store.RetireIfExpired(ctx, rows[i].ID, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("retire invitation %s: %w", rows[i].ID, err))
			continue
		}
		if ok {
			retired++
			metrics.InvitationsRetired.Inc()
		}
	}

	if retired > 0 {
		j.log.Info("retired expired invitations", zap.Int("count", retired))
	}
	return retired, errs
}

// PruneNotifications removes read notifications older than the retention
// window.
func (j *Janitor) PruneNotifications(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	pruned, err := j.notifications.PruneRead(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		j.log.Info("pruned read notifications", zap.Int64("count", pruned))
	}
	return pruned, nil
}

func (j *Janitor) runJob(name string, job func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := job(ctx); err != nil {
			j.log.Error("maintenance job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

func (j *Janitor) retireExpiredJob(ctx context.Context) error {
	_, err := j.RetireExpired(ctx)
	return err
}

func (j *Janitor) pruneNotificationsJob(ctx context.Context) error {
	_, err := j.PruneNotifications(ctx)
	return err
}
