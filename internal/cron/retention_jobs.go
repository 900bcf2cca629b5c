package cron

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	outboxRetentionDays       = 30
	outboxMinAttempts         = 10
	notificationRetentionDays = 90
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type notificationPurger interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// RetentionPolicy names a table sweep. Purge deletes rows created before
// cutoff and returns how many went.
type RetentionPolicy struct {
	Name   string
	Days   int
	Purge  func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	Fields map[string]any
}

// OutboxRetention purges published outbox rows. Rows still awaiting publish
// are kept unless they have failed minAttempts times.
func OutboxRetention(repo outboxPurger, days, minAttempts int) RetentionPolicy {
	if days <= 0 {
		days = outboxRetentionDays
	}
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	return RetentionPolicy{
		Name: "outbox-retention",
		Days: days,
		Purge: func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return repo.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
		},
		Fields: map[string]any{"min_attempts": minAttempts},
	}
}

// NotificationRetention purges inbox rows regardless of read state.
func NotificationRetention(repo notificationPurger, days int) RetentionPolicy {
	if days <= 0 {
		days = notificationRetentionDays
	}
	return RetentionPolicy{Name: "notification-cleanup", Days: days, Purge: repo.DeleteOlderThan}
}

type retentionJob struct {
	RetentionPolicy
	logg *logger.Logger
	db   txRunner
	now  func() time.Time
}

func NewRetentionJob(logg *logger.Logger, db txRunner, policy RetentionPolicy) (Job, error) {
	switch {
	case logg == nil:
		return nil, errors.New("logger required")
	case db == nil:
		return nil, errors.New("db runner required")
	case policy.Name == "" || policy.Purge == nil:
		return nil, errors.New("retention policy needs a name and a purge func")
	}
	return &retentionJob{RetentionPolicy: policy, logg: logg, db: db, now: time.Now}, nil
}

func (j *retentionJob) Name() string { return j.RetentionPolicy.Name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.Days)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.Purge(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}

	fields := map[string]any{"cutoff": cutoff, "retention_days": j.Days, "rows_deleted": deleted}
	maps.Copy(fields, j.Fields)
	j.logg.Info(j.logg.WithFields(ctx, fields), "retention cleanup complete")
	return nil
}
