package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
)

const defaultRetentionDays = 30

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxStore interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
	DeleteTerminalBefore(tx *gorm.DB, cutoff time.Time, maxAttempts int) (int64, error)
	CountBacklog(ctx context.Context, maxAttempts int) (pending, terminal int64, err error)
}

type backlogRecorder interface {
	SetBacklog(pending, terminal int64)
}

// OutboxRetentionParams configures the outbox purge.
type OutboxRetentionParams struct {
	Logger     *logger.Logger
	Tx         txRunner
	Repository outboxStore
	// RetentionDays applies to published rows; terminal rows are kept twice as long.
	RetentionDays int
	MaxAttempts   int
	Clock         func() time.Time
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	tx          txRunner
	repo        outboxStore
	retention   time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewOutboxRetentionJob deletes delivered events and long-parked terminal events.
func NewOutboxRetentionJob(params OutboxRetentionParams) (Job, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &outboxRetentionJob{
		logg:        logg,
		tx:          params.Tx,
		repo:        params.Repository,
		retention:   time.Duration(days) * 24 * time.Hour,
		maxAttempts: params.MaxAttempts,
		now:         now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	publishedCutoff := now.Add(-j.retention)
	terminalCutoff := now.Add(-2 * j.retention)

	var published, terminal int64
	err := j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if published, err = j.repo.DeletePublishedBefore(tx, publishedCutoff); err != nil {
			return err
		}
		terminal, err = j.repo.DeleteTerminalBefore(tx, terminalCutoff, j.maxAttempts)
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"published_cutoff": publishedCutoff,
		"terminal_cutoff":  terminalCutoff,
		"published_purged": published,
		"terminal_purged":  terminal,
	}), "outbox.retention_complete")
	return nil
}

type outboxBacklogJob struct {
	logg        *logger.Logger
	repo        outboxStore
	recorder    backlogRecorder
	maxAttempts int
}

// NewOutboxBacklogJob reports how many events wait for delivery and how many were parked.
func NewOutboxBacklogJob(logg *logger.Logger, repo outboxStore, recorder backlogRecorder, maxAttempts int) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &outboxBacklogJob{logg: logg, repo: repo, recorder: recorder, maxAttempts: maxAttempts}, nil
}

func (j *outboxBacklogJob) Name() string { return "outbox-backlog" }

func (j *outboxBacklogJob) Run(ctx context.Context) error {
	pending, terminal, err := j.repo.CountBacklog(ctx, j.maxAttempts)
	if err != nil {
		return fmt.Errorf("outbox backlog: %w", err)
	}
	if j.recorder != nil {
		j.recorder.SetBacklog(pending, terminal)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"pending":  pending,
		"terminal": terminal,
	})
	if terminal > 0 {
		j.logg.Warn(logCtx, "outbox.terminal_events_parked")
		return nil
	}
	j.logg.Info(logCtx, "outbox.backlog")
	return nil
}
