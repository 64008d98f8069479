package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
)

const (
	outboxRetentionName    = "outbox_retention"
	defaultOutboxRetention = 30 * 24 * time.Hour
)

// outboxPruner is satisfied by outbox.Repository.
type outboxPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxPruner
	// Retention is how long published rows are kept; zero means 30 days.
	Retention time.Duration
}

// outboxRetentionJob deletes published outbox rows once they age past the
// retention window. Rows still waiting for a sink are left alone however old.
type outboxRetentionJob struct {
	logg      *logger.Logger
	pruner    outboxPruner
	retention time.Duration
	clock     func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		pruner:    params.Repository,
		retention: params.Retention,
		clock:     time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionName }

func (j *outboxRetentionJob) cutoff() time.Time {
	return j.clock().UTC().Add(-j.retention)
}

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.cutoff()
	removed, err := j.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune outbox before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": removed,
	}), "published outbox rows pruned")
	return nil
}
