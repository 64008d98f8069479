package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/config"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/metrics"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	sendTimeout         = 15 * time.Second
	idleCeiling         = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
	guardConsumer       = "outbox-publisher"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// Sink delivers one encoded outbox row to a broker. The key groups events of
// one aggregate so consumers see them in order.
type Sink interface {
	Name() string
	Ping(context.Context) error
	Publish(ctx context.Context, topic, key string, data []byte, attributes map[string]string) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending(ctx context.Context, maxAttempts int) (int64, error)
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// publishGuard remembers rows already handed to the sink, so a row whose
// published_at update was rolled back is not delivered twice.
type publishGuard interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	Sink          Sink
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Guard         publishGuard
	Metrics       *metrics.OutboxMetrics
}

// Service drains the outbox table into the configured sink.
type Service struct {
	logg     *logger.Logger
	db       dbClient
	repo     outboxRepository
	sink     Sink
	registry registryResolver
	dlq      dlqRepository
	guard    publishGuard
	metrics  *metrics.OutboxMetrics

	batchSize   int
	maxAttempts int
	poll        time.Duration
	clock       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	required := []struct {
		missing bool
		name    string
	}{
		{params.Config == nil, "config"},
		{params.Logger == nil, "logger"},
		{params.DB == nil, "database client"},
		{params.Sink == nil, "outbox sink"},
		{params.Repository == nil, "outbox repository"},
		{params.Registry == nil, "event registry"},
		{params.DLQRepository == nil, "dlq repository"},
	}
	for _, dep := range required {
		if dep.missing {
			return nil, fmt.Errorf("%s is required", dep.name)
		}
	}

	cfg := params.Config.Outbox
	svc := &Service{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		sink:        params.Sink,
		registry:    params.Registry,
		dlq:         params.DLQRepository,
		guard:       params.Guard,
		metrics:     params.Metrics,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		poll:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		clock:       time.Now,
	}
	if svc.batchSize <= 0 {
		svc.batchSize = fallbackBatchSize
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = fallbackMaxAttempts
	}
	if svc.poll <= 0 {
		svc.poll = fallbackPoll
	}
	return svc, nil
}

// Run polls until ctx is canceled. A full batch is followed immediately by
// the next one; an empty batch waits one poll interval; a failing batch
// waits twice as long as the previous failure, capped at idleCeiling.
func (s *Service) Run(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{s.sink.Name(), s.sink.Ping},
	}
	for _, c := range checks {
		if err := c.ping(ctx); err != nil {
			s.logg.Error(ctx, c.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", c.name, err)
		}
	}

	wait := s.poll
	for ctx.Err() == nil {
		busy, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait = min(wait*2, idleCeiling)
		case busy:
			wait = s.poll
			s.reportPending(ctx)
			continue
		default:
			wait = s.poll
			s.reportPending(ctx)
		}
		if err := pause(ctx, wait+rand.N(jitterWindow)); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "outbox publisher stopping")
	return ctx.Err()
}

func (s *Service) reportPending(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	pending, err := s.repo.CountPending(ctx, s.maxAttempts)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox pending count failed")
		return
	}
	s.metrics.SetPending(pending)
}

// verdict is what happened to one row on this pass.
type verdict int

const (
	verdictSent verdict = iota
	verdictRetry
	verdictDead
)

type delivery struct {
	verdict verdict
	reason  enums.OutboxDLQErrorReason
	topic   string
	err     error
}

// processBatch locks up to batchSize rows, delivers them in order and
// records every outcome in the same transaction. It reports whether any row
// was claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	claimed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(rows) > 0
		for _, row := range rows {
			if err := s.settle(ctx, tx, row, s.deliver(ctx, row)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (s *Service) deliver(ctx context.Context, row models.OutboxEvent) delivery {
	resolved, err := s.registry.Resolve(row)
	if err != nil {
		return delivery{verdict: verdictDead, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}
	topic := resolved.Descriptor.Topic
	if topic == "" {
		return delivery{verdict: verdictDead, reason: enums.OutboxDLQReasonUnroutable, err: fmt.Errorf("no topic configured for %s", row.EventType)}
	}

	err = s.send(ctx, row, topic, resolved.Attributes(row))
	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		return delivery{verdict: verdictSent, topic: topic}
	case errors.As(err, &nonRetryable):
		return delivery{verdict: verdictDead, reason: enums.OutboxDLQReasonNonRetryable, topic: topic, err: err}
	case row.AttemptCount+1 >= s.maxAttempts:
		return delivery{verdict: verdictDead, reason: enums.OutboxDLQReasonMaxAttempts, topic: topic, err: fmt.Errorf("max publish attempts reached: %w", err)}
	default:
		return delivery{verdict: verdictRetry, topic: topic, err: err}
	}
}

// send hands the row to the sink unless the guard shows an earlier pass
// already did. The claim is dropped again when the sink refuses the row.
func (s *Service) send(ctx context.Context, row models.OutboxEvent, topic string, attributes map[string]string) error {
	if s.guard != nil {
		fresh, err := s.guard.Claim(ctx, guardConsumer, row.ID)
		if err != nil {
			return fmt.Errorf("check publish guard: %w", err)
		}
		if !fresh {
			s.logg.Info(s.logg.WithField(ctx, "outbox_id", row.ID.String()), "outbox event already delivered")
			return nil
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	err := s.sink.Publish(sendCtx, topic, row.AggregateID.String(), row.Payload, attributes)
	if err != nil && s.guard != nil {
		err = multierr.Append(err, s.guard.Release(ctx, guardConsumer, row.ID))
	}
	return err
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, d delivery) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
		"sink":          s.sink.Name(),
		"topic":         d.topic,
	})

	switch d.verdict {
	case verdictSent:
		if err := s.repo.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		s.metrics.IncPublished(string(row.EventType))
		s.logg.Info(logCtx, "outbox event published")

	case verdictRetry:
		s.logg.Warn(s.logg.WithField(logCtx, "error", d.err.Error()), "outbox publish failed, will retry")
		if err := s.repo.MarkFailedTx(tx, row.ID, d.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", row.ID, err)
		}
		s.metrics.IncFailed(string(row.EventType))

	case verdictDead:
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"error":        d.err.Error(),
			"error_reason": d.reason,
		}), "outbox event dead-lettered")
		message := d.err.Error()
		entry := models.OutboxDLQ{
			EventID:       row.ID,
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			Payload:       row.Payload,
			ErrorReason:   d.reason,
			ErrorMessage:  &message,
			AttemptCount:  row.AttemptCount,
			FailedAt:      s.clock().UTC(),
		}
		if err := s.dlq.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("insert dlq %s: %w", row.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, row.ID, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", row.ID, err)
		}
		s.metrics.IncDeadLettered(string(d.reason))
	}
	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
