package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
)

const (
	defaultPendingTTL   = 7 * 24 * time.Hour
	defaultExpiryBatch  = 100
	orderPendingTTLName = "order_pending_ttl"
)

// pendingExpirer is satisfied by orders.Service.
type pendingExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// OrderTTLJobParams configure the pending order expiry job.
type OrderTTLJobParams struct {
	Logger    *logger.Logger
	Orders    pendingExpirer
	TTL       time.Duration
	BatchSize int
}

// NewOrderTTLJob builds the job that cancels unpaid orders left pending past
// the TTL. Cancellation goes through the lifecycle controller, so stock is
// credited back and history records the system actor.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &orderTTLJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	orders pendingExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return orderPendingTTLName }

// Run drains expired orders batch by batch. A batch that expires nothing ends
// the run, which also stops it when every remaining row fails.
func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		expired, err := j.orders.ExpirePending(ctx, cutoff, j.batch)
		total += expired
		if err != nil {
			return fmt.Errorf("expire pending orders: %w", err)
		}
		if expired < j.batch {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"orders_expired": total,
	}), "pending order expiry complete")
	return nil
}
