package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/feriando/feriando-backend/pkg/logger"
)

const defaultExpiryBatch = 100

type staleOrderExpirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// OrderExpiryJobParams configure the stale order sweep.
type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    staleOrderExpirer
	OlderThan time.Duration
	Batch     int
}

// NewOrderExpiryJob builds the job that cancels orders whose payment never
// arrived, releasing their reserved stock.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.OlderThan <= 0 {
		return nil, fmt.Errorf("expiry window must be positive")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &orderExpiryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		olderThan: params.OlderThan,
		batch:     batch,
	}, nil
}

type orderExpiryJob struct {
	logg      *logger.Logger
	orders    staleOrderExpirer
	olderThan time.Duration
	batch     int
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	expired, err := j.orders.ExpireStale(ctx, j.olderThan, j.batch)
	if err != nil {
		return fmt.Errorf("expire stale orders: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return nil
}
