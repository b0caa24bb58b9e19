package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/feriando/feriando-backend/pkg/logger"
)

type stubExpirer struct {
	olderThan time.Duration
	limit     int
	expired   int
	err       error
	calls     int
}

func (s *stubExpirer) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	s.calls++
	s.olderThan = olderThan
	s.limit = limit
	return s.expired, s.err
}

func TestOrderExpiryJobRuns(t *testing.T) {
	expirer := &stubExpirer{expired: 3}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Orders:    expirer,
		OlderThan: time.Hour,
		Batch:     25,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "order-expiry" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.calls != 1 || expirer.olderThan != time.Hour || expirer.limit != 25 {
		t.Fatalf("unexpected sweep call %+v", expirer)
	}
}

func TestOrderExpiryJobDefaultsBatch(t *testing.T) {
	expirer := &stubExpirer{}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Orders:    expirer,
		OlderThan: time.Hour,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.limit != defaultExpiryBatch {
		t.Fatalf("expected default batch, got %d", expirer.limit)
	}
}

func TestOrderExpiryJobPropagatesFailure(t *testing.T) {
	expirer := &stubExpirer{err: errors.New("db down")}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Orders:    expirer,
		OlderThan: time.Hour,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep failure to propagate")
	}
}

func TestOrderExpiryJobValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: logg, Orders: &stubExpirer{}}); err == nil {
		t.Fatal("expected error for missing expiry window")
	}
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: logg, OlderThan: time.Hour}); err == nil {
		t.Fatal("expected error for missing order service")
	}
}
