package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feriando/feriando-backend/pkg/db"
	"github.com/feriando/feriando-backend/pkg/db/models"
	"github.com/feriando/feriando-backend/pkg/enums"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
	"github.com/feriando/feriando-backend/pkg/logger"
	"github.com/feriando/feriando-backend/pkg/mercadopago"
	"github.com/feriando/feriando-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type duplicateGuard interface {
	CheckAndMark(ctx context.Context, paymentID string) (bool, error)
	Release(ctx context.Context, paymentID string) error
}

type ledger interface {
	ApplyPaymentResult(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paymentID string, status enums.PaymentStatus) error
}

// Notification is the decoded MercadoPago webhook body. Only the payment id
// is trusted; the authoritative status is re-fetched from the processor.
type Notification struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Outcome tells the webhook endpoint how to acknowledge the delivery. All
// outcomes map to a success HTTP status; only a non-nil error should make
// the processor redeliver.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "ignored-duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeMalformed Outcome = "malformed"
)

// Service reconciles processor notifications with the order ledger.
type Service interface {
	HandleNotification(ctx context.Context, notification Notification) (Outcome, error)
}

type service struct {
	tx      txRunner
	guard   duplicateGuard
	gateway mercadopago.Gateway
	repo    Repository
	orders  ledger
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
}

// NewService builds the payment reconciler.
func NewService(
	tx txRunner,
	guard duplicateGuard,
	gateway mercadopago.Gateway,
	repo Repository,
	orders ledger,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if guard == nil {
		return nil, fmt.Errorf("webhook guard required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if repo == nil {
		return nil, fmt.Errorf("processed payments repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:      tx,
		guard:   guard,
		gateway: gateway,
		repo:    repo,
		orders:  orders,
		metrics: paymentMetrics,
		logg:    logg,
	}, nil
}

// HandleNotification applies at most one settled ledger effect per payment
// id. The Redis guard filters repeats cheaply; the processed_payments insert
// in the same transaction as the transition is the correctness boundary.
// Pending and in-process fetches never consume the payment id: the processor
// re-notifies the same id once the payment settles, and that delivery must
// still be able to reach the ledger. On any retryable failure the guard key
// is released so the processor's redelivery can run the payment again.
func (s *service) HandleNotification(ctx context.Context, notification Notification) (Outcome, error) {
	if notification.Type != "payment" {
		return OutcomeIgnored, nil
	}
	paymentID := notification.Data.ID
	if paymentID == "" {
		return OutcomeMalformed, nil
	}

	logCtx := s.logg.WithPaymentID(ctx, paymentID)
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveReconcile(time.Since(start))
		}
	}()

	seen, err := s.guard.CheckAndMark(ctx, paymentID)
	if err != nil {
		// Redis being down must not drop payments. The unique constraint
		// still blocks duplicate application.
		s.logg.Warn(logCtx, "webhook guard unavailable, relying on processed_payments constraint")
	} else if seen {
		s.countDuplicate()
		s.logg.Info(logCtx, "duplicate payment notification filtered")
		return OutcomeDuplicate, nil
	}

	info, err := s.gateway.FetchStatus(ctx, paymentID)
	if err != nil {
		s.releaseGuard(ctx, paymentID)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payment status")
	}

	orderID, err := uuid.Parse(info.OrderID)
	if err != nil {
		// No order will ever match this reference, so a retry is pointless.
		s.logg.Error(logCtx, "payment references no known order", err)
		return OutcomeIgnored, nil
	}

	settled := info.Status == enums.PaymentStatusApproved || info.Status == enums.PaymentStatusRejected

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if settled {
			if err := s.repo.WithTx(tx).Insert(ctx, &models.ProcessedPayment{
				PaymentID: paymentID,
				OrderID:   orderID,
				Status:    info.Status,
			}); err != nil {
				return err
			}
		}
		return s.orders.ApplyPaymentResult(ctx, tx, orderID, paymentID, info.Status)
	})
	if !settled {
		// The same payment id will notify again once it settles.
		s.releaseGuard(ctx, paymentID)
	}
	if err == nil {
		if s.metrics != nil {
			s.metrics.IncNotification(info.Status.String())
		}
		s.logg.Info(logCtx, "payment notification applied")
		return OutcomeProcessed, nil
	}

	if db.IsUniqueViolation(err, "") {
		s.countDuplicate()
		s.logg.Info(logCtx, "payment already applied, ignoring delivery")
		return OutcomeDuplicate, nil
	}

	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeNotFound:
			s.logg.Error(logCtx, "payment references no known order", err)
			return OutcomeIgnored, nil
		case pkgerrors.CodeStateConflict:
			s.logg.Warn(s.logg.WithField(logCtx, "reason", typed.Error()), "stale payment notification ignored")
			return OutcomeIgnored, nil
		}
	}

	if settled {
		s.releaseGuard(ctx, paymentID)
	}
	return "", err
}

func (s *service) releaseGuard(ctx context.Context, paymentID string) {
	if err := s.guard.Release(ctx, paymentID); err != nil {
		s.logg.Warn(s.logg.WithPaymentID(ctx, paymentID), "failed to release webhook guard key")
	}
}

func (s *service) countDuplicate() {
	if s.metrics != nil {
		s.metrics.IncDuplicate()
	}
}
