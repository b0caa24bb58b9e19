package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feriando/feriando-backend/internal/catalog"
	"github.com/feriando/feriando-backend/pkg/db/models"
	"github.com/feriando/feriando-backend/pkg/enums"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
	"github.com/feriando/feriando-backend/pkg/outbox"
	"github.com/feriando/feriando-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockReleaser returns reserved stock when an order leaves the happy path.
type StockReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, lines []catalog.Line) error
}

// Actor identifies who is driving a ledger operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Service defines ledger operations beyond repository reads.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	ListForBuyer(ctx context.Context, actor Actor, params pagination.Params, filters Filters) (*OrderList, error)
	ListForSeller(ctx context.Context, actor Actor, params pagination.Params, filters Filters) (*OrderList, error)
	ListAll(ctx context.Context, actor Actor, params pagination.Params, filters Filters) (*OrderList, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) error
	Ship(ctx context.Context, actor Actor, orderID uuid.UUID) error
	Deliver(ctx context.Context, actor Actor, orderID uuid.UUID) error
	// ApplyPaymentResult moves the order according to the processor outcome.
	// It runs inside the caller's transaction so the status change commits
	// together with the processed-payment record.
	ApplyPaymentResult(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paymentID string, status enums.PaymentStatus) error
	ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	stock  StockReleaser
}

// NewService builds an order ledger service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, stock StockReleaser) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		stock:  stock,
	}, nil
}

// OrderStatusEvent is the payload emitted on every ledger transition.
type OrderStatusEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	BuyerID    uuid.UUID         `json:"buyer_id"`
	Status     enums.OrderStatus `json:"status"`
	PaymentID  *string           `json:"payment_id,omitempty"`
	TotalCents int               `json:"total_cents"`
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := authorizeRead(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ListForBuyer(ctx context.Context, actor Actor, params pagination.Params, filters Filters) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListByBuyer(ctx, actor.UserID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return list, nil
}

func (s *service) ListForSeller(ctx context.Context, actor Actor, params pagination.Params, filters Filters) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != enums.UserRoleSeller && actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller role required")
	}
	list, err := s.repo.ListBySeller(ctx, actor.UserID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller orders")
	}
	return list, nil
}

// ListAll pages through the whole ledger. Admin only.
func (s *service) ListAll(ctx context.Context, actor Actor, params pagination.Params, filters Filters) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	list, err := s.repo.ListAll(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list all orders")
	}
	return list, nil
}

// Cancel moves the order to cancelled and returns its reserved stock.
// Cancellation is legal only before the payment settles; buyers may cancel
// their own orders and admins any unpaid order.
func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if actor.Role != enums.UserRoleAdmin {
			if order.BuyerID != actor.UserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
			}
			if order.Status == enums.OrderStatusProcessing {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "paid orders cannot be cancelled by the buyer")
			}
		}

		return s.cancelLocked(ctx, tx, repo, order, enums.EventOrderCancelled, &outbox.ActorRef{
			UserID: actor.UserID,
			Role:   actor.Role.String(),
		})
	})
}

func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, eventType enums.OutboxEventType, actor *outbox.ActorRef) error {
	if err := ValidateTransition(order.Status, enums.OrderStatusCancelled); err != nil {
		return err
	}

	now := time.Now()
	moved, err := repo.UpdateStatusFrom(ctx, order.ID, order.Status, enums.OrderStatusCancelled, map[string]any{
		"cancelled_at": now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
	}

	if holdsReservation(order.Status) {
		if err := s.stock.Release(ctx, tx, linesOf(order)); err != nil {
			return err
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: OrderStatusEvent{
			OrderID:    order.ID,
			BuyerID:    order.BuyerID,
			Status:     enums.OrderStatusCancelled,
			TotalCents: order.TotalCents,
		},
	})
}

func (s *service) Ship(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	return s.fulfillmentTransition(ctx, actor, orderID, enums.OrderStatusShipped, "shipped_at", enums.EventOrderShipped)
}

func (s *service) Deliver(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	return s.fulfillmentTransition(ctx, actor, orderID, enums.OrderStatusDelivered, "delivered_at", enums.EventOrderDelivered)
}

func (s *service) fulfillmentTransition(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus, stampColumn string, eventType enums.OutboxEventType) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != enums.UserRoleSeller && actor.Role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "seller role required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if actor.Role == enums.UserRoleSeller && !sellerOnOrder(order, actor.UserID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order has no items from seller")
		}

		if err := ValidateTransition(order.Status, target); err != nil {
			return err
		}

		moved, err := repo.UpdateStatusFrom(ctx, order.ID, order.Status, target, map[string]any{
			stampColumn: time.Now(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: OrderStatusEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				Status:     target,
				TotalCents: order.TotalCents,
			},
		})
	})
}

// ApplyPaymentResult handles the approved/rejected outcomes. Pending and
// in-process outcomes only record the payment id and leave the status alone.
func (s *service) ApplyPaymentResult(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paymentID string, status enums.PaymentStatus) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal status")
	}

	switch status {
	case enums.PaymentStatusApproved:
		if err := ValidateTransition(order.Status, enums.OrderStatusProcessing); err != nil {
			return err
		}
		moved, err := repo.UpdateStatusFrom(ctx, order.ID, order.Status, enums.OrderStatusProcessing, map[string]any{
			"payment_id":     paymentID,
			"payment_status": status,
			"paid_at":        time.Now(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: OrderStatusEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				Status:     enums.OrderStatusProcessing,
				PaymentID:  &paymentID,
				TotalCents: order.TotalCents,
			},
		})

	case enums.PaymentStatusRejected:
		if err := ValidateTransition(order.Status, enums.OrderStatusFailed); err != nil {
			return err
		}
		moved, err := repo.UpdateStatusFrom(ctx, order.ID, order.Status, enums.OrderStatusFailed, map[string]any{
			"payment_id":     paymentID,
			"payment_status": status,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}
		if holdsReservation(order.Status) {
			if err := s.stock.Release(ctx, tx, linesOf(order)); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: OrderStatusEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				Status:     enums.OrderStatusFailed,
				PaymentID:  &paymentID,
				TotalCents: order.TotalCents,
			},
		})

	case enums.PaymentStatusPending, enums.PaymentStatusInProcess:
		if err := repo.Update(ctx, order.ID, map[string]any{
			"payment_id":     paymentID,
			"payment_status": status,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment status")
		}
		return nil

	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
}

// ExpireStale cancels orders that never produced a payment outcome within the
// window. Each order is handled in its own transaction so one stuck row does
// not block the sweep.
func (s *service) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	stale, err := s.repo.FindStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale orders")
	}

	expired := 0
	for _, order := range stale {
		order := order
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			current, err := repo.FindByID(ctx, order.ID)
			if err != nil {
				return err
			}
			if current.Status != enums.OrderStatusPending && current.Status != enums.OrderStatusAwaitingPayment {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order resolved before expiry")
			}
			return s.cancelLocked(ctx, tx, repo, current, enums.EventOrderExpired, nil)
		})
		if err != nil {
			// State conflicts just mean a webhook won the race.
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func authorizeRead(actor Actor, order *models.Order) error {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleSeller:
		if sellerOnOrder(order, actor.UserID) || order.BuyerID == actor.UserID {
			return nil
		}
	default:
		if order.BuyerID == actor.UserID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order not visible to user")
}

func sellerOnOrder(order *models.Order, sellerID uuid.UUID) bool {
	for _, line := range order.Lines {
		if line.SellerID == sellerID {
			return true
		}
	}
	return false
}

func linesOf(order *models.Order) []catalog.Line {
	lines := make([]catalog.Line, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, catalog.Line{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Qty:       line.Qty,
		})
	}
	return lines
}
