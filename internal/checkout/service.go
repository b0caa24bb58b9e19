package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feriando/feriando-backend/internal/catalog"
	"github.com/feriando/feriando-backend/internal/orders"
	"github.com/feriando/feriando-backend/internal/shipping"
	"github.com/feriando/feriando-backend/pkg/db/models"
	"github.com/feriando/feriando-backend/pkg/enums"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
	"github.com/feriando/feriando-backend/pkg/logger"
	"github.com/feriando/feriando-backend/pkg/mercadopago"
	"github.com/feriando/feriando-backend/pkg/outbox"
	"github.com/feriando/feriando-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []catalog.Line) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CheckoutLine is one requested purchase unit.
type CheckoutLine struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Qty       int        `json:"qty"`
}

// CheckoutInput is everything the buyer submits to open an order.
type CheckoutInput struct {
	Lines           []CheckoutLine        `json:"lines"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	ShippingMethod  enums.ShippingMethod  `json:"shipping_method"`
	PaymentMethod   string                `json:"payment_method"`
}

// CheckoutResult is the created order plus the hosted checkout handle.
type CheckoutResult struct {
	Order       *models.Order `json:"order"`
	CheckoutURL string        `json:"checkout_url"`
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, buyerID uuid.UUID, input CheckoutInput) (*CheckoutResult, error)
}

type service struct {
	tx          txRunner
	ordersRepo  orders.Repository
	catalog     catalog.Gateway
	reservation reservationRunner
	payments    mercadopago.Gateway
	outbox      outboxPublisher
	logg        *logger.Logger
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	catalogGw catalog.Gateway,
	reservation reservationRunner,
	payments mercadopago.Gateway,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogGw == nil {
		return nil, fmt.Errorf("catalog gateway required")
	}
	if reservation == nil {
		return nil, fmt.Errorf("reservation runner required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:          tx,
		ordersRepo:  ordersRepo,
		catalog:     catalogGw,
		reservation: reservation,
		payments:    payments,
		outbox:      publisher,
		logg:        logg,
	}, nil
}

// Execute reserves stock and opens the order in one transaction, then asks
// the processor for a hosted checkout. If the processor call fails the order
// stays pending with its reservation held; the expiry sweep reclaims the
// stock if the buyer never retries.
func (s *service) Execute(ctx context.Context, buyerID uuid.UUID, input CheckoutInput) (*CheckoutResult, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalogGw := s.catalog.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		lines := make([]models.OrderLine, 0, len(input.Lines))
		reserve := make([]catalog.Line, 0, len(input.Lines))
		subtotal := 0
		totalItems := 0

		for _, line := range input.Lines {
			info, err := catalogGw.LoadLine(ctx, catalog.Line{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Qty:       line.Qty,
			})
			if err != nil {
				return err
			}
			if !info.Active {
				return pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
					WithDetails(map[string]any{"product_id": line.ProductID.String()})
			}

			lineTotal := info.UnitPriceCents * line.Qty
			subtotal += lineTotal
			totalItems += line.Qty
			lines = append(lines, models.OrderLine{
				ProductID:      info.ProductID,
				VariantID:      info.VariantID,
				SellerID:       info.SellerID,
				Title:          info.Title,
				VariantName:    info.VariantName,
				UnitPriceCents: info.UnitPriceCents,
				Qty:            line.Qty,
				TotalCents:     lineTotal,
			})
			reserve = append(reserve, catalog.Line{
				ProductID: info.ProductID,
				VariantID: info.VariantID,
				Qty:       line.Qty,
			})
		}

		shippingCost, err := shipping.CostCents(input.ShippingAddress.Province, input.ShippingMethod, totalItems)
		if err != nil {
			return err
		}

		if err := s.reservation.Reserve(ctx, tx, reserve); err != nil {
			return err
		}

		created, err := ordersRepo.Create(ctx, &models.Order{
			BuyerID:           buyerID,
			Status:            enums.OrderStatusPending,
			ShippingAddress:   input.ShippingAddress,
			ShippingMethod:    input.ShippingMethod,
			ShippingCostCents: shippingCost,
			PaymentMethod:     input.PaymentMethod,
			SubtotalCents:     subtotal,
			TotalCents:        subtotal + shippingCost,
			Lines:             lines,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		order = created

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: buyerID, Role: enums.UserRoleBuyer.String()},
			Data: orders.OrderStatusEvent{
				OrderID:    created.ID,
				BuyerID:    buyerID,
				Status:     enums.OrderStatusPending,
				TotalCents: created.TotalCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	intent, err := s.createIntent(ctx, order)
	if err != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "payment intent creation failed, order left pending", err)
		return nil, err
	}

	moved, err := s.ordersRepo.UpdateStatusFrom(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusAwaitingPayment, map[string]any{
		"preference_id": intent.PreferenceID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order changed before payment intent was attached")
	}
	order.Status = enums.OrderStatusAwaitingPayment
	preferenceID := intent.PreferenceID
	order.PreferenceID = &preferenceID

	return &CheckoutResult{Order: order, CheckoutURL: intent.CheckoutURL}, nil
}

func (s *service) createIntent(ctx context.Context, order *models.Order) (*mercadopago.Intent, error) {
	items := make([]mercadopago.IntentItem, 0, len(order.Lines)+1)
	for _, line := range order.Lines {
		title := line.Title
		if line.VariantName != nil {
			title = fmt.Sprintf("%s (%s)", line.Title, *line.VariantName)
		}
		items = append(items, mercadopago.IntentItem{
			Title:      title,
			Quantity:   line.Qty,
			PriceCents: line.UnitPriceCents,
		})
	}
	if order.ShippingCostCents > 0 {
		items = append(items, mercadopago.IntentItem{
			Title:      "Envío",
			Quantity:   1,
			PriceCents: order.ShippingCostCents,
		})
	}
	return s.payments.CreateIntent(ctx, mercadopago.IntentRequest{
		OrderID: order.ID.String(),
		Items:   items,
	})
}

func validateInput(input CheckoutInput) error {
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}
	if !input.ShippingMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping method")
	}
	if strings.TrimSpace(input.PaymentMethod) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	return input.ShippingAddress.Validate()
}
