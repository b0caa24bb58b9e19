package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/feriando/feriando-backend/api/responses"
	"github.com/feriando/feriando-backend/api/validators"
	internalorders "github.com/feriando/feriando-backend/internal/orders"
	"github.com/feriando/feriando-backend/pkg/db/models"
	"github.com/feriando/feriando-backend/pkg/enums"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
	"github.com/feriando/feriando-backend/pkg/logger"
	"github.com/feriando/feriando-backend/pkg/pagination"
	"github.com/feriando/feriando-backend/pkg/types"
	"github.com/google/uuid"
)

// ListOrders returns the page of orders visible to the requester. Buyers see
// their own orders, sellers see orders containing their lines, and admins see
// everything.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filters, err := buildOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var list *internalorders.OrderList
		switch actor.Role {
		case enums.UserRoleAdmin:
			list, err = svc.ListAll(r.Context(), actor, params, filters)
		case enums.UserRoleSeller:
			list, err = svc.ListForSeller(r.Context(), actor, params, filters)
		default:
			list, err = svc.ListForBuyer(r.Context(), actor, params, filters)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetOrder returns a single order if the requester may see it.
func GetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderDetail(order))
	}
}

// CancelOrder cancels an unpaid order and releases its stock.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, internalorders.Service.Cancel)
}

// ShipOrder marks a paid order shipped.
func ShipOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, internalorders.Service.Ship)
}

// DeliverOrder marks a shipped order delivered.
func DeliverOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, internalorders.Service.Deliver)
}

func orderTransition(
	svc internalorders.Service,
	logg *logger.Logger,
	apply func(internalorders.Service, context.Context, internalorders.Actor, uuid.UUID) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := apply(svc, r.Context(), actor, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func buildOrderFilters(r *http.Request) (internalorders.Filters, error) {
	filters := internalorders.Filters{}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := enums.OrderStatus(raw)
		if !status.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("date_from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date_from")
		}
		filters.DateFrom = &from
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("date_to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date_to")
		}
		filters.DateTo = &to
	}
	return filters, nil
}

type orderDetail struct {
	ID                uuid.UUID                    `json:"id"`
	Status            string                       `json:"status"`
	ShippingAddress   types.ShippingAddress        `json:"shipping_address"`
	ShippingMethod    string                       `json:"shipping_method"`
	ShippingCostCents int                          `json:"shipping_cost_cents"`
	SubtotalCents     int                          `json:"subtotal_cents"`
	TotalCents        int                          `json:"total_cents"`
	PaymentMethod     string                       `json:"payment_method"`
	PaymentStatus     *string                      `json:"payment_status,omitempty"`
	Lines             []internalorders.LineSummary `json:"lines"`
	PaidAt            *time.Time                   `json:"paid_at,omitempty"`
	ShippedAt         *time.Time                   `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time                   `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time                   `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time                    `json:"created_at"`
}

func newOrderDetail(order *models.Order) orderDetail {
	if order == nil {
		return orderDetail{}
	}
	lines := make([]internalorders.LineSummary, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, internalorders.LineSummary{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			SellerID:       line.SellerID,
			Title:          line.Title,
			VariantName:    line.VariantName,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Qty,
			TotalCents:     line.TotalCents,
		})
	}
	var paymentStatus *string
	if order.PaymentStatus != nil {
		value := string(*order.PaymentStatus)
		paymentStatus = &value
	}
	return orderDetail{
		ID:                order.ID,
		Status:            string(order.Status),
		ShippingAddress:   order.ShippingAddress,
		ShippingMethod:    string(order.ShippingMethod),
		ShippingCostCents: order.ShippingCostCents,
		SubtotalCents:     order.SubtotalCents,
		TotalCents:        order.TotalCents,
		PaymentMethod:     order.PaymentMethod,
		PaymentStatus:     paymentStatus,
		Lines:             lines,
		PaidAt:            order.PaidAt,
		ShippedAt:         order.ShippedAt,
		DeliveredAt:       order.DeliveredAt,
		CancelledAt:       order.CancelledAt,
		CreatedAt:         order.CreatedAt,
	}
}
