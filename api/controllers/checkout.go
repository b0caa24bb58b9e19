package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/feriando/feriando-backend/api/responses"
	"github.com/feriando/feriando-backend/api/validators"
	checkoutsvc "github.com/feriando/feriando-backend/internal/checkout"
	"github.com/feriando/feriando-backend/pkg/enums"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
	"github.com/feriando/feriando-backend/pkg/logger"
	"github.com/feriando/feriando-backend/pkg/types"
)

// Checkout reserves stock, opens the order, and returns the hosted checkout.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role != enums.UserRoleBuyer {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "buyer role required for checkout"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]checkoutsvc.CheckoutLine, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, checkoutsvc.CheckoutLine{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Qty:       line.Qty,
			})
		}

		result, err := svc.Execute(r.Context(), actor.UserID, checkoutsvc.CheckoutInput{
			Lines:           lines,
			ShippingAddress: payload.ShippingAddress,
			ShippingMethod:  enums.ShippingMethod(payload.ShippingMethod),
			PaymentMethod:   payload.PaymentMethod,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type checkoutLineRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Qty       int        `json:"qty" validate:"required,gt=0"`
}

type checkoutRequest struct {
	Lines           []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	ShippingMethod  string                `json:"shipping_method" validate:"required"`
	PaymentMethod   string                `json:"payment_method" validate:"required"`
}

type checkoutResponse struct {
	OrderID           uuid.UUID `json:"order_id"`
	Status            string    `json:"status"`
	SubtotalCents     int       `json:"subtotal_cents"`
	ShippingCostCents int       `json:"shipping_cost_cents"`
	TotalCents        int       `json:"total_cents"`
	CheckoutURL       string    `json:"checkout_url"`
}

func newCheckoutResponse(result *checkoutsvc.CheckoutResult) checkoutResponse {
	if result == nil || result.Order == nil {
		return checkoutResponse{}
	}
	return checkoutResponse{
		OrderID:           result.Order.ID,
		Status:            string(result.Order.Status),
		SubtotalCents:     result.Order.SubtotalCents,
		ShippingCostCents: result.Order.ShippingCostCents,
		TotalCents:        result.Order.TotalCents,
		CheckoutURL:       result.CheckoutURL,
	}
}
