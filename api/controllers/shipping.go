package controllers

import (
	"net/http"

	"github.com/feriando/feriando-backend/api/responses"
	"github.com/feriando/feriando-backend/api/validators"
	"github.com/feriando/feriando-backend/internal/shipping"
	"github.com/feriando/feriando-backend/pkg/logger"
)

type shippingQuoteRequest struct {
	Province   string `json:"province" validate:"required"`
	TotalItems int    `json:"total_items" validate:"required,gt=0"`
}

// ShippingQuote prices the available shipping options for a destination.
func ShippingQuote(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req shippingQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quotes, err := shipping.QuotesFor(req.Province, req.TotalItems)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quotes)
	}
}
