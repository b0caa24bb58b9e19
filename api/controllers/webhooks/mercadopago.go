package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/feriando/feriando-backend/api/responses"
	"github.com/feriando/feriando-backend/internal/payments"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
	"github.com/feriando/feriando-backend/pkg/logger"
)

const maxNotificationBytes = 64 << 10

// MercadoPago receives payment notifications from the processor. Every
// recognized delivery is acknowledged with a 2xx even when it is ignored;
// only transient failures return an error status so the processor retries.
func MercadoPago(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		notification, err := decodeNotification(r)
		if err != nil {
			logg.Warn(r.Context(), "unreadable mercadopago notification")
			responses.WriteSuccess(w, map[string]string{"outcome": string(payments.OutcomeMalformed)})
			return
		}

		outcome, err := svc.HandleNotification(r.Context(), notification)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}

// decodeNotification accepts both delivery shapes MercadoPago uses: a JSON
// body, and the query-parameter form (?type=payment&data.id=123).
func decodeNotification(r *http.Request) (payments.Notification, error) {
	var notification payments.Notification

	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		return notification, err
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &notification); err != nil {
			return notification, err
		}
	}

	query := r.URL.Query()
	if notification.Type == "" {
		notification.Type = query.Get("type")
	}
	if notification.Data.ID == "" {
		notification.Data.ID = query.Get("data.id")
	}
	return notification, nil
}
