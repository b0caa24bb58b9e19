package orders

import (
	"github.com/feriando/feriando-backend/pkg/enums"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
)

// allowedTransitions is the closed set of legal status moves. Anything not
// listed is rejected with a state conflict, so a late webhook or a double
// cancel can never rewrite history. Payments can only settle out of
// awaiting_payment, and a paid order only moves forward through fulfillment,
// never back to cancelled.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusAwaitingPayment,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusAwaitingPayment: {
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusShipped,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusDelivered,
	},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed error explaining why the move is illegal.
func ValidateTransition(from, to enums.OrderStatus) error {
	if !from.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid current status")
	}
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}
	if from == to {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already in target status")
	}
	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal status")
	}
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed")
	}
	return nil
}

// holdsReservation reports whether an order in this status still owns
// decremented stock that must be returned if it leaves the happy path.
func holdsReservation(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusPending, enums.OrderStatusReserved, enums.OrderStatusAwaitingPayment, enums.OrderStatusProcessing:
		return true
	}
	return false
}
