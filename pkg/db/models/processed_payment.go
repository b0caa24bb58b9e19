package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/feriando/feriando-backend/pkg/enums"
)

// ProcessedPayment records a payment notification that has already been
// applied. The primary key makes duplicate webhook deliveries a no-op: the
// second insert hits the unique constraint inside the same transaction that
// would have re-applied the transition.
type ProcessedPayment struct {
	PaymentID   string              `gorm:"column:payment_id;primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Status      enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	ProcessedAt time.Time           `gorm:"column:processed_at;autoCreateTime"`
}
