package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/feriando/feriando-backend/pkg/enums"
	"github.com/feriando/feriando-backend/pkg/types"
)

// Order is the ledger record for a single checkout. Monetary amounts are
// integer cents. Line items snapshot product data at purchase time.
type Order struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID           uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status            enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'pending';index"`
	ShippingAddress   types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	ShippingMethod    enums.ShippingMethod  `gorm:"column:shipping_method;type:text;not null;default:'standard'"`
	ShippingCostCents int                   `gorm:"column:shipping_cost_cents;not null;default:0"`
	SubtotalCents     int                   `gorm:"column:subtotal_cents;not null"`
	TotalCents        int                   `gorm:"column:total_cents;not null"`
	PaymentMethod     string                `gorm:"column:payment_method;not null;default:''"`
	PreferenceID      *string               `gorm:"column:preference_id"`
	PaymentID         *string               `gorm:"column:payment_id;index"`
	PaymentStatus     *enums.PaymentStatus  `gorm:"column:payment_status;type:text"`
	Lines             []OrderLine           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt            *time.Time            `gorm:"column:paid_at"`
	ShippedAt         *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time            `gorm:"column:delivered_at"`
	CancelledAt       *time.Time            `gorm:"column:cancelled_at"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLine captures the snapshot of each purchased item.
type OrderLine struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID      *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	SellerID       uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index"`
	Title          string     `gorm:"column:title;not null"`
	VariantName    *string    `gorm:"column:variant_name"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	Qty            int        `gorm:"column:qty;not null"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
