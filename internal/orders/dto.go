package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/feriando/feriando-backend/pkg/enums"
)

// Filters describe the inputs supported by the order lists.
type Filters struct {
	Status   *enums.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// LineSummary is the per-item snapshot returned in order lists and details.
type LineSummary struct {
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	SellerID       uuid.UUID  `json:"seller_id"`
	Title          string     `json:"title"`
	VariantName    *string    `json:"variant_name,omitempty"`
	UnitPriceCents int        `json:"unit_price_cents"`
	Qty            int        `json:"qty"`
	TotalCents     int        `json:"total_cents"`
}

// OrderSummary exposes the aggregated fields returned in paginated lists.
type OrderSummary struct {
	ID                uuid.UUID         `json:"id"`
	Status            enums.OrderStatus `json:"status"`
	TotalCents        int               `json:"total_cents"`
	ShippingCostCents int               `json:"shipping_cost_cents"`
	TotalItems        int               `json:"total_items"`
	Lines             []LineSummary     `json:"lines"`
	CreatedAt         time.Time         `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
