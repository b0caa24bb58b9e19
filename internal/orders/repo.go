package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/feriando/feriando-backend/pkg/db/models"
	"github.com/feriando/feriando-backend/pkg/enums"
	"github.com/feriando/feriando-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("payment_id = ?", paymentID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Lines").
		Where("buyer_id = ?", buyerID)
	return r.list(ctx, q, params, filters, nil)
}

// ListBySeller returns orders containing at least one of the seller's lines.
// Line summaries are trimmed to that seller's items.
func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Lines").
		Where("id IN (?)", r.db.Model(&models.OrderLine{}).
			Select("order_id").
			Where("seller_id = ?", sellerID))
	return r.list(ctx, q, params, filters, &sellerID)
}

// ListAll pages through every order with no ownership predicate.
func (r *repository) ListAll(ctx context.Context, params pagination.Params, filters Filters) (*OrderList, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Lines")
	return r.list(ctx, q, params, filters, nil)
}

func (r *repository) list(ctx context.Context, q *gorm.DB, params pagination.Params, filters Filters, sellerID *uuid.UUID) (*OrderList, error) {
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		q = q.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		q = q.Where("created_at <= ?", *filters.DateTo)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.Order
	err = q.Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	next := ""
	if len(rows) > limit {
		last := rows[limit-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}

	return &OrderList{
		NextCursor: next,
		Orders: lo.Map(rows, func(row models.Order, _ int) OrderSummary {
			return summarize(row, sellerID)
		}),
	}, nil
}

func (r *repository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("status IN ?", []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusAwaitingPayment}).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func summarize(order models.Order, sellerID *uuid.UUID) OrderSummary {
	summary := OrderSummary{
		ID:                order.ID,
		Status:            order.Status,
		TotalCents:        order.TotalCents,
		ShippingCostCents: order.ShippingCostCents,
		CreatedAt:         order.CreatedAt,
	}
	for _, line := range order.Lines {
		if sellerID != nil && line.SellerID != *sellerID {
			continue
		}
		summary.TotalItems += line.Qty
		summary.Lines = append(summary.Lines, LineSummary{
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
	return summary
}
