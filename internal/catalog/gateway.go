package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feriando/feriando-backend/pkg/db/models"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
)

// Line identifies a purchasable unit: a product, or one of its variants.
type Line struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Qty       int
}

// LineInfo is the pricing snapshot for a line at lookup time.
type LineInfo struct {
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	SellerID       uuid.UUID
	Title          string
	VariantName    *string
	UnitPriceCents int
	Stock          int
	Active         bool
}

// Gateway is the stock and pricing surface the reservation and checkout
// layers depend on. All writes are conditional so concurrent checkouts can
// never drive stock negative.
type Gateway interface {
	WithTx(tx *gorm.DB) Gateway
	LoadLine(ctx context.Context, line Line) (*LineInfo, error)
	ConditionalDecrement(ctx context.Context, line Line) (bool, error)
	Increment(ctx context.Context, line Line) error
	ListActiveProducts(ctx context.Context, sellerID *uuid.UUID) ([]models.Product, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type gateway struct {
	db *gorm.DB
}

// NewGateway builds a catalog gateway bound to the provided DB.
func NewGateway(db *gorm.DB) Gateway {
	return &gateway{db: db}
}

func (g *gateway) WithTx(tx *gorm.DB) Gateway {
	if tx == nil {
		return g
	}
	return &gateway{db: tx}
}

func (g *gateway) LoadLine(ctx context.Context, line Line) (*LineInfo, error) {
	var product models.Product
	err := g.db.WithContext(ctx).
		Where("id = ?", line.ProductID).
		First(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	info := &LineInfo{
		ProductID:      product.ID,
		SellerID:       product.SellerID,
		Title:          product.Title,
		UnitPriceCents: product.PriceCents,
		Stock:          product.Stock,
		Active:         product.IsActive,
	}

	if line.VariantID == nil {
		return info, nil
	}

	var variant models.ProductVariant
	err = g.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", *line.VariantID, line.ProductID).
		First(&variant).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}

	variantID := variant.ID
	info.VariantID = &variantID
	info.VariantName = &variant.Name
	info.Stock = variant.Stock
	if variant.PriceCents != nil {
		info.UnitPriceCents = *variant.PriceCents
	}
	return info, nil
}

// ConditionalDecrement takes qty units of stock if and only if enough remain.
// The guard rides in the WHERE clause so the check and the write are a single
// statement; a false return means insufficient stock, not an error.
func (g *gateway) ConditionalDecrement(ctx context.Context, line Line) (bool, error) {
	if line.Qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var res *gorm.DB
	if line.VariantID != nil {
		res = g.db.WithContext(ctx).Exec(`
			UPDATE product_variants
			SET stock = stock - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND product_id = ? AND stock >= ?
		`, line.Qty, *line.VariantID, line.ProductID, line.Qty)
	} else {
		res = g.db.WithContext(ctx).Exec(`
			UPDATE products
			SET stock = stock - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND stock >= ?
		`, line.Qty, line.ProductID, line.Qty)
	}
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	return res.RowsAffected == 1, nil
}

// Increment returns qty units of stock, used when compensating a failed
// reservation or releasing a cancelled order.
func (g *gateway) Increment(ctx context.Context, line Line) error {
	if line.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var res *gorm.DB
	if line.VariantID != nil {
		res = g.db.WithContext(ctx).Exec(`
			UPDATE product_variants
			SET stock = stock + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND product_id = ?
		`, line.Qty, *line.VariantID, line.ProductID)
	} else {
		res = g.db.WithContext(ctx).Exec(`
			UPDATE products
			SET stock = stock + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, line.Qty, line.ProductID)
	}
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock row not found")
	}
	return nil
}

func (g *gateway) ListActiveProducts(ctx context.Context, sellerID *uuid.UUID) ([]models.Product, error) {
	q := g.db.WithContext(ctx).
		Preload("Variants").
		Where("is_active = ?", true).
		Order("created_at DESC")
	if sellerID != nil {
		q = q.Where("seller_id = ?", *sellerID)
	}
	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}

func (g *gateway) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := g.db.WithContext(ctx).
		Preload("Variants").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}
