package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a seller listing. Stock lives on the product itself
// unless variants exist, in which case each variant carries its own count.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID        `gorm:"column:seller_id;type:uuid;not null"`
	Title       string           `gorm:"column:title;not null"`
	Description *string          `gorm:"column:description"`
	Category    *string          `gorm:"column:category"`
	PriceCents  int              `gorm:"column:price_cents;not null"`
	Stock       int              `gorm:"column:stock;not null;default:0"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
