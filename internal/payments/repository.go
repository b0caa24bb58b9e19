package payments

import (
	"context"

	"gorm.io/gorm"

	"github.com/feriando/feriando-backend/pkg/db/models"
)

// Repository persists the set of applied payment identifiers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, record *models.ProcessedPayment) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a processed-payments repository bound to the DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert adds a processed-payment row. Inserting an id that is already
// present surfaces the unique violation to the caller, which is how a
// concurrent duplicate delivery loses the race.
func (r *repository) Insert(ctx context.Context, record *models.ProcessedPayment) error {
	return r.db.WithContext(ctx).Create(record).Error
}
