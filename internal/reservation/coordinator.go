package reservation

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/feriando/feriando-backend/internal/catalog"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
	"github.com/feriando/feriando-backend/pkg/logger"
)

// Coordinator takes stock for a whole checkout atomically: either every line
// is decremented or none are. A partial failure triggers compensation of the
// lines already taken, in reverse order.
type Coordinator struct {
	catalog catalog.Gateway
	logg    *logger.Logger
}

// NewCoordinator builds a reservation coordinator over the catalog gateway.
func NewCoordinator(gw catalog.Gateway, logg *logger.Logger) (*Coordinator, error) {
	if gw == nil {
		return nil, fmt.Errorf("catalog gateway required")
	}
	return &Coordinator{catalog: gw, logg: logg}, nil
}

// Reserve decrements stock for every line inside tx. On an insufficient-stock
// line it restores everything already taken and reports the failing line via
// CodeOutOfStock details. If a compensation step itself fails the error is
// CodeCompensation and carries both causes; the caller must roll back and
// alert, stock may need manual repair.
func (c *Coordinator) Reserve(ctx context.Context, tx *gorm.DB, lines []catalog.Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation")
	}
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	for _, line := range lines {
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}

	gw := c.catalog.WithTx(tx)
	taken := make([]catalog.Line, 0, len(lines))

	for _, line := range lines {
		ok, err := gw.ConditionalDecrement(ctx, line)
		if err != nil {
			if compErr := c.compensate(ctx, gw, taken); compErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeCompensation, multierr.Append(err, compErr), "reservation rollback failed")
			}
			return err
		}
		if !ok {
			if compErr := c.compensate(ctx, gw, taken); compErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeCompensation, compErr, "reservation rollback failed")
			}
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": line.ProductID.String(),
					"variant_id": variantDetail(line),
					"qty":        line.Qty,
				})
		}
		taken = append(taken, line)
	}

	return nil
}

// Release returns stock for every line, used when a paid-for reservation is
// cancelled, expires, or the payment is rejected.
func (c *Coordinator) Release(ctx context.Context, tx *gorm.DB, lines []catalog.Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for release")
	}

	gw := c.catalog.WithTx(tx)
	var errs error
	for _, line := range lines {
		if err := gw.Increment(ctx, line); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "release stock")
	}
	return nil
}

func (c *Coordinator) compensate(ctx context.Context, gw catalog.Gateway, taken []catalog.Line) error {
	var errs error
	for i := len(taken) - 1; i >= 0; i-- {
		if err := gw.Increment(ctx, taken[i]); err != nil {
			errs = multierr.Append(errs, err)
			if c.logg != nil {
				logCtx := c.logg.WithFields(ctx, map[string]any{
					"product_id": taken[i].ProductID.String(),
					"qty":        taken[i].Qty,
				})
				c.logg.Error(logCtx, "reservation compensation step failed", err)
			}
		}
	}
	return errs
}

func variantDetail(line catalog.Line) string {
	if line.VariantID == nil {
		return ""
	}
	return line.VariantID.String()
}
