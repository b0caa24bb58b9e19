package shipping

import (
	"strings"

	"github.com/feriando/feriando-backend/pkg/enums"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
)

// Quote is one shipping option for a destination.
type Quote struct {
	Method        enums.ShippingMethod `json:"method"`
	PriceCents    int                  `json:"price_cents"`
	EstimatedDays int                  `json:"estimated_days"`
}

type provinceRates struct {
	standardDays int
	expressCents int
	expressDays  int
}

// Standard shipping is free everywhere; express is a flat per-province fee.
// Provinces without an entry fall back to the default rate.
var ratesByProvince = map[string]provinceRates{
	"buenos aires": {standardDays: 3, expressCents: 120000, expressDays: 1},
	"caba":         {standardDays: 2, expressCents: 80000, expressDays: 1},
	"córdoba":      {standardDays: 4, expressCents: 150000, expressDays: 2},
	"santa fe":     {standardDays: 3, expressCents: 130000, expressDays: 2},
	"mendoza":      {standardDays: 5, expressCents: 180000, expressDays: 2},
}

var defaultRates = provinceRates{standardDays: 5, expressCents: 200000, expressDays: 3}

// bulkThreshold is the item count above which a 20% surcharge applies.
const bulkThreshold = 5

// QuotesFor returns the available options for a destination province. The
// surcharge for bulky carts applies to the express fee only, since standard
// shipping is free.
func QuotesFor(province string, totalItems int) ([]Quote, error) {
	if strings.TrimSpace(province) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "province is required")
	}
	if totalItems <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	rates, ok := ratesByProvince[strings.ToLower(strings.TrimSpace(province))]
	if !ok {
		rates = defaultRates
	}

	express := rates.expressCents
	if totalItems > bulkThreshold {
		express = express * 12 / 10
	}

	return []Quote{
		{Method: enums.ShippingMethodStandard, PriceCents: 0, EstimatedDays: rates.standardDays},
		{Method: enums.ShippingMethodExpress, PriceCents: express, EstimatedDays: rates.expressDays},
	}, nil
}

// CostCents resolves the price charged for a chosen method. Totals are always
// computed here so a client cannot declare its own shipping cost.
func CostCents(province string, method enums.ShippingMethod, totalItems int) (int, error) {
	if !method.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping method")
	}
	quotes, err := QuotesFor(province, totalItems)
	if err != nil {
		return 0, err
	}
	for _, quote := range quotes {
		if quote.Method == method {
			return quote.PriceCents, nil
		}
	}
	return 0, pkgerrors.New(pkgerrors.CodeValidation, "no rate for shipping method")
}
