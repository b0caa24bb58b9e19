package shipping

import (
	"testing"

	"github.com/feriando/feriando-backend/pkg/enums"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
)

func TestQuotesForKnownProvince(t *testing.T) {
	quotes, err := QuotesFor("CABA", 2)
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 options, got %d", len(quotes))
	}
	if quotes[0].Method != enums.ShippingMethodStandard || quotes[0].PriceCents != 0 {
		t.Fatalf("unexpected standard quote %+v", quotes[0])
	}
	if quotes[1].Method != enums.ShippingMethodExpress || quotes[1].PriceCents != 80000 {
		t.Fatalf("unexpected express quote %+v", quotes[1])
	}
	if quotes[1].EstimatedDays != 1 {
		t.Fatalf("unexpected estimate %+v", quotes[1])
	}
}

func TestQuotesForCaseInsensitive(t *testing.T) {
	quotes, err := QuotesFor("  santa fe ", 1)
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if quotes[1].PriceCents != 130000 {
		t.Fatalf("expected Santa Fe express rate, got %d", quotes[1].PriceCents)
	}
}

func TestQuotesForUnknownProvinceFallsBack(t *testing.T) {
	quotes, err := QuotesFor("Tierra del Fuego", 1)
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if quotes[1].PriceCents != 200000 || quotes[1].EstimatedDays != 3 {
		t.Fatalf("expected default express rate, got %+v", quotes[1])
	}
}

func TestQuotesForBulkSurcharge(t *testing.T) {
	quotes, err := QuotesFor("Mendoza", 6)
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if quotes[1].PriceCents != 216000 {
		t.Fatalf("expected 20%% surcharge on express, got %d", quotes[1].PriceCents)
	}
	if quotes[0].PriceCents != 0 {
		t.Fatal("standard shipping stays free for bulky carts")
	}
}

func TestQuotesForValidation(t *testing.T) {
	if _, err := QuotesFor("", 1); pkgerrors.As(err) == nil {
		t.Fatal("expected validation error for empty province")
	}
	if _, err := QuotesFor("CABA", 0); pkgerrors.As(err) == nil {
		t.Fatal("expected validation error for empty cart")
	}
}

func TestCostCents(t *testing.T) {
	cost, err := CostCents("Córdoba", enums.ShippingMethodExpress, 2)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != 150000 {
		t.Fatalf("expected Córdoba express rate, got %d", cost)
	}

	cost, err = CostCents("Córdoba", enums.ShippingMethodStandard, 2)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != 0 {
		t.Fatalf("expected free standard shipping, got %d", cost)
	}

	if _, err := CostCents("Córdoba", enums.ShippingMethod("drone"), 2); pkgerrors.As(err) == nil {
		t.Fatal("expected validation error for unknown method")
	}
}
