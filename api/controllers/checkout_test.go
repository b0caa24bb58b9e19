package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/feriando/feriando-backend/api/middleware"
	checkoutsvc "github.com/feriando/feriando-backend/internal/checkout"
	"github.com/feriando/feriando-backend/pkg/db/models"
	"github.com/feriando/feriando-backend/pkg/enums"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
	"github.com/feriando/feriando-backend/pkg/logger"
)

type stubCheckoutService struct {
	result *checkoutsvc.CheckoutResult
	err    error
	input  *checkoutsvc.CheckoutInput
}

func (s *stubCheckoutService) Execute(ctx context.Context, buyerID uuid.UUID, input checkoutsvc.CheckoutInput) (*checkoutsvc.CheckoutResult, error) {
	s.input = &input
	return s.result, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func asBuyer(req *http.Request) *http.Request {
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	ctx = middleware.WithRole(ctx, string(enums.UserRoleBuyer))
	return req.WithContext(ctx)
}

func checkoutBody() string {
	return `{"lines":[{"product_id":"` + uuid.NewString() + `","qty":2}],"shipping_address":{"name":"Ana","address":"Calle 1","city":"CABA","province":"CABA","postal_code":"1000"},"shipping_method":"express","payment_method":"mercadopago"}`
}

func TestCheckoutSuccess(t *testing.T) {
	t.Parallel()

	order := &models.Order{
		ID:                uuid.New(),
		Status:            enums.OrderStatusAwaitingPayment,
		SubtotalCents:     500000,
		ShippingCostCents: 80000,
		TotalCents:        580000,
	}
	svc := &stubCheckoutService{result: &checkoutsvc.CheckoutResult{
		Order:       order,
		CheckoutURL: "https://checkout.example/init",
	}}
	handler := Checkout(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody()))
	req.Header.Set("Content-Type", "application/json")
	req = asBuyer(req)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.OrderID != order.ID {
		t.Fatalf("unexpected order id: %s", envelope.Data.OrderID)
	}
	if envelope.Data.TotalCents != 580000 {
		t.Fatalf("unexpected total: %d", envelope.Data.TotalCents)
	}
	if envelope.Data.CheckoutURL != "https://checkout.example/init" {
		t.Fatalf("unexpected checkout url: %s", envelope.Data.CheckoutURL)
	}
	if svc.input == nil || svc.input.ShippingMethod != enums.ShippingMethodExpress {
		t.Fatalf("shipping method not forwarded: %+v", svc.input)
	}
	if svc.input.PaymentMethod != "mercadopago" {
		t.Fatalf("payment method not forwarded: %+v", svc.input)
	}
}

func TestCheckoutRequiresBuyerRole(t *testing.T) {
	handler := Checkout(&stubCheckoutService{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody()))
	req.Header.Set("Content-Type", "application/json")
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	ctx = middleware.WithRole(ctx, string(enums.UserRoleSeller))
	req = req.WithContext(ctx)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestCheckoutRequiresAuthContext(t *testing.T) {
	handler := Checkout(&stubCheckoutService{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody()))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCheckoutValidationError(t *testing.T) {
	handler := Checkout(&stubCheckoutService{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req = asBuyer(req)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutOutOfStockConflict(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock")}
	handler := Checkout(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody()))
	req.Header.Set("Content-Type", "application/json")
	req = asBuyer(req)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}
