package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feriando/feriando-backend/internal/catalog"
	checkoutsvc "github.com/feriando/feriando-backend/internal/checkout"
	internalorders "github.com/feriando/feriando-backend/internal/orders"
	"github.com/feriando/feriando-backend/internal/payments"
	pkgAuth "github.com/feriando/feriando-backend/pkg/auth"
	"github.com/feriando/feriando-backend/pkg/config"
	"github.com/feriando/feriando-backend/pkg/db/models"
	"github.com/feriando/feriando-backend/pkg/enums"
	pkgerrors "github.com/feriando/feriando-backend/pkg/errors"
	"github.com/feriando/feriando-backend/pkg/logger"
	"github.com/feriando/feriando-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubStore struct {
	values map[string]string
}

func (s *stubStore) Ping(context.Context) error {
	return nil
}

func (s *stubStore) Get(_ context.Context, key string) (string, error) {
	return s.values[key], nil
}

func (s *stubStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if s.values == nil {
		s.values = map[string]string{}
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *stubStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (s *stubStore) WebhookGuardKey(provider, paymentID string) string {
	return "webhook:" + provider + ":" + paymentID
}

func (s *stubStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

type stubCatalogGateway struct{}

func (s stubCatalogGateway) WithTx(tx *gorm.DB) catalog.Gateway {
	return s
}

func (s stubCatalogGateway) LoadLine(ctx context.Context, line catalog.Line) (*catalog.LineInfo, error) {
	panic("unimplemented")
}

func (s stubCatalogGateway) ConditionalDecrement(ctx context.Context, line catalog.Line) (bool, error) {
	panic("unimplemented")
}

func (s stubCatalogGateway) Increment(ctx context.Context, line catalog.Line) error {
	panic("unimplemented")
}

func (s stubCatalogGateway) ListActiveProducts(ctx context.Context, sellerID *uuid.UUID) ([]models.Product, error) {
	return []models.Product{}, nil
}

func (s stubCatalogGateway) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return &models.Product{ID: id}, nil
}

type stubCheckoutService struct {
	executed int
}

func (s *stubCheckoutService) Execute(ctx context.Context, buyerID uuid.UUID, input checkoutsvc.CheckoutInput) (*checkoutsvc.CheckoutResult, error) {
	s.executed++
	return &checkoutsvc.CheckoutResult{
		Order:       &models.Order{ID: uuid.New(), BuyerID: buyerID, Status: enums.OrderStatusAwaitingPayment},
		CheckoutURL: "https://checkout.example/init",
	}, nil
}

type stubOrdersService struct{}

func (stubOrdersService) Get(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID, BuyerID: actor.UserID, Status: enums.OrderStatusPending}, nil
}

func (stubOrdersService) ListForBuyer(ctx context.Context, actor internalorders.Actor, params pagination.Params, filters internalorders.Filters) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{}, nil
}

func (stubOrdersService) ListForSeller(ctx context.Context, actor internalorders.Actor, params pagination.Params, filters internalorders.Filters) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{}, nil
}

func (stubOrdersService) ListAll(ctx context.Context, actor internalorders.Actor, params pagination.Params, filters internalorders.Filters) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{}, nil
}

func (stubOrdersService) Cancel(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) error {
	return nil
}

func (stubOrdersService) Ship(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) error {
	return nil
}

func (stubOrdersService) Deliver(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) error {
	return nil
}

func (stubOrdersService) ApplyPaymentResult(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paymentID string, status enums.PaymentStatus) error {
	panic("unimplemented")
}

func (stubOrdersService) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	panic("unimplemented")
}

type stubPaymentsService struct {
	outcome payments.Outcome
	err     error
}

func (s stubPaymentsService) HandleNotification(ctx context.Context, notification payments.Notification) (payments.Outcome, error) {
	return s.outcome, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "issuer"},
	}
}

func newTestRouter(cfg *config.Config, checkout *stubCheckoutService, paymentsSvc payments.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	if checkout == nil {
		checkout = &stubCheckoutService{}
	}
	if paymentsSvc == nil {
		paymentsSvc = stubPaymentsService{outcome: payments.OutcomeProcessed}
	}
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		&stubStore{},
		stubCatalogGateway{},
		checkout,
		stubOrdersService{},
		paymentsSvc,
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if env := resp.Header().Get("X-Feriando-Env"); env != "test" {
		t.Fatalf("unexpected env header %q", env)
	}
}

func TestOrdersRejectMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestOrdersListWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil, nil)

	body := `{"lines":[{"product_id":"` + uuid.NewString() + `","qty":1}],"shipping_address":{"name":"Ana","address":"Calle 1","city":"CABA","province":"CABA","postal_code":"1000"},"shipping_method":"standard","payment_method":"mercadopago"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key got %d", resp.Code)
	}
}

func TestCheckoutReplaysStoredResponse(t *testing.T) {
	cfg := testConfig()
	checkout := &stubCheckoutService{}
	router := newTestRouter(cfg, checkout, nil)
	token := buildToken(t, cfg, enums.UserRoleBuyer)

	body := `{"lines":[{"product_id":"` + uuid.NewString() + `","qty":1}],"shipping_address":{"name":"Ana","address":"Calle 1","city":"CABA","province":"CABA","postal_code":"1000"},"shipping_method":"standard","payment_method":"mercadopago"}`
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "key-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", first.Code, first.Body.String())
	}
	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", second.Code)
	}
	if checkout.executed != 1 {
		t.Fatalf("expected one checkout execution, got %d", checkout.executed)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatal("replayed response body must match the original")
	}
}

func TestCheckoutRejectsSellerRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil, nil)

	body := `{"lines":[{"product_id":"` + uuid.NewString() + `","qty":1}],"shipping_address":{"name":"Ana","address":"Calle 1","city":"CABA","province":"CABA","postal_code":"1000"},"shipping_method":"standard","payment_method":"mercadopago"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSeller))
	req.Header.Set("Idempotency-Key", "key-2")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller checkout got %d", resp.Code)
	}
}

func TestWebhookEndpointIsPublic(t *testing.T) {
	router := newTestRouter(testConfig(), nil, stubPaymentsService{outcome: payments.OutcomeIgnored})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", strings.NewReader(`{"type":"merchant_order"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for acknowledged webhook got %d", resp.Code)
	}
}

func TestWebhookRetryableFailureReturnsError(t *testing.T) {
	svc := stubPaymentsService{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("processor timeout"), "fetch payment")}
	router := newTestRouter(testConfig(), nil, svc)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", strings.NewReader(`{"type":"payment","data":{"id":"42"}}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 so the processor redelivers, got %d", resp.Code)
	}
}

func TestPublicShippingQuote(t *testing.T) {
	router := newTestRouter(testConfig(), nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/public/v1/shipping/quote", strings.NewReader(`{"province":"Mendoza","total_items":2}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for shipping quote got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "express") {
		t.Fatalf("expected express option in body: %s", resp.Body.String())
	}
}

func TestPublicProductsList(t *testing.T) {
	router := newTestRouter(testConfig(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/products", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for product list got %d", resp.Code)
	}
}
