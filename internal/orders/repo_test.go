package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/feriando/feriando-backend/pkg/db/models"
	"github.com/feriando/feriando-backend/pkg/enums"
	"github.com/feriando/feriando-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  shipping_address TEXT,
  shipping_method TEXT NOT NULL DEFAULT 'standard',
  shipping_cost_cents INTEGER NOT NULL DEFAULT 0,
  subtotal_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  payment_method TEXT NOT NULL DEFAULT '',
  preference_id TEXT,
  payment_id TEXT,
  payment_status TEXT,
  paid_at DATETIME,
  shipped_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderLines := `
CREATE TABLE IF NOT EXISTS order_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  seller_id TEXT NOT NULL,
  title TEXT NOT NULL,
  variant_name TEXT,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderLines).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, buyerID, sellerID uuid.UUID, status enums.OrderStatus, created time.Time, qty int) *models.Order {
	t.Helper()

	total := qty * 1000
	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Status:        status,
		SubtotalCents: total,
		TotalCents:    total,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	require.NoError(t, db.Create(order).Error)

	line := &models.OrderLine{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ProductID:      uuid.New(),
		SellerID:       sellerID,
		Title:          "Test Item",
		UnitPriceCents: 1000,
		Qty:            qty,
		TotalCents:     total,
		CreatedAt:      created,
	}
	require.NoError(t, db.Create(line).Error)
	return order
}

func TestRepositoryListByBuyer_pagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	buyerID := uuid.New()
	sellerID := uuid.New()
	now := time.Now().UTC()
	older := seedOrder(t, db, buyerID, sellerID, enums.OrderStatusProcessing, now.Add(-time.Hour), 2)
	newer := seedOrder(t, db, buyerID, sellerID, enums.OrderStatusAwaitingPayment, now, 3)
	seedOrder(t, db, uuid.New(), sellerID, enums.OrderStatusProcessing, now, 1)

	list, err := repo.ListByBuyer(context.Background(), buyerID, pagination.Params{Limit: 1}, Filters{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.NotEmpty(t, list.NextCursor)
	assert.Equal(t, newer.ID, list.Orders[0].ID)
	assert.Equal(t, 3, list.Orders[0].TotalItems)

	second, err := repo.ListByBuyer(context.Background(), buyerID, pagination.Params{Limit: 1, Cursor: list.NextCursor}, Filters{})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, older.ID, second.Orders[0].ID)
	assert.Empty(t, second.NextCursor)
}

func TestRepositoryListByBuyer_statusFilter(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	buyerID := uuid.New()
	sellerID := uuid.New()
	now := time.Now().UTC()
	seedOrder(t, db, buyerID, sellerID, enums.OrderStatusProcessing, now.Add(-time.Minute), 1)
	cancelled := seedOrder(t, db, buyerID, sellerID, enums.OrderStatusCancelled, now, 1)

	status := enums.OrderStatusCancelled
	list, err := repo.ListByBuyer(context.Background(), buyerID, pagination.Params{Limit: 10}, Filters{Status: &status})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, cancelled.ID, list.Orders[0].ID)
}

func TestRepositoryListBySeller_trimsForeignLines(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	buyerID := uuid.New()
	sellerID := uuid.New()
	now := time.Now().UTC()
	order := seedOrder(t, db, buyerID, sellerID, enums.OrderStatusProcessing, now, 2)

	otherLine := &models.OrderLine{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ProductID:      uuid.New(),
		SellerID:       uuid.New(),
		Title:          "Other Seller Item",
		UnitPriceCents: 500,
		Qty:            4,
		TotalCents:     2000,
		CreatedAt:      now,
	}
	require.NoError(t, db.Create(otherLine).Error)

	list, err := repo.ListBySeller(context.Background(), sellerID, pagination.Params{Limit: 10}, Filters{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	require.Len(t, list.Orders[0].Lines, 1)
	assert.Equal(t, sellerID, list.Orders[0].Lines[0].SellerID)
	assert.Equal(t, 2, list.Orders[0].TotalItems)

	foreign, err := repo.ListBySeller(context.Background(), uuid.New(), pagination.Params{Limit: 10}, Filters{})
	require.NoError(t, err)
	assert.Empty(t, foreign.Orders)
}

func TestRepositoryListAll_seesEveryBuyer(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	seedOrder(t, db, uuid.New(), uuid.New(), enums.OrderStatusProcessing, now.Add(-time.Minute), 1)
	seedOrder(t, db, uuid.New(), uuid.New(), enums.OrderStatusAwaitingPayment, now, 2)

	list, err := repo.ListAll(context.Background(), pagination.Params{Limit: 10}, Filters{})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 2)
}

func TestRepositoryOrderSnapshotSurvivesCatalogEdits(t *testing.T) {
	db := setupOrdersTestDB(t)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  title TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	repo := NewRepository(db)

	productID := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO products (id, seller_id, title, price_cents, stock) VALUES (?, ?, ?, ?, ?)`,
		productID.String(), uuid.NewString(), "Yerba 1kg", 2500, 10,
	).Error)

	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       uuid.New(),
		Status:        enums.OrderStatusProcessing,
		SubtotalCents: 5000,
		TotalCents:    5000,
		Lines: []models.OrderLine{
			{ID: uuid.New(), ProductID: productID, SellerID: uuid.New(), Title: "Yerba 1kg", UnitPriceCents: 2500, Qty: 2, TotalCents: 5000},
		},
	}
	require.NoError(t, db.Create(order).Error)

	require.NoError(t, db.Exec(
		`UPDATE products SET price_cents = 9900, title = 'Yerba 1kg Premium' WHERE id = ?`,
		productID.String(),
	).Error)

	reloaded, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 5000, reloaded.TotalCents, "declared total must never follow catalog edits")
	require.Len(t, reloaded.Lines, 1)
	assert.Equal(t, 2500, reloaded.Lines[0].UnitPriceCents)
	assert.Equal(t, "Yerba 1kg", reloaded.Lines[0].Title)
}

func TestRepositoryUpdateStatusFrom_conditional(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, uuid.New(), uuid.New(), enums.OrderStatusAwaitingPayment, time.Now().UTC(), 1)

	moved, err := repo.UpdateStatusFrom(context.Background(), order.ID, enums.OrderStatusAwaitingPayment, enums.OrderStatusProcessing, nil)
	require.NoError(t, err)
	assert.True(t, moved)

	again, err := repo.UpdateStatusFrom(context.Background(), order.ID, enums.OrderStatusAwaitingPayment, enums.OrderStatusCancelled, nil)
	require.NoError(t, err)
	assert.False(t, again, "stale transition must not win")

	reloaded, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, reloaded.Status)
}

func TestRepositoryFindStalePending(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	stale := seedOrder(t, db, uuid.New(), uuid.New(), enums.OrderStatusAwaitingPayment, now.Add(-time.Hour), 1)
	seedOrder(t, db, uuid.New(), uuid.New(), enums.OrderStatusAwaitingPayment, now, 1)
	seedOrder(t, db, uuid.New(), uuid.New(), enums.OrderStatusProcessing, now.Add(-2*time.Hour), 1)

	rows, err := repo.FindStalePending(context.Background(), now.Add(-30*time.Minute), 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}
