package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.New(t, dbtest.OrdersSchema, dbtest.OrderLineItemsSchema, dbtest.OutboxSchema)
}

func seedOrder(t *testing.T, db *gorm.DB, method enums.PaymentMethod, status enums.OrderStatus, created time.Time) *models.Order {
	t.Helper()

	id := uuid.New()
	order := &models.Order{
		ID:              id,
		Code:            "SF-" + id.String()[:8],
		BuyerID:         uuid.New(),
		Status:          status,
		PaymentMethod:   method,
		Subtotal:        300000,
		Total:           300000,
		ShippingAddress: "12 Le Loi, District 1",
		Items: []models.OrderLineItem{{
			ID:        uuid.New(),
			OrderID:   id,
			ProductID: uuid.New(),
			Name:      "Linen shirt",
			Color:     "white",
			Size:      "M",
			Quantity:  2,
			UnitPrice: 150000,
		}},
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryCreateAndFind(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	seeded := seedOrder(t, db, enums.PaymentMethodCOD, enums.OrderStatusPendingConfirmation, time.Now().UTC())

	byID, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	require.Len(t, byID.Items, 1)
	assert.Equal(t, int64(300000), byID.Items[0].Subtotal())

	byCode, err := repo.FindByCode(ctx, seeded.Code)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, byCode.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUpdateStatusCompareAndSwap(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.PaymentMethodCOD, enums.OrderStatusShipping, time.Now().UTC())
	now := time.Now().UTC()

	err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusShipping, map[string]any{
		"status":       enums.OrderStatusDelivered,
		"delivered_at": now,
	})
	require.NoError(t, err)

	err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusShipping, map[string]any{
		"status":       enums.OrderStatusDelivered,
		"delivered_at": now,
	})
	assert.ErrorIs(t, err, ErrStaleStatus)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, found.Status)
	require.NotNil(t, found.DeliveredAt)
}

func TestRepositoryRecordPaymentAttempt(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.PaymentMethodWallet, enums.OrderStatusPendingPayment, time.Now().UTC())

	require.NoError(t, repo.RecordPaymentAttempt(ctx, order.ID, "1736900000000_"+order.ID.String()))
	require.NoError(t, repo.RecordPaymentAttempt(ctx, order.ID, "1736900060000_"+order.ID.String()))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.PaymentAttempts)
	require.NotNil(t, found.PaymentRef)
	assert.Equal(t, "1736900060000_"+order.ID.String(), *found.PaymentRef)

	paid := seedOrder(t, db, enums.PaymentMethodWallet, enums.OrderStatusPendingConfirmation, time.Now().UTC())
	assert.ErrorIs(t, repo.RecordPaymentAttempt(ctx, paid.ID, "x"), ErrStaleStatus)
}

func TestRepositoryListPendingWallet(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

	older := seedOrder(t, db, enums.PaymentMethodWallet, enums.OrderStatusPendingPayment, base)
	newer := seedOrder(t, db, enums.PaymentMethodWallet, enums.OrderStatusPendingPayment, base.Add(time.Minute))
	seedOrder(t, db, enums.PaymentMethodCOD, enums.OrderStatusPendingConfirmation, base)
	seedOrder(t, db, enums.PaymentMethodWallet, enums.OrderStatusPendingConfirmation, base)

	rows, err := repo.ListPendingWallet(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.ID, rows[0].ID)
	assert.Equal(t, older.ID, rows[1].ID)

	require.NoError(t, repo.RecordPaymentAttempt(ctx, older.ID, "ref"))
	between, err := repo.ListPendingWalletCreatedBetween(ctx, base.Add(-time.Minute), base.Add(30*time.Second), nil, 10)
	require.NoError(t, err)
	require.Len(t, between, 1)
	assert.Equal(t, older.ID, between[0].ID)
}

func TestRepositoryListPendingWalletCreatedBetweenPages(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

	var want []uuid.UUID
	for i := range 5 {
		order := seedOrder(t, db, enums.PaymentMethodWallet, enums.OrderStatusPendingPayment, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.RecordPaymentAttempt(ctx, order.ID, "ref-"+order.ID.String()))
		want = append([]uuid.UUID{order.ID}, want...)
	}

	var (
		got    []uuid.UUID
		cursor *pagination.Cursor
	)
	for range 5 {
		rows, err := repo.ListPendingWalletCreatedBetween(ctx, base, base.Add(time.Hour), cursor, 2)
		require.NoError(t, err)
		page := pagination.Trim(rows, 2, CursorOf)
		for _, o := range page.Items {
			got = append(got, o.ID)
		}
		if page.NextCursor == "" {
			break
		}
		next := CursorOf(page.Items[len(page.Items)-1])
		cursor = &next
	}
	assert.Equal(t, want, got)
}

func TestRepositoryListCursor(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedOrder(t, db, enums.PaymentMethodCOD, enums.OrderStatusPendingConfirmation, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := repo.List(ctx, ListFilters{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 3)
	page := pagination.Trim(first, 2, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	require.NotEmpty(t, page.NextCursor)

	cursor, err := pagination.ParseCursor(page.NextCursor)
	require.NoError(t, err)
	second, err := repo.List(ctx, ListFilters{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].CreatedAt.Equal(base))
}

func TestRepositoryDeleteCancelled(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	active := seedOrder(t, db, enums.PaymentMethodCOD, enums.OrderStatusConfirmed, time.Now().UTC())
	cancelled := seedOrder(t, db, enums.PaymentMethodCOD, enums.OrderStatusCancelled, time.Now().UTC())

	deleted, err := repo.DeleteCancelled(ctx, active.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.DeleteCancelled(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	var items int64
	require.NoError(t, db.Model(&models.OrderLineItem{}).Where("order_id = ?", cancelled.ID).Count(&items).Error)
	assert.Zero(t, items)
}
