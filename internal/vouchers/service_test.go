package vouchers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func setupVoucherService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t, dbtest.VouchersSchema)
	svc, err := NewService(NewRepository(db), func() time.Time { return rulesNow })
	require.NoError(t, err)
	return svc, db
}

func createSave10(t *testing.T, svc Service, quantity int) {
	t.Helper()
	_, err := svc.Create(context.Background(), CreateInput{
		Code:          " save10",
		DiscountType:  enums.VoucherDiscountPercentage,
		DiscountValue: 10,
		MaxDiscount:   20000,
		Quantity:      quantity,
		Active:        true,
		StartsAt:      rulesNow.Add(-time.Hour),
		EndsAt:        rulesNow.Add(time.Hour),
	})
	require.NoError(t, err)
}

func TestCheckVoucher(t *testing.T) {
	svc, _ := setupVoucherService(t)
	createSave10(t, svc, 5)

	result, err := svc.Check(context.Background(), CheckInput{Code: "save10", OrderAmount: 300000})
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, int64(20000), result.Discount)

	missing, err := svc.Check(context.Background(), CheckInput{Code: "NOPE", OrderAmount: 300000})
	require.NoError(t, err)
	assert.False(t, missing.Valid)
	assert.Equal(t, RejectionNotFound, missing.Reason)
}

func TestDiscountForRejectionIsValidationError(t *testing.T) {
	svc, _ := setupVoucherService(t)
	_, err := svc.DiscountFor(context.Background(), "GHOST", 1000, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, RejectionNotFound, details["reason"])
}

func TestRedeemStopsAtCap(t *testing.T) {
	svc, _ := setupVoucherService(t)
	createSave10(t, svc, 5)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		applied, err := svc.Redeem(ctx, "SAVE10")
		require.NoError(t, err)
		require.True(t, applied)
	}

	// Two deliveries race for the last slot; only one counts.
	first, err := svc.Redeem(ctx, "SAVE10")
	require.NoError(t, err)
	second, err := svc.Redeem(ctx, "SAVE10")
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	voucher, err := svc.Get(ctx, "save10")
	require.NoError(t, err)
	assert.Equal(t, 5, voucher.UsedCount)

	result, err := svc.Check(ctx, CheckInput{Code: "SAVE10", OrderAmount: 300000})
	require.NoError(t, err)
	assert.Equal(t, RejectionQuantityExhausted, result.Reason)
}

func TestCreateVoucherValidation(t *testing.T) {
	svc, _ := setupVoucherService(t)
	base := CreateInput{
		Code:          "X",
		DiscountType:  enums.VoucherDiscountFixed,
		DiscountValue: 10000,
		Quantity:      1,
		StartsAt:      rulesNow,
		EndsAt:        rulesNow.Add(time.Hour),
	}

	over := base
	over.DiscountType = enums.VoucherDiscountPercentage
	over.DiscountValue = 120
	window := base
	window.EndsAt = base.StartsAt
	quantity := base
	quantity.Quantity = 0

	for name, input := range map[string]CreateInput{"percent": over, "window": window, "quantity": quantity} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), input)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestCreateVoucherDuplicateAndCategories(t *testing.T) {
	svc, _ := setupVoucherService(t)
	category := uuid.New()
	input := CreateInput{
		Code:          "SHOES",
		DiscountType:  enums.VoucherDiscountFixed,
		DiscountValue: 30000,
		MaxDiscount:   999,
		CategoryIDs:   []uuid.UUID{category},
		Quantity:      10,
		Active:        true,
		StartsAt:      rulesNow.Add(-time.Hour),
		EndsAt:        rulesNow.Add(time.Hour),
	}
	created, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Zero(t, created.MaxDiscount)

	loaded, err := svc.Get(context.Background(), "shoes")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{category}, []uuid.UUID(loaded.CategoryIDs))

	_, err = svc.Create(context.Background(), input)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
