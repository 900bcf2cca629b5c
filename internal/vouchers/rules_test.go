package vouchers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var rulesNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func save10() models.Voucher {
	return models.Voucher{
		Code:          "SAVE10",
		DiscountType:  enums.VoucherDiscountPercentage,
		DiscountValue: 10,
		MaxDiscount:   20000,
		Quantity:      5,
		UsedCount:     4,
		Active:        true,
		StartsAt:      rulesNow.Add(-24 * time.Hour),
		EndsAt:        rulesNow.Add(24 * time.Hour),
	}
}

func TestEvaluatePercentageCapped(t *testing.T) {
	discount, reason := Evaluate(save10(), 300000, nil, rulesNow)
	assert.Empty(t, reason)
	assert.Equal(t, int64(20000), discount)

	discount, reason = Evaluate(save10(), 150000, nil, rulesNow)
	assert.Empty(t, reason)
	assert.Equal(t, int64(15000), discount)
}

func TestEvaluateFixedNeverExceedsAmount(t *testing.T) {
	v := save10()
	v.DiscountType = enums.VoucherDiscountFixed
	v.DiscountValue = 50000

	discount, _ := Evaluate(v, 30000, nil, rulesNow)
	assert.Equal(t, int64(30000), discount)
}

func TestEvaluateRejections(t *testing.T) {
	category := uuid.New()
	cases := map[RejectionReason]func(v *models.Voucher) (int64, []uuid.UUID){
		RejectionInactive: func(v *models.Voucher) (int64, []uuid.UUID) {
			v.Active = false
			return 100000, nil
		},
		RejectionNotStarted: func(v *models.Voucher) (int64, []uuid.UUID) {
			v.StartsAt = rulesNow.Add(time.Hour)
			return 100000, nil
		},
		RejectionExpired: func(v *models.Voucher) (int64, []uuid.UUID) {
			v.EndsAt = rulesNow.Add(-time.Minute)
			return 100000, nil
		},
		RejectionQuantityExhausted: func(v *models.Voucher) (int64, []uuid.UUID) {
			v.UsedCount = v.Quantity
			return 100000, nil
		},
		RejectionBelowMinimum: func(v *models.Voucher) (int64, []uuid.UUID) {
			v.MinOrderAmount = 200000
			return 100000, nil
		},
		RejectionCategoryMismatch: func(v *models.Voucher) (int64, []uuid.UUID) {
			v.CategoryIDs = dbtypes.UUIDArray{category}
			return 100000, []uuid.UUID{uuid.New()}
		},
	}
	for want, mutate := range cases {
		t.Run(string(want), func(t *testing.T) {
			v := save10()
			amount, categories := mutate(&v)
			discount, reason := Evaluate(v, amount, categories, rulesNow)
			assert.Equal(t, want, reason)
			assert.Zero(t, discount)
		})
	}
}

func TestEvaluateCategoryMatch(t *testing.T) {
	category := uuid.New()
	v := save10()
	v.CategoryIDs = dbtypes.UUIDArray{category}

	discount, reason := Evaluate(v, 100000, []uuid.UUID{uuid.New(), category}, rulesNow)
	assert.Empty(t, reason)
	assert.Equal(t, int64(10000), discount)
}
