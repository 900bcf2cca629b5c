package vouchers

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/google/uuid"
)

// RejectionReason explains why a voucher cannot be applied.
type RejectionReason string

const (
	RejectionNotFound          RejectionReason = "not_found"
	RejectionInactive          RejectionReason = "inactive"
	RejectionNotStarted        RejectionReason = "not_started"
	RejectionExpired           RejectionReason = "expired"
	RejectionQuantityExhausted RejectionReason = "quantity_exhausted"
	RejectionBelowMinimum      RejectionReason = "below_min_order_amount"
	RejectionCategoryMismatch  RejectionReason = "category_mismatch"
)

var rejectionMessages = map[RejectionReason]string{
	RejectionNotFound:          "voucher not found",
	RejectionInactive:          "voucher is not active",
	RejectionNotStarted:        "voucher is not yet valid",
	RejectionExpired:           "voucher has expired",
	RejectionQuantityExhausted: "voucher has been fully redeemed",
	RejectionBelowMinimum:      "order amount is below the voucher minimum",
	RejectionCategoryMismatch:  "voucher does not apply to these products",
}

// Message is the buyer-facing text for the reason.
func (r RejectionReason) Message() string {
	if msg, ok := rejectionMessages[r]; ok {
		return msg
	}
	return "voucher cannot be applied"
}

// Redeemable reports whether v can still be redeemed at now, ignoring the
// order it would apply to.
func Redeemable(v models.Voucher, now time.Time) RejectionReason {
	switch {
	case !v.Active:
		return RejectionInactive
	case !v.StartsAt.IsZero() && now.Before(v.StartsAt):
		return RejectionNotStarted
	case !v.EndsAt.IsZero() && now.After(v.EndsAt):
		return RejectionExpired
	case v.UsedCount >= v.Quantity:
		return RejectionQuantityExhausted
	}
	return ""
}

// Evaluate prices v against an order amount and the order's categories. An
// empty reason means the voucher applies and discount is the amount off.
func Evaluate(v models.Voucher, amount int64, categoryIDs []uuid.UUID, now time.Time) (int64, RejectionReason) {
	if reason := Redeemable(v, now); reason != "" {
		return 0, reason
	}
	if amount < v.MinOrderAmount {
		return 0, RejectionBelowMinimum
	}
	if len(v.CategoryIDs) > 0 && !v.CategoryIDs.Intersects(categoryIDs) {
		return 0, RejectionCategoryMismatch
	}
	return Discount(v, amount), ""
}

// Discount computes the amount off. Percentage discounts honor MaxDiscount
// when it is positive; no discount exceeds the order amount.
func Discount(v models.Voucher, amount int64) int64 {
	var discount int64
	switch v.DiscountType {
	case enums.VoucherDiscountPercentage:
		discount = money.Percent(amount, v.DiscountValue)
		if v.MaxDiscount > 0 && discount > v.MaxDiscount {
			discount = v.MaxDiscount
		}
	case enums.VoucherDiscountFixed:
		discount = v.DiscountValue
	}
	if discount > amount {
		discount = amount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
