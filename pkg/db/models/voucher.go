package models

import (
	"time"

	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Voucher is a discount code with a hard usage cap.
type Voucher struct {
	Code           string                    `gorm:"column:code;primaryKey"`
	DiscountType   enums.VoucherDiscountType `gorm:"column:discount_type;type:voucher_discount_type;not null"`
	DiscountValue  int64                     `gorm:"column:discount_value;not null"`
	MinOrderAmount int64                     `gorm:"column:min_order_amount;not null;default:0"`
	MaxDiscount    int64                     `gorm:"column:max_discount;not null;default:0"`
	CategoryIDs    dbtypes.UUIDArray         `gorm:"column:category_ids;type:uuid[];not null;default:'{}'"`
	Quantity       int                       `gorm:"column:quantity;not null"`
	UsedCount      int                       `gorm:"column:used_count;not null;default:0"`
	Active         bool                      `gorm:"column:active;not null"`
	StartsAt       time.Time                 `gorm:"column:starts_at;not null"`
	EndsAt         time.Time                 `gorm:"column:ends_at;not null"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
