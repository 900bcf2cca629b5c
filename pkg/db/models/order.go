package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is the persisted order aggregate. Amounts are integer VND.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code            string              `gorm:"column:code;not null;uniqueIndex"`
	BuyerID         uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	Subtotal        int64               `gorm:"column:subtotal;not null"`
	Discount        int64               `gorm:"column:discount;not null;default:0"`
	Total           int64               `gorm:"column:total;not null"`
	VoucherCode     *string             `gorm:"column:voucher_code"`
	ShippingAddress string              `gorm:"column:shipping_address;not null"`
	PaymentRef      *string             `gorm:"column:payment_ref"`
	PaymentAttempts int                 `gorm:"column:payment_attempts;not null;default:0"`
	GatewayTransID  *string             `gorm:"column:gateway_trans_id"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	ShippedAt       *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	CancelReason    *string             `gorm:"column:cancel_reason"`
	Items           []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
