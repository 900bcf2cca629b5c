package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem captures the snapshot of each item within an order.
type OrderLineItem struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	ProductID     uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID     *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	CategoryID    *uuid.UUID `gorm:"column:category_id;type:uuid"`
	Name          string     `gorm:"column:name;not null"`
	Color         string     `gorm:"column:color;not null;default:''"`
	Size          string     `gorm:"column:size;not null;default:''"`
	Quantity      int        `gorm:"column:quantity;not null"`
	UnitPrice     int64      `gorm:"column:unit_price;not null"`
	DiscountShare int64      `gorm:"column:discount_share;not null;default:0"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// Subtotal is unit price times quantity, before any discount share.
func (i OrderLineItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}
