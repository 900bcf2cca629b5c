package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ProductVariant is the inventory unit keyed by product, color and size.
type ProductVariant struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	Color     string              `gorm:"column:color;not null;default:''"`
	Size      string              `gorm:"column:size;not null;default:''"`
	Stock     int                 `gorm:"column:stock;not null;default:0"`
	Status    enums.VariantStatus `gorm:"column:status;not null;default:'out_of_stock'"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
