package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes product variant stock persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	FindByAttributes(ctx context.Context, productID uuid.UUID, color, size string) (*models.ProductVariant, error)
	Decrement(ctx context.Context, id uuid.UUID, qty int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the inventory repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindByAttributes matches color and size case-insensitively.
func (r *repository) FindByAttributes(ctx context.Context, productID uuid.UUID, color, size string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND LOWER(color) = ? AND LOWER(size) = ?",
			productID, strings.ToLower(strings.TrimSpace(color)), strings.ToLower(strings.TrimSpace(size))).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// Decrement lowers stock by qty, floored at zero, and derives the status from
// the resulting stock in the same statement.
func (r *repository) Decrement(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stock": gorm.Expr("CASE WHEN stock > ? THEN stock - ? ELSE 0 END", qty, qty),
			"status": gorm.Expr("CASE WHEN stock > ? THEN ? ELSE ? END",
				qty, string(enums.VariantStatusInStock), string(enums.VariantStatusOutOfStock)),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
