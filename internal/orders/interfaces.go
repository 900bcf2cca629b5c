package orders

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleStatus is returned when the persisted status no longer matches the
// status a transition was computed from.
var ErrStaleStatus = errors.New("order status changed concurrently")

// Repository exposes persistence helpers for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByCode(ctx context.Context, code string) (*models.Order, error)
	List(ctx context.Context, filters ListFilters) ([]models.Order, error)
	ListPendingWallet(ctx context.Context, limit int) ([]models.Order, error)
	// ListPendingWalletCreatedBetween pages newest first with one lookahead
	// row, like List.
	ListPendingWalletCreatedBetween(ctx context.Context, from, to time.Time, after *pagination.Cursor, limit int) ([]models.Order, error)
	// UpdateStatus writes updates only while the row is still in expected.
	// It returns ErrStaleStatus when no row matched.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected enums.OrderStatus, updates map[string]any) error
	RecordPaymentAttempt(ctx context.Context, id uuid.UUID, ref string) error
	DeleteCancelled(ctx context.Context, id uuid.UUID) (bool, error)
}

// ListFilters narrow an order listing. A nil BuyerID lists every buyer.
type ListFilters struct {
	BuyerID *uuid.UUID
	Status  *enums.OrderStatus
	Limit   int
	Cursor  *pagination.Cursor
}
