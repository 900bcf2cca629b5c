package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ItemRef identifies the variant an order line consumes: the explicit
// variant id when present, otherwise product plus color and size.
type ItemRef struct {
	VariantID *uuid.UUID
	ProductID uuid.UUID
	Color     string
	Size      string
}

// RefFor builds the reference of an order line.
func RefFor(item models.OrderLineItem) ItemRef {
	return ItemRef{
		VariantID: item.VariantID,
		ProductID: item.ProductID,
		Color:     item.Color,
		Size:      item.Size,
	}
}

// Ledger resolves variants and applies stock decrements.
type Ledger interface {
	Resolve(ctx context.Context, ref ItemRef) (*models.ProductVariant, error)
	Decrement(ctx context.Context, ref ItemRef, qty int) (*models.ProductVariant, error)
}

type ledger struct {
	repo Repository
}

// NewLedger wires the inventory ledger.
func NewLedger(repo Repository) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &ledger{repo: repo}, nil
}

func (l *ledger) Resolve(ctx context.Context, ref ItemRef) (*models.ProductVariant, error) {
	var (
		variant *models.ProductVariant
		err     error
	)
	switch {
	case ref.VariantID != nil && *ref.VariantID != uuid.Nil:
		variant, err = l.repo.FindByID(ctx, *ref.VariantID)
	case ref.ProductID != uuid.Nil:
		variant, err = l.repo.FindByAttributes(ctx, ref.ProductID, ref.Color, ref.Size)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant reference requires a variant id or product id")
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
				WithDetails(map[string]any{"product_id": ref.ProductID, "color": ref.Color, "size": ref.Size})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variant")
	}
	return variant, nil
}

// Decrement resolves the variant and removes qty units. Stock never goes
// below zero.
func (l *ledger) Decrement(ctx context.Context, ref ItemRef, qty int) (*models.ProductVariant, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	variant, err := l.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	updated, err := l.repo.Decrement(ctx, variant.ID, qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}
	after, err := l.repo.FindByID(ctx, variant.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product variant")
	}
	return after, nil
}
