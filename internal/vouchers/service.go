package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service prices, creates and redeems vouchers.
type Service interface {
	Check(ctx context.Context, input CheckInput) (*CheckResult, error)
	DiscountFor(ctx context.Context, code string, amount int64, categoryIDs []uuid.UUID) (int64, error)
	Create(ctx context.Context, input CreateInput) (*models.Voucher, error)
	Get(ctx context.Context, code string) (*models.Voucher, error)
	Redeem(ctx context.Context, code string) (bool, error)
}

// CheckInput is a buyer's voucher check against a prospective order.
type CheckInput struct {
	Code        string
	OrderAmount int64
	CategoryIDs []uuid.UUID
}

// CheckResult reports the discount or why the voucher was rejected.
type CheckResult struct {
	Code     string          `json:"code"`
	Valid    bool            `json:"valid"`
	Discount int64           `json:"discount"`
	Reason   RejectionReason `json:"reason,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// CreateInput describes a new voucher.
type CreateInput struct {
	Code           string
	DiscountType   enums.VoucherDiscountType
	DiscountValue  int64
	MinOrderAmount int64
	MaxDiscount    int64
	CategoryIDs    []uuid.UUID
	Quantity       int
	Active         bool
	StartsAt       time.Time
	EndsAt         time.Time
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires the voucher service. clock may be nil.
func NewService(repo Repository, clock func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("voucher repository required")
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: repo, now: clock}, nil
}

// NormalizeCode upper-cases and trims a voucher code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) Check(ctx context.Context, input CheckInput) (*CheckResult, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code required")
	}
	if input.OrderAmount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must not be negative")
	}

	result := &CheckResult{Code: code}
	voucher, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
		}
		result.Reason = RejectionNotFound
		result.Message = RejectionNotFound.Message()
		return result, nil
	}

	discount, reason := Evaluate(*voucher, input.OrderAmount, input.CategoryIDs, s.now())
	if reason != "" {
		result.Reason = reason
		result.Message = reason.Message()
		return result, nil
	}
	result.Valid = true
	result.Discount = discount
	return result, nil
}

// DiscountFor is Check for checkout: a rejection becomes a validation error
// carrying the reason.
func (s *service) DiscountFor(ctx context.Context, code string, amount int64, categoryIDs []uuid.UUID) (int64, error) {
	result, err := s.Check(ctx, CheckInput{Code: code, OrderAmount: amount, CategoryIDs: categoryIDs})
	if err != nil {
		return 0, err
	}
	if !result.Valid {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, result.Message).
			WithDetails(map[string]any{"voucher_code": result.Code, "reason": result.Reason})
	}
	return result.Discount, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Voucher, error) {
	code := NormalizeCode(input.Code)
	switch {
	case code == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code required")
	case !input.DiscountType.IsValid():
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type")
	case input.DiscountValue <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	case input.DiscountType == enums.VoucherDiscountPercentage && input.DiscountValue > 100:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	case input.MinOrderAmount < 0 || input.MaxDiscount < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amounts must not be negative")
	case input.Quantity <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	case input.StartsAt.IsZero() || input.EndsAt.IsZero() || !input.EndsAt.After(input.StartsAt):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher window must end after it starts")
	}

	voucher := &models.Voucher{
		Code:           code,
		DiscountType:   input.DiscountType,
		DiscountValue:  input.DiscountValue,
		MinOrderAmount: input.MinOrderAmount,
		CategoryIDs:    dbtypes.UUIDArray(input.CategoryIDs),
		Quantity:       input.Quantity,
		Active:         input.Active,
		StartsAt:       input.StartsAt.UTC(),
		EndsAt:         input.EndsAt.UTC(),
	}
	if input.DiscountType == enums.VoucherDiscountPercentage {
		voucher.MaxDiscount = input.MaxDiscount
	}
	if voucher.CategoryIDs == nil {
		voucher.CategoryIDs = dbtypes.UUIDArray{}
	}

	if err := s.repo.Create(ctx, voucher); err != nil {
		if dbpkg.IsUniqueViolation(err, "vouchers_pkey") || dbpkg.IsUniqueViolation(err, "vouchers.code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "voucher code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create voucher")
	}
	return voucher, nil
}

func (s *service) Get(ctx context.Context, code string) (*models.Voucher, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code required")
	}
	voucher, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}
	return voucher, nil
}

// Redeem counts one use of the voucher. It returns false without error when
// the usage cap had already been reached.
func (s *service) Redeem(ctx context.Context, code string) (bool, error) {
	code = NormalizeCode(code)
	if code == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "voucher code required")
	}
	applied, err := s.repo.IncrementUsage(ctx, code)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment voucher usage")
	}
	return applied, nil
}
