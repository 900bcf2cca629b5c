package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type voucherCheckRequest struct {
	Code        string      `json:"code" validate:"required,max=64"`
	OrderAmount int64       `json:"order_amount" validate:"min=0"`
	CategoryIDs []uuid.UUID `json:"category_ids"`
}

type voucherCreateRequest struct {
	Code           string      `json:"code" validate:"required,max=64,voucher_code"`
	DiscountType   string      `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue  int64       `json:"discount_value" validate:"required,min=1"`
	MinOrderAmount int64       `json:"min_order_amount" validate:"min=0"`
	MaxDiscount    int64       `json:"max_discount" validate:"min=0"`
	CategoryIDs    []uuid.UUID `json:"category_ids"`
	Quantity       int         `json:"quantity" validate:"required,min=1"`
	Active         *bool       `json:"active"`
	StartsAt       time.Time   `json:"starts_at" validate:"required"`
	EndsAt         time.Time   `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

// VoucherView is the admin console shape of a voucher.
type VoucherView struct {
	Code           string                    `json:"code"`
	DiscountType   enums.VoucherDiscountType `json:"discount_type"`
	DiscountValue  int64                     `json:"discount_value"`
	MinOrderAmount int64                     `json:"min_order_amount"`
	MaxDiscount    int64                     `json:"max_discount"`
	CategoryIDs    []uuid.UUID               `json:"category_ids"`
	Quantity       int                       `json:"quantity"`
	UsedCount      int                       `json:"used_count"`
	Active         bool                      `json:"active"`
	StartsAt       time.Time                 `json:"starts_at"`
	EndsAt         time.Time                 `json:"ends_at"`
	CreatedAt      time.Time                 `json:"created_at"`
}

func newVoucherView(v *models.Voucher) VoucherView {
	categories := []uuid.UUID(v.CategoryIDs)
	if categories == nil {
		categories = []uuid.UUID{}
	}
	return VoucherView{
		Code:           v.Code,
		DiscountType:   v.DiscountType,
		DiscountValue:  v.DiscountValue,
		MinOrderAmount: v.MinOrderAmount,
		MaxDiscount:    v.MaxDiscount,
		CategoryIDs:    categories,
		Quantity:       v.Quantity,
		UsedCount:      v.UsedCount,
		Active:         v.Active,
		StartsAt:       v.StartsAt,
		EndsAt:         v.EndsAt,
		CreatedAt:      v.CreatedAt,
	}
}

// CheckVoucher prices a voucher against a prospective order. A rejected
// voucher is a normal response carrying the reason.
func CheckVoucher(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vouchers service unavailable"))
			return
		}

		var req voucherCheckRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Check(r.Context(), vouchers.CheckInput{
			Code:        req.Code,
			OrderAmount: req.OrderAmount,
			CategoryIDs: req.CategoryIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminCreateVoucher registers a new voucher. Vouchers are active unless the
// request says otherwise.
func AdminCreateVoucher(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vouchers service unavailable"))
			return
		}

		var req voucherCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discountType, err := enums.ParseVoucherDiscountType(req.DiscountType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type"))
			return
		}

		active := true
		if req.Active != nil {
			active = *req.Active
		}

		voucher, err := svc.Create(r.Context(), vouchers.CreateInput{
			Code:           req.Code,
			DiscountType:   discountType,
			DiscountValue:  req.DiscountValue,
			MinOrderAmount: req.MinOrderAmount,
			MaxDiscount:    req.MaxDiscount,
			CategoryIDs:    req.CategoryIDs,
			Quantity:       req.Quantity,
			Active:         active,
			StartsAt:       req.StartsAt,
			EndsAt:         req.EndsAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newVoucherView(voucher))
	}
}

// AdminGetVoucher returns a voucher with its usage counter.
func AdminGetVoucher(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vouchers service unavailable"))
			return
		}

		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "voucher code is required"))
			return
		}

		voucher, err := svc.Get(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newVoucherView(voucher))
	}
}
