package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const maxReasonLength = 500

// WalletPayments is the slice of the payments service the buyer endpoints use.
type WalletPayments interface {
	InitiateWallet(ctx context.Context, buyerID, orderID uuid.UUID) (*payments.Initiation, error)
	PaymentStatus(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error)
}

type createItemRequest struct {
	ProductID     uuid.UUID  `json:"product_id" validate:"required"`
	VariantID     *uuid.UUID `json:"variant_id"`
	CategoryID    *uuid.UUID `json:"category_id"`
	Name          string     `json:"name" validate:"required,max=255"`
	Color         string     `json:"color" validate:"max=64"`
	Size          string     `json:"size" validate:"max=64"`
	Quantity      int        `json:"quantity" validate:"required,min=1"`
	UnitPrice     int64      `json:"unit_price" validate:"min=0"`
	DiscountShare int64      `json:"discount_share" validate:"min=0"`
}

type createOrderRequest struct {
	Code            string              `json:"code" validate:"max=64"`
	PaymentMethod   string              `json:"payment_method" validate:"required,oneof=cod wallet"`
	VoucherCode     *string             `json:"voucher_code" validate:"omitempty,max=64"`
	Discount        int64               `json:"discount" validate:"min=0"`
	Total           *int64              `json:"total" validate:"omitempty,min=0"`
	ShippingAddress string              `json:"shipping_address" validate:"required,max=1000"`
	Items           []createItemRequest `json:"items" validate:"required,min=1,dive"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Create places a new order for the authenticated buyer.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		buyerID, err := buyerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		input := internalorders.CreateInput{
			BuyerID:         buyerID,
			Code:            validators.SanitizeString(req.Code, 64),
			PaymentMethod:   method,
			VoucherCode:     req.VoucherCode,
			Discount:        req.Discount,
			Total:           req.Total,
			ShippingAddress: validators.SanitizeString(req.ShippingAddress, 1000),
			Items:           make([]internalorders.CreateItemInput, 0, len(req.Items)),
			Actor:           outbox.UserActor(buyerID, enums.RoleBuyer),
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalorders.CreateItemInput{
				ProductID:     item.ProductID,
				VariantID:     item.VariantID,
				CategoryID:    item.CategoryID,
				Name:          validators.SanitizeString(item.Name, 255),
				Color:         strings.TrimSpace(item.Color),
				Size:          strings.TrimSpace(item.Size),
				Quantity:      item.Quantity,
				UnitPrice:     item.UnitPrice,
				DiscountShare: item.DiscountShare,
			})
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.NewOrderView(order))
	}
}

// Detail returns an order owned by the authenticated buyer.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		buyerID, err := buyerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetForBuyer(r.Context(), buyerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderView(order))
	}
}

// Cancel lets the buyer cancel an order that has not been confirmed.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		buyerID, err := buyerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		outcome, err := svc.Cancel(r.Context(), buyerID, orderID, validators.SanitizeString(req.Reason, maxReasonLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderView(outcome.Order))
	}
}

// InitiateWalletPayment starts or retries the wallet payment of an order.
func InitiateWalletPayment(svc WalletPayments, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		buyerID, err := buyerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		initiation, err := svc.InitiateWallet(r.Context(), buyerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, initiation)
	}
}

// PaymentStatus is polled by the buyer client while a wallet payment is pending.
func PaymentStatus(svc WalletPayments, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		buyerID, err := buyerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.PaymentStatus(r.Context(), buyerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.PaymentStatusView{
			OrderID: order.ID,
			Status:  order.Status,
			PaidAt:  order.PaidAt,
		})
	}
}

func buyerFromContext(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}
