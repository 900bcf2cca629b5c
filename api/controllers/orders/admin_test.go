package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func adminRequest(method, target, body string, orderID *uuid.UUID) *http.Request {
	req := buyerRequest(method, target, body, uuid.New(), orderID)
	return req.WithContext(middleware.WithCaller(req.Context(), uuid.NewString(), enums.RoleAdmin))
}

func TestAdminListParsesFilters(t *testing.T) {
	var captured internalorders.ListInput
	svc := &stubOrdersService{
		list: func(ctx context.Context, input internalorders.ListInput) (*pagination.Page[models.Order], error) {
			captured = input
			return &pagination.Page[models.Order]{
				Items:      []models.Order{*sampleOrder(uuid.New(), enums.OrderStatusShipping)},
				NextCursor: "next-page",
			}, nil
		},
	}

	resp := httptest.NewRecorder()
	AdminList(svc, nil).ServeHTTP(resp, adminRequest(http.MethodGet, "/api/admin/v1/orders?status=shipping&limit=10&cursor=abc", "", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 10, captured.Limit)
	require.Equal(t, "abc", captured.Cursor)
	require.NotNil(t, captured.Status)
	require.Equal(t, enums.OrderStatusShipping, *captured.Status)

	var envelope struct {
		Data internalorders.OrderListView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Len(t, envelope.Data.Orders, 1)
	require.Equal(t, "next-page", envelope.Data.NextCursor)
}

func TestAdminListRejectsUnknownStatus(t *testing.T) {
	resp := httptest.NewRecorder()
	AdminList(&stubOrdersService{}, nil).ServeHTTP(resp, adminRequest(http.MethodGet, "/api/admin/v1/orders?status=lost", "", nil))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminListRejectsOversizedLimit(t *testing.T) {
	resp := httptest.NewRecorder()
	AdminList(&stubOrdersService{}, nil).ServeHTTP(resp, adminRequest(http.MethodGet, "/api/admin/v1/orders?limit=100000", "", nil))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminTransitionRejectionNamesNextStatus(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		transition: func(ctx context.Context, input internalorders.TransitionInput) (*internalorders.TransitionOutcome, error) {
			require.Equal(t, enums.OrderStatusDelivered, input.Status)
			require.NotNil(t, input.Actor)
			require.Equal(t, string(enums.RoleAdmin), input.Actor.Role)
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can only move to shipping").
				WithDetails(map[string]any{"allowed_next": []string{"shipping"}})
		},
	}

	resp := httptest.NewRecorder()
	AdminTransition(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPost, "/status", `{"status":"delivered"}`, &orderID))
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, string(pkgerrors.CodeStateConflict), body.Error.Code)
	require.Equal(t, []any{"shipping"}, body.Error.Details["allowed_next"])
}

func TestAdminTransitionAccepted(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		transition: func(ctx context.Context, input internalorders.TransitionInput) (*internalorders.TransitionOutcome, error) {
			order := sampleOrder(uuid.New(), input.Status)
			order.ID = input.OrderID
			return &internalorders.TransitionOutcome{Order: order}, nil
		},
	}

	resp := httptest.NewRecorder()
	AdminTransition(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPost, "/status", `{"status":"shipping","reason":"handed to courier"}`, &orderID))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data internalorders.OrderView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, enums.OrderStatusShipping, envelope.Data.Status)
}

func TestAdminDelete(t *testing.T) {
	orderID := uuid.New()
	var deleted uuid.UUID
	svc := &stubOrdersService{
		delete: func(ctx context.Context, id uuid.UUID) error {
			deleted = id
			return nil
		},
	}

	resp := httptest.NewRecorder()
	AdminDelete(svc, nil).ServeHTTP(resp, adminRequest(http.MethodDelete, "/orders", "", &orderID))
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Equal(t, orderID, deleted)
}

func TestAdminDeleteSurfacesConflict(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		delete: func(ctx context.Context, id uuid.UUID) error {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only cancelled orders can be deleted")
		},
	}

	resp := httptest.NewRecorder()
	AdminDelete(svc, nil).ServeHTTP(resp, adminRequest(http.MethodDelete, "/orders", "", &orderID))
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}
