package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func keyedOrderRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(body))
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotencyTTL(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{http.MethodPost, "/api/v1/orders", orderIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/orders/8b6f/cancel", orderIdempotencyTTL, true},
		{http.MethodPost, "/api/admin/v1/orders/8b6f/status", adminIdempotencyTTL, true},
		{http.MethodPost, "/api/admin/v1/vouchers", adminIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/notifications/42/read", adminIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/orders//cancel", 0, false},
		{http.MethodPost, "/api/v1/orders/8b6f/payments/wallet", 0, false},
		{http.MethodPost, "/api/v1/webhooks/wallet", 0, false},
		{http.MethodGet, "/api/v1/orders/8b6f", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := idempotencyTTL(tc.method, tc.path)
		assert.Equal(t, tc.ok, ok, "%s %s", tc.method, tc.path)
		assert.Equal(t, tc.want, ttl, "%s %s", tc.method, tc.path)
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	Idempotency(newFakeStore(), nil)(handler).ServeHTTP(rec, keyedOrderRequest("", `{"items":[]}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":"o-1"}`))
	})

	first := httptest.NewRecorder()
	mw(handler).ServeHTTP(first, keyedOrderRequest("abc", `{"items":[1]}`))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(HeaderIdempotentReplay))

	replay := httptest.NewRecorder()
	mw(handler).ServeHTTP(replay, keyedOrderRequest("abc", `{"items":[1]}`))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get(HeaderIdempotentReplay))
	assert.JSONEq(t, `{"order_id":"o-1"}`, replay.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), keyedOrderRequest("xyz", `{"items":[1]}`))

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, keyedOrderRequest("xyz", `{"items":[2]}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyConflictsWhileInFlight(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	calls := 0
	var duplicate *httptest.ResponseRecorder
	var handler http.Handler
	handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			duplicate = httptest.NewRecorder()
			mw(handler).ServeHTTP(duplicate, keyedOrderRequest("busy", `{"items":[1]}`))
		}
		w.WriteHeader(http.StatusCreated)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), keyedOrderRequest("busy", `{"items":[1]}`))

	assert.Equal(t, 1, calls, "duplicate must not reach the handler")
	require.NotNil(t, duplicate)
	assert.Equal(t, http.StatusConflict, duplicate.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, duplicate))
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), keyedOrderRequest("retry-me", `{}`))
	assert.Empty(t, store.data)

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, keyedOrderRequest("retry-me", `{}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, calls)
	assert.Len(t, store.data, 1)
}

func TestIdempotencySkipsUnlistedRoutes(t *testing.T) {
	store := newFakeStore()
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vouchers/check", strings.NewReader(`{}`))
	Idempotency(store, nil)(handler).ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, called)
	assert.Empty(t, store.data)
}
