package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/payments"
)

type stubCallbackHandler struct {
	ack   payments.Ack
	calls int
	body  string
}

func (s *stubCallbackHandler) HandleCallback(ctx context.Context, body []byte) payments.Ack {
	s.calls++
	s.body = string(body)
	return s.ack
}

func decodeAck(t *testing.T, resp *httptest.ResponseRecorder) payments.Ack {
	t.Helper()
	var ack payments.Ack
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	return ack
}

func TestWalletWebhookWritesAck(t *testing.T) {
	handler := &stubCallbackHandler{ack: payments.Ack{ReturnCode: payments.AckProcessed, ReturnMessage: "success"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/wallet", strings.NewReader(`{"data":"{}","mac":"abc"}`))
	resp := httptest.NewRecorder()

	WalletWebhook(handler, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 1, handler.calls)
	require.Equal(t, `{"data":"{}","mac":"abc"}`, handler.body)
	require.Equal(t, payments.AckProcessed, decodeAck(t, resp).ReturnCode)
}

func TestWalletWebhookAlwaysAnswers200(t *testing.T) {
	for _, code := range []int{payments.AckDuplicate, payments.AckNotFound, payments.AckInvalid} {
		handler := &stubCallbackHandler{ack: payments.Ack{ReturnCode: code, ReturnMessage: "x"}}
		resp := httptest.NewRecorder()
		WalletWebhook(handler, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("garbage")))

		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, code, decodeAck(t, resp).ReturnCode)
	}
}

func TestWalletWebhookRejectsOversizedBody(t *testing.T) {
	handler := &stubCallbackHandler{}
	body := strings.Repeat("a", maxCallbackBytes+10)
	resp := httptest.NewRecorder()

	WalletWebhook(handler, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Zero(t, handler.calls)
	require.Equal(t, payments.AckInvalid, decodeAck(t, resp).ReturnCode)
}
