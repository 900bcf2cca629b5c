package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const maxCallbackBytes = 64 << 10

// CallbackHandler turns a raw gateway callback into an acknowledgement.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, body []byte) payments.Ack
}

// WalletWebhook receives wallet gateway callbacks. The gateway reads only the
// acknowledgement body, so every outcome is answered with 200.
func WalletWebhook(handler CallbackHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if handler == nil {
			responses.WriteJSON(w, http.StatusOK, payments.Ack{ReturnCode: payments.AckNotFound, ReturnMessage: "callback handler unavailable"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes+1))
		if err != nil {
			if logg != nil {
				logg.Error(ctx, "wallet callback read failed", err)
			}
			responses.WriteJSON(w, http.StatusOK, payments.Ack{ReturnCode: payments.AckInvalid, ReturnMessage: "unreadable body"})
			return
		}
		if len(body) > maxCallbackBytes {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "bytes", len(body)), "wallet callback too large")
			}
			responses.WriteJSON(w, http.StatusOK, payments.Ack{ReturnCode: payments.AckInvalid, ReturnMessage: "payload too large"})
			return
		}

		ack := handler.HandleCallback(ctx, body)
		responses.WriteJSON(w, http.StatusOK, ack)
	}
}
