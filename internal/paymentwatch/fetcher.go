package paymentwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const errorBodyReadLimit int64 = 1024

// HTTPStatusFetcher reads GET /api/v1/orders/{id}/payment-status. The backend
// asks the gateway before answering, so a poll can settle a payment whose
// callback never arrived.
type HTTPStatusFetcher struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPStatusFetcher builds a fetcher against the storefront API.
func NewHTTPStatusFetcher(baseURL, accessToken string, timeout time.Duration) (*HTTPStatusFetcher, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("api base url required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStatusFetcher{
		baseURL:    trimmed,
		token:      strings.TrimSpace(accessToken),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (f *HTTPStatusFetcher) FetchStatus(ctx context.Context, orderID uuid.UUID) (enums.OrderStatus, error) {
	url := fmt.Sprintf("%s/api/v1/orders/%s/payment-status", f.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build payment status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute payment status request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return "", fmt.Errorf("payment status request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var envelope struct {
		Data struct {
			OrderID uuid.UUID         `json:"order_id"`
			Status  enums.OrderStatus `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decode payment status response: %w", err)
	}
	if envelope.Data.Status == "" {
		return "", errors.New("payment status response carried no status")
	}
	return envelope.Data.Status, nil
}
