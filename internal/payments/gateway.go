package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	defaultGatewayURL           = "https://sb-openapi.zalopay.vn/v2"
	gatewayBodyReadLimit  int64 = 1024
	defaultGatewayTimeout       = 10 * time.Second
)

var (
	errAppIDRequired = errors.New("wallet app id is required")
	errKey1Required  = errors.New("wallet key1 is required")
)

// GatewayStatus is the settled state reported by the gateway query API.
type GatewayStatus string

const (
	GatewayStatusPaid    GatewayStatus = "paid"
	GatewayStatusFailed  GatewayStatus = "failed"
	GatewayStatusPending GatewayStatus = "pending"
)

// Gateway is the wallet provider surface used by the payments service.
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error)
	QueryOrder(ctx context.Context, appTransID string) (*QueryResult, error)
}

// CreateOrderRequest describes one payment attempt.
type CreateOrderRequest struct {
	AppTransID  string
	AppUser     string
	Amount      int64
	Description string
	EmbedData   map[string]any
	Items       []map[string]any
}

// CreateOrderResult carries the URL the buyer completes payment at.
type CreateOrderResult struct {
	OrderURL     string
	ZPTransToken string
}

// QueryResult is the gateway's view of one transaction reference.
type QueryResult struct {
	Status    GatewayStatus
	ZPTransID string
	Amount    int64
	Message   string
}

// GatewayConfig holds the credentials for the wallet API. Key1 signs requests.
type GatewayConfig struct {
	AppID       string
	Key1        string
	Endpoint    string
	CallbackURL string
	Timeout     time.Duration
}

// GatewayClient talks to the ZaloPay-style wallet API over form-encoded POSTs.
type GatewayClient struct {
	httpClient  *http.Client
	baseURL     string
	appID       string
	key1        string
	callbackURL string
	now         func() time.Time
}

// GatewayOption configures optional client behavior.
type GatewayOption func(*GatewayClient)

// WithGatewayHTTPClient overrides the default HTTP client.
func WithGatewayHTTPClient(client *http.Client) GatewayOption {
	return func(c *GatewayClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithGatewayClock overrides the clock used for app_time.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(c *GatewayClient) {
		if now != nil {
			c.now = now
		}
	}
}

// NewGatewayClient validates credentials and builds the client.
func NewGatewayClient(cfg GatewayConfig, opts ...GatewayOption) (*GatewayClient, error) {
	appID := strings.TrimSpace(cfg.AppID)
	if appID == "" {
		return nil, errAppIDRequired
	}
	if strings.TrimSpace(cfg.Key1) == "" {
		return nil, errKey1Required
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	baseURL := strings.TrimSpace(cfg.Endpoint)
	if baseURL == "" {
		baseURL = defaultGatewayURL
	}

	client := &GatewayClient{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		appID:       appID,
		key1:        cfg.Key1,
		callbackURL: strings.TrimSpace(cfg.CallbackURL),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CreateOrder registers a payment attempt and returns the buyer-facing order URL.
func (c *GatewayClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet gateway not configured")
	}
	if strings.TrimSpace(req.AppTransID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "app_trans_id is required")
	}
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	embed := req.EmbedData
	if embed == nil {
		embed = map[string]any{}
	}
	embedJSON, err := json.Marshal(embed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "marshal embed data")
	}
	items := req.Items
	if items == nil {
		items = []map[string]any{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "marshal items")
	}

	appTime := strconv.FormatInt(c.now().UnixMilli(), 10)
	amount := strconv.FormatInt(req.Amount, 10)
	form := url.Values{}
	form.Set("app_id", c.appID)
	form.Set("app_trans_id", req.AppTransID)
	form.Set("app_user", req.AppUser)
	form.Set("app_time", appTime)
	form.Set("amount", amount)
	form.Set("description", req.Description)
	form.Set("embed_data", string(embedJSON))
	form.Set("item", string(itemsJSON))
	if c.callbackURL != "" {
		form.Set("callback_url", c.callbackURL)
	}
	form.Set("mac", Sign(strings.Join([]string{
		c.appID, req.AppTransID, req.AppUser, amount, appTime, string(embedJSON), string(itemsJSON),
	}, "|"), c.key1))

	var apiResp struct {
		ReturnCode    int    `json:"return_code"`
		ReturnMessage string `json:"return_message"`
		OrderURL      string `json:"order_url"`
		ZPTransToken  string `json:"zp_trans_token"`
	}
	if err := c.post(ctx, "create", form, &apiResp); err != nil {
		return nil, err
	}
	if apiResp.ReturnCode != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "wallet gateway rejected the order").
			WithDetails(map[string]any{"return_code": apiResp.ReturnCode, "return_message": apiResp.ReturnMessage})
	}
	return &CreateOrderResult{OrderURL: apiResp.OrderURL, ZPTransToken: apiResp.ZPTransToken}, nil
}

// QueryOrder asks the gateway for the settled state of a reference.
func (c *GatewayClient) QueryOrder(ctx context.Context, appTransID string) (*QueryResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet gateway not configured")
	}
	trimmed := strings.TrimSpace(appTransID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "app_trans_id is required")
	}

	form := url.Values{}
	form.Set("app_id", c.appID)
	form.Set("app_trans_id", trimmed)
	form.Set("mac", Sign(strings.Join([]string{c.appID, trimmed, c.key1}, "|"), c.key1))

	var apiResp struct {
		ReturnCode    int        `json:"return_code"`
		ReturnMessage string     `json:"return_message"`
		IsProcessing  bool       `json:"is_processing"`
		Amount        int64      `json:"amount"`
		ZPTransID     flexString `json:"zp_trans_id"`
	}
	if err := c.post(ctx, "query", form, &apiResp); err != nil {
		return nil, err
	}

	result := &QueryResult{
		ZPTransID: apiResp.ZPTransID.String(),
		Amount:    apiResp.Amount,
		Message:   apiResp.ReturnMessage,
	}
	switch {
	case apiResp.ReturnCode == 1:
		result.Status = GatewayStatusPaid
	case apiResp.ReturnCode == 2 && !apiResp.IsProcessing:
		result.Status = GatewayStatusFailed
	default:
		result.Status = GatewayStatusPending
	}
	return result, nil
}

func (c *GatewayClient) post(ctx context.Context, path string, form url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "build wallet request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute wallet request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, gatewayBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "wallet request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode wallet response")
	}
	return nil
}
