package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"simstore/internal/pkg/httpclient"
)

// Client talks to the storefront backend API. The backend owns the order
// book and the final word on whether a payment happened; this service only
// orchestrates the gateway interaction in between.
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *zap.Logger
}

// Envelope is the backend's standard response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// GatewayConfig is one entry of the gateway map returned by the backend.
// The enabled flag arrives as "1", 1 or true depending on the admin tool
// that last touched it, so it is normalized at this boundary.
type GatewayConfig struct {
	DisplayName string   `json:"name"`
	LogoRef     string   `json:"logo"`
	Enabled     FlexBool `json:"enabled"`
}

// CreateOrderRequest is the POST /orders body.
type CreateOrderRequest struct {
	PlanID           string `json:"plan_id"`
	PaymentGateway   string `json:"payment_gateway"`
	RechargeTargetID string `json:"recharge_target_id,omitempty"`
}

// OrderPayload is the order-shaped data returned by POST /orders. It carries
// the superset of launch parameters any gateway family might need, so no
// second round trip is required per driver.
type OrderPayload struct {
	OrderID          string          `json:"order_id"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	PublicKey        string          `json:"public_key"`
	ClientSecret     string          `json:"client_secret,omitempty"`
	CheckoutURL      string          `json:"checkout_url,omitempty"`
	PaymentSessionID string          `json:"payment_session_id,omitempty"`
	BuyerName        string          `json:"buyer_name"`
	BuyerEmail       string          `json:"buyer_email"`
	BuyerPhone       string          `json:"buyer_phone"`
	RechargeTargetID string          `json:"recharge_target_id,omitempty"`
}

// New creates a backend API client.
func New(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	h := httpclient.New().WithTimeout(timeout)
	if apiKey != "" {
		h.WithBearerToken(apiKey)
	}
	return &Client{
		baseURL: baseURL,
		http:    h,
		logger:  logger,
	}
}

// PaymentGateways fetches the configured gateway map. The backend encodes
// the map as a JSON string inside data; a plain object is accepted too.
func (c *Client) PaymentGateways(ctx context.Context) (map[string]GatewayConfig, error) {
	env, err := c.get(ctx, "/payment/gateways")
	if err != nil {
		return nil, err
	}

	raw := env.Data
	if len(raw) > 0 && raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("backend gateways: decode data string: %w", err)
		}
		raw = []byte(encoded)
	}

	gateways := make(map[string]GatewayConfig)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &gateways); err != nil {
			return nil, fmt.Errorf("backend gateways: decode map: %w", err)
		}
	}
	return gateways, nil
}

// CreateOrder creates one backend order for a purchase intent.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderPayload, error) {
	env, err := c.post(ctx, "/orders", req)
	if err != nil {
		return nil, err
	}

	var order OrderPayload
	if err := json.Unmarshal(env.Data, &order); err != nil {
		return nil, fmt.Errorf("backend order: decode payload: %w", err)
	}
	return &order, nil
}

// VerifyPayment submits a gateway-family-tagged payment payload for
// confirmation. A success=false envelope is returned without error; the
// caller decides how to surface it.
func (c *Client) VerifyPayment(ctx context.Context, payload interface{}) (*Envelope, error) {
	body, err := c.http.Post(ctx, c.baseURL+"/payment/verifyPayment", payload)
	if err != nil {
		return nil, fmt.Errorf("backend verify: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("backend verify: decode response: %w", err)
	}
	return &env, nil
}

func (c *Client) get(ctx context.Context, path string) (*Envelope, error) {
	body, err := c.http.Get(ctx, c.baseURL+path)
	if err != nil {
		return nil, fmt.Errorf("backend GET %s: %w", path, err)
	}
	return decodeEnvelope(path, body)
}

func (c *Client) post(ctx context.Context, path string, reqBody interface{}) (*Envelope, error) {
	body, err := c.http.Post(ctx, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("backend POST %s: %w", path, err)
	}
	return decodeEnvelope(path, body)
}

func decodeEnvelope(path string, body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("backend %s: decode response: %w", path, err)
	}
	if !env.Success {
		return nil, &APIError{Path: path, Message: env.Message}
	}
	return &env, nil
}

// APIError is a backend rejection carrying the backend's own message.
type APIError struct {
	Path    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "backend rejected " + e.Path
	}
	return e.Message
}
