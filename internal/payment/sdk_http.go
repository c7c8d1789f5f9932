package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"simstore/internal/pkg/httpclient"
)

// HTTPFetcher is the production Fetcher. Loading means confirming the SDK
// script is reachable, then handing out an API-backed handle registered for
// that URL.
type HTTPFetcher struct {
	client  *httpclient.Client
	handles map[string]SDKHandle
}

// NewHTTPFetcher creates a fetcher with no registered SDKs.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client:  httpclient.New().WithTimeout(15 * time.Second),
		handles: make(map[string]SDKHandle),
	}
}

// RegisterElement maps an SDK script URL to an element-family API handle.
func (f *HTTPFetcher) RegisterElement(scriptURL, apiBase string) {
	f.handles[scriptURL] = &elementGatewaySDK{
		url:     scriptURL,
		apiBase: apiBase,
		client:  httpclient.New().WithTimeout(60 * time.Second).WithRetryCount(0),
	}
}

// RegisterDropIn maps an SDK script URL to a drop-in-family API handle.
func (f *HTTPFetcher) RegisterDropIn(scriptURL, apiBase, mode string) {
	f.handles[scriptURL] = &dropInGatewaySDK{
		url:     scriptURL,
		apiBase: apiBase,
		mode:    mode,
		client:  httpclient.New().WithTimeout(60 * time.Second).WithRetryCount(0),
	}
}

// Fetch checks the script URL and returns the registered handle for it.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (SDKHandle, error) {
	handle, ok := f.handles[url]
	if !ok {
		return nil, fmt.Errorf("no SDK registered for %s", url)
	}
	if err := f.client.Head(ctx, url); err != nil {
		return nil, fmt.Errorf("fetch sdk script: %w", err)
	}
	return handle, nil
}

// elementGatewaySDK confirms element-family payments over the gateway API.
type elementGatewaySDK struct {
	url     string
	apiBase string
	client  *httpclient.Client
}

func (s *elementGatewaySDK) ScriptURL() string { return s.url }

func (s *elementGatewaySDK) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	body := map[string]interface{}{
		"client_secret": req.ClientSecret,
		"public_key":    req.PublicKey,
		"return_url":    req.ReturnURL,
		// Stay in-page unless the payment method forces a redirect.
		"redirect": "if_required",
	}

	resp, err := s.client.Post(ctx, s.apiBase+"/v1/payments/confirm", body)
	if err != nil {
		return nil, fmt.Errorf("element confirm failed: %w", err)
	}

	var result struct {
		Status    string `json:"status"`
		PaymentID string `json:"id"`
		Error     struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("element confirm parse error: %w", err)
	}

	return &ConfirmResult{
		Status:       result.Status,
		PaymentID:    result.PaymentID,
		ErrorMessage: result.Error.Message,
	}, nil
}

// dropInGatewaySDK opens drop-in hosted checkouts over the gateway API.
type dropInGatewaySDK struct {
	url     string
	apiBase string
	mode    string
	client  *httpclient.Client
}

func (s *dropInGatewaySDK) ScriptURL() string { return s.url }

func (s *dropInGatewaySDK) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	body := map[string]interface{}{
		"session_id": req.SessionID,
		"public_key": req.PublicKey,
		"mode":       s.mode,
	}

	resp, err := s.client.Post(ctx, s.apiBase+"/checkout", body)
	if err != nil {
		return nil, fmt.Errorf("dropin checkout failed: %w", err)
	}

	var result struct {
		PaymentID string `json:"payment_id"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("dropin checkout parse error: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("dropin checkout error: %s", result.Error)
	}
	if result.PaymentID == "" {
		return nil, fmt.Errorf("dropin checkout returned no payment id")
	}

	return &CheckoutResult{PaymentID: result.PaymentID}, nil
}
