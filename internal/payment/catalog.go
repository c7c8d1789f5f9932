package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"simstore/internal/backend"
)

// gatewayStatic is the fixed, client-side part of a gateway descriptor:
// which interaction family drives it and which settlement currencies it can
// take. The backend only toggles availability; it never ships this table.
type gatewayStatic struct {
	family     Family
	currencies []string
}

var gatewayTable = map[string]gatewayStatic{
	string(FamilyRedirect): {
		family:     FamilyRedirect,
		currencies: []string{"USD", "EUR", "GBP", "INR", "AED", "SGD", "MYR"},
	},
	string(FamilyElement): {
		family: FamilyElement,
		currencies: []string{
			"USD", "EUR", "GBP", "AUD", "CAD", "JPY", "SGD",
			"HKD", "AED", "INR", "CHF", "NZD", "SEK", "NOK", "DKK",
		},
	},
	string(FamilyDropIn): {
		family:     FamilyDropIn,
		currencies: []string{"USD", "EUR", "GBP", "CNY", "HKD", "SGD", "AUD", "JPY"},
	},
}

// gatewayOrder fixes the presentation order of the selection list.
var gatewayOrder = []string{
	string(FamilyRedirect),
	string(FamilyElement),
	string(FamilyDropIn),
}

// GatewayAPI is the slice of the backend client the catalog needs.
type GatewayAPI interface {
	PaymentGateways(ctx context.Context) (map[string]backend.GatewayConfig, error)
}

// Catalog lists the payment gateways a buyer can actually use.
type Catalog struct {
	api    GatewayAPI
	logger *zap.Logger
}

// NewCatalog creates a gateway catalog backed by the given API.
func NewCatalog(api GatewayAPI, logger *zap.Logger) *Catalog {
	return &Catalog{api: api, logger: logger}
}

// ListEligible returns the gateways that are administratively enabled and
// settle in the buyer's currency, in fixed presentation order. An empty
// result is a valid answer, not an error.
func (c *Catalog) ListEligible(ctx context.Context, currency string) ([]GatewayDescriptor, error) {
	configured, err := c.api.PaymentGateways(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gateways: %w", err)
	}

	eligible := make([]GatewayDescriptor, 0, len(configured))
	for _, id := range gatewayOrder {
		cfg, ok := configured[id]
		if !ok {
			continue
		}

		static, known := gatewayTable[id]
		if !known {
			c.logger.Warn("Backend returned unknown gateway", zap.String("gateway", id))
			continue
		}

		desc := GatewayDescriptor{
			ID:          id,
			DisplayName: cfg.DisplayName,
			LogoRef:     cfg.LogoRef,
			Enabled:     cfg.Enabled.Bool(),
			Family:      static.family,
			Currencies:  static.currencies,
		}
		if !desc.Enabled || !desc.Supports(currency) {
			continue
		}
		eligible = append(eligible, desc)
	}

	return eligible, nil
}

// FamilyOf resolves the interaction family of a gateway id.
func FamilyOf(gatewayID string) (Family, bool) {
	static, ok := gatewayTable[gatewayID]
	if !ok {
		return "", false
	}
	return static.family, true
}
