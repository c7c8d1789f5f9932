package payment

import (
	"github.com/shopspring/decimal"
)

// Family identifies one of the three checkout interaction patterns. It is
// also the gateway id the backend uses in order creation and verification.
type Family string

const (
	// FamilyRedirect is a hosted checkout page reached by full navigation.
	FamilyRedirect Family = "redirect"
	// FamilyElement is an embedded payment form bound to a client secret.
	FamilyElement Family = "element"
	// FamilyDropIn is a hosted SDK overlay keyed by a payment session id.
	FamilyDropIn Family = "dropin"
)

// GatewayDescriptor describes one configured payment gateway after
// ingestion normalization. Immutable once fetched.
type GatewayDescriptor struct {
	ID          string
	DisplayName string
	LogoRef     string
	Enabled     bool
	Family      Family
	Currencies  []string
}

// Supports reports whether the gateway settles in the given currency.
func (g GatewayDescriptor) Supports(currency string) bool {
	for _, c := range g.Currencies {
		if c == currency {
			return true
		}
	}
	return false
}

// OrderIntent is a confirmed gateway choice for a plan purchase or top-up.
// It is consumed exactly once by the order coordinator.
type OrderIntent struct {
	PlanID           string
	GatewayID        string
	RechargeTargetID string
}

// Order is the backend-issued record correlating a purchase intent with
// gateway launch parameters. Read-only after creation; owned by the active
// driver until checkout ends.
type Order struct {
	OrderID          string
	GatewayOrderID   string
	Amount           decimal.Decimal
	Currency         string
	Family           Family
	PublicKey        string
	ClientSecret     string
	CheckoutURL      string
	PaymentSessionID string
	BuyerName        string
	BuyerEmail       string
	BuyerPhone       string
	RechargeTargetID string
}

// PaymentResult is the canonical outcome of a completed checkout, tagged by
// gateway family. Produced at most once per order.
type PaymentResult struct {
	Family         Family
	GatewayOrderID string
	// CorrelationID is the gateway-side payment identifier: the confirm
	// correlation id for the element family, the SDK payment id for the
	// drop-in family, the gateway payment id on a redirect return.
	CorrelationID string
	// Signature is only set by redirect-family returns.
	Signature string
}

// VerificationOutcome is the backend's terminal verdict on a PaymentResult.
type VerificationOutcome struct {
	Success bool
	Message string
}
