package payment

import "context"

// SDKHandle is a loaded gateway SDK. Concrete capabilities are asserted per
// family, so a test double can stand in without touching process state.
type SDKHandle interface {
	// ScriptURL is the script the handle was loaded from.
	ScriptURL() string
}

// ConfirmRequest binds an element-family confirmation to one order.
type ConfirmRequest struct {
	ClientSecret string
	PublicKey    string
	// ReturnURL is handed to the gateway but only followed when the
	// confirmation strictly requires a redirect.
	ReturnURL string
}

// ConfirmResult is what the element SDK reports back for a confirm call.
type ConfirmResult struct {
	// Status is the gateway's payment status, e.g. "succeeded",
	// "processing", "requires_payment_method".
	Status string
	// PaymentID is the gateway correlation id for the confirmation.
	PaymentID string
	// ErrorMessage is a non-fatal inline error to show next to the form.
	ErrorMessage string
}

// ElementSDK is the confirm surface of an embedded payment-element SDK.
type ElementSDK interface {
	SDKHandle
	ConfirmPayment(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error)
}

// CheckoutRequest opens a drop-in hosted checkout for one payment session.
type CheckoutRequest struct {
	SessionID string
	PublicKey string
}

// CheckoutResult is the drop-in SDK's report of a completed checkout.
type CheckoutResult struct {
	// PaymentID identifies the payment the SDK collected.
	PaymentID string
}

// DropInSDK is the modal checkout surface of a hosted drop-in SDK.
type DropInSDK interface {
	SDKHandle
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}
