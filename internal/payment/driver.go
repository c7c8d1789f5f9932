package payment

import (
	"context"

	"go.uber.org/zap"
)

// Driver drives one external checkout protocol to completion. Open blocks
// until the checkout produces a result or ends: it returns a PaymentResult,
// ErrUserCancelled, ErrAwaitingRedirect (redirect family only), a
// DeclinedError, or ErrGatewayUnavailable. Nothing else escapes a driver.
type Driver interface {
	Family() Family
	Open(ctx context.Context, order *Order) (*PaymentResult, error)
}

// Navigator is the host capability to leave the current page for a hosted
// checkout URL.
type Navigator interface {
	Navigate(url string) error
}

// FormEvent is a user action on a mounted payment form.
type FormEvent int

const (
	EventPay FormEvent = iota + 1
	EventCancel
	// EventBackdrop is a click outside the form surface; treated as cancel.
	EventBackdrop
)

// FormSpec is an opaque description of the embedded payment form the host
// should render. The driver never touches presentation itself.
type FormSpec struct {
	Gateway    Family
	PublicKey  string
	Amount     string
	Currency   string
	BuyerEmail string
}

// MountedForm is a live rendered form: a stream of user events plus the two
// mutations a driver may apply to it.
type MountedForm interface {
	Events() <-chan FormEvent
	ShowError(msg string)
	Close()
}

// MountHost renders payment forms on behalf of drivers.
type MountHost interface {
	Mount(ctx context.Context, spec FormSpec) (MountedForm, error)
}

// DriverDeps bundles what the driver variants need from their environment.
type DriverDeps struct {
	Loader    *Loader
	Navigator Navigator
	Host      MountHost
	// ElementSDKURL and DropInSDKURL are the fixed script URLs per family.
	ElementSDKURL string
	DropInSDKURL  string
	// ReturnURL is the static return target for confirm calls.
	ReturnURL string
	Logger    *zap.Logger
}

// SelectDriver picks the driver for an order. A hosted checkout URL always
// wins over an SDK flow: it needs no script load and survives SDK outages.
// A redirect-family order without a checkout URL falls back to the drop-in
// flow when a payment session is available.
func SelectDriver(order *Order, deps DriverDeps) (Driver, error) {
	if order.CheckoutURL != "" {
		return NewRedirectDriver(deps.Navigator, deps.Logger), nil
	}

	switch order.Family {
	case FamilyElement:
		return NewElementDriver(deps.Loader, deps.Host, deps.ElementSDKURL, deps.ReturnURL, deps.Logger), nil
	case FamilyDropIn, FamilyRedirect:
		return NewDropInDriver(deps.Loader, deps.DropInSDKURL, deps.Logger), nil
	default:
		return nil, ErrGatewayUnavailable
	}
}
