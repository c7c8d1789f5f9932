package payment

import (
	"errors"
	"fmt"
)

// Sentinel states a checkout attempt can end in without a gateway failure.
var (
	// ErrUserCancelled means the buyer dismissed the checkout. Not a
	// failure: callers reset silently and must not verify.
	ErrUserCancelled = errors.New("checkout cancelled by user")

	// ErrGatewayUnavailable means a required SDK could not be loaded and no
	// hosted fallback existed. Fatal for the attempt; retrying is allowed.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrAwaitingRedirect means a hosted redirect was issued; the attempt
	// completes out-of-band on the return endpoint, never in-process.
	ErrAwaitingRedirect = errors.New("awaiting hosted checkout return")
)

// OrderCreationError is a backend rejection of order creation. The message
// is shown verbatim when the backend supplied one.
type OrderCreationError struct {
	Message string
}

func (e *OrderCreationError) Error() string {
	if e.Message == "" {
		return "order creation failed"
	}
	return "order creation failed: " + e.Message
}

// DeclinedError means the payment processor itself reported failure. The
// buyer may retry; no money moved.
type DeclinedError struct {
	Gateway Family
	Reason  string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment declined by %s gateway: %s", e.Gateway, e.Reason)
}

// VerificationError means the backend rejected a terminal payment result.
// Ambiguous by nature: funds may have moved at the gateway, so callers must
// direct the buyer to support instead of offering a retry.
type VerificationError struct {
	Message string
}

func (e *VerificationError) Error() string {
	if e.Message == "" {
		return "payment verification failed"
	}
	return "payment verification failed: " + e.Message
}
