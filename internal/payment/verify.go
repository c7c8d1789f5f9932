package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"simstore/internal/backend"
)

// VerifyAPI is the slice of the backend client the verifier needs.
type VerifyAPI interface {
	VerifyPayment(ctx context.Context, payload interface{}) (*backend.Envelope, error)
}

// Verifier submits terminal payment results for backend confirmation. The
// payload shape is discriminated by the payment_gateway field; each family
// signals completion with different identifiers.
type Verifier struct {
	api    VerifyAPI
	logger *zap.Logger
}

func NewVerifier(api VerifyAPI, logger *zap.Logger) *Verifier {
	return &Verifier{api: api, logger: logger}
}

// Verify submits result and returns the backend's verdict. Callers own the
// at-most-once guarantee; Verify itself is a plain call.
func (v *Verifier) Verify(ctx context.Context, result *PaymentResult) (*VerificationOutcome, error) {
	var payload interface{}
	switch result.Family {
	case FamilyRedirect:
		payload = map[string]interface{}{
			"payment_gateway":    string(result.Family),
			"gateway_payment_id": result.CorrelationID,
			"gateway_order_id":   result.GatewayOrderID,
			"signature":          result.Signature,
		}
	case FamilyElement:
		payload = map[string]interface{}{
			"payment_gateway":  string(result.Family),
			"gateway_order_id": result.GatewayOrderID,
		}
	case FamilyDropIn:
		payload = map[string]interface{}{
			"payment_gateway":  string(result.Family),
			"payment_id":       result.CorrelationID,
			"gateway_order_id": result.GatewayOrderID,
		}
	default:
		return nil, fmt.Errorf("verify: unknown gateway family %q", result.Family)
	}

	env, err := v.api.VerifyPayment(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}

	if !env.Success {
		v.logger.Warn("Backend rejected payment result",
			zap.String("gateway", string(result.Family)),
			zap.String("gateway_order_id", result.GatewayOrderID),
			zap.String("message", env.Message))
	}
	return &VerificationOutcome{Success: env.Success, Message: env.Message}, nil
}
