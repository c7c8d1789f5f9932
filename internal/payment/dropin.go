package payment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DropInDriver opens the gateway's hosted overlay checkout for the order's
// payment session.
type DropInDriver struct {
	loader *Loader
	sdkURL string
	logger *zap.Logger
}

func NewDropInDriver(loader *Loader, sdkURL string, logger *zap.Logger) *DropInDriver {
	return &DropInDriver{loader: loader, sdkURL: sdkURL, logger: logger}
}

func (d *DropInDriver) Family() Family { return FamilyDropIn }

func (d *DropInDriver) Open(ctx context.Context, order *Order) (*PaymentResult, error) {
	if order.PaymentSessionID == "" {
		return nil, fmt.Errorf("%w: no payment session on order %s", ErrGatewayUnavailable, order.OrderID)
	}

	handle, err := d.loader.Ensure(ctx, d.sdkURL)
	if err != nil {
		return nil, err
	}
	sdk, ok := handle.(DropInSDK)
	if !ok {
		return nil, fmt.Errorf("%w: sdk at %s has no checkout surface", ErrGatewayUnavailable, d.sdkURL)
	}

	result, err := sdk.Checkout(ctx, CheckoutRequest{
		SessionID: order.PaymentSessionID,
		PublicKey: order.PublicKey,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, ErrUserCancelled
		}
		return nil, &DeclinedError{Gateway: FamilyDropIn, Reason: err.Error()}
	}

	d.logger.Info("Drop-in checkout completed",
		zap.String("order_id", order.OrderID),
		zap.String("payment_id", result.PaymentID))
	return &PaymentResult{
		Family:         FamilyDropIn,
		GatewayOrderID: order.GatewayOrderID,
		CorrelationID:  result.PaymentID,
	}, nil
}
