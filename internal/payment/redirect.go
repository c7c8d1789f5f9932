package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RedirectDriver hands the buyer to a hosted checkout page. By construction
// it never resolves in-process: completion arrives out-of-band on the
// return endpoint, so Open reports ErrAwaitingRedirect after navigating.
type RedirectDriver struct {
	nav    Navigator
	logger *zap.Logger
}

func NewRedirectDriver(nav Navigator, logger *zap.Logger) *RedirectDriver {
	return &RedirectDriver{nav: nav, logger: logger}
}

func (d *RedirectDriver) Family() Family { return FamilyRedirect }

func (d *RedirectDriver) Open(ctx context.Context, order *Order) (*PaymentResult, error) {
	if order.CheckoutURL == "" {
		return nil, fmt.Errorf("%w: no checkout url on order %s", ErrGatewayUnavailable, order.OrderID)
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrUserCancelled
	}

	if err := d.nav.Navigate(order.CheckoutURL); err != nil {
		return nil, fmt.Errorf("%w: navigate: %v", ErrGatewayUnavailable, err)
	}

	d.logger.Info("Hosted checkout opened",
		zap.String("order_id", order.OrderID),
		zap.String("gateway_order_id", order.GatewayOrderID))
	return nil, ErrAwaitingRedirect
}
