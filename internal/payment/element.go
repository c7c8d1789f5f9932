package payment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ElementDriver renders an embedded payment form bound to the order's
// client secret and confirms it in-page. Inline gateway errors keep the
// form interactive; only a terminal success status tears it down.
type ElementDriver struct {
	loader    *Loader
	host      MountHost
	sdkURL    string
	returnURL string
	logger    *zap.Logger
}

func NewElementDriver(loader *Loader, host MountHost, sdkURL, returnURL string, logger *zap.Logger) *ElementDriver {
	return &ElementDriver{
		loader:    loader,
		host:      host,
		sdkURL:    sdkURL,
		returnURL: returnURL,
		logger:    logger,
	}
}

func (d *ElementDriver) Family() Family { return FamilyElement }

func (d *ElementDriver) Open(ctx context.Context, order *Order) (*PaymentResult, error) {
	if order.ClientSecret == "" {
		return nil, fmt.Errorf("%w: no client secret on order %s", ErrGatewayUnavailable, order.OrderID)
	}

	handle, err := d.loader.Ensure(ctx, d.sdkURL)
	if err != nil {
		return nil, err
	}
	sdk, ok := handle.(ElementSDK)
	if !ok {
		return nil, fmt.Errorf("%w: sdk at %s has no confirm surface", ErrGatewayUnavailable, d.sdkURL)
	}

	form, err := d.host.Mount(ctx, FormSpec{
		Gateway:    FamilyElement,
		PublicKey:  order.PublicKey,
		Amount:     order.Amount.String(),
		Currency:   order.Currency,
		BuyerEmail: order.BuyerEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: mount form: %v", ErrGatewayUnavailable, err)
	}

	for {
		select {
		case <-ctx.Done():
			form.Close()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ErrUserCancelled
			}
			return nil, ctx.Err()

		case ev, open := <-form.Events():
			if !open {
				form.Close()
				return nil, ErrUserCancelled
			}
			switch ev {
			case EventCancel, EventBackdrop:
				form.Close()
				return nil, ErrUserCancelled

			case EventPay:
				result, err := sdk.ConfirmPayment(ctx, ConfirmRequest{
					ClientSecret: order.ClientSecret,
					PublicKey:    order.PublicKey,
					ReturnURL:    d.returnURL,
				})
				if err != nil {
					// Transport-level confirm failures stay inline; the
					// buyer can simply try the form again.
					d.logger.Warn("Element confirm error", zap.Error(err))
					form.ShowError("Payment could not be processed. Please try again.")
					continue
				}
				if result.ErrorMessage != "" {
					form.ShowError(result.ErrorMessage)
					continue
				}
				if result.Status == "succeeded" {
					form.Close()
					return &PaymentResult{
						Family:         FamilyElement,
						GatewayOrderID: result.PaymentID,
						CorrelationID:  result.PaymentID,
					}, nil
				}
				// Any other status is non-fatal; keep the form interactive.
				form.ShowError("Payment not completed (status: " + result.Status + ").")
			}
		}
	}
}
