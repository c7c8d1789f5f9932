package checkout

import (
	"errors"

	"go.uber.org/zap"

	"simstore/internal/payment"
)

// Presenter surfaces terminal checkout outcomes to the buyer-facing layer.
// Cancellation is silent: the UI resets to gateway selection and nothing
// else happens.
type Presenter interface {
	PaymentSucceeded(attempt *Attempt, outcome *payment.VerificationOutcome)
	PaymentFailed(attempt *Attempt, err error)
	CheckoutCancelled(attempt *Attempt)
}

// RefreshFunc re-fetches buyer state that a successful purchase invalidates
// (balance, usage, plan list).
type RefreshFunc func()

// NotifyPresenter logs outcomes and triggers the registered refreshes on
// success. The user-visible messages land on the attempt for the status
// endpoint to serve.
type NotifyPresenter struct {
	logger    *zap.Logger
	refreshes []RefreshFunc
}

func NewNotifyPresenter(logger *zap.Logger, refreshes ...RefreshFunc) *NotifyPresenter {
	return &NotifyPresenter{logger: logger, refreshes: refreshes}
}

func (p *NotifyPresenter) PaymentSucceeded(attempt *Attempt, outcome *payment.VerificationOutcome) {
	p.logger.Info("Payment verified",
		zap.String("attempt_id", attempt.ID),
		zap.String("order_id", attempt.OrderID()))
	for _, refresh := range p.refreshes {
		refresh()
	}
}

func (p *NotifyPresenter) PaymentFailed(attempt *Attempt, err error) {
	var verifyErr *payment.VerificationError
	if errors.As(err, &verifyErr) {
		// Money may already have moved at the gateway; never suggest a
		// retry here.
		p.logger.Error("Payment verification failed, directing buyer to support",
			zap.String("attempt_id", attempt.ID),
			zap.String("order_id", attempt.OrderID()),
			zap.Error(err))
		return
	}
	p.logger.Warn("Checkout failed",
		zap.String("attempt_id", attempt.ID),
		zap.Error(err))
}

func (p *NotifyPresenter) CheckoutCancelled(attempt *Attempt) {
	p.logger.Debug("Checkout cancelled", zap.String("attempt_id", attempt.ID))
}

// UserMessage maps a terminal error to the message the buyer should see.
func UserMessage(err error) string {
	var verifyErr *payment.VerificationError
	var declined *payment.DeclinedError
	var orderErr *payment.OrderCreationError
	switch {
	case errors.As(err, &verifyErr):
		return "We could not confirm your payment. Please contact support before retrying."
	case errors.As(err, &declined):
		return "Your payment was declined. You can try again or pick another payment method."
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return "This payment method is temporarily unavailable. Please try again."
	case errors.As(err, &orderErr):
		if orderErr.Message != "" {
			return orderErr.Message
		}
		return "We could not start your order. Please try again."
	default:
		return "Something went wrong with your payment. Please try again."
	}
}
