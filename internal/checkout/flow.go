package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"simstore/internal/backend"
	"simstore/internal/payment"
)

// State is the lifecycle position of a purchase attempt.
type State string

const (
	StateProcessing       State = "processing"
	StateAwaitingRedirect State = "awaiting_redirect"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
	StateCancelled        State = "cancelled"
)

func (s State) terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Attempt is one purchase attempt: exactly one order, one driver, at most
// one verification.
type Attempt struct {
	ID        string
	Intent    payment.OrderIntent
	StartedAt time.Time

	cancel context.CancelFunc

	mu       sync.Mutex
	order    *payment.Order
	state    State
	message  string
	verified bool
}

// State returns the current lifecycle state.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Message is the buyer-facing outcome message, if any.
func (a *Attempt) Message() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.message
}

// OrderID returns the backend order id once the order exists.
func (a *Attempt) OrderID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.order == nil {
		return ""
	}
	return a.order.OrderID
}

// InFlight reports whether the attempt still holds processing state.
func (a *Attempt) InFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.state.terminal()
}

func (a *Attempt) setOrder(o *payment.Order) {
	a.mu.Lock()
	a.order = o
	a.mu.Unlock()
}

func (a *Attempt) snapshotOrder() *payment.Order {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.order
}

// transition moves to a new state unless a terminal state was reached
// first. Exactly one terminal transition wins, which keeps the presenter
// from being invoked twice when cancellation races completion.
func (a *Attempt) transition(to State, message string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.terminal() {
		return false
	}
	a.state = to
	a.message = message
	return true
}

func (a *Attempt) claimVerify() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.verified {
		return false
	}
	a.verified = true
	return true
}

// AttemptObserver is an optional capability of a MountHost: hosts that
// implement it learn the attempt id as soon as the attempt is registered,
// before any blocking work starts.
type AttemptObserver interface {
	AttemptStarted(attemptID string)
}

// OrderAPI creates backend orders.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req backend.CreateOrderRequest) (*backend.OrderPayload, error)
}

// VerifierAPI confirms payment results with the backend.
type VerifierAPI interface {
	Verify(ctx context.Context, result *payment.PaymentResult) (*payment.VerificationOutcome, error)
}

// Flow owns purchase attempts end to end: order creation, driver dispatch,
// verification, presentation. One driver is active at a time; beginning a
// new attempt tears the previous one down.
type Flow struct {
	orders    OrderAPI
	verifier  VerifierAPI
	markers   MarkerStore
	presenter Presenter

	loader        *payment.Loader
	elementSDKURL string
	dropInSDKURL  string
	returnURL     string

	logger *zap.Logger

	mu       sync.Mutex
	attempts map[string]*Attempt
	active   *Attempt
}

// FlowConfig wires a Flow.
type FlowConfig struct {
	Orders        OrderAPI
	Verifier      VerifierAPI
	Markers       MarkerStore
	Presenter     Presenter
	Loader        *payment.Loader
	ElementSDKURL string
	DropInSDKURL  string
	ReturnURL     string
	Logger        *zap.Logger
}

func NewFlow(cfg FlowConfig) *Flow {
	return &Flow{
		orders:        cfg.Orders,
		verifier:      cfg.Verifier,
		markers:       cfg.Markers,
		presenter:     cfg.Presenter,
		loader:        cfg.Loader,
		elementSDKURL: cfg.ElementSDKURL,
		dropInSDKURL:  cfg.DropInSDKURL,
		returnURL:     cfg.ReturnURL,
		logger:        cfg.Logger,
		attempts:      make(map[string]*Attempt),
	}
}

// Begin runs one purchase attempt to its in-process conclusion. It blocks
// while the driver is open, so callers that serve HTTP run it on their own
// goroutine. A parked redirect attempt returns with no error and state
// StateAwaitingRedirect.
func (f *Flow) Begin(ctx context.Context, intent payment.OrderIntent, host payment.MountHost, nav payment.Navigator) (*Attempt, error) {
	family, ok := payment.FamilyOf(intent.GatewayID)
	if !ok {
		return nil, fmt.Errorf("unknown payment gateway %q", intent.GatewayID)
	}

	// The attempt outlives the request that started it; detach from the
	// caller's deadline but keep its values.
	attemptCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	attempt := &Attempt{
		ID:        uuid.New().String(),
		Intent:    intent,
		StartedAt: time.Now(),
		cancel:    cancel,
		state:     StateProcessing,
	}

	f.mu.Lock()
	if prev := f.active; prev != nil && prev.InFlight() {
		// Starting a new attempt implies the previous surface is gone.
		prev.cancel()
	}
	f.active = attempt
	f.attempts[attempt.ID] = attempt
	f.mu.Unlock()

	if obs, ok := host.(AttemptObserver); ok {
		obs.AttemptStarted(attempt.ID)
	}

	order, err := f.createOrder(attemptCtx, attempt, family)
	if err != nil {
		return attempt, f.failOrCancel(attemptCtx, attempt, err)
	}
	attempt.setOrder(order)

	driver, err := payment.SelectDriver(order, payment.DriverDeps{
		Loader:        f.loader,
		Navigator:     nav,
		Host:          host,
		ElementSDKURL: f.elementSDKURL,
		DropInSDKURL:  f.dropInSDKURL,
		ReturnURL:     f.returnURL,
		Logger:        f.logger,
	})
	if err != nil {
		return attempt, f.failOrCancel(attemptCtx, attempt, err)
	}

	result, err := driver.Open(attemptCtx, order)
	switch {
	case err == nil:
		return attempt, f.finish(attemptCtx, attempt, result)

	case errors.Is(err, payment.ErrAwaitingRedirect):
		if err := f.parkForRedirect(attemptCtx, attempt, order); err != nil {
			return attempt, f.failOrCancel(attemptCtx, attempt, err)
		}
		attempt.transition(StateAwaitingRedirect, "")
		return attempt, nil

	case errors.Is(err, payment.ErrUserCancelled):
		if attempt.transition(StateCancelled, "") {
			f.presenter.CheckoutCancelled(attempt)
		}
		return attempt, nil

	default:
		return attempt, f.failOrCancel(attemptCtx, attempt, translateDriverError(err))
	}
}

// failOrCancel presents a failure unless the attempt was cancelled while the
// failing call was in flight. Cancellation stays silent on every path: no
// failure message, no error back to the caller.
func (f *Flow) failOrCancel(ctx context.Context, attempt *Attempt, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		if attempt.transition(StateCancelled, "") {
			f.presenter.CheckoutCancelled(attempt)
		}
		return nil
	}
	if attempt.transition(StateFailed, UserMessage(err)) {
		f.presenter.PaymentFailed(attempt, err)
	}
	return err
}

// createOrder performs the exactly-one backend order creation for the
// attempt. No partial order is retained on failure.
func (f *Flow) createOrder(ctx context.Context, attempt *Attempt, family payment.Family) (*payment.Order, error) {
	payload, err := f.orders.CreateOrder(ctx, backend.CreateOrderRequest{
		PlanID:           attempt.Intent.PlanID,
		PaymentGateway:   attempt.Intent.GatewayID,
		RechargeTargetID: attempt.Intent.RechargeTargetID,
	})
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return nil, &payment.OrderCreationError{Message: apiErr.Message}
		}
		return nil, &payment.OrderCreationError{Message: err.Error()}
	}

	return &payment.Order{
		OrderID:          payload.OrderID,
		GatewayOrderID:   payload.GatewayOrderID,
		Amount:           payload.Amount,
		Currency:         payload.Currency,
		Family:           family,
		PublicKey:        payload.PublicKey,
		ClientSecret:     payload.ClientSecret,
		CheckoutURL:      payload.CheckoutURL,
		PaymentSessionID: payload.PaymentSessionID,
		BuyerName:        payload.BuyerName,
		BuyerEmail:       payload.BuyerEmail,
		BuyerPhone:       payload.BuyerPhone,
		RechargeTargetID: payload.RechargeTargetID,
	}, nil
}

func (f *Flow) parkForRedirect(ctx context.Context, attempt *Attempt, order *payment.Order) error {
	marker := &Marker{
		AttemptID:      attempt.ID,
		OrderID:        order.OrderID,
		GatewayOrderID: order.GatewayOrderID,
		CreatedAt:      time.Now().Unix(),
	}
	if err := f.markers.Put(ctx, marker); err != nil {
		return fmt.Errorf("%w: store redirect marker: %v", payment.ErrGatewayUnavailable, err)
	}
	return nil
}

// finish verifies a terminal payment result at most once and presents the
// outcome. Verification strictly follows a resolved result; nothing else
// ever reaches the backend verify endpoint.
func (f *Flow) finish(ctx context.Context, attempt *Attempt, result *payment.PaymentResult) error {
	if !attempt.claimVerify() {
		return nil
	}
	orderID := attempt.OrderID()
	if first, err := f.markers.FirstVerify(ctx, orderID); err != nil {
		f.logger.Warn("Verify guard unavailable, proceeding", zap.Error(err))
	} else if !first {
		f.logger.Info("Order already verified, skipping", zap.String("order_id", orderID))
		return nil
	}

	outcome, err := f.verifier.Verify(ctx, result)
	if err != nil {
		vErr := &payment.VerificationError{Message: err.Error()}
		if attempt.transition(StateFailed, UserMessage(vErr)) {
			f.presenter.PaymentFailed(attempt, vErr)
		}
		return vErr
	}

	if !outcome.Success {
		vErr := &payment.VerificationError{Message: outcome.Message}
		if attempt.transition(StateFailed, UserMessage(vErr)) {
			f.presenter.PaymentFailed(attempt, vErr)
		}
		return vErr
	}

	if attempt.transition(StateSucceeded, "Payment completed. Thank you!") {
		f.presenter.PaymentSucceeded(attempt, outcome)
	}
	return nil
}

// RedirectReturn carries the gateway's return-URL parameters.
type RedirectReturn struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// CompleteRedirect resumes a parked redirect-family attempt from its return
// callback. Duplicate returns are absorbed by the consume-once marker.
func (f *Flow) CompleteRedirect(ctx context.Context, ret RedirectReturn) (*Attempt, error) {
	marker, ok, err := f.markers.Take(ctx, ret.GatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("redirect return: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("redirect return: no pending attempt for gateway order %q", ret.GatewayOrderID)
	}

	f.mu.Lock()
	attempt := f.attempts[marker.AttemptID]
	f.mu.Unlock()
	if attempt == nil {
		// Process restarted since the buyer left for the hosted page.
		attempt = &Attempt{
			ID:        marker.AttemptID,
			StartedAt: time.Unix(marker.CreatedAt, 0),
			cancel:    func() {},
			state:     StateAwaitingRedirect,
			order:     &payment.Order{OrderID: marker.OrderID, GatewayOrderID: marker.GatewayOrderID},
		}
		f.mu.Lock()
		f.attempts[attempt.ID] = attempt
		f.mu.Unlock()
	}

	result := &payment.PaymentResult{
		Family:         payment.FamilyRedirect,
		GatewayOrderID: ret.GatewayOrderID,
		CorrelationID:  ret.PaymentID,
		Signature:      ret.Signature,
	}
	return attempt, f.finish(ctx, attempt, result)
}

// Cancel tears down an attempt: the driver stops, injected surface state is
// removed, no verification is issued. Safe on unknown ids.
func (f *Flow) Cancel(attemptID string) {
	f.mu.Lock()
	attempt := f.attempts[attemptID]
	f.mu.Unlock()
	if attempt == nil {
		return
	}

	attempt.cancel()
	// A parked attempt has no driver waiting on the context; transition it
	// directly. For live drivers the cancellation surfaces through Begin.
	if attempt.State() == StateAwaitingRedirect {
		if attempt.transition(StateCancelled, "") {
			f.presenter.CheckoutCancelled(attempt)
		}
	}
}

// Active returns the attempt currently holding the checkout surface, if
// any.
func (f *Flow) Active() *Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Attempt looks up an attempt by id.
func (f *Flow) Attempt(attemptID string) (*Attempt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptID]
	return a, ok
}

// ExpireStale cancels attempts that have been in flight longer than maxAge
// and prunes terminal ones. Returns how many were cancelled.
func (f *Flow) ExpireStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	f.mu.Lock()
	var stale []*Attempt
	for id, a := range f.attempts {
		if a.StartedAt.After(cutoff) {
			continue
		}
		if a.InFlight() {
			stale = append(stale, a)
		} else {
			delete(f.attempts, id)
		}
	}
	f.mu.Unlock()

	for _, a := range stale {
		f.logger.Warn("Expiring abandoned checkout attempt",
			zap.String("attempt_id", a.ID),
			zap.Time("started_at", a.StartedAt))
		a.cancel()
		if a.transition(StateCancelled, "Checkout expired.") {
			f.presenter.CheckoutCancelled(a)
		}
	}
	return len(stale)
}

func translateDriverError(err error) error {
	var declined *payment.DeclinedError
	switch {
	case errors.Is(err, payment.ErrGatewayUnavailable),
		errors.As(err, &declined):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: checkout timed out", payment.ErrGatewayUnavailable)
	default:
		// No raw SDK or transport error may reach presentation.
		return fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
}
