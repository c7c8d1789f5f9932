package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"simstore/internal/backend"
	"simstore/internal/payment"
)

type stubOrders struct {
	mu      sync.Mutex
	payload *backend.OrderPayload
	err     error
	calls   int
	lastReq backend.CreateOrderRequest
}

func (s *stubOrders) CreateOrder(_ context.Context, req backend.CreateOrderRequest) (*backend.OrderPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

func (s *stubOrders) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubVerifier struct {
	mu      sync.Mutex
	outcome *payment.VerificationOutcome
	err     error
	results []*payment.PaymentResult
}

func (s *stubVerifier) Verify(_ context.Context, result *payment.PaymentResult) (*payment.VerificationOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	if s.err != nil {
		return nil, s.err
	}
	if s.outcome != nil {
		return s.outcome, nil
	}
	return &payment.VerificationOutcome{Success: true}, nil
}

func (s *stubVerifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func (s *stubVerifier) last() *payment.PaymentResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return nil
	}
	return s.results[len(s.results)-1]
}

type recordPresenter struct {
	mu        sync.Mutex
	succeeded int
	failed    int
	cancelled int
	lastErr   error
}

func (p *recordPresenter) PaymentSucceeded(_ *Attempt, _ *payment.VerificationOutcome) {
	p.mu.Lock()
	p.succeeded++
	p.mu.Unlock()
}

func (p *recordPresenter) PaymentFailed(_ *Attempt, err error) {
	p.mu.Lock()
	p.failed++
	p.lastErr = err
	p.mu.Unlock()
}

func (p *recordPresenter) CheckoutCancelled(_ *Attempt) {
	p.mu.Lock()
	p.cancelled++
	p.mu.Unlock()
}

func (p *recordPresenter) counts() (succeeded, failed, cancelled int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.succeeded, p.failed, p.cancelled
}

type chanForm struct {
	events chan payment.FormEvent

	mu     sync.Mutex
	closed bool
}

func newChanForm() *chanForm {
	return &chanForm{events: make(chan payment.FormEvent, 4)}
}

func (f *chanForm) Events() <-chan payment.FormEvent { return f.events }
func (f *chanForm) ShowError(string)                 {}

func (f *chanForm) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

type signalHost struct {
	form    *chanForm
	mounted chan struct{}

	mu        sync.Mutex
	attemptID string
}

func newSignalHost(form *chanForm) *signalHost {
	return &signalHost{form: form, mounted: make(chan struct{}, 1)}
}

func (h *signalHost) Mount(_ context.Context, _ payment.FormSpec) (payment.MountedForm, error) {
	select {
	case h.mounted <- struct{}{}:
	default:
	}
	return h.form, nil
}

func (h *signalHost) AttemptStarted(id string) {
	h.mu.Lock()
	h.attemptID = id
	h.mu.Unlock()
}

func (h *signalHost) attempt() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attemptID
}

// blockingOrders parks order creation until the attempt context ends.
type blockingOrders struct {
	started chan struct{}

	mu    sync.Mutex
	calls int
}

func newBlockingOrders() *blockingOrders {
	return &blockingOrders{started: make(chan struct{}, 1)}
}

func (s *blockingOrders) CreateOrder(ctx context.Context, _ backend.CreateOrderRequest) (*backend.OrderPayload, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *blockingOrders) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordNav struct {
	mu   sync.Mutex
	urls []string
}

func (n *recordNav) Navigate(url string) error {
	n.mu.Lock()
	n.urls = append(n.urls, url)
	n.mu.Unlock()
	return nil
}

func (n *recordNav) targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

type scriptedElementSDK struct {
	mu     sync.Mutex
	result *payment.ConfirmResult
	err    error
}

func (s *scriptedElementSDK) ScriptURL() string { return "https://sdk.test/element.js" }

func (s *scriptedElementSDK) ConfirmPayment(_ context.Context, _ payment.ConfirmRequest) (*payment.ConfirmResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

type scriptedDropInSDK struct {
	result *payment.CheckoutResult
	err    error
}

func (s *scriptedDropInSDK) ScriptURL() string { return "https://sdk.test/dropin.js" }

func (s *scriptedDropInSDK) Checkout(_ context.Context, _ payment.CheckoutRequest) (*payment.CheckoutResult, error) {
	return s.result, s.err
}

// fixedFetcher hands the pre-registered handle per URL.
type fixedFetcher struct {
	mu      sync.Mutex
	handles map[string]payment.SDKHandle
	err     error
	calls   int
}

func (f *fixedFetcher) Fetch(_ context.Context, url string) (payment.SDKHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	h, ok := f.handles[url]
	if !ok {
		return nil, errors.New("no sdk at " + url)
	}
	return h, nil
}

func (f *fixedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type flowFixture struct {
	flow      *Flow
	orders    *stubOrders
	verifier  *stubVerifier
	presenter *recordPresenter
	fetcher   *fixedFetcher
}

func newFlowFixture(t *testing.T, orders *stubOrders, verifier *stubVerifier, fetcher *fixedFetcher) *flowFixture {
	t.Helper()
	markers, err := NewMarkerStore("", "", 0, time.Minute)
	require.NoError(t, err)

	presenter := &recordPresenter{}
	flow := NewFlow(FlowConfig{
		Orders:        orders,
		Verifier:      verifier,
		Markers:       markers,
		Presenter:     presenter,
		Loader:        payment.NewLoader(fetcher, zap.NewNop()),
		ElementSDKURL: "https://sdk.test/element.js",
		DropInSDKURL:  "https://sdk.test/dropin.js",
		ReturnURL:     "https://shop.test/payment/return",
		Logger:        zap.NewNop(),
	})
	return &flowFixture{flow: flow, orders: orders, verifier: verifier, presenter: presenter, fetcher: fetcher}
}

func elementFetcher(sdk payment.ElementSDK) *fixedFetcher {
	return &fixedFetcher{handles: map[string]payment.SDKHandle{"https://sdk.test/element.js": sdk}}
}

func dropInFetcher(sdk payment.DropInSDK) *fixedFetcher {
	return &fixedFetcher{handles: map[string]payment.SDKHandle{"https://sdk.test/dropin.js": sdk}}
}

func elementPayload() *backend.OrderPayload {
	return &backend.OrderPayload{
		OrderID:        "ord_e1",
		GatewayOrderID: "gw_e1",
		Amount:         decimal.NewFromFloat(9.99),
		Currency:       "USD",
		PublicKey:      "pk_1",
		ClientSecret:   "cs_1",
	}
}

func redirectPayload() *backend.OrderPayload {
	return &backend.OrderPayload{
		OrderID:        "ord_r1",
		GatewayOrderID: "gw_r1",
		Amount:         decimal.NewFromInt(15),
		Currency:       "USD",
		CheckoutURL:    "https://pay.test/session/r1",
	}
}

func dropInPayload() *backend.OrderPayload {
	return &backend.OrderPayload{
		OrderID:          "ord_d1",
		GatewayOrderID:   "gw_d1",
		Amount:           decimal.NewFromInt(30),
		Currency:         "USD",
		PublicKey:        "pk_2",
		PaymentSessionID: "ps_1",
	}
}

type beginResult struct {
	attempt *Attempt
	err     error
}

func beginAsync(f *Flow, intent payment.OrderIntent, host payment.MountHost, nav payment.Navigator) <-chan beginResult {
	ch := make(chan beginResult, 1)
	go func() {
		attempt, err := f.Begin(context.Background(), intent, host, nav)
		ch <- beginResult{attempt: attempt, err: err}
	}()
	return ch
}

func waitBegin(t *testing.T, ch <-chan beginResult) beginResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("Begin did not return")
		return beginResult{}
	}
}

func waitMounted(t *testing.T, host *signalHost) {
	t.Helper()
	select {
	case <-host.mounted:
	case <-time.After(2 * time.Second):
		t.Fatal("form was never mounted")
	}
}

func TestFlowElementSuccess(t *testing.T) {
	sdk := &scriptedElementSDK{result: &payment.ConfirmResult{Status: "succeeded", PaymentID: "pi_123"}}
	fx := newFlowFixture(t, &stubOrders{payload: elementPayload()}, &stubVerifier{}, elementFetcher(sdk))

	form := newChanForm()
	form.events <- payment.EventPay

	attempt, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_1", GatewayID: "element"},
		newSignalHost(form), &recordNav{})
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, attempt.State())
	assert.False(t, attempt.InFlight())
	assert.Equal(t, 1, fx.orders.count(), "exactly one order per attempt")
	assert.Equal(t, "plan_1", fx.orders.lastReq.PlanID)
	assert.Equal(t, "element", fx.orders.lastReq.PaymentGateway)

	require.Equal(t, 1, fx.verifier.count(), "exactly one verify per order")
	result := fx.verifier.last()
	assert.Equal(t, payment.FamilyElement, result.Family)
	assert.Equal(t, "pi_123", result.CorrelationID)

	succeeded, failed, cancelled := fx.presenter.counts()
	assert.Equal(t, 1, succeeded)
	assert.Zero(t, failed)
	assert.Zero(t, cancelled)
}

func TestFlowOrderCreationFailure(t *testing.T) {
	orders := &stubOrders{err: &backend.APIError{Path: "/orders", Message: "plan sold out"}}
	fx := newFlowFixture(t, orders, &stubVerifier{}, elementFetcher(&scriptedElementSDK{}))

	attempt, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_1", GatewayID: "element"},
		newSignalHost(newChanForm()), &recordNav{})

	var orderErr *payment.OrderCreationError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, "plan sold out", orderErr.Message)

	assert.Equal(t, StateFailed, attempt.State())
	assert.Equal(t, "plan sold out", attempt.Message())
	assert.Zero(t, fx.verifier.count(), "no verify without a resolved result")
	assert.Zero(t, fx.fetcher.count(), "no SDK load without an order")

	_, failed, _ := fx.presenter.counts()
	assert.Equal(t, 1, failed)
}

func TestFlowUnknownGateway(t *testing.T) {
	fx := newFlowFixture(t, &stubOrders{}, &stubVerifier{}, &fixedFetcher{})

	_, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_1", GatewayID: "paypal"},
		newSignalHost(newChanForm()), &recordNav{})

	require.Error(t, err)
	assert.Zero(t, fx.orders.count())
}

func TestFlowCancelStopsDriver(t *testing.T) {
	fx := newFlowFixture(t, &stubOrders{payload: elementPayload()}, &stubVerifier{}, elementFetcher(&scriptedElementSDK{}))

	form := newChanForm()
	host := newSignalHost(form)
	done := beginAsync(fx.flow, payment.OrderIntent{PlanID: "plan_1", GatewayID: "element"}, host, &recordNav{})
	waitMounted(t, host)

	active := fx.flow.Active()
	require.NotNil(t, active)
	fx.flow.Cancel(active.ID)

	got := waitBegin(t, done)
	require.NoError(t, got.err, "cancellation is not an error")
	assert.Equal(t, StateCancelled, got.attempt.State())
	assert.False(t, got.attempt.InFlight())
	assert.Zero(t, fx.verifier.count(), "cancel issues no verification")

	succeeded, failed, cancelled := fx.presenter.counts()
	assert.Zero(t, succeeded)
	assert.Zero(t, failed)
	assert.Equal(t, 1, cancelled)
}

func TestFlowCancelDuringOrderCreation(t *testing.T) {
	newBlockedFlow := func(t *testing.T) (*Flow, *blockingOrders, *stubVerifier, *recordPresenter) {
		t.Helper()
		orders := newBlockingOrders()
		verifier := &stubVerifier{}
		presenter := &recordPresenter{}
		markers, err := NewMarkerStore("", "", 0, time.Minute)
		require.NoError(t, err)
		flow := NewFlow(FlowConfig{
			Orders:        orders,
			Verifier:      verifier,
			Markers:       markers,
			Presenter:     presenter,
			Loader:        payment.NewLoader(&fixedFetcher{}, zap.NewNop()),
			ElementSDKURL: "https://sdk.test/element.js",
			DropInSDKURL:  "https://sdk.test/dropin.js",
			Logger:        zap.NewNop(),
		})
		return flow, orders, verifier, presenter
	}

	waitStarted := func(t *testing.T, orders *blockingOrders) {
		t.Helper()
		select {
		case <-orders.started:
		case <-time.After(2 * time.Second):
			t.Fatal("order creation never started")
		}
	}

	t.Run("explicit cancel stays silent", func(t *testing.T) {
		flow, orders, verifier, presenter := newBlockedFlow(t)

		host := newSignalHost(newChanForm())
		done := beginAsync(flow, payment.OrderIntent{PlanID: "plan_1", GatewayID: "element"}, host, &recordNav{})
		waitStarted(t, orders)

		require.NotEmpty(t, host.attempt(), "host learns the attempt id before blocking work")
		flow.Cancel(host.attempt())

		got := waitBegin(t, done)
		require.NoError(t, got.err, "cancellation is not an error")
		assert.Equal(t, StateCancelled, got.attempt.State())
		assert.Empty(t, got.attempt.Message())
		assert.Zero(t, verifier.count())
		assert.Equal(t, 1, orders.count())

		succeeded, failed, cancelled := presenter.counts()
		assert.Zero(t, succeeded)
		assert.Zero(t, failed, "a cancelled attempt is never presented as failed")
		assert.Equal(t, 1, cancelled)
	})

	t.Run("sweeper expiry presents exactly once", func(t *testing.T) {
		flow, orders, verifier, presenter := newBlockedFlow(t)

		host := newSignalHost(newChanForm())
		done := beginAsync(flow, payment.OrderIntent{PlanID: "plan_1", GatewayID: "element"}, host, &recordNav{})
		waitStarted(t, orders)

		assert.Equal(t, 1, flow.ExpireStale(0))

		got := waitBegin(t, done)
		require.NoError(t, got.err)
		assert.Equal(t, StateCancelled, got.attempt.State())
		assert.Zero(t, verifier.count())

		succeeded, failed, cancelled := presenter.counts()
		assert.Zero(t, succeeded)
		assert.Zero(t, failed)
		assert.Equal(t, 1, cancelled, "expiry and the unwinding Begin must not both present")
	})
}

func TestFlowVerificationRejected(t *testing.T) {
	sdk := &scriptedElementSDK{result: &payment.ConfirmResult{Status: "succeeded", PaymentID: "pi_123"}}
	verifier := &stubVerifier{outcome: &payment.VerificationOutcome{Success: false, Message: "amount mismatch"}}
	fx := newFlowFixture(t, &stubOrders{payload: elementPayload()}, verifier, elementFetcher(sdk))

	form := newChanForm()
	form.events <- payment.EventPay

	attempt, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_1", GatewayID: "element"},
		newSignalHost(form), &recordNav{})

	var verifyErr *payment.VerificationError
	require.ErrorAs(t, err, &verifyErr)

	assert.Equal(t, StateFailed, attempt.State())
	assert.Contains(t, attempt.Message(), "support")
	assert.Equal(t, 1, fx.verifier.count())

	_, failed, _ := fx.presenter.counts()
	assert.Equal(t, 1, failed)
	var presentedErr *payment.VerificationError
	assert.ErrorAs(t, fx.presenter.lastErr, &presentedErr)
}

func TestFlowRedirectParksAndResumes(t *testing.T) {
	fx := newFlowFixture(t, &stubOrders{payload: redirectPayload()}, &stubVerifier{}, &fixedFetcher{})
	nav := &recordNav{}

	attempt, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_1", GatewayID: "redirect"},
		newSignalHost(newChanForm()), nav)
	require.NoError(t, err)

	assert.Equal(t, StateAwaitingRedirect, attempt.State())
	assert.True(t, attempt.InFlight())
	assert.Equal(t, []string{"https://pay.test/session/r1"}, nav.targets())
	assert.Zero(t, fx.fetcher.count(), "hosted redirect needs no SDK")
	assert.Zero(t, fx.verifier.count(), "parked attempts are not verified")

	resumed, err := fx.flow.CompleteRedirect(context.Background(), RedirectReturn{
		GatewayOrderID: "gw_r1",
		PaymentID:      "gw_pay_9",
		Signature:      "sig_1",
	})
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, resumed.ID)
	assert.Equal(t, StateSucceeded, resumed.State())

	require.Equal(t, 1, fx.verifier.count())
	result := fx.verifier.last()
	assert.Equal(t, payment.FamilyRedirect, result.Family)
	assert.Equal(t, "gw_r1", result.GatewayOrderID)
	assert.Equal(t, "gw_pay_9", result.CorrelationID)
	assert.Equal(t, "sig_1", result.Signature)

	succeeded, _, _ := fx.presenter.counts()
	assert.Equal(t, 1, succeeded)
}

func TestFlowDuplicateRedirectReturn(t *testing.T) {
	fx := newFlowFixture(t, &stubOrders{payload: redirectPayload()}, &stubVerifier{}, &fixedFetcher{})

	_, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_1", GatewayID: "redirect"},
		newSignalHost(newChanForm()), &recordNav{})
	require.NoError(t, err)

	ret := RedirectReturn{GatewayOrderID: "gw_r1", PaymentID: "gw_pay_9", Signature: "sig_1"}
	_, err = fx.flow.CompleteRedirect(context.Background(), ret)
	require.NoError(t, err)

	// The buyer refreshes the return page; the consumed marker absorbs it.
	_, err = fx.flow.CompleteRedirect(context.Background(), ret)
	require.Error(t, err)
	assert.Equal(t, 1, fx.verifier.count(), "second return must not verify again")
}

func TestFlowRedirectCancelWhileParked(t *testing.T) {
	fx := newFlowFixture(t, &stubOrders{payload: redirectPayload()}, &stubVerifier{}, &fixedFetcher{})

	attempt, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_1", GatewayID: "redirect"},
		newSignalHost(newChanForm()), &recordNav{})
	require.NoError(t, err)
	require.Equal(t, StateAwaitingRedirect, attempt.State())

	fx.flow.Cancel(attempt.ID)

	assert.Equal(t, StateCancelled, attempt.State())
	assert.Zero(t, fx.verifier.count())
	_, _, cancelled := fx.presenter.counts()
	assert.Equal(t, 1, cancelled)
}

func TestFlowRedirectReturnAfterLocalCancel(t *testing.T) {
	// The buyer may have paid on the hosted page before cancelling here, so
	// the return is still verified; only the presentation stays suppressed.
	fx := newFlowFixture(t, &stubOrders{payload: redirectPayload()}, &stubVerifier{}, &fixedFetcher{})

	attempt, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_1", GatewayID: "redirect"},
		newSignalHost(newChanForm()), &recordNav{})
	require.NoError(t, err)

	fx.flow.Cancel(attempt.ID)
	require.Equal(t, StateCancelled, attempt.State())

	resumed, err := fx.flow.CompleteRedirect(context.Background(), RedirectReturn{
		GatewayOrderID: "gw_r1",
		PaymentID:      "gw_pay_9",
		Signature:      "sig_1",
	})
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, resumed.ID)
	assert.Equal(t, 1, fx.verifier.count(), "the backend gets the final word on a completed hosted payment")
	assert.Equal(t, StateCancelled, resumed.State(), "a terminal attempt is not re-presented")

	succeeded, _, cancelled := fx.presenter.counts()
	assert.Zero(t, succeeded)
	assert.Equal(t, 1, cancelled)
}

func TestFlowSecondAttemptCancelsFirst(t *testing.T) {
	sdk := &scriptedElementSDK{result: &payment.ConfirmResult{Status: "succeeded", PaymentID: "pi_2"}}
	fx := newFlowFixture(t, &stubOrders{payload: elementPayload()}, &stubVerifier{}, elementFetcher(sdk))

	firstForm := newChanForm()
	firstHost := newSignalHost(firstForm)
	first := beginAsync(fx.flow, payment.OrderIntent{PlanID: "plan_1", GatewayID: "element"}, firstHost, &recordNav{})
	waitMounted(t, firstHost)

	secondForm := newChanForm()
	secondForm.events <- payment.EventPay
	attempt, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_2", GatewayID: "element"},
		newSignalHost(secondForm), &recordNav{})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, attempt.State())

	got := waitBegin(t, first)
	require.NoError(t, got.err)
	assert.Equal(t, StateCancelled, got.attempt.State())

	assert.Equal(t, 2, fx.orders.count())
	assert.Equal(t, 1, fx.verifier.count(), "only the surviving attempt verifies")

	succeeded, failed, cancelled := fx.presenter.counts()
	assert.Equal(t, 1, succeeded)
	assert.Zero(t, failed)
	assert.Equal(t, 1, cancelled)
}

func TestFlowExpireStale(t *testing.T) {
	fx := newFlowFixture(t, &stubOrders{payload: elementPayload()}, &stubVerifier{}, elementFetcher(&scriptedElementSDK{}))

	form := newChanForm()
	host := newSignalHost(form)
	done := beginAsync(fx.flow, payment.OrderIntent{PlanID: "plan_1", GatewayID: "element"}, host, &recordNav{})
	waitMounted(t, host)

	expired := fx.flow.ExpireStale(0)
	assert.Equal(t, 1, expired)

	got := waitBegin(t, done)
	require.NoError(t, got.err)
	assert.Equal(t, StateCancelled, got.attempt.State())
	assert.Zero(t, fx.verifier.count())

	// Terminal attempts are pruned on the next sweep.
	assert.Zero(t, fx.flow.ExpireStale(0))
	_, ok := fx.flow.Attempt(got.attempt.ID)
	assert.False(t, ok)
}

func TestFlowDropInDeclined(t *testing.T) {
	sdk := &scriptedDropInSDK{err: errors.New("card declined")}
	fx := newFlowFixture(t, &stubOrders{payload: dropInPayload()}, &stubVerifier{}, dropInFetcher(sdk))

	attempt, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_1", GatewayID: "dropin"},
		newSignalHost(newChanForm()), &recordNav{})

	var declined *payment.DeclinedError
	require.ErrorAs(t, err, &declined)

	assert.Equal(t, StateFailed, attempt.State())
	assert.Contains(t, attempt.Message(), "declined")
	assert.Zero(t, fx.verifier.count())
}

func TestFlowSDKOutageNoFallback(t *testing.T) {
	fetcher := &fixedFetcher{err: errors.New("cdn outage")}
	fx := newFlowFixture(t, &stubOrders{payload: dropInPayload()}, &stubVerifier{}, fetcher)

	attempt, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_1", GatewayID: "dropin"},
		newSignalHost(newChanForm()), &recordNav{})

	require.ErrorIs(t, err, payment.ErrGatewayUnavailable)
	assert.Equal(t, StateFailed, attempt.State())
	assert.Equal(t, 1, fx.orders.count())
	assert.Zero(t, fx.verifier.count(), "no verify on an unopened checkout")
}

func TestFlowDropInSuccessUsesSessionFallbackForRedirectFamily(t *testing.T) {
	// A redirect-family order that arrives without a hosted URL but with a
	// payment session runs the drop-in flow instead.
	payload := dropInPayload()
	sdk := &scriptedDropInSDK{result: &payment.CheckoutResult{PaymentID: "pay_7"}}
	fx := newFlowFixture(t, &stubOrders{payload: payload}, &stubVerifier{}, dropInFetcher(sdk))

	attempt, err := fx.flow.Begin(context.Background(), payment.OrderIntent{PlanID: "plan_1", GatewayID: "redirect"},
		newSignalHost(newChanForm()), &recordNav{})
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, attempt.State())
	require.Equal(t, 1, fx.verifier.count())
	assert.Equal(t, payment.FamilyDropIn, fx.verifier.last().Family)
}
