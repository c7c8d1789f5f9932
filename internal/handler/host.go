package handler

import (
	"context"
	"fmt"
	"sync"

	"simstore/internal/payment"
)

// webHost bridges one browser client to the capabilities a checkout driver
// requests: it captures hosted-redirect navigation and renders the
// embedded-element form by relaying its spec and events over HTTP.
type webHost struct {
	mu        sync.Mutex
	form      *webForm
	redirect  string
	attemptID string

	ready     chan struct{}
	readyOnce sync.Once
}

func newWebHost() *webHost {
	return &webHost{ready: make(chan struct{})}
}

func (h *webHost) signalReady() {
	h.readyOnce.Do(func() { close(h.ready) })
}

// AttemptStarted records the attempt id as soon as the flow registers it, so
// the handler can cancel the attempt before Begin returns.
func (h *webHost) AttemptStarted(id string) {
	h.mu.Lock()
	h.attemptID = id
	h.mu.Unlock()
}

func (h *webHost) AttemptID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attemptID
}

// Navigate records the hosted checkout URL for the browser to follow.
func (h *webHost) Navigate(url string) error {
	h.mu.Lock()
	h.redirect = url
	h.mu.Unlock()
	h.signalReady()
	return nil
}

// Mount hands the driver a live form backed by the event endpoints.
func (h *webHost) Mount(_ context.Context, spec payment.FormSpec) (payment.MountedForm, error) {
	form := &webForm{
		spec:   spec,
		events: make(chan payment.FormEvent, 4),
	}
	h.mu.Lock()
	h.form = form
	h.mu.Unlock()
	h.signalReady()
	return form, nil
}

// Ready is closed once the driver produced something to show: a redirect
// target or a mounted form.
func (h *webHost) Ready() <-chan struct{} { return h.ready }

func (h *webHost) RedirectURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.redirect
}

func (h *webHost) Form() *webForm {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.form
}

// webForm is the HTTP-relayed MountedForm: the driver consumes events the
// buyer posts, and the buyer polls the inline error back out.
type webForm struct {
	spec   payment.FormSpec
	events chan payment.FormEvent

	mu     sync.Mutex
	errMsg string
	closed bool
}

func (f *webForm) Events() <-chan payment.FormEvent { return f.events }

func (f *webForm) ShowError(msg string) {
	f.mu.Lock()
	f.errMsg = msg
	f.mu.Unlock()
}

func (f *webForm) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *webForm) InlineError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

// Push relays a buyer action into the driver's event loop.
func (f *webForm) Push(ev payment.FormEvent) error {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return fmt.Errorf("checkout form is no longer active")
	}
	select {
	case f.events <- ev:
		return nil
	default:
		return fmt.Errorf("too many pending form events")
	}
}

func (f *webForm) Spec() payment.FormSpec { return f.spec }
