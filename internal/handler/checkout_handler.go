package handler

import (
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"simstore/internal/checkout"
	"simstore/internal/payment"
)

// CheckoutHandler exposes the purchase flow to browser clients: gateway
// listing, attempt lifecycle, form events and the hosted-redirect return.
type CheckoutHandler struct {
	flow    *checkout.Flow
	catalog *payment.Catalog
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*webSession
}

// webSession pairs one started checkout with its web host.
type webSession struct {
	host      *webHost
	createdAt time.Time

	mu      sync.Mutex
	attempt *checkout.Attempt
	err     error
	done    chan struct{}
}

func (s *webSession) finish(attempt *checkout.Attempt, err error) {
	s.mu.Lock()
	s.attempt = attempt
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *webSession) snapshot() (*checkout.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt, s.err
}

func NewCheckoutHandler(flow *checkout.Flow, catalog *payment.Catalog, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		flow:     flow,
		catalog:  catalog,
		logger:   logger,
		sessions: make(map[string]*webSession),
	}
}

// ListGateways returns the gateways eligible for the buyer's currency.
// GET /checkout/gateways?currency=USD
func (h *CheckoutHandler) ListGateways(c echo.Context) error {
	currency := strings.ToUpper(strings.TrimSpace(c.QueryParam("currency")))
	if currency == "" {
		return errorResponse(c, "currency is required")
	}

	gateways, err := h.catalog.ListEligible(c.Request().Context(), currency)
	if err != nil {
		h.logger.Error("Failed to list gateways", zap.Error(err))
		return errorResponse(c, "Failed to retrieve payment gateways")
	}

	items := make([]map[string]interface{}, 0, len(gateways))
	for _, g := range gateways {
		items = append(items, map[string]interface{}{
			"id":   g.ID,
			"name": g.DisplayName,
			"logo": g.LogoRef,
		})
	}

	// An empty list is a valid answer: the client renders "no gateways
	// available", not an error.
	return successResponse(c, "Successful", map[string]interface{}{
		"gateways": items,
	})
}

// Start begins a purchase attempt.
// POST /checkout {plan_id, gateway_id, recharge_target_id?}
func (h *CheckoutHandler) Start(c echo.Context) error {
	var req struct {
		PlanID           string `json:"plan_id"`
		GatewayID        string `json:"gateway_id"`
		RechargeTargetID string `json:"recharge_target_id"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "Invalid request body")
	}
	if req.PlanID == "" || req.GatewayID == "" {
		return errorResponse(c, "plan_id and gateway_id are required")
	}

	session := &webSession{
		host:      newWebHost(),
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
	sessionID := uuid.New().String()

	h.mu.Lock()
	h.sessions[sessionID] = session
	h.mu.Unlock()

	intent := payment.OrderIntent{
		PlanID:           req.PlanID,
		GatewayID:        req.GatewayID,
		RechargeTargetID: req.RechargeTargetID,
	}
	go func() {
		attempt, err := h.flow.Begin(c.Request().Context(), intent, session.host, session.host)
		if err != nil {
			h.logger.Warn("Checkout attempt ended with error",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		session.finish(attempt, err)
	}()

	// Answer as soon as the driver has something to show, or the attempt
	// ends first (rejection, immediate completion).
	select {
	case <-session.host.Ready():
	case <-session.done:
	case <-time.After(15 * time.Second):
		// The client gets an error, so nothing will ever drive this attempt.
		if id := session.host.AttemptID(); id != "" {
			h.flow.Cancel(id)
		}
		return errorResponse(c, "Checkout timed out while starting")
	}

	if url := session.host.RedirectURL(); url != "" {
		return successResponse(c, "Successful", map[string]interface{}{
			"session_id":   sessionID,
			"checkout_url": url,
		})
	}
	if form := session.host.Form(); form != nil {
		spec := form.Spec()
		return successResponse(c, "Successful", map[string]interface{}{
			"session_id": sessionID,
			"form": map[string]interface{}{
				"gateway":    string(spec.Gateway),
				"public_key": spec.PublicKey,
				"amount":     spec.Amount,
				"currency":   spec.Currency,
			},
		})
	}

	attempt, err := session.snapshot()
	if err != nil {
		return errorResponse(c, checkout.UserMessage(err))
	}
	return h.statusPayload(c, sessionID, attempt)
}

// Pay relays the buyer's submit into the mounted form.
// POST /checkout/:id/pay
func (h *CheckoutHandler) Pay(c echo.Context) error {
	session, ok := h.session(c.Param("id"))
	if !ok {
		return errorResponse(c, "Unknown checkout session")
	}
	form := session.host.Form()
	if form == nil {
		return errorResponse(c, "No payment form is active")
	}
	if err := form.Push(payment.EventPay); err != nil {
		return errorResponse(c, err.Error())
	}
	return successResponse(c, "Submitted", nil)
}

// Cancel dismisses the checkout. Silent: no verification, no error.
// POST /checkout/:id/cancel
func (h *CheckoutHandler) Cancel(c echo.Context) error {
	session, ok := h.session(c.Param("id"))
	if !ok {
		return errorResponse(c, "Unknown checkout session")
	}

	if form := session.host.Form(); form != nil {
		_ = form.Push(payment.EventCancel)
	}
	if attempt, _ := session.snapshot(); attempt != nil {
		h.flow.Cancel(attempt.ID)
	}
	return successResponse(c, "Cancelled", nil)
}

// Status reports the attempt state for polling clients.
// GET /checkout/:id
func (h *CheckoutHandler) Status(c echo.Context) error {
	sessionID := c.Param("id")
	session, ok := h.session(sessionID)
	if !ok {
		return errorResponse(c, "Unknown checkout session")
	}

	attempt, _ := session.snapshot()
	return h.statusPayload(c, sessionID, attempt)
}

func (h *CheckoutHandler) statusPayload(c echo.Context, sessionID string, attempt *checkout.Attempt) error {
	state := string(checkout.StateProcessing)
	message := ""
	inlineError := ""
	if attempt != nil {
		state = string(attempt.State())
		message = attempt.Message()
	}
	if session, ok := h.session(sessionID); ok {
		if form := session.host.Form(); form != nil {
			inlineError = form.InlineError()
		}
	}

	return successResponse(c, "Successful", map[string]interface{}{
		"session_id":   sessionID,
		"state":        state,
		"message":      message,
		"inline_error": inlineError,
	})
}

// Return completes a parked redirect-family attempt from the gateway's
// return navigation and renders a small result page.
// GET /payment/return
func (h *CheckoutHandler) Return(c echo.Context) error {
	ret := checkout.RedirectReturn{
		GatewayOrderID: c.QueryParam("gateway_order_id"),
		PaymentID:      c.QueryParam("gateway_payment_id"),
		Signature:      c.QueryParam("signature"),
	}
	if ret.GatewayOrderID == "" {
		return h.renderResultPage(c, "Payment error", "Missing payment parameters.")
	}

	attempt, err := h.flow.CompleteRedirect(c.Request().Context(), ret)
	if err != nil {
		if attempt == nil {
			h.logger.Warn("Unmatched redirect return",
				zap.String("gateway_order_id", ret.GatewayOrderID), zap.Error(err))
			return h.renderResultPage(c, "Payment error", "This payment could not be matched to a checkout.")
		}
		return h.renderResultPage(c, "Payment not confirmed", checkout.UserMessage(err))
	}

	return h.renderResultPage(c, "Payment successful", "Thank you! Your plan will be activated shortly.")
}

func (h *CheckoutHandler) session(id string) (*webSession, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

// PruneSessions drops sessions older than maxAge. Called by the sweeper.
func (h *CheckoutHandler) PruneSessions(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		if s.createdAt.Before(cutoff) {
			delete(h.sessions, id)
		}
	}
}

var resultPageTmpl = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Payment result</title>
    <style>
        body { font-family: sans-serif; background: #f2f2f2; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        .box { background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); padding: 40px; text-align: center; max-width: 400px; width: 100%; }
        h1 { color: #333; margin-bottom: 20px; }
        p { color: #666; margin-bottom: 10px; }
    </style>
</head>
<body>
    <div class="box">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>`))

func (h *CheckoutHandler) renderResultPage(c echo.Context, title, message string) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return resultPageTmpl.Execute(c.Response().Writer, map[string]string{
		"Title":   title,
		"Message": message,
	})
}
