package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"simstore/internal/handler"
	"simstore/internal/middleware"
)

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, checkoutHandler *handler.CheckoutHandler, apiKey string) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	// Checkout API, consumed by the storefront web app.
	checkoutGroup := e.Group("/checkout")
	checkoutGroup.Use(middleware.APIAuth(apiKey))
	checkoutGroup.GET("/gateways", checkoutHandler.ListGateways)
	checkoutGroup.POST("", checkoutHandler.Start)
	checkoutGroup.GET("/:id", checkoutHandler.Status)
	checkoutGroup.POST("/:id/pay", checkoutHandler.Pay)
	checkoutGroup.POST("/:id/cancel", checkoutHandler.Cancel)

	// Hosted-redirect gateways navigate the buyer back here; no API auth.
	e.GET("/payment/return", checkoutHandler.Return)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
