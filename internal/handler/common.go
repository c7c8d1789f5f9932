package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the service's standard JSON envelope.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func successResponse(c echo.Context, msg string, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Message: msg,
		Data:    data,
	})
}

func errorResponse(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, Response{
		Success: false,
		Message: msg,
	})
}
