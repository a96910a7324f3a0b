package server

import (
	"orderpay/internal/config"
	"orderpay/internal/handler"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, cfg config.Config, orderH *handler.OrderHandler, paymentH *handler.PaymentHandler) {
	orderH.RegisterRoutes(e, cfg)
	paymentH.RegisterRoutes(e, cfg)
}
