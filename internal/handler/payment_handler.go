package handler

import (
	"errors"
	"net/http"

	"orderpay/internal/config"
	"orderpay/internal/middleware"
	"orderpay/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type PrepareRequest struct {
	OrderID int64 `json:"order_id"`
	Amount  int64 `json:"amount"`
}

type VerifyRequest struct {
	ExternalTxnID string `json:"external_txn_id"`
	MerchantUID   string `json:"merchant_uid"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/payments")

	auth := middleware.AuthJWT(cfg)
	g.POST("/prepare", h.prepare, auth)
	g.POST("/verify", h.verify, auth)

	//Webhookはゲートウェイから直接叩かれる（送信元検証は境界層の責務）
	g.POST("/webhook", h.webhook)
}

func (h *PaymentHandler) prepare(c echo.Context) error {
	if _, ok := getUserIDFromContext(c); !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PrepareRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Prepare(c.Request().Context(), req.OrderID, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) verify(c echo.Context) error {
	if _, ok := getUserIDFromContext(c); !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Verify(c.Request().Context(), req.ExternalTxnID, req.MerchantUID)
	if err != nil {
		var mismatch *usecase.AmountMismatchError
		if errors.As(err, &mismatch) {
			return c.JSON(http.StatusConflict, ErrorResponse{Error: mismatch.Error()})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) webhook(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	//失敗してもゲートウェイには200を返す（リトライ制御はこちらの仕事）
	h.uc.HandleWebhook(c.Request().Context(), req.ExternalTxnID, req.MerchantUID)
	return c.JSON(http.StatusOK, map[string]string{"result": "ok"})
}
