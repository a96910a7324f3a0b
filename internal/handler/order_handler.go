package handler

import (
	"net/http"
	"strconv"

	"orderpay/internal/config"
	"orderpay/internal/middleware"
	"orderpay/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	checkout *usecase.CheckoutUsecase
	orders   *usecase.OrderUsecase
	cancel   *usecase.CancelUsecase
	status   *usecase.OrderStatusUsecase
}

func NewOrderHandler(
	checkout *usecase.CheckoutUsecase,
	orders *usecase.OrderUsecase,
	cancel *usecase.CancelUsecase,
	status *usecase.OrderStatusUsecase,
) *OrderHandler {
	return &OrderHandler{checkout: checkout, orders: orders, cancel: cancel, status: status}
}

type CheckoutItemRequest struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int64  `json:"quantity"`
}

type CheckoutRequest struct {
	Items      []CheckoutItemRequest `json:"items"`
	Discount   int64                 `json:"discount"`
	UsedPoints int64                 `json:"used_points"`

	RecipientName   string `json:"recipient_name"`
	RecipientPhone  string `json:"recipient_phone"`
	ZipCode         string `json:"zip_code"`
	Address1        string `json:"address1"`
	Address2        string `json:"address2"`
	DeliveryMessage string `json:"delivery_message"`
	PayMethodName   string `json:"pay_method_name"`
}

type CancelRequest struct {
	PaymentID    *int64 `json:"payment_id"`
	RefundAmount *int64 `json:"refund_amount"`
	Reason       string `json:"reason"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.POST("/:id/cancel", h.cancelOrder)

	//出荷・配達の後続遷移（フルフィルメント側から呼ばれる）
	g.PATCH("/:id/status", h.updateStatus)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	items := make([]usecase.CheckoutItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, usecase.CheckoutItemInput{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		})
	}

	out, err := h.checkout.PlaceOrder(c.Request().Context(), userID, usecase.CheckoutInput{
		Items:           items,
		Discount:        req.Discount,
		UsedPoints:      req.UsedPoints,
		RecipientName:   req.RecipientName,
		RecipientPhone:  req.RecipientPhone,
		ZipCode:         req.ZipCode,
		Address1:        req.Address1,
		Address2:        req.Address2,
		DeliveryMessage: req.DeliveryMessage,
		PayMethodName:   req.PayMethodName,
	})
	if err != nil {
		return writeError(c, err)
	}

	//一時受付は202で返す
	if out.Degraded {
		return c.JSON(http.StatusAccepted, out)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.orders.ListMyOrders(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.orders.GetMyOrderDetail(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancelOrder(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req CancelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.cancel.Cancel(c.Request().Context(), usecase.CancelInput{
		OrderID:      id,
		UserID:       userID,
		PaymentID:    req.PaymentID,
		RefundAmount: req.RefundAmount,
		Reason:       req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) updateStatus(c echo.Context) error {
	if _, ok := getUserIDFromContext(c); !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if err := h.status.UpdateStatus(c.Request().Context(), id, usecase.UpdateOrderStatusInput{Status: req.Status}); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"result": "ok"})
}

func parseIDParam(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
