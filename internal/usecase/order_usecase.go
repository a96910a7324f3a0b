package usecase

import (
	"context"
	"net/http"
	"time"

	"orderpay/internal/domain/model"
	repo "orderpay/internal/repository"
)

// 注文の参照系
type OrderUsecase struct {
	tx repo.TransactionManager
}

func NewOrderUsecase(tx repo.TransactionManager) *OrderUsecase {
	return &OrderUsecase{tx: tx}
}

type OrderItemOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	LineTotal int64  `json:"line_total"`
	Status    string `json:"status"`
}

type PaymentSummaryOutput struct {
	PaymentUID   string `json:"payment_uid"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	PayMethod    string `json:"pay_method"`
	ApprovalCode string `json:"approval_code,omitempty"`
}

type OrderOutput struct {
	ID          int64     `json:"id"`
	MerchantUID string    `json:"merchant_uid"`
	UserID      int64     `json:"user_id"`
	Status      string    `json:"status"`
	ItemTotal   int64     `json:"item_total"`
	DeliveryFee int64     `json:"delivery_fee"`
	Discount    int64     `json:"discount"`
	UsedPoints  int64     `json:"used_points"`
	FinalTotal  int64     `json:"final_total"`
	SavedPoints int64     `json:"saved_points"`
	OrderedAt   time.Time `json:"ordered_at"`
	CreatedAt   time.Time `json:"created_at"`

	Items   []OrderItemOutput     `json:"items"`
	Payment *PaymentSummaryOutput `json:"payment,omitempty"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//ページングでまずは固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items, nil))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//確定済み決済があれば載せる
		var pay *PaymentSummaryOutput
		if p, found, err := r.Payments().FindCompletedByOrderID(ctx, orderID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		} else if found {
			pay = &PaymentSummaryOutput{
				PaymentUID:   p.PaymentUID,
				Status:       string(p.Status),
				Amount:       p.Amount,
				PayMethod:    p.PayMethod,
				ApprovalCode: p.ApprovalCode,
			}
		}

		out = toOrderOutput(o, items, pay)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem, pay *PaymentSummaryOutput) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
			Status:    string(it.Status),
		})
	}

	return OrderOutput{
		ID:          o.ID,
		MerchantUID: o.MerchantUID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		ItemTotal:   o.ItemTotal,
		DeliveryFee: o.DeliveryFee,
		Discount:    o.Discount,
		UsedPoints:  o.UsedPoints,
		FinalTotal:  o.FinalTotal,
		SavedPoints: o.SavedPoints,
		OrderedAt:   o.OrderedAt,
		CreatedAt:   o.CreatedAt,
		Items:       outItems,
		Payment:     pay,
	}
}
