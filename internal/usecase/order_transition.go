package usecase

import (
	"context"
	"net/http"
	"time"

	"orderpay/internal/domain/model"
	repo "orderpay/internal/repository"
)

// transitionOrderはステータス変更の唯一の入り口。
// 注文と明細を同じトランザクション内で一括更新する。
// 決済や退会の事情は知らない（呼び出し側の責務）
func transitionOrder(ctx context.Context, r repo.TxRepos, orderID int64, to model.OrderStatus) (model.Order, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if !model.CanTransition(o.Status, to) {
		//部分更新しない
		return model.Order{}, &model.InvalidTransitionError{From: o.Status, To: to}
	}

	if err := r.Orders().UpdateStatus(ctx, orderID, to); err != nil {
		if err == repo.ErrNotFound {
			return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//明細もミラーする
	if err := r.OrderItems().UpdateStatusByOrderID(ctx, orderID, to); err != nil {
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	o.Status = to
	return o, nil
}

// OrderStatusUsecaseは出荷・配達などの後続遷移
// （PAYMENT_COMPLETED→SHIPPING→DELIVERED）を外部から受ける
type OrderStatusUsecase struct {
	tx repo.TransactionManager
}

func NewOrderStatusUsecase(tx repo.TransactionManager) *OrderStatusUsecase {
	return &OrderStatusUsecase{tx: tx}
}

type UpdateOrderStatusInput struct {
	Status string
}

func (u *OrderStatusUsecase) UpdateStatus(ctx context.Context, orderID int64, in UpdateOrderStatusInput) error {
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus := model.OrderStatus(in.Status)
	switch newStatus {
	case model.OrderStatusPreparing, model.OrderStatusShipping, model.OrderStatusDelivered:
		// OK
	default:
		//決済確定やキャンセルはこの口からは受け付けない
		return NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := transitionOrder(ctx, r, orderID, newStatus)
		if err != nil {
			if _, ok := err.(*model.InvalidTransitionError); ok {
				return NewHTTPError(http.StatusConflict, err.Error())
			}
			return err
		}

		//出荷に入ったら出荷日時を記録する
		if o.Status == model.OrderStatusShipping {
			if err := r.Orders().UpdateShippedAt(ctx, orderID, time.Now()); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}
		return nil
	})
}
