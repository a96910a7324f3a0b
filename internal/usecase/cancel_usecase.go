package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orderpay/internal/domain/model"
	"orderpay/internal/infra/gateway"
	"orderpay/internal/infra/notify"
	repo "orderpay/internal/repository"

	"github.com/labstack/gommon/log"
)

type CancelUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	payments repo.PaymentRepository
	cancels  repo.OrderCancelRepository
	gw       gateway.PaymentGateway
	notifier notify.Notifier
}

func NewCancelUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	payments repo.PaymentRepository,
	cancels repo.OrderCancelRepository,
	gw gateway.PaymentGateway,
	notifier notify.Notifier,
) *CancelUsecase {
	return &CancelUsecase{
		tx:       tx,
		orders:   orders,
		payments: payments,
		cancels:  cancels,
		gw:       gw,
		notifier: notifier,
	}
}

type CancelInput struct {
	OrderID      int64
	UserID       int64
	PaymentID    *int64
	RefundAmount *int64
	Reason       string
}

type CancelOutput struct {
	OrderID          int64  `json:"order_id"`
	OrderStatus      string `json:"order_status"`
	RefundAmount     int64  `json:"refund_amount"`
	RefundStatus     string `json:"refund_status"`
	ExternalCancelID string `json:"external_cancel_id,omitempty"`
}

// Cancelは注文のキャンセル。
// ゲートウェイ側の返金が失敗してもローカルではCANCELLEDにし、
// 返金FAILEDを監査レコードに残して手動フォローに回す
// （ユーザーのキャンセル操作を不安定なゲートウェイで止めない）
func (u *CancelUsecase) Cancel(ctx context.Context, in CancelInput) (CancelOutput, error) {
	if in.UserID <= 0 {
		return CancelOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.OrderID <= 0 {
		return CancelOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return CancelOutput{}, NewHTTPError(http.StatusBadRequest, "reason required")
	}

	o, err := u.orders.FindByID(ctx, in.OrderID)
	if err == repo.ErrNotFound {
		return CancelOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CancelOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if o.UserID != in.UserID {
		return CancelOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	//既にキャンセル済みなら2つ目の監査レコードは作らない
	if _, found, err := u.cancels.FindByOrderID(ctx, in.OrderID); err != nil {
		return CancelOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	} else if found {
		return CancelOutput{}, NewHTTPError(http.StatusConflict, "already cancelled")
	}

	if !model.IsCancellable(o.Status) {
		return CancelOutput{}, NewHTTPError(http.StatusConflict, "order is not cancellable")
	}

	refundAmount := o.FinalTotal
	if in.RefundAmount != nil {
		if *in.RefundAmount < 0 || *in.RefundAmount > o.FinalTotal {
			return CancelOutput{}, NewHTTPError(http.StatusBadRequest, "invalid refund amount")
		}
		refundAmount = *in.RefundAmount
	}

	//ゲートウェイへの補償キャンセル。結果がどうであれ監査レコードには残す
	refundStatus := model.RefundStatusCompleted
	externalCancelID := ""
	refundSucceeded := true

	if in.PaymentID != nil {
		p, err := u.payments.FindByID(ctx, *in.PaymentID)
		if err == repo.ErrNotFound {
			return CancelOutput{}, NewHTTPError(http.StatusNotFound, "payment not found")
		}
		if err != nil {
			return CancelOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if p.OrderID != o.ID {
			return CancelOutput{}, NewHTTPError(http.StatusBadRequest, "payment does not belong to order")
		}
		if p.ExternalTxnID == nil {
			//ゲートウェイ側に取り消すものがない
			refundStatus = model.RefundStatusCompleted
		} else {
			res, gerr := u.gw.Cancel(ctx, *p.ExternalTxnID, refundAmount, reason)
			if gerr != nil {
				//キャンセル自体は成立させ、返金失敗として記録する
				log.Errorf("gateway cancel failed for payment %d (order %d): %v", p.ID, o.ID, gerr)
				refundStatus = model.RefundStatusFailed
				refundSucceeded = false

				if nerr := u.notifier.Notify(ctx, notify.CategoryManualReview,
					fmt.Sprintf("refund failed on cancel: order=%d payment=%d amount=%d", o.ID, p.ID, refundAmount)); nerr != nil {
					log.Errorf("notify refund failure failed: %v", nerr)
				}
			} else {
				externalCancelID = res.ExternalCancelID
			}
		}
	} else {
		//決済前のキャンセルは返金なし
		refundAmount = 0
	}

	//監査レコード＋決済ステータス＋注文遷移を1トランザクションで確定
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.OrderCancels().Create(ctx, model.OrderCancel{
			OrderID:          o.ID,
			UserID:           in.UserID,
			PaymentID:        in.PaymentID,
			Reason:           reason,
			RefundAmount:     refundAmount,
			RefundStatus:     refundStatus,
			ExternalCancelID: externalCancelID,
			CreatedAt:        time.Now(),
		}); err != nil {
			if err == repo.ErrDuplicateKey {
				return NewHTTPError(http.StatusConflict, "already cancelled")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if in.PaymentID != nil && refundSucceeded {
			if err := r.Payments().UpdateStatus(ctx, *in.PaymentID, model.PaymentStatusCancelled); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		if _, err := transitionOrder(ctx, r, o.ID, model.OrderStatusCancelled); err != nil {
			if _, ok := err.(*model.InvalidTransitionError); ok {
				return NewHTTPError(http.StatusConflict, err.Error())
			}
			return err
		}
		return nil
	})
	if err != nil {
		return CancelOutput{}, err
	}

	return CancelOutput{
		OrderID:          o.ID,
		OrderStatus:      string(model.OrderStatusCancelled),
		RefundAmount:     refundAmount,
		RefundStatus:     string(refundStatus),
		ExternalCancelID: externalCancelID,
	}, nil
}
