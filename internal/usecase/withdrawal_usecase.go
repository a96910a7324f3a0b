package usecase

import (
	"context"
	"fmt"
	"time"

	"orderpay/internal/domain/model"
	"orderpay/internal/infra/gateway"
	"orderpay/internal/infra/notify"
	repo "orderpay/internal/repository"

	"github.com/labstack/gommon/log"
)

// 退会イベント（外部から受ける。永続化しない）
type WithdrawalEvent struct {
	UserID        int64
	WithdrawnAt   time.Time
	CorrelationID string
}

const withdrawalReason = "member withdrawal"

type WithdrawalUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	payments repo.PaymentRepository
	gw       gateway.PaymentGateway
	notifier notify.Notifier

	highValueThreshold int64
}

func NewWithdrawalUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	payments repo.PaymentRepository,
	gw gateway.PaymentGateway,
	notifier notify.Notifier,
	highValueThreshold int64,
) *WithdrawalUsecase {
	return &WithdrawalUsecase{
		tx:                 tx,
		orders:             orders,
		payments:           payments,
		gw:                 gw,
		notifier:           notifier,
		highValueThreshold: highValueThreshold,
	}
}

// Processは退会ユーザーの未終了注文をステータス別に補償処理する。
// 1件の失敗でカスケード全体を止めない（後続グループは必ず処理する）。
// 終端ステータスの注文は対象に入らないので、同じイベントの再配送にも安全
func (u *WithdrawalUsecase) Process(ctx context.Context, ev WithdrawalEvent) error {
	if ev.UserID <= 0 {
		return fmt.Errorf("invalid user id: %d", ev.UserID)
	}

	orders, err := u.orders.ListOpenByUserID(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("list open orders for user %d: %w", ev.UserID, err)
	}
	if len(orders) == 0 {
		log.Infof("withdrawal %s: no open orders for user %d", ev.CorrelationID, ev.UserID)
		return nil
	}

	//ステータス別にグループ化
	groups := map[model.OrderStatus][]model.Order{}
	var totalOpenValue int64 = 0
	for _, o := range orders {
		groups[o.Status] = append(groups[o.Status], o)
		totalOpenValue += o.FinalTotal
	}

	//PENDING: 課金前なので返金不要、キャンセルだけ
	for _, o := range groups[model.OrderStatusPending] {
		if err := u.cancelByWithdrawal(ctx, o, false); err != nil {
			log.Errorf("withdrawal %s: pending order %d: %v", ev.CorrelationID, o.ID, err)
		}
	}

	//PREPARING / PAYMENT_COMPLETED: キャンセル＋無条件で返金
	for _, o := range groups[model.OrderStatusPreparing] {
		if err := u.cancelByWithdrawal(ctx, o, o.FinalTotal > 0); err != nil {
			log.Errorf("withdrawal %s: preparing order %d: %v", ev.CorrelationID, o.ID, err)
		}
	}
	for _, o := range groups[model.OrderStatusPaymentCompleted] {
		if err := u.cancelByWithdrawal(ctx, o, o.FinalTotal > 0); err != nil {
			log.Errorf("withdrawal %s: paid order %d: %v", ev.CorrelationID, o.ID, err)
		}
	}

	//SHIPPING: 配送は完了させる。返金は配達確認まで保留なので手動レビューへ
	for _, o := range groups[model.OrderStatusShipping] {
		if err := u.markWithdrawn(ctx, o.ID, model.OrderStatusShippingMemberWithdrawn); err != nil {
			log.Errorf("withdrawal %s: shipping order %d: %v", ev.CorrelationID, o.ID, err)
			continue
		}
		if nerr := u.notifier.Notify(ctx, notify.CategoryManualReview,
			fmt.Sprintf("order %d in transit, owner withdrawn; refund pending delivery confirmation", o.ID)); nerr != nil {
			log.Errorf("notify shipping review failed: %v", nerr)
		}
	}

	//DELIVERED: 終端化と個人情報マスキングを同一トランザクションで確定する。
	//マスキングに失敗したら遷移ごと巻き戻し、再配送でやり直せるようにする
	for _, o := range groups[model.OrderStatusDelivered] {
		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			if _, err := transitionOrder(ctx, r, o.ID, model.OrderStatusDeliveredMemberWithdrawn); err != nil {
				return err
			}
			return r.Orders().MaskRecipient(ctx, o.ID)
		})
		if err != nil {
			log.Errorf("withdrawal %s: delivered order %d: %v", ev.CorrelationID, o.ID, err)
		}
	}

	//アラートは処理の成否と独立して出す（人のフォローアップ用）
	if totalOpenValue >= u.highValueThreshold {
		if nerr := u.notifier.Notify(ctx, notify.CategoryHighValueWithdrawal,
			fmt.Sprintf("user %d withdrawn with open order value %d", ev.UserID, totalOpenValue)); nerr != nil {
			log.Errorf("notify high value withdrawal failed: %v", nerr)
		}
	}
	if len(groups[model.OrderStatusShipping]) > 0 || len(groups[model.OrderStatusDelivered]) > 0 {
		if nerr := u.notifier.Notify(ctx, notify.CategoryManualReview,
			fmt.Sprintf("user %d withdrawn with %d shipping and %d delivered orders",
				ev.UserID, len(groups[model.OrderStatusShipping]), len(groups[model.OrderStatusDelivered]))); nerr != nil {
			log.Errorf("notify withdrawal followup failed: %v", nerr)
		}
	}

	return nil
}

// 注文をCANCELLED_BY_WITHDRAWALに遷移させ、必要なら返金する。
// 返金の失敗はFAILEDで監査レコードに残し、エラーにはしない
func (u *WithdrawalUsecase) cancelByWithdrawal(ctx context.Context, o model.Order, refund bool) error {
	refundAmount := int64(0)
	refundStatus := model.RefundStatusCompleted
	externalCancelID := ""
	var paymentID *int64

	if refund {
		refundAmount = o.FinalTotal

		p, found, err := u.payments.FindCompletedByOrderID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("find payment: %w", err)
		}
		if !found || p.ExternalTxnID == nil {
			//返すべき決済記録がない。自動では安全に返金できない
			refundStatus = model.RefundStatusFailed
			if nerr := u.notifier.Notify(ctx, notify.CategoryManualReview,
				fmt.Sprintf("order %d needs refund of %d but has no completed payment", o.ID, refundAmount)); nerr != nil {
				log.Errorf("notify missing payment failed: %v", nerr)
			}
		} else {
			paymentID = &p.ID
			res, gerr := u.gw.Cancel(ctx, *p.ExternalTxnID, refundAmount, withdrawalReason)
			if gerr != nil {
				log.Errorf("withdrawal refund failed for order %d: %v", o.ID, gerr)
				refundStatus = model.RefundStatusFailed

				if nerr := u.notifier.Notify(ctx, notify.CategoryManualReview,
					fmt.Sprintf("withdrawal refund failed: order=%d payment=%d amount=%d", o.ID, p.ID, refundAmount)); nerr != nil {
					log.Errorf("notify withdrawal refund failure failed: %v", nerr)
				}
			} else {
				externalCancelID = res.ExternalCancelID
			}
		}
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := transitionOrder(ctx, r, o.ID, model.OrderStatusCancelledByWithdrawal); err != nil {
			return err
		}

		if _, err := r.OrderCancels().Create(ctx, model.OrderCancel{
			OrderID:          o.ID,
			UserID:           o.UserID,
			PaymentID:        paymentID,
			Reason:           withdrawalReason,
			RefundAmount:     refundAmount,
			RefundStatus:     refundStatus,
			ExternalCancelID: externalCancelID,
			CreatedAt:        time.Now(),
		}); err != nil {
			if err == repo.ErrDuplicateKey {
				//通常キャンセルのレコードが既にある
				return ErrAlreadyProcessed
			}
			return err
		}

		if paymentID != nil && refundStatus == model.RefundStatusCompleted {
			if err := r.Payments().UpdateStatus(ctx, *paymentID, model.PaymentStatusCancelled); err != nil {
				return err
			}
		}
		return nil
	})
}

func (u *WithdrawalUsecase) markWithdrawn(ctx context.Context, orderID int64, to model.OrderStatus) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := transitionOrder(ctx, r, orderID, to)
		return err
	})
}
