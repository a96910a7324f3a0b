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
	"orderpay/internal/resilience"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
)

type PaymentUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	payments repo.PaymentRepository
	gw       gateway.PaymentGateway
	notifier notify.Notifier
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	payments repo.PaymentRepository,
	gw gateway.PaymentGateway,
	notifier notify.Notifier,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:       tx,
		orders:   orders,
		payments: payments,
		gw:       gw,
		notifier: notifier,
	}
}

type PrepareOutput struct {
	PaymentUID string `json:"payment_uid"`
	OrderID    int64  `json:"order_id"`
	Amount     int64  `json:"amount"`
	Status     string `json:"status"`
}

// Prepareは決済レコードをPENDINGで作り、ゲートウェイに意図を登録する。
// 登録が失敗しても決済レコードは残す
// （買い手はゲートウェイのホスト画面で決済を完了できるので、あとでverifyする）
func (u *PaymentUsecase) Prepare(ctx context.Context, orderID int64, amount int64) (PrepareOutput, error) {
	if orderID <= 0 {
		return PrepareOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	if amount <= 0 {
		return PrepareOutput{}, NewHTTPError(http.StatusBadRequest, "amount must be > 0")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return PrepareOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return PrepareOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	paymentUID := uuid.NewString()
	now := time.Now()

	_, err = u.payments.Create(ctx, model.Payment{
		PaymentUID: paymentUID,
		OrderID:    o.ID,
		Amount:     amount,
		Status:     model.PaymentStatusPending,
		PayMethod:  o.PayMethodName,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return PrepareOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//意図登録の失敗はログだけ残して流す
	if err := u.gw.Prepare(ctx, paymentUID, amount); err != nil {
		log.Warnf("gateway prepare failed for payment %s (order %d): %v", paymentUID, o.ID, err)
	}

	return PrepareOutput{
		PaymentUID: paymentUID,
		OrderID:    o.ID,
		Amount:     amount,
		Status:     string(model.PaymentStatusPending),
	}, nil
}

type VerifyOutput struct {
	OrderID       int64  `json:"order_id"`
	MerchantUID   string `json:"merchant_uid"`
	ExternalTxnID string `json:"external_txn_id"`
	Amount        int64  `json:"amount"`
	OrderStatus   string `json:"order_status"`

	//trueなら処理済みの再送（状態は変えていない）
	AlreadyProcessed bool `json:"already_processed"`
}

// Verifyは「本当に支払われたか」の唯一の判定点。
// クライアントの確認呼び出しとWebhookの両方がここを通る。
//
// 冪等ゲート: external_txn_idに決済が既にあれば成功として返す。
// 金額不一致: 補償キャンセルを発行してハードエラー。
func (u *PaymentUsecase) Verify(ctx context.Context, externalTxnID string, merchantUID string) (VerifyOutput, error) {
	externalTxnID = strings.TrimSpace(externalTxnID)
	merchantUID = strings.TrimSpace(merchantUID)
	if externalTxnID == "" {
		return VerifyOutput{}, NewHTTPError(http.StatusBadRequest, "invalid txn id")
	}
	if merchantUID == "" {
		return VerifyOutput{}, NewHTTPError(http.StatusBadRequest, "invalid merchant uid")
	}

	//冪等ゲート（1回目）：既に処理済みならそのまま成功
	if p, found, err := u.payments.FindByExternalTxnID(ctx, externalTxnID); err != nil {
		return VerifyOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	} else if found {
		return VerifyOutput{
			OrderID:          p.OrderID,
			MerchantUID:      merchantUID,
			ExternalTxnID:    externalTxnID,
			Amount:           p.Amount,
			OrderStatus:      string(model.OrderStatusPaymentCompleted),
			AlreadyProcessed: true,
		}, nil
	}

	//ゲートウェイの正式な記録を取る
	txn, err := u.gw.GetTransaction(ctx, externalTxnID)
	if err != nil {
		if resilience.IsUnavailable(err) {
			log.Errorf("gateway unavailable during verify of %s: %v", externalTxnID, err)
			return VerifyOutput{}, NewHTTPError(http.StatusServiceUnavailable, "gateway unavailable")
		}
		return VerifyOutput{}, NewHTTPError(http.StatusBadGateway, "gateway error")
	}
	if txn.Status != gateway.TxnStatusPaid {
		return VerifyOutput{}, NewHTTPError(http.StatusBadRequest, "payment not completed")
	}

	o, err := u.orders.FindByMerchantUID(ctx, merchantUID)
	if err == repo.ErrNotFound {
		return VerifyOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return VerifyOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//金額は厳密一致。不一致は不正/バグなので自動キャンセルして落とす
	if !txn.Amount.Equal(decimal.NewFromInt(o.FinalTotal)) {
		if _, cerr := u.gw.Cancel(ctx, externalTxnID, 0, "amount mismatch"); cerr != nil {
			log.Errorf("compensating cancel failed for %s: %v", externalTxnID, cerr)
		}
		if nerr := u.notifier.Notify(ctx, notify.CategoryAmountMismatch,
			fmt.Sprintf("order %s: expected %d, gateway reported %s", merchantUID, o.FinalTotal, txn.Amount.String())); nerr != nil {
			log.Errorf("notify amount mismatch failed: %v", nerr)
		}
		return VerifyOutput{}, &AmountMismatchError{
			MerchantUID: merchantUID,
			OrderTotal:  o.FinalTotal,
			PaidAmount:  txn.Amount,
		}
	}

	//決済確定と注文遷移は1トランザクション
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, found, err := r.Payments().FindPendingByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !found {
			//prepareを経ていない決済（Webhook先行など）は行を起こす
			now := time.Now()
			p = model.Payment{
				PaymentUID: uuid.NewString(),
				OrderID:    o.ID,
				Status:     model.PaymentStatusPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			id, err := r.Payments().Create(ctx, p)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			p.ID = id
		}

		p.ExternalTxnID = &externalTxnID
		p.Amount = o.FinalTotal
		p.Status = model.PaymentStatusCompleted
		p.PayMethod = txn.Method
		p.CardName = txn.CardName
		p.BankName = txn.BankName
		p.ApprovalCode = txn.ApprovalCode

		if err := r.Payments().Update(ctx, p); err != nil {
			//一意制約違反＝並行した重複Webhookが先に確定させた
			if err == repo.ErrDuplicateKey {
				return ErrAlreadyProcessed
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if _, err := transitionOrder(ctx, r, o.ID, model.OrderStatusPaymentCompleted); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		//冪等ゲート（2回目）：並行重複は成功扱い
		if err == ErrAlreadyProcessed {
			return VerifyOutput{
				OrderID:          o.ID,
				MerchantUID:      merchantUID,
				ExternalTxnID:    externalTxnID,
				Amount:           o.FinalTotal,
				OrderStatus:      string(model.OrderStatusPaymentCompleted),
				AlreadyProcessed: true,
			}, nil
		}
		return VerifyOutput{}, err
	}

	return VerifyOutput{
		OrderID:       o.ID,
		MerchantUID:   merchantUID,
		ExternalTxnID: externalTxnID,
		Amount:        o.FinalTotal,
		OrderStatus:   string(model.OrderStatusPaymentCompleted),
	}, nil
}

// HandleWebhookはゲートウェイからの非同期コールバック。
// 呼び出し元（ゲートウェイ）には意味のあるリトライを返せないので、
// 失敗はログとシンク通知に落としてリスナーは生かし続ける
func (u *PaymentUsecase) HandleWebhook(ctx context.Context, externalTxnID string, merchantUID string) {
	if _, err := u.Verify(ctx, externalTxnID, merchantUID); err != nil {
		log.Errorf("webhook verify failed for txn %s (order %s): %v", externalTxnID, merchantUID, err)

		if nerr := u.notifier.Notify(ctx, notify.CategoryWebhookFailed,
			fmt.Sprintf("txn %s order %s: %v", externalTxnID, merchantUID, err)); nerr != nil {
			log.Errorf("notify webhook failure failed: %v", nerr)
		}
	}
}
