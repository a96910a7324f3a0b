package repository

import (
	"context"

	"orderpay/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) (int64, error)
	FindByID(ctx context.Context, paymentID int64) (model.Payment, error)

	//冪等ゲート（同じexternal_txn_idなら処理済み）
	FindByExternalTxnID(ctx context.Context, externalTxnID string) (model.Payment, bool, error)

	FindPendingByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error)
	FindCompletedByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error)

	//決済確定。external_txn_idの一意制約違反は ErrDuplicateKey で返す
	Update(ctx context.Context, p model.Payment) error
	UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus) error
}
