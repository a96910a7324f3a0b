package repository

import (
	"context"
	"errors"
	"time"

	"orderpay/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 一意制約違反。冪等ゲート（external_txn_id）の重複検知に使う
var ErrDuplicateKey = errors.New("duplicate key")

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	//ゲートウェイからのコールバックは merchant_uid で注文を引く
	FindByMerchantUID(ctx context.Context, merchantUID string) (model.Order, error)

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)

	//終端ステータス以外の注文。退会カスケードの対象
	ListOpenByUserID(ctx context.Context, userID int64) ([]model.Order, error)

	Create(ctx context.Context, order model.Order) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	UpdateShippedAt(ctx context.Context, orderID int64, shippedAt time.Time) error

	//配達済み退会注文の個人情報マスキング
	MaskRecipient(ctx context.Context, orderID int64) error
}
