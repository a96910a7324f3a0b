package repository

import (
	"context"

	"orderpay/internal/domain/model"
)

type OrderCancelRepository interface {
	//order_idの一意制約違反は ErrDuplicateKey で返す（キャンセルは1注文1回）
	Create(ctx context.Context, c model.OrderCancel) (int64, error)
	FindByOrderID(ctx context.Context, orderID int64) (model.OrderCancel, bool, error)
}
