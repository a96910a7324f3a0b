package repository

import (
	"context"

	"orderpay/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)

	//注文本体の遷移と同じトランザクションで明細を一括更新する
	UpdateStatusByOrderID(ctx context.Context, orderID int64, status model.OrderStatus) error
}
