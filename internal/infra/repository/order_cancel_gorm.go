package repository

import (
	"context"
	"errors"

	"orderpay/internal/domain/model"
	repo "orderpay/internal/repository"

	"gorm.io/gorm"
)

type OrderCancelGormRepository struct {
	db *gorm.DB
}

func NewOrderCancelGormRepository(db *gorm.DB) *OrderCancelGormRepository {
	return &OrderCancelGormRepository{db: db}
}

func (r *OrderCancelGormRepository) Create(ctx context.Context, c model.OrderCancel) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		//order_idの一意制約＝1注文1キャンセル
		if isUniqueViolation(err) {
			return 0, repo.ErrDuplicateKey
		}
		return 0, err
	}
	return c.ID, nil
}

func (r *OrderCancelGormRepository) FindByOrderID(ctx context.Context, orderID int64) (model.OrderCancel, bool, error) {
	var c model.OrderCancel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.OrderCancel{}, false, nil
	}
	if err != nil {
		return model.OrderCancel{}, false, err
	}
	return c, true, nil
}
