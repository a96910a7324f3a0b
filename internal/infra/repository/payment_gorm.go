package repository

import (
	"context"
	"errors"

	"orderpay/internal/domain/model"
	repo "orderpay/internal/repository"

	"gorm.io/gorm"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) Create(ctx context.Context, p model.Payment) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, repo.ErrDuplicateKey
		}
		return 0, err
	}
	return p.ID, nil
}

func (r *PaymentGormRepository) FindByID(ctx context.Context, paymentID int64) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("id = ?", paymentID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) FindByExternalTxnID(ctx context.Context, externalTxnID string) (model.Payment, bool, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("external_txn_id = ?", externalTxnID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, false, nil
	}
	if err != nil {
		return model.Payment{}, false, err
	}
	return p, true, nil
}

func (r *PaymentGormRepository) FindPendingByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error) {
	return r.findByOrderIDAndStatus(ctx, orderID, model.PaymentStatusPending)
}

func (r *PaymentGormRepository) FindCompletedByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error) {
	return r.findByOrderIDAndStatus(ctx, orderID, model.PaymentStatusCompleted)
}

func (r *PaymentGormRepository) findByOrderIDAndStatus(ctx context.Context, orderID int64, status model.PaymentStatus) (model.Payment, bool, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, status).
		Order("id desc").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, false, nil
	}
	if err != nil {
		return model.Payment{}, false, err
	}
	return p, true, nil
}

func (r *PaymentGormRepository) Update(ctx context.Context, p model.Payment) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"external_txn_id": p.ExternalTxnID,
			"amount":          p.Amount,
			"status":          p.Status,
			"pay_method":      p.PayMethod,
			"card_name":       p.CardName,
			"bank_name":       p.BankName,
			"approval_code":   p.ApprovalCode,
		})

	if res.Error != nil {
		//external_txn_idの一意制約＝冪等ゲート
		if isUniqueViolation(res.Error) {
			return repo.ErrDuplicateKey
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *PaymentGormRepository) UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", paymentID).
		Update("status", status)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
