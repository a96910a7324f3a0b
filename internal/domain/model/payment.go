package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// 決済の台帳レコード。注文1件につきCOMPLETEDは最大1件。
type Payment struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//内部採番の決済ID（prepare時に発行、ゲートウェイに渡す）
	PaymentUID string `gorm:"type:varchar(64);not null;uniqueIndex" json:"payment_uid"`

	OrderID int64 `gorm:"not null;index" json:"order_id"`

	//ゲートウェイ側のトランザクションID。確定後に入る。
	//uniqueIndexが重複Webhookの冪等ゲートになる
	ExternalTxnID *string `gorm:"type:varchar(64);uniqueIndex" json:"external_txn_id,omitempty"`

	Amount int64         `gorm:"not null" json:"amount"`
	Status PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//決済手段と決済会社のメタデータ
	PayMethod    string `gorm:"type:varchar(50);not null" json:"pay_method"`
	CardName     string `gorm:"type:varchar(100)" json:"card_name"`
	BankName     string `gorm:"type:varchar(100)" json:"bank_name"`
	ApprovalCode string `gorm:"type:varchar(64)" json:"approval_code"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
