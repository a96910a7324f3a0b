package model

import "time"

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "PENDING"
	RefundStatusCompleted RefundStatus = "COMPLETED"
	RefundStatusFailed    RefundStatus = "FAILED"
)

// キャンセルの監査レコード。
// 注文1件につき1回だけ作成し、上書きしない（2回目のキャンセルは拒否）。
type OrderCancel struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//uniqueIndexで「注文1件につきキャンセル1回」を保証する
	OrderID int64 `gorm:"not null;uniqueIndex" json:"order_id"`

	UserID    int64  `gorm:"not null;index" json:"user_id"`
	PaymentID *int64 `json:"payment_id,omitempty"`

	Reason       string `gorm:"type:varchar(255);not null" json:"reason"`
	RefundAmount int64  `gorm:"not null" json:"refund_amount"`

	//返金の結果。ゲートウェイ側のキャンセルが失敗してもFAILEDとして記録する
	RefundStatus RefundStatus `gorm:"type:varchar(20);not null" json:"refund_status"`

	//ゲートウェイが発行するキャンセル確認ID
	ExternalCancelID string `gorm:"type:varchar(64)" json:"external_cancel_id"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
