package model

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "PENDING"
	OrderStatusPreparing        OrderStatus = "PREPARING"
	OrderStatusPaymentCompleted OrderStatus = "PAYMENT_COMPLETED"
	OrderStatusShipping         OrderStatus = "SHIPPING"
	OrderStatusDelivered        OrderStatus = "DELIVERED"

	//ユーザー/運用者によるキャンセル（終端）
	OrderStatusCancelled OrderStatus = "CANCELLED"

	//会員退会によるキャンセル（終端）
	OrderStatusCancelledByWithdrawal OrderStatus = "CANCELLED_BY_WITHDRAWAL"

	//配送中に退会した注文（配送は完了させるが追加操作は不可）
	OrderStatusShippingMemberWithdrawn OrderStatus = "SHIPPING_MEMBER_WITHDRAWN"

	//配達済みで退会した注文（個人情報マスキング対象）
	OrderStatusDeliveredMemberWithdrawn OrderStatus = "DELIVERED_MEMBER_WITHDRAWN"
)

// 合法なステータス遷移だけを許可する
var legalTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusPreparing,
		OrderStatusPaymentCompleted,
		OrderStatusCancelled,
		OrderStatusCancelledByWithdrawal,
	},
	OrderStatusPreparing: {
		OrderStatusPaymentCompleted,
		OrderStatusCancelled,
		OrderStatusCancelledByWithdrawal,
	},
	OrderStatusPaymentCompleted: {
		OrderStatusShipping,
		OrderStatusCancelled,
		OrderStatusCancelledByWithdrawal,
	},
	OrderStatusShipping: {
		OrderStatusDelivered,
		OrderStatusShippingMemberWithdrawn,
	},
	OrderStatusDelivered: {
		OrderStatusDeliveredMemberWithdrawn,
	},
}

func CanTransition(from OrderStatus, to OrderStatus) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// キャンセル可能なステータス
func IsCancellable(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusPaymentCompleted:
		return true
	}
	return false
}

// 終端ステータスかどうか（退会カスケードの再実行時にスキップする）
func IsTerminal(s OrderStatus) bool {
	switch s {
	case OrderStatusCancelled,
		OrderStatusCancelledByWithdrawal,
		OrderStatusShippingMemberWithdrawn,
		OrderStatusDeliveredMemberWithdrawn:
		return true
	}
	return false
}

// 不正なステータス遷移。部分更新せずにこのエラーで失敗させる
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// マスキング済みフィールドに入れる値
const MaskedValue = "***"

type Order struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//外部決済ゲートウェイとの突合キー
	MerchantUID string `gorm:"type:varchar(64);not null;uniqueIndex" json:"merchant_uid"`

	UserID int64       `gorm:"not null;index" json:"user_id"`
	Status OrderStatus `gorm:"type:varchar(30);not null;index" json:"status"`

	//金額。FinalTotal = ItemTotal + DeliveryFee - Discount - UsedPoints（常に >= 0）
	ItemTotal   int64 `gorm:"not null" json:"item_total"`
	DeliveryFee int64 `gorm:"not null" json:"delivery_fee"`
	Discount    int64 `gorm:"not null" json:"discount"`
	UsedPoints  int64 `gorm:"not null" json:"used_points"`
	FinalTotal  int64 `gorm:"not null" json:"final_total"`
	SavedPoints int64 `gorm:"not null" json:"saved_points"`

	//配送先
	RecipientName   string `gorm:"type:varchar(100);not null" json:"recipient_name"`
	RecipientPhone  string `gorm:"type:varchar(30);not null" json:"recipient_phone"`
	ZipCode         string `gorm:"type:varchar(10);not null" json:"zip_code"`
	Address1        string `gorm:"type:varchar(255);not null" json:"address1"`
	Address2        string `gorm:"type:varchar(255);not null" json:"address2"`
	DeliveryMessage string `gorm:"type:varchar(255);not null" json:"delivery_message"`

	PayMethodName string `gorm:"type:varchar(50);not null" json:"pay_method_name"`

	OrderedAt           time.Time  `gorm:"not null" json:"ordered_at"`
	EstimatedDeliveryAt *time.Time `json:"estimated_delivery_at,omitempty"`
	ShippedAt           *time.Time `json:"shipped_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
