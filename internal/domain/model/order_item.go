package model

import "time"

type OrderItem struct {
	ID                  int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64       `gorm:"not null;index" json:"order_id"`
	ProductID           int64       `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string      `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   int64       `gorm:"not null" json:"unit_price_snapshot"`
	Quantity            int64       `gorm:"not null" json:"quantity"`
	LineTotal           int64       `gorm:"not null" json:"line_total"`

	//注文本体のステータスと同じ遷移で一括更新する
	Status OrderStatus `gorm:"type:varchar(30);not null" json:"status"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
