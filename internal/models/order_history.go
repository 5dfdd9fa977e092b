package models

import (
	"time"
)

// OrderHistory 订单状态流转记录表（仅追加，不允许修改或删除）
type OrderHistory struct {
	ID        uint      `gorm:"primarykey" json:"id"`            // 主键
	OrderID   uint      `gorm:"index;not null" json:"order_id"`  // 订单ID
	Status    string    `gorm:"not null" json:"status"`          // 流转后状态
	Note      string    `gorm:"type:text" json:"note"`           // 备注
	Actor     string    `gorm:"type:varchar(32)" json:"actor"`   // 操作者（customer/admin/system/gateway）
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"` // 记录时间
}

// TableName 指定表名
func (OrderHistory) TableName() string {
	return "order_histories"
}
