package models

import (
	"time"

	"gorm.io/gorm"
)

// DiscountUsage 折扣码使用记录（用于每人限次与审计）
type DiscountUsage struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                         // 主键
	DiscountCodeID uint           `gorm:"index;not null" json:"discount_code_id"`                       // 折扣码ID
	UserID         uint           `gorm:"index;not null" json:"user_id"`                                // 用户ID
	OrderID        uint           `gorm:"index;not null" json:"order_id"`                               // 订单ID
	DiscountAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"` // 优惠金额
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                      // 创建时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                               // 软删除时间
}

// TableName 指定表名
func (DiscountUsage) TableName() string {
	return "discount_usages"
}
