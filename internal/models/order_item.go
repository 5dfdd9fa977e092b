package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// OrderItem 订单项表
type OrderItem struct {
	ID                   uint           `gorm:"primarykey" json:"id"`                                           // 主键
	OrderID              uint           `gorm:"index;not null" json:"order_id"`                                 // 订单ID
	ProductID            uint           `gorm:"index;not null" json:"product_id"`                               // 商品ID
	ProductName          string         `gorm:"not null" json:"product_name"`                                   // 商品名称快照
	ProductSlug          string         `gorm:"not null" json:"product_slug"`                                   // 商品标识快照
	Quantity             int            `gorm:"not null" json:"quantity"`                                       // 数量
	UnitPrice            Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`        // 原始单价
	DiscountShare        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"discount_share"`    // 折扣分摊金额
	FinalUnitPrice       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"final_unit_price"`  // 折后单价
	TotalPrice           Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"`       // 折后小计
	DiscountCode         string         `gorm:"type:varchar(64)" json:"discount_code,omitempty"`                // 应用折扣码快照
	CustomizationEnabled bool           `gorm:"not null;default:false" json:"customization_enabled"`            // 商品是否支持定制（快照）
	IsCustomized         bool           `gorm:"not null;default:false" json:"is_customized"`                    // 是否提交了真实定制内容
	CustomizationJSON    JSON           `gorm:"type:json" json:"customization"`                                 // 定制内容（颜色/文字/上传/备注）
	CreatedAt            time.Time      `gorm:"index" json:"created_at"`                                        // 创建时间
	UpdatedAt            time.Time      `gorm:"index" json:"updated_at"`                                        // 更新时间
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`                                                 // 软删除时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}

// SelectedColors 返回定制内容中选择的颜色
func (i *OrderItem) SelectedColors() []string {
	if i == nil || i.CustomizationJSON == nil {
		return nil
	}
	raw, ok := i.CustomizationJSON["colors"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		colors := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				colors = append(colors, strings.TrimSpace(s))
			}
		}
		return colors
	}
	return nil
}
