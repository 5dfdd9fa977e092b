package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品表（设计素材，从订单核心视角只读）
type Product struct {
	ID                   uint           `gorm:"primarykey" json:"id"`                                      // 主键
	Slug                 string         `gorm:"uniqueIndex;not null" json:"slug"`                          // 唯一标识
	Name                 string         `gorm:"not null" json:"name"`                                      // 商品名称
	Description          string         `gorm:"type:text" json:"description"`                              // 商品描述
	PriceAmount          Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price_amount"` // 价格金额
	ColorVariants        StringArray    `gorm:"type:json" json:"color_variants"`                           // 预置颜色变体
	CustomizationEnabled bool           `gorm:"not null;default:false" json:"customization_enabled"`       // 是否支持人工定制
	IsActive             bool           `gorm:"default:true;index" json:"is_active"`                       // 是否上架
	SortOrder            int            `gorm:"default:0;index" json:"sort_order"`                         // 排序权重
	CreatedAt            time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt            time.Time      `json:"updated_at"`                                                // 更新时间
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间

	// 关联
	DesignFiles []DesignFile `gorm:"foreignKey:ProductID" json:"design_files,omitempty"` // 设计文件列表
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
