package models

import (
	"time"

	"gorm.io/gorm"
)

// DesignFile 设计文件表（商品下的可下载资产）
type DesignFile struct {
	ID           uint           `gorm:"primarykey" json:"id"`                          // 主键
	ProductID    uint           `gorm:"index;not null" json:"product_id"`              // 商品ID
	Name         string         `gorm:"not null" json:"name"`                          // 文件名称
	FilePath     string         `gorm:"not null" json:"-"`                             // 存储路径（不返回给前端）
	MimeType     string         `gorm:"type:varchar(128)" json:"mime_type"`            // MIME 类型
	SizeBytes    int64          `gorm:"not null;default:0" json:"size_bytes"`          // 文件大小
	ColorVariant string         `gorm:"type:varchar(64);index" json:"color_variant"`   // 颜色变体（空表示通用文件）
	IsActive     bool           `gorm:"not null;default:true;index" json:"is_active"`  // 是否启用
	IsPublic     bool           `gorm:"not null;default:false" json:"is_public"`       // 是否公开（无需授权）
	ExpiresAt    *time.Time     `gorm:"index" json:"expires_at,omitempty"`             // 文件级过期时间
	MaxDownloads int            `gorm:"not null;default:0" json:"max_downloads"`       // 每授权最大下载次数（0 表示不限制）
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt    time.Time      `json:"updated_at"`                                    // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                // 软删除时间
}

// TableName 指定表名
func (DesignFile) TableName() string {
	return "design_files"
}

// IsExpired 判断文件级过期时间是否已过
func (f *DesignFile) IsExpired(now time.Time) bool {
	return f != nil && f.ExpiresAt != nil && f.ExpiresAt.Before(now)
}
