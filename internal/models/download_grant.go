package models

import (
	"time"

	"gorm.io/gorm"
)

// DownloadGrant 下载授权表（订单与设计文件的多对多关系，访问控制单元）
// (order_id, design_file_id) 组合唯一；授权从不删除，仅停用。
type DownloadGrant struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                                  // 主键
	OrderID           uint           `gorm:"uniqueIndex:uniq_order_file;index;not null" json:"order_id"`            // 订单ID
	DesignFileID      uint           `gorm:"uniqueIndex:uniq_order_file;index;not null" json:"design_file_id"`      // 设计文件ID
	DownloadCount     int            `gorm:"not null;default:0" json:"download_count"`                              // 已下载次数
	FirstDownloadedAt *time.Time     `json:"first_downloaded_at,omitempty"`                                         // 首次下载时间（仅设置一次）
	LastDownloadedAt  *time.Time     `json:"last_downloaded_at,omitempty"`                                          // 最近下载时间
	IsActive          bool           `gorm:"not null;default:true;index" json:"is_active"`                          // 是否有效
	ExpiresAt         *time.Time     `gorm:"index" json:"expires_at,omitempty"`                                     // 授权级过期时间（独立于文件级过期）
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                               // 创建时间
	UpdatedAt         time.Time      `json:"updated_at"`                                                            // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                        // 软删除时间
}

// TableName 指定表名
func (DownloadGrant) TableName() string {
	return "download_grants"
}

// IsExpired 判断授权级过期时间是否已过
func (g *DownloadGrant) IsExpired(now time.Time) bool {
	return g != nil && g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}
