package repository

import (
	"errors"
	"time"

	"github.com/pixelmart/internal/models"

	"gorm.io/gorm"
)

// DownloadGrantRepository 下载授权数据访问接口
type DownloadGrantRepository interface {
	Create(grant *models.DownloadGrant) error
	GetByID(id uint) (*models.DownloadGrant, error)
	GetByOrderAndFile(orderID, designFileID uint) (*models.DownloadGrant, error)
	FindActiveByOrdersAndFile(orderIDs []uint, designFileID uint) (*models.DownloadGrant, error)
	ListByOrder(orderID uint) ([]models.DownloadGrant, error)
	List(filter DownloadGrantListFilter) ([]models.DownloadGrant, int64, error)
	RegisterDownload(id uint, maxDownloads int, now time.Time) (bool, error)
	SetActive(id uint, active bool) error
	DeactivateByOrder(orderID uint) error
	WithTx(tx *gorm.DB) *GormDownloadGrantRepository
}

// GormDownloadGrantRepository GORM 实现
type GormDownloadGrantRepository struct {
	db *gorm.DB
}

// NewDownloadGrantRepository 创建下载授权仓库
func NewDownloadGrantRepository(db *gorm.DB) *GormDownloadGrantRepository {
	return &GormDownloadGrantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDownloadGrantRepository) WithTx(tx *gorm.DB) *GormDownloadGrantRepository {
	if tx == nil {
		return r
	}
	return &GormDownloadGrantRepository{db: tx}
}

// Create 创建下载授权
func (r *GormDownloadGrantRepository) Create(grant *models.DownloadGrant) error {
	return r.db.Create(grant).Error
}

// GetByID 根据 ID 获取下载授权
func (r *GormDownloadGrantRepository) GetByID(id uint) (*models.DownloadGrant, error) {
	var grant models.DownloadGrant
	if err := r.db.First(&grant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &grant, nil
}

// GetByOrderAndFile 根据订单与文件获取下载授权
func (r *GormDownloadGrantRepository) GetByOrderAndFile(orderID, designFileID uint) (*models.DownloadGrant, error) {
	var grant models.DownloadGrant
	if err := r.db.
		Where("order_id = ? AND design_file_id = ?", orderID, designFileID).
		First(&grant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &grant, nil
}

// FindActiveByOrdersAndFile 在给定订单集合中查找某文件的有效授权
func (r *GormDownloadGrantRepository) FindActiveByOrdersAndFile(orderIDs []uint, designFileID uint) (*models.DownloadGrant, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var grant models.DownloadGrant
	if err := r.db.
		Where("order_id IN ? AND design_file_id = ? AND is_active = ?", orderIDs, designFileID, true).
		Order("id asc").
		First(&grant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &grant, nil
}

// ListByOrder 获取订单的全部下载授权
func (r *GormDownloadGrantRepository) ListByOrder(orderID uint) ([]models.DownloadGrant, error) {
	var grants []models.DownloadGrant
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

// List 获取下载授权列表
func (r *GormDownloadGrantRepository) List(filter DownloadGrantListFilter) ([]models.DownloadGrant, int64, error) {
	var grants []models.DownloadGrant
	query := r.db.Model(&models.DownloadGrant{})

	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.DesignFileID != 0 {
		query = query.Where("design_file_id = ?", filter.DesignFileID)
	}
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	if err := query.Order("id desc").Find(&grants).Error; err != nil {
		return nil, 0, err
	}
	return grants, total, nil
}

// RegisterDownload 原子记录一次下载，额度已满、授权停用或已过期时返回 false
func (r *GormDownloadGrantRepository) RegisterDownload(id uint, maxDownloads int, now time.Time) (bool, error) {
	query := r.db.Model(&models.DownloadGrant{}).
		Where("id = ? AND is_active = ?", id, true).
		Where("expires_at IS NULL OR expires_at > ?", now)
	if maxDownloads > 0 {
		query = query.Where("download_count < ?", maxDownloads)
	}
	result := query.UpdateColumns(map[string]interface{}{
		"download_count":      gorm.Expr("download_count + 1"),
		"first_downloaded_at": gorm.Expr("COALESCE(first_downloaded_at, ?)", now),
		"last_downloaded_at":  now,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetActive 启停下载授权
func (r *GormDownloadGrantRepository) SetActive(id uint, active bool) error {
	return r.db.Model(&models.DownloadGrant{}).
		Where("id = ?", id).
		UpdateColumn("is_active", active).Error
}

// DeactivateByOrder 停用订单的全部下载授权
func (r *GormDownloadGrantRepository) DeactivateByOrder(orderID uint) error {
	return r.db.Model(&models.DownloadGrant{}).
		Where("order_id = ?", orderID).
		UpdateColumn("is_active", false).Error
}
