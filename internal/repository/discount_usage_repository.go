package repository

import (
	"github.com/pixelmart/internal/models"

	"gorm.io/gorm"
)

// DiscountUsageRepository 折扣码使用记录数据访问接口
type DiscountUsageRepository interface {
	Create(usage *models.DiscountUsage) error
	CountByCodeAndUser(discountCodeID, userID uint) (int64, error)
	ListByOrderID(orderID uint) ([]models.DiscountUsage, error)
	DeleteByOrderID(orderID uint) error
	List(filter DiscountUsageListFilter) ([]models.DiscountUsage, int64, error)
	WithTx(tx *gorm.DB) *GormDiscountUsageRepository
}

// GormDiscountUsageRepository GORM 实现
type GormDiscountUsageRepository struct {
	db *gorm.DB
}

// NewDiscountUsageRepository 创建使用记录仓库
func NewDiscountUsageRepository(db *gorm.DB) *GormDiscountUsageRepository {
	return &GormDiscountUsageRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDiscountUsageRepository) WithTx(tx *gorm.DB) *GormDiscountUsageRepository {
	if tx == nil {
		return r
	}
	return &GormDiscountUsageRepository{db: tx}
}

// Create 写入使用记录
func (r *GormDiscountUsageRepository) Create(usage *models.DiscountUsage) error {
	return r.db.Create(usage).Error
}

// CountByCodeAndUser 统计用户对某折扣码的使用次数
func (r *GormDiscountUsageRepository) CountByCodeAndUser(discountCodeID, userID uint) (int64, error) {
	if userID == 0 {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.DiscountUsage{}).
		Where("discount_code_id = ? AND user_id = ?", discountCodeID, userID).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ListByOrderID 获取订单关联的使用记录
func (r *GormDiscountUsageRepository) ListByOrderID(orderID uint) ([]models.DiscountUsage, error) {
	var usages []models.DiscountUsage
	if err := r.db.Where("order_id = ?", orderID).Find(&usages).Error; err != nil {
		return nil, err
	}
	return usages, nil
}

// DeleteByOrderID 删除订单关联的使用记录
func (r *GormDiscountUsageRepository) DeleteByOrderID(orderID uint) error {
	return r.db.Where("order_id = ?", orderID).Delete(&models.DiscountUsage{}).Error
}

// List 获取使用记录列表
func (r *GormDiscountUsageRepository) List(filter DiscountUsageListFilter) ([]models.DiscountUsage, int64, error) {
	var usages []models.DiscountUsage
	query := r.db.Model(&models.DiscountUsage{})

	if filter.DiscountCodeID != 0 {
		query = query.Where("discount_code_id = ?", filter.DiscountCodeID)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	if err := query.Order("id desc").Find(&usages).Error; err != nil {
		return nil, 0, err
	}
	return usages, total, nil
}
