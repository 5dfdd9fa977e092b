package repository

import (
	"errors"
	"strings"

	"github.com/pixelmart/internal/models"

	"gorm.io/gorm"
)

// DiscountCodeRepository 折扣码数据访问接口
type DiscountCodeRepository interface {
	GetByID(id uint) (*models.DiscountCode, error)
	GetByCode(code string) (*models.DiscountCode, error)
	Create(code *models.DiscountCode) error
	Update(code *models.DiscountCode) error
	Delete(id uint) error
	List(filter DiscountCodeListFilter) ([]models.DiscountCode, int64, error)
	ClaimUsage(id uint) (bool, error)
	ReleaseUsage(id uint) error
	WithTx(tx *gorm.DB) *GormDiscountCodeRepository
}

// GormDiscountCodeRepository GORM 实现
type GormDiscountCodeRepository struct {
	db *gorm.DB
}

// NewDiscountCodeRepository 创建折扣码仓库
func NewDiscountCodeRepository(db *gorm.DB) *GormDiscountCodeRepository {
	return &GormDiscountCodeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDiscountCodeRepository) WithTx(tx *gorm.DB) *GormDiscountCodeRepository {
	if tx == nil {
		return r
	}
	return &GormDiscountCodeRepository{db: tx}
}

// GetByID 根据 ID 获取折扣码
func (r *GormDiscountCodeRepository) GetByID(id uint) (*models.DiscountCode, error) {
	var code models.DiscountCode
	if err := r.db.First(&code, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// GetByCode 根据码值获取折扣码，匹配不区分大小写
func (r *GormDiscountCodeRepository) GetByCode(code string) (*models.DiscountCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, nil
	}
	var record models.DiscountCode
	if err := r.db.Where("code = ?", normalized).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Create 创建折扣码
func (r *GormDiscountCodeRepository) Create(code *models.DiscountCode) error {
	return r.db.Create(code).Error
}

// Update 更新折扣码
func (r *GormDiscountCodeRepository) Update(code *models.DiscountCode) error {
	return r.db.Save(code).Error
}

// Delete 删除折扣码
func (r *GormDiscountCodeRepository) Delete(id uint) error {
	return r.db.Delete(&models.DiscountCode{}, id).Error
}

// List 获取折扣码列表
func (r *GormDiscountCodeRepository) List(filter DiscountCodeListFilter) ([]models.DiscountCode, int64, error) {
	var codes []models.DiscountCode
	query := r.db.Model(&models.DiscountCode{})

	if filter.Code != "" {
		query = query.Where("code = ?", strings.ToUpper(strings.TrimSpace(filter.Code)))
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	if err := query.Order("id desc").Find(&codes).Error; err != nil {
		return nil, 0, err
	}
	return codes, total, nil
}

// ClaimUsage 占用一次全局用量，额度已满时返回 false
func (r *GormDiscountCodeRepository) ClaimUsage(id uint) (bool, error) {
	result := r.db.Model(&models.DiscountCode{}).
		Where("id = ?", id).
		Where("usage_limit = 0 OR used_count < usage_limit").
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseUsage 归还一次全局用量，计数为零时不动作
func (r *GormDiscountCodeRepository) ReleaseUsage(id uint) error {
	return r.db.Model(&models.DiscountCode{}).
		Where("id = ?", id).
		Where("used_count >= ?", 1).
		UpdateColumn("used_count", gorm.Expr("used_count - 1")).Error
}
