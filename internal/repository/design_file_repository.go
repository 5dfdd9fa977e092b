package repository

import (
	"errors"

	"github.com/pixelmart/internal/models"

	"gorm.io/gorm"
)

// DesignFileRepository 设计文件数据访问接口
type DesignFileRepository interface {
	GetByID(id uint) (*models.DesignFile, error)
	ListActiveByProduct(productID uint) ([]models.DesignFile, error)
	ListActiveByProducts(productIDs []uint) ([]models.DesignFile, error)
	Create(file *models.DesignFile) error
	Update(file *models.DesignFile) error
	Delete(id uint) error
	WithTx(tx *gorm.DB) *GormDesignFileRepository
}

// GormDesignFileRepository GORM 实现
type GormDesignFileRepository struct {
	db *gorm.DB
}

// NewDesignFileRepository 创建设计文件仓库
func NewDesignFileRepository(db *gorm.DB) *GormDesignFileRepository {
	return &GormDesignFileRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDesignFileRepository) WithTx(tx *gorm.DB) *GormDesignFileRepository {
	if tx == nil {
		return r
	}
	return &GormDesignFileRepository{db: tx}
}

// GetByID 根据 ID 获取设计文件
func (r *GormDesignFileRepository) GetByID(id uint) (*models.DesignFile, error) {
	var file models.DesignFile
	if err := r.db.First(&file, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

// ListActiveByProduct 获取商品的有效设计文件
func (r *GormDesignFileRepository) ListActiveByProduct(productID uint) ([]models.DesignFile, error) {
	var files []models.DesignFile
	if err := r.db.
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("id asc").
		Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// ListActiveByProducts 批量获取商品的有效设计文件
func (r *GormDesignFileRepository) ListActiveByProducts(productIDs []uint) ([]models.DesignFile, error) {
	if len(productIDs) == 0 {
		return []models.DesignFile{}, nil
	}
	var files []models.DesignFile
	if err := r.db.
		Where("product_id IN ? AND is_active = ?", productIDs, true).
		Order("product_id asc, id asc").
		Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// Create 创建设计文件
func (r *GormDesignFileRepository) Create(file *models.DesignFile) error {
	return r.db.Create(file).Error
}

// Update 更新设计文件
func (r *GormDesignFileRepository) Update(file *models.DesignFile) error {
	return r.db.Save(file).Error
}

// Delete 删除设计文件
func (r *GormDesignFileRepository) Delete(id uint) error {
	return r.db.Delete(&models.DesignFile{}, id).Error
}
