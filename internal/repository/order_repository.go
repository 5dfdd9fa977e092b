package repository

import (
	"errors"
	"time"

	"github.com/pixelmart/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	GetByOrderNo(orderNo string) (*models.Order, error)
	GetByCheckoutToken(token string) (*models.Order, error)
	GetByIDAndUser(id uint, userID uint) (*models.Order, error)
	ListByUser(filter OrderListFilter) ([]models.Order, int64, error)
	ListAdmin(filter OrderListFilter) ([]models.Order, int64, error)
	ListExpiredPendingIDs(now time.Time, limit int) ([]uint, error)
	ListFulfillmentEligibleIDsByUser(userID uint) ([]uint, error)
	CountCreatedInRange(from, to time.Time) (int64, error)
	UpdateStatus(id uint, status string, updates map[string]interface{}) error
	UpdateFields(id uint, updates map[string]interface{}) error
	MarkPaid(id uint, updates map[string]interface{}) (bool, error)
	AppendHistory(entry *models.OrderHistory) error
	ListHistory(orderID uint) ([]models.OrderHistory, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

func (r *GormOrderRepository) withDetail(query *gorm.DB) *gorm.DB {
	return query.Preload("Items")
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if err := r.db.Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
		order.Items = items
	}
	return nil
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.withDetail(r.db).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	var order models.Order
	if err := r.withDetail(r.db).Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByCheckoutToken 根据幂等令牌获取订单
func (r *GormOrderRepository) GetByCheckoutToken(token string) (*models.Order, error) {
	if token == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.withDetail(r.db).Where("checkout_token = ?", token).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDAndUser 获取用户自己的订单详情
func (r *GormOrderRepository) GetByIDAndUser(id uint, userID uint) (*models.Order, error) {
	var order models.Order
	if err := r.withDetail(r.db).Where("id = ? AND user_id = ?", id, userID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListByUser 获取用户订单列表
func (r *GormOrderRepository) ListByUser(filter OrderListFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	query := r.db.Model(&models.Order{}).Where("user_id = ?", filter.UserID)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_no LIKE ?", "%"+filter.OrderNo+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	if err := r.withDetail(query).Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListAdmin 管理端订单列表
func (r *GormOrderRepository) ListAdmin(filter OrderListFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	query := r.db.Model(&models.Order{})

	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_no = ?", filter.OrderNo)
	}
	if filter.CustomerEmail != "" {
		query = query.Where("customer_email = ?", filter.CustomerEmail)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	if err := r.withDetail(query).Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListExpiredPendingIDs 获取支付超时的待支付订单 ID
func (r *GormOrderRepository) ListExpiredPendingIDs(now time.Time, limit int) ([]uint, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []uint
	if err := r.db.Model(&models.Order{}).
		Where("status = ? AND payment_status = ?", "pending", "pending").
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Order("id asc").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListFulfillmentEligibleIDsByUser 获取用户处于可交付状态的订单 ID
func (r *GormOrderRepository) ListFulfillmentEligibleIDsByUser(userID uint) ([]uint, error) {
	if userID == 0 {
		return []uint{}, nil
	}
	var ids []uint
	if err := r.db.Model(&models.Order{}).
		Where("user_id = ?", userID).
		Where("status IN ?", []string{"completed", "processing", "awaiting_customization", "under_customization"}).
		Where("payment_status IN ?", []string{"paid", "free"}).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CountCreatedInRange 统计区间内创建的订单数（含软删除，用于订单号序号）
func (r *GormOrderRepository) CountCreatedInRange(from, to time.Time) (int64, error) {
	var total int64
	if err := r.db.Unscoped().Model(&models.Order{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateStatus 更新订单状态
func (r *GormOrderRepository) UpdateStatus(id uint, status string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateFields 更新订单字段
func (r *GormOrderRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// MarkPaid 将订单标记为已支付，仅在 payment_status 仍为 pending/failed 时生效
func (r *GormOrderRepository) MarkPaid(id uint, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["payment_status"] = "paid"
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND payment_status IN ?", id, []string{"pending", "failed"}).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AppendHistory 追加订单状态历史
func (r *GormOrderRepository) AppendHistory(entry *models.OrderHistory) error {
	return r.db.Create(entry).Error
}

// ListHistory 获取订单状态历史（按时间正序）
func (r *GormOrderRepository) ListHistory(orderID uint) ([]models.OrderHistory, error) {
	var entries []models.OrderHistory
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
