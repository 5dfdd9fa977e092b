package models

import (
	"time"

	"github.com/pixelmart/internal/constants"

	"gorm.io/gorm"
)

// Order 订单表
type Order struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                                         // 主键
	OrderNo             string         `gorm:"uniqueIndex;not null" json:"order_no"`                         // 订单编号（年度内顺序号）
	OrderUUID           string         `gorm:"uniqueIndex;not null" json:"order_uuid"`                       // 内部唯一 ID
	CheckoutToken       string         `gorm:"uniqueIndex;not null" json:"-"`                                // 结算幂等令牌
	UserID              uint           `gorm:"index;not null" json:"user_id"`                                // 用户ID
	CustomerEmail       string         `gorm:"index;not null" json:"customer_email"`                         // 下单时邮箱快照
	CustomerName        string         `gorm:"type:varchar(200)" json:"customer_name"`                       // 下单时昵称快照
	Status              string         `gorm:"index;not null" json:"status"`                                 // 订单状态
	PaymentStatus       string         `gorm:"index;not null" json:"payment_status"`                         // 支付状态
	Currency            string         `gorm:"not null" json:"currency"`                                     // 币种
	Subtotal            Money          `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`        // 原始金额（∑原价×数量）
	DiscountAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"` // 优惠金额
	TotalAmount         Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`    // 实付金额
	DiscountCodeID      *uint          `gorm:"index" json:"discount_code_id,omitempty"`                      // 折扣码ID
	PaymentIntentID     string         `gorm:"index" json:"payment_intent_id,omitempty"`                     // 支付意向ID
	PaymentTxnID        string         `gorm:"index" json:"payment_txn_id,omitempty"`                        // 支付流水号
	CustomizationNeeded bool           `gorm:"not null;default:false" json:"customization_needed"`           // 是否需要人工定制
	NeedsReconciliation bool           `gorm:"not null;default:false" json:"needs_reconciliation"`           // 退款失败待人工对账
	DownloadExpiresAt   *time.Time     `gorm:"index" json:"download_expires_at,omitempty"`                   // 下载授权过期时间
	NotifiedAt          *time.Time     `json:"notified_at,omitempty"`                                        // 状态通知发出时间
	ExpiresAt           *time.Time     `gorm:"index" json:"expires_at,omitempty"`                            // 待支付过期时间
	PaidAt              *time.Time     `gorm:"index" json:"paid_at,omitempty"`                               // 支付时间
	CanceledAt          *time.Time     `gorm:"index" json:"canceled_at,omitempty"`                           // 取消时间
	ClientIP            string         `gorm:"type:varchar(64)" json:"client_ip,omitempty"`                  // 下单客户端IP
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`                                      // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                                               // 软删除时间

	Items   []OrderItem    `gorm:"foreignKey:OrderID" json:"items,omitempty"`   // 订单项
	History []OrderHistory `gorm:"foreignKey:OrderID" json:"history,omitempty"` // 状态流转记录
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// IsTerminal 判断订单状态是否为终态
func (o *Order) IsTerminal() bool {
	if o == nil {
		return false
	}
	switch o.Status {
	case constants.OrderStatusCompleted, constants.OrderStatusCancelled, constants.OrderStatusRefunded:
		return true
	}
	return false
}

// HasCustomizableItem 判断订单是否包含可定制商品
func (o *Order) HasCustomizableItem() bool {
	if o == nil {
		return false
	}
	for i := range o.Items {
		if o.Items[i].CustomizationEnabled {
			return true
		}
	}
	return false
}

// HasCustomizationData 判断订单项是否提交了真实定制数据
func (o *Order) HasCustomizationData() bool {
	if o == nil {
		return false
	}
	for i := range o.Items {
		if o.Items[i].IsCustomized {
			return true
		}
	}
	return false
}
