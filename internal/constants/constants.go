package constants

// 订单状态常量
const (
	OrderStatusPending            = "pending"
	OrderStatusProcessing         = "processing"
	OrderStatusAwaitingCustomize  = "awaiting_customization"
	OrderStatusUnderCustomization = "under_customization"
	OrderStatusCompleted          = "completed"
	OrderStatusCancelled          = "cancelled"
	OrderStatusRefunded           = "refunded"
)

// 支付状态常量
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
	PaymentStatusFree     = "free"
)

// 折扣码类型常量
const (
	DiscountTypeFixed   = "fixed"
	DiscountTypePercent = "percentage"
)

// 历史记录操作者常量
const (
	ActorCustomer = "customer"
	ActorAdmin    = "admin"
	ActorSystem   = "system"
	ActorGateway  = "gateway"
)

// 通知事件类型常量
const (
	NotifyOrderCompleted         = "order-completed"
	NotifyOrderCancelled         = "order-cancelled"
	NotifyAdminNewOrder          = "admin-new-order"
	NotifyFreeOrderNeedsReview   = "free-order-needs-review"
	NotifyFreeOrderMissingCustom = "free-order-missing-customization"
	NotifyCustomMessage          = "custom-message"
)

// 异步任务名称常量
const (
	TaskNotificationDispatch = "notification:dispatch"
	TaskOrderAutoFulfill     = "order:auto_fulfill"
	TaskOrderTimeoutCancel   = "order:timeout_cancel"
)

// 队列名称常量
const (
	QueueDefault = "default"
)

// 站点默认值常量
const (
	SiteCurrencyDefault = "USD"
)
