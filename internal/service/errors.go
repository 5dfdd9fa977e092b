package service

import "errors"

// 折扣码相关错误
var (
	ErrDiscountNotFound     = errors.New("discount code not found")
	ErrDiscountInactive     = errors.New("discount code inactive")
	ErrDiscountNotStarted   = errors.New("discount code not started")
	ErrDiscountExpired      = errors.New("discount code expired")
	ErrDiscountUsageLimit   = errors.New("discount code usage limit reached")
	ErrDiscountPerUserLimit = errors.New("discount code per-user limit reached")
	ErrDiscountMinAmount    = errors.New("order amount below discount minimum")
	ErrDiscountInvalid      = errors.New("discount code invalid")
	ErrDiscountCodeExists   = errors.New("discount code already exists")
)

// 订单相关错误
var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderItemsEmpty       = errors.New("order has no items")
	ErrInvalidOrderItem      = errors.New("order item invalid")
	ErrInvalidOrderAmount    = errors.New("order amount invalid")
	ErrOrderStatusInvalid    = errors.New("order status transition not allowed")
	ErrOrderCancelNotAllowed = errors.New("order cancel not allowed")
	ErrProductNotFound       = errors.New("product not found")
	ErrProductNotAvailable   = errors.New("product not available")
)

// 支付相关错误
var (
	ErrOrderNotPayable       = errors.New("order not payable")
	ErrOrderNotFree          = errors.New("order total is not zero")
	ErrPaymentGateway        = errors.New("payment gateway error")
	ErrPaymentNoIntent       = errors.New("order has no payment intent")
	ErrRefundFailed          = errors.New("refund failed")
	ErrAmountMismatch        = errors.New("payment amount mismatch")
	ErrProviderNotConfigured = errors.New("payment provider not configured")
)

// 账号与登录相关错误
var (
	ErrCredentialsInvalid = errors.New("email or password incorrect")
	ErrNotAdmin           = errors.New("user has no admin access")
)

// 授权与下载相关错误
var (
	ErrGrantNotFound   = errors.New("download grant not found")
	ErrDownloadDenied  = errors.New("download not available")
	ErrGrantExpired    = errors.New("download access expired")
	ErrDownloadQuota   = errors.New("download quota exhausted")
	ErrFileUnavailable = errors.New("design file unavailable")
)
