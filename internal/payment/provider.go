package payment

import (
	"context"
	"time"
)

// CreateIntentInput 创建支付意向输入
type CreateIntentInput struct {
	OrderNo   string
	Amount    string // 两位小数字符串
	Currency  string
	Subject   string
	NotifyURL string
	ReturnURL string
	ExpiresAt *time.Time
}

// Intent 支付意向结果
type Intent struct {
	IntentID   string                 // 网关侧意向 ID
	OrderNo    string                 // 商户订单号
	Amount     string                 // 请求金额
	PaymentURL string                 // 收银台地址
	Raw        map[string]interface{} // 原始响应
}

// CaptureInput 确认扣款输入
type CaptureInput struct {
	IntentID string
	OrderNo  string
	Amount   string
	Currency string
}

// CaptureResult 确认扣款结果
type CaptureResult struct {
	TxnID      string // 网关侧交易流水号
	CapturedAt time.Time
}

// RefundInput 退款输入
type RefundInput struct {
	TxnID    string
	OrderNo  string
	Amount   string
	Currency string
	Reason   string
}

// RefundResult 退款结果
type RefundResult struct {
	RefundID   string
	RefundedAt time.Time
}

// Provider 支付网关抽象
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, input CreateIntentInput) (*Intent, error)
	ConfirmCapture(ctx context.Context, input CaptureInput) (*CaptureResult, error)
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
}
