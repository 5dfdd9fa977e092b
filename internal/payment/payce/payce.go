package payce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pixelmart/internal/payment"
)

var (
	ErrConfigInvalid    = errors.New("payce config invalid")
	ErrRequestFailed    = errors.New("payce request failed")
	ErrResponseInvalid  = errors.New("payce response invalid")
	ErrSignatureInvalid = errors.New("payce signature invalid")
	ErrDeclined         = errors.New("payce capture declined")
)

// 网关侧意向状态
const (
	IntentStatusCreated  = "created"
	IntentStatusCaptured = "captured"
	IntentStatusExpired  = "expired"
)

// Config Payce 网关配置
type Config struct {
	BaseURL    string `json:"base_url"`    // 网关地址，如 https://pay.example.com
	MerchantID string `json:"merchant_id"` // 商户号
	APIKey     string `json:"api_key"`     // 签名密钥
	NotifyURL  string `json:"notify_url"`  // 异步通知地址
	ReturnURL  string `json:"return_url"`  // 同步跳转地址
	TimeoutMS  int    `json:"timeout_ms"`  // 请求超时（毫秒）
}

// Client Payce REST 客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// 编译期确认实现 payment.Provider
var _ payment.Provider = (*Client)(nil)

// New 创建 Payce 客户端
func New(cfg Config) (*Client, error) {
	cfg.normalize()
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name 网关名称
func (c *Client) Name() string {
	return "payce"
}

func (cfg *Config) normalize() {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.MerchantID = strings.TrimSpace(cfg.MerchantID)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.NotifyURL = strings.TrimSpace(cfg.NotifyURL)
	cfg.ReturnURL = strings.TrimSpace(cfg.ReturnURL)
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("%w: base_url is required", ErrConfigInvalid)
	}
	if cfg.MerchantID == "" {
		return fmt.Errorf("%w: merchant_id is required", ErrConfigInvalid)
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("%w: api_key is required", ErrConfigInvalid)
	}
	return nil
}

// CreateIntent 创建支付意向
func (c *Client) CreateIntent(ctx context.Context, input payment.CreateIntentInput) (*payment.Intent, error) {
	if input.OrderNo == "" || input.Amount == "" {
		return nil, fmt.Errorf("%w: order_no and amount are required", ErrConfigInvalid)
	}

	notifyURL := input.NotifyURL
	if notifyURL == "" {
		notifyURL = c.cfg.NotifyURL
	}
	returnURL := input.ReturnURL
	if returnURL == "" {
		returnURL = c.cfg.ReturnURL
	}

	params := map[string]interface{}{
		"merchant_id": c.cfg.MerchantID,
		"order_no":    input.OrderNo,
		"amount":      input.Amount,
		"currency":    input.Currency,
		"notify_url":  notifyURL,
		"return_url":  returnURL,
	}
	if input.Subject != "" {
		params["subject"] = input.Subject
	}
	if input.ExpiresAt != nil {
		params["expires_at"] = input.ExpiresAt.UTC().Format(time.RFC3339)
	}
	params["signature"] = Sign(params, c.cfg.APIKey)

	respBytes, err := c.postJSON(ctx, "/api/v1/intents", params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var resp struct {
		StatusCode int    `json:"status_code"`
		Message    string `json:"message"`
		Data       struct {
			IntentID   string `json:"intent_id"`
			OrderNo    string `json:"order_no"`
			Amount     string `json:"amount"`
			Status     string `json:"status"`
			PaymentURL string `json:"payment_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Message)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)

	return &payment.Intent{
		IntentID:   resp.Data.IntentID,
		OrderNo:    resp.Data.OrderNo,
		Amount:     resp.Data.Amount,
		PaymentURL: resp.Data.PaymentURL,
		Raw:        raw,
	}, nil
}

// ConfirmCapture 确认扣款，网关拒绝时返回 ErrDeclined
func (c *Client) ConfirmCapture(ctx context.Context, input payment.CaptureInput) (*payment.CaptureResult, error) {
	if input.IntentID == "" {
		return nil, fmt.Errorf("%w: intent_id is required", ErrConfigInvalid)
	}

	params := map[string]interface{}{
		"merchant_id": c.cfg.MerchantID,
		"intent_id":   input.IntentID,
		"order_no":    input.OrderNo,
		"amount":      input.Amount,
		"currency":    input.Currency,
	}
	params["signature"] = Sign(params, c.cfg.APIKey)

	endpoint := fmt.Sprintf("/api/v1/intents/%s/capture", input.IntentID)
	respBytes, err := c.postJSON(ctx, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var resp struct {
		StatusCode int    `json:"status_code"`
		Message    string `json:"message"`
		Data       struct {
			TxnID      string `json:"txn_id"`
			Status     string `json:"status"`
			CapturedAt string `json:"captured_at"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	switch resp.StatusCode {
	case 200:
	case 402:
		return nil, fmt.Errorf("%w: %s", ErrDeclined, resp.Message)
	default:
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Message)
	}

	capturedAt := time.Now()
	if ts, err := time.Parse(time.RFC3339, resp.Data.CapturedAt); err == nil {
		capturedAt = ts
	}

	return &payment.CaptureResult{
		TxnID:      resp.Data.TxnID,
		CapturedAt: capturedAt,
	}, nil
}

// Refund 发起退款
func (c *Client) Refund(ctx context.Context, input payment.RefundInput) (*payment.RefundResult, error) {
	if input.TxnID == "" {
		return nil, fmt.Errorf("%w: txn_id is required", ErrConfigInvalid)
	}

	params := map[string]interface{}{
		"merchant_id": c.cfg.MerchantID,
		"txn_id":      input.TxnID,
		"order_no":    input.OrderNo,
		"amount":      input.Amount,
		"currency":    input.Currency,
	}
	if input.Reason != "" {
		params["reason"] = input.Reason
	}
	params["signature"] = Sign(params, c.cfg.APIKey)

	respBytes, err := c.postJSON(ctx, "/api/v1/refunds", params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var resp struct {
		StatusCode int    `json:"status_code"`
		Message    string `json:"message"`
		Data       struct {
			RefundID   string `json:"refund_id"`
			RefundedAt string `json:"refunded_at"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Message)
	}

	refundedAt := time.Now()
	if ts, err := time.Parse(time.RFC3339, resp.Data.RefundedAt); err == nil {
		refundedAt = ts
	}

	return &payment.RefundResult{
		RefundID:   resp.Data.RefundID,
		RefundedAt: refundedAt,
	}, nil
}

// CallbackData 异步通知数据
type CallbackData struct {
	IntentID  string `json:"intent_id"`
	OrderNo   string `json:"order_no"`
	TxnID     string `json:"txn_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Signature string `json:"signature"`
}

// ParseCallback 解析异步通知
func ParseCallback(body []byte) (*CallbackData, error) {
	if len(body) == 0 {
		return nil, ErrResponseInvalid
	}
	var data CallbackData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &data, nil
}

// VerifyCallback 验证异步通知签名
func (c *Client) VerifyCallback(data *CallbackData) error {
	if data == nil {
		return ErrResponseInvalid
	}
	params := map[string]interface{}{
		"intent_id": data.IntentID,
		"order_no":  data.OrderNo,
		"txn_id":    data.TxnID,
		"amount":    data.Amount,
		"currency":  data.Currency,
		"status":    data.Status,
	}
	expected := Sign(params, c.cfg.APIKey)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(data.Signature))) {
		return ErrSignatureInvalid
	}
	return nil
}

// Sign 生成签名
// 签名规则：
// 1. 筛选所有非空且非 signature 的参数
// 2. 按参数名 ASCII 码从小到大排序
// 3. 按 key=value 格式拼接，使用 & 连接
// 4. 以 APIKey 作为密钥做 HMAC-SHA256，结果转小写十六进制
func Sign(params map[string]interface{}, apiKey string) string {
	var keys []string
	for k, v := range params {
		if k == "signature" {
			continue
		}
		if isEmptyValue(v) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, params[k]))
	}

	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return strings.ToLower(hex.EncodeToString(mac.Sum(nil)))
}

func isEmptyValue(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func (c *Client) postJSON(ctx context.Context, path string, params map[string]interface{}) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
