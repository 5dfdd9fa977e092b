package i18n

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// LocaleEN 英文
	LocaleEN = "en"
	// LocaleZH 中文
	LocaleZH = "zh"
)

// DefaultLocale 默认语言
const DefaultLocale = LocaleEN

var catalogs = map[string]map[string]string{
	LocaleEN: {
		"error.invalid_params":            "invalid request parameters",
		"error.unauthorized":              "unauthorized",
		"error.forbidden":                 "forbidden",
		"error.not_found":                 "resource not found",
		"error.internal":                  "internal server error",
		"error.rate_limited":              "too many requests, please retry in %d seconds",
		"error.rate_limit_unavailable":    "rate limit service unavailable",
		"error.auth_header_missing":       "authorization header missing",
		"error.auth_header_invalid":       "authorization header invalid",
		"error.token_invalid":             "token invalid or expired",
		"error.jwt_secret_missing":        "jwt secret not configured",
		"error.credentials_invalid":       "email or password incorrect",
		"error.not_admin":                 "account has no admin access",
		"error.order_not_found":           "order not found",
		"error.order_items_empty":         "order must contain at least one item",
		"error.order_item_invalid":        "order item invalid",
		"error.order_amount_invalid":      "order amount invalid",
		"error.order_state_conflict":      "order state does not allow this operation",
		"error.order_cancel_not_allowed":  "order can no longer be cancelled",
		"error.order_not_payable":         "order is not payable",
		"error.order_not_free":            "order has a non-zero total",
		"error.order_no_intent":           "order has no matching payment intent",
		"error.order_create_failed":       "failed to create order",
		"error.order_fetch_failed":        "failed to fetch order",
		"error.order_update_failed":       "failed to update order",
		"error.product_not_found":         "product not found",
		"error.product_unavailable":       "product is unavailable",
		"error.discount_not_found":        "discount code not found",
		"error.discount_inactive":         "discount code is inactive",
		"error.discount_not_started":      "discount code is not active yet",
		"error.discount_expired":          "discount code has expired",
		"error.discount_exhausted":        "discount code usage limit reached",
		"error.discount_user_limit":       "discount code usage limit for this account reached",
		"error.discount_min_amount":       "order amount below discount code minimum",
		"error.discount_invalid":          "discount code invalid",
		"error.payment_gateway":           "payment gateway error",
		"error.payment_not_configured":    "payment provider not configured",
		"error.payment_amount_mismatch":   "payment amount mismatch",
		"error.refund_failed":             "refund failed, please retry",
		"error.grant_not_found":           "download grant not found",
		"error.download_denied":           "download not available",
		"error.download_expired":          "download access has expired",
		"error.download_quota":            "download quota exhausted",
		"error.file_unavailable":          "file is unavailable",
		"error.duplicate_discount_code":   "discount code already exists",
		"error.invalid_status_transition": "invalid status transition",
	},
	LocaleZH: {
		"error.invalid_params":            "请求参数无效",
		"error.unauthorized":              "未登录或登录已过期",
		"error.forbidden":                 "没有操作权限",
		"error.not_found":                 "资源不存在",
		"error.internal":                  "服务器内部错误",
		"error.rate_limited":              "请求过于频繁，请 %d 秒后再试",
		"error.rate_limit_unavailable":    "限流服务不可用",
		"error.auth_header_missing":       "缺少认证信息",
		"error.auth_header_invalid":       "认证信息格式错误",
		"error.token_invalid":             "令牌无效或已过期",
		"error.jwt_secret_missing":        "未配置 JWT 密钥",
		"error.credentials_invalid":       "邮箱或密码错误",
		"error.not_admin":                 "账号不具备管理权限",
		"error.order_not_found":           "订单不存在",
		"error.order_items_empty":         "订单至少需要一个商品",
		"error.order_item_invalid":        "订单商品项无效",
		"error.order_amount_invalid":      "订单金额无效",
		"error.order_state_conflict":      "订单当前状态不允许该操作",
		"error.order_cancel_not_allowed":  "订单已不可取消",
		"error.order_not_payable":         "订单不可支付",
		"error.order_not_free":            "订单金额不为零",
		"error.order_no_intent":           "订单不存在匹配的支付意向",
		"error.order_create_failed":       "创建订单失败",
		"error.order_fetch_failed":        "获取订单失败",
		"error.order_update_failed":       "更新订单失败",
		"error.product_not_found":         "商品不存在",
		"error.product_unavailable":       "商品已下架",
		"error.discount_not_found":        "优惠码不存在",
		"error.discount_inactive":         "优惠码未启用",
		"error.discount_not_started":      "优惠码尚未生效",
		"error.discount_expired":          "优惠码已过期",
		"error.discount_exhausted":        "优惠码已达使用上限",
		"error.discount_user_limit":       "该账号使用次数已达上限",
		"error.discount_min_amount":       "订单金额未达到优惠码门槛",
		"error.discount_invalid":          "优惠码无效",
		"error.payment_gateway":           "支付网关异常",
		"error.payment_not_configured":    "未配置支付网关",
		"error.payment_amount_mismatch":   "支付金额不一致",
		"error.refund_failed":             "退款失败，请重试",
		"error.grant_not_found":           "下载授权不存在",
		"error.download_denied":           "当前不可下载",
		"error.download_expired":          "下载权限已过期",
		"error.download_quota":            "下载次数已用完",
		"error.file_unavailable":          "文件不可用",
		"error.duplicate_discount_code":   "优惠码已存在",
		"error.invalid_status_transition": "非法的状态流转",
	},
}

// T 按语言查找文案，未命中时回落到 key
func T(locale, key string) string {
	if catalog, ok := catalogs[normalizeLocale(locale)]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	if msg, ok := catalogs[DefaultLocale][key]; ok {
		return msg
	}
	return key
}

// Sprintf 按语言格式化带参数的文案
func Sprintf(locale, key string, args ...interface{}) string {
	format := T(locale, key)
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// ResolveLocale 从请求中解析语言偏好
func ResolveLocale(c *gin.Context) string {
	if c == nil {
		return DefaultLocale
	}
	if lang := strings.TrimSpace(c.Query("lang")); lang != "" {
		return normalizeLocale(lang)
	}
	header := c.GetHeader("Accept-Language")
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" {
			continue
		}
		locale := normalizeLocale(tag)
		if _, ok := catalogs[locale]; ok {
			return locale
		}
	}
	return DefaultLocale
}

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	switch {
	case strings.HasPrefix(locale, LocaleZH):
		return LocaleZH
	case strings.HasPrefix(locale, LocaleEN):
		return LocaleEN
	default:
		return locale
	}
}
