package public

import (
	"errors"

	"github.com/pixelmart/internal/http/response"
	"github.com/pixelmart/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var discountErrorRules = []mappedHandlerError{
	{target: service.ErrDiscountNotFound, code: response.CodeBadRequest, key: "error.discount_not_found"},
	{target: service.ErrDiscountInactive, code: response.CodeBadRequest, key: "error.discount_inactive"},
	{target: service.ErrDiscountNotStarted, code: response.CodeBadRequest, key: "error.discount_not_started"},
	{target: service.ErrDiscountExpired, code: response.CodeBadRequest, key: "error.discount_expired"},
	{target: service.ErrDiscountUsageLimit, code: response.CodeBadRequest, key: "error.discount_exhausted"},
	{target: service.ErrDiscountPerUserLimit, code: response.CodeBadRequest, key: "error.discount_user_limit"},
	{target: service.ErrDiscountMinAmount, code: response.CodeBadRequest, key: "error.discount_min_amount"},
	{target: service.ErrDiscountInvalid, code: response.CodeBadRequest, key: "error.discount_invalid"},
}

var orderCreateErrorRules = []mappedHandlerError{
	{target: service.ErrOrderItemsEmpty, code: response.CodeBadRequest, key: "error.order_items_empty"},
	{target: service.ErrInvalidOrderItem, code: response.CodeBadRequest, key: "error.order_item_invalid"},
	{target: service.ErrInvalidOrderAmount, code: response.CodeBadRequest, key: "error.order_amount_invalid"},
	{target: service.ErrProductNotFound, code: response.CodeBadRequest, key: "error.product_not_found"},
	{target: service.ErrProductNotAvailable, code: response.CodeBadRequest, key: "error.product_unavailable"},
}

var paymentIntentErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOrderNotPayable, code: response.CodeBadRequest, key: "error.order_not_payable"},
	{target: service.ErrProviderNotConfigured, code: response.CodeInternal, key: "error.payment_not_configured"},
	{target: service.ErrPaymentGateway, code: response.CodeBadRequest, key: "error.payment_gateway"},
}

var paymentCaptureErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOrderNotPayable, code: response.CodeBadRequest, key: "error.order_not_payable"},
	{target: service.ErrPaymentNoIntent, code: response.CodeBadRequest, key: "error.order_no_intent"},
	{target: service.ErrAmountMismatch, code: response.CodeBadRequest, key: "error.payment_amount_mismatch"},
	{target: service.ErrProviderNotConfigured, code: response.CodeInternal, key: "error.payment_not_configured"},
	{target: service.ErrPaymentGateway, code: response.CodeBadRequest, key: "error.payment_gateway"},
	{target: service.ErrDiscountUsageLimit, code: response.CodeBadRequest, key: "error.discount_exhausted"},
	{target: service.ErrDiscountPerUserLimit, code: response.CodeBadRequest, key: "error.discount_user_limit"},
}

var freeCompleteErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOrderNotFree, code: response.CodeBadRequest, key: "error.order_not_free"},
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest, key: "error.order_state_conflict"},
	{target: service.ErrDiscountUsageLimit, code: response.CodeBadRequest, key: "error.discount_exhausted"},
	{target: service.ErrDiscountPerUserLimit, code: response.CodeBadRequest, key: "error.discount_user_limit"},
}

var downloadErrorRules = []mappedHandlerError{
	{target: service.ErrDownloadDenied, code: response.CodeForbidden, key: "error.download_denied"},
	{target: service.ErrGrantExpired, code: response.CodeForbidden, key: "error.download_expired"},
	{target: service.ErrDownloadQuota, code: response.CodeForbidden, key: "error.download_quota"},
	{target: service.ErrFileUnavailable, code: response.CodeNotFound, key: "error.file_unavailable"},
}

func respondOrderCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(orderCreateErrorRules, discountErrorRules), response.CodeInternal, "error.order_create_failed")
}

func respondDiscountValidateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, discountErrorRules, response.CodeInternal, "error.internal")
}

func respondPaymentIntentError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentIntentErrorRules, response.CodeInternal, "error.internal")
}

func respondPaymentCaptureError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentCaptureErrorRules, response.CodeInternal, "error.internal")
}

func respondFreeCompleteError(c *gin.Context, err error) {
	respondWithMappedError(c, err, freeCompleteErrorRules, response.CodeInternal, "error.internal")
}

func respondDownloadError(c *gin.Context, err error) {
	respondWithMappedError(c, err, downloadErrorRules, response.CodeInternal, "error.internal")
}
