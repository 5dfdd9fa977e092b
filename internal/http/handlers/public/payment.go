package public

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pixelmart/internal/http/response"
	"github.com/pixelmart/internal/payment/payce"
	"github.com/pixelmart/internal/service"

	"github.com/gin-gonic/gin"
)

// CreatePaymentIntent 为订单创建支付意向
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	if _, err := h.OrderService.GetOwnedOrder(uint(orderID), uid); err != nil {
		respondPaymentIntentError(c, err)
		return
	}

	intent, err := h.PaymentService.CreateIntent(c.Request.Context(), uint(orderID))
	if err != nil {
		respondPaymentIntentError(c, err)
		return
	}

	response.Success(c, intent)
}

// CapturePaymentRequest 支付确认请求
type CapturePaymentRequest struct {
	IntentID string `json:"intent_id" binding:"required"`
}

// CapturePayment 客户端回跳后确认扣款
func (h *Handler) CapturePayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	var req CapturePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}

	if _, err := h.OrderService.GetOwnedOrder(uint(orderID), uid); err != nil {
		respondPaymentCaptureError(c, err)
		return
	}

	order, err := h.PaymentService.ConfirmCapture(c.Request.Context(), uint(orderID), strings.TrimSpace(req.IntentID))
	if err != nil {
		respondPaymentCaptureError(c, err)
		return
	}

	response.Success(c, order)
}

// PaymentCallback 处理 Payce 异步通知
func (h *Handler) PaymentCallback(c *gin.Context) {
	log := requestLog(c)
	log.Infow("payment_callback_received",
		"method", c.Request.Method,
		"client_ip", c.ClientIP(),
	)

	client, ok := h.PaymentProvider.(*payce.Client)
	if !ok {
		log.Warnw("payment_callback_provider_unavailable")
		c.String(http.StatusServiceUnavailable, "fail")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "fail")
		return
	}

	data, err := payce.ParseCallback(body)
	if err != nil {
		log.Warnw("payment_callback_parse_failed", "error", err)
		c.String(http.StatusBadRequest, "fail")
		return
	}
	if err := client.VerifyCallback(data); err != nil {
		log.Warnw("payment_callback_signature_invalid", "order_no", data.OrderNo)
		c.String(http.StatusBadRequest, "fail")
		return
	}
	if data.Status != payce.IntentStatusCaptured {
		log.Infow("payment_callback_ignored", "order_no", data.OrderNo, "status", data.Status)
		c.String(http.StatusOK, "success")
		return
	}

	order, err := h.PaymentService.ConfirmCaptureByOrderNo(c.Request.Context(), data.OrderNo, data.IntentID, data.Amount)
	if err != nil {
		log.Errorw("payment_callback_capture_failed", "error", err, "order_no", data.OrderNo)
		if err == service.ErrOrderNotFound || err == service.ErrAmountMismatch {
			c.String(http.StatusBadRequest, "fail")
			return
		}
		c.String(http.StatusInternalServerError, "fail")
		return
	}

	log.Infow("payment_callback_captured", "order_id", order.ID, "order_no", order.OrderNo)
	c.String(http.StatusOK, "success")
}
