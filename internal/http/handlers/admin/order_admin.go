package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/http/response"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"
	"github.com/pixelmart/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminOrderListItem 管理端订单列表返回
type AdminOrderListItem struct {
	models.Order
	UserEmail       string `json:"user_email,omitempty"`
	UserDisplayName string `json:"user_display_name,omitempty"`
}

// AdminOrderDetail 管理端订单详情返回
type AdminOrderDetail struct {
	models.Order
	UserEmail       string                 `json:"user_email,omitempty"`
	UserDisplayName string                 `json:"user_display_name,omitempty"`
	DiscountCode    string                 `json:"discount_code,omitempty"`
	History         []models.OrderHistory  `json:"history"`
	Grants          []models.DownloadGrant `json:"grants"`
}

// AdminListOrders 管理端订单列表
func (h *Handler) AdminListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	createdFrom, err := parseTimeNullable(c.Query("created_from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}
	createdTo, err := parseTimeNullable(c.Query("created_to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}
	var userID uint
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			userID = uint(parsed)
		}
	}

	orders, total, err := h.OrderService.ListAdminOrders(repository.OrderListFilter{
		Page:          page,
		PageSize:      pageSize,
		UserID:        userID,
		Status:        strings.TrimSpace(c.Query("status")),
		PaymentStatus: strings.TrimSpace(c.Query("payment_status")),
		OrderNo:       strings.TrimSpace(c.Query("order_no")),
		CustomerEmail: strings.TrimSpace(c.Query("customer_email")),
		CreatedFrom:   createdFrom,
		CreatedTo:     createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}

	userMap := map[uint]models.User{}
	for _, order := range orders {
		if order.UserID == 0 {
			continue
		}
		if _, ok := userMap[order.UserID]; ok {
			continue
		}
		user, err := h.UserRepo.GetByID(order.UserID)
		if err != nil {
			respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
			return
		}
		if user != nil {
			userMap[order.UserID] = *user
		}
	}

	items := make([]AdminOrderListItem, 0, len(orders))
	for _, order := range orders {
		var email, displayName string
		if user, ok := userMap[order.UserID]; ok {
			email = user.Email
			displayName = user.DisplayName
		}
		items = append(items, AdminOrderListItem{
			Order:           order,
			UserEmail:       email,
			UserDisplayName: displayName,
		})
	}

	pagination := response.BuildPagination(page, pageSize, total)
	response.SuccessWithPage(c, items, pagination)
}

// AdminGetOrder 管理端订单详情
func (h *Handler) AdminGetOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	order, err := h.OrderService.GetOrder(uint(orderID))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}

	var email, displayName string
	if order.UserID != 0 {
		user, err := h.UserRepo.GetByID(order.UserID)
		if err != nil {
			respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
			return
		}
		if user != nil {
			email = user.Email
			displayName = user.DisplayName
		}
	}

	var discountCode string
	if order.DiscountCodeID != nil && *order.DiscountCodeID > 0 {
		code, err := h.DiscountCodeRepo.GetByID(*order.DiscountCodeID)
		if err != nil {
			respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
			return
		}
		if code != nil {
			discountCode = code.Code
		}
	}

	history, err := h.OrderService.GetOrderHistory(order.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}
	grants, err := h.GrantService.ListByOrder(order.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}

	response.Success(c, AdminOrderDetail{
		Order:           *order,
		UserEmail:       email,
		UserDisplayName: displayName,
		DiscountCode:    discountCode,
		History:         history,
		Grants:          grants,
	})
}

// AdminUpdateOrderStatusRequest 管理端更新订单状态请求
type AdminUpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// AdminUpdateOrderStatus 管理端更新订单状态
func (h *Handler) AdminUpdateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	var req AdminUpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}

	order, err := h.OrderService.UpdateStatus(uint(orderID), req.Status, req.Note, constants.ActorAdmin)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrOrderStatusInvalid):
			respondError(c, response.CodeBadRequest, "error.invalid_status_transition", nil)
		default:
			respondError(c, response.CodeInternal, "error.order_update_failed", err)
		}
		return
	}

	response.Success(c, order)
}

// AdminOrderActionRequest 管理端订单操作请求
type AdminOrderActionRequest struct {
	Note string `json:"note"`
}

// AdminCancelOrder 管理端取消订单
func (h *Handler) AdminCancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	var req AdminOrderActionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}
	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = "cancelled by admin"
	}

	if err := h.OrderService.Cancel(uint(orderID), constants.ActorAdmin, note); err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrOrderCancelNotAllowed):
			respondError(c, response.CodeBadRequest, "error.order_cancel_not_allowed", nil)
		default:
			respondError(c, response.CodeInternal, "error.order_update_failed", err)
		}
		return
	}

	order, err := h.OrderService.GetOrder(uint(orderID))
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}
	response.Success(c, order)
}

// AdminRefundOrder 管理端退款
func (h *Handler) AdminRefundOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	var req AdminOrderActionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}
	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = "refunded by admin"
	}

	order, err := h.OrderService.Refund(uint(orderID), constants.ActorAdmin, note)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrOrderStatusInvalid):
			respondError(c, response.CodeBadRequest, "error.order_state_conflict", nil)
		case errors.Is(err, service.ErrProviderNotConfigured):
			respondError(c, response.CodeInternal, "error.payment_not_configured", nil)
		case errors.Is(err, service.ErrRefundFailed):
			respondError(c, response.CodeBadRequest, "error.refund_failed", nil)
		default:
			respondError(c, response.CodeInternal, "error.order_update_failed", err)
		}
		return
	}

	response.Success(c, order)
}

// AdminCompleteOrder 管理端标记订单完成（定制交付完成后调用）
func (h *Handler) AdminCompleteOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	var req AdminOrderActionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}
	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = "completed by admin"
	}

	order, err := h.OrderService.MarkCompleted(uint(orderID), constants.ActorAdmin, note, h.Config.Order.DownloadExpireDays)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrOrderStatusInvalid):
			respondError(c, response.CodeBadRequest, "error.invalid_status_transition", nil)
		default:
			respondError(c, response.CodeInternal, "error.order_update_failed", err)
		}
		return
	}

	response.Success(c, order)
}

// AdminFulfillOrder 管理端重新授权下载（补发授权并在可能时自动完成）
func (h *Handler) AdminFulfillOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	grants, err := h.FulfillmentService.AutoFulfill(uint(orderID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrOrderStatusInvalid):
			respondError(c, response.CodeBadRequest, "error.order_state_conflict", nil)
		default:
			respondError(c, response.CodeInternal, "error.order_update_failed", err)
		}
		return
	}

	response.Success(c, gin.H{"created_grants": grants})
}
