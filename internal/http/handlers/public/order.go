package public

import (
	"errors"
	"strconv"
	"strings"

	"github.com/pixelmart/internal/http/response"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"
	"github.com/pixelmart/internal/service"

	"github.com/gin-gonic/gin"
)

// OrderItemRequest 订单项请求
type OrderItemRequest struct {
	ProductID     uint        `json:"product_id" binding:"required"`
	Quantity      int         `json:"quantity" binding:"required"`
	Customization models.JSON `json:"customization"`
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	Items         []OrderItemRequest `json:"items" binding:"required"`
	DiscountCode  string             `json:"discount_code"`
	CheckoutToken string             `json:"checkout_token"`
	CustomerEmail string             `json:"customer_email" binding:"required"`
	CustomerName  string             `json:"customer_name"`
}

// CreateOrder 创建订单
func (h *Handler) CreateOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}

	var items []service.CreateOrderItem
	for _, item := range req.Items {
		items = append(items, service.CreateOrderItem{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			Customization: item.Customization,
		})
	}

	order, err := h.OrderService.CreateOrder(service.CreateOrderInput{
		UserID:        uid,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		CheckoutToken: req.CheckoutToken,
		Items:         items,
		DiscountCode:  req.DiscountCode,
		ClientIP:      c.ClientIP(),
	})
	if err != nil {
		respondOrderCreateError(c, err)
		return
	}

	response.Success(c, order)
}

// ListOrders 获取订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	status := strings.TrimSpace(c.Query("status"))
	orderNo := strings.TrimSpace(c.Query("order_no"))

	orders, total, err := h.OrderService.ListUserOrders(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   status,
		OrderNo:  orderNo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}

	pagination := response.BuildPagination(page, pageSize, total)
	response.SuccessWithPage(c, orders, pagination)
}

// GetOrder 获取订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	order, err := h.OrderService.GetOwnedOrder(uint(orderID), uid)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}

	response.Success(c, order)
}

// GetOrderByOrderNo 按订单号获取订单详情
func (h *Handler) GetOrderByOrderNo(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	order, err := h.OrderService.GetOrderByNo(orderNo)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}
	// 订单号可被猜测，归属校验后再返回。
	if order.UserID != uid {
		respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		return
	}

	response.Success(c, order)
}

// GetOrderHistory 获取订单状态历史
func (h *Handler) GetOrderHistory(c *gin.Context) {
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
		if errors.Is(err, service.ErrOrderNotFound) {
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}

	history, err := h.OrderService.GetOrderHistory(uint(orderID))
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}

	response.Success(c, history)
}

// CancelOrder 用户取消订单
func (h *Handler) CancelOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	order, err := h.OrderService.CancelByUser(uint(orderID), uid)
	if err != nil {
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

	response.Success(c, order)
}

// CompleteFreeOrder 零元订单确认
func (h *Handler) CompleteFreeOrder(c *gin.Context) {
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
		if errors.Is(err, service.ErrOrderNotFound) {
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}

	result, err := h.FreeOrderService.Complete(uint(orderID))
	if err != nil {
		respondFreeCompleteError(c, err)
		return
	}

	response.Success(c, result)
}
