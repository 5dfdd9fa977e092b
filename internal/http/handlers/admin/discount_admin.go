package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/pixelmart/internal/http/response"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"
	"github.com/pixelmart/internal/service"

	"github.com/gin-gonic/gin"
)

// DiscountCodeRequest 折扣码创建/更新请求
type DiscountCodeRequest struct {
	Code         string       `json:"code" binding:"required"`
	Type         string       `json:"type" binding:"required"`
	Value        models.Money `json:"value"`
	MaxDiscount  models.Money `json:"max_discount"`
	MinAmount    models.Money `json:"min_amount"`
	UsageLimit   int          `json:"usage_limit"`
	PerUserLimit int          `json:"per_user_limit"`
	StartsAt     *time.Time   `json:"starts_at"`
	EndsAt       *time.Time   `json:"ends_at"`
	IsActive     bool         `json:"is_active"`
}

func (req *DiscountCodeRequest) toInput() service.DiscountCodeInput {
	return service.DiscountCodeInput{
		Code:         req.Code,
		Type:         req.Type,
		Value:        req.Value,
		MaxDiscount:  req.MaxDiscount,
		MinAmount:    req.MinAmount,
		UsageLimit:   req.UsageLimit,
		PerUserLimit: req.PerUserLimit,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		IsActive:     req.IsActive,
	}
}

func respondDiscountAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDiscountNotFound):
		respondError(c, response.CodeNotFound, "error.discount_not_found", nil)
	case errors.Is(err, service.ErrDiscountCodeExists):
		respondError(c, response.CodeBadRequest, "error.duplicate_discount_code", nil)
	case errors.Is(err, service.ErrDiscountInvalid):
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
	default:
		respondError(c, response.CodeInternal, "error.internal", err)
	}
}

// CreateDiscountCode 创建折扣码
func (h *Handler) CreateDiscountCode(c *gin.Context) {
	var req DiscountCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}

	code, err := h.DiscountAdminService.Create(req.toInput())
	if err != nil {
		respondDiscountAdminError(c, err)
		return
	}

	requestLog(c).Infow("discount_code_created", "code", code.Code)
	response.Success(c, code)
}

// UpdateDiscountCode 更新折扣码
func (h *Handler) UpdateDiscountCode(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	var req DiscountCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}

	code, err := h.DiscountAdminService.Update(uint(id), req.toInput())
	if err != nil {
		respondDiscountAdminError(c, err)
		return
	}

	response.Success(c, code)
}

// SetDiscountCodeActiveRequest 折扣码启停请求
type SetDiscountCodeActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// SetDiscountCodeActive 折扣码启停
func (h *Handler) SetDiscountCodeActive(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	var req SetDiscountCodeActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}

	code, err := h.DiscountAdminService.SetActive(uint(id), req.IsActive)
	if err != nil {
		respondDiscountAdminError(c, err)
		return
	}

	response.Success(c, code)
}

// DeleteDiscountCode 删除折扣码
func (h *Handler) DeleteDiscountCode(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	if err := h.DiscountAdminService.Delete(uint(id)); err != nil {
		respondDiscountAdminError(c, err)
		return
	}

	response.Success(c, nil)
}

// GetDiscountCode 折扣码详情
func (h *Handler) GetDiscountCode(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	code, err := h.DiscountAdminService.Get(uint(id))
	if err != nil {
		respondDiscountAdminError(c, err)
		return
	}

	response.Success(c, code)
}

// ListDiscountCodes 折扣码列表
func (h *Handler) ListDiscountCodes(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	var isActive *bool
	if raw := strings.TrimSpace(c.Query("is_active")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
			return
		}
		isActive = &parsed
	}

	codes, total, err := h.DiscountAdminService.List(repository.DiscountCodeListFilter{
		Page:     page,
		PageSize: pageSize,
		Code:     strings.TrimSpace(c.Query("code")),
		Type:     strings.TrimSpace(c.Query("type")),
		IsActive: isActive,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	pagination := response.BuildPagination(page, pageSize, total)
	response.SuccessWithPage(c, codes, pagination)
}

// ListDiscountUsages 折扣码使用记录
func (h *Handler) ListDiscountUsages(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	var codeID, userID uint
	if raw := strings.TrimSpace(c.Query("discount_code_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			codeID = uint(parsed)
		}
	}
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			userID = uint(parsed)
		}
	}

	usages, total, err := h.DiscountUsageRepo.List(repository.DiscountUsageListFilter{
		Page:           page,
		PageSize:       pageSize,
		DiscountCodeID: codeID,
		UserID:         userID,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	pagination := response.BuildPagination(page, pageSize, total)
	response.SuccessWithPage(c, usages, pagination)
}
