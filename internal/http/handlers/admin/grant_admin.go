package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/pixelmart/internal/http/response"
	"github.com/pixelmart/internal/repository"
	"github.com/pixelmart/internal/service"

	"github.com/gin-gonic/gin"
)

// ListDownloadGrants 下载授权列表
func (h *Handler) ListDownloadGrants(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	var orderID, fileID uint
	if raw := strings.TrimSpace(c.Query("order_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			orderID = uint(parsed)
		}
	}
	if raw := strings.TrimSpace(c.Query("design_file_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			fileID = uint(parsed)
		}
	}
	onlyActive := false
	if raw := strings.TrimSpace(c.Query("only_active")); raw != "" {
		onlyActive, _ = strconv.ParseBool(raw)
	}

	grants, total, err := h.GrantService.List(repository.DownloadGrantListFilter{
		Page:         page,
		PageSize:     pageSize,
		OrderID:      orderID,
		DesignFileID: fileID,
		OnlyActive:   onlyActive,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	pagination := response.BuildPagination(page, pageSize, total)
	response.SuccessWithPage(c, grants, pagination)
}

// GrantActionRequest 授权操作请求
type GrantActionRequest struct {
	OrderID      uint `json:"order_id" binding:"required"`
	DesignFileID uint `json:"design_file_id" binding:"required"`
}

// RevokeDownloadGrant 吊销下载授权
func (h *Handler) RevokeDownloadGrant(c *gin.Context) {
	var req GrantActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}

	if err := h.GrantService.Revoke(req.OrderID, req.DesignFileID); err != nil {
		if errors.Is(err, service.ErrGrantNotFound) {
			respondError(c, response.CodeNotFound, "error.grant_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	requestLog(c).Infow("download_grant_revoked",
		"order_id", req.OrderID,
		"design_file_id", req.DesignFileID,
	)
	response.Success(c, nil)
}

// RestoreDownloadGrant 恢复下载授权
func (h *Handler) RestoreDownloadGrant(c *gin.Context) {
	var req GrantActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}

	if err := h.GrantService.Restore(req.OrderID, req.DesignFileID); err != nil {
		if errors.Is(err, service.ErrGrantNotFound) {
			respondError(c, response.CodeNotFound, "error.grant_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	response.Success(c, nil)
}

// ListProductFiles 商品下的设计文件列表
func (h *Handler) ListProductFiles(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || productID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	files, err := h.DesignFileRepo.ListActiveByProduct(uint(productID))
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	response.Success(c, files)
}

// AdminDownloadFile 管理端下载文件（不计入授权配额）
func (h *Handler) AdminDownloadFile(c *gin.Context) {
	uid, ok := getAdminID(c)
	if !ok {
		return
	}

	fileID, err := strconv.ParseUint(c.Param("file_id"), 10, 64)
	if err != nil || fileID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	auth, err := h.DownloadService.Authorize(c.Request.Context(), service.Requester{UserID: uid, IsAdmin: true}, uint(fileID))
	if err != nil {
		if errors.Is(err, service.ErrFileUnavailable) {
			respondError(c, response.CodeNotFound, "error.file_unavailable", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	defer auth.Stream.Close()

	contentType := strings.TrimSpace(auth.File.MimeType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", auth.File.Name),
	}
	c.DataFromReader(http.StatusOK, auth.Size, contentType, auth.Stream, headers)
}
