package public

import (
	"strconv"
	"strings"

	"github.com/pixelmart/internal/http/response"
	"github.com/pixelmart/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetProducts 商品列表
func (h *Handler) GetProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	products, total, err := h.ProductRepo.List(repository.ProductListFilter{
		Page:       page,
		PageSize:   pageSize,
		Search:     strings.TrimSpace(c.Query("search")),
		OnlyActive: true,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	pagination := response.BuildPagination(page, pageSize, total)
	response.SuccessWithPage(c, products, pagination)
}

// GetProductBySlug 商品详情
func (h *Handler) GetProductBySlug(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	product, err := h.ProductRepo.GetBySlug(slug)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	if product == nil || !product.IsActive {
		respondError(c, response.CodeNotFound, "error.product_not_found", nil)
		return
	}

	files, err := h.DesignFileRepo.ListActiveByProduct(product.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	response.Success(c, gin.H{
		"product": product,
		"files":   files,
	})
}
