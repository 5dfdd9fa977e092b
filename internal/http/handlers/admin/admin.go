package admin

import (
	"errors"
	"strings"
	"time"

	"github.com/pixelmart/internal/http/response"
	"github.com/pixelmart/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminLoginRequest 管理端登录请求
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLogin 管理端登录
func (h *Handler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}

	result, err := h.AuthService.AdminLogin(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCredentialsInvalid):
			respondError(c, response.CodeUnauthorized, "error.credentials_invalid", nil)
		case errors.Is(err, service.ErrNotAdmin):
			respondError(c, response.CodeForbidden, "error.not_admin", nil)
		default:
			respondError(c, response.CodeInternal, "error.internal", err)
		}
		return
	}

	requestLog(c).Infow("admin_login", "admin_id", result.User.ID)
	response.Success(c, result)
}

// parseTimeNullable 解析可选时间参数，支持 RFC3339 与日期格式
func parseTimeNullable(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
