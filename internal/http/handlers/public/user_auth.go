package public

import (
	"errors"

	"github.com/pixelmart/internal/http/response"
	"github.com/pixelmart/internal/service"

	"github.com/gin-gonic/gin"
)

// UserLoginRequest 用户登录请求
type UserLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserLogin 用户登录
func (h *Handler) UserLogin(c *gin.Context) {
	var req UserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}

	result, err := h.AuthService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrCredentialsInvalid) {
			respondError(c, response.CodeUnauthorized, "error.credentials_invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	requestLog(c).Infow("user_login", "user_id", result.User.ID)
	response.Success(c, result)
}

// GetCurrentUser 获取当前登录用户
func (h *Handler) GetCurrentUser(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	user, err := h.UserRepo.GetByID(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	if user == nil {
		respondError(c, response.CodeUnauthorized, "error.token_invalid", nil)
		return
	}

	response.Success(c, user)
}
