package public

import (
	"github.com/pixelmart/internal/http/response"
	"github.com/pixelmart/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ValidateDiscountRequest 优惠码校验请求
type ValidateDiscountRequest struct {
	Code      string `json:"code" binding:"required"`
	CartValue string `json:"cart_value" binding:"required"`
}

// ValidateDiscountResponse 优惠码校验响应
type ValidateDiscountResponse struct {
	Code           string       `json:"code"`
	Type           string       `json:"type"`
	DiscountAmount models.Money `json:"discount_amount"`
	PayableAmount  models.Money `json:"payable_amount"`
}

// ValidateDiscount 结账前校验优惠码并返回预计优惠金额。只读，不占用名额。
func (h *Handler) ValidateDiscount(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req ValidateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_params", err)
		return
	}
	cartValue, err := decimal.NewFromString(req.CartValue)
	if err != nil || cartValue.IsNegative() {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	result, err := h.DiscountService.Validate(req.Code, uid, models.NewMoneyFromDecimal(cartValue))
	if err != nil {
		respondDiscountValidateError(c, err)
		return
	}

	payable := cartValue.Sub(result.Amount.Decimal)
	if payable.IsNegative() {
		payable = decimal.Zero
	}
	response.Success(c, ValidateDiscountResponse{
		Code:           result.Code.Code,
		Type:           result.Code.Type,
		DiscountAmount: result.Amount,
		PayableAmount:  models.NewMoneyFromDecimal(payable),
	})
}
