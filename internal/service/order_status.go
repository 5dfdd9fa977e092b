package service

import (
	"time"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"
)

// allowedTransitions 订单状态流转表，未列出的流转一律拒绝。
var allowedTransitions = map[string]map[string]bool{
	constants.OrderStatusPending: {
		constants.OrderStatusProcessing:         true,
		constants.OrderStatusAwaitingCustomize:  true,
		constants.OrderStatusUnderCustomization: true,
		constants.OrderStatusCancelled:          true,
	},
	constants.OrderStatusProcessing: {
		constants.OrderStatusUnderCustomization: true,
		constants.OrderStatusCompleted:          true,
		constants.OrderStatusCancelled:          true,
		constants.OrderStatusRefunded:           true,
	},
	constants.OrderStatusAwaitingCustomize: {
		constants.OrderStatusUnderCustomization: true,
		constants.OrderStatusProcessing:         true,
		constants.OrderStatusCompleted:          true,
		constants.OrderStatusCancelled:          true,
		constants.OrderStatusRefunded:           true,
	},
	constants.OrderStatusUnderCustomization: {
		constants.OrderStatusProcessing: true,
		constants.OrderStatusCompleted:  true,
		constants.OrderStatusCancelled:  true,
		constants.OrderStatusRefunded:   true,
	},
}

// isTransitionAllowed 判断状态流转是否合法，原地流转视为幂等重放。
func isTransitionAllowed(current, target string) bool {
	if current == target {
		return true
	}
	nexts, ok := allowedTransitions[current]
	if !ok {
		return false
	}
	return nexts[target]
}

// appendHistory 为一次状态流转追加审计记录
func appendHistory(orderRepo repository.OrderRepository, orderID uint, status, note, actor string, now time.Time) error {
	return orderRepo.AppendHistory(&models.OrderHistory{
		OrderID:   orderID,
		Status:    status,
		Note:      note,
		Actor:     actor,
		CreatedAt: now,
	})
}
