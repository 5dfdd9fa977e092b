package queue

import (
	"encoding/json"

	"github.com/pixelmart/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskNotificationDispatch 通知分发任务
	TaskNotificationDispatch = constants.TaskNotificationDispatch
	// TaskOrderAutoFulfill 自动交付任务
	TaskOrderAutoFulfill = constants.TaskOrderAutoFulfill
	// TaskOrderTimeoutCancel 超时取消任务
	TaskOrderTimeoutCancel = constants.TaskOrderTimeoutCancel
)

// NotificationDispatchPayload 通知分发任务载荷
type NotificationDispatchPayload struct {
	OrderID uint   `json:"order_id"`
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// OrderAutoFulfillPayload 自动交付任务载荷
type OrderAutoFulfillPayload struct {
	OrderID uint `json:"order_id"`
}

// OrderTimeoutCancelPayload 超时取消任务载荷
type OrderTimeoutCancelPayload struct {
	OrderID uint `json:"order_id"`
}

// NewNotificationDispatchTask 创建通知分发任务
func NewNotificationDispatchTask(payload NotificationDispatchPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDispatch, body), nil
}

// NewOrderAutoFulfillTask 创建自动交付任务
func NewOrderAutoFulfillTask(payload OrderAutoFulfillPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderAutoFulfill, body), nil
}

// NewOrderTimeoutCancelTask 创建超时取消任务
func NewOrderTimeoutCancelTask(payload OrderTimeoutCancelPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderTimeoutCancel, body), nil
}
