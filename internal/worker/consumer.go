package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/provider"
	"github.com/pixelmart/internal/queue"
	"github.com/pixelmart/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskNotificationDispatch, c.handleNotificationDispatch)
	mux.HandleFunc(queue.TaskOrderAutoFulfill, c.handleOrderAutoFulfill)
	mux.HandleFunc(queue.TaskOrderTimeoutCancel, c.handleOrderTimeoutCancel)
}

func (c *Consumer) handleNotificationDispatch(ctx context.Context, task *asynq.Task) error {
	var payload queue.NotificationDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_notification_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 || payload.Kind == "" {
		logger.Debugw("worker_notification_skip_invalid_payload", "order_id", payload.OrderID, "kind", payload.Kind)
		return nil
	}
	if err := c.NotificationService.Dispatch(ctx, payload.OrderID, payload.Kind, payload.Message); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			logger.Debugw("worker_notification_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		}
		logger.Warnw("worker_notification_dispatch_failed", "order_id", payload.OrderID, "kind", payload.Kind, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleOrderAutoFulfill(_ context.Context, task *asynq.Task) error {
	var payload queue.OrderAutoFulfillPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_auto_fulfill_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_auto_fulfill_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	_, err := c.FulfillmentService.AutoFulfill(payload.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_auto_fulfill_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrOrderStatusInvalid):
			logger.Debugw("worker_auto_fulfill_skip_invalid_status", "order_id", payload.OrderID)
			return nil
		default:
			logger.Warnw("worker_auto_fulfill_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleOrderTimeoutCancel(_ context.Context, task *asynq.Task) error {
	var payload queue.OrderTimeoutCancelPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_timeout_cancel_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_timeout_cancel_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	err := c.OrderService.CancelExpiredOrder(payload.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_timeout_cancel_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrOrderCancelNotAllowed):
			// 订单已支付或已终态，超时取消不再适用。
			logger.Debugw("worker_timeout_cancel_skip_not_applicable", "order_id", payload.OrderID)
			return nil
		default:
			logger.Warnw("worker_timeout_cancel_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}
