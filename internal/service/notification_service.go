package service

import (
	"context"
	"time"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"
)

// Notification 一次待分发的通知
type Notification struct {
	Kind    string
	Order   *models.Order
	Message string
}

// Dispatcher 通知分发抽象。核心只负责决定通知何时发出与携带哪些数据，
// 邮件渲染与投递由外部实现承担。
type Dispatcher interface {
	Dispatch(ctx context.Context, notification Notification) error
}

// LogDispatcher 默认实现：仅落结构化日志
type LogDispatcher struct{}

// Dispatch 输出通知日志
func (LogDispatcher) Dispatch(_ context.Context, notification Notification) error {
	orderID := uint(0)
	orderNo := ""
	if notification.Order != nil {
		orderID = notification.Order.ID
		orderNo = notification.Order.OrderNo
	}
	logger.Infow("notification_dispatched",
		"kind", notification.Kind,
		"order_id", orderID,
		"order_no", orderNo,
	)
	return nil
}

// NotificationService 通知服务
type NotificationService struct {
	orderRepo  repository.OrderRepository
	dispatcher Dispatcher
}

// NewNotificationService 创建通知服务
func NewNotificationService(orderRepo repository.OrderRepository, dispatcher Dispatcher) *NotificationService {
	if dispatcher == nil {
		dispatcher = LogDispatcher{}
	}
	return &NotificationService{
		orderRepo:  orderRepo,
		dispatcher: dispatcher,
	}
}

// Dispatch 分发一条订单通知，客户侧通知成功后记录发送时间
func (s *NotificationService) Dispatch(ctx context.Context, orderID uint, kind, message string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}

	if err := s.dispatcher.Dispatch(ctx, Notification{
		Kind:    kind,
		Order:   order,
		Message: message,
	}); err != nil {
		logger.Errorw("notification_dispatch_failed", "error", err, "order_id", orderID, "kind", kind)
		return err
	}

	if isCustomerNotification(kind) {
		if err := s.orderRepo.UpdateFields(order.ID, map[string]interface{}{
			"notified_at": time.Now(),
		}); err != nil {
			logger.Warnw("notification_stamp_failed", "error", err, "order_id", orderID)
		}
	}
	return nil
}

func isCustomerNotification(kind string) bool {
	switch kind {
	case constants.NotifyOrderCompleted, constants.NotifyOrderCancelled, constants.NotifyCustomMessage:
		return true
	default:
		return false
	}
}
