package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/payment"
	"github.com/pixelmart/internal/queue"
	"github.com/pixelmart/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// errAlreadyCaptured 事务内发现订单已支付时用于回滚记账，外层按幂等成功处理。
var errAlreadyCaptured = errors.New("order already captured")

// PaymentService 支付协调服务
type PaymentService struct {
	orderRepo       repository.OrderRepository
	discountService *DiscountService
	provider        payment.Provider
	queueClient     *queue.Client
}

// NewPaymentService 创建支付协调服务
func NewPaymentService(orderRepo repository.OrderRepository, discountService *DiscountService, provider payment.Provider, queueClient *queue.Client) *PaymentService {
	return &PaymentService{
		orderRepo:       orderRepo,
		discountService: discountService,
		provider:        provider,
		queueClient:     queueClient,
	}
}

// CreateIntent 为待支付订单创建网关支付意向。失败时订单保持 pending 不变。
func (s *PaymentService) CreateIntent(ctx context.Context, orderID uint) (*payment.Intent, error) {
	if s.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !isPayable(order) {
		return nil, ErrOrderNotPayable
	}

	intent, err := s.provider.CreateIntent(ctx, payment.CreateIntentInput{
		OrderNo:   order.OrderNo,
		Amount:    order.TotalAmount.Decimal.StringFixed(2),
		Currency:  order.Currency,
		Subject:   fmt.Sprintf("order %s", order.OrderNo),
		ExpiresAt: order.ExpiresAt,
	})
	if err != nil {
		logger.Errorw("payment_intent_create_failed", "error", err, "order_id", order.ID)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	if err := s.orderRepo.UpdateFields(order.ID, map[string]interface{}{
		"payment_intent_id": intent.IntentID,
		"updated_at":        time.Now(),
	}); err != nil {
		return nil, err
	}

	logger.Infow("payment_intent_created", "order_id", order.ID, "intent_id", intent.IntentID)
	return intent, nil
}

// ConfirmCapture 确认网关扣款成功并推进订单状态。
// 幂等：订单已是 paid 时直接返回现有订单，不重复记账也不追加历史。
func (s *PaymentService) ConfirmCapture(ctx context.Context, orderID uint, intentID string) (*models.Order, error) {
	if s.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.PaymentStatus == constants.PaymentStatusPaid {
		return order, nil
	}
	if order.IsTerminal() {
		return nil, ErrOrderNotPayable
	}
	if order.PaymentIntentID == "" || order.PaymentIntentID != intentID {
		return nil, ErrPaymentNoIntent
	}
	if order.TotalAmount.Decimal.LessThanOrEqual(decimal.Zero) {
		return nil, ErrOrderNotPayable
	}

	capture, err := s.provider.ConfirmCapture(ctx, payment.CaptureInput{
		IntentID: intentID,
		OrderNo:  order.OrderNo,
		Amount:   order.TotalAmount.Decimal.StringFixed(2),
		Currency: order.Currency,
	})
	if err != nil {
		s.markFailed(order.ID)
		logger.Errorw("payment_capture_failed", "error", err, "order_id", order.ID)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		if order.DiscountCodeID != nil {
			if err := s.discountService.Redeem(tx, *order.DiscountCodeID, order.UserID, order.ID, order.DiscountAmount); err != nil {
				return err
			}
		}

		claimed, err := orderRepo.MarkPaid(order.ID, map[string]interface{}{
			"status":         constants.OrderStatusProcessing,
			"payment_txn_id": capture.TxnID,
			"paid_at":        now,
			"updated_at":     now,
		})
		if err != nil {
			return err
		}
		if !claimed {
			return errAlreadyCaptured
		}
		return appendHistory(orderRepo, order.ID, constants.OrderStatusProcessing, "payment captured", constants.ActorGateway, now)
	})
	if err != nil {
		if errors.Is(err, errAlreadyCaptured) {
			return s.orderRepo.GetByID(order.ID)
		}
		return nil, err
	}

	if err := s.queueClient.EnqueueNotificationDispatch(queue.NotificationDispatchPayload{
		OrderID: order.ID,
		Kind:    constants.NotifyAdminNewOrder,
	}); err != nil {
		logger.Warnw("payment_notify_enqueue_failed", "error", err, "order_id", order.ID)
	}
	if err := s.queueClient.EnqueueOrderAutoFulfill(queue.OrderAutoFulfillPayload{OrderID: order.ID}); err != nil {
		logger.Warnw("payment_auto_fulfill_enqueue_failed", "error", err, "order_id", order.ID)
	}

	logger.Infow("payment_captured", "order_id", order.ID, "txn_id", capture.TxnID)
	return s.orderRepo.GetByID(order.ID)
}

// ConfirmCaptureByOrderNo 供异步回调使用，按订单号定位订单并核对通知金额。
func (s *PaymentService) ConfirmCaptureByOrderNo(ctx context.Context, orderNo, intentID, amount string) (*models.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(strings.TrimSpace(orderNo))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	notified, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || !notified.Equal(order.TotalAmount.Decimal) {
		logger.Warnw("payment_callback_amount_mismatch",
			"order_id", order.ID,
			"expected", order.TotalAmount.Decimal.StringFixed(2),
			"notified", amount,
		)
		return nil, ErrAmountMismatch
	}
	return s.ConfirmCapture(ctx, order.ID, intentID)
}

// markFailed 扣款失败只改支付状态，订单状态留在 pending 供重试。
func (s *PaymentService) markFailed(orderID uint) {
	err := s.orderRepo.UpdateFields(orderID, map[string]interface{}{
		"payment_status": constants.PaymentStatusFailed,
		"updated_at":     time.Now(),
	})
	if err != nil {
		logger.Errorw("payment_mark_failed_error", "error", err, "order_id", orderID)
	}
}

// isPayable 判断订单是否可进入支付流程
func isPayable(order *models.Order) bool {
	if order.Status != constants.OrderStatusPending {
		return false
	}
	if order.PaymentStatus != constants.PaymentStatusPending && order.PaymentStatus != constants.PaymentStatusFailed {
		return false
	}
	return order.TotalAmount.Decimal.GreaterThan(decimal.Zero)
}
