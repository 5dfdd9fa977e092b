package service

import (
	"time"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/queue"
	"github.com/pixelmart/internal/repository"

	"gorm.io/gorm"
)

// FulfillmentService 已支付订单的交付服务
type FulfillmentService struct {
	orderRepo          repository.OrderRepository
	grantService       *GrantService
	queueClient        *queue.Client
	downloadExpireDays int
}

// NewFulfillmentService 创建交付服务
func NewFulfillmentService(orderRepo repository.OrderRepository, grantService *GrantService, queueClient *queue.Client, downloadExpireDays int) *FulfillmentService {
	return &FulfillmentService{
		orderRepo:          orderRepo,
		grantService:       grantService,
		queueClient:        queueClient,
		downloadExpireDays: downloadExpireDays,
	}
}

// AutoFulfill 支付成功后的自动交付：
// 无定制商品的订单直接授权全部文件并完成；
// 含定制商品的订单授权当前可解析的文件，留在处理中等待人工补齐。
// 可重入：授权创建跳过已存在的 (orderID, designFileID) 对。
func (s *FulfillmentService) AutoFulfill(orderID uint) ([]models.DownloadGrant, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.PaymentStatus != constants.PaymentStatusPaid {
		return nil, ErrOrderStatusInvalid
	}
	if order.Status != constants.OrderStatusProcessing && order.Status != constants.OrderStatusCompleted {
		return nil, ErrOrderStatusInvalid
	}

	autoComplete := !order.CustomizationNeeded
	now := time.Now()
	var created []models.DownloadGrant

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		if order.DownloadExpiresAt == nil && s.downloadExpireDays > 0 {
			expires := now.AddDate(0, 0, s.downloadExpireDays)
			order.DownloadExpiresAt = &expires
			if err := orderRepo.UpdateFields(order.ID, map[string]interface{}{
				"download_expires_at": expires,
				"updated_at":          now,
			}); err != nil {
				return err
			}
		}

		grants, err := s.grantService.GrantOrderFiles(tx, order)
		if err != nil {
			return err
		}
		created = grants

		if autoComplete && order.Status != constants.OrderStatusCompleted {
			if err := orderRepo.UpdateStatus(order.ID, constants.OrderStatusCompleted, map[string]interface{}{"updated_at": now}); err != nil {
				return err
			}
			return appendHistory(orderRepo, order.ID, constants.OrderStatusCompleted, "auto fulfilled", constants.ActorSystem, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if autoComplete {
		if err := s.queueClient.EnqueueNotificationDispatch(queue.NotificationDispatchPayload{
			OrderID: order.ID,
			Kind:    constants.NotifyOrderCompleted,
		}); err != nil {
			logger.Warnw("auto_fulfill_notify_enqueue_failed", "error", err, "order_id", order.ID)
		}
	}

	logger.Infow("order_auto_fulfilled",
		"order_id", order.ID,
		"grants_created", len(created),
		"auto_complete", autoComplete,
	)
	return created, nil
}
