package service

import (
	"time"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/queue"
	"github.com/pixelmart/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 免费订单的三条处理路径
const (
	FreePathAutoCompleted        = "auto_completed"
	FreePathMissingCustomization = "missing_customization"
	FreePathNeedsReview          = "needs_review"
)

// FreeOrderService 零元订单路由
type FreeOrderService struct {
	orderRepo          repository.OrderRepository
	discountService    *DiscountService
	grantService       *GrantService
	queueClient        *queue.Client
	downloadExpireDays int
}

// NewFreeOrderService 创建零元订单路由
func NewFreeOrderService(orderRepo repository.OrderRepository, discountService *DiscountService, grantService *GrantService, queueClient *queue.Client, downloadExpireDays int) *FreeOrderService {
	return &FreeOrderService{
		orderRepo:          orderRepo,
		discountService:    discountService,
		grantService:       grantService,
		queueClient:        queueClient,
		downloadExpireDays: downloadExpireDays,
	}
}

// FreeOrderResult 路由结果
type FreeOrderResult struct {
	Order         *models.Order
	Path          string
	CreatedGrants []models.DownloadGrant
	StateChanged  bool // 本次调用是否推进了订单，重放时为 false
}

// Complete 处理零元订单。按序判定三条路径：
// 1. 无定制商品：立即交付并完成；
// 2. 有定制商品但未提交定制数据：进入处理中，仍交付通用文件；
// 3. 有定制商品且提交了定制数据：留在待处理等待人工审核，不创建授权。
// 可重入：重复调用不会重复授权、重复记账或重复追加历史。
func (s *FreeOrderService) Complete(orderID uint) (*FreeOrderResult, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.TotalAmount.Decimal.GreaterThan(decimal.Zero) {
		return nil, ErrOrderNotFree
	}
	if order.Status == constants.OrderStatusCancelled || order.Status == constants.OrderStatusRefunded {
		return nil, ErrOrderStatusInvalid
	}

	path := resolveFreePath(order)
	if hasMixedCustomization(order) {
		// 整单路由无法表达部分定制的购物车，交给运营复核
		logger.Warnw("free_order_mixed_customization", "order_id", order.ID, "order_no", order.OrderNo, "path", path)
	}
	now := time.Now()
	prevStatus := order.Status
	wasFree := order.PaymentStatus == constants.PaymentStatusFree
	result := &FreeOrderResult{Path: path}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		if order.DiscountCodeID != nil {
			if err := s.discountService.RedeemOnce(tx, *order.DiscountCodeID, order.UserID, order.ID, order.DiscountAmount); err != nil {
				return err
			}
		}

		if order.PaymentStatus != constants.PaymentStatusFree {
			if err := orderRepo.UpdateFields(order.ID, map[string]interface{}{
				"payment_status": constants.PaymentStatusFree,
				"paid_at":        now,
				"updated_at":     now,
			}); err != nil {
				return err
			}
		}

		switch path {
		case FreePathAutoCompleted:
			return s.fulfillAndComplete(tx, orderRepo, order, now, result)
		case FreePathMissingCustomization:
			if err := s.advance(orderRepo, order, constants.OrderStatusProcessing, "free order accepted, customization data missing", now); err != nil {
				return err
			}
			created, err := s.grantService.GrantOrderFiles(tx, order)
			if err != nil {
				return err
			}
			result.CreatedGrants = created
			return nil
		default: // FreePathNeedsReview
			// 留在 pending，等待人工审核后再交付。
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	// 只有首次推进才发通知，重放不再重复入队。
	result.StateChanged = order.Status != prevStatus || !wasFree
	if result.StateChanged {
		s.notify(order.ID, path)
	}

	reloaded, err := s.orderRepo.GetByID(order.ID)
	if err != nil {
		return nil, err
	}
	result.Order = reloaded
	logger.Infow("free_order_routed", "order_id", order.ID, "path", path)
	return result, nil
}

// fulfillAndComplete 无定制路径：交付授权并直接完成
func (s *FreeOrderService) fulfillAndComplete(tx *gorm.DB, orderRepo repository.OrderRepository, order *models.Order, now time.Time, result *FreeOrderResult) error {
	// 已完成的订单直接补授权，保持重放安全。
	if order.Status != constants.OrderStatusCompleted {
		if err := s.advance(orderRepo, order, constants.OrderStatusProcessing, "free order accepted", now); err != nil {
			return err
		}
	}

	if s.downloadExpireDays > 0 && order.DownloadExpiresAt == nil {
		expires := now.AddDate(0, 0, s.downloadExpireDays)
		order.DownloadExpiresAt = &expires
		if err := orderRepo.UpdateFields(order.ID, map[string]interface{}{
			"download_expires_at": expires,
			"updated_at":          now,
		}); err != nil {
			return err
		}
	}

	created, err := s.grantService.GrantOrderFiles(tx, order)
	if err != nil {
		return err
	}
	result.CreatedGrants = created

	return s.advance(orderRepo, order, constants.OrderStatusCompleted, "free order auto completed", now)
}

// advance 推进订单状态，状态未变化时不追加历史
func (s *FreeOrderService) advance(orderRepo repository.OrderRepository, order *models.Order, target, note string, now time.Time) error {
	if order.Status == target {
		return nil
	}
	if !isTransitionAllowed(order.Status, target) {
		return ErrOrderStatusInvalid
	}
	if err := orderRepo.UpdateStatus(order.ID, target, map[string]interface{}{"updated_at": now}); err != nil {
		return err
	}
	if err := appendHistory(orderRepo, order.ID, target, note, constants.ActorSystem, now); err != nil {
		return err
	}
	order.Status = target
	return nil
}

func (s *FreeOrderService) notify(orderID uint, path string) {
	kinds := make([]string, 0, 2)
	switch path {
	case FreePathAutoCompleted:
		kinds = append(kinds, constants.NotifyOrderCompleted, constants.NotifyAdminNewOrder)
	case FreePathMissingCustomization:
		kinds = append(kinds, constants.NotifyFreeOrderMissingCustom)
	default:
		kinds = append(kinds, constants.NotifyFreeOrderNeedsReview)
	}
	for _, kind := range kinds {
		if err := s.queueClient.EnqueueNotificationDispatch(queue.NotificationDispatchPayload{
			OrderID: orderID,
			Kind:    kind,
		}); err != nil {
			logger.Warnw("free_order_notify_enqueue_failed", "error", err, "order_id", orderID, "kind", kind)
		}
	}
}

// resolveFreePath 判定免费订单路径，判定按整单而非单个订单项
func resolveFreePath(order *models.Order) string {
	hasCustomizable := false
	hasData := false
	for _, item := range order.Items {
		if !item.CustomizationEnabled {
			continue
		}
		hasCustomizable = true
		if item.IsCustomized {
			hasData = true
		}
	}
	switch {
	case !hasCustomizable:
		return FreePathAutoCompleted
	case !hasData:
		return FreePathMissingCustomization
	default:
		return FreePathNeedsReview
	}
}

// hasMixedCustomization 判断购物车是否混合了定制与非定制商品，
// 或定制商品之间提交数据不一致
func hasMixedCustomization(order *models.Order) bool {
	customizable := 0
	plain := 0
	withData := 0
	for _, item := range order.Items {
		if !item.CustomizationEnabled {
			plain++
			continue
		}
		customizable++
		if item.IsCustomized {
			withData++
		}
	}
	if customizable == 0 {
		return false
	}
	if plain > 0 {
		return true
	}
	return withData > 0 && withData < customizable
}
