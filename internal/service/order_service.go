package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/payment"
	"github.com/pixelmart/internal/queue"
	"github.com/pixelmart/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderService 订单服务
type OrderService struct {
	orderRepo       repository.OrderRepository
	productRepo     repository.ProductRepository
	grantRepo       repository.DownloadGrantRepository
	discountService *DiscountService
	provider        payment.Provider
	queueClient     *queue.Client
	currency        string
	expireMinutes   int
	maxItems        int
}

// NewOrderService 创建订单服务
func NewOrderService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository, grantRepo repository.DownloadGrantRepository, discountService *DiscountService, provider payment.Provider, queueClient *queue.Client, currency string, expireMinutes int, maxItems int) *OrderService {
	if strings.TrimSpace(currency) == "" {
		currency = constants.SiteCurrencyDefault
	}
	return &OrderService{
		orderRepo:       orderRepo,
		productRepo:     productRepo,
		grantRepo:       grantRepo,
		discountService: discountService,
		provider:        provider,
		queueClient:     queueClient,
		currency:        currency,
		expireMinutes:   expireMinutes,
		maxItems:        maxItems,
	}
}

// CreateOrderInput 创建订单输入
type CreateOrderInput struct {
	UserID        uint
	CustomerEmail string
	CustomerName  string
	CheckoutToken string
	Items         []CreateOrderItem
	DiscountCode  string
	ClientIP      string
}

// CreateOrderItem 创建订单项输入
type CreateOrderItem struct {
	ProductID     uint
	Quantity      int
	Customization models.JSON
}

// CreateOrder 创建订单。携带相同 CheckoutToken 的重复提交返回已存在的订单。
func (s *OrderService) CreateOrder(input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, ErrOrderItemsEmpty
	}
	if s.maxItems > 0 && len(input.Items) > s.maxItems {
		return nil, ErrInvalidOrderItem
	}
	email, err := normalizeCustomerEmail(input.CustomerEmail)
	if err != nil {
		return nil, err
	}

	token := strings.TrimSpace(input.CheckoutToken)
	if token != "" {
		existing, err := s.orderRepo.GetByCheckoutToken(token)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	} else {
		token = uuid.NewString()
	}

	items, subtotal, err := s.buildItems(input.Items)
	if err != nil {
		return nil, err
	}

	discountAmount := models.NewMoneyFromDecimal(decimal.Zero)
	var discountCodeID *uint
	code := strings.TrimSpace(input.DiscountCode)
	if code != "" {
		result, err := s.discountService.Validate(code, input.UserID, subtotal)
		if err != nil {
			return nil, err
		}
		discountAmount = result.Amount
		discountCodeID = &result.Code.ID

		lineTotals := make([]models.Money, len(items))
		for i := range items {
			lineTotals[i] = items[i].TotalPrice
		}
		shares := s.discountService.AllocateShares(lineTotals, result.Amount)
		for i := range items {
			applyItemDiscount(&items[i], result.Code.Code, shares[i])
		}
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(s.resolveExpireMinutes()) * time.Minute)
	order := &models.Order{
		OrderUUID:      uuid.NewString(),
		CheckoutToken:  token,
		UserID:         input.UserID,
		CustomerEmail:  email,
		CustomerName:   strings.TrimSpace(input.CustomerName),
		Status:         constants.OrderStatusPending,
		PaymentStatus:  constants.PaymentStatusPending,
		Currency:       s.currency,
		DiscountCodeID: discountCodeID,
		ExpiresAt:      &expiresAt,
		ClientIP:       strings.TrimSpace(input.ClientIP),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	order.Items = items
	RecomputeTotals(order)
	if !order.Subtotal.Decimal.Equal(subtotal.Decimal) || !order.DiscountAmount.Decimal.Equal(discountAmount.Decimal) {
		return nil, ErrInvalidOrderAmount
	}
	order.CustomizationNeeded = hasCustomizableItem(items)

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		// 并发重复提交由唯一索引兜底，先做一次事务内复查。
		existing, err := orderRepo.GetByCheckoutToken(token)
		if err != nil {
			return err
		}
		if existing != nil {
			*order = *existing
			return nil
		}

		orderNo, err := nextOrderNo(orderRepo, now)
		if err != nil {
			return err
		}
		order.OrderNo = orderNo

		created := make([]models.OrderItem, len(items))
		copy(created, items)
		order.Items = nil
		if err := orderRepo.Create(order, created); err != nil {
			return err
		}
		return appendHistory(orderRepo, order.ID, order.Status, "order created", constants.ActorCustomer, now)
	})
	if err != nil {
		logger.Errorw("order_create_failed", "error", err, "user_id", input.UserID)
		return nil, err
	}

	if order.TotalAmount.Decimal.GreaterThan(decimal.Zero) {
		delay := time.Until(expiresAt)
		if err := s.queueClient.EnqueueOrderTimeoutCancel(queue.OrderTimeoutCancelPayload{OrderID: order.ID}, delay); err != nil {
			logger.Warnw("order_timeout_task_enqueue_failed", "error", err, "order_id", order.ID)
		}
	}

	logger.Infow("order_created",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"user_id", order.UserID,
		"total_amount", order.TotalAmount,
	)
	return order, nil
}

// buildItems 从商品快照构建订单项并计算原价小计
func (s *OrderService) buildItems(inputs []CreateOrderItem) ([]models.OrderItem, models.Money, error) {
	ids := make([]uint, 0, len(inputs))
	for _, in := range inputs {
		if in.ProductID == 0 || in.Quantity <= 0 {
			return nil, models.Money{}, ErrInvalidOrderItem
		}
		ids = append(ids, in.ProductID)
	}
	products, err := s.productRepo.ListByIDs(ids)
	if err != nil {
		return nil, models.Money{}, err
	}
	index := make(map[uint]models.Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}

	items := make([]models.OrderItem, 0, len(inputs))
	subtotal := decimal.Zero
	for _, in := range inputs {
		product, ok := index[in.ProductID]
		if !ok {
			return nil, models.Money{}, ErrProductNotFound
		}
		if !product.IsActive {
			return nil, models.Money{}, ErrProductNotAvailable
		}
		lineTotal := product.PriceAmount.Decimal.Mul(decimal.NewFromInt(int64(in.Quantity)))
		item := models.OrderItem{
			ProductID:            product.ID,
			ProductName:          product.Name,
			ProductSlug:          product.Slug,
			Quantity:             in.Quantity,
			UnitPrice:            product.PriceAmount,
			FinalUnitPrice:       product.PriceAmount,
			TotalPrice:           models.NewMoneyFromDecimal(lineTotal),
			CustomizationEnabled: product.CustomizationEnabled,
			CustomizationJSON:    in.Customization,
		}
		item.IsCustomized = hasTrueCustomization(in.Customization)
		items = append(items, item)
		subtotal = subtotal.Add(lineTotal)
	}
	return items, models.NewMoneyFromDecimal(subtotal), nil
}

// applyItemDiscount 把折扣份额落到订单项上
func applyItemDiscount(item *models.OrderItem, code string, share models.Money) {
	item.DiscountCode = code
	item.DiscountShare = share
	final := item.TotalPrice.Decimal.Sub(share.Decimal)
	if final.LessThan(decimal.Zero) {
		final = decimal.Zero
	}
	item.TotalPrice = models.NewMoneyFromDecimal(final)
	if item.Quantity > 0 {
		item.FinalUnitPrice = models.NewMoneyFromDecimal(final.Div(decimal.NewFromInt(int64(item.Quantity))).Round(2))
	}
}

// RecomputeTotals 由订单项重算三个聚合金额。
// 聚合字段是订单项的纯函数缓存，任何订单项变更后都必须调用。
func RecomputeTotals(order *models.Order) {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, item := range order.Items {
		subtotal = subtotal.Add(item.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity))))
		discount = discount.Add(item.DiscountShare.Decimal)
	}
	total := subtotal.Sub(discount)
	if total.LessThan(decimal.Zero) {
		total = decimal.Zero
	}
	order.Subtotal = models.NewMoneyFromDecimal(subtotal)
	order.DiscountAmount = models.NewMoneyFromDecimal(discount)
	order.TotalAmount = models.NewMoneyFromDecimal(total)
}

// nextOrderNo 生成年度内递增的订单号，必须在创建事务内调用。
func nextOrderNo(orderRepo repository.OrderRepository, now time.Time) (string, error) {
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	yearEnd := yearStart.AddDate(1, 0, 0)
	count, err := orderRepo.CountCreatedInRange(yearStart, yearEnd)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%06d", now.Year(), count+1), nil
}

// hasCustomizableItem 判断是否存在开启定制的订单项
func hasCustomizableItem(items []models.OrderItem) bool {
	for _, item := range items {
		if item.CustomizationEnabled {
			return true
		}
	}
	return false
}

// hasTrueCustomization 判断定制载荷是否包含需要人工处理的数据。
// 仅选择预置配色不算真定制。
func hasTrueCustomization(payload models.JSON) bool {
	if len(payload) == 0 {
		return false
	}
	if texts, ok := payload["texts"].(map[string]interface{}); ok {
		for _, v := range texts {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return true
			}
		}
	}
	if uploads, ok := payload["uploads"].([]interface{}); ok && len(uploads) > 0 {
		return true
	}
	if notes, ok := payload["notes"].(string); ok && strings.TrimSpace(notes) != "" {
		return true
	}
	return false
}

func normalizeCustomerEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", ErrInvalidOrderItem
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", ErrInvalidOrderItem
	}
	return trimmed, nil
}

func (s *OrderService) resolveExpireMinutes() int {
	if s.expireMinutes > 0 {
		return s.expireMinutes
	}
	return 15
}

// GetOrder 获取订单详情，惰性同步支付超时状态
func (s *OrderService) GetOrder(id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.syncExpired(order)
}

// GetOrderByNo 按订单号获取订单详情
func (s *OrderService) GetOrderByNo(orderNo string) (*models.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(strings.TrimSpace(orderNo))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.syncExpired(order)
}

// GetOwnedOrder 获取用户自己的订单详情
func (s *OrderService) GetOwnedOrder(id uint, userID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndUser(id, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.syncExpired(order)
}

// GetOrderHistory 获取订单状态历史
func (s *OrderService) GetOrderHistory(orderID uint) ([]models.OrderHistory, error) {
	return s.orderRepo.ListHistory(orderID)
}

// ListUserOrders 获取用户订单列表
func (s *OrderService) ListUserOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListByUser(filter)
}

// ListAdminOrders 管理端订单列表
func (s *OrderService) ListAdminOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListAdmin(filter)
}

// syncExpired 读取路径上的超时兜底：支付窗口已过的待支付订单直接取消。
func (s *OrderService) syncExpired(order *models.Order) (*models.Order, error) {
	if order.Status != constants.OrderStatusPending ||
		order.PaymentStatus != constants.PaymentStatusPending ||
		order.ExpiresAt == nil || time.Now().Before(*order.ExpiresAt) {
		return order, nil
	}
	if err := s.cancelUnpaid(order.ID, constants.ActorSystem, "payment window expired"); err != nil {
		if err == ErrOrderCancelNotAllowed {
			return s.reload(order.ID)
		}
		return nil, err
	}
	return s.reload(order.ID)
}

func (s *OrderService) reload(id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Cancel 取消订单。已支付订单先请求退款，退款失败时仍取消但标记人工对账。
func (s *OrderService) Cancel(orderID uint, actor, note string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.IsTerminal() || !isTransitionAllowed(order.Status, constants.OrderStatusCancelled) {
		return ErrOrderCancelNotAllowed
	}

	if order.PaymentStatus != constants.PaymentStatusPaid {
		return s.cancelUnpaid(orderID, actor, note)
	}
	return s.cancelPaid(order, actor, note)
}

// CancelByUser 用户侧取消，仅限本人的未支付订单。
func (s *OrderService) CancelByUser(orderID, userID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.IsTerminal() || order.PaymentStatus == constants.PaymentStatusPaid || order.PaymentStatus == constants.PaymentStatusFree {
		return nil, ErrOrderCancelNotAllowed
	}
	if err := s.cancelUnpaid(orderID, constants.ActorCustomer, "cancelled by customer"); err != nil {
		return nil, err
	}
	return s.reload(orderID)
}

func (s *OrderService) cancelUnpaid(orderID uint, actor, note string) error {
	now := time.Now()
	return models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByID(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.IsTerminal() || order.PaymentStatus == constants.PaymentStatusPaid {
			return ErrOrderCancelNotAllowed
		}
		updates := map[string]interface{}{
			"canceled_at": now,
			"updated_at":  now,
		}
		if err := orderRepo.UpdateStatus(order.ID, constants.OrderStatusCancelled, updates); err != nil {
			return err
		}
		return appendHistory(orderRepo, order.ID, constants.OrderStatusCancelled, note, actor, now)
	})
}

// cancelPaid 退款在事务外发起，不跨网关往返持有数据库事务。
func (s *OrderService) cancelPaid(order *models.Order, actor, note string) error {
	refunded := false
	if s.provider == nil {
		logger.Warnw("order_cancel_refund_skipped", "order_id", order.ID, "reason", "provider_not_configured")
	} else {
		_, err := s.provider.Refund(context.Background(), payment.RefundInput{
			TxnID:    order.PaymentTxnID,
			OrderNo:  order.OrderNo,
			Amount:   order.TotalAmount.Decimal.StringFixed(2),
			Currency: order.Currency,
			Reason:   note,
		})
		if err != nil {
			logger.Errorw("order_cancel_refund_failed", "error", err, "order_id", order.ID)
		} else {
			refunded = true
		}
	}

	now := time.Now()
	return models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		grantRepo := s.grantRepo.WithTx(tx)

		current, err := orderRepo.GetByID(order.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrOrderNotFound
		}
		if current.IsTerminal() {
			return ErrOrderCancelNotAllowed
		}

		updates := map[string]interface{}{
			"canceled_at": now,
			"updated_at":  now,
		}
		historyNote := note
		if refunded {
			updates["payment_status"] = constants.PaymentStatusRefunded
		} else {
			updates["needs_reconciliation"] = true
			historyNote = strings.TrimSpace(note + " (refund failed, needs reconciliation)")
		}
		if err := orderRepo.UpdateStatus(current.ID, constants.OrderStatusCancelled, updates); err != nil {
			return err
		}
		if err := grantRepo.DeactivateByOrder(current.ID); err != nil {
			return err
		}
		return appendHistory(orderRepo, current.ID, constants.OrderStatusCancelled, historyNote, actor, now)
	})
}

// Refund 管理端对已支付订单发起退款。
// 网关退款失败时直接返回 ErrRefundFailed，由管理员重试；
// 成功后释放优惠码占用并停用全部下载授权。
func (s *OrderService) Refund(orderID uint, actor, note string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == constants.OrderStatusRefunded {
		return order, nil
	}
	if order.PaymentStatus != constants.PaymentStatusPaid || !isTransitionAllowed(order.Status, constants.OrderStatusRefunded) {
		return nil, ErrOrderStatusInvalid
	}
	if s.provider == nil {
		return nil, ErrProviderNotConfigured
	}

	// 退款在事务外发起，不跨网关往返持有数据库事务。
	if _, err := s.provider.Refund(context.Background(), payment.RefundInput{
		TxnID:    order.PaymentTxnID,
		OrderNo:  order.OrderNo,
		Amount:   order.TotalAmount.Decimal.StringFixed(2),
		Currency: order.Currency,
		Reason:   note,
	}); err != nil {
		logger.Errorw("order_refund_gateway_failed", "error", err, "order_id", order.ID)
		return nil, ErrRefundFailed
	}

	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		grantRepo := s.grantRepo.WithTx(tx)

		current, err := orderRepo.GetByID(order.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrOrderNotFound
		}
		if current.Status == constants.OrderStatusRefunded {
			return nil
		}
		if current.PaymentStatus != constants.PaymentStatusPaid || !isTransitionAllowed(current.Status, constants.OrderStatusRefunded) {
			return ErrOrderStatusInvalid
		}
		updates := map[string]interface{}{
			"payment_status": constants.PaymentStatusRefunded,
			"updated_at":     now,
		}
		if err := orderRepo.UpdateStatus(current.ID, constants.OrderStatusRefunded, updates); err != nil {
			return err
		}
		if err := grantRepo.DeactivateByOrder(current.ID); err != nil {
			return err
		}
		if err := s.discountService.ReleaseRedemption(tx, current.ID); err != nil {
			return err
		}
		return appendHistory(orderRepo, current.ID, constants.OrderStatusRefunded, note, actor, now)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(orderID)
}

// UpdateStatus 管理端状态流转，非法流转返回 ErrOrderStatusInvalid
func (s *OrderService) UpdateStatus(orderID uint, target, note, actor string) (*models.Order, error) {
	target = strings.TrimSpace(target)
	now := time.Now()
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByID(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status == target {
			return nil
		}
		if !isTransitionAllowed(order.Status, target) {
			return ErrOrderStatusInvalid
		}
		updates := map[string]interface{}{"updated_at": now}
		if target == constants.OrderStatusCancelled {
			updates["canceled_at"] = now
		}
		if err := orderRepo.UpdateStatus(order.ID, target, updates); err != nil {
			return err
		}
		return appendHistory(orderRepo, order.ID, target, note, actor, now)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(orderID)
}

// MarkCompleted 将处理中的订单标记为完成并触发客户通知
func (s *OrderService) MarkCompleted(orderID uint, actor, note string, downloadExpireDays int) (*models.Order, error) {
	now := time.Now()
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByID(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status == constants.OrderStatusCompleted {
			return nil
		}
		if !isTransitionAllowed(order.Status, constants.OrderStatusCompleted) {
			return ErrOrderStatusInvalid
		}
		updates := map[string]interface{}{"updated_at": now}
		if downloadExpireDays > 0 {
			expires := now.AddDate(0, 0, downloadExpireDays)
			updates["download_expires_at"] = expires
		}
		if err := orderRepo.UpdateStatus(order.ID, constants.OrderStatusCompleted, updates); err != nil {
			return err
		}
		return appendHistory(orderRepo, order.ID, constants.OrderStatusCompleted, note, actor, now)
	})
	if err != nil {
		return nil, err
	}

	if err := s.queueClient.EnqueueNotificationDispatch(queue.NotificationDispatchPayload{
		OrderID: orderID,
		Kind:    constants.NotifyOrderCompleted,
	}); err != nil {
		logger.Warnw("order_completed_notify_enqueue_failed", "error", err, "order_id", orderID)
	}
	return s.reload(orderID)
}

// CancelExpiredOrder 取消一笔支付超时的待支付订单。
// 仅针对未支付订单生效，已支付或已终态订单返回 ErrOrderCancelNotAllowed。
func (s *OrderService) CancelExpiredOrder(orderID uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPending || order.PaymentStatus == constants.PaymentStatusPaid || order.PaymentStatus == constants.PaymentStatusFree {
		return ErrOrderCancelNotAllowed
	}
	if order.ExpiresAt != nil && time.Now().Before(*order.ExpiresAt) {
		return ErrOrderCancelNotAllowed
	}
	return s.cancelUnpaid(orderID, constants.ActorSystem, "payment window expired")
}

// CancelExpired 批量取消支付超时订单，返回实际取消数量
func (s *OrderService) CancelExpired(now time.Time, limit int) (int, error) {
	ids, err := s.orderRepo.ListExpiredPendingIDs(now, limit)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for _, id := range ids {
		if err := s.cancelUnpaid(id, constants.ActorSystem, "payment window expired"); err != nil {
			if err == ErrOrderCancelNotAllowed {
				continue
			}
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}
