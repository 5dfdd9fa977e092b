package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/payment"
	"github.com/pixelmart/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// fakeProvider 按调用序返回预置结果的网关替身
type fakeProvider struct {
	captureCalls int
	captureErr   error
	refundCalls  int
	refundErr    error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) CreateIntent(ctx context.Context, input payment.CreateIntentInput) (*payment.Intent, error) {
	return &payment.Intent{
		IntentID:   "intent-" + input.OrderNo,
		OrderNo:    input.OrderNo,
		Amount:     input.Amount,
		PaymentURL: "https://pay.example.com/" + input.OrderNo,
	}, nil
}

func (p *fakeProvider) ConfirmCapture(ctx context.Context, input payment.CaptureInput) (*payment.CaptureResult, error) {
	p.captureCalls++
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	return &payment.CaptureResult{TxnID: "txn-" + input.OrderNo, CapturedAt: time.Now()}, nil
}

func (p *fakeProvider) Refund(ctx context.Context, input payment.RefundInput) (*payment.RefundResult, error) {
	p.refundCalls++
	if p.refundErr != nil {
		return nil, p.refundErr
	}
	return &payment.RefundResult{RefundID: "refund-" + input.OrderNo, RefundedAt: time.Now()}, nil
}

func setupPaymentServiceTest(t *testing.T) (*PaymentService, *OrderService, *fakeProvider, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderHistory{},
		&models.DiscountCode{},
		&models.DiscountUsage{},
		&models.DownloadGrant{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	provider := &fakeProvider{}
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	grantRepo := repository.NewDownloadGrantRepository(db)
	discountSvc := NewDiscountService(repository.NewDiscountCodeRepository(db), repository.NewDiscountUsageRepository(db))
	orderSvc := NewOrderService(orderRepo, productRepo, grantRepo, discountSvc, provider, nil, "USD", 15, 20)
	paymentSvc := NewPaymentService(orderRepo, discountSvc, provider, nil)
	return paymentSvc, orderSvc, provider, db
}

func createPayableOrder(t *testing.T, orderSvc *OrderService, db *gorm.DB, discountCode string) *models.Order {
	t.Helper()
	product := models.Product{
		Slug:        fmt.Sprintf("asset-%d", time.Now().UnixNano()),
		Name:        "asset",
		PriceAmount: money(40),
		IsActive:    true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	order, err := orderSvc.CreateOrder(CreateOrderInput{
		UserID:        1,
		CustomerEmail: "buyer@example.com",
		DiscountCode:  discountCode,
		Items:         []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func TestCreateIntentStoresIntentID(t *testing.T) {
	paymentSvc, orderSvc, _, db := setupPaymentServiceTest(t)
	order := createPayableOrder(t, orderSvc, db, "")

	intent, err := paymentSvc.CreateIntent(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if intent.IntentID == "" || intent.PaymentURL == "" {
		t.Fatalf("unexpected intent: %+v", intent)
	}

	reloaded, err := orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.PaymentIntentID != intent.IntentID {
		t.Fatalf("expected intent id persisted, got %q", reloaded.PaymentIntentID)
	}
	if reloaded.Status != constants.OrderStatusPending {
		t.Fatalf("intent creation must not advance order, got %s", reloaded.Status)
	}
}

func TestConfirmCaptureAdvancesOrder(t *testing.T) {
	paymentSvc, orderSvc, _, db := setupPaymentServiceTest(t)
	order := createPayableOrder(t, orderSvc, db, "")

	intent, err := paymentSvc.CreateIntent(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	captured, err := paymentSvc.ConfirmCapture(context.Background(), order.ID, intent.IntentID)
	if err != nil {
		t.Fatalf("confirm capture failed: %v", err)
	}
	if captured.Status != constants.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", captured.Status)
	}
	if captured.PaymentStatus != constants.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", captured.PaymentStatus)
	}
	if captured.PaymentTxnID == "" || captured.PaidAt == nil {
		t.Fatalf("expected txn id and paid_at, got %+v", captured)
	}
}

func TestConfirmCaptureIdempotent(t *testing.T) {
	paymentSvc, orderSvc, provider, db := setupPaymentServiceTest(t)
	order := createPayableOrder(t, orderSvc, db, "")

	intent, err := paymentSvc.CreateIntent(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if _, err := paymentSvc.ConfirmCapture(context.Background(), order.ID, intent.IntentID); err != nil {
		t.Fatalf("first capture failed: %v", err)
	}
	if _, err := paymentSvc.ConfirmCapture(context.Background(), order.ID, intent.IntentID); err != nil {
		t.Fatalf("replayed capture failed: %v", err)
	}

	if provider.captureCalls != 1 {
		t.Fatalf("expected single gateway capture call, got %d", provider.captureCalls)
	}
	history, err := orderSvc.GetOrderHistory(order.ID)
	if err != nil {
		t.Fatalf("get history failed: %v", err)
	}
	captureEntries := 0
	for _, entry := range history {
		if entry.Actor == constants.ActorGateway {
			captureEntries++
		}
	}
	if captureEntries != 1 {
		t.Fatalf("expected single capture history entry, got %d", captureEntries)
	}
}

func TestConfirmCaptureRejectsUnknownIntent(t *testing.T) {
	paymentSvc, orderSvc, _, db := setupPaymentServiceTest(t)
	order := createPayableOrder(t, orderSvc, db, "")

	if _, err := paymentSvc.ConfirmCapture(context.Background(), order.ID, "intent-unknown"); !errors.Is(err, ErrPaymentNoIntent) {
		t.Fatalf("expected ErrPaymentNoIntent, got %v", err)
	}
}

func TestConfirmCaptureGatewayFailureKeepsOrderPayable(t *testing.T) {
	paymentSvc, orderSvc, provider, db := setupPaymentServiceTest(t)
	order := createPayableOrder(t, orderSvc, db, "")

	intent, err := paymentSvc.CreateIntent(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	provider.captureErr = errors.New("gateway timeout")
	if _, err := paymentSvc.ConfirmCapture(context.Background(), order.ID, intent.IntentID); !errors.Is(err, ErrPaymentGateway) {
		t.Fatalf("expected ErrPaymentGateway, got %v", err)
	}

	reloaded, err := orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Status != constants.OrderStatusPending {
		t.Fatalf("failed capture must keep order pending, got %s", reloaded.Status)
	}
	if reloaded.PaymentStatus != constants.PaymentStatusFailed {
		t.Fatalf("expected payment status failed, got %s", reloaded.PaymentStatus)
	}

	// 失败后恢复，重试应成功
	provider.captureErr = nil
	captured, err := paymentSvc.ConfirmCapture(context.Background(), order.ID, intent.IntentID)
	if err != nil {
		t.Fatalf("retry capture failed: %v", err)
	}
	if captured.PaymentStatus != constants.PaymentStatusPaid {
		t.Fatalf("expected paid after retry, got %s", captured.PaymentStatus)
	}
}

func TestConfirmCaptureRedeemsDiscount(t *testing.T) {
	paymentSvc, orderSvc, _, db := setupPaymentServiceTest(t)
	code := models.DiscountCode{
		Code:       "PAYOFF",
		Type:       constants.DiscountTypeFixed,
		Value:      money(5),
		UsageLimit: 10,
		IsActive:   true,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}
	order := createPayableOrder(t, orderSvc, db, "PAYOFF")

	intent, err := paymentSvc.CreateIntent(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if _, err := paymentSvc.ConfirmCapture(context.Background(), order.ID, intent.IntentID); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	var reloaded models.DiscountCode
	if err := db.First(&reloaded, code.ID).Error; err != nil {
		t.Fatalf("reload code failed: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("expected used_count 1 after capture, got %d", reloaded.UsedCount)
	}
}

func TestConfirmCaptureByOrderNoAmountMismatch(t *testing.T) {
	paymentSvc, orderSvc, _, db := setupPaymentServiceTest(t)
	order := createPayableOrder(t, orderSvc, db, "")

	intent, err := paymentSvc.CreateIntent(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if _, err := paymentSvc.ConfirmCaptureByOrderNo(context.Background(), order.OrderNo, intent.IntentID, "1.00"); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	if _, err := paymentSvc.ConfirmCaptureByOrderNo(context.Background(), "2099-000001", intent.IntentID, "40.00"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	captured, err := paymentSvc.ConfirmCaptureByOrderNo(context.Background(), order.OrderNo, intent.IntentID, "40.00")
	if err != nil {
		t.Fatalf("callback capture failed: %v", err)
	}
	if captured.PaymentStatus != constants.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", captured.PaymentStatus)
	}
}

func TestRefundReleasesDiscountAndGrants(t *testing.T) {
	paymentSvc, orderSvc, provider, db := setupPaymentServiceTest(t)
	code := models.DiscountCode{
		Code:       "GIVEBACK",
		Type:       constants.DiscountTypeFixed,
		Value:      money(5),
		UsageLimit: 10,
		IsActive:   true,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}
	order := createPayableOrder(t, orderSvc, db, "GIVEBACK")

	intent, err := paymentSvc.CreateIntent(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if _, err := paymentSvc.ConfirmCapture(context.Background(), order.ID, intent.IntentID); err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	grant := models.DownloadGrant{OrderID: order.ID, DesignFileID: 1, IsActive: true}
	if err := db.Create(&grant).Error; err != nil {
		t.Fatalf("create grant failed: %v", err)
	}

	refunded, err := orderSvc.Refund(order.ID, constants.ActorAdmin, "customer request")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.Status != constants.OrderStatusRefunded || refunded.PaymentStatus != constants.PaymentStatusRefunded {
		t.Fatalf("unexpected refund state: %s/%s", refunded.Status, refunded.PaymentStatus)
	}
	if provider.refundCalls != 1 {
		t.Fatalf("expected single gateway refund call, got %d", provider.refundCalls)
	}

	var reloadedCode models.DiscountCode
	if err := db.First(&reloadedCode, code.ID).Error; err != nil {
		t.Fatalf("reload code failed: %v", err)
	}
	if reloadedCode.UsedCount != 0 {
		t.Fatalf("expected discount quota released, got %d", reloadedCode.UsedCount)
	}
	var reloadedGrant models.DownloadGrant
	if err := db.First(&reloadedGrant, grant.ID).Error; err != nil {
		t.Fatalf("reload grant failed: %v", err)
	}
	if reloadedGrant.IsActive {
		t.Fatalf("expected grant deactivated after refund")
	}

	// 重复退款应幂等返回，不再请求网关
	again, err := orderSvc.Refund(order.ID, constants.ActorAdmin, "replay")
	if err != nil {
		t.Fatalf("replayed refund failed: %v", err)
	}
	if again.Status != constants.OrderStatusRefunded {
		t.Fatalf("expected refunded, got %s", again.Status)
	}
	if provider.refundCalls != 1 {
		t.Fatalf("expected no extra gateway call, got %d", provider.refundCalls)
	}
}

func TestRefundGatewayFailure(t *testing.T) {
	paymentSvc, orderSvc, provider, db := setupPaymentServiceTest(t)
	order := createPayableOrder(t, orderSvc, db, "")

	intent, err := paymentSvc.CreateIntent(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if _, err := paymentSvc.ConfirmCapture(context.Background(), order.ID, intent.IntentID); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	provider.refundErr = errors.New("gateway down")
	if _, err := orderSvc.Refund(order.ID, constants.ActorAdmin, "customer request"); !errors.Is(err, ErrRefundFailed) {
		t.Fatalf("expected ErrRefundFailed, got %v", err)
	}

	reloaded, err := orderSvc.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.PaymentStatus != constants.PaymentStatusPaid {
		t.Fatalf("failed refund must keep order paid, got %s", reloaded.PaymentStatus)
	}
}
