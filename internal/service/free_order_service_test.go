package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupFreeOrderServiceTest(t *testing.T) (*FreeOrderService, *OrderService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:free_order_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.DesignFile{},
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

	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	grantRepo := repository.NewDownloadGrantRepository(db)
	fileRepo := repository.NewDesignFileRepository(db)
	discountSvc := NewDiscountService(repository.NewDiscountCodeRepository(db), repository.NewDiscountUsageRepository(db))
	grantSvc := NewGrantService(grantRepo, fileRepo)
	orderSvc := NewOrderService(orderRepo, productRepo, grantRepo, discountSvc, nil, nil, "USD", 15, 20)
	freeSvc := NewFreeOrderService(orderRepo, discountSvc, grantSvc, nil, 30)
	return freeSvc, orderSvc, db
}

func createFreeProduct(t *testing.T, db *gorm.DB, slug string, customizable bool, files ...models.DesignFile) models.Product {
	t.Helper()
	product := models.Product{
		Slug:                 slug,
		Name:                 slug,
		PriceAmount:          money(0),
		CustomizationEnabled: customizable,
		IsActive:             true,
		DesignFiles:          files,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func TestFreeOrderAutoCompleted(t *testing.T) {
	freeSvc, orderSvc, db := setupFreeOrderServiceTest(t)
	product := createFreeProduct(t, db, "free-icons", false,
		models.DesignFile{Name: "icons.zip", FilePath: "designs/icons.zip", IsActive: true},
		models.DesignFile{Name: "readme.pdf", FilePath: "designs/readme.pdf", IsActive: true},
	)
	order, err := orderSvc.CreateOrder(CreateOrderInput{
		UserID:        1,
		CustomerEmail: "buyer@example.com",
		Items:         []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	result, err := freeSvc.Complete(order.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if result.Path != FreePathAutoCompleted {
		t.Fatalf("expected auto_completed path, got %s", result.Path)
	}
	if result.Order.Status != constants.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", result.Order.Status)
	}
	if result.Order.PaymentStatus != constants.PaymentStatusFree {
		t.Fatalf("expected free payment status, got %s", result.Order.PaymentStatus)
	}
	if len(result.CreatedGrants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(result.CreatedGrants))
	}
	if result.Order.DownloadExpiresAt == nil {
		t.Fatalf("expected download expiry to be set")
	}
}

func TestFreeOrderMissingCustomization(t *testing.T) {
	freeSvc, orderSvc, db := setupFreeOrderServiceTest(t)
	product := createFreeProduct(t, db, "free-logo", true,
		models.DesignFile{Name: "base.zip", FilePath: "designs/base.zip", IsActive: true},
	)
	order, err := orderSvc.CreateOrder(CreateOrderInput{
		UserID:        1,
		CustomerEmail: "buyer@example.com",
		Items:         []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	result, err := freeSvc.Complete(order.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if result.Path != FreePathMissingCustomization {
		t.Fatalf("expected missing_customization path, got %s", result.Path)
	}
	if result.Order.Status != constants.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", result.Order.Status)
	}
	// 仍交付通用文件
	if len(result.CreatedGrants) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(result.CreatedGrants))
	}
}

func TestFreeOrderNeedsReview(t *testing.T) {
	freeSvc, orderSvc, db := setupFreeOrderServiceTest(t)
	product := createFreeProduct(t, db, "free-custom", true,
		models.DesignFile{Name: "base.zip", FilePath: "designs/base.zip", IsActive: true},
	)
	order, err := orderSvc.CreateOrder(CreateOrderInput{
		UserID:        1,
		CustomerEmail: "buyer@example.com",
		Items: []CreateOrderItem{{
			ProductID:     product.ID,
			Quantity:      1,
			Customization: models.JSON{"texts": map[string]interface{}{"front": "My Studio"}},
		}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	result, err := freeSvc.Complete(order.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if result.Path != FreePathNeedsReview {
		t.Fatalf("expected needs_review path, got %s", result.Path)
	}
	if result.Order.Status != constants.OrderStatusPending {
		t.Fatalf("expected order held at pending, got %s", result.Order.Status)
	}
	if result.Order.PaymentStatus != constants.PaymentStatusFree {
		t.Fatalf("expected free payment status, got %s", result.Order.PaymentStatus)
	}
	if len(result.CreatedGrants) != 0 {
		t.Fatalf("expected no grants before review, got %d", len(result.CreatedGrants))
	}
}

func TestFreeOrderCompleteReentrant(t *testing.T) {
	freeSvc, orderSvc, db := setupFreeOrderServiceTest(t)
	product := createFreeProduct(t, db, "free-icons", false,
		models.DesignFile{Name: "icons.zip", FilePath: "designs/icons.zip", IsActive: true},
	)
	order, err := orderSvc.CreateOrder(CreateOrderInput{
		UserID:        1,
		CustomerEmail: "buyer@example.com",
		Items:         []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	first, err := freeSvc.Complete(order.ID)
	if err != nil {
		t.Fatalf("first complete failed: %v", err)
	}
	if !first.StateChanged {
		t.Fatalf("first complete must report a state change")
	}
	second, err := freeSvc.Complete(order.ID)
	if err != nil {
		t.Fatalf("replayed complete failed: %v", err)
	}
	if len(second.CreatedGrants) != 0 {
		t.Fatalf("replay must not create new grants, got %d", len(second.CreatedGrants))
	}
	if second.StateChanged {
		t.Fatalf("replay must not report a state change or re-send notifications")
	}

	var grantCount int64
	db.Model(&models.DownloadGrant{}).Where("order_id = ?", order.ID).Count(&grantCount)
	if grantCount != 1 {
		t.Fatalf("expected 1 grant after replay, got %d", grantCount)
	}
	var historyCount int64
	db.Model(&models.OrderHistory{}).Where("order_id = ?", order.ID).Count(&historyCount)
	// 创建 + processing + completed，重放不追加
	if historyCount != 3 {
		t.Fatalf("expected 3 history entries, got %d", historyCount)
	}
}

func TestFreeOrderRejectsPaidAmount(t *testing.T) {
	freeSvc, orderSvc, db := setupFreeOrderServiceTest(t)
	product := models.Product{Slug: "paid-asset", Name: "paid-asset", PriceAmount: money(10), IsActive: true}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	order, err := orderSvc.CreateOrder(CreateOrderInput{
		UserID:        1,
		CustomerEmail: "buyer@example.com",
		Items:         []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if _, err := freeSvc.Complete(order.ID); !errors.Is(err, ErrOrderNotFree) {
		t.Fatalf("expected ErrOrderNotFree, got %v", err)
	}
}

func TestFreeOrderVariantFilesFollowSelectedColors(t *testing.T) {
	freeSvc, orderSvc, db := setupFreeOrderServiceTest(t)
	product := createFreeProduct(t, db, "free-posters", false,
		models.DesignFile{Name: "mono.zip", FilePath: "designs/mono.zip", ColorVariant: "mono", IsActive: true},
		models.DesignFile{Name: "neon.zip", FilePath: "designs/neon.zip", ColorVariant: "neon", IsActive: true},
		models.DesignFile{Name: "license.pdf", FilePath: "designs/license.pdf", IsActive: true},
	)
	order, err := orderSvc.CreateOrder(CreateOrderInput{
		UserID:        1,
		CustomerEmail: "buyer@example.com",
		Items: []CreateOrderItem{{
			ProductID:     product.ID,
			Quantity:      1,
			Customization: models.JSON{"colors": []interface{}{"mono"}},
		}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	result, err := freeSvc.Complete(order.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	// 通用文件 + 命中的 mono 变体，neon 不授权
	if len(result.CreatedGrants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(result.CreatedGrants))
	}
}
