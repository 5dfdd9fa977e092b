package service

import (
	"context"
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

type recordingDispatcher struct {
	notifications []Notification
	err           error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, notification Notification) error {
	if d.err != nil {
		return d.err
	}
	d.notifications = append(d.notifications, notification)
	return nil
}

func setupNotificationServiceTest(t *testing.T) (*NotificationService, *recordingDispatcher, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:notification_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	dispatcher := &recordingDispatcher{}
	svc := NewNotificationService(repository.NewOrderRepository(db), dispatcher)
	return svc, dispatcher, db
}

func createNotifiableOrder(t *testing.T, db *gorm.DB) models.Order {
	t.Helper()
	order := models.Order{
		OrderNo:       fmt.Sprintf("2026-%06d", time.Now().UnixNano()%1000000),
		UserID:        1,
		CustomerEmail: "buyer@example.com",
		Status:        constants.OrderStatusPending,
		PaymentStatus: constants.PaymentStatusPending,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func TestDispatchCustomerNotificationStampsOrder(t *testing.T) {
	svc, dispatcher, db := setupNotificationServiceTest(t)
	order := createNotifiableOrder(t, db)

	if err := svc.Dispatch(context.Background(), order.ID, constants.NotifyOrderCompleted, ""); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(dispatcher.notifications) != 1 {
		t.Fatalf("notifications want 1 got %d", len(dispatcher.notifications))
	}
	if dispatcher.notifications[0].Order == nil || dispatcher.notifications[0].Order.OrderNo != order.OrderNo {
		t.Fatalf("notification should carry the order, got %+v", dispatcher.notifications[0])
	}

	var reloaded models.Order
	if err := db.First(&reloaded, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloaded.NotifiedAt == nil {
		t.Fatalf("customer notification should stamp notified_at")
	}
}

func TestDispatchAdminNotificationDoesNotStamp(t *testing.T) {
	svc, dispatcher, db := setupNotificationServiceTest(t)
	order := createNotifiableOrder(t, db)

	if err := svc.Dispatch(context.Background(), order.ID, constants.NotifyAdminNewOrder, "auto-completed"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(dispatcher.notifications) != 1 {
		t.Fatalf("notifications want 1 got %d", len(dispatcher.notifications))
	}
	if dispatcher.notifications[0].Message != "auto-completed" {
		t.Fatalf("message want auto-completed got %s", dispatcher.notifications[0].Message)
	}

	var reloaded models.Order
	if err := db.First(&reloaded, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloaded.NotifiedAt != nil {
		t.Fatalf("admin notification must not stamp notified_at")
	}
}

func TestDispatchUnknownOrder(t *testing.T) {
	svc, _, _ := setupNotificationServiceTest(t)

	if err := svc.Dispatch(context.Background(), 999, constants.NotifyOrderCompleted, ""); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestDispatchDeliveryFailureDoesNotStamp(t *testing.T) {
	svc, dispatcher, db := setupNotificationServiceTest(t)
	order := createNotifiableOrder(t, db)
	dispatcher.err = errors.New("smtp down")

	if err := svc.Dispatch(context.Background(), order.ID, constants.NotifyOrderCompleted, ""); err == nil {
		t.Fatalf("expected delivery error")
	}

	var reloaded models.Order
	if err := db.First(&reloaded, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloaded.NotifiedAt != nil {
		t.Fatalf("failed delivery must not stamp notified_at")
	}
}
