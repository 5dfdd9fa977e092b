package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// fakeResolver 返回固定内容的存储替身
type fakeResolver struct {
	content string
	err     error
}

func (r *fakeResolver) Open(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	return io.NopCloser(strings.NewReader(r.content)), int64(len(r.content)), nil
}

func (r *fakeResolver) Exists(ctx context.Context, path string) (bool, error) {
	return r.err == nil, nil
}

func setupDownloadServiceTest(t *testing.T) (*DownloadService, *fakeResolver, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:download_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
		&models.DownloadGrant{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	resolver := &fakeResolver{content: "binary-design-data"}
	svc := NewDownloadService(
		repository.NewOrderRepository(db),
		repository.NewDownloadGrantRepository(db),
		repository.NewDesignFileRepository(db),
		resolver,
	)
	return svc, resolver, db
}

// createDownloadFixture 构造一个已交付订单、设计文件与有效授权
func createDownloadFixture(t *testing.T, db *gorm.DB, userID uint, maxDownloads int) (models.DesignFile, models.DownloadGrant) {
	t.Helper()
	file := models.DesignFile{
		ProductID:    1,
		Name:         "asset.zip",
		FilePath:     "designs/asset.zip",
		MimeType:     "application/zip",
		SizeBytes:    1024,
		IsActive:     true,
		MaxDownloads: maxDownloads,
	}
	if err := db.Create(&file).Error; err != nil {
		t.Fatalf("create file failed: %v", err)
	}
	order := models.Order{
		OrderNo:       fmt.Sprintf("2026-%06d", file.ID),
		OrderUUID:     fmt.Sprintf("uuid-%d-%d", userID, file.ID),
		CheckoutToken: fmt.Sprintf("token-%d-%d", userID, file.ID),
		UserID:        userID,
		CustomerEmail: "buyer@example.com",
		Status:        constants.OrderStatusCompleted,
		PaymentStatus: constants.PaymentStatusPaid,
		Currency:      "USD",
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	grant := models.DownloadGrant{
		OrderID:      order.ID,
		DesignFileID: file.ID,
		IsActive:     true,
	}
	if err := db.Create(&grant).Error; err != nil {
		t.Fatalf("create grant failed: %v", err)
	}
	return file, grant
}

func TestAuthorizeStreamsAndCounts(t *testing.T) {
	svc, _, db := setupDownloadServiceTest(t)
	file, _ := createDownloadFixture(t, db, 1, 0)

	auth, err := svc.Authorize(context.Background(), Requester{UserID: 1}, file.ID)
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	defer auth.Stream.Close()

	data, err := io.ReadAll(auth.Stream)
	if err != nil {
		t.Fatalf("read stream failed: %v", err)
	}
	if string(data) != "binary-design-data" {
		t.Fatalf("unexpected stream content: %q", data)
	}
	if auth.Size != int64(len(data)) {
		t.Fatalf("expected size %d, got %d", len(data), auth.Size)
	}
	if auth.Grant.DownloadCount != 1 {
		t.Fatalf("expected count 1, got %d", auth.Grant.DownloadCount)
	}
	if auth.Grant.FirstDownloadedAt == nil || auth.Grant.LastDownloadedAt == nil {
		t.Fatalf("expected download timestamps to be set")
	}

	// 再次下载：计数推进，首次下载时间不变
	first := *auth.Grant.FirstDownloadedAt
	again, err := svc.Authorize(context.Background(), Requester{UserID: 1}, file.ID)
	if err != nil {
		t.Fatalf("second authorize failed: %v", err)
	}
	again.Stream.Close()
	if again.Grant.DownloadCount != 2 {
		t.Fatalf("expected count 2, got %d", again.Grant.DownloadCount)
	}
	if !again.Grant.FirstDownloadedAt.Equal(first) {
		t.Fatalf("first_downloaded_at must not change")
	}
}

func TestAuthorizeQuotaExhausted(t *testing.T) {
	svc, _, db := setupDownloadServiceTest(t)
	file, _ := createDownloadFixture(t, db, 1, 2)

	for i := 0; i < 2; i++ {
		auth, err := svc.Authorize(context.Background(), Requester{UserID: 1}, file.ID)
		if err != nil {
			t.Fatalf("authorize #%d failed: %v", i+1, err)
		}
		auth.Stream.Close()
	}

	if _, err := svc.Authorize(context.Background(), Requester{UserID: 1}, file.ID); !errors.Is(err, ErrDownloadQuota) {
		t.Fatalf("expected ErrDownloadQuota, got %v", err)
	}
	// 计数不得越过上限
	var grant models.DownloadGrant
	if err := db.Where("design_file_id = ?", file.ID).First(&grant).Error; err != nil {
		t.Fatalf("reload grant failed: %v", err)
	}
	if grant.DownloadCount != 2 {
		t.Fatalf("expected count capped at 2, got %d", grant.DownloadCount)
	}
}

func TestAuthorizeDeniedWithoutGrant(t *testing.T) {
	svc, _, db := setupDownloadServiceTest(t)
	file, _ := createDownloadFixture(t, db, 1, 0)

	// 其他用户没有授权
	if _, err := svc.Authorize(context.Background(), Requester{UserID: 2}, file.ID); !errors.Is(err, ErrDownloadDenied) {
		t.Fatalf("expected ErrDownloadDenied, got %v", err)
	}
	// 文件不存在对普通用户同样表现为拒绝
	if _, err := svc.Authorize(context.Background(), Requester{UserID: 1}, 9999); !errors.Is(err, ErrDownloadDenied) {
		t.Fatalf("expected ErrDownloadDenied for missing file, got %v", err)
	}
}

func TestAuthorizeRevokedGrantDenied(t *testing.T) {
	svc, _, db := setupDownloadServiceTest(t)
	file, grant := createDownloadFixture(t, db, 1, 0)
	if err := db.Model(&models.DownloadGrant{}).Where("id = ?", grant.ID).
		Update("is_active", false).Error; err != nil {
		t.Fatalf("revoke grant failed: %v", err)
	}

	if _, err := svc.Authorize(context.Background(), Requester{UserID: 1}, file.ID); !errors.Is(err, ErrDownloadDenied) {
		t.Fatalf("expected ErrDownloadDenied, got %v", err)
	}
}

func TestAuthorizeExpiredGrantDistinct(t *testing.T) {
	svc, _, db := setupDownloadServiceTest(t)
	file, grant := createDownloadFixture(t, db, 1, 0)
	past := time.Now().Add(-time.Hour)
	if err := db.Model(&models.DownloadGrant{}).Where("id = ?", grant.ID).
		Update("expires_at", past).Error; err != nil {
		t.Fatalf("expire grant failed: %v", err)
	}

	if _, err := svc.Authorize(context.Background(), Requester{UserID: 1}, file.ID); !errors.Is(err, ErrGrantExpired) {
		t.Fatalf("expected ErrGrantExpired, got %v", err)
	}
}

func TestAuthorizeExpiredFileDistinct(t *testing.T) {
	svc, _, db := setupDownloadServiceTest(t)
	file, _ := createDownloadFixture(t, db, 1, 0)
	past := time.Now().Add(-time.Hour)
	if err := db.Model(&models.DesignFile{}).Where("id = ?", file.ID).
		Update("expires_at", past).Error; err != nil {
		t.Fatalf("expire file failed: %v", err)
	}

	if _, err := svc.Authorize(context.Background(), Requester{UserID: 1}, file.ID); !errors.Is(err, ErrGrantExpired) {
		t.Fatalf("expected ErrGrantExpired, got %v", err)
	}
}

func TestAuthorizeCancelledOrderDenied(t *testing.T) {
	svc, _, db := setupDownloadServiceTest(t)
	file, grant := createDownloadFixture(t, db, 1, 0)
	if err := db.Model(&models.Order{}).Where("id = ?", grant.OrderID).
		Update("status", constants.OrderStatusCancelled).Error; err != nil {
		t.Fatalf("cancel order failed: %v", err)
	}

	if _, err := svc.Authorize(context.Background(), Requester{UserID: 1}, file.ID); !errors.Is(err, ErrDownloadDenied) {
		t.Fatalf("expected ErrDownloadDenied for cancelled order, got %v", err)
	}
}

func TestAuthorizeAdminBypassesGrants(t *testing.T) {
	svc, _, db := setupDownloadServiceTest(t)
	file := models.DesignFile{
		ProductID: 1,
		Name:      "admin-only.zip",
		FilePath:  "designs/admin-only.zip",
		IsActive:  true,
	}
	if err := db.Create(&file).Error; err != nil {
		t.Fatalf("create file failed: %v", err)
	}

	auth, err := svc.Authorize(context.Background(), Requester{UserID: 99, IsAdmin: true}, file.ID)
	if err != nil {
		t.Fatalf("admin authorize failed: %v", err)
	}
	auth.Stream.Close()
	if auth.Grant != nil {
		t.Fatalf("admin download must not touch grants")
	}

	// 管理员访问不存在的文件返回文件不可用而非拒绝
	if _, err := svc.Authorize(context.Background(), Requester{UserID: 99, IsAdmin: true}, 9999); !errors.Is(err, ErrFileUnavailable) {
		t.Fatalf("expected ErrFileUnavailable, got %v", err)
	}
}

func TestAuthorizeStorageFailure(t *testing.T) {
	svc, resolver, db := setupDownloadServiceTest(t)
	file, _ := createDownloadFixture(t, db, 1, 0)
	resolver.err = errors.New("disk gone")

	if _, err := svc.Authorize(context.Background(), Requester{UserID: 1}, file.ID); !errors.Is(err, ErrFileUnavailable) {
		t.Fatalf("expected ErrFileUnavailable, got %v", err)
	}
}
