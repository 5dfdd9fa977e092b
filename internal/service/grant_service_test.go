package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupGrantServiceTest(t *testing.T) (*GrantService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:grant_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.DesignFile{}, &models.DownloadGrant{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	grantRepo := repository.NewDownloadGrantRepository(db)
	fileRepo := repository.NewDesignFileRepository(db)
	return NewGrantService(grantRepo, fileRepo), db
}

func TestGrantAccessSkipsExistingPairs(t *testing.T) {
	svc, db := setupGrantServiceTest(t)

	created, err := svc.GrantAccess(db, 1, []uint{10, 11, 10, 0}, nil)
	if err != nil {
		t.Fatalf("grant access failed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(created))
	}

	// 已有计数的授权不被重建或重置
	if err := db.Model(&models.DownloadGrant{}).
		Where("order_id = ? AND design_file_id = ?", 1, 10).
		Update("download_count", 3).Error; err != nil {
		t.Fatalf("bump count failed: %v", err)
	}
	again, err := svc.GrantAccess(db, 1, []uint{10, 11}, nil)
	if err != nil {
		t.Fatalf("replayed grant access failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no new grants, got %d", len(again))
	}
	var grant models.DownloadGrant
	if err := db.Where("order_id = ? AND design_file_id = ?", 1, 10).First(&grant).Error; err != nil {
		t.Fatalf("reload grant failed: %v", err)
	}
	if grant.DownloadCount != 3 {
		t.Fatalf("expected count preserved, got %d", grant.DownloadCount)
	}
}

func TestRevokeAndRestoreGrant(t *testing.T) {
	svc, db := setupGrantServiceTest(t)
	if _, err := svc.GrantAccess(db, 1, []uint{10}, nil); err != nil {
		t.Fatalf("grant access failed: %v", err)
	}

	if err := svc.Revoke(1, 10); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	var grant models.DownloadGrant
	if err := db.Where("order_id = ? AND design_file_id = ?", 1, 10).First(&grant).Error; err != nil {
		t.Fatalf("reload grant failed: %v", err)
	}
	if grant.IsActive {
		t.Fatalf("expected grant inactive after revoke")
	}

	if err := svc.Restore(1, 10); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if err := db.Where("order_id = ? AND design_file_id = ?", 1, 10).First(&grant).Error; err != nil {
		t.Fatalf("reload grant failed: %v", err)
	}
	if !grant.IsActive {
		t.Fatalf("expected grant active after restore")
	}

	if err := svc.Revoke(1, 99); !errors.Is(err, ErrGrantNotFound) {
		t.Fatalf("expected ErrGrantNotFound, got %v", err)
	}
}

func TestResolveGrantableFileIDsSkipsExpiredFiles(t *testing.T) {
	svc, db := setupGrantServiceTest(t)
	past := time.Now().Add(-time.Hour)
	product := models.Product{
		Slug:     "posters",
		Name:     "posters",
		IsActive: true,
		DesignFiles: []models.DesignFile{
			{Name: "fresh.zip", FilePath: "designs/fresh.zip", IsActive: true},
			{Name: "stale.zip", FilePath: "designs/stale.zip", IsActive: true, ExpiresAt: &past},
		},
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	order := &models.Order{
		ID:    1,
		Items: []models.OrderItem{{ProductID: product.ID}},
	}
	ids, err := svc.ResolveGrantableFileIDs(order)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected only the unexpired file, got %d", len(ids))
	}
}
