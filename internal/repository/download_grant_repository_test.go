package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/pixelmart/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupDownloadGrantRepositoryTest(t *testing.T) (*GormDownloadGrantRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:download_grant_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.DownloadGrant{}); err != nil {
		t.Fatalf("migrate download grant failed: %v", err)
	}
	return NewDownloadGrantRepository(db), db
}

func createGrant(t *testing.T, repo *GormDownloadGrantRepository, orderID, fileID uint, expiresAt *time.Time) *models.DownloadGrant {
	t.Helper()
	grant := &models.DownloadGrant{
		OrderID:      orderID,
		DesignFileID: fileID,
		IsActive:     true,
		ExpiresAt:    expiresAt,
	}
	if err := repo.Create(grant); err != nil {
		t.Fatalf("create grant failed: %v", err)
	}
	return grant
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func TestRegisterDownloadCountsAndKeepsFirstTimestamp(t *testing.T) {
	repo, _ := setupDownloadGrantRepositoryTest(t)
	grant := createGrant(t, repo, 1, 10, nil)

	first := time.Now().Add(-time.Hour)
	ok, err := repo.RegisterDownload(grant.ID, 0, first)
	if err != nil {
		t.Fatalf("register download failed: %v", err)
	}
	if !ok {
		t.Fatalf("first download should be accepted")
	}

	second := time.Now()
	if ok, err = repo.RegisterDownload(grant.ID, 0, second); err != nil || !ok {
		t.Fatalf("second download should be accepted, ok=%v err=%v", ok, err)
	}

	reloaded, err := repo.GetByID(grant.ID)
	if err != nil {
		t.Fatalf("reload grant failed: %v", err)
	}
	if reloaded.DownloadCount != 2 {
		t.Fatalf("download count want 2 got %d", reloaded.DownloadCount)
	}
	if reloaded.FirstDownloadedAt == nil || absDuration(reloaded.FirstDownloadedAt.Sub(first)) > time.Second {
		t.Fatalf("first_downloaded_at must keep the first timestamp, got %v", reloaded.FirstDownloadedAt)
	}
	if reloaded.LastDownloadedAt == nil || absDuration(reloaded.LastDownloadedAt.Sub(second)) > time.Second {
		t.Fatalf("last_downloaded_at want %v got %v", second, reloaded.LastDownloadedAt)
	}
}

func TestRegisterDownloadEnforcesQuota(t *testing.T) {
	repo, _ := setupDownloadGrantRepositoryTest(t)
	grant := createGrant(t, repo, 1, 10, nil)
	now := time.Now()

	for i := 0; i < 2; i++ {
		if ok, err := repo.RegisterDownload(grant.ID, 2, now); err != nil || !ok {
			t.Fatalf("download %d should be accepted, ok=%v err=%v", i+1, ok, err)
		}
	}
	ok, err := repo.RegisterDownload(grant.ID, 2, now)
	if err != nil {
		t.Fatalf("register download failed: %v", err)
	}
	if ok {
		t.Fatalf("download above quota must be rejected")
	}

	reloaded, err := repo.GetByID(grant.ID)
	if err != nil {
		t.Fatalf("reload grant failed: %v", err)
	}
	if reloaded.DownloadCount != 2 {
		t.Fatalf("count must stay at quota, got %d", reloaded.DownloadCount)
	}
}

func TestRegisterDownloadRejectsInactiveAndExpired(t *testing.T) {
	repo, _ := setupDownloadGrantRepositoryTest(t)
	now := time.Now()

	inactive := createGrant(t, repo, 1, 10, nil)
	if err := repo.SetActive(inactive.ID, false); err != nil {
		t.Fatalf("deactivate grant failed: %v", err)
	}
	if ok, err := repo.RegisterDownload(inactive.ID, 0, now); err != nil || ok {
		t.Fatalf("inactive grant must be rejected, ok=%v err=%v", ok, err)
	}

	past := now.Add(-time.Minute)
	expired := createGrant(t, repo, 2, 10, &past)
	if ok, err := repo.RegisterDownload(expired.ID, 0, now); err != nil || ok {
		t.Fatalf("expired grant must be rejected, ok=%v err=%v", ok, err)
	}
}

func TestDeactivateByOrderAndFindActive(t *testing.T) {
	repo, _ := setupDownloadGrantRepositoryTest(t)
	createGrant(t, repo, 1, 10, nil)
	createGrant(t, repo, 1, 11, nil)
	other := createGrant(t, repo, 2, 10, nil)

	if err := repo.DeactivateByOrder(1); err != nil {
		t.Fatalf("deactivate by order failed: %v", err)
	}

	found, err := repo.FindActiveByOrdersAndFile([]uint{1, 2}, 10)
	if err != nil {
		t.Fatalf("find active failed: %v", err)
	}
	if found == nil || found.ID != other.ID {
		t.Fatalf("only the other order's grant should remain active, got %+v", found)
	}

	none, err := repo.FindActiveByOrdersAndFile([]uint{1}, 11)
	if err != nil {
		t.Fatalf("find active failed: %v", err)
	}
	if none != nil {
		t.Fatalf("deactivated grant must not be returned, got %+v", none)
	}
}
