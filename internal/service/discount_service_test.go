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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupDiscountServiceTest(t *testing.T) (*DiscountService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:discount_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.DiscountCode{}, &models.DiscountUsage{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	codeRepo := repository.NewDiscountCodeRepository(db)
	usageRepo := repository.NewDiscountUsageRepository(db)
	return NewDiscountService(codeRepo, usageRepo), db
}

func money(value float64) models.Money {
	return models.NewMoneyFromDecimal(decimal.NewFromFloat(value))
}

func TestValidatePercentageDiscount(t *testing.T) {
	svc, db := setupDiscountServiceTest(t)
	code := models.DiscountCode{
		Code:     "SAVE20",
		Type:     constants.DiscountTypePercent,
		Value:    money(20),
		IsActive: true,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	result, err := svc.Validate("SAVE20", 1, money(100))
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if !result.Amount.Decimal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected discount 20, got %s", result.Amount.Decimal.String())
	}
}

func TestValidatePercentageDiscountCapped(t *testing.T) {
	svc, db := setupDiscountServiceTest(t)
	code := models.DiscountCode{
		Code:        "HALF",
		Type:        constants.DiscountTypePercent,
		Value:       money(50),
		MaxDiscount: money(30),
		IsActive:    true,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	result, err := svc.Validate("HALF", 1, money(100))
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if !result.Amount.Decimal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected capped discount 30, got %s", result.Amount.Decimal.String())
	}
}

func TestValidateFixedDiscountClampedToCart(t *testing.T) {
	svc, db := setupDiscountServiceTest(t)
	code := models.DiscountCode{
		Code:     "FLAT50",
		Type:     constants.DiscountTypeFixed,
		Value:    money(50),
		IsActive: true,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	result, err := svc.Validate("FLAT50", 1, money(30))
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if !result.Amount.Decimal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected clamped discount 30, got %s", result.Amount.Decimal.String())
	}
}

func TestValidateFailureOrder(t *testing.T) {
	svc, db := setupDiscountServiceTest(t)
	past := time.Now().Add(-time.Hour)

	// 未启用且已过期：应先报未启用
	code := models.DiscountCode{
		Code:     "DEAD",
		Type:     constants.DiscountTypeFixed,
		Value:    money(5),
		IsActive: false,
		EndsAt:   &past,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}
	if _, err := svc.Validate("DEAD", 1, money(100)); !errors.Is(err, ErrDiscountInactive) {
		t.Fatalf("expected ErrDiscountInactive, got %v", err)
	}

	if _, err := svc.Validate("MISSING", 1, money(100)); !errors.Is(err, ErrDiscountNotFound) {
		t.Fatalf("expected ErrDiscountNotFound, got %v", err)
	}
}

func TestValidateMinAmount(t *testing.T) {
	svc, db := setupDiscountServiceTest(t)
	code := models.DiscountCode{
		Code:      "BIG10",
		Type:      constants.DiscountTypeFixed,
		Value:     money(10),
		MinAmount: money(50),
		IsActive:  true,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	if _, err := svc.Validate("BIG10", 1, money(49.99)); !errors.Is(err, ErrDiscountMinAmount) {
		t.Fatalf("expected ErrDiscountMinAmount, got %v", err)
	}
	if _, err := svc.Validate("BIG10", 1, money(50)); err != nil {
		t.Fatalf("expected success at threshold, got %v", err)
	}
}

func TestValidatePerUserLimit(t *testing.T) {
	svc, db := setupDiscountServiceTest(t)
	code := models.DiscountCode{
		Code:         "ONCE",
		Type:         constants.DiscountTypeFixed,
		Value:        money(5),
		PerUserLimit: 1,
		IsActive:     true,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}
	usage := models.DiscountUsage{
		DiscountCodeID: code.ID,
		UserID:         7,
		OrderID:        100,
		DiscountAmount: money(5),
	}
	if err := db.Create(&usage).Error; err != nil {
		t.Fatalf("create usage failed: %v", err)
	}

	if _, err := svc.Validate("ONCE", 7, money(100)); !errors.Is(err, ErrDiscountPerUserLimit) {
		t.Fatalf("expected ErrDiscountPerUserLimit, got %v", err)
	}
	if _, err := svc.Validate("ONCE", 8, money(100)); err != nil {
		t.Fatalf("expected success for another user, got %v", err)
	}
}

func TestValidateUsageLimitExhausted(t *testing.T) {
	svc, db := setupDiscountServiceTest(t)
	code := models.DiscountCode{
		Code:       "LIMITED",
		Type:       constants.DiscountTypeFixed,
		Value:      money(5),
		UsageLimit: 2,
		UsedCount:  2,
		IsActive:   true,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	if _, err := svc.Validate("LIMITED", 1, money(100)); !errors.Is(err, ErrDiscountUsageLimit) {
		t.Fatalf("expected ErrDiscountUsageLimit, got %v", err)
	}
}

func TestAllocateSharesRemainderGoesLast(t *testing.T) {
	svc, _ := setupDiscountServiceTest(t)
	lines := []models.Money{money(10), money(10), money(10)}
	shares := svc.AllocateShares(lines, money(10))

	sum := decimal.Zero
	for _, share := range shares {
		sum = sum.Add(share.Decimal)
	}
	if !sum.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected shares to sum to 10, got %s", sum.String())
	}
	if !shares[0].Decimal.Equal(decimal.NewFromFloat(3.33)) {
		t.Fatalf("expected 3.33 first share, got %s", shares[0].Decimal.String())
	}
	if !shares[2].Decimal.Equal(decimal.NewFromFloat(3.34)) {
		t.Fatalf("expected 3.34 last share, got %s", shares[2].Decimal.String())
	}
}

func TestAllocateSharesProportional(t *testing.T) {
	svc, _ := setupDiscountServiceTest(t)
	lines := []models.Money{money(100), money(50), money(50)}
	shares := svc.AllocateShares(lines, money(30))

	if !shares[0].Decimal.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected 15, got %s", shares[0].Decimal.String())
	}
	if !shares[1].Decimal.Equal(decimal.NewFromFloat(7.5)) {
		t.Fatalf("expected 7.5, got %s", shares[1].Decimal.String())
	}
	if !shares[2].Decimal.Equal(decimal.NewFromFloat(7.5)) {
		t.Fatalf("expected 7.5, got %s", shares[2].Decimal.String())
	}
}

func TestRedeemClaimsGlobalQuota(t *testing.T) {
	svc, db := setupDiscountServiceTest(t)
	code := models.DiscountCode{
		Code:       "QUOTA1",
		Type:       constants.DiscountTypeFixed,
		Value:      money(5),
		UsageLimit: 1,
		IsActive:   true,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	if err := svc.Redeem(db, code.ID, 1, 100, money(5)); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}
	if err := svc.Redeem(db, code.ID, 2, 101, money(5)); !errors.Is(err, ErrDiscountUsageLimit) {
		t.Fatalf("expected ErrDiscountUsageLimit, got %v", err)
	}

	var reloaded models.DiscountCode
	if err := db.First(&reloaded, code.ID).Error; err != nil {
		t.Fatalf("reload code failed: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("expected used_count 1, got %d", reloaded.UsedCount)
	}
}

func TestRedeemOnceIsIdempotentPerOrder(t *testing.T) {
	svc, db := setupDiscountServiceTest(t)
	code := models.DiscountCode{
		Code:     "REPLAY",
		Type:     constants.DiscountTypeFixed,
		Value:    money(5),
		IsActive: true,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.RedeemOnce(db, code.ID, 1, 200, money(5)); err != nil {
			t.Fatalf("redeem once #%d failed: %v", i, err)
		}
	}

	var count int64
	db.Model(&models.DiscountUsage{}).Where("order_id = ?", 200).Count(&count)
	if count != 1 {
		t.Fatalf("expected single usage record, got %d", count)
	}
	var reloaded models.DiscountCode
	if err := db.First(&reloaded, code.ID).Error; err != nil {
		t.Fatalf("reload code failed: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("expected used_count 1, got %d", reloaded.UsedCount)
	}
}

func TestReleaseRedemptionReturnsQuota(t *testing.T) {
	svc, db := setupDiscountServiceTest(t)
	code := models.DiscountCode{
		Code:       "REFUNDABLE",
		Type:       constants.DiscountTypeFixed,
		Value:      money(5),
		UsageLimit: 10,
		IsActive:   true,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}
	if err := svc.Redeem(db, code.ID, 1, 300, money(5)); err != nil {
		t.Fatalf("redeem failed: %v", err)
	}

	if err := svc.ReleaseRedemption(db, 300); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	var reloaded models.DiscountCode
	if err := db.First(&reloaded, code.ID).Error; err != nil {
		t.Fatalf("reload code failed: %v", err)
	}
	if reloaded.UsedCount != 0 {
		t.Fatalf("expected used_count back to 0, got %d", reloaded.UsedCount)
	}
	var count int64
	db.Model(&models.DiscountUsage{}).Where("order_id = ?", 300).Count(&count)
	if count != 0 {
		t.Fatalf("expected usage record removed, got %d", count)
	}

	// 无记录时再次释放应为 no-op
	if err := svc.ReleaseRedemption(db, 300); err != nil {
		t.Fatalf("second release failed: %v", err)
	}
}
