package main

import (
	"time"

	"github.com/pixelmart/internal/config"
	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 默认管理员
	if err := models.InitDefaultAdmin("", ""); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	// 演示用户
	demoHash, err := bcrypt.GenerateFromPassword([]byte("demo123456"), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}
	demoUser := models.User{
		Email:        "demo@example.com",
		PasswordHash: string(demoHash),
		DisplayName:  "Demo User",
	}
	var existingUser models.User
	if err := models.DB.Where("email = ?", demoUser.Email).First(&existingUser).Error; err != nil {
		if err := models.DB.Create(&demoUser).Error; err != nil {
			stdLog.Printf("Failed to create demo user: %v", err)
		} else {
			stdLog.Printf("Created demo user: %s", demoUser.Email)
		}
	} else {
		stdLog.Printf("Demo user already exists: %s", demoUser.Email)
	}

	// 演示商品与设计文件
	products := []models.Product{
		{
			Slug:          "geometric-poster-pack",
			Name:          "Geometric Poster Pack",
			Description:   "A set of 12 print-ready geometric posters in three colorways.",
			PriceAmount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(24.00)),
			ColorVariants: models.StringArray([]string{"mono", "pastel", "neon"}),
			IsActive:      true,
			SortOrder:     10,
			DesignFiles: []models.DesignFile{
				{Name: "posters-mono.zip", FilePath: "designs/geometric/posters-mono.zip", MimeType: "application/zip", SizeBytes: 48 << 20, ColorVariant: "mono", IsActive: true},
				{Name: "posters-pastel.zip", FilePath: "designs/geometric/posters-pastel.zip", MimeType: "application/zip", SizeBytes: 51 << 20, ColorVariant: "pastel", IsActive: true},
				{Name: "posters-neon.zip", FilePath: "designs/geometric/posters-neon.zip", MimeType: "application/zip", SizeBytes: 47 << 20, ColorVariant: "neon", IsActive: true},
				{Name: "license.pdf", FilePath: "designs/geometric/license.pdf", MimeType: "application/pdf", SizeBytes: 120 << 10, IsActive: true},
			},
		},
		{
			Slug:                 "brand-logo-kit",
			Name:                 "Brand Logo Kit",
			Description:          "Editable logo templates with manual color customization service.",
			PriceAmount:          models.NewMoneyFromDecimal(decimal.NewFromFloat(59.00)),
			CustomizationEnabled: true,
			IsActive:             true,
			SortOrder:            20,
			DesignFiles: []models.DesignFile{
				{Name: "logo-kit.zip", FilePath: "designs/logo-kit/logo-kit.zip", MimeType: "application/zip", SizeBytes: 96 << 20, IsActive: true, MaxDownloads: 5},
			},
		},
		{
			Slug:        "free-icon-sampler",
			Name:        "Free Icon Sampler",
			Description: "A free sampler of 40 interface icons.",
			PriceAmount: models.NewMoneyFromDecimal(decimal.Zero),
			IsActive:    true,
			SortOrder:   30,
			DesignFiles: []models.DesignFile{
				{Name: "icon-sampler.zip", FilePath: "designs/icons/icon-sampler.zip", MimeType: "application/zip", SizeBytes: 8 << 20, IsActive: true},
			},
		},
	}

	for _, product := range products {
		var existing models.Product
		if err := models.DB.Where("slug = ?", product.Slug).First(&existing).Error; err != nil {
			if err := models.DB.Create(&product).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", product.Slug, err)
			} else {
				stdLog.Printf("Created product: %s", product.Slug)
			}
		} else {
			stdLog.Printf("Product already exists: %s", product.Slug)
		}
	}

	// 演示折扣码
	endOfYear := time.Date(time.Now().Year(), 12, 31, 23, 59, 59, 0, time.UTC)
	codes := []models.DiscountCode{
		{
			Code:     "WELCOME10",
			Type:     constants.DiscountTypeFixed,
			Value:    models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
			IsActive: true,
			EndsAt:   &endOfYear,
		},
		{
			Code:         "SAVE20",
			Type:         constants.DiscountTypePercent,
			Value:        models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
			MaxDiscount:  models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
			MinAmount:    models.NewMoneyFromDecimal(decimal.NewFromInt(30)),
			UsageLimit:   100,
			PerUserLimit: 1,
			IsActive:     true,
		},
	}

	for _, code := range codes {
		var existing models.DiscountCode
		if err := models.DB.Where("code = ?", code.Code).First(&existing).Error; err != nil {
			if err := models.DB.Create(&code).Error; err != nil {
				stdLog.Printf("Failed to create discount code %s: %v", code.Code, err)
			} else {
				stdLog.Printf("Created discount code: %s", code.Code)
			}
		} else {
			stdLog.Printf("Discount code already exists: %s", code.Code)
		}
	}

	stdLog.Printf("Seed completed")
}
