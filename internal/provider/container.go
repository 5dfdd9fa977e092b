package provider

import (
	"github.com/pixelmart/internal/cache"
	"github.com/pixelmart/internal/config"
	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/payment"
	"github.com/pixelmart/internal/payment/payce"
	"github.com/pixelmart/internal/queue"
	"github.com/pixelmart/internal/repository"
	"github.com/pixelmart/internal/service"
	"github.com/pixelmart/internal/storage"
)

// Container 依赖注入容器
type Container struct {
	Config          *config.Config
	QueueClient     *queue.Client
	PaymentProvider payment.Provider
	StorageResolver storage.Resolver

	// Repositories
	UserRepo          repository.UserRepository
	ProductRepo       repository.ProductRepository
	DesignFileRepo    repository.DesignFileRepository
	OrderRepo         repository.OrderRepository
	DiscountCodeRepo  repository.DiscountCodeRepository
	DiscountUsageRepo repository.DiscountUsageRepository
	DownloadGrantRepo repository.DownloadGrantRepository

	// Services
	AuthService          *service.AuthService
	DiscountService      *service.DiscountService
	DiscountAdminService *service.DiscountAdminService
	OrderService         *service.OrderService
	PaymentService       *service.PaymentService
	FreeOrderService     *service.FreeOrderService
	FulfillmentService   *service.FulfillmentService
	GrantService         *service.GrantService
	DownloadService      *service.DownloadService
	NotificationService  *service.NotificationService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initExternals()
	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initExternals() {
	cfg := c.Config

	payceClient, err := payce.New(payce.Config{
		BaseURL:    cfg.Payment.Payce.BaseURL,
		MerchantID: cfg.Payment.Payce.MerchantID,
		APIKey:     cfg.Payment.Payce.APIKey,
		NotifyURL:  cfg.Payment.Payce.NotifyURL,
		ReturnURL:  cfg.Payment.Payce.ReturnURL,
		TimeoutMS:  cfg.Payment.Payce.TimeoutMS,
	})
	if err != nil {
		logger.Warnw("provider_init_payment_failed", "error", err)
	} else {
		c.PaymentProvider = payceClient
	}

	resolver, err := storage.NewLocalResolver(cfg.Storage.BasePath)
	if err != nil {
		logger.Errorw("provider_init_storage_failed", "error", err)
	} else {
		c.StorageResolver = resolver
	}
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.DesignFileRepo = repository.NewDesignFileRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.DiscountCodeRepo = repository.NewDiscountCodeRepository(db)
	c.DiscountUsageRepo = repository.NewDiscountUsageRepository(db)
	c.DownloadGrantRepo = repository.NewDownloadGrantRepository(db)
}

func (c *Container) initServices() {
	cfg := c.Config

	c.AuthService = service.NewAuthService(cfg, c.UserRepo)
	c.DiscountService = service.NewDiscountService(c.DiscountCodeRepo, c.DiscountUsageRepo)
	c.DiscountAdminService = service.NewDiscountAdminService(c.DiscountCodeRepo)
	c.GrantService = service.NewGrantService(c.DownloadGrantRepo, c.DesignFileRepo)
	c.OrderService = service.NewOrderService(
		c.OrderRepo,
		c.ProductRepo,
		c.DownloadGrantRepo,
		c.DiscountService,
		c.PaymentProvider,
		c.QueueClient,
		cfg.Site.Currency,
		cfg.Order.PaymentExpireMinutes,
		cfg.Order.MaxItemsPerOrder,
	)
	c.PaymentService = service.NewPaymentService(c.OrderRepo, c.DiscountService, c.PaymentProvider, c.QueueClient)
	c.FreeOrderService = service.NewFreeOrderService(c.OrderRepo, c.DiscountService, c.GrantService, c.QueueClient, cfg.Order.DownloadExpireDays)
	c.FulfillmentService = service.NewFulfillmentService(c.OrderRepo, c.GrantService, c.QueueClient, cfg.Order.DownloadExpireDays)
	c.DownloadService = service.NewDownloadService(c.OrderRepo, c.DownloadGrantRepo, c.DesignFileRepo, c.StorageResolver)
	c.NotificationService = service.NewNotificationService(c.OrderRepo, service.LogDispatcher{})
}
