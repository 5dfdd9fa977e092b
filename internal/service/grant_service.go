package service

import (
	"time"

	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"

	"gorm.io/gorm"
)

// GrantService 下载授权服务
type GrantService struct {
	grantRepo repository.DownloadGrantRepository
	fileRepo  repository.DesignFileRepository
}

// NewGrantService 创建下载授权服务
func NewGrantService(grantRepo repository.DownloadGrantRepository, fileRepo repository.DesignFileRepository) *GrantService {
	return &GrantService{
		grantRepo: grantRepo,
		fileRepo:  fileRepo,
	}
}

// GrantAccess 为订单批量创建下载授权，返回本次新建的授权。
// 同一 (orderID, designFileID) 已存在授权时跳过，不重置计数。
func (s *GrantService) GrantAccess(tx *gorm.DB, orderID uint, fileIDs []uint, expiresAt *time.Time) ([]models.DownloadGrant, error) {
	grantRepo := s.grantRepo.WithTx(tx)
	created := make([]models.DownloadGrant, 0, len(fileIDs))

	seen := make(map[uint]struct{}, len(fileIDs))
	for _, fileID := range fileIDs {
		if fileID == 0 {
			continue
		}
		if _, dup := seen[fileID]; dup {
			continue
		}
		seen[fileID] = struct{}{}

		existing, err := grantRepo.GetByOrderAndFile(orderID, fileID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}
		grant := models.DownloadGrant{
			OrderID:      orderID,
			DesignFileID: fileID,
			IsActive:     true,
			ExpiresAt:    expiresAt,
		}
		if err := grantRepo.Create(&grant); err != nil {
			return nil, err
		}
		created = append(created, grant)
	}
	if len(created) > 0 {
		logger.Infow("download_grants_created", "order_id", orderID, "count", len(created))
	}
	return created, nil
}

// ResolveGrantableFileIDs 解析订单可授权的设计文件：
// 每个订单项取商品的有效文件，通用文件总是入选，变体文件要求命中所选配色。
func (s *GrantService) ResolveGrantableFileIDs(order *models.Order) ([]uint, error) {
	productIDs := make([]uint, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	files, err := s.fileRepo.ListActiveByProducts(productIDs)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[uint][]models.DesignFile)
	for _, file := range files {
		byProduct[file.ProductID] = append(byProduct[file.ProductID], file)
	}

	now := time.Now()
	ids := make([]uint, 0, len(files))
	seen := make(map[uint]struct{}, len(files))
	for _, item := range order.Items {
		colors := make(map[string]struct{})
		for _, color := range item.SelectedColors() {
			colors[color] = struct{}{}
		}
		for _, file := range byProduct[item.ProductID] {
			if file.IsExpired(now) {
				continue
			}
			if file.ColorVariant != "" {
				if _, ok := colors[file.ColorVariant]; !ok {
					continue
				}
			}
			if _, dup := seen[file.ID]; dup {
				continue
			}
			seen[file.ID] = struct{}{}
			ids = append(ids, file.ID)
		}
	}
	return ids, nil
}

// GrantOrderFiles 解析并授予订单的全部可下载文件，重复调用不会产生重复授权。
func (s *GrantService) GrantOrderFiles(tx *gorm.DB, order *models.Order) ([]models.DownloadGrant, error) {
	fileIDs, err := s.ResolveGrantableFileIDs(order)
	if err != nil {
		return nil, err
	}
	return s.GrantAccess(tx, order.ID, fileIDs, order.DownloadExpiresAt)
}

// Revoke 撤销一条下载授权，保留历史计数
func (s *GrantService) Revoke(orderID, designFileID uint) error {
	grant, err := s.grantRepo.GetByOrderAndFile(orderID, designFileID)
	if err != nil {
		return err
	}
	if grant == nil {
		return ErrGrantNotFound
	}
	return s.grantRepo.SetActive(grant.ID, false)
}

// Restore 恢复一条已撤销的下载授权
func (s *GrantService) Restore(orderID, designFileID uint) error {
	grant, err := s.grantRepo.GetByOrderAndFile(orderID, designFileID)
	if err != nil {
		return err
	}
	if grant == nil {
		return ErrGrantNotFound
	}
	return s.grantRepo.SetActive(grant.ID, true)
}

// ListByOrder 获取订单的全部下载授权
func (s *GrantService) ListByOrder(orderID uint) ([]models.DownloadGrant, error) {
	return s.grantRepo.ListByOrder(orderID)
}

// List 管理端授权列表
func (s *GrantService) List(filter repository.DownloadGrantListFilter) ([]models.DownloadGrant, int64, error) {
	return s.grantRepo.List(filter)
}
