package service

import (
	"context"
	"io"
	"time"

	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"
	"github.com/pixelmart/internal/storage"
)

// DownloadService 下载鉴权服务
type DownloadService struct {
	orderRepo repository.OrderRepository
	grantRepo repository.DownloadGrantRepository
	fileRepo  repository.DesignFileRepository
	resolver  storage.Resolver
}

// NewDownloadService 创建下载鉴权服务
func NewDownloadService(orderRepo repository.OrderRepository, grantRepo repository.DownloadGrantRepository, fileRepo repository.DesignFileRepository, resolver storage.Resolver) *DownloadService {
	return &DownloadService{
		orderRepo: orderRepo,
		grantRepo: grantRepo,
		fileRepo:  fileRepo,
		resolver:  resolver,
	}
}

// Requester 下载请求者身份，由上游会话层给出
type Requester struct {
	UserID  uint
	IsAdmin bool
}

// DownloadAuthorization 鉴权通过后的传输描述
type DownloadAuthorization struct {
	File   *models.DesignFile
	Grant  *models.DownloadGrant
	Stream io.ReadCloser
	Size   int64
}

// Authorize 校验下载请求并完成计数记账，通过后返回文件流。
// 对普通用户，文件不存在与无权访问统一返回 ErrDownloadDenied，不泄露文件是否存在。
func (s *DownloadService) Authorize(ctx context.Context, requester Requester, designFileID uint) (*DownloadAuthorization, error) {
	file, err := s.fileRepo.GetByID(designFileID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if requester.IsAdmin {
		if file == nil {
			return nil, ErrFileUnavailable
		}
		if !file.IsActive || file.IsExpired(now) {
			return nil, ErrFileUnavailable
		}
		return s.open(ctx, file, nil)
	}

	if file == nil || !file.IsActive {
		return nil, ErrDownloadDenied
	}
	if file.IsExpired(now) {
		return nil, ErrGrantExpired
	}

	orderIDs, err := s.orderRepo.ListFulfillmentEligibleIDsByUser(requester.UserID)
	if err != nil {
		return nil, err
	}
	grant, err := s.grantRepo.FindActiveByOrdersAndFile(orderIDs, designFileID)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, ErrDownloadDenied
	}
	if grant.IsExpired(now) {
		return nil, ErrGrantExpired
	}
	if file.MaxDownloads > 0 && grant.DownloadCount >= file.MaxDownloads {
		return nil, ErrDownloadQuota
	}

	// 计数与额度检查是同一条条件更新，并发请求不会把计数推过上限。
	claimed, err := s.grantRepo.RegisterDownload(grant.ID, file.MaxDownloads, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, s.resolveDenyReason(grant.ID, file, now)
	}

	updated, err := s.grantRepo.GetByID(grant.ID)
	if err != nil {
		return nil, err
	}

	logger.Infow("download_authorized",
		"user_id", requester.UserID,
		"design_file_id", designFileID,
		"grant_id", grant.ID,
		"download_count", updated.DownloadCount,
	)
	return s.open(ctx, file, updated)
}

// resolveDenyReason 条件更新未命中时复查授权，给出具体拒绝原因
func (s *DownloadService) resolveDenyReason(grantID uint, file *models.DesignFile, now time.Time) error {
	grant, err := s.grantRepo.GetByID(grantID)
	if err != nil {
		return err
	}
	switch {
	case grant == nil || !grant.IsActive:
		return ErrDownloadDenied
	case grant.IsExpired(now):
		return ErrGrantExpired
	case file.MaxDownloads > 0 && grant.DownloadCount >= file.MaxDownloads:
		return ErrDownloadQuota
	default:
		return ErrDownloadDenied
	}
}

func (s *DownloadService) open(ctx context.Context, file *models.DesignFile, grant *models.DownloadGrant) (*DownloadAuthorization, error) {
	stream, size, err := s.resolver.Open(ctx, file.FilePath)
	if err != nil {
		logger.Errorw("download_stream_open_failed", "error", err, "design_file_id", file.ID)
		return nil, ErrFileUnavailable
	}
	return &DownloadAuthorization{
		File:   file,
		Grant:  grant,
		Stream: stream,
		Size:   size,
	}, nil
}
