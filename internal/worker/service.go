package worker

import (
	"context"
	"errors"
	"time"

	"github.com/pixelmart/internal/config"
	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/queue"

	"github.com/hibiken/asynq"
)

// timeoutSweepInterval 超时订单兜底扫描周期
const timeoutSweepInterval = time.Minute

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.OrderService != nil {
		go s.runTimeoutSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runTimeoutSweepLoop 周期兜底取消支付超时订单，覆盖延时任务丢失的场景
func (s *Service) runTimeoutSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(timeoutSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cancelled, err := s.consumer.OrderService.CancelExpired(now, 200)
			if err != nil {
				logger.Warnw("worker_timeout_sweep_failed", "error", err)
				continue
			}
			if cancelled > 0 {
				logger.Infow("worker_timeout_sweep_done", "cancelled", cancelled)
			}
		}
	}
}
