package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"token-vesting/internal/model"
	"token-vesting/internal/service/mq"
	"token-vesting/pkg/logger"
	"token-vesting/pkg/monitor"
)

// RelayService 负责将本地消息表的账本事件搬运到 MQ
type RelayService struct {
	db        *gorm.DB
	producer  mq.Producer
	interval  time.Duration
	batchSize int
	metrics   *monitor.VestingMetrics
}

func NewRelayService(db *gorm.DB, producer mq.Producer, metrics *monitor.VestingMetrics) *RelayService {
	return &RelayService{
		db:        db,
		producer:  producer,
		interval:  500 * time.Millisecond, // 500ms 轮询一次
		batchSize: 50,
		metrics:   metrics,
	}
}

func (s *RelayService) Start(ctx context.Context) {
	logger.Info("[Relay] 启动消息中继服务", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Relay] 停止服务")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

// ProcessPending 投递一批 PENDING 消息, 返回成功条数。
// 按 id 顺序发送, 某条失败后停止本批, 保证同一分区键的事件不乱序。
func (s *RelayService) ProcessPending(ctx context.Context) int {
	var messages []model.OutboxMessage
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("id ASC").
		Limit(s.batchSize).
		Find(&messages).Error; err != nil {
		logger.Error("[Relay] 查询消息失败", zap.Error(err))
		return 0
	}
	if len(messages) == 0 {
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			s.metrics.Relayed(false)
			logger.Warn("[Relay] 发送消息失败", zap.Uint64("id", msg.ID), zap.String("key", msg.Key), zap.Error(err))
			break
		}
		s.metrics.Relayed(true)

		// 发送成功才更新状态 => At-least-once, 消费端按 seq 幂等
		if err := s.db.WithContext(ctx).Model(&model.OutboxMessage{}).
			Where("id = ?", msg.ID).
			Update("status", model.OutboxSent).Error; err != nil {
			logger.Error("[Relay] 更新状态失败", zap.Uint64("id", msg.ID), zap.Error(err))
			break
		}
		sent++
	}
	logger.Debug("[Relay] 批次完成", zap.Int("pending", len(messages)), zap.Int("sent", sent))
	return sent
}
