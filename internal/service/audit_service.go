package service

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"token-vesting/internal/service/mq"
	"token-vesting/internal/vesting"
	"token-vesting/pkg/logger"
	"token-vesting/pkg/monitor"
)

// maxPendingSeqs 水位线之上最多记住的 seq 数, 超过后认为缺口里的事件已丢失
const maxPendingSeqs = 10000

// AuditService 订阅账本事件流, 记录审计日志与指标。
// 投递是 at-least-once, 已处理过的 seq 直接跳过。
// 不同池的事件落在不同分区, 全局 seq 可能乱序到达。
type AuditService struct {
	consumer mq.Consumer
	topic    string
	metrics  *monitor.VestingMetrics

	mu        sync.Mutex
	watermark uint64              // 不超过它的 seq 都已处理
	pending   map[uint64]struct{} // 水位线之上已处理的 seq
	lastSeq   uint64
}

func NewAuditService(consumer mq.Consumer, topic string, metrics *monitor.VestingMetrics) *AuditService {
	return &AuditService{
		consumer: consumer,
		topic:    topic,
		metrics:  metrics,
		pending:  make(map[uint64]struct{}),
	}
}

func (s *AuditService) Start(ctx context.Context) error {
	return s.consumer.Subscribe(ctx, s.topic, s.Handle)
}

// LastSeq 已处理的最大事件序号
func (s *AuditService) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// Watermark 连续处理到的事件序号
func (s *AuditService) Watermark() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// markSeen 记录 seq, 已处理过时返回 false
func (s *AuditService) markSeen(seq uint64) bool {
	if seq <= s.watermark {
		return false
	}
	if _, ok := s.pending[seq]; ok {
		return false
	}
	s.pending[seq] = struct{}{}
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
	s.advance()
	if len(s.pending) > maxPendingSeqs {
		lowest := s.lastSeq
		for p := range s.pending {
			if p < lowest {
				lowest = p
			}
		}
		logger.Warn("[Audit] 事件缺口过久未补齐, 跳过", zap.Uint64("from", s.watermark+1), zap.Uint64("to", lowest-1))
		s.watermark = lowest - 1
		s.advance()
	}
	return true
}

func (s *AuditService) advance() {
	for {
		if _, ok := s.pending[s.watermark+1]; !ok {
			return
		}
		delete(s.pending, s.watermark+1)
		s.watermark++
	}
}

func (s *AuditService) Handle(msg *mq.Message) error {
	var ev vesting.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		// 格式错误的消息重试也没用, 记录后确认
		logger.Error("[Audit] 无法解析事件", zap.String("id", msg.ID), zap.Error(err))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.markSeen(ev.Seq) {
		logger.Debug("[Audit] 重复事件", zap.Uint64("seq", ev.Seq))
		return nil
	}
	s.metrics.Consumed(string(ev.Type))

	fields := []zap.Field{
		zap.Uint64("seq", ev.Seq),
		zap.String("type", string(ev.Type)),
		zap.Uint64("at", ev.At),
		zap.String("key", msg.Key),
	}
	switch {
	case ev.Claimed != nil:
		fields = append(fields,
			zap.Uint64("pool_id", ev.Claimed.PoolID),
			zap.String("beneficiary", ev.Claimed.Beneficiary.Hex()),
			zap.String("amount", ev.Claimed.Amount))
	case ev.PoolOpened != nil:
		fields = append(fields,
			zap.Uint64("pool_id", ev.PoolOpened.PoolID),
			zap.String("asset", ev.PoolOpened.Asset.Hex()),
			zap.String("total", ev.PoolOpened.Total))
	case ev.Migrated != nil:
		fields = append(fields,
			zap.Uint64("pool_id", ev.Migrated.PoolID),
			zap.String("from", ev.Migrated.Deprecated.Hex()),
			zap.String("to", ev.Migrated.New.Hex()))
	case ev.Swept != nil:
		fields = append(fields, zap.String("to", ev.Swept.To.Hex()), zap.String("amount", ev.Swept.Amount))
	case ev.SignerUpdated != nil:
		fields = append(fields, zap.String("signer", ev.SignerUpdated.Signer.Hex()))
	}
	logger.Info("[Audit] vesting event", fields...)
	return nil
}
