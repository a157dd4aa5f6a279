package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"token-vesting/internal/vesting"
	"token-vesting/pkg/amount"
	"token-vesting/pkg/logger"
	"token-vesting/pkg/monitor"
	"token-vesting/pkg/utils/lock"
)

const reportLockKey = "cron:lock:escrow_report"

// EscrowReport 单个资产的托管快照
type EscrowReport struct {
	Asset       string `json:"asset"`
	Allocated   string `json:"allocated"`
	Unallocated string `json:"unallocated"`
}

// EscrowReporter 定时刷新每个资产的已分配 / 未分配指标, 多实例时用分布式锁只跑一份
type EscrowReporter struct {
	cron    *cron.Cron
	spec    string
	ledger  *vesting.Ledger
	locker  lock.DistributedLock
	metrics *monitor.VestingMetrics
}

func NewEscrowReporter(ledger *vesting.Ledger, locker lock.DistributedLock, spec string, metrics *monitor.VestingMetrics) *EscrowReporter {
	return &EscrowReporter{
		cron:    cron.New(),
		spec:    spec,
		ledger:  ledger,
		locker:  locker,
		metrics: metrics,
	}
}

func (r *EscrowReporter) Start() error {
	if _, err := r.cron.AddFunc(r.spec, func() { r.Run(context.Background()) }); err != nil {
		return err
	}
	r.cron.Start()
	logger.Info("Escrow reporter started", zap.String("spec", r.spec))
	return nil
}

func (r *EscrowReporter) Stop() {
	<-r.cron.Stop().Done()
	logger.Info("Escrow reporter stopped")
}

// Run 执行一次上报; 拿不到锁说明其他实例正在执行, 直接跳过
func (r *EscrowReporter) Run(ctx context.Context) []EscrowReport {
	if r.locker != nil {
		locked, err := r.locker.Acquire(ctx, reportLockKey, 30*time.Second)
		if err != nil || !locked {
			logger.Debug("EscrowReporter: 获取锁失败或已有实例在运行", zap.Error(err))
			return nil
		}
		defer func() { _ = r.locker.Release(ctx, reportLockKey) }()
	}

	start := time.Now()
	defer r.metrics.ObserveReport(start)

	var reports []EscrowReport
	for _, asset := range r.ledger.Assets(ctx) {
		allocated := r.ledger.Allocated(ctx, asset)
		free, err := r.ledger.Unallocated(ctx, asset)
		if err != nil {
			logger.Error("EscrowReporter: 查询托管余额失败", zap.String("asset", asset.Hex()), zap.Error(err))
			continue
		}
		r.metrics.Escrow(asset.Hex(), amount.Float(allocated), amount.Float(free))
		reports = append(reports, EscrowReport{Asset: asset.Hex(), Allocated: allocated.Dec(), Unallocated: free.Dec()})
	}
	logger.Info("escrow report", zap.Int("assets", len(reports)))
	return reports
}
