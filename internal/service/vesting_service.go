package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"token-vesting/internal/vesting"
	"token-vesting/pkg/amount"
	"token-vesting/pkg/cache"
	"token-vesting/pkg/logger"
	"token-vesting/pkg/monitor"
)

// VestingService 面向 HTTP 层的账本门面: 池元数据走缓存, 写操作上报指标
type VestingService struct {
	ledger  *vesting.Ledger
	cache   cache.Cache
	ttl     time.Duration
	metrics *monitor.VestingMetrics
}

func NewVestingService(ledger *vesting.Ledger, c cache.Cache, ttl time.Duration, metrics *monitor.VestingMetrics) *VestingService {
	return &VestingService{ledger: ledger, cache: c, ttl: ttl, metrics: metrics}
}

func (s *VestingService) Ledger() *vesting.Ledger {
	return s.ledger
}

func (s *VestingService) OpenLinearPool(ctx context.Context, caller common.Address, req *vesting.LinearPoolRequest) (uint64, error) {
	id, err := s.ledger.OpenLinearPool(ctx, caller, req)
	if err != nil {
		return 0, err
	}
	s.metrics.PoolOpened(string(vesting.KindLinear))
	logger.Info("linear pool opened", zap.Uint64("pool_id", id), zap.String("vester", caller.Hex()), zap.Int("beneficiaries", len(req.Beneficiaries)))
	return id, nil
}

func (s *VestingService) OpenCliffPool(ctx context.Context, caller common.Address, req *vesting.CliffPoolRequest) (uint64, error) {
	id, err := s.ledger.OpenCliffPool(ctx, caller, req)
	if err != nil {
		return 0, err
	}
	s.metrics.PoolOpened(string(vesting.KindCliff))
	logger.Info("cliff pool opened", zap.Uint64("pool_id", id), zap.String("vester", caller.Hex()), zap.Uint64("cliff_bps", req.CliffBps))
	return id, nil
}

// Pool 池元数据, 先查缓存
func (s *VestingService) Pool(ctx context.Context, poolID uint64) (vesting.PoolInfo, error) {
	var info vesting.PoolInfo
	key := poolKey(poolID)
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &info); err == nil {
			return info, nil
		}
	}

	info, err := s.ledger.Pool(ctx, poolID)
	if err != nil {
		return vesting.PoolInfo{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, info, s.ttl); err != nil {
			logger.Warn("pool cache set failed", zap.Uint64("pool_id", poolID), zap.Error(err))
		}
	}
	return info, nil
}

func (s *VestingService) Claimable(ctx context.Context, poolID uint64, user common.Address, schedule vesting.Schedule) (*uint256.Int, error) {
	return s.ledger.ClaimableOf(ctx, poolID, user, schedule)
}

func (s *VestingService) Claim(ctx context.Context, caller common.Address, poolID uint64, schedule vesting.Schedule) (vesting.Receipt, error) {
	receipt, err := s.ledger.ClaimOf(ctx, caller, poolID, schedule)
	asset := ""
	if err == nil {
		if info, perr := s.Pool(ctx, poolID); perr == nil {
			asset = info.Asset.Hex()
		}
	}
	s.metrics.Claim(string(schedule), asset, amount.Float(receipt.Amount), err)
	if err != nil {
		return vesting.Receipt{}, err
	}
	logger.Info("vesting claimed",
		zap.Uint64("pool_id", poolID),
		zap.String("schedule", string(schedule)),
		zap.String("beneficiary", caller.Hex()),
		zap.String("amount", receipt.Amount.Dec()))
	return receipt, nil
}

func (s *VestingService) Allocations(ctx context.Context, poolID uint64, user common.Address) ([]vesting.AllocationView, error) {
	return s.ledger.Allocations(ctx, poolID, user)
}

// MigratedFrom 新地址替换的旧地址, 没有迁移记录时 ok 为 false
func (s *VestingService) MigratedFrom(ctx context.Context, newAddr common.Address) (common.Address, bool) {
	return s.ledger.DeprecatedAddressOf(ctx, newAddr)
}

func (s *VestingService) Unallocated(ctx context.Context, asset common.Address) (*uint256.Int, error) {
	return s.ledger.Unallocated(ctx, asset)
}

// Reassign 迁移后名册变化, 删除池缓存
func (s *VestingService) Reassign(ctx context.Context, caller common.Address, poolID uint64, deprecated, newAddr common.Address) error {
	if err := s.ledger.Reassign(ctx, caller, poolID, deprecated, newAddr); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, poolKey(poolID)); err != nil {
			logger.Warn("pool cache invalidate failed", zap.Uint64("pool_id", poolID), zap.Error(err))
		}
	}
	s.metrics.Migrated()
	logger.Info("beneficiary migrated", zap.Uint64("pool_id", poolID), zap.String("from", deprecated.Hex()), zap.String("to", newAddr.Hex()))
	return nil
}

func (s *VestingService) SetSigner(ctx context.Context, caller, signer common.Address) error {
	if err := s.ledger.SetSigner(ctx, caller, signer); err != nil {
		return err
	}
	logger.Info("pool signer rotated", zap.String("signer", signer.Hex()))
	return nil
}

func (s *VestingService) Sweep(ctx context.Context, caller, asset common.Address, amt *uint256.Int, to common.Address) error {
	if err := s.ledger.Sweep(ctx, caller, asset, amt, to); err != nil {
		return err
	}
	s.metrics.Swept(asset.Hex(), amount.Float(amt))
	logger.Info("unallocated swept", zap.String("asset", asset.Hex()), zap.String("to", to.Hex()), zap.String("amount", amt.Dec()))
	return nil
}

func poolKey(poolID uint64) string {
	return fmt.Sprintf("vesting:pool:%d", poolID)
}
