package vesting

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"token-vesting/pkg/errno"
)

// OpenCliffPool 开一个悬崖池, 每个受益人拆成 cliff / non-cliff 两行
func (l *Ledger) OpenCliffPool(ctx context.Context, caller common.Address, req *CliffPoolRequest) (uint64, error) {
	var poolID uint64
	err := l.mutate(ctx, func(ctx context.Context) error {
		now := l.clock.Now()
		if err := l.validator.ValidateCliff(now, req); err != nil {
			return err
		}
		if err := checkCliffOrdering(now, req); err != nil {
			return err
		}
		digest, err := l.guard.Authorize(req.Name, req.Asset, req.Auth.Tag, req.Auth.Signature, l.signer)
		if err != nil {
			return err
		}
		total, err := l.reserve(req.Asset, req.Beneficiaries, req.Allocations)
		if err != nil {
			return err
		}

		ev := &Event{
			Type: EventCliffPoolOpened,
			At:   now,
			PoolOpened: &PoolOpened{
				PoolID:          l.lastPoolID + 1,
				Kind:            KindCliff,
				Name:            req.Name,
				Vester:          caller,
				Asset:           req.Asset,
				Start:           now,
				VestingEnd:      req.VestingEnd,
				CliffVestingEnd: req.CliffVestingEnd,
				CliffPeriodEnd:  req.CliffPeriodEnd,
				CliffBps:        req.CliffBps,
				Beneficiaries:   append([]common.Address(nil), req.Beneficiaries...),
				Allocations:     amountStrings(req.Allocations),
				Total:           total.Dec(),
				Digest:          digest,
			},
		}
		err = l.commit(ctx, ev, func(ctx context.Context) error {
			return l.custody.Pull(ctx, req.Asset, caller, total)
		})
		if err != nil {
			return err
		}
		poolID = ev.PoolOpened.PoolID
		return nil
	})
	return poolID, err
}

// checkCliffOrdering 账本自身也守住时间顺序, 不完全依赖外部校验器
func checkCliffOrdering(now uint64, req *CliffPoolRequest) error {
	switch {
	case req.CliffBps > BpsDenominator:
		return errno.ErrValidationFailed.WithMessage(fmt.Sprintf("cliff bps %d > %d", req.CliffBps, BpsDenominator))
	case req.CliffPeriodEnd < now:
		return errno.ErrValidationFailed.WithMessage("cliff period end before start")
	case req.CliffVestingEnd < req.CliffPeriodEnd:
		return errno.ErrValidationFailed.WithMessage("cliff vesting end before cliff period end")
	case req.VestingEnd < req.CliffPeriodEnd:
		return errno.ErrValidationFailed.WithMessage("vesting end before cliff period end")
	}
	return nil
}

// splitCliff cliffAlloc = allocation * bps / 10000, nonCliff 取余下部分
func splitCliff(allocation *uint256.Int, bps uint64) (cliffAlloc, nonCliffAlloc *uint256.Int) {
	cliffAlloc, _ = new(uint256.Int).MulDivOverflow(allocation, uint256.NewInt(bps), uint256.NewInt(BpsDenominator))
	nonCliffAlloc = new(uint256.Int).Sub(allocation, cliffAlloc)
	return cliffAlloc, nonCliffAlloc
}

// CliffClaimable 悬崖部分当前可领取数量, 锁定期内为 0
func (l *Ledger) CliffClaimable(ctx context.Context, poolID uint64, user common.Address) (*uint256.Int, error) {
	var amount *uint256.Int
	err := l.read(ctx, func() error {
		p, r, err := l.cliffRow(poolID, user, ScheduleCliff)
		if err != nil {
			return err
		}
		amount = r.accrue(l.clock.Now(), p.cliffPeriodEnd, p.cliffVestingEnd)
		return nil
	})
	return amount, err
}

// NonCliffClaimable 非悬崖部分当前可领取数量, 锁定期内为 0
func (l *Ledger) NonCliffClaimable(ctx context.Context, poolID uint64, user common.Address) (*uint256.Int, error) {
	var amount *uint256.Int
	err := l.read(ctx, func() error {
		p, r, err := l.cliffRow(poolID, user, ScheduleNonCliff)
		if err != nil {
			return err
		}
		amount = r.accrue(l.clock.Now(), p.cliffPeriodEnd, p.vestingEnd)
		return nil
	})
	return amount, err
}

func (l *Ledger) ClaimCliff(ctx context.Context, caller common.Address, poolID uint64) (Receipt, error) {
	return l.claimCliffSchedule(ctx, caller, poolID, ScheduleCliff)
}

func (l *Ledger) ClaimNonCliff(ctx context.Context, caller common.Address, poolID uint64) (Receipt, error) {
	return l.claimCliffSchedule(ctx, caller, poolID, ScheduleNonCliff)
}

func (l *Ledger) claimCliffSchedule(ctx context.Context, caller common.Address, poolID uint64, s Schedule) (Receipt, error) {
	var receipt Receipt
	err := l.mutate(ctx, func(ctx context.Context) error {
		p, ok := l.cliff[poolID]
		if !ok {
			return l.notCliffPool(poolID)
		}
		now := l.clock.Now()
		if now <= p.cliffPeriodEnd {
			return errno.ErrCliffNotOver.WithMessage(fmt.Sprintf("pool %d unlocks after %d", poolID, p.cliffPeriodEnd))
		}
		_, r, err := l.cliffRow(poolID, caller, s)
		if err != nil {
			return err
		}
		end := p.vestingEnd
		if s == ScheduleCliff {
			end = p.cliffVestingEnd
		}
		receipt, err = l.payout(ctx, &p.poolHeader, s, caller, r, r.accrue(now, p.cliffPeriodEnd, end), now)
		return err
	})
	return receipt, err
}

func (l *Ledger) cliffRow(poolID uint64, user common.Address, s Schedule) (*cliffPool, *activeRow, error) {
	p, ok := l.cliff[poolID]
	if !ok {
		return nil, nil, l.notCliffPool(poolID)
	}
	rows := p.nonCliffRows
	if s == ScheduleCliff {
		rows = p.cliffRows
	}
	r := activeOf(rows, user)
	if r == nil || r.allocation.IsZero() {
		return nil, nil, errno.ErrNoAllocation.WithMessage(fmt.Sprintf("pool %d %s user %s", poolID, s, user.Hex()))
	}
	return p, r, nil
}

func (l *Ledger) notCliffPool(poolID uint64) error {
	if _, isLinear := l.linear[poolID]; isLinear {
		return errno.ErrPoolNotFound.WithMessage(fmt.Sprintf("pool %d is not a cliff pool", poolID))
	}
	return poolNotFound(poolID)
}

// ClaimableOf 按子账本分发的查询入口
func (l *Ledger) ClaimableOf(ctx context.Context, poolID uint64, user common.Address, s Schedule) (*uint256.Int, error) {
	switch s {
	case ScheduleLinear:
		return l.Claimable(ctx, poolID, user)
	case ScheduleCliff:
		return l.CliffClaimable(ctx, poolID, user)
	case ScheduleNonCliff:
		return l.NonCliffClaimable(ctx, poolID, user)
	}
	return nil, errno.ErrValidationFailed.WithMessage("unknown schedule " + string(s))
}

// ClaimOf 按子账本分发的领取入口
func (l *Ledger) ClaimOf(ctx context.Context, caller common.Address, poolID uint64, s Schedule) (Receipt, error) {
	switch s {
	case ScheduleLinear:
		return l.Claim(ctx, caller, poolID)
	case ScheduleCliff:
		return l.ClaimCliff(ctx, caller, poolID)
	case ScheduleNonCliff:
		return l.ClaimNonCliff(ctx, caller, poolID)
	}
	return Receipt{}, errno.ErrValidationFailed.WithMessage("unknown schedule " + string(s))
}
