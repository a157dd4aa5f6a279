package vesting

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"token-vesting/pkg/errno"
)

// OpenLinearPool 开一个线性释放池, 从 caller 拉取全部分配额
func (l *Ledger) OpenLinearPool(ctx context.Context, caller common.Address, req *LinearPoolRequest) (uint64, error) {
	var poolID uint64
	err := l.mutate(ctx, func(ctx context.Context) error {
		now := l.clock.Now()
		if err := l.validator.ValidateLinear(now, req); err != nil {
			return err
		}
		if req.VestingEnd < now {
			return errno.ErrValidationFailed.WithMessage("vesting end before start")
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
			Type: EventLinearPoolOpened,
			At:   now,
			PoolOpened: &PoolOpened{
				PoolID:        l.lastPoolID + 1,
				Kind:          KindLinear,
				Name:          req.Name,
				Vester:        caller,
				Asset:         req.Asset,
				Start:         now,
				VestingEnd:    req.VestingEnd,
				Beneficiaries: append([]common.Address(nil), req.Beneficiaries...),
				Allocations:   amountStrings(req.Allocations),
				Total:         total.Dec(),
				Digest:        digest,
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

// Claimable 线性池当前可领取数量
func (l *Ledger) Claimable(ctx context.Context, poolID uint64, user common.Address) (*uint256.Int, error) {
	var amount *uint256.Int
	err := l.read(ctx, func() error {
		p, r, err := l.linearRow(poolID, user)
		if err != nil {
			return err
		}
		amount = r.accrue(l.clock.Now(), p.start, p.vestingEnd)
		return nil
	})
	return amount, err
}

// Claim caller 领取线性池中已释放的部分
func (l *Ledger) Claim(ctx context.Context, caller common.Address, poolID uint64) (Receipt, error) {
	var receipt Receipt
	err := l.mutate(ctx, func(ctx context.Context) error {
		p, r, err := l.linearRow(poolID, caller)
		if err != nil {
			return err
		}
		now := l.clock.Now()
		receipt, err = l.payout(ctx, &p.poolHeader, ScheduleLinear, caller, r, r.accrue(now, p.start, p.vestingEnd), now)
		return err
	})
	return receipt, err
}

func (l *Ledger) linearRow(poolID uint64, user common.Address) (*linearPool, *activeRow, error) {
	p, ok := l.linear[poolID]
	if !ok {
		if _, isCliff := l.cliff[poolID]; isCliff {
			return nil, nil, errno.ErrPoolNotFound.WithMessage(fmt.Sprintf("pool %d is not a linear pool", poolID))
		}
		return nil, nil, poolNotFound(poolID)
	}
	r := activeOf(p.rows, user)
	if r == nil || r.allocation.IsZero() {
		return nil, nil, errno.ErrNoAllocation.WithMessage(fmt.Sprintf("pool %d user %s", poolID, user.Hex()))
	}
	return p, r, nil
}

// payout 三种领取共用: 记录事件, 划转到受益人, 更新行
func (l *Ledger) payout(ctx context.Context, p *poolHeader, s Schedule, caller common.Address, r *activeRow, amount *uint256.Int, now uint64) (Receipt, error) {
	if amount.IsZero() {
		return Receipt{}, errno.ErrNothingToClaim.WithMessage(fmt.Sprintf("pool %d %s", p.id, s))
	}
	remaining := new(uint256.Int).Sub(r.remaining(), amount)

	ev := &Event{
		Type: EventClaimed,
		At:   now,
		Claimed: &Claimed{
			PoolID:      p.id,
			Schedule:    s,
			Beneficiary: caller,
			Asset:       p.asset,
			Amount:      amount.Dec(),
			Remaining:   remaining.Dec(),
		},
	}
	err := l.commit(ctx, ev, func(ctx context.Context) error {
		return l.custody.Push(ctx, p.asset, caller, amount)
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		PoolID:      p.id,
		Schedule:    s,
		Beneficiary: caller,
		Amount:      amount,
		Remaining:   remaining,
		At:          now,
	}, nil
}

// reserve 校验名册与分配额并求和, 同时确认资产计数器不会溢出
func (l *Ledger) reserve(asset common.Address, beneficiaries []common.Address, allocations []*uint256.Int) (*uint256.Int, error) {
	if len(beneficiaries) == 0 || len(beneficiaries) != len(allocations) {
		return nil, errno.ErrValidationFailed.WithMessage("beneficiaries and allocations length mismatch")
	}
	seen := make(map[common.Address]struct{}, len(beneficiaries))
	for _, b := range beneficiaries {
		if _, dup := seen[b]; dup {
			return nil, errno.ErrValidationFailed.WithMessage("duplicate beneficiary " + b.Hex())
		}
		seen[b] = struct{}{}
	}
	total := new(uint256.Int)
	for i, a := range allocations {
		if a == nil || a.IsZero() {
			return nil, errno.ErrValidationFailed.WithMessage(fmt.Sprintf("allocations[%d] must be positive", i))
		}
		if _, overflow := total.AddOverflow(total, a); overflow {
			return nil, errno.ErrValidationFailed.WithMessage("total allocation overflows")
		}
	}
	current := l.allocated[asset]
	if current == nil {
		current = new(uint256.Int)
	}
	if _, overflow := new(uint256.Int).AddOverflow(current, total); overflow {
		return nil, errno.ErrValidationFailed.WithMessage("allocated counter overflows")
	}
	return total, nil
}
