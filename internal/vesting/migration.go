package vesting

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"token-vesting/pkg/errno"
)

// Reassign 把 deprecated 在池内未领取的余额迁到 newAddr, 旧行冻结。
// 名册追加的条目记录迁移前的分配额, 并标注来源地址。
func (l *Ledger) Reassign(ctx context.Context, caller common.Address, poolID uint64, deprecated, newAddr common.Address) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		if err := l.requireOwner(caller); err != nil {
			return err
		}
		if newAddr == (common.Address{}) {
			return errno.ErrValidationFailed.WithMessage("new address is zero")
		}
		if newAddr == deprecated {
			return errno.ErrValidationFailed.WithMessage("new address equals deprecated address")
		}

		var (
			kind       Kind
			allocation *uint256.Int
		)
		noAllocation := errno.ErrNoAllocation.WithMessage(fmt.Sprintf("pool %d user %s", poolID, deprecated.Hex()))
		occupied := errno.ErrValidationFailed.WithMessage(newAddr.Hex() + " already has an allocation in this pool")

		if p, ok := l.linear[poolID]; ok {
			r := activeOf(p.rows, deprecated)
			if r == nil || r.allocation.IsZero() {
				return noAllocation
			}
			if _, taken := p.rows[newAddr]; taken {
				return occupied
			}
			kind, allocation = KindLinear, r.allocation.Clone()
		} else if p, ok := l.cliff[poolID]; ok {
			c, n := activeOf(p.cliffRows, deprecated), activeOf(p.nonCliffRows, deprecated)
			if c == nil || n == nil {
				return noAllocation
			}
			allocation = new(uint256.Int).Add(c.allocation, n.allocation)
			if allocation.IsZero() {
				return noAllocation
			}
			if _, taken := p.cliffRows[newAddr]; taken {
				return occupied
			}
			if _, taken := p.nonCliffRows[newAddr]; taken {
				return occupied
			}
			kind = KindCliff
		} else {
			return poolNotFound(poolID)
		}

		ev := &Event{
			Type: EventBeneficiaryMigrated,
			At:   l.clock.Now(),
			Migrated: &Migrated{
				PoolID:     poolID,
				Kind:       kind,
				Deprecated: deprecated,
				New:        newAddr,
				Allocation: allocation.Dec(),
			},
		}
		return l.commit(ctx, ev, nil)
	})
}
