package vesting

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"token-vesting/pkg/errno"
)

// Unallocated 托管余额减去已分配量, 不足时为 0
func (l *Ledger) Unallocated(ctx context.Context, asset common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := l.read(ctx, func() error {
		var err error
		out, err = l.unallocated(ctx, asset)
		return err
	})
	return out, err
}

func (l *Ledger) unallocated(ctx context.Context, asset common.Address) (*uint256.Int, error) {
	balance, err := l.custody.BalanceOf(ctx, asset)
	if err != nil {
		return nil, err
	}
	allocated := l.allocated[asset]
	if allocated == nil {
		return balance.Clone(), nil
	}
	if balance.Gt(allocated) {
		return new(uint256.Int).Sub(balance, allocated), nil
	}
	return new(uint256.Int), nil
}

// Sweep 管理员把未分配的余额转出, 不能触碰已分配部分
func (l *Ledger) Sweep(ctx context.Context, caller, asset common.Address, amount *uint256.Int, to common.Address) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		if err := l.requireOwner(caller); err != nil {
			return err
		}
		if amount == nil || amount.IsZero() {
			return errno.ErrValidationFailed.WithMessage("sweep amount must be positive")
		}
		if to == (common.Address{}) {
			return errno.ErrValidationFailed.WithMessage("sweep recipient is zero")
		}
		free, err := l.unallocated(ctx, asset)
		if err != nil {
			return err
		}
		if amount.Gt(free) {
			return errno.ErrExceedsUnallocated.WithMessage("unallocated " + free.Dec())
		}

		ev := &Event{
			Type:  EventSwept,
			At:    l.clock.Now(),
			Swept: &Swept{Asset: asset, To: to, Amount: amount.Dec()},
		}
		return l.commit(ctx, ev, func(ctx context.Context) error {
			return l.custody.Push(ctx, asset, to, amount)
		})
	})
}

// SetSigner 更换开池授权签名人
func (l *Ledger) SetSigner(ctx context.Context, caller, signer common.Address) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		if err := l.requireOwner(caller); err != nil {
			return err
		}
		if signer == (common.Address{}) {
			return errno.ErrValidationFailed.WithMessage("signer is zero")
		}
		ev := &Event{
			Type:          EventSignerUpdated,
			At:            l.clock.Now(),
			SignerUpdated: &SignerUpdated{Previous: l.signer, Signer: signer},
		}
		return l.commit(ctx, ev, nil)
	})
}

// SetValidator 替换排期校验器, 校验器是代码引用, 不写事件
func (l *Ledger) SetValidator(ctx context.Context, caller common.Address, v ScheduleValidator) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		if err := l.requireOwner(caller); err != nil {
			return err
		}
		if v == nil {
			return errno.ErrValidationFailed.WithMessage("validator is nil")
		}
		l.validator = v
		return nil
	})
}
