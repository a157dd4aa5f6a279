package vesting

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"token-vesting/pkg/errno"
)

// Replay 按顺序应用已持久化的事件, 用于重启后恢复账本。
// 事件序号必须紧接当前状态。
func (l *Ledger) Replay(ctx context.Context, events []*Event) error {
	return l.mutate(ctx, func(ctx context.Context) error {
		for _, ev := range events {
			if err := l.apply(ev); err != nil {
				return fmt.Errorf("replay seq %d: %w", ev.Seq, err)
			}
		}
		l.log.Info("vesting ledger replayed", zap.Int("events", len(events)), zap.Uint64("seq", l.seq), zap.Uint64("pools", l.lastPoolID))
		return nil
	})
}

// apply 是唯一修改账本状态的地方, 实时操作与回放共用。
// 先完成全部检查再落状态, 出错时状态不变。
func (l *Ledger) apply(ev *Event) error {
	mutation, err := l.prepare(ev)
	if err != nil {
		if ev == nil {
			return errno.ErrJournalCorrupted.WithMessage(err.Error())
		}
		return corrupted(ev, err.Error())
	}
	mutation()
	return nil
}

// prepare 只做检查, 返回落状态的闭包。
// commit 在写日志之前调用它, 保证写入日志的事件一定能应用。
func (l *Ledger) prepare(ev *Event) (func(), error) {
	if ev == nil {
		return nil, errors.New("nil event")
	}
	if ev.Seq != l.seq+1 {
		return nil, fmt.Errorf("expected seq %d, got %d", l.seq+1, ev.Seq)
	}

	var (
		mutation func()
		err      error
	)
	switch ev.Type {
	case EventLinearPoolOpened, EventCliffPoolOpened:
		mutation, err = l.prepareOpened(ev)
	case EventClaimed:
		mutation, err = l.prepareClaimed(ev)
	case EventBeneficiaryMigrated:
		mutation, err = l.prepareMigrated(ev)
	case EventSignerUpdated:
		if ev.SignerUpdated == nil {
			return nil, errMissingPayload
		}
		signer := ev.SignerUpdated.Signer
		mutation = func() { l.signer = signer }
	case EventSwept:
		// 只影响托管余额, 账本计数不变
		if ev.Swept == nil {
			return nil, errMissingPayload
		}
		mutation = func() {}
	default:
		return nil, errors.New("unknown type")
	}
	if err != nil {
		return nil, err
	}
	return func() {
		mutation()
		l.seq = ev.Seq
	}, nil
}

var errMissingPayload = errors.New("missing payload")

func (l *Ledger) prepareOpened(ev *Event) (func(), error) {
	o := ev.PoolOpened
	if o == nil {
		return nil, errMissingPayload
	}
	if o.PoolID != l.lastPoolID+1 {
		return nil, fmt.Errorf("pool id %d out of sequence", o.PoolID)
	}
	if len(o.Beneficiaries) == 0 || len(o.Beneficiaries) != len(o.Allocations) {
		return nil, errors.New("roster length mismatch")
	}
	if l.guard.Used(o.Digest) {
		return nil, errors.New("digest already consumed")
	}
	if o.VestingEnd < o.Start {
		return nil, errors.New("vesting end before start")
	}
	isCliff := ev.Type == EventCliffPoolOpened
	if isCliff && (o.CliffPeriodEnd < o.Start || o.CliffVestingEnd < o.CliffPeriodEnd ||
		o.VestingEnd < o.CliffPeriodEnd || o.CliffBps > BpsDenominator) {
		return nil, errors.New("cliff schedule out of order")
	}

	allocations := make([]*uint256.Int, len(o.Allocations))
	total := new(uint256.Int)
	for i, s := range o.Allocations {
		a, err := parseAmount(s)
		if err != nil {
			return nil, err
		}
		allocations[i] = a
		total.Add(total, a)
	}
	if total.Dec() != o.Total {
		return nil, errors.New("total does not match allocations")
	}

	return func() {
		header := poolHeader{
			id:         o.PoolID,
			name:       o.Name,
			vester:     o.Vester,
			asset:      o.Asset,
			start:      o.Start,
			vestingEnd: o.VestingEnd,
			total:      total,
			roster:     make([]RosterEntry, len(o.Beneficiaries)),
		}
		for i, b := range o.Beneficiaries {
			header.roster[i] = RosterEntry{Beneficiary: b, Allocation: allocations[i]}
		}

		if isCliff {
			p := &cliffPool{
				poolHeader:      header,
				cliffVestingEnd: o.CliffVestingEnd,
				cliffPeriodEnd:  o.CliffPeriodEnd,
				cliffBps:        o.CliffBps,
				cliffRows:       make(map[common.Address]row, len(o.Beneficiaries)),
				nonCliffRows:    make(map[common.Address]row, len(o.Beneficiaries)),
			}
			for i, b := range o.Beneficiaries {
				c, n := splitCliff(allocations[i], o.CliffBps)
				// 两行都从锁定期结束开始计提
				p.cliffRows[b] = newActiveRow(c, o.CliffVestingEnd-o.CliffPeriodEnd, o.CliffPeriodEnd)
				p.nonCliffRows[b] = newActiveRow(n, o.VestingEnd-o.CliffPeriodEnd, o.CliffPeriodEnd)
			}
			l.cliff[o.PoolID] = p
		} else {
			p := &linearPool{
				poolHeader: header,
				rows:       make(map[common.Address]row, len(o.Beneficiaries)),
			}
			for i, b := range o.Beneficiaries {
				p.rows[b] = newActiveRow(allocations[i], o.VestingEnd-o.Start, o.Start)
			}
			l.linear[o.PoolID] = p
		}

		l.guard.consume(o.Digest)
		l.addAllocated(o.Asset, total)
		l.lastPoolID = o.PoolID
	}, nil
}

func (l *Ledger) prepareClaimed(ev *Event) (func(), error) {
	c := ev.Claimed
	if c == nil {
		return nil, errMissingPayload
	}
	amount, err := parseAmount(c.Amount)
	if err != nil {
		return nil, err
	}

	var rows map[common.Address]row
	switch c.Schedule {
	case ScheduleLinear:
		if p, ok := l.linear[c.PoolID]; ok {
			rows = p.rows
		}
	case ScheduleCliff:
		if p, ok := l.cliff[c.PoolID]; ok {
			rows = p.cliffRows
		}
	case ScheduleNonCliff:
		if p, ok := l.cliff[c.PoolID]; ok {
			rows = p.nonCliffRows
		}
	}
	r := activeOf(rows, c.Beneficiary)
	if r == nil {
		return nil, errors.New("claim against missing or migrated row")
	}
	if amount.Gt(r.remaining()) {
		return nil, errors.New("claim exceeds remaining")
	}
	allocated := l.allocated[c.Asset]
	if allocated == nil || amount.Gt(allocated) {
		return nil, errors.New("claim exceeds allocated counter")
	}

	return func() {
		r.settle(amount, ev.At)
		l.allocated[c.Asset] = new(uint256.Int).Sub(allocated, amount)
	}, nil
}

func (l *Ledger) prepareMigrated(ev *Event) (func(), error) {
	m := ev.Migrated
	if m == nil {
		return nil, errMissingPayload
	}
	old, newAddr := m.Deprecated, m.New

	if p, ok := l.linear[m.PoolID]; ok {
		r := activeOf(p.rows, old)
		if r == nil {
			return nil, errors.New("deprecated row not active")
		}
		if _, taken := p.rows[newAddr]; taken {
			return nil, errors.New("new address already present")
		}
		return func() {
			p.rows[newAddr] = r.clone()
			p.rows[old] = migratedRow{to: newAddr}
			p.roster = append(p.roster, RosterEntry{Beneficiary: newAddr, Allocation: r.allocation.Clone(), MigratedFrom: &old})
			l.deprecatedOf[newAddr] = old
		}, nil
	}

	p, ok := l.cliff[m.PoolID]
	if !ok {
		return nil, errors.New("unknown pool")
	}
	c, n := activeOf(p.cliffRows, old), activeOf(p.nonCliffRows, old)
	if c == nil || n == nil {
		return nil, errors.New("deprecated rows not active")
	}
	_, takenC := p.cliffRows[newAddr]
	_, takenN := p.nonCliffRows[newAddr]
	if takenC || takenN {
		return nil, errors.New("new address already present")
	}
	return func() {
		p.cliffRows[newAddr] = c.clone()
		p.nonCliffRows[newAddr] = n.clone()
		p.cliffRows[old] = migratedRow{to: newAddr}
		p.nonCliffRows[old] = migratedRow{to: newAddr}
		p.roster = append(p.roster, RosterEntry{
			Beneficiary:  newAddr,
			Allocation:   new(uint256.Int).Add(c.allocation, n.allocation),
			MigratedFrom: &old,
		})
		l.deprecatedOf[newAddr] = old
	}, nil
}

func (l *Ledger) addAllocated(asset common.Address, amount *uint256.Int) {
	current := l.allocated[asset]
	if current == nil {
		current = new(uint256.Int)
	}
	l.allocated[asset] = new(uint256.Int).Add(current, amount)
}

func corrupted(ev *Event, reason string) error {
	return errno.ErrJournalCorrupted.WithMessage(fmt.Sprintf("seq %d %s: %s", ev.Seq, ev.Type, reason))
}
