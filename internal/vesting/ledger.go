package vesting

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"token-vesting/pkg/errno"
)

// Custody 托管资产的划转接口
type Custody interface {
	Pull(ctx context.Context, asset, from common.Address, amount *uint256.Int) error
	Push(ctx context.Context, asset, to common.Address, amount *uint256.Int) error
	BalanceOf(ctx context.Context, asset common.Address) (*uint256.Int, error)
}

// ScheduleValidator 在进入账本前拒绝格式错误的排期参数
type ScheduleValidator interface {
	ValidateLinear(now uint64, req *LinearPoolRequest) error
	ValidateCliff(now uint64, req *CliffPoolRequest) error
}

// Clock 返回 unix 秒
type Clock interface {
	Now() uint64
}

type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

type Options struct {
	Owner     common.Address
	Signer    common.Address
	Custody   Custody
	Validator ScheduleValidator
	Verifier  Verifier
	Journal   Journal
	Clock     Clock
	Logger    *zap.Logger
}

type linearPool struct {
	poolHeader
	rows map[common.Address]row
}

type cliffPool struct {
	poolHeader
	cliffVestingEnd uint64
	cliffPeriodEnd  uint64
	cliffBps        uint64
	cliffRows       map[common.Address]row
	nonCliffRows    map[common.Address]row
}

type poolHeader struct {
	id         uint64
	name       string
	vester     common.Address
	asset      common.Address
	start      uint64
	vestingEnd uint64
	total      *uint256.Int
	roster     []RosterEntry
}

// Ledger 归属账本。同一时刻只有一个写操作在执行, 写锁覆盖事件提交与资产划转。
type Ledger struct {
	mu       sync.RWMutex
	inEffect atomic.Bool // 持锁的写操作正在执行托管划转

	owner     common.Address
	signer    common.Address
	validator ScheduleValidator
	guard     *ReplayGuard
	custody   Custody
	journal   Journal
	clock     Clock
	log       *zap.Logger

	seq          uint64 // 最后一个已应用事件的序号
	lastPoolID   uint64
	linear       map[uint64]*linearPool
	cliff        map[uint64]*cliffPool
	allocated    map[common.Address]*uint256.Int
	deprecatedOf map[common.Address]common.Address
}

func New(opts Options) (*Ledger, error) {
	if opts.Custody == nil || opts.Validator == nil || opts.Verifier == nil {
		return nil, errors.New("vesting: custody, validator and verifier are required")
	}
	if opts.Owner == (common.Address{}) {
		return nil, errors.New("vesting: owner is required")
	}
	if opts.Journal == nil {
		opts.Journal = NewMemoryJournal()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Ledger{
		owner:        opts.Owner,
		signer:       opts.Signer,
		validator:    opts.Validator,
		guard:        NewReplayGuard(opts.Verifier),
		custody:      opts.Custody,
		journal:      opts.Journal,
		clock:        opts.Clock,
		log:          opts.Logger,
		linear:       make(map[uint64]*linearPool),
		cliff:        make(map[uint64]*cliffPool),
		allocated:    make(map[common.Address]*uint256.Int),
		deprecatedOf: make(map[common.Address]common.Address),
	}, nil
}

type mutationKey struct{}

// InMutation 报告 ctx 是否来自账本写操作内部 (例如托管回调)
func InMutation(ctx context.Context) bool {
	v, _ := ctx.Value(mutationKey{}).(bool)
	return v
}

// mutate 串行执行写操作, 拒绝从写操作内部发起的嵌套写操作。
// 回调丢弃了 ctx 时, 通过调用栈识别出嵌套调用, 不会在写锁上死等。
func (l *Ledger) mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	if InMutation(ctx) {
		return errno.ErrReentrant
	}
	if !l.mu.TryLock() {
		if l.nested() {
			return errno.ErrReentrant
		}
		l.mu.Lock()
	}
	defer l.mu.Unlock()
	return fn(context.WithValue(ctx, mutationKey{}, true))
}

// read 写操作内部的查询已经持有写锁, 直接读
func (l *Ledger) read(ctx context.Context, fn func() error) error {
	if !InMutation(ctx) {
		if !l.mu.TryRLock() {
			if l.nested() {
				return fn()
			}
			l.mu.RLock()
		}
		defer l.mu.RUnlock()
	}
	return fn()
}

// runEffect 执行托管划转, 期间的回调都在这个栈帧之下
func (l *Ledger) runEffect(ctx context.Context, effect func(ctx context.Context) error) error {
	l.inEffect.Store(true)
	defer l.inEffect.Store(false)
	return effect(ctx)
}

// nested 当前 goroutine 是否处在本账本正在执行的划转回调里
func (l *Ledger) nested() bool {
	return l.inEffect.Load() && onEffectStack()
}

var effectFrame = reflect.TypeOf((*Ledger)(nil)).Elem().PkgPath() + ".(*Ledger).runEffect"

func onEffectStack() bool {
	pc := make([]uintptr, 256)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])
	for {
		f, more := frames.Next()
		if f.Function == effectFrame {
			return true
		}
		if !more {
			return false
		}
	}
}

// commit 提交事件并执行划转, 成功后才修改内存状态
func (l *Ledger) commit(ctx context.Context, ev *Event, effect func(ctx context.Context) error) error {
	ev.Seq = l.seq + 1
	mutation, err := l.prepare(ev)
	if err != nil {
		// 无法应用的事件不能进日志, 否则回放会卡在这一条
		return errno.ErrValidationFailed.WithMessage(err.Error())
	}
	err = l.journal.Record(ctx, ev, func(ctx context.Context) error {
		if effect == nil {
			return nil
		}
		return l.runEffect(ctx, effect)
	})
	if err != nil {
		return err
	}
	mutation()
	l.log.Debug("vesting event committed", zap.Uint64("seq", ev.Seq), zap.String("type", string(ev.Type)), zap.Uint64("pool_id", ev.PoolID()))
	return nil
}

func (l *Ledger) requireOwner(caller common.Address) error {
	if caller != l.owner {
		return errno.ErrUnauthorized.WithMessage(caller.Hex() + " is not owner")
	}
	return nil
}

func (l *Ledger) Owner() common.Address {
	return l.owner
}

func (l *Ledger) Signer(ctx context.Context) common.Address {
	var s common.Address
	_ = l.read(ctx, func() error {
		s = l.signer
		return nil
	})
	return s
}

// Seq 最后一个已应用事件的序号
func (l *Ledger) Seq(ctx context.Context) uint64 {
	var s uint64
	_ = l.read(ctx, func() error {
		s = l.seq
		return nil
	})
	return s
}

// Allocated 某资产当前已分配未领取的总量
func (l *Ledger) Allocated(ctx context.Context, asset common.Address) *uint256.Int {
	out := new(uint256.Int)
	_ = l.read(ctx, func() error {
		if v, ok := l.allocated[asset]; ok {
			out.Set(v)
		}
		return nil
	})
	return out
}

// Assets 出现过的全部资产
func (l *Ledger) Assets(ctx context.Context) []common.Address {
	var out []common.Address
	_ = l.read(ctx, func() error {
		for a := range l.allocated {
			out = append(out, a)
		}
		return nil
	})
	return out
}

// DeprecatedAddressOf 新地址替换掉的旧地址, 仅用于审计
func (l *Ledger) DeprecatedAddressOf(ctx context.Context, newAddr common.Address) (common.Address, bool) {
	var (
		old common.Address
		ok  bool
	)
	_ = l.read(ctx, func() error {
		old, ok = l.deprecatedOf[newAddr]
		return nil
	})
	return old, ok
}

// Pool 查询池元数据
func (l *Ledger) Pool(ctx context.Context, poolID uint64) (PoolInfo, error) {
	var info PoolInfo
	err := l.read(ctx, func() error {
		if p, ok := l.linear[poolID]; ok {
			info = p.header(KindLinear)
			return nil
		}
		if p, ok := l.cliff[poolID]; ok {
			info = p.header(KindCliff)
			info.CliffVestingEnd = p.cliffVestingEnd
			info.CliffPeriodEnd = p.cliffPeriodEnd
			info.NonCliffPeriod = p.vestingEnd - p.cliffPeriodEnd
			info.CliffBps = p.cliffBps
			return nil
		}
		return poolNotFound(poolID)
	})
	return info, err
}

// PoolCount 已开池数量, 也是最后一个池 id
func (l *Ledger) PoolCount(ctx context.Context) uint64 {
	var n uint64
	_ = l.read(ctx, func() error {
		n = l.lastPoolID
		return nil
	})
	return n
}

// Allocations 查询某地址在池内的所有子账本行
func (l *Ledger) Allocations(ctx context.Context, poolID uint64, user common.Address) ([]AllocationView, error) {
	var out []AllocationView
	err := l.read(ctx, func() error {
		if p, ok := l.linear[poolID]; ok {
			if r, ok := p.rows[user]; ok {
				out = append(out, r.view(ScheduleLinear))
			}
		} else if p, ok := l.cliff[poolID]; ok {
			if r, ok := p.cliffRows[user]; ok {
				out = append(out, r.view(ScheduleCliff))
			}
			if r, ok := p.nonCliffRows[user]; ok {
				out = append(out, r.view(ScheduleNonCliff))
			}
		} else {
			return poolNotFound(poolID)
		}
		if len(out) == 0 {
			return errno.ErrNoAllocation.WithMessage(user.Hex())
		}
		return nil
	})
	return out, err
}

func (h *poolHeader) header(kind Kind) PoolInfo {
	roster := make([]RosterEntry, len(h.roster))
	for i, e := range h.roster {
		roster[i] = RosterEntry{Beneficiary: e.Beneficiary, Allocation: e.Allocation.Clone()}
		if e.MigratedFrom != nil {
			from := *e.MigratedFrom
			roster[i].MigratedFrom = &from
		}
	}
	return PoolInfo{
		ID:         h.id,
		Kind:       kind,
		Name:       h.name,
		Vester:     h.vester,
		Asset:      h.asset,
		Start:      h.start,
		VestingEnd: h.vestingEnd,
		Total:      h.total.Clone(),
		Roster:     roster,
	}
}

func poolNotFound(id uint64) error {
	return errno.ErrPoolNotFound.WithMessage(fmt.Sprintf("pool %d", id))
}
