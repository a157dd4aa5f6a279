package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"token-vesting/pkg/errno"
)

// Transfer 一次托管划转, 交给 Hook 观察
type Transfer struct {
	Op     string // "pull" / "push"
	Asset  common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

// Hook 在划转完成后被调用, 返回错误会让划转回滚。
// 模拟代币合约在转账时回调外部代码。
type Hook func(ctx context.Context, t Transfer) error

// Memory 进程内托管: 每个资产一个托管余额, 外加外部账户余额
type Memory struct {
	mu       sync.Mutex
	escrow   common.Address
	balances map[common.Address]map[common.Address]*uint256.Int // asset -> holder -> balance
	hook     Hook
}

func NewMemory(escrow common.Address) *Memory {
	return &Memory{
		escrow:   escrow,
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// SetHook 设置划转回调
func (m *Memory) SetHook(h Hook) {
	m.mu.Lock()
	m.hook = h
	m.mu.Unlock()
}

// Deposit 给外部账户入金
func (m *Memory) Deposit(asset, holder common.Address, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(asset, holder, amount)
}

// Balance 任意持有人的余额
func (m *Memory) Balance(asset, holder common.Address) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(asset, holder).Clone()
}

func (m *Memory) Pull(ctx context.Context, asset, from common.Address, amount *uint256.Int) error {
	return m.move(ctx, Transfer{Op: "pull", Asset: asset, From: from, To: m.escrow, Amount: amount})
}

func (m *Memory) Push(ctx context.Context, asset, to common.Address, amount *uint256.Int) error {
	return m.move(ctx, Transfer{Op: "push", Asset: asset, From: m.escrow, To: to, Amount: amount})
}

func (m *Memory) BalanceOf(ctx context.Context, asset common.Address) (*uint256.Int, error) {
	return m.Balance(asset, m.escrow), nil
}

func (m *Memory) move(ctx context.Context, t Transfer) error {
	m.mu.Lock()
	have := m.get(t.Asset, t.From)
	if have.Lt(t.Amount) {
		m.mu.Unlock()
		return errno.ErrInsufficientBalance.WithMessage(fmt.Sprintf("%s has %s, needs %s", t.From.Hex(), have.Dec(), t.Amount.Dec()))
	}
	m.set(t.Asset, t.From, new(uint256.Int).Sub(have, t.Amount))
	m.add(t.Asset, t.To, t.Amount)
	hook := m.hook
	m.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx, t); err != nil {
		// 回调失败, 撤销本次划转
		m.mu.Lock()
		m.set(t.Asset, t.To, new(uint256.Int).Sub(m.get(t.Asset, t.To), t.Amount))
		m.add(t.Asset, t.From, t.Amount)
		m.mu.Unlock()
		return fmt.Errorf("transfer hook: %w", err)
	}
	return nil
}

func (m *Memory) get(asset, holder common.Address) *uint256.Int {
	if v, ok := m.balances[asset][holder]; ok {
		return v
	}
	return new(uint256.Int)
}

func (m *Memory) set(asset, holder common.Address, v *uint256.Int) {
	book, ok := m.balances[asset]
	if !ok {
		book = make(map[common.Address]*uint256.Int)
		m.balances[asset] = book
	}
	book[holder] = v
}

func (m *Memory) add(asset, holder common.Address, v *uint256.Int) {
	m.set(asset, holder, new(uint256.Int).Add(m.get(asset, holder), v))
}
