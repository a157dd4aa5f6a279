package vesting

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// row 是受益人在某个子账本上的记录: *activeRow 或 migratedRow。
// 只有 *activeRow 能参与计提与领取。
type row interface {
	view(s Schedule) AllocationView
}

type activeRow struct {
	allocation     *uint256.Int
	claimed        *uint256.Int
	rate           *uint256.Int
	lastWithdrawal uint64
}

// migratedRow 迁移后冻结的旧地址记录
type migratedRow struct {
	to common.Address
}

// newActiveRow 按 allocation / duration 计算每秒释放量, duration 为 0 时速率为 0 (只能走终点分支)
func newActiveRow(allocation *uint256.Int, duration, startAt uint64) *activeRow {
	rate := new(uint256.Int)
	if duration > 0 {
		rate.Div(allocation, uint256.NewInt(duration))
	}
	return &activeRow{
		allocation:     allocation.Clone(),
		claimed:        new(uint256.Int),
		rate:           rate,
		lastWithdrawal: startAt,
	}
}

func (r *activeRow) remaining() *uint256.Int {
	return new(uint256.Int).Sub(r.allocation, r.claimed)
}

func (r *activeRow) clone() *activeRow {
	return &activeRow{
		allocation:     r.allocation.Clone(),
		claimed:        r.claimed.Clone(),
		rate:           r.rate.Clone(),
		lastWithdrawal: r.lastWithdrawal,
	}
}

// accrue 计算 now 时刻可领取的数量。
// now < gate 时锁定; now >= end 时返回全部剩余 (回收取整误差); 其余按速率累计且不超过剩余。
func (r *activeRow) accrue(now, gate, end uint64) *uint256.Int {
	remaining := r.remaining()
	if now < gate {
		return new(uint256.Int)
	}
	if now >= end {
		return remaining
	}
	if now <= r.lastWithdrawal {
		return new(uint256.Int)
	}

	amount, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(now-r.lastWithdrawal), r.rate)
	if overflow || amount.Gt(remaining) {
		return remaining
	}
	return amount
}

// settle 记账一次领取
func (r *activeRow) settle(amount *uint256.Int, at uint64) {
	r.claimed = new(uint256.Int).Add(r.claimed, amount)
	r.lastWithdrawal = at
}

func (r *activeRow) view(s Schedule) AllocationView {
	return AllocationView{
		Schedule:       s,
		Allocation:     r.allocation.Clone(),
		Claimed:        r.claimed.Clone(),
		Remaining:      r.remaining(),
		Rate:           r.rate.Clone(),
		LastWithdrawal: r.lastWithdrawal,
	}
}

func (r migratedRow) view(s Schedule) AllocationView {
	return AllocationView{
		Schedule:   s,
		Allocation: new(uint256.Int),
		Claimed:    new(uint256.Int),
		Remaining:  new(uint256.Int),
		Rate:       new(uint256.Int),
		Deprecated: true,
		MigratedTo: r.to,
	}
}

// activeOf 取出可计提的行; 缺失或已迁移返回 nil
func activeOf(rows map[common.Address]row, user common.Address) *activeRow {
	r, ok := rows[user].(*activeRow)
	if !ok {
		return nil
	}
	return r
}
