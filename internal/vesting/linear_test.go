package vesting_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-vesting/internal/vesting"
	"token-vesting/pkg/errno"
)

// 1000 个单位, 1000 秒线性释放, 每秒 1 个
func TestLinearEndToEnd(t *testing.T) {
	f := newFixture(t)
	id := f.openLinear(t0+1000, []common.Address{alice}, 1000)
	assert.Equal(t, uint64(1), id)

	assert.Equal(t, "1000", dec(f.custody.Balance(token, escrow)))
	assert.Equal(t, "1000", dec(f.ledger.Allocated(f.ctx, token)))

	row := f.view(id, alice, vesting.ScheduleLinear)
	assert.Equal(t, "1", dec(row.Rate))
	assert.Equal(t, t0, row.LastWithdrawal)

	f.at(t0 + 400)
	got, err := f.ledger.Claimable(f.ctx, id, alice)
	require.NoError(t, err)
	assert.Equal(t, "400", dec(got))

	receipt, err := f.ledger.Claim(f.ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, "400", dec(receipt.Amount))
	assert.Equal(t, "600", dec(receipt.Remaining))

	row = f.view(id, alice, vesting.ScheduleLinear)
	assert.Equal(t, "400", dec(row.Claimed))
	assert.Equal(t, "600", dec(row.Remaining))
	assert.Equal(t, t0+400, row.LastWithdrawal)

	// 同一时刻再次领取为 0
	_, err = f.ledger.Claim(f.ctx, alice, id)
	assert.True(t, errors.Is(err, errno.ErrNothingToClaim), "同一时刻第二次领取应失败, 得到 %v", err)

	f.at(t0 + 1000)
	got, err = f.ledger.Claimable(f.ctx, id, alice)
	require.NoError(t, err)
	assert.Equal(t, "600", dec(got))

	receipt, err = f.ledger.Claim(f.ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, "600", dec(receipt.Amount))
	assert.True(t, receipt.Remaining.IsZero())

	row = f.view(id, alice, vesting.ScheduleLinear)
	assert.Equal(t, "1000", dec(row.Claimed))
	assert.True(t, row.Remaining.IsZero())

	assert.Equal(t, "1000", dec(f.custody.Balance(token, alice)))
	assert.True(t, f.custody.Balance(token, escrow).IsZero())
	assert.True(t, f.ledger.Allocated(f.ctx, token).IsZero())

	f.at(t0 + 5000)
	_, err = f.ledger.Claim(f.ctx, alice, id)
	assert.True(t, errors.Is(err, errno.ErrNothingToClaim))
}

func TestLinearDustCollapsesAtEnd(t *testing.T) {
	f := newFixture(t)
	// 1000 / 3 = 333, 余 1 在终点一次付清
	id := f.openLinear(t0+3, []common.Address{alice}, 1000)
	assert.Equal(t, "333", dec(f.view(id, alice, vesting.ScheduleLinear).Rate))

	f.at(t0 + 2)
	r, err := f.ledger.Claim(f.ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, "666", dec(r.Amount))

	f.at(t0 + 3)
	got, err := f.ledger.Claimable(f.ctx, id, alice)
	require.NoError(t, err)
	assert.Equal(t, "334", dec(got))

	r, err = f.ledger.Claim(f.ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, "334", dec(r.Amount))
	assert.Equal(t, "1000", dec(f.custody.Balance(token, alice)))
}

func TestLinearClaimInvariants(t *testing.T) {
	f := newFixture(t)
	id := f.openLinear(t0+997, []common.Address{alice, bob}, 12345, 777)

	lastClaimed := new(uint256.Int)
	for ts := t0; ts <= t0+1100; ts += 37 {
		f.at(ts)
		_, err := f.ledger.Claim(f.ctx, alice, id)
		if err != nil {
			require.True(t, errors.Is(err, errno.ErrNothingToClaim), "unexpected error %v", err)
		}
		row := f.view(id, alice, vesting.ScheduleLinear)
		sum := new(uint256.Int).Add(row.Claimed, row.Remaining)
		assert.Equal(t, "12345", dec(sum), "claimed + remaining 必须等于 allocation")
		assert.False(t, row.Claimed.Lt(lastClaimed), "claimed 不能减少")
		lastClaimed = row.Claimed
	}
	assert.Equal(t, "12345", dec(lastClaimed))

	// bob 一次都没领, 终点后可领全部
	got, err := f.ledger.Claimable(f.ctx, id, bob)
	require.NoError(t, err)
	assert.Equal(t, "777", dec(got))
	assert.Equal(t, "777", dec(f.ledger.Allocated(f.ctx, token)))
}

func TestLinearNoAllocation(t *testing.T) {
	f := newFixture(t)
	id := f.openLinear(t0+100, []common.Address{alice}, 100)
	cliffID := f.openCliff(cliffTimes{periodEnd: t0 + 10, cliffEnd: t0 + 20, end: t0 + 100, bps: 5000}, []common.Address{alice}, 100)

	f.at(t0 + 50)
	_, err := f.ledger.Claimable(f.ctx, id, carol)
	assert.True(t, errors.Is(err, errno.ErrNoAllocation))

	_, err = f.ledger.Claim(f.ctx, carol, id)
	assert.True(t, errors.Is(err, errno.ErrNoAllocation))

	_, err = f.ledger.Claim(f.ctx, alice, 99)
	assert.True(t, errors.Is(err, errno.ErrPoolNotFound))

	_, err = f.ledger.Claim(f.ctx, alice, cliffID)
	assert.True(t, errors.Is(err, errno.ErrPoolNotFound), "悬崖池不能走线性领取")

	_, err = f.ledger.ClaimCliff(f.ctx, alice, id)
	assert.True(t, errors.Is(err, errno.ErrPoolNotFound), "线性池不能走悬崖领取")
}

func TestOpenPoolIDsAreSequentialAcrossKinds(t *testing.T) {
	f := newFixture(t)
	a := f.openLinear(t0+10, []common.Address{alice}, 10)
	b := f.openCliff(cliffTimes{periodEnd: t0, cliffEnd: t0 + 5, end: t0 + 10, bps: 100}, []common.Address{alice}, 10)
	c := f.openLinear(t0+10, []common.Address{bob}, 10)

	assert.Equal(t, []uint64{1, 2, 3}, []uint64{a, b, c})
	assert.Equal(t, uint64(3), f.ledger.PoolCount(f.ctx))

	info, err := f.ledger.Pool(f.ctx, b)
	require.NoError(t, err)
	assert.Equal(t, vesting.KindCliff, info.Kind)
	assert.Equal(t, vester, info.Vester)
	assert.Equal(t, t0+5, info.CliffVestingEnd)
	assert.Equal(t, uint64(10), info.NonCliffPeriod)
}

func TestOpenPoolFailuresLeaveNoTrace(t *testing.T) {
	f := newFixture(t)

	// 校验失败
	_, err := f.ledger.OpenLinearPool(f.ctx, vester, f.linearRequest(t0, []common.Address{alice}, 10))
	assert.True(t, errors.Is(err, errno.ErrValidationFailed))

	// 签名人不对
	other, _ := crypto.GenerateKey()
	req := f.linearRequest(t0+10, []common.Address{alice}, 10)
	req.Auth = f.auth("linear", token, other)
	_, err = f.ledger.OpenLinearPool(f.ctx, vester, req)
	assert.True(t, errors.Is(err, errno.ErrSignerInvalid))

	// 签名内容与请求不一致 (换了池名)
	req = f.linearRequest(t0+10, []common.Address{alice}, 10)
	req.Name = "renamed"
	_, err = f.ledger.OpenLinearPool(f.ctx, vester, req)
	assert.True(t, errors.Is(err, errno.ErrSignerInvalid))

	// 出资人余额不足: 划转失败, 摘要不被消耗
	req = f.linearRequest(t0+10, []common.Address{alice}, 10)
	_, err = f.ledger.OpenLinearPool(f.ctx, carol, req)
	assert.True(t, errors.Is(err, errno.ErrInsufficientBalance))

	assert.Equal(t, uint64(0), f.ledger.PoolCount(f.ctx))
	assert.Equal(t, uint64(0), f.ledger.Seq(f.ctx))
	assert.True(t, f.ledger.Allocated(f.ctx, token).IsZero())
	assert.Empty(t, f.journal.Events())
	assert.True(t, f.custody.Balance(token, escrow).IsZero())

	// 同一份授权在充值后可以成功开池
	f.custody.Deposit(token, carol, amt(10))
	id, err := f.ledger.OpenLinearPool(f.ctx, carol, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestReplayGuardRejectsSecondOpen(t *testing.T) {
	f := newFixture(t)
	tag := []byte("once")

	req := f.linearRequest(t0+10, []common.Address{alice}, 10)
	req.Auth = signedAuth(t, "linear", token, tag, f.key)
	_, err := f.ledger.OpenLinearPool(f.ctx, vester, req)
	require.NoError(t, err)

	// 同样的 (name, asset, tag), 重新签名依然被拒
	again := f.linearRequest(t0+10, []common.Address{bob}, 20)
	again.Auth = signedAuth(t, "linear", token, tag, f.key)
	_, err = f.ledger.OpenLinearPool(f.ctx, vester, again)
	assert.True(t, errors.Is(err, errno.ErrAlreadyUsed), "重复授权应被拒绝, 得到 %v", err)

	// 悬崖池共享同一个已用集合
	cliffReq := f.cliffRequest(cliffTimes{periodEnd: t0, cliffEnd: t0 + 5, end: t0 + 10}, []common.Address{alice}, 10)
	cliffReq.Name = "linear"
	cliffReq.Auth = signedAuth(t, "linear", token, tag, f.key)
	_, err = f.ledger.OpenCliffPool(f.ctx, vester, cliffReq)
	assert.True(t, errors.Is(err, errno.ErrAlreadyUsed))

	assert.Equal(t, uint64(1), f.ledger.PoolCount(f.ctx))
}

// 未迁移前所有行的 allocation 之和等于池总量
func TestPoolTotalMatchesRoster(t *testing.T) {
	f := newFixture(t)
	id := f.openLinear(t0+100, []common.Address{alice, bob, carol}, 1, 22, 333)

	info, err := f.ledger.Pool(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "356", dec(info.Total))

	sum := new(uint256.Int)
	for _, e := range info.Roster {
		sum.Add(sum, e.Allocation)
		assert.Nil(t, e.MigratedFrom)
		sum2 := f.view(id, e.Beneficiary, vesting.ScheduleLinear).Allocation
		assert.Equal(t, dec(e.Allocation), dec(sum2))
	}
	assert.Equal(t, dec(info.Total), dec(sum))
}
