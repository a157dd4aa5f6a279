package vesting_test

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"token-vesting/internal/custody"
	"token-vesting/internal/schedule"
	"token-vesting/internal/vesting"
	"token-vesting/pkg/crypto_util"
)

const t0 = uint64(1_700_000_000)

var (
	token  = common.HexToAddress("0x00000000000000000000000000000000000070c0")
	escrow = common.HexToAddress("0x0000000000000000000000000000000000e5c000")
	owner  = common.HexToAddress("0x000000000000000000000000000000000000000a")
	vester = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol  = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

type fakeClock struct {
	now uint64
}

func (c *fakeClock) Now() uint64 { return c.now }

type fixture struct {
	t       *testing.T
	ctx     context.Context
	clock   *fakeClock
	custody *custody.Memory
	journal *vesting.MemoryJournal
	ledger  *vesting.Ledger
	key     *ecdsa.PrivateKey
	signer  common.Address
	tags    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		clock:   &fakeClock{now: t0},
		custody: custody.NewMemory(escrow),
		journal: vesting.NewMemoryJournal(),
		key:     key,
		signer:  crypto.PubkeyToAddress(key.PublicKey),
	}
	f.custody.Deposit(token, vester, amt(1_000_000))
	f.ledger = f.newLedger(f.journal)
	return f
}

func (f *fixture) newLedger(j vesting.Journal) *vesting.Ledger {
	f.t.Helper()
	l, err := vesting.New(vesting.Options{
		Owner:     owner,
		Signer:    f.signer,
		Custody:   f.custody,
		Validator: schedule.NewValidator(),
		Verifier:  crypto_util.NewPersonalVerifier(),
		Journal:   j,
		Clock:     f.clock,
	})
	require.NoError(f.t, err)
	return l
}

func (f *fixture) at(ts uint64) {
	f.clock.now = ts
}

func (f *fixture) auth(name string, asset common.Address, key *ecdsa.PrivateKey) vesting.Authorization {
	f.tags++
	tag := []byte(fmt.Sprintf("tag-%d", f.tags))
	return signedAuth(f.t, name, asset, tag, key)
}

func signedAuth(t *testing.T, name string, asset common.Address, tag []byte, key *ecdsa.PrivateKey) vesting.Authorization {
	t.Helper()
	digest := vesting.PoolDigest(name, asset, tag)
	sig, err := crypto_util.SignPersonal(key, digest.Bytes())
	require.NoError(t, err)
	return vesting.Authorization{Signature: sig, Tag: tag}
}

func (f *fixture) linearRequest(end uint64, beneficiaries []common.Address, allocations ...uint64) *vesting.LinearPoolRequest {
	return &vesting.LinearPoolRequest{
		Name:          "linear",
		VestingEnd:    end,
		Asset:         token,
		Beneficiaries: beneficiaries,
		Allocations:   amts(allocations...),
		Auth:          f.auth("linear", token, f.key),
	}
}

func (f *fixture) openLinear(end uint64, beneficiaries []common.Address, allocations ...uint64) uint64 {
	f.t.Helper()
	id, err := f.ledger.OpenLinearPool(f.ctx, vester, f.linearRequest(end, beneficiaries, allocations...))
	require.NoError(f.t, err)
	return id
}

type cliffTimes struct {
	periodEnd, cliffEnd, end uint64
	bps                      uint64
}

func (f *fixture) cliffRequest(ct cliffTimes, beneficiaries []common.Address, allocations ...uint64) *vesting.CliffPoolRequest {
	return &vesting.CliffPoolRequest{
		Name:            "cliff",
		VestingEnd:      ct.end,
		CliffVestingEnd: ct.cliffEnd,
		CliffPeriodEnd:  ct.periodEnd,
		CliffBps:        ct.bps,
		Asset:           token,
		Beneficiaries:   beneficiaries,
		Allocations:     amts(allocations...),
		Auth:            f.auth("cliff", token, f.key),
	}
}

func (f *fixture) openCliff(ct cliffTimes, beneficiaries []common.Address, allocations ...uint64) uint64 {
	f.t.Helper()
	id, err := f.ledger.OpenCliffPool(f.ctx, vester, f.cliffRequest(ct, beneficiaries, allocations...))
	require.NoError(f.t, err)
	return id
}

// view 取某个子账本的行视图
func (f *fixture) view(poolID uint64, user common.Address, s vesting.Schedule) vesting.AllocationView {
	f.t.Helper()
	views, err := f.ledger.Allocations(f.ctx, poolID, user)
	require.NoError(f.t, err)
	for _, v := range views {
		if v.Schedule == s {
			return v
		}
	}
	f.t.Fatalf("no %s row for %s in pool %d", s, user.Hex(), poolID)
	return vesting.AllocationView{}
}

func amt(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func amts(values ...uint64) []*uint256.Int {
	out := make([]*uint256.Int, len(values))
	for i, v := range values {
		out[i] = amt(v)
	}
	return out
}

func dec(x *uint256.Int) string {
	if x == nil {
		return "<nil>"
	}
	return x.Dec()
}
