package service

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
	token  = common.HexToAddress("0x70c0")
	escrow = common.HexToAddress("0xe5c0")
	owner  = common.HexToAddress("0x0a")
	vester = common.HexToAddress("0xee")
	alice  = common.HexToAddress("0xa11ce")
	bob    = common.HexToAddress("0xb0b")
)

type fixedClock struct{ now uint64 }

func (c *fixedClock) Now() uint64 { return c.now }

type ledgerEnv struct {
	ctx     context.Context
	clock   *fixedClock
	custody *custody.Memory
	ledger  *vesting.Ledger
	key     *ecdsa.PrivateKey
	tags    int
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	env := &ledgerEnv{
		ctx:     context.Background(),
		clock:   &fixedClock{now: t0},
		custody: custody.NewMemory(escrow),
		key:     key,
	}
	env.custody.Deposit(token, vester, uint256.NewInt(100_000))
	env.ledger, err = vesting.New(vesting.Options{
		Owner:     owner,
		Signer:    crypto.PubkeyToAddress(key.PublicKey),
		Custody:   env.custody,
		Validator: schedule.NewValidator(),
		Verifier:  crypto_util.NewPersonalVerifier(),
		Journal:   vesting.NewMemoryJournal(),
		Clock:     env.clock,
	})
	require.NoError(t, err)
	return env
}

func (e *ledgerEnv) linearRequest(t *testing.T, end uint64, beneficiaries []common.Address, allocations ...uint64) *vesting.LinearPoolRequest {
	t.Helper()
	e.tags++
	tag := []byte(fmt.Sprintf("svc-%d", e.tags))
	sig, err := crypto_util.SignPersonal(e.key, vesting.PoolDigest("linear", token, tag).Bytes())
	require.NoError(t, err)

	amounts := make([]*uint256.Int, len(allocations))
	for i, a := range allocations {
		amounts[i] = uint256.NewInt(a)
	}
	return &vesting.LinearPoolRequest{
		Name:          "linear",
		VestingEnd:    end,
		Asset:         token,
		Beneficiaries: beneficiaries,
		Allocations:   amounts,
		Auth:          vesting.Authorization{Signature: sig, Tag: tag},
	}
}
