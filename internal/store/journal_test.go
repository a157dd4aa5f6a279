package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"token-vesting/internal/custody"
	"token-vesting/internal/model"
	"token-vesting/internal/schedule"
	"token-vesting/internal/vesting"
	"token-vesting/pkg/crypto_util"
	"token-vesting/pkg/errno"
)

const t0 = uint64(1_700_000_000)

var (
	token  = common.HexToAddress("0x70c0")
	escrow = common.HexToAddress("0xe5c0")
	owner  = common.HexToAddress("0x0a")
	vester = common.HexToAddress("0xee")
	alice  = common.HexToAddress("0xa11ce")
)

type fixedClock struct{ now uint64 }

func (c *fixedClock) Now() uint64 { return c.now }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "journal.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

type harness struct {
	db       *gorm.DB
	journal  *Journal
	accounts *custody.Accounts
	clock    *fixedClock
	ledger   *vesting.Ledger
	signer   common.Address
	sign     func(name string, tag string) vesting.Authorization
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	h := &harness{
		db:     openTestDB(t),
		clock:  &fixedClock{now: t0},
		signer: crypto.PubkeyToAddress(key.PublicKey),
	}
	h.journal = NewJournal(h.db, "vesting.events")
	h.accounts = custody.NewAccounts(h.db, escrow)
	h.sign = func(name, tag string) vesting.Authorization {
		sig, err := crypto_util.SignPersonal(key, vesting.PoolDigest(name, token, []byte(tag)).Bytes())
		require.NoError(t, err)
		return vesting.Authorization{Signature: sig, Tag: []byte(tag)}
	}
	h.ledger = h.newLedger(t)
	require.NoError(t, h.accounts.Deposit(context.Background(), token, vester, uint256.NewInt(10_000)))
	return h
}

func (h *harness) newLedger(t *testing.T) *vesting.Ledger {
	t.Helper()
	l, err := vesting.New(vesting.Options{
		Owner:     owner,
		Signer:    h.signer,
		Custody:   h.accounts,
		Validator: schedule.NewValidator(),
		Verifier:  crypto_util.NewPersonalVerifier(),
		Journal:   h.journal,
		Clock:     h.clock,
	})
	require.NoError(t, err)
	return l
}

func (h *harness) openPool(t *testing.T, tag string, allocation uint64) uint64 {
	t.Helper()
	id, err := h.ledger.OpenLinearPool(context.Background(), vester, &vesting.LinearPoolRequest{
		Name:          "seed",
		VestingEnd:    t0 + 100,
		Asset:         token,
		Beneficiaries: []common.Address{alice},
		Allocations:   []*uint256.Int{uint256.NewInt(allocation)},
		Auth:          h.sign("seed", tag),
	})
	require.NoError(t, err)
	return id
}

func TestJournalRecordsEventsAndOutbox(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.openPool(t, "a", 1000)

	h.clock.now = t0 + 30
	_, err := h.ledger.Claim(ctx, alice, id)
	require.NoError(t, err)

	events, err := h.journal.Load(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, vesting.EventLinearPoolOpened, events[0].Type)
	assert.Equal(t, vesting.EventClaimed, events[1].Type)
	assert.Equal(t, "300", events[1].Claimed.Amount)

	after, err := h.journal.LoadAfter(ctx, 1)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, uint64(2), after[0].Seq)

	var outbox []model.OutboxMessage
	require.NoError(t, h.db.Order("id").Find(&outbox).Error)
	require.Len(t, outbox, 2)
	for _, msg := range outbox {
		assert.Equal(t, "vesting.events", msg.Topic)
		assert.Equal(t, "pool-1", msg.Key)
		assert.Equal(t, model.OutboxPending, msg.Status)
	}

	bal, err := h.accounts.Balance(ctx, token, alice)
	require.NoError(t, err)
	assert.Equal(t, "300", bal.Dec())
}

func TestJournalFailedEffectLeavesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// 出资人余额不足, 事件与 outbox 一起回滚
	_, err := h.ledger.OpenLinearPool(ctx, vester, &vesting.LinearPoolRequest{
		Name:          "seed",
		VestingEnd:    t0 + 100,
		Asset:         token,
		Beneficiaries: []common.Address{alice},
		Allocations:   []*uint256.Int{uint256.NewInt(10_001)},
		Auth:          h.sign("seed", "big"),
	})
	assert.True(t, errors.Is(err, errno.ErrInsufficientBalance), "got %v", err)

	var n int64
	require.NoError(t, h.db.Model(&model.LedgerEvent{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, h.db.Model(&model.OutboxMessage{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, uint64(0), h.ledger.Seq(ctx))

	boom := errors.New("effect failed")
	err = h.journal.Record(ctx, &vesting.Event{Seq: 1, Type: vesting.EventSwept, Swept: &vesting.Swept{Amount: "1"}},
		func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, h.db.Model(&model.LedgerEvent{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestJournalDuplicateSeqRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.openPool(t, "a", 10)

	// 另一个实例持有过期状态, 同一个 seq 写不进去
	stale := h.newLedger(t)
	_, err := stale.OpenLinearPool(ctx, vester, &vesting.LinearPoolRequest{
		Name:          "seed",
		VestingEnd:    t0 + 100,
		Asset:         token,
		Beneficiaries: []common.Address{alice},
		Allocations:   []*uint256.Int{uint256.NewInt(10)},
		Auth:          h.sign("seed", "b"),
	})
	assert.True(t, errors.Is(err, errno.ErrDatabase), "got %v", err)

	bal, err := h.accounts.Balance(ctx, token, vester)
	require.NoError(t, err)
	assert.Equal(t, "9990", bal.Dec())
}

func TestJournalReplayAfterRestart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.openPool(t, "a", 1000)
	h.clock.now = t0 + 40
	_, err := h.ledger.Claim(ctx, alice, id)
	require.NoError(t, err)

	events, err := h.journal.Load(ctx)
	require.NoError(t, err)
	restarted := h.newLedger(t)
	require.NoError(t, restarted.Replay(ctx, events))

	assert.Equal(t, h.ledger.Seq(ctx), restarted.Seq(ctx))
	assert.Equal(t, "600", restarted.Allocated(ctx, token).Dec())

	// 重启后继续写入, seq 接续
	h.clock.now = t0 + 100
	r, err := restarted.Claim(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, "600", r.Amount.Dec())
	assert.Equal(t, uint64(3), restarted.Seq(ctx))

	free, err := restarted.Unallocated(ctx, token)
	require.NoError(t, err)
	assert.True(t, free.IsZero())
}

func TestJournalDetectsTampering(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.openPool(t, "a", 1000)

	require.NoError(t, h.db.Model(&model.LedgerEvent{}).Where("seq = ?", 1).
		Update("payload", `{"seq":1,"type":"swept","at":0,"swept":{"amount":"1"}}`).Error)

	_, err := h.journal.Load(ctx)
	assert.True(t, errors.Is(err, errno.ErrJournalCorrupted), "got %v", err)
}
