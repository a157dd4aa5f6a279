package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"token-vesting/internal/model"
	"token-vesting/internal/vesting"
	"token-vesting/pkg/crypto_util"
	"token-vesting/pkg/database"
	"token-vesting/pkg/errno"
)

// Journal 把账本事件写入 ledger_events, 同一事务内写 Outbox 消息并执行资产划转
type Journal struct {
	db    *gorm.DB
	topic string
}

func NewJournal(db *gorm.DB, topic string) *Journal {
	return &Journal{db: db, topic: topic}
}

func (j *Journal) Record(ctx context.Context, ev *vesting.Event, effect func(ctx context.Context) error) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return database.Transaction(ctx, j.db, func(tx *gorm.DB) error {
		row := model.LedgerEvent{
			Seq:      ev.Seq,
			Type:     string(ev.Type),
			PoolID:   ev.PoolID(),
			At:       ev.At,
			Payload:  string(payload),
			Checksum: crypto_util.CalculateBlake3(payload),
		}
		if err := tx.Create(&row).Error; err != nil {
			return errno.ErrDatabase.WithMessage(fmt.Sprintf("append event seq %d: %v", ev.Seq, err))
		}
		if err := model.CreateOutboxMessage(tx, j.topic, ev.PartitionKey(), payload); err != nil {
			return errno.ErrDatabase.WithMessage(err.Error())
		}
		if effect == nil {
			return nil
		}
		return effect(database.WithTx(ctx, tx))
	})
}

// Load 按序号读出全部事件并校验完整性
func (j *Journal) Load(ctx context.Context) ([]*vesting.Event, error) {
	return j.LoadAfter(ctx, 0)
}

// LoadAfter 读出 seq 之后的事件
func (j *Journal) LoadAfter(ctx context.Context, seq uint64) ([]*vesting.Event, error) {
	var rows []model.LedgerEvent
	if err := database.Conn(ctx, j.db).Where("seq > ?", seq).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, errno.ErrDatabase.WithMessage(err.Error())
	}

	events := make([]*vesting.Event, 0, len(rows))
	for _, row := range rows {
		if !crypto_util.VerifyBlake3([]byte(row.Payload), row.Checksum) {
			return nil, errno.ErrJournalCorrupted.WithMessage(fmt.Sprintf("checksum mismatch at seq %d", row.Seq))
		}
		var ev vesting.Event
		if err := json.Unmarshal([]byte(row.Payload), &ev); err != nil {
			return nil, errno.ErrJournalCorrupted.WithMessage(fmt.Sprintf("decode seq %d: %v", row.Seq, err))
		}
		if ev.Seq != row.Seq {
			return nil, errno.ErrJournalCorrupted.WithMessage(fmt.Sprintf("row seq %d holds event seq %d", row.Seq, ev.Seq))
		}
		events = append(events, &ev)
	}
	return events, nil
}
