package vesting

import (
	"context"
	"sync"
)

// Journal 持久化事件。effect 是该事件对应的资产划转,
// 实现必须保证事件落盘与 effect 同成同败。
type Journal interface {
	Record(ctx context.Context, ev *Event, effect func(ctx context.Context) error) error
}

// MemoryJournal 进程内事件日志, 用于测试和 custody_mode=memory
type MemoryJournal struct {
	mu     sync.Mutex
	events []*Event
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Record(ctx context.Context, ev *Event, effect func(ctx context.Context) error) error {
	if effect != nil {
		if err := effect(ctx); err != nil {
			return err
		}
	}
	j.mu.Lock()
	j.events = append(j.events, ev)
	j.mu.Unlock()
	return nil
}

// Events 返回已记录事件的副本
func (j *MemoryJournal) Events() []*Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*Event, len(j.events))
	copy(out, j.events)
	return out
}
