package vesting

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventType 每个状态变更操作对应一种事件
type EventType string

const (
	EventLinearPoolOpened    EventType = "linear_pool_opened"
	EventCliffPoolOpened     EventType = "cliff_pool_opened"
	EventClaimed             EventType = "claimed"
	EventBeneficiaryMigrated EventType = "beneficiary_migrated"
	EventSignerUpdated       EventType = "signer_updated"
	EventSwept               EventType = "swept"
)

// Event 是账本唯一的状态变更记录, Replay 同一串事件可以得到同样的账本。
// 金额统一使用十进制字符串。
type Event struct {
	Seq  uint64    `json:"seq"`
	Type EventType `json:"type"`
	At   uint64    `json:"at"`

	PoolOpened    *PoolOpened    `json:"pool_opened,omitempty"`
	Claimed       *Claimed       `json:"claimed,omitempty"`
	Migrated      *Migrated      `json:"migrated,omitempty"`
	SignerUpdated *SignerUpdated `json:"signer_updated,omitempty"`
	Swept         *Swept         `json:"swept,omitempty"`
}

type PoolOpened struct {
	PoolID          uint64           `json:"pool_id"`
	Kind            Kind             `json:"kind"`
	Name            string           `json:"name"`
	Vester          common.Address   `json:"vester"`
	Asset           common.Address   `json:"asset"`
	Start           uint64           `json:"start"`
	VestingEnd      uint64           `json:"vesting_end"`
	CliffVestingEnd uint64           `json:"cliff_vesting_end,omitempty"`
	CliffPeriodEnd  uint64           `json:"cliff_period_end,omitempty"`
	CliffBps        uint64           `json:"cliff_bps,omitempty"`
	Beneficiaries   []common.Address `json:"beneficiaries"`
	Allocations     []string         `json:"allocations"`
	Total           string           `json:"total"`
	Digest          common.Hash      `json:"digest"`
}

type Claimed struct {
	PoolID      uint64         `json:"pool_id"`
	Schedule    Schedule       `json:"schedule"`
	Beneficiary common.Address `json:"beneficiary"`
	Asset       common.Address `json:"asset"`
	Amount      string         `json:"amount"`
	Remaining   string         `json:"remaining"`
}

type Migrated struct {
	PoolID     uint64         `json:"pool_id"`
	Kind       Kind           `json:"kind"`
	Deprecated common.Address `json:"deprecated"`
	New        common.Address `json:"new"`
	Allocation string         `json:"allocation"`
}

type SignerUpdated struct {
	Previous common.Address `json:"previous"`
	Signer   common.Address `json:"signer"`
}

type Swept struct {
	Asset  common.Address `json:"asset"`
	To     common.Address `json:"to"`
	Amount string         `json:"amount"`
}

// PoolID 事件关联的池, 没有时为 0
func (e *Event) PoolID() uint64 {
	switch {
	case e.PoolOpened != nil:
		return e.PoolOpened.PoolID
	case e.Claimed != nil:
		return e.Claimed.PoolID
	case e.Migrated != nil:
		return e.Migrated.PoolID
	}
	return 0
}

// PartitionKey 同一个池的事件落在同一分区
func (e *Event) PartitionKey() string {
	if id := e.PoolID(); id != 0 {
		return fmt.Sprintf("pool-%d", id)
	}
	return string(e.Type)
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

func amountStrings(values []*uint256.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Dec()
	}
	return out
}
