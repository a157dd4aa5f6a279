package vesting

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BpsDenominator 悬崖比例的基点分母
const BpsDenominator = 10000

// Kind 池的排期类型
type Kind string

const (
	KindLinear Kind = "linear"
	KindCliff  Kind = "cliff"
)

// Schedule 领取时指定的子账本
type Schedule string

const (
	ScheduleLinear   Schedule = "linear"
	ScheduleCliff    Schedule = "cliff"
	ScheduleNonCliff Schedule = "non_cliff"
)

func (s Schedule) Valid() bool {
	switch s {
	case ScheduleLinear, ScheduleCliff, ScheduleNonCliff:
		return true
	}
	return false
}

// Authorization 开池签名授权
type Authorization struct {
	Signature []byte
	Tag       []byte
}

// LinearPoolRequest 线性池开池参数
type LinearPoolRequest struct {
	Name          string
	VestingEnd    uint64
	Asset         common.Address
	Beneficiaries []common.Address
	Allocations   []*uint256.Int
	Auth          Authorization
}

// CliffPoolRequest 悬崖池开池参数
type CliffPoolRequest struct {
	Name            string
	VestingEnd      uint64
	CliffVestingEnd uint64
	CliffPeriodEnd  uint64
	CliffBps        uint64
	Asset           common.Address
	Beneficiaries   []common.Address
	Allocations     []*uint256.Int
	Auth            Authorization
}

// RosterEntry 池的受益人名册条目, 迁移时追加
type RosterEntry struct {
	Beneficiary  common.Address
	Allocation   *uint256.Int
	MigratedFrom *common.Address
}

// PoolInfo 池元数据快照
type PoolInfo struct {
	ID              uint64
	Kind            Kind
	Name            string
	Vester          common.Address
	Asset           common.Address
	Start           uint64
	VestingEnd      uint64
	CliffVestingEnd uint64
	CliffPeriodEnd  uint64
	NonCliffPeriod  uint64
	CliffBps        uint64
	Total           *uint256.Int
	Roster          []RosterEntry
}

// AllocationView 单个子账本行的只读视图
type AllocationView struct {
	Schedule       Schedule
	Allocation     *uint256.Int
	Claimed        *uint256.Int
	Remaining      *uint256.Int
	Rate           *uint256.Int
	LastWithdrawal uint64
	Deprecated     bool
	MigratedTo     common.Address
}

// Receipt 一次成功领取的结果
type Receipt struct {
	PoolID      uint64
	Schedule    Schedule
	Beneficiary common.Address
	Amount      *uint256.Int
	Remaining   *uint256.Int
	At          uint64
}
