package request

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"token-vesting/internal/vesting"
	"token-vesting/pkg/amount"
	"token-vesting/pkg/errno"
)

// PoolAuth 开池授权: 0x 开头的十六进制签名与唯一标签
type PoolAuth struct {
	Signature string `json:"signature" binding:"required,hexadecimal"`
	Tag       string `json:"tag" binding:"required,hexadecimal"`
}

type OpenLinearPoolRequest struct {
	Name          string            `json:"name" binding:"required,max=64"`
	VestingEnd    uint64            `json:"vesting_end" binding:"required"`
	Asset         string            `json:"asset" binding:"required,eth_nonzero"`
	Beneficiaries []string          `json:"beneficiaries" binding:"required,min=1,max=500,dive,eth_nonzero"`
	Allocations   []decimal.Decimal `json:"allocations" binding:"required,min=1,max=500"`
	PoolAuth
}

type OpenCliffPoolRequest struct {
	Name            string            `json:"name" binding:"required,max=64"`
	VestingEnd      uint64            `json:"vesting_end" binding:"required"`
	CliffVestingEnd uint64            `json:"cliff_vesting_end" binding:"required"`
	CliffPeriodEnd  uint64            `json:"cliff_period_end" binding:"required"`
	CliffBps        uint64            `json:"cliff_bps" binding:"lte=10000"`
	Asset           string            `json:"asset" binding:"required,eth_nonzero"`
	Beneficiaries   []string          `json:"beneficiaries" binding:"required,min=1,max=500,dive,eth_nonzero"`
	Allocations     []decimal.Decimal `json:"allocations" binding:"required,min=1,max=500"`
	PoolAuth
}

type ClaimRequest struct {
	Schedule string `json:"schedule" binding:"required,oneof=linear cliff non_cliff"`
}

type MigrateRequest struct {
	Deprecated string `json:"deprecated" binding:"required,eth_nonzero"`
	New        string `json:"new" binding:"required,eth_nonzero"`
}

type SetSignerRequest struct {
	Signer string `json:"signer" binding:"required,eth_nonzero"`
}

type SweepRequest struct {
	Asset  string          `json:"asset" binding:"required,eth_nonzero"`
	To     string          `json:"to" binding:"required,eth_nonzero"`
	Amount decimal.Decimal `json:"amount"`
}

func (r *OpenLinearPoolRequest) ToLedger() (*vesting.LinearPoolRequest, error) {
	allocations, err := toAmounts(r.Allocations)
	if err != nil {
		return nil, err
	}
	auth, err := r.PoolAuth.decode()
	if err != nil {
		return nil, err
	}
	return &vesting.LinearPoolRequest{
		Name:          r.Name,
		VestingEnd:    r.VestingEnd,
		Asset:         common.HexToAddress(r.Asset),
		Beneficiaries: toAddresses(r.Beneficiaries),
		Allocations:   allocations,
		Auth:          auth,
	}, nil
}

func (r *OpenCliffPoolRequest) ToLedger() (*vesting.CliffPoolRequest, error) {
	allocations, err := toAmounts(r.Allocations)
	if err != nil {
		return nil, err
	}
	auth, err := r.PoolAuth.decode()
	if err != nil {
		return nil, err
	}
	return &vesting.CliffPoolRequest{
		Name:            r.Name,
		VestingEnd:      r.VestingEnd,
		CliffVestingEnd: r.CliffVestingEnd,
		CliffPeriodEnd:  r.CliffPeriodEnd,
		CliffBps:        r.CliffBps,
		Asset:           common.HexToAddress(r.Asset),
		Beneficiaries:   toAddresses(r.Beneficiaries),
		Allocations:     allocations,
		Auth:            auth,
	}, nil
}

// SweepAmount 金额必须是最小单位整数
func (r *SweepRequest) SweepAmount() (*uint256.Int, error) {
	v, err := amount.FromDecimal(r.Amount)
	if err != nil {
		return nil, errno.ErrBind.WithMessage(fmt.Sprintf("amount: %v", err))
	}
	return v, nil
}

func (a PoolAuth) decode() (vesting.Authorization, error) {
	sig, err := hexutil.Decode(a.Signature)
	if err != nil {
		return vesting.Authorization{}, errno.ErrBind.WithMessage(fmt.Sprintf("signature: %v", err))
	}
	tag, err := hexutil.Decode(a.Tag)
	if err != nil {
		return vesting.Authorization{}, errno.ErrBind.WithMessage(fmt.Sprintf("tag: %v", err))
	}
	return vesting.Authorization{Signature: sig, Tag: tag}, nil
}

func toAmounts(values []decimal.Decimal) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(values))
	for i, d := range values {
		v, err := amount.FromDecimal(d)
		if err != nil {
			return nil, errno.ErrBind.WithMessage(fmt.Sprintf("allocations[%d]: %v", i, err))
		}
		out[i] = v
	}
	return out, nil
}

func toAddresses(values []string) []common.Address {
	out := make([]common.Address, len(values))
	for i, s := range values {
		out[i] = common.HexToAddress(s)
	}
	return out
}
