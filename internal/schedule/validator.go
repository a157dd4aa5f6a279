package schedule

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/holiman/uint256"

	"token-vesting/internal/vesting"
	"token-vesting/pkg/errno"
	pkgvalidator "token-vesting/pkg/validator"
)

type linearSchedule struct {
	Name          string   `validate:"required,max=128"`
	Asset         string   `validate:"eth_nonzero"`
	Now           uint64
	VestingEnd    uint64   `validate:"gtfield=Now"`
	Beneficiaries []string `validate:"min=1,unique,dive,eth_nonzero"`
	Allocations   []string `validate:"min=1,dive,required,ne=0"`
	Signature     []byte   `validate:"len=65"`
	Tag           []byte   `validate:"min=1,max=64"`
}

type cliffSchedule struct {
	Name            string   `validate:"required,max=128"`
	Asset           string   `validate:"eth_nonzero"`
	Now             uint64
	CliffPeriodEnd  uint64   `validate:"gtefield=Now"`
	CliffVestingEnd uint64   `validate:"gtefield=CliffPeriodEnd"`
	VestingEnd      uint64   `validate:"gtfield=Now,gtefield=CliffPeriodEnd"`
	CliffBps        uint64   `validate:"lte=10000"`
	Beneficiaries   []string `validate:"min=1,unique,dive,eth_nonzero"`
	Allocations     []string `validate:"min=1,dive,required,ne=0"`
	Signature       []byte   `validate:"len=65"`
	Tag             []byte   `validate:"min=1,max=64"`
}

// Validator 基于 go-playground/validator 的开池参数校验
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: pkgvalidator.New()}
}

func (v *Validator) ValidateLinear(now uint64, req *vesting.LinearPoolRequest) error {
	if req == nil {
		return errno.ErrValidationFailed.WithMessage("empty request")
	}
	if err := checkParity(req.Beneficiaries, req.Allocations); err != nil {
		return err
	}
	return v.check(&linearSchedule{
		Name:          req.Name,
		Asset:         req.Asset.Hex(),
		Now:           now,
		VestingEnd:    req.VestingEnd,
		Beneficiaries: hexes(req.Beneficiaries),
		Allocations:   decimals(req.Allocations),
		Signature:     req.Auth.Signature,
		Tag:           req.Auth.Tag,
	})
}

func (v *Validator) ValidateCliff(now uint64, req *vesting.CliffPoolRequest) error {
	if req == nil {
		return errno.ErrValidationFailed.WithMessage("empty request")
	}
	if err := checkParity(req.Beneficiaries, req.Allocations); err != nil {
		return err
	}
	return v.check(&cliffSchedule{
		Name:            req.Name,
		Asset:           req.Asset.Hex(),
		Now:             now,
		CliffPeriodEnd:  req.CliffPeriodEnd,
		CliffVestingEnd: req.CliffVestingEnd,
		VestingEnd:      req.VestingEnd,
		CliffBps:        req.CliffBps,
		Beneficiaries:   hexes(req.Beneficiaries),
		Allocations:     decimals(req.Allocations),
		Signature:       req.Auth.Signature,
		Tag:             req.Auth.Tag,
	})
}

func (v *Validator) check(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return errno.ErrValidationFailed.WithMessage(pkgvalidator.GetErrorMsg(err))
	}
	return nil
}

func checkParity(beneficiaries []common.Address, allocations []*uint256.Int) error {
	if len(beneficiaries) != len(allocations) {
		return errno.ErrValidationFailed.WithMessage(
			fmt.Sprintf("beneficiaries (%d) and allocations (%d) length mismatch", len(beneficiaries), len(allocations)))
	}
	return nil
}

func hexes(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}

// decimals nil 分配额按空串处理, 由 required 拒绝
func decimals(values []*uint256.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v != nil {
			out[i] = v.Dec()
		}
	}
	return out
}
