package response

import (
	"github.com/shopspring/decimal"

	"token-vesting/internal/vesting"
	"token-vesting/pkg/amount"
)

type RosterEntry struct {
	Beneficiary  string          `json:"beneficiary"`
	Allocation   decimal.Decimal `json:"allocation"`
	MigratedFrom string          `json:"migrated_from,omitempty"`
}

type Pool struct {
	ID              uint64          `json:"id"`
	Kind            string          `json:"kind"`
	Name            string          `json:"name"`
	Vester          string          `json:"vester"`
	Asset           string          `json:"asset"`
	Start           uint64          `json:"start"`
	VestingEnd      uint64          `json:"vesting_end"`
	CliffVestingEnd uint64          `json:"cliff_vesting_end,omitempty"`
	CliffPeriodEnd  uint64          `json:"cliff_period_end,omitempty"`
	NonCliffPeriod  uint64          `json:"non_cliff_period,omitempty"`
	CliffBps        uint64          `json:"cliff_bps"`
	Total           decimal.Decimal `json:"total"`
	Roster          []RosterEntry   `json:"roster"`
}

type Allocation struct {
	Schedule       string          `json:"schedule"`
	Allocation     decimal.Decimal `json:"allocation"`
	Claimed        decimal.Decimal `json:"claimed"`
	Remaining      decimal.Decimal `json:"remaining"`
	Rate           decimal.Decimal `json:"rate"`
	LastWithdrawal uint64          `json:"last_withdrawal"`
	Deprecated     bool            `json:"deprecated"`
	MigratedTo     string          `json:"migrated_to,omitempty"`
}

type Receipt struct {
	PoolID      uint64          `json:"pool_id"`
	Schedule    string          `json:"schedule"`
	Beneficiary string          `json:"beneficiary"`
	Amount      decimal.Decimal `json:"amount"`
	Remaining   decimal.Decimal `json:"remaining"`
	At          uint64          `json:"at"`
}

func FromPool(info vesting.PoolInfo) Pool {
	p := Pool{
		ID:              info.ID,
		Kind:            string(info.Kind),
		Name:            info.Name,
		Vester:          info.Vester.Hex(),
		Asset:           info.Asset.Hex(),
		Start:           info.Start,
		VestingEnd:      info.VestingEnd,
		CliffVestingEnd: info.CliffVestingEnd,
		CliffPeriodEnd:  info.CliffPeriodEnd,
		NonCliffPeriod:  info.NonCliffPeriod,
		CliffBps:        info.CliffBps,
		Total:           amount.ToDecimal(info.Total),
		Roster:          make([]RosterEntry, 0, len(info.Roster)),
	}
	for _, e := range info.Roster {
		entry := RosterEntry{Beneficiary: e.Beneficiary.Hex(), Allocation: amount.ToDecimal(e.Allocation)}
		if e.MigratedFrom != nil {
			entry.MigratedFrom = e.MigratedFrom.Hex()
		}
		p.Roster = append(p.Roster, entry)
	}
	return p
}

func FromAllocations(views []vesting.AllocationView) []Allocation {
	out := make([]Allocation, 0, len(views))
	for _, v := range views {
		a := Allocation{
			Schedule:       string(v.Schedule),
			Allocation:     amount.ToDecimal(v.Allocation),
			Claimed:        amount.ToDecimal(v.Claimed),
			Remaining:      amount.ToDecimal(v.Remaining),
			Rate:           amount.ToDecimal(v.Rate),
			LastWithdrawal: v.LastWithdrawal,
			Deprecated:     v.Deprecated,
		}
		if v.Deprecated {
			a.MigratedTo = v.MigratedTo.Hex()
		}
		out = append(out, a)
	}
	return out
}

func FromReceipt(r vesting.Receipt) Receipt {
	return Receipt{
		PoolID:      r.PoolID,
		Schedule:    string(r.Schedule),
		Beneficiary: r.Beneficiary.Hex(),
		Amount:      amount.ToDecimal(r.Amount),
		Remaining:   amount.ToDecimal(r.Remaining),
		At:          r.At,
	}
}
