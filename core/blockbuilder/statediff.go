package blockbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	mapset "github.com/deckarep/golang-set/v2"
)

// AccountChange is the post-transaction view of one touched account: the new
// balance/nonce/code plus any storage slots written. A nil field means
// "unchanged from the prior value" rather than "set to zero"; ApplyDiff and
// ApplyAccountChange treat absence and zero-value differently for this
// reason.
type AccountChange struct {
	Balance *big.Int
	Nonce   *uint64
	Code    []byte
	Storage map[common.Hash]common.Hash
}

func (a *AccountChange) clone() *AccountChange {
	if a == nil {
		return nil
	}
	out := &AccountChange{}
	if a.Balance != nil {
		out.Balance = new(big.Int).Set(a.Balance)
	}
	if a.Nonce != nil {
		n := *a.Nonce
		out.Nonce = &n
	}
	if a.Code != nil {
		out.Code = append([]byte(nil), a.Code...)
	}
	if a.Storage != nil {
		out.Storage = make(map[common.Hash]common.Hash, len(a.Storage))
		for k, v := range a.Storage {
			out.Storage[k] = v
		}
	}
	return out
}

// merge overwrites a's fields with any field other sets (right-biased),
// leaving fields other leaves nil untouched.
func (a *AccountChange) merge(other *AccountChange) {
	if other.Balance != nil {
		a.Balance = new(big.Int).Set(other.Balance)
	}
	if other.Nonce != nil {
		n := *other.Nonce
		a.Nonce = &n
	}
	if other.Code != nil {
		a.Code = append([]byte(nil), other.Code...)
	}
	for k, v := range other.Storage {
		if a.Storage == nil {
			a.Storage = make(map[common.Hash]common.Hash, len(other.Storage))
		}
		a.Storage[k] = v
	}
}

// StateDiff accumulates per-address account changes produced over the course
// of a single block build. It is the caller-observable summary returned
// alongside the assembled Block; AddTransaction merges each transaction's
// diff into it before committing the same diff to the durable State.
type StateDiff struct {
	changes mapset.Set[common.Address]
	byAddr  map[common.Address]*AccountChange
}

// NewStateDiff returns an empty accumulator.
func NewStateDiff() *StateDiff {
	return &StateDiff{
		changes: mapset.NewThreadUnsafeSet[common.Address](),
		byAddr:  make(map[common.Address]*AccountChange),
	}
}

// Touched reports the set of addresses this diff has recorded a change for.
func (d *StateDiff) Touched() mapset.Set[common.Address] {
	return d.changes.Clone()
}

// Get returns the recorded change for addr, or nil if untouched.
func (d *StateDiff) Get(addr common.Address) *AccountChange {
	return d.byAddr[addr]
}

// ApplyAccountChange merges info into whatever change (if any) addr already
// has recorded, right-biased (info wins on any field it sets).
func (d *StateDiff) ApplyAccountChange(addr common.Address, info *AccountChange) {
	if info == nil {
		return
	}
	existing, ok := d.byAddr[addr]
	if !ok {
		d.byAddr[addr] = info.clone()
		d.changes.Add(addr)
		return
	}
	existing.merge(info)
}

// ApplyDiff merges every account change in other into d, right-biased.
func (d *StateDiff) ApplyDiff(other *StateDiff) {
	if other == nil {
		return
	}
	for addr, change := range other.byAddr {
		d.ApplyAccountChange(addr, change)
	}
}

// Len reports how many distinct addresses this diff has recorded a change
// for.
func (d *StateDiff) Len() int { return d.changes.Cardinality() }
