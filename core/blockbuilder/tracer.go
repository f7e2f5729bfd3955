package blockbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
)

// touchedSet collects every address and storage slot a transaction's EVM
// execution reports a state-event hook for. AddTransaction reads the
// authoritative post-execution value for each from State once runTransaction
// returns, rather than trusting the hook's own before/after arguments
// directly — those go stale if an inner call that set them later reverts,
// since go-ethereum's state journal restores a reverted value without
// re-firing the hook that observed it.
type touchedSet struct {
	addrs   map[common.Address]struct{}
	storage map[common.Address]map[common.Hash]struct{}
}

func newTouchedSet() *touchedSet {
	return &touchedSet{
		addrs:   make(map[common.Address]struct{}),
		storage: make(map[common.Address]map[common.Hash]struct{}),
	}
}

func (t *touchedSet) addAddr(addr common.Address) {
	t.addrs[addr] = struct{}{}
}

func (t *touchedSet) addStorage(addr common.Address, slot common.Hash) {
	t.addAddr(addr)
	if t.storage[addr] == nil {
		t.storage[addr] = make(map[common.Hash]struct{})
	}
	t.storage[addr][slot] = struct{}{}
}

// hooks returns a state-event hook table that records every touched address
// and storage slot into t, chained after external's hooks for the same
// events (if any) so a caller-supplied live tracer keeps observing
// everything it did before. Other hook fields on external (OnEnter, OnOpcode,
// ...) pass through untouched.
func (t *touchedSet) hooks(external *tracing.Hooks) *tracing.Hooks {
	var merged tracing.Hooks
	if external != nil {
		merged = *external
	}

	onBalance := merged.OnBalanceChange
	merged.OnBalanceChange = func(addr common.Address, prev, new *big.Int, reason tracing.BalanceChangeReason) {
		t.addAddr(addr)
		if onBalance != nil {
			onBalance(addr, prev, new, reason)
		}
	}

	onNonce := merged.OnNonceChange
	merged.OnNonceChange = func(addr common.Address, prev, new uint64) {
		t.addAddr(addr)
		if onNonce != nil {
			onNonce(addr, prev, new)
		}
	}

	onCode := merged.OnCodeChange
	merged.OnCodeChange = func(addr common.Address, prevCodeHash common.Hash, prevCode []byte, codeHash common.Hash, code []byte) {
		t.addAddr(addr)
		if onCode != nil {
			onCode(addr, prevCodeHash, prevCode, codeHash, code)
		}
	}

	onStorage := merged.OnStorageChange
	merged.OnStorageChange = func(addr common.Address, slot common.Hash, prev, new common.Hash) {
		t.addStorage(addr, slot)
		if onStorage != nil {
			onStorage(addr, slot, prev, new)
		}
	}

	return &merged
}
