// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package vault

import (
	"sync"

	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/units"
)

// Ledger is the pooled-deposit share engine described in spec.md §3: each
// depositor owns a fractional Index claim against a shared, continuously
// revalued TotalSupply. It holds no notion of identity beyond the map key;
// auth and fabric I/O live one layer up, in Vault.
type Ledger struct {
	mu          sync.Mutex
	shares      map[fabric.Identity]units.Index
	index       units.Index
	totalSupply units.Balance
}

// NewLedger returns an empty ledger: Index=0, TotalSupply=0.
func NewLedger() *Ledger {
	return &Ledger{shares: make(map[fabric.Identity]units.Index)}
}

// Deposit credits depositor with delta cycles per spec.md §3's index
// formula, and folds delta into TotalSupply/Index. Used by Supply
// (spec.md §4.1).
func (l *Ledger) Deposit(depositor fabric.Identity, delta units.Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.depositLocked(depositor, delta)
}

func (l *Ledger) depositLocked(depositor fabric.Identity, delta units.Balance) {
	var shareDelta units.Index
	if l.totalSupply.IsZero() {
		// Bootstrap: first deposit mints shares 1:1 with cycles.
		shareDelta = units.BalanceToIndex(delta)
	} else {
		shareDelta = units.MulDivFloor(delta, l.index, l.totalSupply)
	}
	l.shares[depositor] = l.shares[depositor].Add(shareDelta)
	l.index = l.index.Add(shareDelta)
	l.totalSupply = l.totalSupply.Add(delta)
}

// ReceiveRevenue adds r to TotalSupply only, inflating every depositor's
// balance pro-rata without touching shares or Index (spec.md §4.1,
// property P2).
func (l *Ledger) ReceiveRevenue(r units.Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalSupply = l.totalSupply.Add(r)
}

// WithdrawableOf computes share[p]*actualBalance/Index (floor), the
// live-balance-denominated availability check spec.md §4.1 requires
// Withdraw to use instead of BalanceOf's TotalSupply-denominated value.
func (l *Ledger) WithdrawableOf(p fabric.Identity, actualBalance units.Balance) units.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.withdrawableOfLocked(p, actualBalance)
}

func (l *Ledger) withdrawableOfLocked(p fabric.Identity, actualBalance units.Balance) units.Balance {
	if l.index.IsZero() {
		return units.ZeroBalance()
	}
	return units.MulDivFloorBalance(l.shares[p], actualBalance, l.index)
}

// Withdraw removes delta cycles from depositor's claim, the negation of
// Deposit, after checking WithdrawableOf(depositor, actualBalance) >= delta.
// actualBalance is the component's live held cycle balance, per spec.md's
// "defense against under-accounting drift". The burned share is
// delta*Index/TotalSupply rounded up, so a withdrawal never leaves a
// fraction of a share behind with its depositor.
func (l *Ledger) Withdraw(depositor fabric.Identity, delta, actualBalance units.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	withdrawable := l.withdrawableOfLocked(depositor, actualBalance)
	if delta.Cmp(withdrawable) > 0 {
		return &InsufficientBalance{Requested: delta, Withdrawable: withdrawable}
	}
	if delta.IsZero() {
		return nil
	}

	shareDelta := units.MulDivFloor(delta, l.index, l.totalSupply)
	if units.MulDivFloorBalance(shareDelta, l.totalSupply, l.index).Cmp(delta) < 0 {
		// delta*Index/TotalSupply was not exact: round the burn up.
		shareDelta = shareDelta.Add(units.NewIndex(1))
	}
	l.shares[depositor] = l.shares[depositor].Sub(shareDelta)
	l.index = l.index.Sub(shareDelta)
	l.totalSupply = l.totalSupply.Sub(delta)
	return nil
}

// BalanceOf is the accounting-level value of a depositor's claim:
// share[d] * TotalSupply / Index (floor).
func (l *Ledger) BalanceOf(p fabric.Identity) units.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index.IsZero() {
		return units.ZeroBalance()
	}
	return units.MulDivFloorBalance(l.shares[p], l.totalSupply, l.index)
}

// ShareOf returns a depositor's raw share, defaulting to zero for unknown
// depositors per spec.md §3.
func (l *Ledger) ShareOf(p fabric.Identity) units.Index {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shares[p]
}

// TotalSupply observes the aggregate cycle claim.
func (l *Ledger) TotalSupply() units.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalSupply
}

// IndexValue observes the ledger's internal share accumulator.
func (l *Ledger) IndexValue() units.Index {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.index
}

// Salvage raises TotalSupply to match actualBalance if actualBalance
// exceeds it, per spec.md §3's salvage invariant and property P5. It never
// lowers TotalSupply.
func (l *Ledger) Salvage(actualBalance units.Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if actualBalance.Cmp(l.totalSupply) > 0 {
		l.totalSupply = actualBalance
	}
}
