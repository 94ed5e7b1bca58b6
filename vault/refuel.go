// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package vault

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/units"
)

// refuelTargets is the ordered, unique-by-ID collection backing
// put_refuel_target/get_refuel_targets (spec.md §4.1): insertion order is
// preserved across upserts, matching property test S6.
type refuelTargets struct {
	mu    sync.Mutex
	order []fabric.Identity
	byID  map[fabric.Identity]*RefuelTarget

	cumulative map[fabric.Identity]units.Balance
}

func newRefuelTargets() *refuelTargets {
	return &refuelTargets{
		byID:       make(map[fabric.Identity]*RefuelTarget),
		cumulative: make(map[fabric.Identity]units.Balance),
	}
}

// Put upserts t by t.ID, preserving first-seen position.
func (r *refuelTargets) Put(t RefuelTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[t.ID]; !exists {
		r.order = append(r.order, t.ID)
	}
	cp := t
	r.byID[t.ID] = &cp
}

// List returns every target in insertion order.
func (r *refuelTargets) List() []RefuelTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RefuelTarget, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

// Get looks up a single target by ID.
func (r *refuelTargets) Get(id fabric.Identity) (RefuelTarget, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return RefuelTarget{}, false
	}
	return *t, true
}

func (r *refuelTargets) addCumulative(id fabric.Identity, amount units.Balance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cumulative[id] = r.cumulative[id].Add(amount)
}

// CumulativeOf is the audit observer get_cumulative_refueled(target).
func (r *refuelTargets) CumulativeOf(id fabric.Identity) units.Balance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cumulative[id]
}

// CumulativeAll is get_cumulative_refueled_all().
func (r *refuelTargets) CumulativeAll() map[fabric.Identity]units.Balance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[fabric.Identity]units.Balance, len(r.cumulative))
	for k, v := range r.cumulative {
		out[k] = v
	}
	return out
}

// runRefuelTick implements spec.md §4.1's refuel loop body: visit every
// target in insertion order; dispatch exactly target.Amount when the
// observed balance is <= target.Threshold (or the observation itself
// failed, treated optimistically as "needs refueling"); skip on the
// strict ">" side to avoid threshold thrash. Iteration is sequential
// (spec.md §5) so a burst of refuels can never exceed self-supply at once.
func (v *Vault) runRefuelTick(ctx context.Context) {
	for _, target := range v.targets.List() {
		balance, err := v.fab.CyclesBalance(ctx, target.ID)
		needsRefuel := err != nil || balance.Cmp(target.Threshold) <= 0
		if !needsRefuel {
			continue
		}
		if err := v.fab.TransferCycles(ctx, target.ID, target.Amount); err != nil {
			v.log.Warn("refuel dispatch failed, skipping this tick",
				zap.String("target", target.ID.String()), zap.Error(err))
			continue
		}
		v.targets.addCumulative(target.ID, target.Amount)
	}
}
