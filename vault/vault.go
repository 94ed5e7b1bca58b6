// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package vault

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/triplet/clock"
	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/units"
)

// Unauthorized is returned by controller-gated operations when the caller
// is not in the controller set.
type Unauthorized struct{ Caller fabric.Identity }

func (e *Unauthorized) Error() string { return "vault: unauthorized caller " + e.Caller.String() }

// Vault is the cycle-share ledger, refueler, and self-metrics component of
// spec.md §4.1. One Vault instance serves one triplet.
type Vault struct {
	self        fabric.Identity
	controllers fabric.ControllerSet
	fab         fabric.Fabric
	clk         clock.Clock
	log         *zap.Logger

	ledger  *Ledger
	targets *refuelTargets
	metrics *metricsRing

	refuelInterval time.Duration

	mu         sync.Mutex
	cancelLoop func()
}

// New constructs a Vault wired to its own fabric identity, the fabric
// collaborator, its controller set, and the refuel interval to use once
// StartLoops is called. fab.CyclesBalance(ctx, self) is how Vault learns
// its own held balance for withdraw eligibility and salvage.
func New(self fabric.Identity, controllers fabric.ControllerSet, fab fabric.Fabric, refuelInterval time.Duration, clk clock.Clock, log *zap.Logger) *Vault {
	return &Vault{
		self:           self,
		controllers:    controllers,
		fab:            fab,
		clk:            clk,
		log:            log,
		ledger:         NewLedger(),
		targets:        newRefuelTargets(),
		metrics:        newMetricsRing(defaultMetricsRetention),
		refuelInterval: refuelInterval,
	}
}

func (v *Vault) requireController(caller fabric.Identity) error {
	if !v.controllers.Contains(caller) {
		return &Unauthorized{Caller: caller}
	}
	return nil
}

// Supply credits depositor (default: caller, when depositor is the nil
// identity) with the cycles attached to this call. A zero-cycle call
// fails silently: per spec.md §4.1 it "fails with zero credit", so the
// error is purely informational, never a reason to abort the caller.
func (v *Vault) Supply(caller, depositor fabric.Identity, attachedCycles units.Balance) error {
	if depositor.IsNil() {
		depositor = caller
	}
	if attachedCycles.IsZero() {
		return &NoCycles{}
	}
	v.ledger.Deposit(depositor, attachedCycles)
	return nil
}

// WithdrawTo withdraws delta cycles from caller's claim and dispatches
// them to recipient. Withdraw(ctx, caller, delta) is the caller-is-
// recipient special case spec.md §4.1 describes; WithdrawTo generalizes it
// per SPEC_FULL.md's supplemented-features section.
func (v *Vault) WithdrawTo(ctx context.Context, caller, recipient fabric.Identity, delta units.Balance) error {
	actual, err := v.fab.CyclesBalance(ctx, v.self)
	if err != nil {
		return err
	}
	if err := v.ledger.Withdraw(caller, delta, actual); err != nil {
		return err
	}
	if err := v.fab.TransferCycles(ctx, recipient, delta); err != nil {
		return err
	}
	return nil
}

// Withdraw is WithdrawTo with the caller as its own recipient, the
// operation spec.md §4.1 names directly.
func (v *Vault) Withdraw(ctx context.Context, caller fabric.Identity, delta units.Balance) error {
	return v.WithdrawTo(ctx, caller, caller, delta)
}

// ReceiveRevenue accepts attached cycles and inflates TotalSupply only, per
// spec.md §4.1. A zero-cycle call fails NoCycles.
func (v *Vault) ReceiveRevenue(attachedCycles units.Balance) error {
	if attachedCycles.IsZero() {
		return &NoCycles{}
	}
	v.ledger.ReceiveRevenue(attachedCycles)
	return nil
}

// BalanceOf is the pure observer balance_of(p).
func (v *Vault) BalanceOf(p fabric.Identity) units.Balance { return v.ledger.BalanceOf(p) }

// ShareOf is the pure observer share_of(p).
func (v *Vault) ShareOf(p fabric.Identity) units.Index { return v.ledger.ShareOf(p) }

// TotalSupply is the pure observer total_supply().
func (v *Vault) TotalSupply() units.Balance { return v.ledger.TotalSupply() }

// IndexValue is the pure observer index().
func (v *Vault) IndexValue() units.Index { return v.ledger.IndexValue() }

// WithdrawableOf reports the live-balance-denominated withdrawable amount
// for p, fetching the vault's actual held balance from the fabric.
func (v *Vault) WithdrawableOf(ctx context.Context, p fabric.Identity) (units.Balance, error) {
	actual, err := v.fab.CyclesBalance(ctx, v.self)
	if err != nil {
		return units.ZeroBalance(), err
	}
	return v.ledger.WithdrawableOf(p, actual), nil
}

// SalvageStrayCycles raises TotalSupply to match the vault's actual held
// balance when that balance exceeds TotalSupply (spec.md §3, property P5).
// Controller-only: it mutates the accounting of every depositor's implicit
// pro-rata value at once and should not be caller-triggerable by anyone
// holding a claim. This operation is named in SPEC_FULL.md's supplemented
// features; spec.md's §3 only describes the invariant, not the call.
func (v *Vault) SalvageStrayCycles(ctx context.Context, caller fabric.Identity) error {
	if err := v.requireController(caller); err != nil {
		return err
	}
	actual, err := v.fab.CyclesBalance(ctx, v.self)
	if err != nil {
		return err
	}
	v.ledger.Salvage(actual)
	return nil
}

// PutRefuelTarget upserts t by ID, controller-only, preserving insertion
// order across re-inserts (spec.md §4.1, property test S6).
func (v *Vault) PutRefuelTarget(caller fabric.Identity, t RefuelTarget) error {
	if err := v.requireController(caller); err != nil {
		return err
	}
	v.targets.Put(t)
	return nil
}

// GetRefuelTargets returns every target in insertion order.
func (v *Vault) GetRefuelTargets() []RefuelTarget { return v.targets.List() }

// GetRefuelTarget looks up a single target by id (SPEC_FULL.md supplemented
// feature #2).
func (v *Vault) GetRefuelTarget(id fabric.Identity) (RefuelTarget, bool) {
	return v.targets.Get(id)
}

// GetCycleBalances is the public get_cycle_balances() operation.
func (v *Vault) GetCycleBalances(ctx context.Context) []CycleBalance {
	return v.getCycleBalances(ctx)
}

// GetCumulativeRefueled is get_cumulative_refueled(target).
func (v *Vault) GetCumulativeRefueled(target fabric.Identity) units.Balance {
	return v.targets.CumulativeOf(target)
}

// GetCumulativeRefueledAll is get_cumulative_refueled_all().
func (v *Vault) GetCumulativeRefueledAll() map[fabric.Identity]units.Balance {
	return v.targets.CumulativeAll()
}

// Metric returns the latest snapshot, failing NoMetrics when the ring is
// empty.
func (v *Vault) Metric() (MetricsSnapshot, error) {
	s, ok := v.metrics.latest()
	if !ok {
		return MetricsSnapshot{}, &NoMetrics{}
	}
	return s, nil
}

// Metrics returns the last n snapshots, oldest first.
func (v *Vault) Metrics(n int) []MetricsSnapshot { return v.metrics.lastN(n) }

// StartLoops arms the refuel loop (every refuelInterval) and the
// monitoring loop (phase-aligned first tick, then every monitorInterval,
// plus an immediate one-shot tick per spec.md §4.1), returning a function
// that cancels both. It is safe to call once per Vault lifetime; a second
// call replaces the previous loops (mirroring the upgrade-rearm behavior
// of Proxy's scheduler, spec.md §4.2).
func (v *Vault) StartLoops(ctx context.Context, monitorInterval time.Duration) (stop func()) {
	v.mu.Lock()
	if v.cancelLoop != nil {
		v.cancelLoop()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	v.cancelLoop = cancel
	v.mu.Unlock()

	go v.runRefuelLoop(loopCtx)
	go v.runMonitorLoop(loopCtx, monitorInterval)

	return cancel
}

func (v *Vault) runRefuelLoop(ctx context.Context) {
	if v.refuelInterval <= 0 {
		return
	}
	ticker := clock.NewRealTicker(v.refuelInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			v.runRefuelTick(ctx)
		}
	}
}

// nextAlignedTick computes ceil(now/interval)*interval, the phase-aligned
// grid point spec.md §4.1 schedules the monitoring loop's first tick
// against. The indexing scheduler's computeEffectiveDelay (proxy package)
// aligns to floor(now/interval)*interval+interval instead; the two agree
// except when now already sits on a grid point.
func nextAlignedTick(now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return now
	}
	unix := now.Unix()
	step := int64(interval / time.Second)
	aligned := ((unix + step - 1) / step) * step
	return time.Unix(aligned, 0).UTC()
}

func (v *Vault) runMonitorLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	// Immediate one-shot tick, per spec.md §4.1.
	v.runMonitorTick(ctx)

	first := nextAlignedTick(v.clk.Now(), interval)
	timer := time.NewTimer(time.Until(first))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		v.runMonitorTick(ctx)
	}

	ticker := clock.NewRealTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			v.runMonitorTick(ctx)
		}
	}
}
