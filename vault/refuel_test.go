// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package vault

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luxfi/triplet/clock"
	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/units"
)

func newTestVault(t *testing.T, fab fabric.Fabric) (*Vault, fabric.Identity) {
	t.Helper()
	self := fabric.NewIdentity()
	controllers := fabric.ControllerSet{self}
	return New(self, controllers, fab, time.Second, clock.NewMock(time.Unix(0, 0)), zap.NewNop()), self
}

// S6: refuel upsert preserves insertion order and upserts in place.
func TestRefuelTargetsUpsertOrderS6(t *testing.T) {
	fab := fabric.NewMemFabric()
	v, self := newTestVault(t, fab)

	t1 := fabric.NewIdentity()
	t2 := fabric.NewIdentity()

	require.NoError(t, v.PutRefuelTarget(self, RefuelTarget{ID: t1, Amount: units.NewBalance(200), Threshold: units.NewBalance(100)}))
	require.NoError(t, v.PutRefuelTarget(self, RefuelTarget{ID: t2, Amount: units.NewBalance(2000), Threshold: units.NewBalance(1000)}))
	require.NoError(t, v.PutRefuelTarget(self, RefuelTarget{ID: t1, Amount: units.NewBalance(300), Threshold: units.NewBalance(100)}))

	list := v.GetRefuelTargets()
	require.Len(t, list, 2)
	require.Equal(t, t1, list[0].ID)
	require.Equal(t, t2, list[1].ID)
	require.Equal(t, uint64(300), list[0].Amount.Uint64())
}

func TestPutRefuelTargetRequiresController(t *testing.T) {
	fab := fabric.NewMemFabric()
	v, _ := newTestVault(t, fab)
	stranger := fabric.NewIdentity()

	err := v.PutRefuelTarget(stranger, RefuelTarget{ID: fabric.NewIdentity(), Amount: units.NewBalance(1), Threshold: units.NewBalance(1)})
	require.Error(t, err)
	var unauth *Unauthorized
	require.ErrorAs(t, err, &unauth)
}

// P6/P7: a tick dispenses exactly amount to targets at/below threshold,
// zero otherwise, and CumulativeRefueled tracks successful dispenses.
func TestRefuelTickDispensesExactAmounts(t *testing.T) {
	fab := fabric.NewMemFabric()
	v, self := newTestVault(t, fab)

	starved := fabric.NewIdentity()
	healthy := fabric.NewIdentity()
	fab.RegisterHandler(starved, nil)
	fab.RegisterHandler(healthy, nil)

	require.NoError(t, v.PutRefuelTarget(self, RefuelTarget{ID: starved, Amount: units.NewBalance(500), Threshold: units.NewBalance(100)}))
	require.NoError(t, v.PutRefuelTarget(self, RefuelTarget{ID: healthy, Amount: units.NewBalance(500), Threshold: units.NewBalance(100)}))

	// starved sits at the threshold (<=, not <), healthy is above it.
	ctx := context.Background()
	_, _ = fab.CreateCanister(ctx, "")
	_ = fab.TransferCycles(ctx, starved, units.NewBalance(100))
	_ = fab.TransferCycles(ctx, healthy, units.NewBalance(101))

	v.runRefuelTick(ctx)

	starvedBal, err := fab.CyclesBalance(ctx, starved)
	require.NoError(t, err)
	require.Equal(t, uint64(600), starvedBal.Uint64()) // 100 + 500 dispensed

	healthyBal, err := fab.CyclesBalance(ctx, healthy)
	require.NoError(t, err)
	require.Equal(t, uint64(101), healthyBal.Uint64()) // untouched, strictly above threshold

	require.Equal(t, uint64(500), v.GetCumulativeRefueled(starved).Uint64())
	require.Equal(t, uint64(0), v.GetCumulativeRefueled(healthy).Uint64())
}

// An observation failure is treated optimistically as "needs refueling".
func TestRefuelTickTreatsObservationFailureAsNeedingRefuel(t *testing.T) {
	fab := fabric.NewMemFabric()
	v, self := newTestVault(t, fab)

	unreachable := fabric.NewIdentity() // never created on the fabric: CyclesBalance errors
	require.NoError(t, v.PutRefuelTarget(self, RefuelTarget{ID: unreachable, Amount: units.NewBalance(50), Threshold: units.NewBalance(10)}))

	v.runRefuelTick(context.Background())

	// TransferCycles to a nonexistent canister also fails, so cumulative
	// stays at zero even though the tick "tried".
	require.Equal(t, uint64(0), v.GetCumulativeRefueled(unreachable).Uint64())
}

func TestGetCycleBalancesGathersSelfAndTargets(t *testing.T) {
	fab := fabric.NewMemFabric()
	v, self := newTestVault(t, fab)
	ctx := context.Background()

	fab.RegisterHandler(self, nil)
	_ = fab.TransferCycles(ctx, self, units.NewBalance(42))

	t1 := fabric.NewIdentity()
	fab.RegisterHandler(t1, nil)
	_ = fab.TransferCycles(ctx, t1, units.NewBalance(7))
	require.NoError(t, v.PutRefuelTarget(self, RefuelTarget{ID: t1, Amount: units.NewBalance(1), Threshold: units.NewBalance(1)}))

	balances := v.GetCycleBalances(ctx)
	require.Len(t, balances, 2)
	require.Equal(t, self, balances[0].ID)
	require.Equal(t, uint64(42), balances[0].Amount.Uint64())
	require.Equal(t, t1, balances[1].ID)
	require.Equal(t, uint64(7), balances[1].Amount.Uint64())
}
