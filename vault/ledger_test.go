// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package vault

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/units"
)

func TestLedgerScenarioS1ThroughS5(t *testing.T) {
	l := NewLedger()
	d1 := fabric.NewIdentity()
	d2 := fabric.NewIdentity()

	// S1 — bootstrap and first deposit.
	l.Deposit(d1, units.NewBalance(1000))
	require.Equal(t, uint64(1000), l.IndexValue().Uint64())
	require.Equal(t, uint64(1000), l.ShareOf(d1).Uint64())
	require.Equal(t, uint64(1000), l.TotalSupply().Uint64())
	require.Equal(t, uint64(1000), l.BalanceOf(d1).Uint64())

	// S2 — withdraw.
	require.NoError(t, l.Withdraw(d1, units.NewBalance(400), units.NewBalance(1000)))
	require.Equal(t, uint64(600), l.IndexValue().Uint64())
	require.Equal(t, uint64(600), l.ShareOf(d1).Uint64())
	require.Equal(t, uint64(600), l.TotalSupply().Uint64())

	// S3 — revenue inflation.
	l.ReceiveRevenue(units.NewBalance(300))
	require.Equal(t, uint64(600), l.IndexValue().Uint64())
	require.Equal(t, uint64(600), l.ShareOf(d1).Uint64())
	require.Equal(t, uint64(900), l.TotalSupply().Uint64())
	require.Equal(t, uint64(900), l.BalanceOf(d1).Uint64())

	// S4 — second depositor dilutes index proportionally.
	l.Deposit(d2, units.NewBalance(300))
	require.Equal(t, uint64(800), l.IndexValue().Uint64())
	require.Equal(t, uint64(600), l.ShareOf(d1).Uint64())
	require.Equal(t, uint64(200), l.ShareOf(d2).Uint64())
	require.Equal(t, uint64(1200), l.TotalSupply().Uint64())
	require.Equal(t, uint64(900), l.BalanceOf(d1).Uint64())
	require.Equal(t, uint64(300), l.BalanceOf(d2).Uint64())

	// S5 — partial withdrawal of D2.
	require.NoError(t, l.Withdraw(d2, units.NewBalance(150), units.NewBalance(1200)))
	require.Equal(t, uint64(700), l.IndexValue().Uint64())
	require.Equal(t, uint64(100), l.ShareOf(d2).Uint64())
	require.Equal(t, uint64(1050), l.TotalSupply().Uint64())
	require.Equal(t, uint64(150), l.BalanceOf(d2).Uint64())
}

// P1: sum(share[d]) == Index exactly, across a mixed sequence.
func TestLedgerConservationOfShare(t *testing.T) {
	l := NewLedger()
	depositors := []fabric.Identity{fabric.NewIdentity(), fabric.NewIdentity(), fabric.NewIdentity()}

	l.Deposit(depositors[0], units.NewBalance(1000))
	l.Deposit(depositors[1], units.NewBalance(2500))
	l.ReceiveRevenue(units.NewBalance(777))
	l.Deposit(depositors[2], units.NewBalance(333))
	require.NoError(t, l.Withdraw(depositors[0], units.NewBalance(200), l.TotalSupply()))
	l.ReceiveRevenue(units.NewBalance(42))
	require.NoError(t, l.Withdraw(depositors[1], units.NewBalance(900), l.TotalSupply()))

	var sumShares units.Index
	for _, d := range depositors {
		sumShares = sumShares.Add(l.ShareOf(d))
	}
	require.Equal(t, l.IndexValue().String(), sumShares.String())
}

// P2: after receive_revenue(r), every balance is non-decreasing and every
// share is unchanged.
func TestLedgerValuePreservationOnRevenue(t *testing.T) {
	l := NewLedger()
	depositors := []fabric.Identity{fabric.NewIdentity(), fabric.NewIdentity()}
	l.Deposit(depositors[0], units.NewBalance(1000))
	l.Deposit(depositors[1], units.NewBalance(500))

	before := make(map[fabric.Identity]units.Balance)
	beforeShares := make(map[fabric.Identity]units.Index)
	for _, d := range depositors {
		before[d] = l.BalanceOf(d)
		beforeShares[d] = l.ShareOf(d)
	}

	l.ReceiveRevenue(units.NewBalance(150))

	for _, d := range depositors {
		require.True(t, l.BalanceOf(d).Cmp(before[d]) >= 0)
		require.Equal(t, beforeShares[d].String(), l.ShareOf(d).String())
	}
}

// P3: every depositor fully withdrawing dispenses TotalSupply at the start
// of the withdrawal sequence, modulo floor rounding of at most
// len(depositors)-1 units.
func TestLedgerWithdrawRoundTrip(t *testing.T) {
	l := NewLedger()
	depositors := []fabric.Identity{fabric.NewIdentity(), fabric.NewIdentity(), fabric.NewIdentity()}
	l.Deposit(depositors[0], units.NewBalance(1000))
	l.Deposit(depositors[1], units.NewBalance(333))
	l.ReceiveRevenue(units.NewBalance(71))
	l.Deposit(depositors[2], units.NewBalance(901))

	startSupply := l.TotalSupply().Uint64()

	var dispensed uint64
	for _, d := range depositors {
		bal := l.BalanceOf(d)
		require.NoError(t, l.Withdraw(d, bal, l.TotalSupply()))
		dispensed += bal.Uint64()
	}

	require.LessOrEqual(t, startSupply-dispensed, uint64(len(depositors)-1))
}

// P4: withdraw fails iff delta > withdrawable_of(caller); balance_of never
// underflows (it's floor division against nonnegative inputs by
// construction).
func TestLedgerNoNegativeBalance(t *testing.T) {
	l := NewLedger()
	d1 := fabric.NewIdentity()
	l.Deposit(d1, units.NewBalance(500))

	withdrawable := l.WithdrawableOf(d1, units.NewBalance(500))
	require.Equal(t, uint64(500), withdrawable.Uint64())

	err := l.Withdraw(d1, units.NewBalance(501), units.NewBalance(500))
	require.Error(t, err)
	var insufficient *InsufficientBalance
	require.ErrorAs(t, err, &insufficient)

	require.NoError(t, l.Withdraw(d1, units.NewBalance(500), units.NewBalance(500)))
	require.Equal(t, uint64(0), l.BalanceOf(d1).Uint64())
}

// P4 (continued): withdrawable_of uses the live held balance, not
// TotalSupply, so a vault that has lost cycles to drift caps withdrawals
// below the stale accounting value.
func TestLedgerWithdrawableUsesLiveBalanceNotTotalSupply(t *testing.T) {
	l := NewLedger()
	d1 := fabric.NewIdentity()
	l.Deposit(d1, units.NewBalance(1000))

	// Actual held balance has drifted down to 400 cycles even though
	// TotalSupply still says 1000.
	withdrawable := l.WithdrawableOf(d1, units.NewBalance(400))
	require.Equal(t, uint64(400), withdrawable.Uint64())

	err := l.Withdraw(d1, units.NewBalance(500), units.NewBalance(400))
	require.Error(t, err)
}

// P5: salvage never decreases TotalSupply.
func TestLedgerSalvageMonotone(t *testing.T) {
	l := NewLedger()
	d1 := fabric.NewIdentity()
	l.Deposit(d1, units.NewBalance(1000))

	prior := l.TotalSupply()
	l.Salvage(units.NewBalance(1500))
	require.True(t, l.TotalSupply().Cmp(prior) >= 0)
	require.Equal(t, uint64(1500), l.TotalSupply().Uint64())

	// Salvage with a smaller actual balance must not lower TotalSupply.
	prior = l.TotalSupply()
	l.Salvage(units.NewBalance(200))
	require.True(t, l.TotalSupply().Cmp(prior) >= 0)
	require.Equal(t, prior.String(), l.TotalSupply().String())
}
