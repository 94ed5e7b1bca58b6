// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package vault

import (
	"time"

	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/units"
)

// RefuelTarget is one entry of the refuel schedule: when Id's observed
// cycle balance is at or below Threshold, Vault dispenses exactly Amount.
type RefuelTarget struct {
	ID        fabric.Identity `json:"id"`
	Amount    units.Balance   `json:"amount"`
	Threshold units.Balance   `json:"threshold"`
}

// MetricsSnapshot is one entry of the monitoring loop's ring: the
// aggregate cycle balance observed at Timestamp.
type MetricsSnapshot struct {
	Timestamp time.Time     `json:"timestamp"`
	Cycles    units.Balance `json:"cycles"`
}

// InsufficientBalance is returned by Withdraw/WithdrawTo when the caller's
// withdrawable balance is below the requested amount.
type InsufficientBalance struct {
	Requested   units.Balance
	Withdrawable units.Balance
}

func (e *InsufficientBalance) Error() string {
	return "vault: insufficient balance: requested " + e.Requested.String() +
		", withdrawable " + e.Withdrawable.String()
}

// NoCycles is returned by Supply/ReceiveRevenue when zero cycles were
// attached to the call.
type NoCycles struct{}

func (*NoCycles) Error() string { return "vault: no cycles attached" }

// NoMetrics is returned by Metric() when the snapshot ring is empty.
type NoMetrics struct{}

func (*NoMetrics) Error() string { return "vault: no metrics recorded yet" }
