// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package vault

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/units"
)

// SupplyArgs/withdrawArgs mirror the JSON shape an inbound proxy_call
// carries for these methods; Dispatch is the method-name switch a real
// canister's message entry point would be, wiring Vault into the fabric's
// opaque Call surface (fabric.CallHandler) the same way MemFabric expects
// every installed program to answer.
type SupplyArgs struct {
	Depositor      fabric.Identity `json:"depositor"`
	AttachedCycles units.Balance   `json:"attachedCycles"`
}

type withdrawArgs struct {
	Recipient fabric.Identity `json:"recipient"`
	Delta     units.Balance   `json:"delta"`
}

// Dispatch implements fabric.CallHandler, routing opaque inter-program
// calls to Vault's typed operations. It is registered with the fabric at
// install time (see cmd/tripletd) so other components addressing this
// Vault by identity reach the real ledger rather than a stub.
func (v *Vault) Dispatch(ctx context.Context, caller fabric.Identity, method string, payload []byte) ([]byte, error) {
	switch method {
	case "supply":
		var args SupplyArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		depositor := args.Depositor
		if depositor.IsNil() {
			depositor = caller
		}
		if err := v.Supply(caller, depositor, args.AttachedCycles); err != nil {
			return nil, err
		}
		return json.Marshal(v.BalanceOf(depositor))

	case "withdraw":
		var args withdrawArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		recipient := args.Recipient
		if recipient.IsNil() {
			recipient = caller
		}
		if err := v.WithdrawTo(ctx, caller, recipient, args.Delta); err != nil {
			return nil, err
		}
		return json.Marshal(v.BalanceOf(caller))

	case "receive_revenue":
		var amount units.Balance
		if err := json.Unmarshal(payload, &amount); err != nil {
			return nil, err
		}
		if err := v.ReceiveRevenue(amount); err != nil {
			return nil, err
		}
		return json.Marshal(v.TotalSupply())

	case "balance_of":
		return json.Marshal(v.BalanceOf(caller))

	case "total_supply":
		return json.Marshal(v.TotalSupply())

	case "index":
		return json.Marshal(v.IndexValue())

	case "salvage_stray_cycles":
		if err := v.SalvageStrayCycles(ctx, caller); err != nil {
			return nil, err
		}
		return json.Marshal(v.TotalSupply())

	case "put_refuel_target":
		var t RefuelTarget
		if err := json.Unmarshal(payload, &t); err != nil {
			return nil, err
		}
		if err := v.PutRefuelTarget(caller, t); err != nil {
			return nil, err
		}
		return nil, nil

	case "get_refuel_targets":
		return json.Marshal(v.GetRefuelTargets())

	case "get_cycle_balances":
		return json.Marshal(v.GetCycleBalances(ctx))

	case "metric":
		snap, err := v.Metric()
		if err != nil {
			return nil, err
		}
		return json.Marshal(snap)

	default:
		return nil, fmt.Errorf("vault: unknown method %q", method)
	}
}
