// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

// Package initializer implements spec.md §4.3: the triplet orchestrator
// that provisions a Vault/DB/Proxy trio for a tenant program, registers
// it, and coordinates its upgrades.
package initializer

import (
	"time"

	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/units"
)

// CyclesBudget is the required input budget for Initialize: the caller
// must have attached at least Total() cycles, or the call fails fatally
// before anything is created.
type CyclesBudget struct {
	VaultInitial   units.Balance
	IndexerInitial units.Balance
	DBInitial      units.Balance
	ProxyInitial   units.Balance
}

// Total sums the budget's four components.
func (b CyclesBudget) Total() units.Balance {
	return b.VaultInitial.Add(b.IndexerInitial).Add(b.DBInitial).Add(b.ProxyInitial)
}

// Triplet is the ⟨Proxy, DB, Vault⟩ trio deployed for a single target
// program (the "indexer"), plus provisioning metadata kept for the
// supplemented audit reads get_triplet/list_triplets.
type Triplet struct {
	Indexer   fabric.Identity `json:"indexer"`
	Vault     fabric.Identity `json:"vault"`
	DB        fabric.Identity `json:"db"`
	Proxy     fabric.Identity `json:"proxy"`
	CreatedAt time.Time       `json:"createdAt"`
}

// MetricsSnapshot is the Initializer's own self-metrics entry: unlike the
// Vault's bounded multi-entry ring, the Initializer keeps exactly one (spec.md's
// Design Notes: "the Initializer keeps exactly one... fix one
// explicitly").
type MetricsSnapshot struct {
	Timestamp time.Time     `json:"timestamp"`
	Cycles    units.Balance `json:"cycles"`
}

// InsufficientCyclesAccepted is returned by Initialize when fewer cycles
// were attached to the call than CyclesBudget.Total() requires.
type InsufficientCyclesAccepted struct {
	Required units.Balance
	Accepted units.Balance
}

func (e *InsufficientCyclesAccepted) Error() string {
	return "initializer: insufficient cycles accepted: required " + e.Required.String() +
		", accepted " + e.Accepted.String()
}

// PartialOrchestration is returned when an orchestration phase fails
// partway through; Deployed names every identity successfully created so
// far so the caller can reclaim them (spec.md §7).
type PartialOrchestration struct {
	Deployed []fabric.Identity
	Cause    error
}

func (e *PartialOrchestration) Error() string {
	msg := "initializer: orchestration failed after deploying ["
	for i, id := range e.Deployed {
		if i > 0 {
			msg += ", "
		}
		msg += id.String()
	}
	return msg + "]: " + e.Cause.Error()
}

func (e *PartialOrchestration) Unwrap() error { return e.Cause }

// Unauthorized is returned by controller-gated operations.
type Unauthorized struct{ Caller fabric.Identity }

func (e *Unauthorized) Error() string {
	return "initializer: unauthorized caller " + e.Caller.String()
}

// NotRegisteredProxy is returned by UpgradeProxies when the caller is not
// a Proxy this Initializer provisioned, or its indexer was never
// registered.
type NotRegisteredProxy struct{ Caller fabric.Identity }

func (e *NotRegisteredProxy) Error() string {
	return "initializer: caller " + e.Caller.String() + " is not a registered proxy"
}

// NoMetrics is returned by Metric() before the first tick of
// start_metrics_timer.
type NoMetrics struct{}

func (*NoMetrics) Error() string { return "initializer: no metrics recorded yet" }

// NotFound is returned by GetTriplet for an unknown indexer.
type NotFound struct{ Indexer fabric.Identity }

func (e *NotFound) Error() string { return "initializer: no triplet for indexer " + e.Indexer.String() }
