// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

// Package proxy implements spec.md §4.2: the router that forwards opaque
// calls to a triplet's target program, logging every hop through the
// Registry, and the indexing scheduler that drives periodic ticks against
// that target.
package proxy

import (
	"time"

	"github.com/luxfi/triplet/fabric"
)

// IndexingConfig is the scheduler's persisted configuration, set once by
// StartIndexing/StartIndexingWithIsRounded and re-read on every tick and
// on post-upgrade rearm.
type IndexingConfig struct {
	Interval  time.Duration `json:"interval"`
	Delay     time.Duration `json:"delay"`
	IsRounded bool          `json:"isRounded"`
	Method    string        `json:"method"`
	Args      []byte        `json:"args"`
}

// ExecutionResult is the outcome of the most recent indexing tick.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ComponentInfo is what get_component_info() returns: the three
// collaborator identities the Initializer needs during upgrade
// coordination.
type ComponentInfo struct {
	Target fabric.Identity `json:"target"`
	Vault  fabric.Identity `json:"vault"`
	DB     fabric.Identity `json:"db"`
}

// AlreadyStarted is returned by StartIndexing/StartIndexingWithIsRounded
// once NextSchedule is already nonzero.
type AlreadyStarted struct{}

func (*AlreadyStarted) Error() string { return "proxy: indexing already started" }

// NotStalled is returned by RestartIndexing when the stall-window guard
// (now > NextSchedule + 2*interval) has not yet elapsed.
type NotStalled struct{}

func (*NotStalled) Error() string { return "proxy: restart not permitted until stall window elapses" }

// NotStarted is returned by RestartIndexing when indexing was never armed.
type NotStarted struct{}

func (*NotStarted) Error() string { return "proxy: indexing was never started" }

// InvalidInterval is returned by StartIndexing/StartIndexingWithIsRounded
// when interval is below one second: IndexingConfig's task_interval_secs
// is whole seconds (spec.md §3), computeEffectiveDelay divides by that
// second count when isRounded, and arm's periodic ticker needs a positive
// duration regardless.
type InvalidInterval struct{ Interval time.Duration }

func (e *InvalidInterval) Error() string {
	return "proxy: invalid indexing interval " + e.Interval.String()
}

// Unauthorized is returned by controller- or target-gated operations when
// the caller lacks the required relation.
type Unauthorized struct{ Caller fabric.Identity }

func (e *Unauthorized) Error() string { return "proxy: unauthorized caller " + e.Caller.String() }

// NotRegistered is returned by upgrade coordination when the calling
// Proxy's target is not a registered principal.
type NotRegistered struct{ Target fabric.Identity }

func (e *NotRegistered) Error() string {
	return "proxy: target " + e.Target.String() + " is not registered"
}
