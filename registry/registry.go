// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

// Package registry describes the Registry surface the control plane
// consumes (spec.md §6): registerCanister, getRegisteredCanister, putLog,
// listLogsOf. The Registry canister's own storage is out of scope per
// spec.md §1; this package pins the interface and a reference in-memory
// implementation used by tests and the cmd/tripletd demo.
package registry

import (
	"context"
	"sync"

	"github.com/luxfi/triplet/fabric"
)

// Registration is what getRegisteredCanister returns for a registered
// principal.
type Registration struct {
	Principal fabric.Identity
	Vault     fabric.Identity
}

// CallLog is one appended record; At is a fabric-time integer (unix
// seconds). InteractTo serializes as "interactTo" per spec.md §6.
type CallLog struct {
	Canister   fabric.Identity `json:"canister"`
	InteractTo fabric.Identity `json:"interactTo"`
	At         int64           `json:"at"`
}

// Client is the Registry surface consumed by Proxy and Initializer.
type Client interface {
	// RegisterCanister records that principal's triplet is anchored at
	// vault.
	RegisterCanister(ctx context.Context, principal, vault fabric.Identity) error

	// GetRegisteredCanister looks up principal's registration, if any.
	GetRegisteredCanister(ctx context.Context, principal fabric.Identity) (*Registration, bool, error)

	// PutLog appends a call log entry. Callers on the best-effort logging
	// path (Proxy.ProxyCall) must treat a PutLog failure as
	// log-and-swallow, never as a reason to fail the forwarded call.
	PutLog(ctx context.Context, caller, target fabric.Identity, at int64) error

	// ListLogsOf returns every log entry recorded for target with
	// timestamp in [from, to].
	ListLogsOf(ctx context.Context, target fabric.Identity, from, to int64) ([]CallLog, error)
}

// MemRegistry is the reference in-memory Registry implementation.
type MemRegistry struct {
	mu            sync.RWMutex
	registrations map[fabric.Identity]*Registration
	logs          map[fabric.Identity][]CallLog
}

var _ Client = (*MemRegistry)(nil)

// NewMemRegistry returns an empty registry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{
		registrations: make(map[fabric.Identity]*Registration),
		logs:          make(map[fabric.Identity][]CallLog),
	}
}

func (r *MemRegistry) RegisterCanister(_ context.Context, principal, vault fabric.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[principal] = &Registration{Principal: principal, Vault: vault}
	return nil
}

func (r *MemRegistry) GetRegisteredCanister(_ context.Context, principal fabric.Identity) (*Registration, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.registrations[principal]
	if !ok {
		return nil, false, nil
	}
	cp := *reg
	return &cp, true, nil
}

func (r *MemRegistry) PutLog(_ context.Context, caller, target fabric.Identity, at int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[target] = append(r.logs[target], CallLog{Canister: caller, InteractTo: target, At: at})
	return nil
}

func (r *MemRegistry) ListLogsOf(_ context.Context, target fabric.Identity, from, to int64) ([]CallLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []CallLog
	for _, l := range r.logs[target] {
		if l.At >= from && l.At <= to {
			out = append(out, l)
		}
	}
	return out, nil
}
