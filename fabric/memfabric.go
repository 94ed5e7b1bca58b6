// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package fabric

import (
	"context"
	"sync"

	"github.com/luxfi/triplet/units"
)

// program is the fake fabric's bookkeeping for one created canister.
type program struct {
	controllers ControllerSet
	wasmModule  []byte
	initArgs    []byte
	installed   bool
	cycles      units.Balance
	handler     CallHandler
}

// CallHandler lets a test register how a given identity answers inbound
// Call invocations, standing in for "the canister's own code actually
// running". Components under test register themselves here.
type CallHandler func(ctx context.Context, caller Identity, method string, payload []byte) ([]byte, error)

// MemFabric is an in-memory Fabric good enough to drive every package's
// unit tests without a real compute fabric. It is not a production
// implementation of any fabric primitive -- those are explicitly out of
// scope per spec.md §1.
type MemFabric struct {
	mu       sync.Mutex
	programs map[Identity]*program
}

var _ Fabric = (*MemFabric)(nil)

// NewMemFabric returns an empty fake fabric.
func NewMemFabric() *MemFabric {
	return &MemFabric{programs: make(map[Identity]*program)}
}

// RegisterHandler binds id's CallHandler, i.e. "installs the program's
// code" from the test's point of view. Call will route through it.
func (f *MemFabric) RegisterHandler(id Identity, h CallHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.programs[id]
	if p == nil {
		p = &program{}
		f.programs[id] = p
	}
	p.handler = h
}

func (f *MemFabric) CreateCanister(_ context.Context, _ string) (Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := NewIdentity()
	f.programs[id] = &program{}
	return id, nil
}

func (f *MemFabric) SetControllers(_ context.Context, target Identity, controllers ControllerSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.programs[target]
	if !ok {
		return NewRejectError(DestinationInvalid, "no such canister %s", target)
	}
	p.controllers = controllers
	return nil
}

func (f *MemFabric) InstallCode(_ context.Context, target Identity, wasmModule, initArgs []byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.programs[target]
	if !ok {
		return NewRejectError(DestinationInvalid, "no such canister %s", target)
	}
	p.wasmModule = wasmModule
	p.initArgs = initArgs
	p.installed = true
	return nil
}

func (f *MemFabric) TransferCycles(_ context.Context, target Identity, amount units.Balance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.programs[target]
	if !ok {
		return NewRejectError(DestinationInvalid, "no such canister %s", target)
	}
	p.cycles = p.cycles.Add(amount)
	return nil
}

func (f *MemFabric) CyclesBalance(_ context.Context, target Identity) (units.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.programs[target]
	if !ok {
		return units.ZeroBalance(), NewRejectError(DestinationInvalid, "no such canister %s", target)
	}
	return p.cycles, nil
}

// DebitCycles removes amount from target's held balance, used by tests
// simulating a component spending its own cycles (e.g. a refuel dispatch).
func (f *MemFabric) DebitCycles(target Identity, amount units.Balance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.programs[target]
	if !ok {
		return
	}
	p.cycles = p.cycles.Sub(amount)
}

func (f *MemFabric) Call(ctx context.Context, caller, target Identity, method string, payload []byte) ([]byte, error) {
	f.mu.Lock()
	p, ok := f.programs[target]
	f.mu.Unlock()
	if !ok {
		return nil, NewRejectError(DestinationInvalid, "no such canister %s", target)
	}
	if p.handler == nil {
		return nil, NewRejectError(Reject, "canister %s has no installed handler", target)
	}
	return p.handler(ctx, caller, method, payload)
}
