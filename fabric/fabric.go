// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package fabric

import (
	"context"
	"fmt"

	"github.com/luxfi/triplet/units"
)

// RejectionCode mirrors the fabric's native transport rejection taxonomy.
// It is only ever produced by the fabric collaborator, never by control
// plane business logic (which returns ordinary Go errors).
type RejectionCode int

const (
	// Reject is a generic transport-level rejection.
	Reject RejectionCode = iota
	// DestinationInvalid means the callee identity does not exist on the
	// fabric (a deleted or never-created canister).
	DestinationInvalid
	// DestinationOutOfCycles means the callee could not be reached because
	// it has been starved of cycles and the fabric froze it.
	DestinationOutOfCycles
)

func (c RejectionCode) String() string {
	switch c {
	case DestinationInvalid:
		return "DestinationInvalid"
	case DestinationOutOfCycles:
		return "DestinationOutOfCycles"
	default:
		return "Reject"
	}
}

// RejectError is the pair (rejection_code, message) every fabric-facing
// operation in this repository can fail with, per spec §6/§7.
type RejectError struct {
	Code    RejectionCode
	Message string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewRejectError builds a RejectError, the shape every outbound fabric call
// can fail with.
func NewRejectError(code RejectionCode, format string, args ...interface{}) error {
	return &RejectError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ControllerSet is the set of identities allowed to administer a program.
// A component's own ControllerSet is fixed at construction; the set the
// fabric records for a program is replaced through Fabric.SetControllers.
type ControllerSet []Identity

// Contains reports whether caller is one of the controllers.
func (c ControllerSet) Contains(caller Identity) bool {
	for _, id := range c {
		if id == caller {
			return true
		}
	}
	return false
}

// Fabric is the external collaborator surface described in spec.md §1's
// "out of scope" list: canister creation, code installation, controller
// settings, cycle transfer, and opaque inter-program calls. Every
// component in this repository is written against this interface, never
// against a concrete fabric implementation.
type Fabric interface {
	// CreateCanister provisions a new, empty program, optionally pinned to
	// subnet (empty string lets the fabric choose).
	CreateCanister(ctx context.Context, subnet string) (Identity, error)

	// SetControllers replaces the controller set of target.
	SetControllers(ctx context.Context, target Identity, controllers ControllerSet) error

	// InstallCode installs wasmModule with the given init args on target.
	// upgrade distinguishes a fresh install from a reinstall-in-place
	// (the fabric invokes the target's pre/post upgrade hooks only when
	// upgrade is true).
	InstallCode(ctx context.Context, target Identity, wasmModule []byte, initArgs []byte, upgrade bool) error

	// TransferCycles moves amount cycles from caller's reserve to target,
	// attached to the call the caller is about to make (the fabric's
	// "cycles accepted" semantics are opaque to this interface; the
	// receiving component decides how much of the attachment to accept).
	TransferCycles(ctx context.Context, target Identity, amount units.Balance) error

	// CyclesBalance observes target's currently held cycle balance. It is a
	// read, not a transfer.
	CyclesBalance(ctx context.Context, target Identity) (units.Balance, error)

	// Call performs an opaque inter-program invocation: caller asks target
	// to run method with payload, and gets back target's opaque reply (or
	// a RejectError on transport failure / callee trap).
	Call(ctx context.Context, caller, target Identity, method string, payload []byte) ([]byte, error)
}
