// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

// Package fabric describes the surface the control plane needs from the
// underlying message-passing compute fabric (canister creation, code
// installation, controller settings, inter-program calls, cycle transfer).
// The fabric's own primitives are out of scope for this repository; this
// package only pins down the interface every other package programs
// against, plus an in-memory fake good enough to drive unit tests.
package fabric

import (
	"fmt"

	"github.com/google/uuid"
)

// Identity is an opaque handle to a program (canister) running on the
// fabric. It is a value, never a pointer: cross-component references are
// always identities, never in-memory links.
type Identity struct {
	raw uuid.UUID
}

// NilIdentity is the zero value, used to mean "not yet assigned".
var NilIdentity Identity

// NewIdentity generates a fresh, fabric-unique identity.
func NewIdentity() Identity {
	return Identity{raw: uuid.New()}
}

// ParseIdentity parses the canonical string form of an Identity.
func ParseIdentity(s string) (Identity, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Identity{}, fmt.Errorf("fabric: invalid identity %q: %w", s, err)
	}
	return Identity{raw: u}, nil
}

// IsNil reports whether this identity was never assigned.
func (id Identity) IsNil() bool { return id.raw == uuid.Nil }

// String returns the canonical textual form, and satisfies fmt.Stringer so
// identities log and format cleanly.
func (id Identity) String() string { return id.raw.String() }

// MarshalJSON renders the identity as its string form.
func (id Identity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.raw.String() + `"`), nil
}

// UnmarshalJSON parses the identity from its string form.
func (id *Identity) UnmarshalJSON(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("fabric: invalid identity literal %q", b)
	}
	parsed, err := uuid.Parse(string(b[1 : len(b)-1]))
	if err != nil {
		return fmt.Errorf("fabric: invalid identity literal %q: %w", b, err)
	}
	id.raw = parsed
	return nil
}
