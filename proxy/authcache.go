// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package proxy

import (
	"context"

	lru "github.com/hashicorp/golang-lru"

	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/registry"
)

// AuthCache resolves canister_exists(caller), spec.md's documented
// authentication gap: every extant revision hard-wires the check to true,
// with the intent "consult Registry with a positive cache" left
// commented out. This repository surfaces the policy spec.md's Design
// Notes ask for instead: default-deny, a static allow-list for known-good
// callers (service accounts, the Initializer), and an opt-in Registry
// lookup backed by a bounded positive cache so a legitimate but
// frequently-calling principal isn't re-queried on every single
// proxy_call.
type AuthCache struct {
	positive *lru.Cache
	allow    map[fabric.Identity]struct{}
	reg      registry.Client // nil disables the Registry lookup entirely
}

// NewAuthCache builds an AuthCache with a positive-result cache of size
// cacheSize, a static allow-list, and an optional Registry client. Passing
// a nil reg means only the allow-list is consulted (useful for tests and
// for deployments that want the Registry check left off entirely).
func NewAuthCache(cacheSize int, allow []fabric.Identity, reg registry.Client) (*AuthCache, error) {
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	allowSet := make(map[fabric.Identity]struct{}, len(allow))
	for _, id := range allow {
		allowSet[id] = struct{}{}
	}
	return &AuthCache{positive: c, allow: allowSet, reg: reg}, nil
}

// CanisterExists reports whether caller is permitted to route calls
// through this Proxy. Default-deny: true only for an allow-listed
// identity, or (when a Registry client is wired) a principal the Registry
// confirms is registered, memoized in the positive cache.
func (a *AuthCache) CanisterExists(ctx context.Context, caller fabric.Identity) bool {
	if _, ok := a.allow[caller]; ok {
		return true
	}
	if a.positive.Contains(caller) {
		return true
	}
	if a.reg == nil {
		return false
	}
	_, found, err := a.reg.GetRegisteredCanister(ctx, caller)
	if err != nil || !found {
		return false
	}
	a.positive.Add(caller, struct{}{})
	return true
}
