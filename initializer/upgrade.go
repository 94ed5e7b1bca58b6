// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package initializer

import (
	"context"

	"github.com/luxfi/triplet/fabric"
)

// UpgradeProxies implements spec.md §4.3's upgrade_proxies(): caller must
// be a Proxy this Initializer provisioned. Upgrade-installs db, then
// vault, then the caller Proxy itself, each with its current WASM module
// and empty args, in that strict order.
func (in *Initializer) UpgradeProxies(ctx context.Context, caller fabric.Identity) error {
	in.mu.Lock()
	indexer, ok := in.byProxy[caller]
	var t Triplet
	if ok {
		t = *in.triplets[indexer]
	}
	in.mu.Unlock()
	if !ok {
		return &NotRegisteredProxy{Caller: caller}
	}

	if _, found, err := in.reg.GetRegisteredCanister(ctx, t.Indexer); err != nil {
		return err
	} else if !found {
		return &NotRegisteredProxy{Caller: caller}
	}

	if err := in.fab.InstallCode(ctx, t.DB, in.dbWasm, nil, true); err != nil {
		return err
	}
	if err := in.fab.InstallCode(ctx, t.Vault, in.vaultWasm, nil, true); err != nil {
		return err
	}
	if err := in.fab.InstallCode(ctx, caller, in.proxyWasm, nil, true); err != nil {
		return err
	}
	return nil
}
