// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package proxy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/registry"
)

func TestAuthCacheDefaultDeny(t *testing.T) {
	c, err := NewAuthCache(8, nil, nil)
	require.NoError(t, err)
	require.False(t, c.CanisterExists(context.Background(), fabric.NewIdentity()))
}

func TestAuthCacheAllowList(t *testing.T) {
	allowed := fabric.NewIdentity()
	c, err := NewAuthCache(8, []fabric.Identity{allowed}, nil)
	require.NoError(t, err)
	require.True(t, c.CanisterExists(context.Background(), allowed))
	require.False(t, c.CanisterExists(context.Background(), fabric.NewIdentity()))
}

func TestAuthCacheRegistryLookupIsMemoized(t *testing.T) {
	reg := registry.NewMemRegistry()
	principal := fabric.NewIdentity()
	require.NoError(t, reg.RegisterCanister(context.Background(), principal, fabric.NewIdentity()))

	c, err := NewAuthCache(8, nil, reg)
	require.NoError(t, err)

	require.True(t, c.CanisterExists(context.Background(), principal))
	require.True(t, c.positive.Contains(principal))

	unregistered := fabric.NewIdentity()
	require.False(t, c.CanisterExists(context.Background(), unregistered))
}
