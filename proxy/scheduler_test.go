// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package proxy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S7 — indexing delay alignment.
func TestComputeEffectiveDelayS7(t *testing.T) {
	require.Equal(t, int64(45), computeEffectiveDelay(946684815, 60, 0, true))
	require.Equal(t, int64(75), computeEffectiveDelay(946684815, 90, 0, true))
	require.Equal(t, int64(3030), computeEffectiveDelay(946685400, 3600, 30, true))
}

func TestComputeEffectiveDelayUnrounded(t *testing.T) {
	require.Equal(t, int64(17), computeEffectiveDelay(946684815, 60, 17, false))
	require.Equal(t, int64(0), computeEffectiveDelay(946684815, 60, 0, false))
}

// P9: with is_rounded=true, the first firing timestamp is congruent to
// delay_secs modulo interval_secs relative to the aligned grid.
func TestComputeEffectiveDelayRoundedCongruence(t *testing.T) {
	current := int64(946684815)
	interval := int64(60)
	delay := int64(7)

	effective := computeEffectiveDelay(current, interval, delay, true)
	firing := current + effective
	require.Equal(t, delay%interval, firing%interval)
}
