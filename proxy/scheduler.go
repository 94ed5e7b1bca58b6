// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package proxy

// computeEffectiveDelay implements spec.md §4.2's indexing scheduling
// algorithm steps 1-3: given the current unix-seconds timestamp and the
// caller's requested interval/delay, compute how many seconds from now
// the first tick should fire.
//
// When isRounded, the first tick is phase-aligned to the next multiple of
// intervalSecs from epoch, plus the caller's delaySecs on top; otherwise
// the caller's delaySecs is used verbatim. intervalSecs must be positive
// for the rounded branch (its callers validate this before arming a
// ticker off the same interval); a non-positive value falls back to the
// unrounded behavior rather than dividing by zero.
func computeEffectiveDelay(currentUnix, intervalSecs, delaySecs int64, isRounded bool) int64 {
	if !isRounded || intervalSecs <= 0 {
		return delaySecs
	}
	aligned := (currentUnix/intervalSecs)*intervalSecs + intervalSecs
	return aligned + delaySecs - currentUnix
}
