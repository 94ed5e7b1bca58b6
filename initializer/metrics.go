// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package initializer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/triplet/clock"
	"github.com/luxfi/triplet/fabric"
)

// StartMetricsTimer arms the self-metrics loop, controller-only: every
// interval it observes this Initializer's own cycle balance and keeps
// exactly the most recent snapshot (spec.md's Design Notes fix the
// Initializer's retention at 1 entry, unlike the Vault's bounded
// multi-entry ring).
func (in *Initializer) StartMetricsTimer(ctx context.Context, caller fabric.Identity, interval time.Duration) error {
	if err := in.requireController(caller); err != nil {
		return err
	}

	in.mu.Lock()
	if in.cancelMetric != nil {
		in.cancelMetric()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	in.cancelMetric = cancel
	in.mu.Unlock()

	go in.runMetricsLoop(loopCtx, interval)
	return nil
}

func (in *Initializer) runMetricsLoop(ctx context.Context, interval time.Duration) {
	in.recordMetric(ctx)

	ticker := clock.NewRealTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			in.recordMetric(ctx)
		}
	}
}

func (in *Initializer) recordMetric(ctx context.Context) {
	cycles, err := in.fab.CyclesBalance(ctx, in.self)
	if err != nil {
		in.log.Warn("initializer: self-metrics observation failed", zap.Error(err))
		return
	}
	snap := MetricsSnapshot{Timestamp: in.clk.Now(), Cycles: cycles}
	in.mu.Lock()
	in.metric = &snap
	in.mu.Unlock()
}

// Metric returns the single retained snapshot, failing NoMetrics before
// the first tick.
func (in *Initializer) Metric() (MetricsSnapshot, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.metric == nil {
		return MetricsSnapshot{}, &NoMetrics{}
	}
	return *in.metric, nil
}

// Close cancels the metrics loop, if armed.
func (in *Initializer) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.cancelMetric != nil {
		in.cancelMetric()
		in.cancelMetric = nil
	}
}
