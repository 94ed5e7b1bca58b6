// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package vault

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromCollector exposes a Vault's audit observers as prometheus gauges:
// total supply, index, and cumulative refueled per target. It is kept
// separate from Vault itself so wiring it into a registry is opt-in,
// matching the teacher repo's pattern of a standalone gatherer
// (metrics/gatherer) rather than baking metrics registration into the
// domain type.
type PromCollector struct {
	v *Vault

	totalSupply *prometheus.Desc
	index       *prometheus.Desc
	cumulative  *prometheus.Desc
}

// NewPromCollector returns a prometheus.Collector over v.
func NewPromCollector(v *Vault) *PromCollector {
	return &PromCollector{
		v: v,
		totalSupply: prometheus.NewDesc(
			"triplet_vault_total_supply_cycles", "Current TotalSupply in cycles.", nil, nil),
		index: prometheus.NewDesc(
			"triplet_vault_index", "Current ledger Index.", nil, nil),
		cumulative: prometheus.NewDesc(
			"triplet_vault_cumulative_refueled_cycles", "Cumulative cycles refueled to a target.",
			[]string{"target"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalSupply
	ch <- c.index
	ch <- c.cumulative
}

// Collect implements prometheus.Collector.
func (c *PromCollector) Collect(ch chan<- prometheus.Metric) {
	total := c.v.TotalSupply()
	ch <- prometheus.MustNewConstMetric(c.totalSupply, prometheus.GaugeValue, float64(total.Uint64()))

	idx := c.v.IndexValue()
	ch <- prometheus.MustNewConstMetric(c.index, prometheus.GaugeValue, float64(idx.Uint64()))

	for id, amount := range c.v.GetCumulativeRefueledAll() {
		ch <- prometheus.MustNewConstMetric(c.cumulative, prometheus.GaugeValue, float64(amount.Uint64()), id.String())
	}
}
