// Package stats tracks scheduling-controller metrics via Prometheus.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	KindPGC = "pgc"
	KindGMP = "gmp"
)

// Tracker is updated by the controller at callback boundaries. A nil Tracker
// is valid and drops every sample.
type Tracker struct {
	SkewDrops         prometheus.Counter
	TaxationPoints    *prometheus.CounterVec
	CopyForwardAborts prometheus.Counter
	GMPCycles         prometheus.Counter
	PartialCollects   prometheus.Counter

	EdenRegions            prometheus.Gauge
	IdealEdenRegions       prometheus.Gauge
	MicrosPerByteScanned   prometheus.Gauge
	RemainingIntermission  prometheus.Gauge
	RegionConsumptionRate  prometheus.Gauge
}

// New registers the controller metrics with reg (default registerer when nil).
func New(reg prometheus.Registerer) *Tracker {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Tracker{
		SkewDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "tarok_clock_skew_drops_total",
			Help: "Stat samples discarded due to clock skew or out-of-envelope pause times",
		}),
		TaxationPoints: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tarok_taxation_points_total",
			Help: "Taxation points emitted, by increment kind",
		}, []string{"kind"}),
		CopyForwardAborts: f.NewCounter(prometheus.CounterOpts{
			Name: "tarok_copy_forward_aborts_total",
			Help: "Copy-forward collections that aborted under memory pressure",
		}),
		GMPCycles: f.NewCounter(prometheus.CounterOpts{
			Name: "tarok_gmp_cycles_total",
			Help: "Global mark phases completed",
		}),
		PartialCollects: f.NewCounter(prometheus.CounterOpts{
			Name: "tarok_partial_collects_total",
			Help: "Partial garbage collections completed",
		}),
		EdenRegions: f.NewGauge(prometheus.GaugeOpts{
			Name: "tarok_eden_regions",
			Help: "Eden size for the next PGC, in regions",
		}),
		IdealEdenRegions: f.NewGauge(prometheus.GaugeOpts{
			Name: "tarok_ideal_eden_regions",
			Help: "Eden sizer's current ideal, in regions",
		}),
		MicrosPerByteScanned: f.NewGauge(prometheus.GaugeOpts{
			Name: "tarok_scan_micros_per_byte",
			Help: "Historic microseconds per byte scanned",
		}),
		RemainingIntermission: f.NewGauge(prometheus.GaugeOpts{
			Name: "tarok_gmp_intermission_remaining",
			Help: "GMP taxation points still being skipped before kickoff",
		}),
		RegionConsumptionRate: f.NewGauge(prometheus.GaugeOpts{
			Name: "tarok_region_consumption_rate",
			Help: "Regions consumed per PGC (EWMA)",
		}),
	}
}

func (t *Tracker) AddSkewDrop() {
	if t != nil {
		t.SkewDrops.Inc()
	}
}

func (t *Tracker) AddTaxationPoint(kind string) {
	if t != nil {
		t.TaxationPoints.WithLabelValues(kind).Inc()
	}
}

func (t *Tracker) AddCopyForwardAbort() {
	if t != nil {
		t.CopyForwardAborts.Inc()
	}
}

func (t *Tracker) AddGMPCycle() {
	if t != nil {
		t.GMPCycles.Inc()
	}
}

func (t *Tracker) AddPartialCollect() {
	if t != nil {
		t.PartialCollects.Inc()
	}
}

func (t *Tracker) SetEden(actual, ideal uint64) {
	if t != nil {
		t.EdenRegions.Set(float64(actual))
		t.IdealEdenRegions.Set(float64(ideal))
	}
}

func (t *Tracker) SetScanRate(microsPerByte float64) {
	if t != nil {
		t.MicrosPerByteScanned.Set(microsPerByte)
	}
}

func (t *Tracker) SetIntermission(remaining uint64) {
	if t != nil {
		t.RemainingIntermission.Set(float64(remaining))
	}
}

func (t *Tracker) SetConsumptionRate(rate float64) {
	if t != nil {
		t.RegionConsumptionRate.Set(rate)
	}
}
