// Package sched implements the adaptive scheduling controller of the tarok
// collector.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	"math"

	"github.com/tarok-gc/tarok/cmn"
	"github.com/tarok-gc/tarok/cmn/debug"
)

// OverheadModel ranks candidate eden sizes. MapPauseToOverhead converts a
// PGC pause into a percent-based overhead score; Blend combines it with the
// GC CPU fraction into the hybrid overhead in [0,1] the sizer minimizes.
type OverheadModel interface {
	MapPauseToOverhead(pgcTimeMillis uint64, heapFullyExpanded bool) float64
	Blend(cpuOverhead, pauseOverheadPct float64) float64
}

// hybridOverhead is the default model: a two-regime pause mapping and an
// even blend.
type hybridOverhead struct {
	conf *cmn.Config
}

func newHybridOverhead(conf *cmn.Config) *hybridOverhead { return &hybridOverhead{conf: conf} }

func (h *hybridOverhead) MapPauseToOverhead(pgcTimeMillis uint64, heapFullyExpanded bool) float64 {
	xminpct := h.conf.Dnss.ExpectedTimeRatioMinimum * 100
	xmaxpct := h.conf.Dnss.ExpectedTimeRatioMaximum * 100
	xmaxt := float64(h.conf.Tarok.TargetMaxPauseTime)

	var overhead float64
	if heapFullyExpanded {
		// eden is minimizing hybrid overhead, so a low pause must map to a
		// low (desirable) score
		midpointPct := (xmaxpct + xminpct) / 2.0
		if float64(pgcTimeMillis) <= xmaxt {
			// at or below the target pause there is nothing to gain from
			// shrinking further
			overhead = midpointPct
		} else {
			// above the target, the penalty grows steeply: slightly over is
			// a small penalty, 2x over is a large one
			overheadCurve := math.Pow(1.03, float64(pgcTimeMillis)-xmaxt) + midpointPct - 1
			overhead = math.Min(100.0, overheadCurve)
		}
	} else {
		// while the heap can still expand, the score falls linearly from
		// xmaxpct at half the target pause to xminpct at the target, clamped
		// to [0, xmaxpct]: short pauses suggest expansion (score above
		// xmaxpct is clamped so eden only grows when the CPU overhead wants
		// it), pauses past the target suggest contraction
		slope := (xmaxpct - xminpct) / (xmaxt/2 - xmaxt)
		overhead = slope*float64(pgcTimeMillis) + (2.0*xmaxpct - xminpct)
		overhead = math.Max(overhead, 0.0)
		overhead = math.Min(overhead, xmaxpct)
	}
	return overhead
}

func (h *hybridOverhead) Blend(cpuOverhead, pauseOverheadPct float64) float64 {
	const actualPGCOverheadWeight = 0.5
	hybridHundredBased := actualPGCOverheadWeight*(cpuOverhead*100) +
		(1-actualPGCOverheadWeight)*pauseOverheadPct
	return hybridHundredBased / 100
}

// calculateHybridEdenOverhead blends the pause time (observed or predicted,
// the caller decides) with the CPU overhead. CPU overhead alone would grow
// eden unbounded on workloads whose pause time degrades with eden size.
func (d *Delegate) calculateHybridEdenOverhead(pgcTimeMillis uint64, cpuOverhead float64) float64 {
	debug.Assert(cpuOverhead >= 0.0 && cpuOverhead <= 1.0)
	pauseOverheadPct := d.overhead.MapPauseToOverhead(pgcTimeMillis, d.heapIsFullyExpanded())
	return d.overhead.Blend(cpuOverhead, pauseOverheadPct)
}
