// Package sched implements the adaptive scheduling controller of the tarok
// collector.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	"github.com/tarok-gc/tarok/cmn/nlog"
)

// measureConsumptionForPartialGC folds the just-measured reclaimable-region
// counts into the region and defragment consumption rates. Consumption is
// signed: a PGC may recover more than an Eden-worth of memory.
//
// A zero previous counterpart means this is the first PGC after a GMP; the
// GMP changed reclaimability non-linearly, so the sample is discarded.
func (d *Delegate) measureConsumptionForPartialGC(currentReclaimableRegions, currentDefragmentReclaimableRegions uint64) {
	w := d.conf.Weights.Consumption

	if d.previousReclaimableRegions == 0 {
		nlog.Infof("consumption: no previous reclaimable data point, skipping")
	} else {
		regionsConsumed := int64(d.previousReclaimableRegions) - int64(currentReclaimableRegions)
		d.regionConsumptionRate = d.regionConsumptionRate*w + float64(regionsConsumed)*(1-w)
	}
	d.previousReclaimableRegions = currentReclaimableRegions

	if d.previousDefragmentReclaimableRegions == 0 {
		nlog.Infof("consumption: no previous defragment data point, skipping")
	} else {
		defragmentRegionsConsumed := int64(d.previousDefragmentReclaimableRegions) - int64(currentDefragmentReclaimableRegions)
		d.defragmentRegionConsumptionRate = d.defragmentRegionConsumptionRate*w + float64(defragmentRegionsConsumed)*(1-w)
	}
	d.previousDefragmentReclaimableRegions = currentDefragmentReclaimableRegions

	d.trk.SetConsumptionRate(d.regionConsumptionRate)
}

// estimateMacroDefragmentationWork folds the work accumulated since the last
// PGC into the running average and resets the accumulator.
func (d *Delegate) estimateMacroDefragmentationWork() {
	w := d.conf.Weights.MacroDefrag
	d.averageMacroDefragmentationWork =
		d.averageMacroDefragmentationWork*w + float64(d.currentMacroDefragmentationWork)*(1-w)
	d.currentMacroDefragmentationWork = 0
}
