// Package sched implements the adaptive scheduling controller of the tarok
// collector.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	"math"

	"github.com/tarok-gc/tarok/cmn"
	"github.com/tarok-gc/tarok/cmn/cos"
	"github.com/tarok-gc/tarok/cmn/debug"
	"github.com/tarok-gc/tarok/cmn/nlog"
)

// calculateEstimatedGlobalBytesToScan projects the bytes the next GMP has to
// scan: the live set adjusted for the occupancy trend and then for the
// scannable fraction.
func (d *Delegate) calculateEstimatedGlobalBytesToScan() float64 {
	// a negative historic trend (high death rate) must not extrapolate the
	// live set below the current after-sweep value
	heapOccupancyTrendAdjusted := math.Max(0.0, d.heapOccupancyTrend)
	// a negative current delta (strong dynamic-collection-set effect) pins
	// the adjusted live set at the current after-partial value
	liveSetDeltaSinceLastGlobalSweep := math.Max(0.0,
		float64(d.liveSetBytesAfterPartialCollect)-float64(d.liveSetBytesAfterGlobalSweep))
	liveSetAdjustedForOccupancyTrend := float64(d.liveSetBytesAfterPartialCollect) -
		liveSetDeltaSinceLastGlobalSweep*(1.0-heapOccupancyTrendAdjusted)

	return liveSetAdjustedForOccupancyTrend * d.scannableBytesRatio
}

// estimateGlobalMarkIncrements converts the projected scan work into a count
// of GMP increments at the current increment time, plus one increment for the
// final phase (clearable processing above all).
func (d *Delegate) estimateGlobalMarkIncrements(liveSetAdjustedForScannableBytesRatio float64) uint64 {
	debug.Assert(d.conf.Heap.GCThreadCount != 0)
	estimatedScanMillis := liveSetAdjustedForScannableBytesRatio * d.scanRate.microSecondsPerByteScanned /
		float64(d.conf.Heap.GCThreadCount) / 1000.0
	currentMarkIncrementMillis := d.currentGlobalMarkIncrementTimeMillis()
	debug.Assert(currentMarkIncrementMillis != 0)
	estimatedGMPIncrements := estimatedScanMillis / float64(currentMarkIncrementMillis)

	return uint64(math.Ceil(estimatedGMPIncrements)) + 1
}

// BytesToScanInNextGMPIncrement converts the target increment pause into a
// scan-work budget at the historic scan rate.
func (d *Delegate) BytesToScanInNextGMPIncrement() uint64 {
	targetPauseTimeMillis := d.currentGlobalMarkIncrementTimeMillis()
	calculatedWorkTarget := uint64(math.MaxUint64)
	if d.scanRate.microSecondsPerByteScanned > 0 {
		target := float64(targetPauseTimeMillis) * 1000.0 / d.scanRate.microSecondsPerByteScanned *
			float64(d.conf.Heap.GCThreadCount)
		if target < math.MaxUint64 {
			calculatedWorkTarget = uint64(target)
		}
	}
	return max(calculatedWorkTarget, d.conf.Tarok.MinimumGMPWorkTargetBytes)
}

// estimatePartialGCsRemaining projects how many PGCs can still run before
// the reclaimable set is exhausted.
func (d *Delegate) estimatePartialGCsRemaining(shouldCopyForward bool) uint64 {
	partialCollectsRemaining := uint64(math.MaxUint64)
	if d.regionConsumptionRate <= 0.0 {
		return partialCollectsRemaining
	}
	edenRegions := d.idealEdenRegionCount

	if shouldCopyForward {
		// copy-forward needs destination regions for the survivor set
		survivorRegions := d.averageSurvivorSetRegionCount
		if r := d.conf.Tarok.ForceCopyForwardHybridRatio; r != 0 && r <= 100 {
			// hybrid testing mode: part of the collection set is not
			// evacuated, correct the survivor need accordingly
			survivorRegions = survivorRegions * float64(100-r) / 100
		}

		freeRegions := float64(d.rm.FreeRegionCount())
		// the defragment-reclaimable count was just recalculated and is a
		// total, free regions included
		debug.Assert(float64(d.previousDefragmentReclaimableRegions) >= freeRegions)
		recoverableRegions := float64(d.previousDefragmentReclaimableRegions) - freeRegions

		// copy-forward PGC drives compact selection by work goal, so it
		// optimistically recovers all reclaimable regions
		if freeRegions+recoverableRegions > float64(edenRegions)+survivorRegions {
			partialCollectsRemaining =
				uint64((freeRegions + recoverableRegions - float64(edenRegions) - survivorRegions) / d.regionConsumptionRate)
		} else {
			partialCollectsRemaining = 0
		}
	} else {
		// mark-sweep-compact drives compact selection by free-region goal,
		// so it counts on reclaimable regions only
		if d.previousDefragmentReclaimableRegions > edenRegions {
			partialCollectsRemaining =
				uint64(float64(d.previousDefragmentReclaimableRegions-edenRegions) / d.regionConsumptionRate)
		} else {
			partialCollectsRemaining = 0
		}
	}
	return partialCollectsRemaining
}

// calculateGlobalMarkIncrementHeadroom converts the byte headroom into GMP
// increments at the current consumption rate and interleave ratio.
func (d *Delegate) calculateGlobalMarkIncrementHeadroom() uint64 {
	if d.regionConsumptionRate <= 0.0 {
		return 0
	}
	headroomRegions := float64(d.kickoffHeadroomBytes) / float64(d.rm.RegionSize())
	headroomPartialGCs := headroomRegions / d.regionConsumptionRate
	headroomGlobalMarkIncrements := headroomPartialGCs *
		float64(d.conf.Tarok.PGCtoGMPDenominator) / float64(d.conf.Tarok.PGCtoGMPNumerator)
	return uint64(math.Ceil(headroomGlobalMarkIncrements))
}

// calculateAutomaticGMPIntermission replans the GMP kickoff so that marking
// finishes, with headroom, before the reclaimable set is exhausted.
func (d *Delegate) calculateAutomaticGMPIntermission(shouldCopyForward bool) {
	// the live-set measurement runs even when automatic intermissions are
	// off; the PGC estimate is only used and logged on the automatic path
	partialCollectsRemaining := d.estimatePartialGCsRemaining(shouldCopyForward)
	d.updateLiveBytesAfterPartialCollect()

	if !d.conf.Tarok.AutomaticGMPIntermission {
		return
	}
	// automatic intermissions assume the sentinel default
	debug.Assert(d.conf.Tarok.GMPIntermission == cmn.AutomaticIntermission)

	// until kickoff, keep recalculating the intermission from the current
	// estimates
	if d.remainingGMPIntermissionIntervals > 0 {
		liveSetAdjustedForScannableBytesRatio := d.calculateEstimatedGlobalBytesToScan()
		incrementHeadroom := d.calculateGlobalMarkIncrementHeadroom()
		globalMarkIncrementsRequired := d.estimateGlobalMarkIncrements(liveSetAdjustedForScannableBytesRatio)
		globalMarkIncrementsRequiredWithHeadroom := globalMarkIncrementsRequired + incrementHeadroom
		globalMarkIncrementsRemaining := uint64(math.MaxUint64)
		if den := d.conf.Tarok.PGCtoGMPDenominator; partialCollectsRemaining <= math.MaxUint64/den {
			globalMarkIncrementsRemaining = partialCollectsRemaining * den / d.conf.Tarok.PGCtoGMPNumerator
		}
		d.remainingGMPIntermissionIntervals =
			cos.SaturatingSub(globalMarkIncrementsRemaining, globalMarkIncrementsRequiredWithHeadroom)
	}

	d.trk.SetIntermission(d.remainingGMPIntermissionIntervals)
	nlog.Infof("intermission: remaining=%d pgcsRemaining=%d headroomBytes=%d",
		d.remainingGMPIntermissionIntervals, partialCollectsRemaining, d.kickoffHeadroomBytes)
}

// estimateRemainingGlobalBytesToScan is the projected scan work the current
// GMP still has ahead of it.
func (d *Delegate) estimateRemainingGlobalBytesToScan() uint64 {
	expectedGlobalBytesToScan := uint64(d.calculateEstimatedGlobalBytesToScan())
	globalBytesScanned := d.collector.BytesScannedInGlobalMarkPhase()
	return cos.SaturatingSub(expectedGlobalBytesToScan, globalBytesScanned)
}

func (d *Delegate) estimateRemainingTimeMillisToScan() float64 {
	debug.Assert(d.conf.Heap.GCThreadCount != 0)
	remainingBytesToScan := float64(d.estimateRemainingGlobalBytesToScan())
	return remainingBytesToScan * d.scanRate.microSecondsPerByteScanned /
		float64(d.conf.Heap.GCThreadCount) / 1000.0
}

// currentGlobalMarkIncrementTimeMillis is the pause budget of the next GMP
// increment: the configured override if set, otherwise the dynamic value
// raised as needed to finish marking before allocation failure.
func (d *Delegate) currentGlobalMarkIncrementTimeMillis() uint64 {
	if t := d.conf.Tarok.GlobalMarkIncrementTimeMillis; t != 0 {
		return t
	}
	partialCollectsRemaining := d.estimatePartialGCsRemaining(d.nextPGCShouldCopyForward)
	if partialCollectsRemaining == 0 {
		// allocation failure is imminent: the GMP must finish this increment
		return math.MaxUint64
	}
	desiredGlobalMarkIncrementMillis := d.dynamicGlobalMarkIncrementTimeMillis
	remainingMillisToScan := d.estimateRemainingTimeMillisToScan()
	minimumGlobalMarkIncrementMillis := uint64(remainingMillisToScan / float64(partialCollectsRemaining))

	return max(desiredGlobalMarkIncrementMillis, minimumGlobalMarkIncrementMillis)
}

// DynamicGlobalMarkIncrementTimeMillis exposes the dynamic increment pause.
func (d *Delegate) DynamicGlobalMarkIncrementTimeMillis() uint64 {
	return d.dynamicGlobalMarkIncrementTimeMillis
}
