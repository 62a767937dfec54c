// Package sched implements the adaptive scheduling controller of the tarok
// collector.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	"math"

	"github.com/tarok-gc/tarok/cmn/cos"
	"github.com/tarok-gc/tarok/cmn/debug"
	"github.com/tarok-gc/tarok/cmn/nlog"
	"github.com/tarok-gc/tarok/core"
)

func (d *Delegate) CurrentEdenSizeInBytes() uint64 { return d.edenRegionCount * d.rm.RegionSize() }

func (d *Delegate) CurrentEdenSizeInRegions() uint64 { return d.edenRegionCount }

func (d *Delegate) IdealEdenSizeInBytes() uint64 { return d.idealEdenRegionCount * d.rm.RegionSize() }

// heapIsFullyExpanded reports whether the heap reached softmx (or the hard
// maximum): past that point eden must mind free-memory constraints instead of
// expanding at will.
func (d *Delegate) heapIsFullyExpanded() bool {
	currentHeapSize := d.rm.RegionSize() * d.numberOfHeapRegions
	maxHeapSize := d.conf.Heap.SoftMx
	if maxHeapSize == 0 {
		maxHeapSize = d.conf.Heap.MemoryMax
	}
	return currentHeapSize >= maxHeapSize
}

// CalculateRecommendedEdenSize searches for the eden size with the best
// blend of GC CPU overhead and PGC pause time: the goal is to minimize the
// fraction of time spent in GC while staying below the target pause.
func (d *Delegate) CalculateRecommendedEdenSize() uint64 {
	if d.pgcCountSinceGMPEnd == 0 {
		// no statistics collected yet
		return d.CurrentEdenSizeInBytes()
	}

	avgPgcTimeUS := d.historicalPartialGCTime * 1000
	// _averagePgcInterval is start-to-start; subtract the pause to get the
	// mutator interval between consecutive PGCs
	avgPgcIntervalUS := cos.SaturatingSub(d.averagePgcInterval, avgPgcTimeUS)
	currentIdealEdenSize := d.IdealEdenSizeInBytes()
	currentHeapSize := d.rm.RegionSize() * d.numberOfHeapRegions

	// free tenure is the space outside eden and survivor, kept with headroom
	// so it is never exhausted outright
	const freeTenureHeadroom = 0.75
	freeTenure := max(uint64(float64(d.estimatedFreeTenure)*freeTenureHeadroom), 1)

	if d.totalGMPWorkTimeUS == 0 {
		// no GMP yet, so the free-tenure estimate is still zero; derive one
		// from PGC-side information until a GMP happens
		survivorBytes := int64(d.averageSurvivorSetRegionCount * float64(d.rm.RegionSize()))
		freeTenureFromPGCInfo := int64(currentHeapSize) - int64(currentIdealEdenSize) -
			int64(d.liveSetBytesAfterPartialCollect) - survivorBytes
		if freeTenureFromPGCInfo > 0 {
			freeTenure = uint64(freeTenureFromPGCInfo)
		} else {
			freeTenure = 1
		}
	}
	debug.Assert(freeTenure != 0)

	minEdenChange := -int64(currentIdealEdenSize)
	maxEdenChange := int64(freeTenure)
	const numberOfSamples = 100

	// the current size holds until a sample proves a better hybrid overhead
	var recommendedEdenChange int64
	currentCpuOverhead := d.predictCpuOverheadForEdenSize(currentIdealEdenSize, 0, freeTenure, avgPgcIntervalUS)
	bestOverheadPrediction := d.calculateHybridEdenOverhead(d.historicalPartialGCTime, currentCpuOverhead)

	samplingGranularity := uint64(maxEdenChange-minEdenChange) / numberOfSamples

	// walk the hybrid overhead curve from the right
	for i := uint64(0); i < numberOfSamples; i++ {
		edenChange := maxEdenChange - int64(samplingGranularity*i)

		estimatedCpuOverhead := d.predictCpuOverheadForEdenSize(currentIdealEdenSize, edenChange, freeTenure, avgPgcIntervalUS)
		estimatedPGCAvgTimeUS := d.predictPgcTime(edenChange)
		estimatedHybridOverhead := d.calculateHybridEdenOverhead(uint64(estimatedPGCAvgTimeUS)/1000, estimatedCpuOverhead)

		if estimatedHybridOverhead < bestOverheadPrediction {
			recommendedEdenChange = edenChange
			bestOverheadPrediction = estimatedHybridOverhead
		}
	}

	recommendedSize := uint64(int64(currentIdealEdenSize) + recommendedEdenChange)
	nlog.Infof("recommended eden: %d bytes (change %d, hybrid overhead %.4f, free tenure %d)",
		recommendedSize, recommendedEdenChange, bestOverheadPrediction, freeTenure)
	return recommendedSize
}

// predictCpuOverheadForEdenSize projects the GC CPU fraction over one
// GMP-to-GMP period if eden changed by edenSizeChange bytes.
func (d *Delegate) predictCpuOverheadForEdenSize(currentEdenSize uint64, edenSizeChange int64,
	freeTenure uint64, pgcAvgIntervalUS uint64) float64 {
	predictedNumberOfCollections := d.predictNumberOfCollections(edenSizeChange, freeTenure)
	predictedIntervalTime := d.predictIntervalBetweenCollections(currentEdenSize, edenSizeChange, pgcAvgIntervalUS)
	predictedAvgPgcTime := d.predictPgcTime(edenSizeChange)

	gmpTime := float64(d.totalGMPWorkTimeUS)
	if gmpTime == 0 {
		// no GMP yet: guess high, so eden treats GMP as very expensive
		// relative to PGC
		gmpTime = 20 * float64(d.historicalPartialGCTime) * 1000
	}

	gcActiveTime := gmpTime + predictedAvgPgcTime*predictedNumberOfCollections
	totalIntervalTime := gmpTime + (predictedAvgPgcTime+predictedIntervalTime)*predictedNumberOfCollections
	return gcActiveTime / totalIntervalTime
}

// predictIntervalBetweenCollections scales the observed inter-PGC interval
// proportionally with eden: twice the eden, twice the time to fill it.
func (d *Delegate) predictIntervalBetweenCollections(currentEdenSize uint64, edenSizeChange int64, pgcAvgIntervalUS uint64) float64 {
	intervalChange := float64(int64(currentEdenSize)+edenSizeChange) / float64(currentEdenSize)
	return float64(pgcAvgIntervalUS) * intervalChange
}

// predictNumberOfCollections scales the representative PGC count per GMP with
// the free tenure left after the eden change.
func (d *Delegate) predictNumberOfCollections(edenSizeChange int64, freeTenure uint64) float64 {
	collectionCountChange := float64(int64(freeTenure)-edenSizeChange) / float64(freeTenure)
	return float64(d.collector.RepresentativePGCPerGMPCount()) * collectionCountChange
}

// predictPgcTime projects the average PGC pause, in microseconds, for a
// candidate eden change. How strongly pause time couples to eden size is
// application-dependent; the coupling lives in
// pgcTimeIncreasePerEdenRegionFactor (closer to 1.0 means tighter coupling).
func (d *Delegate) predictPgcTime(edenSizeChange int64) float64 {
	edenRegionChange := float64(edenSizeChange) / float64(d.rm.RegionSize())
	currentEdenRegions := float64(d.edenRegionCount)
	edenChangeRatio := (edenRegionChange + currentEdenRegions + 1.0) / (currentEdenRegions + 1.0)
	if edenChangeRatio <= 0 {
		// shrinking past the current eden; make the sample unattractive
		return float64(u32Max)
	}

	// log base pgcTimeIncreasePerEdenRegionFactor of edenChangeRatio
	pgcTimeChangeForEdenChange := math.Log(edenChangeRatio) / math.Log(d.pgcTimeIncreasePerEdenRegionFactor)
	predictedPgcTime := float64(d.historicalPartialGCTime) + pgcTimeChangeForEdenChange

	// a prediction below the floor can only be a small rounding mistake
	predictedPgcTime = math.Max(predictedPgcTime, minimumPgcTimeMillis)
	return predictedPgcTime * 1000
}

// moveTowardRecommendedEden queues a partial move of the ideal eden toward
// the recommended size; speed 1 moves all the way.
func (d *Delegate) moveTowardRecommendedEden(edenChangeSpeed float64) {
	debug.Assert(edenChangeSpeed >= 0 && edenChangeSpeed <= 1)

	if d.historicalPartialGCTime == 0 || d.averagePgcInterval == 0 {
		// no PGC time information yet, no informed decision to make
		return
	}

	recommendedEdenSizeBytes := d.CalculateRecommendedEdenSize()
	currentIdealEdenBytes := d.IdealEdenSizeInBytes()
	currentIdealEdenRegions := d.idealEdenRegionCount

	edenChange := int64(recommendedEdenSizeBytes) - int64(currentIdealEdenBytes)
	targetEdenChange := int64(float64(edenChange) * edenChangeSpeed)
	targetEdenBytes := uint64(int64(currentIdealEdenBytes) + targetEdenChange)
	targetEdenRegions := targetEdenBytes / d.rm.RegionSize()

	d.edenSizeFactor = int64(targetEdenRegions) - int64(currentIdealEdenRegions)
}

// checkEdenSizeAfterPgc is the change-rate limiter: eden moves toward the
// recommendation aggressively right after a global sweep (when liveness data
// is most accurate), periodically while the heap is fully expanded, and by
// small 10% steps when the observed hybrid overhead leaves the expected band.
func (d *Delegate) checkEdenSizeAfterPgc(globalSweepHappened bool) {
	if !d.startupPhaseFinished {
		// eden stays at its startup-driven size
		return
	}
	if d.currentlyPerformingGMP && !globalSweepHappened {
		// no eden changes while a GMP cycle runs, except on the first PGC
		// after the global sweep
		return
	}

	if d.heapIsFullyExpanded() {
		if globalSweepHappened {
			d.moveTowardRecommendedEden(0.5)
			d.resetPgcTimeStatistics()
		} else if d.pgcCountSinceGMPEnd&(consecutivePGCToChangeEden-1) == 0 {
			d.moveTowardRecommendedEden(0.25)
		}
	} else if d.pgcCountSinceGMPEnd%3 == 0 {
		// every third PGC, letting the averages settle in between, nudge
		// eden by 10% if the hybrid overhead left the expected band
		var edenRegionChange int64
		edenChangeMagnitude := int64(math.Ceil(0.1 * float64(d.IdealEdenSizeInBytes()) / float64(d.rm.RegionSize())))

		hybridEdenOverhead := d.calculateHybridEdenOverhead(d.historicalPartialGCTime, d.partialGcOverhead)
		if d.conf.Dnss.ExpectedTimeRatioMinimum > hybridEdenOverhead {
			edenRegionChange = -edenChangeMagnitude
		} else if d.conf.Dnss.ExpectedTimeRatioMaximum < hybridEdenOverhead {
			edenRegionChange = edenChangeMagnitude
		}
		d.edenSizeFactor += edenRegionChange
	}
}

// adjustIdealEdenRegionCount consumes the pending eden delta, clamping the
// ideal into [minEdenPercent, maxEdenPercent] of the heap unless the user
// pinned the bounds with Xmn options.
func (d *Delegate) adjustIdealEdenRegionCount() {
	edenChange := d.edenSizeFactor
	d.edenSizeFactor = 0

	if !d.startupPhaseFinished {
		// during startup, eden size is driven by heap reconfiguration
		return
	}

	maxEdenCount := uint64(float64(d.numberOfHeapRegions) * d.maxEdenPercent)
	minEdenCount := uint64(float64(d.numberOfHeapRegions) * d.minEdenPercent)

	if d.conf.Heap.XmnSpecified || d.conf.Heap.XmnsSpecified {
		minEdenCount = d.conf.Tarok.IdealEdenMinimumBytes / d.rm.RegionSize()
	}
	if d.conf.Heap.XmnSpecified || d.conf.Heap.XmnxSpecified {
		maxEdenCount = d.conf.Tarok.IdealEdenMaximumBytes / d.rm.RegionSize()
	}

	possibleEdenRegionCount := int64(d.idealEdenRegionCount) + edenChange
	if int64(minEdenCount) > possibleEdenRegionCount {
		edenChange = int64(minEdenCount) - int64(d.idealEdenRegionCount)
	} else if int64(maxEdenCount) < possibleEdenRegionCount {
		edenChange = int64(maxEdenCount) - int64(d.idealEdenRegionCount)
	}

	d.idealEdenRegionCount = uint64(int64(d.idealEdenRegionCount) + edenChange)
	d.idealEdenRegionCount = max(1, d.idealEdenRegionCount)
	d.minimumEdenRegionCount = min(d.minimumEdenRegionCount, d.idealEdenRegionCount)
}

// calculateEdenSize applies the ideal to the actual eden, bounded by the free
// regions currently available.
func (d *Delegate) calculateEdenSize() {
	freeRegions := d.rm.FreeRegionCount()

	d.adjustIdealEdenRegionCount()

	edenMinimumCount := d.minimumEdenRegionCount
	edenMaximumCount := d.idealEdenRegionCount
	debug.Assert(edenMinimumCount >= 1)
	debug.Assert(edenMaximumCount >= edenMinimumCount)

	desiredEdenCount := freeRegions
	if desiredEdenCount > edenMaximumCount {
		desiredEdenCount = edenMaximumCount
	} else if desiredEdenCount < edenMinimumCount {
		desiredEdenCount = edenMinimumCount
	}
	if desiredEdenCount <= freeRegions {
		d.edenRegionCount = desiredEdenCount
	} else {
		// not enough memory left for the desired eden: let it shrink to the
		// free size (possibly below minimum, possibly 0) before triggering
		// an allocation-failure global collect
		d.edenRegionCount = freeRegions
		nlog.Infof("eden reduced to free regions: desired=%d actual=%d", desiredEdenCount, d.edenRegionCount)
	}
	d.trk.SetEden(d.edenRegionCount, d.idealEdenRegionCount)
}

// HeapReconfigured recomputes the heap geometry after an expansion or
// contraction. During startup the ideal eden interpolates linearly between
// the configured minimum and maximum proportionally to how far the heap has
// expanded; afterwards eden is driven by the overhead heuristics and keeps
// its size here.
func (d *Delegate) HeapReconfigured() {
	regionSize := d.rm.RegionSize()
	edenMaximumBytes := d.conf.Tarok.IdealEdenMaximumBytes
	edenMinimumBytes := d.conf.Tarok.IdealEdenMinimumBytes

	// walk the managed regions (the cold area is excluded) to size the heap
	var count uint64
	d.rm.Iterate(func(*core.Region) bool { count++; return true })
	d.numberOfHeapRegions = count
	currentHeapSize := count * regionSize

	if edenMaximumBytes == 0 {
		edenMaximumBytes = uint64(float64(currentHeapSize) * d.maxEdenPercent)
	}
	if edenMinimumBytes == 0 {
		edenMinimumBytes = regionSize
	}

	// the heap is allowed to come up one region short of the request, so the
	// reachable minimum is the real minimum
	minimumHeap := min(d.conf.Heap.InitialMemorySize, currentHeapSize)
	maximumHeap := d.conf.Heap.MemoryMax

	var edenIdealBytes uint64
	switch {
	case d.startupPhaseFinished:
		// eden is being driven by overhead and time; if it needs to change,
		// it changes elsewhere
		edenIdealBytes = d.IdealEdenSizeInBytes()
	case currentHeapSize >= maximumHeap:
		// fully expanded, or ms == mx
		edenIdealBytes = edenMaximumBytes
	default:
		// for -XmsA -XmxB -XmnsC -XmnxD at current heap size W:
		// ideal := C + ((W-A)/(B-A))(D-C)
		heapBytesOverMinimum := currentHeapSize - minimumHeap
		maximumHeapVariation := maximumHeap - minimumHeap
		debug.Assert(maximumHeapVariation != 0)
		ratioOfHeapExpanded := float64(heapBytesOverMinimum) / float64(maximumHeapVariation)
		maximumEdenVariation := cos.SaturatingSub(edenMaximumBytes, edenMinimumBytes)
		edenIdealBytes = edenMinimumBytes + uint64(ratioOfHeapExpanded*float64(maximumEdenVariation))
	}

	d.idealEdenRegionCount = cos.DivCeil(edenIdealBytes, regionSize)
	debug.Assert(d.idealEdenRegionCount > 0)
	d.minimumEdenRegionCount = min(d.idealEdenRegionCount, d.rm.AllocationContextCount())
	debug.Assert(d.minimumEdenRegionCount > 0)
	debug.Assert(d.idealEdenRegionCount >= d.minimumEdenRegionCount)

	nlog.Infof("heap reconfigured: regions=%d idealEden=%d minimumEden=%d",
		d.numberOfHeapRegions, d.idealEdenRegionCount, d.minimumEdenRegionCount)

	d.calculateEdenSize()
}

// updatePgcTimePrediction refits the pause model through
// (minimumEdenRegions, minimumPgcTime) and (current eden, historic pause).
// Both points must be well separated; tiny edens or tiny pauses would fit
// garbage.
func (d *Delegate) updatePgcTimePrediction() {
	x1, y1 := float64(minimumEdenRegions), float64(minimumPgcTimeMillis)
	x2, y2 := float64(d.edenRegionCount), float64(d.historicalPartialGCTime)

	if x1 < x2 && y1 < y2 {
		timeDiff := y1 - y2
		edenSizeRatio := (x1 + 1.0) / (x2 + 1.0)
		d.pgcTimeIncreasePerEdenRegionFactor = math.Pow(edenSizeRatio, 1.0/timeDiff)
	}
}
