// Package sched implements the adaptive scheduling controller of the tarok
// collector.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	"github.com/tarok-gc/tarok/cmn/cos"
	"github.com/tarok-gc/tarok/cmn/debug"
	"github.com/tarok-gc/tarok/cmn/nlog"
	"github.com/tarok-gc/tarok/core"
)

// emptiness floor for defragment candidates under automatic selection
const defaultAutomaticEmptinessThreshold = 0.05

// updateLiveBytesAfterPartialCollect measures the data the next GMP would
// have to scan. This is an approximate upper bound: not everything measured
// is live, and the measurement includes primitive arrays which carry no scan
// work.
func (d *Delegate) updateLiveBytesAfterPartialCollect() {
	regionSize := d.rm.RegionSize()
	var liveSet uint64
	d.rm.Iterate(func(r *core.Region) bool {
		switch {
		case r.ContainsObjects:
			liveSet += regionSize - r.Pool.ActualFree - r.Pool.DarkMatter
		case r.ArrayletLeaf && r.ObjectArraySpine:
			liveSet += regionSize
		}
		return true
	})
	d.liveSetBytesAfterPartialCollect = liveSet
}

// calculateHeapOccupancyTrend derives the live-set growth slope between the
// last two global sweeps: what fraction of the garbage-plus-growth observed
// before the sweep survived it.
func (d *Delegate) calculateHeapOccupancyTrend() {
	d.previousLiveSetBytesAfterGlobalSweep = d.liveSetBytesAfterGlobalSweep
	d.liveSetBytesAfterGlobalSweep = d.liveSetBytesAfterPartialCollect

	d.heapOccupancyTrend = 1.0
	if d.liveSetBytesBeforeGlobalSweep != d.previousLiveSetBytesAfterGlobalSweep {
		d.heapOccupancyTrend =
			(float64(d.liveSetBytesAfterGlobalSweep) - float64(d.previousLiveSetBytesAfterGlobalSweep)) /
				(float64(d.liveSetBytesBeforeGlobalSweep) - float64(d.previousLiveSetBytesAfterGlobalSweep))
	}
	nlog.Infof("occupancy trend: %.3f (before-sweep %d, after-sweep %d, prev %d)",
		d.heapOccupancyTrend, d.liveSetBytesBeforeGlobalSweep,
		d.liveSetBytesAfterGlobalSweep, d.previousLiveSetBytesAfterGlobalSweep)
}

func (d *Delegate) calculateScannableBytesRatio() {
	var scannableBytes, nonScannableBytes uint64
	d.rm.Iterate(func(r *core.Region) bool {
		if r.ContainsObjects {
			scannableBytes += r.Pool.Scannable
			nonScannableBytes += r.Pool.NonScannable
		}
		return true
	})
	if scannableBytes+nonScannableBytes == 0 {
		// assume all is scannable
		d.scannableBytesRatio = 1.0
	} else {
		d.scannableBytesRatio = float64(scannableBytes) / float64(scannableBytes+nonScannableBytes)
	}
}

// RecalculateRatesOnFirstPGCAfterGMP refreshes the sweep-dependent models on
// the first reclaim after a completed GMP, when liveness information is most
// accurate.
func (d *Delegate) RecalculateRatesOnFirstPGCAfterGMP() {
	if !d.IsFirstPGCAfterGMP() {
		return
	}
	d.calculatePGCCompactionRate(d.edenRegionCount * d.rm.RegionSize())
	d.calculateHeapOccupancyTrend()
	d.calculateScannableBytesRatio()
	d.FirstPGCAfterGMPCompleted()
}

// DefragmentEmptinessThreshold is the emptiness a region must exceed to be a
// defragmentation candidate. With automatic selection it is the average
// emptiness of copy-forwarded regions, floored at
// defaultAutomaticEmptinessThreshold, and any user-specified value is
// ignored; otherwise it is the user-specified value if nonzero, else the
// unfloored average emptiness.
func (d *Delegate) DefragmentEmptinessThreshold() float64 {
	averageEmptiness := d.AverageEmptinessOfCopyForwardedRegions()
	if d.conf.Tarok.AutomaticDefragmentEmptinessThreshold {
		return max(d.automaticDefragmentEmptinessThreshold, averageEmptiness)
	}
	if d.conf.Tarok.DefragmentEmptinessThreshold != 0 {
		return d.conf.Tarok.DefragmentEmptinessThreshold
	}
	return averageEmptiness
}

// estimateTotalFreeMemory is the free space shortfall can be fed from: free
// and defragmentable memory excluding the reservation for Eden and survivor.
func (d *Delegate) estimateTotalFreeMemory(freeRegionMemory, defragmentedMemory, reservedFreeMemory uint64) uint64 {
	return cos.SaturatingSub(defragmentedMemory+freeRegionMemory, reservedFreeMemory)
}

// calculateKickoffHeadroom recomputes the kickoff safety margin as a
// fraction of total free memory, unless the headroom was forced.
func (d *Delegate) calculateKickoffHeadroom(totalFreeMemory uint64) uint64 {
	if d.conf.Tarok.ForceKickoffHeadroomInBytes {
		return d.kickoffHeadroomBytes
	}
	d.kickoffHeadroomBytes = totalFreeMemory * d.conf.Tarok.KickoffHeadroomRegionRate / 100
	return d.kickoffHeadroomBytes
}

// InitializeKickoffHeadroom seeds the headroom before any census exists.
func (d *Delegate) InitializeKickoffHeadroom() uint64 {
	totalFreeMemory := cos.SaturatingSub(d.rm.TotalHeapSize(), d.CurrentEdenSizeInBytes())
	return d.calculateKickoffHeadroom(totalFreeMemory)
}

// calculatePGCCompactionRate walks the region table right after a global
// sweep, classifies every region, marks the defragmentation targets, and
// re-derives the compaction and free-tenure estimates.
//
// Copy-forwarded regions should ideally be 100% full; parallelism and
// compact-group constraints leave them emptier. Regions that are unlikely to
// become denser if copied are left alone.
func (d *Delegate) calculatePGCCompactionRate(edenSizeInBytes uint64) {
	defragmentEmptinessThreshold := d.DefragmentEmptinessThreshold()
	debug.Assert(defragmentEmptinessThreshold >= 0.0 && defragmentEmptinessThreshold <= 1.0)
	regionSize := d.rm.RegionSize()

	var (
		totalLiveDataInCollectableRegions    uint64
		totalLiveDataInNonCollectibleRegions uint64
		fullyCompactedData                   uint64

		freeMemoryInCollectibleRegions    uint64
		freeMemoryInNonCollectibleRegions uint64
		freeRegionMemory                  uint64

		collectibleRegions    uint64
		nonCollectibleRegions uint64
		freeRegions           uint64
		fullyCompactedRegions uint64

		defragmentedMemory uint64
	)

	d.rm.Iterate(func(r *core.Region) bool {
		r.DefragmentationTarget = false
		switch {
		case r.ContainsObjects:
			debug.Assert(r.AlreadySwept)
			freeMemory := r.Pool.FreeAndDarkMatter()
			if !r.RememberedSetAccurate {
				// overflowed regions, and those whose RSCL is being rebuilt,
				// are not compacted
				nonCollectibleRegions++
				freeMemoryInNonCollectibleRegions += freeMemory
				totalLiveDataInNonCollectibleRegions += regionSize - freeMemory
				return true
			}
			emptiness := float64(freeMemory) / float64(regionSize)
			debug.Assert(emptiness >= 0.0 && emptiness <= 1.0)

			// only regions likely to become denser if copied count
			if emptiness > defragmentEmptinessThreshold {
				collectibleRegions++
				freeMemoryInCollectibleRegions += freeMemory
				weightedSurvivalRate := d.cg.WeightedSurvivalRate(r.CompactGroup)
				potentialWastedWork := (1.0 - weightedSurvivalRate) * (1.0 - emptiness)

				// the likelihood of recovering the free memory scales with
				// the gainful work
				defragmentedMemory += uint64(float64(freeMemory) * (1.0 - potentialWastedWork))
				totalLiveDataInCollectableRegions += uint64(float64(regionSize-freeMemory) * (1.0 - potentialWastedWork))
				r.DefragmentationTarget = true
			} else {
				// right after the final GMP, Eden regions allocated since
				// the mark show up here as fully compacted
				fullyCompactedRegions++
				fullyCompactedData += regionSize - freeMemory
			}
		case r.FreeOrIdle:
			freeRegions++
			freeRegionMemory += regionSize
		}
		return true
	})

	// survivor space accommodates the nursery set, dynamic collection set,
	// and compaction set
	survivorSize := uint64(float64(regionSize) * d.averageSurvivorSetRegionCount)
	reservedFreeMemory := edenSizeInBytes + survivorSize
	estimatedFreeMemory := d.estimateTotalFreeMemory(freeRegionMemory, defragmentedMemory, reservedFreeMemory)
	d.calculateKickoffHeadroom(estimatedFreeMemory)

	// redo the estimate with the headroom reserved as well; this is the free
	// tenure the eden sizer works against
	reservedFreeMemory += d.kickoffHeadroomBytes
	estimatedFreeMemory = d.estimateTotalFreeMemory(freeRegionMemory, defragmentedMemory, reservedFreeMemory)
	d.estimatedFreeTenure = estimatedFreeMemory

	var bytesDiscardedPerByteCopied float64
	if d.averageCopyForwardBytesCopied > 0.0 {
		bytesDiscardedPerByteCopied = d.averageCopyForwardBytesDiscarded / d.averageCopyForwardBytesCopied
	}
	estimatedFreeMemoryDiscarded := float64(totalLiveDataInCollectableRegions) * bytesDiscardedPerByteCopied
	recoverableFreeMemory := float64(estimatedFreeMemory) - estimatedFreeMemoryDiscarded

	if recoverableFreeMemory > 0.0 {
		d.bytesCompactedToFreeBytesRatio = float64(totalLiveDataInCollectableRegions) / recoverableFreeMemory
	} else {
		d.bytesCompactedToFreeBytesRatio = float64(d.rm.TableRegionCount() + 1)
	}

	nlog.Infof("compaction rate: ratio=%.3f regions(collectible=%d nonCollectible=%d fullyCompacted=%d free=%d) freeTenure=%d",
		d.bytesCompactedToFreeBytesRatio, collectibleRegions, nonCollectibleRegions,
		fullyCompactedRegions, freeRegions, d.estimatedFreeTenure)
	nlog.Infof("compaction rate: live(collectible=%d nonCollectible=%d fullyCompacted=%d) freeMem(collectible=%d nonCollectible=%d)",
		totalLiveDataInCollectableRegions, totalLiveDataInNonCollectibleRegions, fullyCompactedData,
		freeMemoryInCollectibleRegions, freeMemoryInNonCollectibleRegions)
}

// UpdateCurrentMacroDefragmentationWork accumulates the defragmentation work
// the oldest-age compact-group merge would take for one region. This is an
// overestimate: the work is often counted twice, as source and destination; a
// tighter bound needs all regions of the oldest age group (knapsack).
func (d *Delegate) UpdateCurrentMacroDefragmentationWork(r *core.Region) {
	regionSize := d.rm.RegionSize()
	freeMemory := r.Pool.FreeAndDarkMatter()
	liveData := regionSize - freeMemory

	var bytesDiscardedPerByteCopied float64
	if d.averageCopyForwardBytesCopied > 0.0 {
		bytesDiscardedPerByteCopied = d.averageCopyForwardBytesDiscarded / d.averageCopyForwardBytesCopied
	}
	estimatedFreeMemoryDiscarded := uint64(float64(liveData) * bytesDiscardedPerByteCopied)
	recoverableFreeMemory := cos.SaturatingSub(freeMemory, estimatedFreeMemoryDiscarded)

	d.currentMacroDefragmentationWork += min(recoverableFreeMemory, liveData)
}
