// Package sched implements the adaptive scheduling controller of the tarok
// collector.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	"github.com/tarok-gc/tarok/cmn/cos"
	"github.com/tarok-gc/tarok/core"
)

// CopyForwardCompleted folds one copy-forward collection into the averages:
// bytes copied/discarded, the survivor-set size (including the regions an
// aborted copy-forward would have needed), and the copy-forward throughput.
func (d *Delegate) CopyForwardCompleted(inc *core.PGCCopyForwardStats) {
	cf := &inc.CopyForward
	regionSize := d.rm.RegionSize()
	copyForwardRate := d.calculateAverageCopyForwardRate(inc)

	w := d.conf.Weights.CopyForward
	d.averageCopyForwardBytesCopied = cos.WeightedAverage(d.averageCopyForwardBytesCopied, float64(cf.CopyBytesTotal), w)
	d.averageCopyForwardBytesDiscarded = cos.WeightedAverage(d.averageCopyForwardBytesDiscarded, float64(cf.CopyDiscardBytesTotal), w)

	// the additional regions which would have been required to complete the
	// copy-forward without aborting
	failedEvacuateRegionCount := cos.DivCeil(cf.ScanBytesTotal, regionSize)
	compactSetSurvivorRegionCount := cos.DivCeil(cf.ExternalCompactBytes, regionSize)
	survivorSetRegionCount := inc.SurvivorSetRegionCount + failedEvacuateRegionCount + compactSetSurvivorRegionCount

	d.averageSurvivorSetRegionCount = cos.WeightedAverage(d.averageSurvivorSetRegionCount, float64(survivorSetRegionCount), w)
	d.averageCopyForwardRate = cos.WeightedAverage(d.averageCopyForwardRate, copyForwardRate, w)
}

// calculateAverageCopyForwardRate returns bytes copied per microsecond of
// copy-forward time, net of reference clearing, with clock-skew fallbacks.
func (d *Delegate) calculateAverageCopyForwardRate(inc *core.PGCCopyForwardStats) float64 {
	bytesCopied := inc.CopyForward.CopyBytesTotal
	timeSpentReferenceClearing := inc.ClearFromRegionReferencesTimeUS
	timeSpentInCopyForward, _ := d.deltaUS(inc.CopyForward.StartTime, inc.CopyForward.EndTime)

	var copyForwardRate float64
	switch {
	case timeSpentInCopyForward > timeSpentReferenceClearing:
		copyForwardRate = float64(bytesCopied) / float64(timeSpentInCopyForward-timeSpentReferenceClearing)
	case timeSpentInCopyForward != 0:
		// clearing time exceeds the total (clock skew): ignore it
		copyForwardRate = float64(bytesCopied) / float64(timeSpentInCopyForward)
	default:
		// sub-microsecond copy-forward: the byte count is an underestimate
		// of the rate
		copyForwardRate = float64(bytesCopied)
	}
	return copyForwardRate
}

func (d *Delegate) updateSurvivalRatesAfterCopyForward(thisEdenSurvivalRate float64, thisNonEdenSurvivorCount uint64) {
	w := d.conf.Weights.SurvivalRate
	d.edenSurvivalRateCopyForward = cos.WeightedAverage(d.edenSurvivalRateCopyForward, thisEdenSurvivalRate, w)
	d.nonEdenSurvivalCountCopyForward =
		uint64(cos.WeightedAverage(float64(d.nonEdenSurvivalCountCopyForward), float64(thisNonEdenSurvivorCount), w))
}

// AverageEmptinessOfCopyForwardedRegions is the historic fraction of
// copy-forward destination space that went to waste.
func (d *Delegate) AverageEmptinessOfCopyForwardedRegions() float64 {
	total := d.averageCopyForwardBytesCopied + d.averageCopyForwardBytesDiscarded
	if total <= 0 {
		return 0
	}
	return d.averageCopyForwardBytesDiscarded / total
}
