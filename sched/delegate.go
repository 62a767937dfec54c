// Package sched implements the adaptive scheduling controller of the
// incremental, region-based, generational (tarok) collector. The controller
// decides what the next collection increment does (PGC versus one global mark
// increment), how large Eden should be, when the next global mark phase kicks
// off, and how much scanning one GMP increment performs.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	"math"

	"github.com/tarok-gc/tarok/cmn"
	"github.com/tarok-gc/tarok/cmn/cos"
	"github.com/tarok-gc/tarok/cmn/debug"
	"github.com/tarok-gc/tarok/cmn/mono"
	"github.com/tarok-gc/tarok/cmn/nlog"
	"github.com/tarok-gc/tarok/core"
	"github.com/tarok-gc/tarok/stats"
	"github.com/tarok-gc/tarok/tracing"
)

const (
	minimumPgcTimeMillis = 5
	minimumEdenRegions   = 1

	// power of 2, so the counter check stays a bitwise op
	consecutivePGCToChangeEden = 16

	u32Max = math.MaxUint32

	// pause samples past this envelope are dropped as clock skew
	skewEnvelopeFloorMillis = 10_000
	// positive clock deltas past this are discarded as skew
	maxSaneDeltaUS = 3_600_000_000
)

type (
	scanRateStats struct {
		historicalBytesScanned     uint64
		historicalScanMicroseconds uint64
		microSecondsPerByteScanned float64
	}

	// Delegate is the scheduling controller. One per collector instance; all
	// callbacks are serialized by the host at STW and increment boundaries,
	// so no internal lock is held.
	Delegate struct {
		conf      *cmn.Config
		rm        core.RegionManager
		cg        core.CompactGroupStats
		collector core.Collector
		trk       *stats.Tracker
		overhead  OverheadModel

		now func() int64 // monotonic ns; swapped in tests

		// taxation
		taxationIndex                     uint64
		remainingGMPIntermissionIntervals uint64
		nextIncrementIsPGC                bool
		nextIncrementIsGMP                bool

		// flags published to the engine
		nextPGCShouldCopyForward                       bool
		currentlyPerformingGMP                         bool
		globalSweepRequired                            bool
		disableCopyForwardDuringCurrentGlobalMarkPhase bool
		didGMPCompleteSinceLastReclaim                 bool
		startupPhaseFinished                           bool

		// eden
		idealEdenRegionCount   uint64
		minimumEdenRegionCount uint64
		edenRegionCount        uint64
		edenSizeFactor         int64 // pending delta to ideal, regions
		maxEdenPercent         float64
		minEdenPercent         float64
		numberOfHeapRegions    uint64

		// survival and copy-forward
		edenSurvivalRateCopyForward      float64
		nonEdenSurvivalCountCopyForward  uint64
		averageCopyForwardBytesCopied    float64
		averageCopyForwardBytesDiscarded float64
		averageSurvivorSetRegionCount    float64
		averageCopyForwardRate           float64

		// consumption
		previousReclaimableRegions           uint64
		previousDefragmentReclaimableRegions uint64
		regionConsumptionRate                float64
		defragmentRegionConsumptionRate      float64
		bytesCompactedToFreeBytesRatio       float64
		averageMacroDefragmentationWork      float64
		currentMacroDefragmentationWork      uint64

		// occupancy
		liveSetBytesAfterPartialCollect      uint64
		heapOccupancyTrend                   float64
		liveSetBytesBeforeGlobalSweep        uint64
		liveSetBytesAfterGlobalSweep         uint64
		previousLiveSetBytesAfterGlobalSweep uint64
		scannableBytesRatio                  float64
		estimatedFreeTenure                  uint64

		// timing
		partialGcStartTime                   int64  // 0 => no PGC seen yet
		partialGcOverhead                    float64
		historicalPartialGCTime              uint64 // ms
		averagePgcInterval                   uint64 // µs, start-to-start
		globalMarkIncrementsTotalTime        uint64 // µs, current GMP
		globalMarkIntervalStartTime          int64
		globalMarkOverhead                   float64
		globalSweepTimeUS                    uint64
		concurrentMarkGCThreadsTotalWorkTime int64 // ns
		totalGMPWorkTimeUS                   uint64
		dynamicGlobalMarkIncrementTimeMillis uint64

		// per-GMP historics
		historicTotalIncrementalScanTimePerGMP uint64 // µs
		historicBytesScannedConcurrentlyPerGMP uint64

		// PGC pause model
		pgcTimeIncreasePerEdenRegionFactor float64
		pgcCountSinceGMPEnd                uint64

		// kickoff
		kickoffHeadroomBytes                  uint64
		automaticDefragmentEmptinessThreshold float64

		scanRate scanRateStats

		endGMPSpan func()
		endPGCSpan func()
	}
)

// New constructs the controller. The configuration must have passed
// Validate(); the ratio and thread-count requirements are fatal here.
func New(conf *cmn.Config, rm core.RegionManager, cg core.CompactGroupStats,
	collector core.Collector, trk *stats.Tracker) *Delegate {
	cos.AssertMsg(conf.Tarok.PGCtoGMPNumerator == 1 || conf.Tarok.PGCtoGMPDenominator == 1,
		"PGC:GMP ratio must be 1:n or n:1")
	cos.AssertMsg(conf.Heap.GCThreadCount > 0, "gc thread count must be positive")
	d := &Delegate{
		conf:      conf,
		rm:        rm,
		cg:        cg,
		collector: collector,
		trk:       trk,
		now:       mono.NanoTime,

		nextPGCShouldCopyForward:              conf.Tarok.PGCShouldCopyForward,
		edenSurvivalRateCopyForward:           1.0,
		averageCopyForwardRate:                1.0,
		heapOccupancyTrend:                    1.0,
		scannableBytesRatio:                   1.0,
		maxEdenPercent:                        0.75,
		minEdenPercent:                        0.01,
		partialGcOverhead:                     0.07,
		dynamicGlobalMarkIncrementTimeMillis:  50,
		pgcTimeIncreasePerEdenRegionFactor:    1.0001,
		kickoffHeadroomBytes:                  conf.Tarok.KickoffHeadroomInBytes,
		automaticDefragmentEmptinessThreshold: defaultAutomaticEmptinessThreshold,
	}
	d.overhead = newHybridOverhead(conf)
	return d
}

// SetOverheadModel swaps the pause/CPU cost model (must happen before use).
func (d *Delegate) SetOverheadModel(m OverheadModel) { d.overhead = m }

// SetStartupPhaseFinished flips eden sizing from startup interpolation to the
// overhead-driven heuristics.
func (d *Delegate) SetStartupPhaseFinished(v bool) { d.startupPhaseFinished = v }

//
// clock helpers
//

// deltaUS converts a monotonic interval to microseconds; a non-positive or
// insanely large delta is reported as a discarded sample.
func (d *Delegate) deltaUS(start, end int64) (uint64, bool) {
	if end <= start {
		return 0, false
	}
	us := uint64(end-start) / 1000
	if us > maxSaneDeltaUS {
		return 0, false
	}
	return us, true
}

//
// taxation
//

// InitialTaxationThreshold resets all taxation and intermission state and
// returns the first allocation budget.
func (d *Delegate) InitialTaxationThreshold() uint64 {
	d.nextIncrementIsGMP = false
	d.nextIncrementIsPGC = false
	d.taxationIndex = 0
	d.remainingGMPIntermissionIntervals = d.conf.Tarok.GMPIntermission
	d.calculateEdenSize()

	// initial survivor-set estimate is 30% of the first Eden
	d.averageSurvivorSetRegionCount = 0.3 * float64(d.CurrentEdenSizeInBytes()) / float64(d.rm.RegionSize())

	return d.NextTaxationThreshold()
}

func (d *Delegate) nextTaxationThresholdInternal() uint64 {
	// both flags must be in their invalid state when this is called
	debug.Assert(!d.nextIncrementIsPGC)
	debug.Assert(!d.nextIncrementIsGMP)

	threshold := d.edenRegionCount * d.rm.RegionSize()
	idx := d.taxationIndex
	t := &d.conf.Tarok

	if t.EnableIncrementalGMP {
		numerator, denominator := t.PGCtoGMPNumerator, t.PGCtoGMPDenominator
		switch {
		case numerator == 1:
			// ratio 1:n - every (n+1)th taxation point, starting at index 0,
			// is a GMP, the rest are PGCs: --GMP--PGC--PGC--PGC--GMP--PGC--
			if idx%(denominator+1) == 0 {
				d.nextIncrementIsGMP = true
			} else {
				d.nextIncrementIsPGC = true
			}
			// divide the eden budget up into n+1 taxation points
			threshold /= denominator + 1
		case denominator == 1:
			// ratio n:1 - every (n+1)th taxation point is a GMP placed half
			// way between two PGCs: ---PGC---PGC-GMP-PGC---PGC-GMP-PGC---
			switch {
			case idx%(numerator+1) == 0:
				// just completed a PGC, next increment is a GMP
				d.nextIncrementIsGMP = true
				threshold /= 2
			case (idx+numerator)%(numerator+1) == 0:
				// just completed a GMP, next increment is a PGC
				d.nextIncrementIsPGC = true
				threshold /= 2
			default:
				// PGC to PGC
				d.nextIncrementIsPGC = true
			}
		default:
			cos.AssertMsg(false, "PGC:GMP ratio must be 1:n or n:1")
		}
	} else {
		// no incremental GMP - every point is a PGC
		d.nextIncrementIsPGC = true
	}

	d.taxationIndex++
	return threshold
}

// NextTaxationThreshold returns the allocation budget in bytes until the next
// taxation point, consuming GMP intermission intervals along the way.
func (d *Delegate) NextTaxationThreshold() uint64 {
	var threshold uint64
	for {
		threshold += d.nextTaxationThresholdInternal()

		// skip the next GMP interval if the intermission is still running
		if d.remainingGMPIntermissionIntervals > 0 && d.nextIncrementIsGMP {
			d.remainingGMPIntermissionIntervals--
			d.nextIncrementIsGMP = false
		}
		if d.nextIncrementIsGMP || d.nextIncrementIsPGC {
			break
		}
	}

	regionSize := d.rm.RegionSize()
	threshold = max(regionSize, cos.RoundFloor(threshold, regionSize))

	if d.nextIncrementIsGMP {
		d.trk.AddTaxationPoint(stats.KindGMP)
	} else {
		d.trk.AddTaxationPoint(stats.KindPGC)
	}
	d.trk.SetIntermission(d.remainingGMPIntermissionIntervals)
	nlog.Infof("taxation: index=%d threshold=%d gmp=%t pgc=%t",
		d.taxationIndex, threshold, d.nextIncrementIsGMP, d.nextIncrementIsPGC)
	return threshold
}

// IncrementWork reports what the engine should do at the taxation point it
// just reached, and invalidates the remembered values.
func (d *Delegate) IncrementWork() (doPartialGarbageCollection, doGlobalMarkPhase bool) {
	doPartialGarbageCollection = d.nextIncrementIsPGC
	doGlobalMarkPhase = d.nextIncrementIsGMP
	d.nextIncrementIsPGC = false
	d.nextIncrementIsGMP = false
	return doPartialGarbageCollection, doGlobalMarkPhase
}

//
// GMP lifecycle
//

func (d *Delegate) GlobalMarkCycleStart() {
	d.calculateGlobalMarkOverhead()

	d.currentlyPerformingGMP = true
	d.globalMarkIncrementsTotalTime = 0
	d.concurrentMarkGCThreadsTotalWorkTime = 0
	d.endGMPSpan = tracing.StartSpan("gmp-cycle")
}

func (d *Delegate) calculateGlobalMarkOverhead() {
	intervalEnd := d.now()
	intervalUS, intervalOK := d.deltaUS(d.globalMarkIntervalStartTime, intervalEnd)

	// mutators may have been idle: concurrent GMP work is half-weighted
	concurrentCostUS := uint64(max(d.concurrentMarkGCThreadsTotalWorkTime, 0)) / 1000
	potentialGMPWorkTime := d.globalMarkIncrementsTotalTime + d.globalSweepTimeUS + concurrentCostUS/2

	var potentialOverhead float64
	if intervalOK {
		potentialOverhead = float64(potentialGMPWorkTime) / float64(intervalUS)
	}
	if potentialOverhead > 0 && potentialOverhead < 1 && d.globalMarkIntervalStartTime != 0 {
		d.totalGMPWorkTimeUS = potentialGMPWorkTime
	} else if d.totalGMPWorkTimeUS == 0 {
		// no history at all: assume GMP is 5x the average PGC, enough data
		// to start deciding eden size
		d.totalGMPWorkTimeUS = d.historicalPartialGCTime * 1000 * 5
	}

	if intervalOK {
		d.globalMarkOverhead = float64(d.totalGMPWorkTimeUS) / float64(intervalUS)
	}
	nlog.Infof("gmp overhead: %.3f increments=%dus concurrent=%dus interval=%dms",
		d.globalMarkOverhead, d.globalMarkIncrementsTotalTime, concurrentCostUS, intervalUS/1000)

	d.globalMarkIntervalStartTime = intervalEnd
}

func (d *Delegate) GlobalMarkIncrementCompleted(inc *core.GMPIncrementStats) {
	d.measureScanRate(inc, d.conf.Weights.ScanRateGMP)

	if elapsed, ok := d.deltaUS(inc.Mark.StartTime, inc.Mark.EndTime); ok {
		d.globalMarkIncrementsTotalTime += elapsed
	} else {
		d.trk.AddSkewDrop()
	}
}

func (d *Delegate) GlobalMarkPhaseCompleted(cycle *core.GMPCycleStats) {
	// snapshot of the live set from the last PGC; the sweep has not happened
	// yet, so this is the before-sweep value
	d.liveSetBytesBeforeGlobalSweep = d.liveSetBytesAfterPartialCollect

	d.remainingGMPIntermissionIntervals = d.conf.Tarok.GMPIntermission

	// the GMP just created more reclaimable data; the consumption estimate
	// restarts from scratch
	d.previousReclaimableRegions = 0

	d.didGMPCompleteSinceLastReclaim = true
	d.globalSweepRequired = true
	d.disableCopyForwardDuringCurrentGlobalMarkPhase = false

	d.concurrentMarkGCThreadsTotalWorkTime = cycle.ConcurrentWorkTimeNS
	d.updateGMPStats(cycle)
	d.trk.AddGMPCycle()
}

func (d *Delegate) GlobalMarkCycleEnd() {
	d.currentlyPerformingGMP = false
	if d.endGMPSpan != nil {
		d.endGMPSpan()
		d.endGMPSpan = nil
	}
}

// GlobalSweepCompleted records the duration of the global sweep that follows
// a completed mark phase.
func (d *Delegate) GlobalSweepCompleted(durUS uint64) { d.globalSweepTimeUS = durUS }

func (d *Delegate) updateGMPStats(cycle *core.GMPCycleStats) {
	debug.Assert(d.conf.Heap.GCThreadCount > 0)

	incrementalScanTime := uint64(max(cycle.IncrementalMark.ScanTimeNS, 0)) / 1000 / d.conf.Heap.GCThreadCount
	concurrentBytesScanned := cycle.ConcurrentMark.BytesScanned

	w := d.conf.Weights.IncrementalScanTimePerGMP
	d.historicTotalIncrementalScanTimePerGMP =
		uint64(cos.WeightedAverage(float64(d.historicTotalIncrementalScanTimePerGMP), float64(incrementalScanTime), w))
	w = d.conf.Weights.ConcurrentBytesPerGMP
	d.historicBytesScannedConcurrentlyPerGMP =
		uint64(cos.WeightedAverage(float64(d.historicBytesScannedConcurrentlyPerGMP), float64(concurrentBytesScanned), w))
}

// ScanTimeCostPerGMP is the historic scan-time cost of one whole GMP: the
// incremental part plus the concurrent part weighted by the configured
// concurrent-marking cost attribution.
func (d *Delegate) ScanTimeCostPerGMP() uint64 {
	incrementalCost := float64(d.historicTotalIncrementalScanTimePerGMP)
	concurrentCost := 0.0
	scanRate := d.scanRate.microSecondsPerByteScanned / float64(d.conf.Heap.GCThreadCount)
	if scanRate > 0 {
		concurrentCost = d.conf.Tarok.ConcurrentMarkingCostWeight *
			(float64(d.historicBytesScannedConcurrentlyPerGMP) * scanRate)
	}
	return uint64(incrementalCost + concurrentCost)
}

//
// global (full STW) collection
//

func (d *Delegate) GlobalGarbageCollectCompleted(reclaimableRegions, defragmentReclaimableRegions uint64) {
	// re-estimate the reclaimable set, but don't measure consumption - this
	// wasn't a PGC
	d.previousReclaimableRegions = reclaimableRegions
	d.previousDefragmentReclaimableRegions = defragmentReclaimableRegions

	// a global GC fully compacts the heap: no compaction work left for PGCs,
	// no sweep needed either
	d.bytesCompactedToFreeBytesRatio = 0.0
	d.globalSweepRequired = false

	// if the GMP ended in allocation failure, clear the flag as if the GMP
	// completed normally
	d.disableCopyForwardDuringCurrentGlobalMarkPhase = false
}

//
// PGC lifecycle
//

func (d *Delegate) PartialGarbageCollectStarted() {
	// the very first PGC has no interval
	if d.partialGcStartTime != 0 {
		if recent, ok := d.deltaUS(d.partialGcStartTime, d.now()); ok {
			w := d.conf.Weights.PGCInterval
			d.averagePgcInterval = uint64(w*float64(d.averagePgcInterval)) + uint64((1-w)*float64(recent))
		} else {
			d.trk.AddSkewDrop()
		}
	}
	d.partialGcStartTime = d.now()
	d.calculatePartialGarbageCollectOverhead()
	d.endPGCSpan = tracing.StartSpan("pgc")
}

func (d *Delegate) calculatePartialGarbageCollectOverhead() {
	if d.averagePgcInterval == 0 || d.historicalPartialGCTime == 0 {
		// can't compute overhead on the very first PGC
		return
	}
	recentOverhead := float64(d.historicalPartialGCTime*1000) / float64(d.averagePgcInterval)
	d.partialGcOverhead = cos.WeightedAverage(d.partialGcOverhead, recentOverhead, d.conf.Weights.PartialGCOverhead)
}

// DetermineNextPGCType publishes the copy-forward/mark-compact decision for
// the upcoming PGC and advances the alternation.
func (d *Delegate) DetermineNextPGCType(cs *core.CycleState) {
	// with no historic scan rate, force a mark-sweep-compact collect to
	// calibrate
	if d.scanRate.microSecondsPerByteScanned == 0.0 {
		cs.ReasonForMarkCompactPGC = core.ReasonCalibration
		d.nextPGCShouldCopyForward = false
	}

	cs.ShouldRunCopyForward = d.nextPGCShouldCopyForward
	switch {
	case d.nextPGCShouldCopyForward && d.conf.Tarok.PGCShouldMarkCompact:
		// about to copy-forward and allowed to compact: compact next
		d.nextPGCShouldCopyForward = false
	case !d.nextPGCShouldCopyForward && d.conf.Tarok.PGCShouldCopyForward:
		// about to compact and allowed to copy-forward: copy-forward next
		d.nextPGCShouldCopyForward = true
	default:
		// not allowed to change modes
	}
}

func (d *Delegate) PartialGarbageCollectCompleted(cs *core.CycleState, reclaimableRegions, defragmentReclaimableRegions uint64) {
	globalSweepHappened := d.globalSweepRequired
	d.globalSweepRequired = false

	// Eden size of the interval that just ended, before any recalculation
	edenCountBeforeCollect := d.edenRegionCount

	if cs.ShouldRunCopyForward {
		cf, ok := cs.Increment.(*core.PGCCopyForwardStats)
		debug.Assert(ok, "copy-forward PGC without copy-forward stats")
		regionSize := d.rm.RegionSize()

		// survivor regions allocated for Eden survivors, plus however many
		// more we would have needed to avoid abort
		debug.Assert(cf.CopyForward.ScanBytesEden == 0 || cf.CopyForward.Aborted || cf.CopyForward.NonEvacuateRegionCount != 0)
		debug.Assert(cf.CopyForward.ScanBytesNonEden == 0 || cf.CopyForward.Aborted || cf.CopyForward.NonEvacuateRegionCount != 0)
		edenSurvivorCount := cf.CopyForward.EdenSurvivorRegionCount + cos.DivCeil(cf.CopyForward.ScanBytesEden, regionSize)
		nonEdenSurvivorCount := cf.CopyForward.NonEdenSurvivorRegionCount + cos.DivCeil(cf.CopyForward.ScanBytesNonEden, regionSize)

		// Eden can be empty right after a compaction that left no free
		// regions for scheduling; skip the survival-rate update then
		if edenCountBeforeCollect != 0 {
			thisSurvivalRate := float64(edenSurvivorCount) / float64(edenCountBeforeCollect)
			d.updateSurvivalRatesAfterCopyForward(thisSurvivalRate, nonEdenSurvivorCount)
		}

		if cf.CopyForward.Aborted {
			d.trk.AddCopyForwardAbort()
			if d.remainingGMPIntermissionIntervals == 0 {
				// the rest of the PGCs until the GMP completes must not try
				// copy-forward
				d.disableCopyForwardDuringCurrentGlobalMarkPhase = true
			}
		}
	} else {
		// scan rate is measured in PGC only on the mark-sweep-compact path
		d.measureScanRate(cs.Increment, d.conf.Weights.ScanRatePGC)
	}
	d.measureConsumptionForPartialGC(reclaimableRegions, defragmentReclaimableRegions)

	pgcTimeMillis, pgcTimeOK := d.deltaUS(d.partialGcStartTime, d.now())
	pgcTimeMillis /= 1000

	d.pgcCountSinceGMPEnd++

	d.checkEdenSizeAfterPgc(globalSweepHappened)
	d.calculateEdenSize()
	// recalculate the GMP intermission after (possibly) resizing Eden
	d.calculateAutomaticGMPIntermission(cs.ShouldRunCopyForward)
	d.estimateMacroDefragmentationWork()

	if pgcTimeOK {
		d.calculateGlobalMarkIncrementTimeMillis(pgcTimeMillis)
	} else {
		d.trk.AddSkewDrop()
	}
	d.updatePgcTimePrediction()

	d.trk.AddPartialCollect()
	if d.endPGCSpan != nil {
		d.endPGCSpan()
		d.endPGCSpan = nil
	}
}

// calculateGlobalMarkIncrementTimeMillis folds the observed PGC pause into
// the historic average and re-derives the dynamic GMP increment time (a third
// of the recent average, at least 1ms so later divisions stay defined).
func (d *Delegate) calculateGlobalMarkIncrementTimeMillis(pgcTime uint64) {
	if d.pauseOutOfEnvelope(pgcTime) {
		d.trk.AddSkewDrop()
		nlog.Warningf("dropping pgc pause sample %dms (historical %dms)", pgcTime, d.historicalPartialGCTime)
		return
	}
	if d.historicalPartialGCTime == 0 {
		d.historicalPartialGCTime = pgcTime
	} else {
		w := d.conf.Weights.PartialGCTime
		d.historicalPartialGCTime = uint64(float64(d.historicalPartialGCTime)*w + float64(pgcTime)*(1-w))
	}
	cos.Assert(d.historicalPartialGCTime <= u32Max)

	d.dynamicGlobalMarkIncrementTimeMillis = max(d.historicalPartialGCTime/3, 1)
}

// pauseOutOfEnvelope flags pause samples that can only come from a clock
// adjustment: anything past 2^32-1 ms, or - once history exists - past
// max(10x historical, 10s).
func (d *Delegate) pauseOutOfEnvelope(pgcTimeMillis uint64) bool {
	if pgcTimeMillis > u32Max {
		return true
	}
	if d.historicalPartialGCTime == 0 {
		return false
	}
	return pgcTimeMillis > max(10*d.historicalPartialGCTime, skewEnvelopeFloorMillis)
}

func (d *Delegate) resetPgcTimeStatistics() { d.pgcCountSinceGMPEnd = 0 }

// IsFirstPGCAfterGMP reports whether a GMP completed since the last reclaim.
func (d *Delegate) IsFirstPGCAfterGMP() bool { return d.didGMPCompleteSinceLastReclaim }

func (d *Delegate) FirstPGCAfterGMPCompleted() { d.didGMPCompleteSinceLastReclaim = false }

//
// outputs
//

// DesiredCompactWork is the compaction budget for the next PGC: sweep-driven
// work plus macro defragmentation.
func (d *Delegate) DesiredCompactWork() uint64 {
	work := uint64(d.bytesCompactedToFreeBytesRatio * math.Max(0.0, d.regionConsumptionRate) * float64(d.rm.RegionSize()))
	work += uint64(d.averageMacroDefragmentationWork)
	return work
}

func (d *Delegate) GlobalSweepRequired() bool { return d.globalSweepRequired }

func (d *Delegate) CopyForwardDisabledDuringGMP() bool {
	return d.disableCopyForwardDuringCurrentGlobalMarkPhase
}

func (d *Delegate) CurrentlyPerformingGMP() bool { return d.currentlyPerformingGMP }

// UpdateHeapSizingData refreshes the engine-owned inputs of the total-heap
// sizing logic.
func (d *Delegate) UpdateHeapSizingData(h *core.HeapSizingData) {
	regionSize := d.rm.RegionSize()
	survivorSize := uint64(float64(regionSize) * d.averageSurvivorSetRegionCount)

	h.GMPTimeUS = max(d.totalGMPWorkTimeUS, 1)
	h.PGCCountSinceGMPEnd = d.pgcCountSinceGMPEnd
	h.AvgPGCTimeUS = d.historicalPartialGCTime * 1000
	// before any interval history exists, guess the interval at 5x the pause
	if d.averagePgcInterval != 0 {
		h.AvgPGCIntervalUS = cos.SaturatingSub(d.averagePgcInterval, d.historicalPartialGCTime*1000)
	} else {
		h.AvgPGCIntervalUS = d.historicalPartialGCTime * 1000 * 5
	}
	h.ReservedSize = d.CurrentEdenSizeInBytes() + survivorSize
}
