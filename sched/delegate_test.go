// Package sched implements the adaptive scheduling controller of the tarok
// collector.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tarok-gc/tarok/cmn/cos"
	"github.com/tarok-gc/tarok/core"
)

var _ = Describe("Delegate lifecycle", func() {
	var (
		rm *core.RegionManagerMock
		d  *Delegate
	)

	BeforeEach(func() {
		rm = testRegionManager(1024, 1024)
		d = newTestDelegate(testConf(1, 1, 0), rm)
		d.HeapReconfigured()
		d.InitialTaxationThreshold()
		d.IncrementWork()
	})

	It("tracks the PGC interval from the second PGC on", func() {
		d.PartialGarbageCollectStarted()
		Expect(d.averagePgcInterval).To(BeZero(), "very first PGC carries no interval")

		d.PartialGarbageCollectStarted()
		Expect(d.averagePgcInterval).To(BeNumerically(">", 0))
	})

	It("maintains GMP flags across a mark cycle", func() {
		d.GlobalMarkCycleStart()
		Expect(d.CurrentlyPerformingGMP()).To(BeTrue())

		inc := &core.GMPIncrementStats{Mark: core.MarkStats{
			BytesScanned: cos.MiB, ScanTimeNS: 5_000_000, StartTime: 1_000_000, EndTime: 6_000_000,
		}}
		d.GlobalMarkIncrementCompleted(inc)
		Expect(d.globalMarkIncrementsTotalTime).To(Equal(uint64(5000)))

		d.liveSetBytesAfterPartialCollect = 100 * cos.MiB
		d.GlobalMarkPhaseCompleted(&core.GMPCycleStats{
			IncrementalMark:      core.MarkStats{ScanTimeNS: 40_000_000},
			ConcurrentMark:       core.MarkStats{BytesScanned: 10 * cos.MiB},
			ConcurrentWorkTimeNS: 20_000_000,
		})
		Expect(d.GlobalSweepRequired()).To(BeTrue())
		Expect(d.IsFirstPGCAfterGMP()).To(BeTrue())
		Expect(d.liveSetBytesBeforeGlobalSweep).To(Equal(uint64(100 * cos.MiB)))
		Expect(d.previousReclaimableRegions).To(BeZero())
		Expect(d.historicTotalIncrementalScanTimePerGMP).To(Equal(uint64(20_000))) // half of 40ms in µs

		d.GlobalMarkCycleEnd()
		Expect(d.CurrentlyPerformingGMP()).To(BeFalse())
	})

	It("clears sweep and baseline state after a full global collect", func() {
		d.globalSweepRequired = true
		d.disableCopyForwardDuringCurrentGlobalMarkPhase = true
		d.bytesCompactedToFreeBytesRatio = 3.5

		d.GlobalGarbageCollectCompleted(500, 400)
		Expect(d.GlobalSweepRequired()).To(BeFalse())
		Expect(d.CopyForwardDisabledDuringGMP()).To(BeFalse())
		Expect(d.bytesCompactedToFreeBytesRatio).To(BeZero())
		Expect(d.previousReclaimableRegions).To(Equal(uint64(500)))
		Expect(d.previousDefragmentReclaimableRegions).To(Equal(uint64(400)))
	})

	It("runs the full PGC completion pipeline", func() {
		d.SetStartupPhaseFinished(true)
		d.PartialGarbageCollectStarted()

		cs := &core.CycleState{
			Type:                 core.CTPartialGarbageCollection,
			ShouldRunCopyForward: true,
			Increment: &core.PGCCopyForwardStats{
				CopyForward: core.CopyForwardStats{
					EdenSurvivorRegionCount:    4,
					NonEdenSurvivorRegionCount: 2,
					NonEvacuateRegionCount:     1,
				},
			},
		}
		d.PartialGarbageCollectCompleted(cs, 900, 800)

		Expect(d.pgcCountSinceGMPEnd).To(Equal(uint64(1)))
		Expect(d.historicalPartialGCTime).To(BeNumerically(">", 0))
		Expect(d.edenRegionCount).To(BeNumerically("<=", rm.FreeRegionCount()))
		Expect(d.previousReclaimableRegions).To(Equal(uint64(900)))
	})

	It("disables copy-forward for the rest of the GMP after an abort", func() {
		d.remainingGMPIntermissionIntervals = 0
		d.PartialGarbageCollectStarted()

		cs := &core.CycleState{
			ShouldRunCopyForward: true,
			Increment: &core.PGCCopyForwardStats{
				CopyForward: core.CopyForwardStats{Aborted: true, EdenSurvivorRegionCount: 1},
			},
		}
		d.PartialGarbageCollectCompleted(cs, 900, 800)
		Expect(d.CopyForwardDisabledDuringGMP()).To(BeTrue())
	})

	It("alternates PGC types when both strategies are allowed", func() {
		d.conf.Tarok.PGCShouldCopyForward = true
		d.conf.Tarok.PGCShouldMarkCompact = true
		d.scanRate.microSecondsPerByteScanned = 0.01
		d.nextPGCShouldCopyForward = true

		cs := &core.CycleState{}
		d.DetermineNextPGCType(cs)
		Expect(cs.ShouldRunCopyForward).To(BeTrue())

		d.DetermineNextPGCType(cs)
		Expect(cs.ShouldRunCopyForward).To(BeFalse())

		d.DetermineNextPGCType(cs)
		Expect(cs.ShouldRunCopyForward).To(BeTrue())
	})

	It("forces calibration while no scan rate exists", func() {
		cs := &core.CycleState{}
		d.DetermineNextPGCType(cs)
		Expect(cs.ReasonForMarkCompactPGC).To(Equal(core.ReasonCalibration))
		Expect(cs.ShouldRunCopyForward).To(BeFalse())
	})

	It("drops pause samples outside the skew envelope", func() {
		d.historicalPartialGCTime = 50
		d.calculateGlobalMarkIncrementTimeMillis(20_000) // > max(10x50ms, 10s)
		Expect(d.historicalPartialGCTime).To(Equal(uint64(50)))

		d.calculateGlobalMarkIncrementTimeMillis(100)
		Expect(d.historicalPartialGCTime).To(Equal(uint64(60))) // 0.8*50 + 0.2*100
		Expect(d.DynamicGlobalMarkIncrementTimeMillis()).To(Equal(uint64(20)))
	})

	It("publishes heap sizing data with sane fallbacks", func() {
		var h core.HeapSizingData
		d.historicalPartialGCTime = 40
		d.UpdateHeapSizingData(&h)
		Expect(h.GMPTimeUS).To(Equal(uint64(1)), "no GMP time yet")
		Expect(h.AvgPGCTimeUS).To(Equal(uint64(40_000)))
		Expect(h.AvgPGCIntervalUS).To(Equal(uint64(200_000)), "5x pause guess before history")

		d.averagePgcInterval = 100_000
		d.totalGMPWorkTimeUS = 777
		d.UpdateHeapSizingData(&h)
		Expect(h.GMPTimeUS).To(Equal(uint64(777)))
		Expect(h.AvgPGCIntervalUS).To(Equal(uint64(60_000)))
	})

	It("accumulates and averages macro defragmentation work", func() {
		region := &core.Region{Pool: core.MemoryPool{ActualFree: 256 * cos.KiB}}
		d.UpdateCurrentMacroDefragmentationWork(region)
		// min(recoverable free, live) with no discard history
		Expect(d.currentMacroDefragmentationWork).To(Equal(uint64(256 * cos.KiB)))

		d.estimateMacroDefragmentationWork()
		Expect(d.averageMacroDefragmentationWork).To(BeNumerically("~", 0.2*float64(256*cos.KiB), 1e-6))
		Expect(d.currentMacroDefragmentationWork).To(BeZero())
	})

	It("marks defragmentation targets during the compaction-rate census", func() {
		rm := &core.RegionManagerMock{Size: cos.MiB, FreeCount: 2}
		rm.Regions = []core.Region{
			// empty enough to defragment
			{ContainsObjects: true, RememberedSetAccurate: true, AlreadySwept: true,
				Pool: core.MemoryPool{ActualFree: 512 * cos.KiB}},
			// too full to be worth copying
			{ContainsObjects: true, RememberedSetAccurate: true, AlreadySwept: true,
				Pool: core.MemoryPool{ActualFree: 8 * cos.KiB}},
			// overflowed remembered set: not collectible
			{ContainsObjects: true, AlreadySwept: true,
				Pool: core.MemoryPool{ActualFree: 512 * cos.KiB}},
			{FreeOrIdle: true},
			{FreeOrIdle: true},
		}
		conf := testConf(1, 1, 0)
		conf.Tarok.DefragmentEmptinessThreshold = 0.10
		d := newTestDelegate(conf, rm)

		d.calculatePGCCompactionRate(cos.MiB)

		Expect(rm.Regions[0].DefragmentationTarget).To(BeTrue())
		Expect(rm.Regions[1].DefragmentationTarget).To(BeFalse())
		Expect(rm.Regions[2].DefragmentationTarget).To(BeFalse())
		Expect(d.estimatedFreeTenure).To(BeNumerically(">", 0))
		Expect(d.bytesCompactedToFreeBytesRatio).To(BeNumerically(">", 0))
	})

	It("recalculates sweep-dependent rates only on the first PGC after GMP", func() {
		d.liveSetBytesAfterPartialCollect = 10 * cos.MiB
		d.didGMPCompleteSinceLastReclaim = true

		d.RecalculateRatesOnFirstPGCAfterGMP()
		Expect(d.IsFirstPGCAfterGMP()).To(BeFalse())
		Expect(d.liveSetBytesAfterGlobalSweep).To(Equal(uint64(10 * cos.MiB)))

		d.liveSetBytesAfterPartialCollect = 20 * cos.MiB
		d.RecalculateRatesOnFirstPGCAfterGMP() // no-op now
		Expect(d.liveSetBytesAfterGlobalSweep).To(Equal(uint64(10 * cos.MiB)))
	})
})
