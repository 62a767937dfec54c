// Package sched implements the adaptive scheduling controller of the tarok
// collector.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tarok-gc/tarok/cmn"
	"github.com/tarok-gc/tarok/cmn/cos"
	"github.com/tarok-gc/tarok/core"
)

var _ = Describe("GMPKickoffPlanner", func() {
	It("sets the intermission so marking completes before exhaustion", func() {
		conf := cmn.Default()
		conf.Tarok.PGCtoGMPNumerator = 1
		conf.Tarok.PGCtoGMPDenominator = 4
		conf.Tarok.GlobalMarkIncrementTimeMillis = 50
		conf.Tarok.ForceKickoffHeadroomInBytes = true // pin headroom at zero
		conf.Heap.GCThreadCount = 1
		conf.Heap.MemoryMax = 2 * cos.GiB
		Expect(conf.Validate()).ShouldNot(HaveOccurred())

		// 470 fully-live regions => 470 MiB to scan at 0.01 µs/byte
		rm := &core.RegionManagerMock{Size: cos.MiB, FreeCount: 16}
		rm.Regions = make([]core.Region, 470)
		for i := range rm.Regions {
			rm.Regions[i] = core.Region{ContainsObjects: true, RememberedSetAccurate: true, AlreadySwept: true}
		}
		d := newTestDelegate(conf, rm)

		d.regionConsumptionRate = 0.25
		d.previousDefragmentReclaimableRegions = 200
		d.idealEdenRegionCount = 16
		d.scanRate.microSecondsPerByteScanned = 0.01
		d.remainingGMPIntermissionIntervals = 5

		d.calculateAutomaticGMPIntermission(false /*mark-sweep-compact*/)

		// remainingPGCs = (200-16)/0.25 = 736; as GMP increments: 736*4 = 2944.
		// scan work: 470 MiB * 0.01 µs/B = ~4928ms => ceil(/50ms)+1 = 100 increments.
		Expect(d.remainingGMPIntermissionIntervals).To(Equal(uint64(2844)))
	})

	It("estimates remaining PGCs for the copy-forward path", func() {
		conf := testConf(1, 1, 0)
		rm := testRegionManager(1024, 100)
		d := newTestDelegate(conf, rm)

		d.regionConsumptionRate = 2.0
		d.idealEdenRegionCount = 20
		d.averageSurvivorSetRegionCount = 30
		d.previousDefragmentReclaimableRegions = 300 // includes the 100 free

		// (100 free + 200 recoverable - 20 eden - 30 survivor) / 2
		Expect(d.estimatePartialGCsRemaining(true)).To(Equal(uint64(125)))
	})

	It("reports zero PGCs remaining when eden cannot be replenished", func() {
		d := newTestDelegate(testConf(1, 1, 0), testRegionManager(64, 4))
		d.regionConsumptionRate = 1.0
		d.idealEdenRegionCount = 16
		d.previousDefragmentReclaimableRegions = 10
		Expect(d.estimatePartialGCsRemaining(false)).To(BeZero())
	})

	It("reports unbounded PGCs remaining without a consumption rate", func() {
		d := newTestDelegate(testConf(1, 1, 0), testRegionManager(64, 64))
		Expect(d.estimatePartialGCsRemaining(false)).To(Equal(uint64(math.MaxUint64)))
	})

	It("forces the mark to finish when allocation failure is imminent", func() {
		conf := testConf(1, 1, 0)
		conf.Tarok.GlobalMarkIncrementTimeMillis = 0 // dynamic
		d := newTestDelegate(conf, testRegionManager(64, 4))
		d.regionConsumptionRate = 1.0
		d.idealEdenRegionCount = 16
		d.previousDefragmentReclaimableRegions = 10
		d.nextPGCShouldCopyForward = false

		Expect(d.currentGlobalMarkIncrementTimeMillis()).To(Equal(uint64(math.MaxUint64)))
	})

	It("converts the increment pause budget into scan bytes", func() {
		conf := testConf(1, 1, 0)
		conf.Tarok.GlobalMarkIncrementTimeMillis = 50
		conf.Heap.GCThreadCount = 4
		d := newTestDelegate(conf, testRegionManager(64, 64))
		d.scanRate.microSecondsPerByteScanned = 0.01

		// 50ms * 1000 / 0.01 µs/B * 4 threads
		Expect(d.BytesToScanInNextGMPIncrement()).To(Equal(uint64(20_000_000)))
	})

	It("floors the scan budget at the configured minimum", func() {
		conf := testConf(1, 1, 0)
		conf.Tarok.GlobalMarkIncrementTimeMillis = 1
		conf.Tarok.MinimumGMPWorkTargetBytes = 64 * cos.MiB
		d := newTestDelegate(conf, testRegionManager(64, 64))
		d.scanRate.microSecondsPerByteScanned = 10

		Expect(d.BytesToScanInNextGMPIncrement()).To(Equal(uint64(64 * cos.MiB)))
	})

	It("derives headroom increments from the consumption rate", func() {
		conf := testConf(1, 4, 0)
		conf.Tarok.PGCtoGMPNumerator = 1
		conf.Tarok.PGCtoGMPDenominator = 4
		d := newTestDelegate(conf, testRegionManager(64, 64))
		d.kickoffHeadroomBytes = 2 * cos.MiB
		d.regionConsumptionRate = 0.5

		// 2 regions / 0.5 per PGC = 4 PGCs => 16 GMP increments
		Expect(d.calculateGlobalMarkIncrementHeadroom()).To(Equal(uint64(16)))
	})
})
