// Package sched implements the adaptive scheduling controller of the tarok
// collector.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tarok-gc/tarok/cmn"
	"github.com/tarok-gc/tarok/cmn/cos"
	"github.com/tarok-gc/tarok/core"
)

func testConf(numerator, denominator, intermission uint64) *cmn.Config {
	c := cmn.Default()
	c.Tarok.PGCtoGMPNumerator = numerator
	c.Tarok.PGCtoGMPDenominator = denominator
	c.Tarok.AutomaticGMPIntermission = false
	c.Tarok.FixedGMPIntermission = intermission
	c.Heap.GCThreadCount = 1
	c.Heap.MemoryMax = 2 * cos.GiB
	Expect(c.Validate()).ShouldNot(HaveOccurred())
	return c
}

func testRegionManager(numRegions, freeRegions uint64) *core.RegionManagerMock {
	regions := make([]core.Region, numRegions)
	for i := range regions {
		if uint64(i) < freeRegions {
			regions[i].FreeOrIdle = true
		} else {
			regions[i].ContainsObjects = true
			regions[i].RememberedSetAccurate = true
			regions[i].AlreadySwept = true
		}
	}
	return &core.RegionManagerMock{
		Size:      cos.MiB,
		Regions:   regions,
		FreeCount: freeRegions,
		CtxCount:  1,
	}
}

func newTestDelegate(conf *cmn.Config, rm *core.RegionManagerMock) *Delegate {
	d := New(conf, rm, &core.CompactGroupStatsMock{}, &core.CollectorMock{RepresentativePGCs: 10}, nil)
	fake := int64(1)
	d.now = func() int64 { fake += 1_000_000; return fake }
	return d
}

var _ = Describe("TaxationScheduler", func() {
	It("interleaves GMP and PGC increments for a 1:3 ratio", func() {
		rm := testRegionManager(1024, 1024)
		d := newTestDelegate(testConf(1, 3, 0), rm)
		d.edenRegionCount = 16

		// --GMP--PGC--PGC--PGC--, every threshold an even quarter of eden
		wantGMP := []bool{true, false, false, false}
		for i, gmp := range wantGMP {
			threshold := d.NextTaxationThreshold()
			Expect(threshold).To(Equal(uint64(4*cos.MiB)), "threshold %d", i)

			doPGC, doGMP := d.IncrementWork()
			Expect(doGMP).To(Equal(gmp), "kind at index %d", i)
			Expect(doPGC).To(Equal(!gmp), "kind at index %d", i)
		}
	})

	It("places the GMP half way between PGCs for a 3:1 ratio", func() {
		rm := testRegionManager(1024, 1024)
		d := newTestDelegate(testConf(3, 1, 0), rm)
		d.edenRegionCount = 10

		type point struct {
			threshold uint64
			gmp       bool
		}
		want := []point{
			{5 * cos.MiB, true},   // PGC boundary -> GMP next
			{5 * cos.MiB, false},  // GMP boundary -> PGC next
			{10 * cos.MiB, false}, // PGC -> PGC
			{10 * cos.MiB, false}, // PGC -> PGC
		}
		for i, p := range want {
			threshold := d.NextTaxationThreshold()
			Expect(threshold).To(Equal(p.threshold), "threshold at index %d", i)

			doPGC, doGMP := d.IncrementWork()
			Expect(doGMP).To(Equal(p.gmp), "kind at index %d", i)
			Expect(doPGC).To(Equal(!p.gmp), "kind at index %d", i)
		}
	})

	It("emits only PGCs when incremental GMP is disabled", func() {
		conf := testConf(1, 3, 0)
		conf.Tarok.EnableIncrementalGMP = false
		rm := testRegionManager(1024, 1024)
		d := newTestDelegate(conf, rm)
		d.edenRegionCount = 16

		for range 5 {
			threshold := d.NextTaxationThreshold()
			Expect(threshold).To(Equal(uint64(16 * cos.MiB)))

			doPGC, doGMP := d.IncrementWork()
			Expect(doPGC).To(BeTrue())
			Expect(doGMP).To(BeFalse())
		}
	})

	It("consumes intermission intervals and accumulates their budgets", func() {
		rm := testRegionManager(1024, 1024)
		d := newTestDelegate(testConf(1, 1, 2), rm)
		d.edenRegionCount = 16
		d.remainingGMPIntermissionIntervals = 2

		// skipped GMP + PGC, budgets folded together
		threshold := d.NextTaxationThreshold()
		Expect(threshold).To(Equal(uint64(16 * cos.MiB)))
		doPGC, _ := d.IncrementWork()
		Expect(doPGC).To(BeTrue())
		Expect(d.remainingGMPIntermissionIntervals).To(Equal(uint64(1)))

		threshold = d.NextTaxationThreshold()
		Expect(threshold).To(Equal(uint64(16 * cos.MiB)))
		doPGC, _ = d.IncrementWork()
		Expect(doPGC).To(BeTrue())
		Expect(d.remainingGMPIntermissionIntervals).To(BeZero())

		// intermission over: the GMP fires with its halved budget
		threshold = d.NextTaxationThreshold()
		Expect(threshold).To(Equal(uint64(8 * cos.MiB)))
		_, doGMP := d.IncrementWork()
		Expect(doGMP).To(BeTrue())
	})

	It("returns exactly one increment kind per threshold", func() {
		rm := testRegionManager(1024, 1024)
		d := newTestDelegate(testConf(1, 3, 0), rm)
		d.edenRegionCount = 16

		for range 12 {
			d.NextTaxationThreshold()
			Expect(d.nextIncrementIsPGC != d.nextIncrementIsGMP).To(BeTrue())
			d.IncrementWork()
		}
	})

	It("reports (false, false) when asked twice for increment work", func() {
		rm := testRegionManager(1024, 1024)
		d := newTestDelegate(testConf(1, 3, 0), rm)
		d.edenRegionCount = 16

		d.NextTaxationThreshold()
		d.IncrementWork()
		doPGC, doGMP := d.IncrementWork()
		Expect(doPGC).To(BeFalse())
		Expect(doGMP).To(BeFalse())
	})

	It("floors the threshold at one region and rounds to a region multiple", func() {
		rm := testRegionManager(1024, 1024)
		d := newTestDelegate(testConf(1, 3, 0), rm)
		d.edenRegionCount = 1

		// raw/4 would be a quarter region
		threshold := d.NextTaxationThreshold()
		Expect(threshold).To(Equal(uint64(cos.MiB)))
	})

	It("primes survivor-set state from the initial taxation threshold", func() {
		rm := testRegionManager(1024, 1024)
		d := newTestDelegate(testConf(1, 1, 0), rm)
		d.HeapReconfigured()

		threshold := d.InitialTaxationThreshold()
		Expect(threshold).To(BeNumerically(">", 0))
		Expect(d.averageSurvivorSetRegionCount).To(BeNumerically("~", 0.3*float64(d.edenRegionCount), 1e-9))
		Expect(d.taxationIndex).To(BeNumerically(">", 0))
	})
})
