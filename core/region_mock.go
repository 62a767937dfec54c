// Package core defines the engine-facing data model the scheduling
// controller reads and the flags it writes.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package core

type (
	// RegionManagerMock backs controller tests with a fixed region table.
	RegionManagerMock struct {
		Size       uint64
		Regions    []Region
		FreeCount  uint64
		CtxCount   uint64
		TableCount uint64 // 0 => len(Regions)
	}

	CompactGroupStatsMock struct {
		Rates map[int]float64
	}

	CollectorMock struct {
		BytesScanned         uint64
		RepresentativePGCs   uint64
	}
)

// interface guards
var (
	_ RegionManager     = (*RegionManagerMock)(nil)
	_ CompactGroupStats = (*CompactGroupStatsMock)(nil)
	_ Collector         = (*CollectorMock)(nil)
)

func (m *RegionManagerMock) RegionSize() uint64 { return m.Size }

func (m *RegionManagerMock) TableRegionCount() uint64 {
	if m.TableCount != 0 {
		return m.TableCount
	}
	return uint64(len(m.Regions))
}

func (m *RegionManagerMock) TotalHeapSize() uint64 { return m.TableRegionCount() * m.Size }

func (m *RegionManagerMock) FreeRegionCount() uint64 { return m.FreeCount }

func (m *RegionManagerMock) AllocationContextCount() uint64 {
	if m.CtxCount == 0 {
		return 1
	}
	return m.CtxCount
}

func (m *RegionManagerMock) Iterate(visit func(r *Region) bool) {
	for i := range m.Regions {
		if !visit(&m.Regions[i]) {
			return
		}
	}
}

func (m *CompactGroupStatsMock) WeightedSurvivalRate(group int) float64 {
	if r, ok := m.Rates[group]; ok {
		return r
	}
	return 1.0
}

func (m *CollectorMock) BytesScannedInGlobalMarkPhase() uint64 { return m.BytesScanned }

func (m *CollectorMock) RepresentativePGCPerGMPCount() uint64 {
	if m.RepresentativePGCs == 0 {
		return 1
	}
	return m.RepresentativePGCs
}
