// Package core defines the engine-facing data model the scheduling
// controller reads and the flags it writes.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package core

type (
	// MemoryPool is the per-region occupancy snapshot the engine maintains.
	MemoryPool struct {
		ActualFree    uint64 // allocatable free bytes
		DarkMatter    uint64 // unusable fragmentation
		Scannable     uint64 // live, reference-bearing
		NonScannable  uint64 // live, primitive
	}

	Region struct {
		Pool                  MemoryPool
		CompactGroup          int
		ContainsObjects       bool
		FreeOrIdle            bool
		ArrayletLeaf          bool
		ObjectArraySpine      bool // leaf whose spine is an object array
		RememberedSetAccurate bool
		AlreadySwept          bool

		// written by the controller during compaction-rate census
		DefragmentationTarget bool
	}

	// RegionManager is the controller's read-only view of the region table.
	// Iterate walks managed regions only (the cold area is never scheduled).
	RegionManager interface {
		RegionSize() uint64
		TableRegionCount() uint64
		TotalHeapSize() uint64
		FreeRegionCount() uint64
		AllocationContextCount() uint64
		Iterate(visit func(r *Region) bool)
	}

	// CompactGroupStats exposes per-compact-group persistent survival rates.
	CompactGroupStats interface {
		WeightedSurvivalRate(group int) float64
	}

	// Collector exposes the global collector's mark progress.
	Collector interface {
		BytesScannedInGlobalMarkPhase() uint64
		RepresentativePGCPerGMPCount() uint64
	}
)

// FreeAndDarkMatter returns the bytes a copy-forward could reclaim from the
// region at best.
func (p *MemoryPool) FreeAndDarkMatter() uint64 { return p.ActualFree + p.DarkMatter }
