// Package core defines the engine-facing data model the scheduling
// controller reads and the flags it writes.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package core

type CollectionType int

const (
	CTPartialGarbageCollection CollectionType = iota
	CTGlobalMarkPhase
	CTGlobalGarbageCollection
)

// PGCReason explains why a PGC was forced onto the mark-compact path.
type PGCReason int

const (
	ReasonNone PGCReason = iota
	ReasonCalibration
)

type (
	// MarkStats covers one mark increment (STW or concurrent).
	MarkStats struct {
		BytesScanned  uint64
		BytesCardClean uint64
		ScanTimeNS    int64 // summed across workers
		StartTime     int64 // monotonic ns
		EndTime       int64
	}

	CopyForwardStats struct {
		EdenEvacuateRegionCount    uint64
		NonEdenEvacuateRegionCount uint64
		EdenSurvivorRegionCount    uint64
		NonEdenSurvivorRegionCount uint64
		NonEvacuateRegionCount     uint64
		ScanBytesEden              uint64
		ScanBytesNonEden           uint64
		ScanBytesTotal             uint64
		BytesCardClean             uint64
		CopyBytesTotal             uint64
		CopyDiscardBytesTotal      uint64
		ExternalCompactBytes       uint64
		StartTime                  int64 // monotonic ns
		EndTime                    int64
		Aborted                    bool
	}

	// IncrementStats is the per-increment stats variant; the scheduler
	// branches on the concrete type.
	IncrementStats interface{ incrementStats() }

	// PGCCopyForwardStats is the copy-forward flavor of a partial collect.
	PGCCopyForwardStats struct {
		CopyForward CopyForwardStats
		// total time workers spent clearing region references, microseconds
		ClearFromRegionReferencesTimeUS uint64
		// survivor regions recorded by the engine for this cycle
		SurvivorSetRegionCount uint64
	}

	// PGCMarkCompactStats is the mark-sweep-compact flavor.
	PGCMarkCompactStats struct {
		Mark MarkStats
	}

	// GMPIncrementStats covers one STW global mark increment.
	GMPIncrementStats struct {
		Mark MarkStats
	}
)

func (*PGCCopyForwardStats) incrementStats() {}
func (*PGCMarkCompactStats) incrementStats() {}
func (*GMPIncrementStats) incrementStats()   {}

type (
	// CycleState is owned by the engine; the controller reads the stats and
	// writes the documented flags only.
	CycleState struct {
		Type                    CollectionType
		ShouldRunCopyForward    bool
		ReasonForMarkCompactPGC PGCReason
		Increment               IncrementStats
	}

	// GMPCycleStats aggregates a whole global mark phase for the historic
	// per-GMP averages.
	GMPCycleStats struct {
		IncrementalMark MarkStats
		ConcurrentMark  MarkStats
		// total concurrent worker time, nanoseconds
		ConcurrentWorkTimeNS int64
	}

	// HeapSizingData is the engine-owned struct the controller refreshes for
	// the total-heap sizing logic.
	HeapSizingData struct {
		GMPTimeUS           uint64
		PGCCountSinceGMPEnd uint64
		AvgPGCTimeUS        uint64
		AvgPGCIntervalUS    uint64
		ReservedSize        uint64
	}
)
