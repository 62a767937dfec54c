// Package sched implements the adaptive scheduling controller of the tarok
// collector.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	"github.com/tarok-gc/tarok/core"
)

// measureScanRate folds one increment's scan sample into the historic
// microseconds-per-byte rate. Bytes and time are kept as separate historics
// so the derived ratio stays proportional when sample sizes vary. A zero
// bytes-scanned sample is dropped.
//
// GMP samples carry much more weight than PGC ones (the rate is used for GMP
// duration estimation), hence the two configured weights.
func (d *Delegate) measureScanRate(inc core.IncrementStats, historicWeight float64) {
	currentBytesScanned, scanTimeNS := scanSample(inc)
	if currentBytesScanned == 0 {
		return
	}

	// scan time is the total time all threads spent scanning
	currentScanMicroseconds := uint64(scanTimeNS) / 1000

	if d.scanRate.historicalBytesScanned != 0 {
		d.scanRate.historicalBytesScanned =
			uint64(float64(d.scanRate.historicalBytesScanned)*historicWeight + float64(currentBytesScanned)*(1-historicWeight))
		d.scanRate.historicalScanMicroseconds =
			uint64(float64(d.scanRate.historicalScanMicroseconds)*historicWeight + float64(currentScanMicroseconds)*(1-historicWeight))
	} else {
		// no history: seed with the sample, no averaging
		d.scanRate.historicalBytesScanned = currentBytesScanned
		d.scanRate.historicalScanMicroseconds = currentScanMicroseconds
	}

	if d.scanRate.historicalBytesScanned != 0 {
		d.scanRate.microSecondsPerByteScanned =
			float64(d.scanRate.historicalScanMicroseconds) / float64(d.scanRate.historicalBytesScanned)
	}
	d.trk.SetScanRate(d.scanRate.microSecondsPerByteScanned)
}

// scanSample extracts (bytesScanned, scanTimeNS) from the increment stats
// variant. The mark-compact PGC path was folded into the hybrid copy-forward
// collector, so both PGC variants can carry scan work.
func scanSample(inc core.IncrementStats) (bytes uint64, scanTimeNS int64) {
	switch s := inc.(type) {
	case *core.PGCCopyForwardStats:
		bytes = s.CopyForward.ScanBytesTotal + s.CopyForward.BytesCardClean
		scanTimeNS = s.CopyForward.EndTime - s.CopyForward.StartTime
	case *core.PGCMarkCompactStats:
		bytes = s.Mark.BytesScanned + s.Mark.BytesCardClean
		scanTimeNS = s.Mark.ScanTimeNS
	case *core.GMPIncrementStats:
		bytes = s.Mark.BytesScanned + s.Mark.BytesCardClean
		scanTimeNS = s.Mark.ScanTimeNS
	}
	if scanTimeNS < 0 {
		// clock skew: drop the sample
		return 0, 0
	}
	return bytes, scanTimeNS
}
