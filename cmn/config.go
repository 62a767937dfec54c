// Package cmn provides tarok configuration types, defaults, and validation.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tarok-gc/tarok/cmn/cos"
)

// AutomaticIntermission is the GMPIntermission sentinel selecting automatic
// kickoff planning.
const AutomaticIntermission = math.MaxUint64

type (
	Config struct {
		Heap    HeapConf    `json:"heap" yaml:"heap"`
		Tarok   TarokConf   `json:"tarok" yaml:"tarok"`
		Dnss    DnssConf    `json:"dnss" yaml:"dnss"`
		Weights WeightsConf `json:"weights" yaml:"weights"`
	}

	HeapConf struct {
		InitialMemorySize uint64 `json:"initial_memory_size" yaml:"initial_memory_size"`
		MemoryMax         uint64 `json:"memory_max" yaml:"memory_max"`
		SoftMx            uint64 `json:"soft_mx" yaml:"soft_mx"` // 0 => unset, MemoryMax governs
		GCThreadCount     uint64 `json:"gc_thread_count" yaml:"gc_thread_count"`
		XmnSpecified      bool   `json:"xmn_specified" yaml:"xmn_specified"`
		XmnsSpecified     bool   `json:"xmns_specified" yaml:"xmns_specified"`
		XmnxSpecified     bool   `json:"xmnx_specified" yaml:"xmnx_specified"`
	}

	TarokConf struct {
		PGCtoGMPNumerator   uint64 `json:"pgc_to_gmp_numerator" yaml:"pgc_to_gmp_numerator"`
		PGCtoGMPDenominator uint64 `json:"pgc_to_gmp_denominator" yaml:"pgc_to_gmp_denominator"`

		EnableIncrementalGMP     bool   `json:"enable_incremental_gmp" yaml:"enable_incremental_gmp"`
		GMPIntermission          uint64 `json:"-" yaml:"-"` // AutomaticIntermission selects planning
		AutomaticGMPIntermission bool   `json:"automatic_gmp_intermission" yaml:"automatic_gmp_intermission"`
		FixedGMPIntermission     uint64 `json:"fixed_gmp_intermission" yaml:"fixed_gmp_intermission"`

		PGCShouldCopyForward bool `json:"pgc_should_copy_forward" yaml:"pgc_should_copy_forward"`
		PGCShouldMarkCompact bool `json:"pgc_should_mark_compact" yaml:"pgc_should_mark_compact"`

		KickoffHeadroomInBytes      uint64 `json:"kickoff_headroom_bytes" yaml:"kickoff_headroom_bytes"`
		KickoffHeadroomRegionRate   uint64 `json:"kickoff_headroom_region_rate" yaml:"kickoff_headroom_region_rate"` // percent
		ForceKickoffHeadroomInBytes bool   `json:"force_kickoff_headroom_bytes" yaml:"force_kickoff_headroom_bytes"`

		IdealEdenMinimumBytes uint64 `json:"ideal_eden_minimum_bytes" yaml:"ideal_eden_minimum_bytes"`
		IdealEdenMaximumBytes uint64 `json:"ideal_eden_maximum_bytes" yaml:"ideal_eden_maximum_bytes"`

		GlobalMarkIncrementTimeMillis uint64 `json:"global_mark_increment_time_millis" yaml:"global_mark_increment_time_millis"` // 0 => auto
		MinimumGMPWorkTargetBytes     uint64 `json:"minimum_gmp_work_target_bytes" yaml:"minimum_gmp_work_target_bytes"`

		DefragmentEmptinessThreshold          float64 `json:"defragment_emptiness_threshold" yaml:"defragment_emptiness_threshold"`
		AutomaticDefragmentEmptinessThreshold bool    `json:"automatic_defragment_emptiness_threshold" yaml:"automatic_defragment_emptiness_threshold"`

		TargetMaxPauseTime          uint64  `json:"target_max_pause_time" yaml:"target_max_pause_time"` // milliseconds
		ConcurrentMarkingCostWeight float64 `json:"concurrent_marking_cost_weight" yaml:"concurrent_marking_cost_weight"`

		// testing-only: percentage of the collection set handled by the hybrid
		// copy-forward path; corrects survivor-need estimates
		ForceCopyForwardHybridRatio uint64 `json:"force_copy_forward_hybrid_ratio" yaml:"force_copy_forward_hybrid_ratio"`
	}

	DnssConf struct {
		ExpectedTimeRatioMinimum float64 `json:"expected_time_ratio_minimum" yaml:"expected_time_ratio_minimum"`
		ExpectedTimeRatioMaximum float64 `json:"expected_time_ratio_maximum" yaml:"expected_time_ratio_maximum"`
	}

	// WeightsConf carries every EWMA weight the controller uses. Weights go
	// to the historical value; tests may pin them to 0 or 1 for determinism.
	WeightsConf struct {
		ScanRateGMP               float64 `json:"scan_rate_gmp" yaml:"scan_rate_gmp"`
		ScanRatePGC               float64 `json:"scan_rate_pgc" yaml:"scan_rate_pgc"`
		PartialGCTime             float64 `json:"partial_gc_time" yaml:"partial_gc_time"`
		PartialGCOverhead         float64 `json:"partial_gc_overhead" yaml:"partial_gc_overhead"`
		PGCInterval               float64 `json:"pgc_interval" yaml:"pgc_interval"`
		CopyForward               float64 `json:"copy_forward" yaml:"copy_forward"`
		Consumption               float64 `json:"consumption" yaml:"consumption"`
		MacroDefrag               float64 `json:"macro_defrag" yaml:"macro_defrag"`
		SurvivalRate              float64 `json:"survival_rate" yaml:"survival_rate"`
		IncrementalScanTimePerGMP float64 `json:"incremental_scan_time_per_gmp" yaml:"incremental_scan_time_per_gmp"`
		ConcurrentBytesPerGMP     float64 `json:"concurrent_bytes_per_gmp" yaml:"concurrent_bytes_per_gmp"`
	}
)

func Default() *Config {
	return &Config{
		Heap: HeapConf{
			GCThreadCount: 1,
		},
		Tarok: TarokConf{
			PGCtoGMPNumerator:                     1,
			PGCtoGMPDenominator:                   1,
			EnableIncrementalGMP:                  true,
			GMPIntermission:                       AutomaticIntermission,
			AutomaticGMPIntermission:              true,
			PGCShouldCopyForward:                  true,
			KickoffHeadroomRegionRate:             2,
			TargetMaxPauseTime:                    200,
			ConcurrentMarkingCostWeight:           0.5,
			AutomaticDefragmentEmptinessThreshold: false,
		},
		Dnss: DnssConf{
			ExpectedTimeRatioMinimum: 0.02,
			ExpectedTimeRatioMaximum: 0.05,
		},
		Weights: WeightsConf{
			ScanRateGMP:               0.50,
			ScanRatePGC:               0.95,
			PartialGCTime:             0.80,
			PartialGCOverhead:         0.50,
			PGCInterval:               0.50,
			CopyForward:               0.50,
			Consumption:               0.80,
			MacroDefrag:               0.80,
			SurvivalRate:              0.50,
			IncrementalScanTimePerGMP: 0.50,
			ConcurrentBytesPerGMP:     0.50,
		},
	}
}

func (c *Config) Validate() error {
	t := &c.Tarok
	if t.PGCtoGMPNumerator == 0 || t.PGCtoGMPDenominator == 0 {
		return errors.Errorf("PGC:GMP ratio %d:%d: both terms must be nonzero",
			t.PGCtoGMPNumerator, t.PGCtoGMPDenominator)
	}
	if t.PGCtoGMPNumerator != 1 && t.PGCtoGMPDenominator != 1 {
		return errors.Errorf("PGC:GMP ratio %d:%d: must be 1:n or n:1",
			t.PGCtoGMPNumerator, t.PGCtoGMPDenominator)
	}
	if c.Heap.GCThreadCount == 0 {
		return errors.New("gc_thread_count must be positive")
	}
	if t.AutomaticGMPIntermission {
		// automatic planning assumes the sentinel
		t.GMPIntermission = AutomaticIntermission
	} else {
		t.GMPIntermission = t.FixedGMPIntermission
	}
	if t.DefragmentEmptinessThreshold < 0 || t.DefragmentEmptinessThreshold > 1 {
		return errors.Errorf("defragment emptiness threshold %.3f out of [0,1]",
			t.DefragmentEmptinessThreshold)
	}
	if t.KickoffHeadroomRegionRate > 100 {
		return errors.Errorf("kickoff headroom region rate %d%% exceeds 100%%",
			t.KickoffHeadroomRegionRate)
	}
	if t.TargetMaxPauseTime == 0 {
		return errors.New("target_max_pause_time must be positive")
	}
	d := &c.Dnss
	if d.ExpectedTimeRatioMinimum < 0 || d.ExpectedTimeRatioMaximum > 1 ||
		d.ExpectedTimeRatioMinimum >= d.ExpectedTimeRatioMaximum {
		return errors.Errorf("expected time ratio band [%.3f, %.3f] is invalid",
			d.ExpectedTimeRatioMinimum, d.ExpectedTimeRatioMaximum)
	}
	for _, w := range []float64{
		c.Weights.ScanRateGMP, c.Weights.ScanRatePGC, c.Weights.PartialGCTime,
		c.Weights.PartialGCOverhead, c.Weights.PGCInterval, c.Weights.CopyForward,
		c.Weights.Consumption, c.Weights.MacroDefrag, c.Weights.SurvivalRate,
		c.Weights.IncrementalScanTimePerGMP, c.Weights.ConcurrentBytesPerGMP,
	} {
		if w < 0 || w > 1 {
			return errors.Errorf("EWMA weight %.3f out of [0,1]", w)
		}
	}
	return nil
}

// Load reads a configuration overlaid on Default(). The format follows the
// file extension: .json, .yml, or .yaml.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %q", path)
	}
	c := Default()
	switch ext := filepath.Ext(path); ext {
	case ".json":
		err = cos.JSON.Unmarshal(b, c)
	case ".yml", ".yaml":
		err = yaml.Unmarshal(b, c)
	default:
		return nil, errors.Errorf("config %q: unknown extension %q", path, ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %q", path)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", path)
	}
	return c, nil
}
