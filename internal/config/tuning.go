package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Fields are pointers so a partial JSON file only overrides what it names;
// the Get* accessors supply defaults for everything else.
type TuningConfig struct {
	// Curve fitter params
	MinFitPoints         *int     `json:"min_fit_points,omitempty"`
	ConsensusIterations  *int     `json:"consensus_iterations,omitempty"`
	ConsensusThresholdPx *float64 `json:"consensus_threshold_px,omitempty"`
	ConsensusSeed        *int64   `json:"consensus_seed,omitempty"`

	// Lane estimator params
	SlopeMin                *float64 `json:"slope_min,omitempty"`
	SmoothingPreviousWeight *float64 `json:"smoothing_previous_weight,omitempty"`

	// Tracker params
	LateralHistoryLen *int     `json:"lateral_history_len,omitempty"`
	AreaHistoryLen    *int     `json:"area_history_len,omitempty"`
	AssociationGatePx *float64 `json:"association_gate_px,omitempty"`

	// Behavior params
	DriftThreshold       *float64 `json:"drift_threshold,omitempty"`
	OffCenterThresholdPx *float64 `json:"off_center_threshold_px,omitempty"`
	ReversalCount        *int     `json:"reversal_count,omitempty"`

	// Detection class filter
	WatchClasses *[]int `json:"watch_classes,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/vision/l3lanes/
		"../../../../" + DefaultConfigPath,    // deeper packages
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MinFitPoints != nil && *c.MinFitPoints < 3 {
		return fmt.Errorf("min_fit_points must be at least 3, got %d", *c.MinFitPoints)
	}

	if c.ConsensusIterations != nil && *c.ConsensusIterations < 1 {
		return fmt.Errorf("consensus_iterations must be positive, got %d", *c.ConsensusIterations)
	}

	if c.SmoothingPreviousWeight != nil {
		if *c.SmoothingPreviousWeight < 0 || *c.SmoothingPreviousWeight > 1 {
			return fmt.Errorf("smoothing_previous_weight must be between 0 and 1, got %f", *c.SmoothingPreviousWeight)
		}
	}

	if c.LateralHistoryLen != nil && *c.LateralHistoryLen < 1 {
		return fmt.Errorf("lateral_history_len must be positive, got %d", *c.LateralHistoryLen)
	}

	if c.AreaHistoryLen != nil && *c.AreaHistoryLen < 2 {
		return fmt.Errorf("area_history_len must be at least 2, got %d", *c.AreaHistoryLen)
	}

	if c.AssociationGatePx != nil && *c.AssociationGatePx <= 0 {
		return fmt.Errorf("association_gate_px must be positive, got %f", *c.AssociationGatePx)
	}

	if c.ReversalCount != nil && *c.ReversalCount < 1 {
		return fmt.Errorf("reversal_count must be positive, got %d", *c.ReversalCount)
	}

	return nil
}

// GetMinFitPoints returns the min_fit_points value or the default.
func (c *TuningConfig) GetMinFitPoints() int {
	if c.MinFitPoints == nil {
		return 10
	}
	return *c.MinFitPoints
}

// GetConsensusIterations returns the consensus_iterations value or the default.
func (c *TuningConfig) GetConsensusIterations() int {
	if c.ConsensusIterations == nil {
		return 60
	}
	return *c.ConsensusIterations
}

// GetConsensusThresholdPx returns the consensus_threshold_px value or the default.
func (c *TuningConfig) GetConsensusThresholdPx() float64 {
	if c.ConsensusThresholdPx == nil {
		return 12.0
	}
	return *c.ConsensusThresholdPx
}

// GetConsensusSeed returns the consensus_seed value or the default.
func (c *TuningConfig) GetConsensusSeed() int64 {
	if c.ConsensusSeed == nil {
		return 1
	}
	return *c.ConsensusSeed
}

// GetSlopeMin returns the slope_min value or the default.
func (c *TuningConfig) GetSlopeMin() float64 {
	if c.SlopeMin == nil {
		return 0.3
	}
	return *c.SlopeMin
}

// GetSmoothingPreviousWeight returns the smoothing_previous_weight value or the default.
func (c *TuningConfig) GetSmoothingPreviousWeight() float64 {
	if c.SmoothingPreviousWeight == nil {
		return 0.9
	}
	return *c.SmoothingPreviousWeight
}

// GetLateralHistoryLen returns the lateral_history_len value or the default.
func (c *TuningConfig) GetLateralHistoryLen() int {
	if c.LateralHistoryLen == nil {
		return 60
	}
	return *c.LateralHistoryLen
}

// GetAreaHistoryLen returns the area_history_len value or the default.
func (c *TuningConfig) GetAreaHistoryLen() int {
	if c.AreaHistoryLen == nil {
		return 5
	}
	return *c.AreaHistoryLen
}

// GetAssociationGatePx returns the association_gate_px value or the default.
func (c *TuningConfig) GetAssociationGatePx() float64 {
	if c.AssociationGatePx == nil {
		return 50.0
	}
	return *c.AssociationGatePx
}

// GetDriftThreshold returns the drift_threshold value or the default.
func (c *TuningConfig) GetDriftThreshold() float64 {
	if c.DriftThreshold == nil {
		return 0.3
	}
	return *c.DriftThreshold
}

// GetOffCenterThresholdPx returns the off_center_threshold_px value or the default.
func (c *TuningConfig) GetOffCenterThresholdPx() float64 {
	if c.OffCenterThresholdPx == nil {
		return 40.0
	}
	return *c.OffCenterThresholdPx
}

// GetReversalCount returns the reversal_count value or the default.
func (c *TuningConfig) GetReversalCount() int {
	if c.ReversalCount == nil {
		return 3
	}
	return *c.ReversalCount
}

// GetWatchClasses returns the watch_classes value or the default set
// (person, bicycle, car, motorbike, truck).
func (c *TuningConfig) GetWatchClasses() []int {
	if c.WatchClasses == nil {
		return []int{0, 1, 2, 3, 7}
	}
	out := make([]int, len(*c.WatchClasses))
	copy(out, *c.WatchClasses)
	return out
}
