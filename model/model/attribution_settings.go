package model

import (
	"fmt"
	"math"
	"time"

	U "revtrace/util"
)

const (
	AttributionModelFirstTouch    = "first_touch"
	AttributionModelLastTouch     = "last_touch"
	AttributionModelLastNonDirect = "last_non_direct"
	AttributionModelLinear        = "linear"
	AttributionModelTimeDecay     = "time_decay"
	AttributionModelPositionBased = "position_based"
	AttributionModelDataDriven    = "data_driven"

	AttributionWindow1D  = "1d"
	AttributionWindow3D  = "3d"
	AttributionWindow7D  = "7d"
	AttributionWindow14D = "14d"
	AttributionWindow28D = "28d"
	AttributionWindow30D = "30d"
	AttributionWindow90D = "90d"
	// AttributionWindowLTV Unbounded lookback, from the identity's earliest
	// known touchpoint.
	AttributionWindowLTV = "ltv"

	AttributionModeClicksOnly     = "clicks_only"
	AttributionModeClicksAndViews = "clicks_and_views"

	// Allowed drift on configured position weights summing to 100.
	positionWeightsSumTolerance = 0.01
)

var attributionWindowLookback = map[string]time.Duration{
	AttributionWindow1D:  24 * time.Hour,
	AttributionWindow3D:  3 * 24 * time.Hour,
	AttributionWindow7D:  7 * 24 * time.Hour,
	AttributionWindow14D: 14 * 24 * time.Hour,
	AttributionWindow28D: 28 * 24 * time.Hour,
	AttributionWindow30D: 30 * 24 * time.Hour,
	AttributionWindow90D: 90 * 24 * time.Hour,
}

// GetWindowLookback Returns the lookback duration for a window name.
// unbounded is true only for the ltv window.
func GetWindowLookback(window string) (lookback time.Duration, unbounded bool, found bool) {
	if window == AttributionWindowLTV {
		return 0, true, true
	}
	lookback, ok := attributionWindowLookback[window]
	return lookback, false, ok
}

// PositionWeights First/middle/last percentages for the position_based
// model. Must sum to 100.
type PositionWeights struct {
	First  float64 `json:"first"`
	Middle float64 `json:"middle"`
	Last   float64 `json:"last"`
}

// AttributionSettings Per project attribution configuration. Fetched once at
// run start and treated as an immutable snapshot for the whole batch.
type AttributionSettings struct {
	ProjectID int64 `gorm:"primary_key:true" json:"project_id"`

	EnabledModels  []string `gorm:"-" json:"enabled_models"`
	EnabledWindows []string `gorm:"-" json:"enabled_windows"`

	AttributionMode        string          `json:"attribution_mode"`
	TimeDecayHalfLifeHours float64         `json:"time_decay_half_life_hours"`
	PositionWeights        PositionWeights `gorm:"embedded;embedded_prefix:position_" json:"position_based_weights"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultAttributionSettings Settings applied to a project that never saved
// any: last click within 30 days, 7 day time decay half-life, 40/20/40
// position split.
func DefaultAttributionSettings(projectID int64) *AttributionSettings {
	return &AttributionSettings{
		ProjectID:              projectID,
		EnabledModels:          []string{AttributionModelLastTouch},
		EnabledWindows:         []string{AttributionWindow30D},
		AttributionMode:        AttributionModeClicksOnly,
		TimeDecayHalfLifeHours: 168,
		PositionWeights:        PositionWeights{First: 40, Middle: 20, Last: 40},
	}
}

// Validate Checks the settings invariants. A failure here aborts the
// project's run before any result row is written.
func (s *AttributionSettings) Validate() error {
	if len(s.EnabledModels) == 0 {
		return &ConfigError{Reason: "no attribution models enabled"}
	}
	seenModels := make([]string, 0, len(s.EnabledModels))
	for _, model := range s.EnabledModels {
		if _, exists := creditFuncByModel[model]; !exists {
			return &ConfigError{Reason: fmt.Sprintf("unknown attribution model %s", model)}
		}
		// Duplicates would emit duplicate result rows per touchpoint.
		if U.StringIn(seenModels, model) {
			return &ConfigError{Reason: fmt.Sprintf("duplicate attribution model %s", model)}
		}
		seenModels = append(seenModels, model)
	}

	if len(s.EnabledWindows) == 0 {
		return &ConfigError{Reason: "no attribution windows enabled"}
	}
	seenWindows := make([]string, 0, len(s.EnabledWindows))
	for _, window := range s.EnabledWindows {
		if _, _, found := GetWindowLookback(window); !found {
			return &ConfigError{Reason: fmt.Sprintf("unknown attribution window %s", window)}
		}
		if U.StringIn(seenWindows, window) {
			return &ConfigError{Reason: fmt.Sprintf("duplicate attribution window %s", window)}
		}
		seenWindows = append(seenWindows, window)
	}

	if s.AttributionMode != AttributionModeClicksOnly &&
		s.AttributionMode != AttributionModeClicksAndViews {
		return &ConfigError{Reason: fmt.Sprintf("unknown attribution mode %s", s.AttributionMode)}
	}

	if s.TimeDecayHalfLifeHours <= 0 {
		return &ConfigError{Reason: "time decay half-life must be positive"}
	}

	weights := s.PositionWeights
	if weights.First < 0 || weights.Middle < 0 || weights.Last < 0 {
		return &ConfigError{Reason: "position weights must be non-negative"}
	}
	sum := weights.First + weights.Middle + weights.Last
	if math.Abs(sum-100) > positionWeightsSumTolerance {
		return &ConfigError{Reason: fmt.Sprintf("position weights sum to %.2f, expected 100", sum)}
	}

	return nil
}
