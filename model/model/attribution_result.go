package model

import (
	"math"
	"time"
)

// AttributionResult One attributed touchpoint of one conversion under one
// (model, window) pair. Unique per (project, conversion, touchpoint, model,
// window); reprocessing a conversion replaces all of its rows atomically.
//
// Channel, platform and the conversion time are denormalized onto the row so
// rollups aggregate from result rows alone.
type AttributionResult struct {
	ProjectID    int64  `json:"project_id"`
	ConversionID string `json:"conversion_id"`
	TouchpointID string `json:"touchpoint_id"`
	Model        string `json:"model"`
	Window       string `json:"window"`

	// Credit 0.0 - 1.0, six decimal precision. Credits of one
	// (conversion, model, window) journey sum to exactly 1.0.
	Credit                 float64 `json:"credit"`
	AttributedRevenueCents int64   `json:"attributed_revenue_cents"`

	// 1-based index in the journey.
	TouchpointPosition int `json:"touchpoint_position"`
	TotalTouchpoints   int `json:"total_touchpoints"`

	Channel     string    `json:"channel"`
	Platform    string    `json:"platform"`
	ConvertedAt time.Time `json:"converted_at"`

	CalculatedAt time.Time `json:"calculated_at"`
}

// AllocateRevenueCents Splits the conversion revenue across a rounded credit
// vector in integer cents. The rounding remainder goes to the largest credit
// (latest on ties) so the allocation always sums to the conversion revenue
// exactly - no leakage, no double counting.
func AllocateRevenueCents(credits []float64, revenueCents int64) []int64 {
	if len(credits) == 0 {
		return nil
	}

	allocated := make([]int64, len(credits))
	var allocatedSum int64
	for i, credit := range credits {
		allocated[i] = int64(math.Round(credit * float64(revenueCents)))
		allocatedSum += allocated[i]
	}

	allocated[indexOfLargestCredit(credits)] += revenueCents - allocatedSum
	return allocated
}
