package model

import (
	"sort"
)

// BuildJourneys Partitions the candidate touchpoints of one identity into a
// time ordered journey per enabled window.
//
// Candidates are expected to be scoped to the conversion's identity already
// (identity resolution happens upstream). Touchpoints after the conversion
// are dropped, views are dropped under clicks_only, the rest is bucketed by
// window lookback. Ordering is ascending occurred_at with touchpoint id as
// the tie break, so re-runs see identical positions.
//
// An empty candidate set yields an empty journey for every window. Not an
// error; the calculator skips emitting rows for those.
func BuildJourneys(conversion *Conversion, candidates []Touchpoint,
	settings *AttributionSettings) map[string][]Touchpoint {

	eligible := make([]Touchpoint, 0, len(candidates))
	for _, touchpoint := range candidates {
		if settings.AttributionMode == AttributionModeClicksOnly &&
			touchpoint.Type == TouchpointTypeView {
			continue
		}
		// No future touchpoints.
		if touchpoint.OccurredAt.After(conversion.ConvertedAt) {
			continue
		}
		eligible = append(eligible, touchpoint)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if !eligible[i].OccurredAt.Equal(eligible[j].OccurredAt) {
			return eligible[i].OccurredAt.Before(eligible[j].OccurredAt)
		}
		return eligible[i].ID < eligible[j].ID
	})

	journeys := make(map[string][]Touchpoint, len(settings.EnabledWindows))
	for _, window := range settings.EnabledWindows {
		lookback, unbounded, found := GetWindowLookback(window)
		if !found {
			continue
		}
		if unbounded {
			journey := make([]Touchpoint, len(eligible))
			copy(journey, eligible)
			journeys[window] = journey
			continue
		}

		windowStart := conversion.ConvertedAt.Add(-lookback)
		journey := make([]Touchpoint, 0, len(eligible))
		for _, touchpoint := range eligible {
			if touchpoint.OccurredAt.Before(windowStart) {
				continue
			}
			journey = append(journey, touchpoint)
		}
		journeys[window] = journey
	}

	return journeys
}
