package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func journeyIDs(journey []Touchpoint) []string {
	ids := make([]string, 0, len(journey))
	for _, touchpoint := range journey {
		ids = append(ids, touchpoint.ID)
	}
	return ids
}

func TestBuildJourneysWindowFiltering(t *testing.T) {
	settings := testSettings()
	settings.EnabledWindows = []string{AttributionWindow7D, AttributionWindow14D}

	// One touchpoint 10 days out, one 2 days out.
	candidates := []Touchpoint{
		{ID: "tp_old", Channel: "facebook", Type: TouchpointTypeClick,
			OccurredAt: testConvertedAt.Add(-10 * 24 * time.Hour)},
		{ID: "tp_new", Channel: "google", Type: TouchpointTypeClick,
			OccurredAt: testConvertedAt.Add(-2 * 24 * time.Hour)},
	}

	journeys := BuildJourneys(testConversion(10000), candidates, settings)

	assert.Equal(t, []string{"tp_new"}, journeyIDs(journeys[AttributionWindow7D]))
	assert.Equal(t, []string{"tp_old", "tp_new"}, journeyIDs(journeys[AttributionWindow14D]))
}

func TestBuildJourneysClicksOnlyDropsViews(t *testing.T) {
	settings := testSettings()
	settings.AttributionMode = AttributionModeClicksOnly

	candidates := []Touchpoint{
		{ID: "tp_view", Type: TouchpointTypeView,
			OccurredAt: testConvertedAt.Add(-2 * time.Hour)},
		{ID: "tp_click", Type: TouchpointTypeClick,
			OccurredAt: testConvertedAt.Add(-time.Hour)},
	}

	journeys := BuildJourneys(testConversion(10000), candidates, settings)
	assert.Equal(t, []string{"tp_click"}, journeyIDs(journeys[AttributionWindow7D]))

	settings.AttributionMode = AttributionModeClicksAndViews
	journeys = BuildJourneys(testConversion(10000), candidates, settings)
	assert.Equal(t, []string{"tp_view", "tp_click"}, journeyIDs(journeys[AttributionWindow7D]))
}

func TestBuildJourneysDropsFutureTouchpoints(t *testing.T) {
	candidates := []Touchpoint{
		{ID: "tp_before", Type: TouchpointTypeClick,
			OccurredAt: testConvertedAt.Add(-time.Hour)},
		{ID: "tp_after", Type: TouchpointTypeClick,
			OccurredAt: testConvertedAt.Add(time.Minute)},
	}

	journeys := BuildJourneys(testConversion(10000), candidates, testSettings())
	assert.Equal(t, []string{"tp_before"}, journeyIDs(journeys[AttributionWindow7D]))
}

func TestBuildJourneysOrderingAndTieBreak(t *testing.T) {
	sameInstant := testConvertedAt.Add(-3 * time.Hour)
	candidates := []Touchpoint{
		{ID: "tp_b", Type: TouchpointTypeClick, OccurredAt: sameInstant},
		{ID: "tp_c", Type: TouchpointTypeClick,
			OccurredAt: testConvertedAt.Add(-time.Hour)},
		{ID: "tp_a", Type: TouchpointTypeClick, OccurredAt: sameInstant},
	}

	journeys := BuildJourneys(testConversion(10000), candidates, testSettings())
	// Ascending time, id breaks the tie.
	assert.Equal(t, []string{"tp_a", "tp_b", "tp_c"}, journeyIDs(journeys[AttributionWindow7D]))
}

func TestBuildJourneysLTVIsUnbounded(t *testing.T) {
	settings := testSettings()
	settings.EnabledWindows = []string{AttributionWindow90D, AttributionWindowLTV}

	candidates := []Touchpoint{
		{ID: "tp_ancient", Type: TouchpointTypeClick,
			OccurredAt: testConvertedAt.Add(-2 * 365 * 24 * time.Hour)},
		{ID: "tp_recent", Type: TouchpointTypeClick,
			OccurredAt: testConvertedAt.Add(-time.Hour)},
	}

	journeys := BuildJourneys(testConversion(10000), candidates, settings)
	assert.Equal(t, []string{"tp_recent"}, journeyIDs(journeys[AttributionWindow90D]))
	assert.Equal(t, []string{"tp_ancient", "tp_recent"}, journeyIDs(journeys[AttributionWindowLTV]))
}

func TestBuildJourneysEmptyCandidates(t *testing.T) {
	journeys := BuildJourneys(testConversion(10000), nil, testSettings())
	assert.Len(t, journeys, 1)
	assert.Empty(t, journeys[AttributionWindow7D])
}
