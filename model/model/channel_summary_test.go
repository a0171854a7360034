package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummaryDateZ(t *testing.T) {
	assert.Equal(t, time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC),
		SummaryDateZ(time.Date(2023, 6, 15, 23, 59, 59, 0, time.UTC)))

	// Non-UTC input buckets on the UTC day.
	ist := time.FixedZone("IST", 5*3600+1800)
	assert.Equal(t, time.Date(2023, 6, 14, 0, 0, 0, 0, time.UTC),
		SummaryDateZ(time.Date(2023, 6, 15, 4, 0, 0, 0, ist)))
}

func TestAggregateResultsGrouping(t *testing.T) {
	day := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	results := []AttributionResult{
		{ConversionID: "c1", TouchpointID: "tp1", Model: AttributionModelLinear,
			Window: AttributionWindow7D, Channel: "google", Platform: "google_ads",
			Credit: 0.5, AttributedRevenueCents: 5000, ConvertedAt: day.Add(10 * time.Hour)},
		{ConversionID: "c1", TouchpointID: "tp2", Model: AttributionModelLinear,
			Window: AttributionWindow7D, Channel: "google", Platform: "google_ads",
			Credit: 0.5, AttributedRevenueCents: 5000, ConvertedAt: day.Add(10 * time.Hour)},
		{ConversionID: "c2", TouchpointID: "tp1", Model: AttributionModelLinear,
			Window: AttributionWindow7D, Channel: "google", Platform: "google_ads",
			Credit: 1.0, AttributedRevenueCents: 2500, ConvertedAt: day.Add(20 * time.Hour)},
		{ConversionID: "c1", TouchpointID: "tp3", Model: AttributionModelLinear,
			Window: AttributionWindow7D, Channel: "facebook", Platform: "meta",
			Credit: 0.0, AttributedRevenueCents: 0, ConvertedAt: day.Add(10 * time.Hour)},
	}

	deltas := AggregateResults(results)
	assert.Len(t, deltas, 2)

	// Sorted output: facebook before google.
	facebook := deltas[0]
	assert.Equal(t, "facebook", facebook.Key.Channel)
	assert.Equal(t, day, facebook.Key.Date)
	// Zero-credit rows count the conversion but not the touchpoint.
	assert.Equal(t, int64(0), facebook.Touchpoints)
	assert.Equal(t, int64(1), facebook.Conversions)
	assert.Equal(t, int64(0), facebook.RevenueCents)

	google := deltas[1]
	assert.Equal(t, "google", google.Key.Channel)
	// tp1 appears in two conversions but counts once.
	assert.Equal(t, int64(2), google.Touchpoints)
	assert.Equal(t, int64(2), google.Conversions)
	assert.Equal(t, int64(12500), google.RevenueCents)
}

func TestAggregateResultsSplitsByDayModelWindow(t *testing.T) {
	base := AttributionResult{ConversionID: "c1", TouchpointID: "tp1",
		Channel: "google", Credit: 1.0, AttributedRevenueCents: 100}

	day1 := base
	day1.Model = AttributionModelLinear
	day1.Window = AttributionWindow7D
	day1.ConvertedAt = time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC)

	day2 := day1
	day2.ConvertedAt = time.Date(2023, 6, 16, 10, 0, 0, 0, time.UTC)

	otherModel := day1
	otherModel.Model = AttributionModelFirstTouch

	otherWindow := day1
	otherWindow.Window = AttributionWindow30D

	deltas := AggregateResults([]AttributionResult{day1, day2, otherModel, otherWindow})
	assert.Len(t, deltas, 4)
}

func TestAggregateResultsEmpty(t *testing.T) {
	assert.Empty(t, AggregateResults(nil))
}

func TestComputeDerivedMetrics(t *testing.T) {
	summary := &ChannelSummary{
		Touchpoints:  10,
		Conversions:  2,
		RevenueCents: 30000,
		SpendCents:   10000,
	}
	summary.ComputeDerivedMetrics()

	assert.Equal(t, 3.0, *summary.ROAS)
	assert.Equal(t, 5000.0, *summary.CPACents)
	assert.Equal(t, 0.2, *summary.ConversionRate)
}

func TestComputeDerivedMetricsZeroDenominators(t *testing.T) {
	// No spend: roas and cpa stay nil, never a division error.
	summary := &ChannelSummary{Touchpoints: 5, Conversions: 1, RevenueCents: 1000}
	summary.ComputeDerivedMetrics()
	assert.Nil(t, summary.ROAS)
	assert.Nil(t, summary.CPACents)
	assert.Equal(t, 0.2, *summary.ConversionRate)

	// Spend but no conversions: roas computes, cpa stays nil.
	summary = &ChannelSummary{Touchpoints: 5, SpendCents: 2000, RevenueCents: 1000}
	summary.ComputeDerivedMetrics()
	assert.Equal(t, 0.5, *summary.ROAS)
	assert.Nil(t, summary.CPACents)
	assert.Equal(t, 0.0, *summary.ConversionRate)

	// Empty row: everything nil.
	summary = &ChannelSummary{}
	summary.ComputeDerivedMetrics()
	assert.Nil(t, summary.ROAS)
	assert.Nil(t, summary.CPACents)
	assert.Nil(t, summary.ConversionRate)
}
