package model

import (
	"sort"
	"time"

	"github.com/jinzhu/now"
)

// ChannelSummary Per day/model/window/channel/platform rollup of attribution
// results. Derived data, fully recomputable from result rows - a cache, not
// a source of truth. Spend comes from ad platform syncs upstream.
type ChannelSummary struct {
	ProjectID int64     `gorm:"primary_key:true" json:"project_id"`
	Date      time.Time `gorm:"primary_key:true" json:"date"`
	Model     string    `gorm:"primary_key:true" json:"model"`
	Window    string    `gorm:"primary_key:true" json:"window"`
	Channel   string    `gorm:"primary_key:true" json:"channel"`
	Platform  string    `gorm:"primary_key:true" json:"platform"`

	Touchpoints  int64 `json:"touchpoints"`
	Conversions  int64 `json:"conversions"`
	RevenueCents int64 `json:"revenue_cents"`
	SpendCents   int64 `json:"spend_cents"`

	// Nil when the denominator is zero or unknown, never a division error.
	ROAS           *float64 `json:"roas"`
	CPACents       *float64 `json:"cpa_cents"`
	ConversionRate *float64 `json:"conversion_rate"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChannelSummaryKey Grouping key of one rollup row.
type ChannelSummaryKey struct {
	Date     time.Time
	Model    string
	Window   string
	Channel  string
	Platform string
}

// ChannelSummaryDelta Additive contribution of one result batch to a rollup
// row.
type ChannelSummaryDelta struct {
	Key          ChannelSummaryKey
	Touchpoints  int64
	Conversions  int64
	RevenueCents int64
}

// SummaryDateZ Day bucket of a conversion time, UTC midnight.
func SummaryDateZ(t time.Time) time.Time {
	return now.New(t.UTC()).BeginningOfDay()
}

// AggregateResults Groups result rows by (conversion day, model, window,
// channel, platform). Touchpoint counts are distinct touchpoint ids carrying
// non-zero credit, conversion counts are distinct conversion ids. Safe to
// feed any batch of rows, including a full rebuild from scratch. Output
// order is deterministic.
func AggregateResults(results []AttributionResult) []ChannelSummaryDelta {
	type group struct {
		touchpointIDs map[string]bool
		conversionIDs map[string]bool
		revenueCents  int64
	}

	groups := make(map[ChannelSummaryKey]*group)
	for i := range results {
		result := &results[i]
		key := ChannelSummaryKey{
			Date:     SummaryDateZ(result.ConvertedAt),
			Model:    result.Model,
			Window:   result.Window,
			Channel:  result.Channel,
			Platform: result.Platform,
		}

		entry, exists := groups[key]
		if !exists {
			entry = &group{
				touchpointIDs: make(map[string]bool),
				conversionIDs: make(map[string]bool),
			}
			groups[key] = entry
		}

		if result.Credit > 0 {
			entry.touchpointIDs[result.TouchpointID] = true
		}
		entry.conversionIDs[result.ConversionID] = true
		entry.revenueCents += result.AttributedRevenueCents
	}

	deltas := make([]ChannelSummaryDelta, 0, len(groups))
	for key, entry := range groups {
		deltas = append(deltas, ChannelSummaryDelta{
			Key:          key,
			Touchpoints:  int64(len(entry.touchpointIDs)),
			Conversions:  int64(len(entry.conversionIDs)),
			RevenueCents: entry.revenueCents,
		})
	}

	sort.Slice(deltas, func(i, j int) bool {
		a, b := deltas[i].Key, deltas[j].Key
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		if a.Window != b.Window {
			return a.Window < b.Window
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.Platform < b.Platform
	})

	return deltas
}

// ComputeDerivedMetrics Recomputes roas/cpa/conversion-rate on a summary
// after its counters changed. Zero denominators yield nil metrics.
func (summary *ChannelSummary) ComputeDerivedMetrics() {
	summary.ROAS = nil
	summary.CPACents = nil
	summary.ConversionRate = nil

	if summary.SpendCents > 0 {
		roas := float64(summary.RevenueCents) / float64(summary.SpendCents)
		summary.ROAS = &roas

		if summary.Conversions > 0 {
			cpa := float64(summary.SpendCents) / float64(summary.Conversions)
			summary.CPACents = &cpa
		}
	}

	if summary.Touchpoints > 0 {
		rate := float64(summary.Conversions) / float64(summary.Touchpoints)
		summary.ConversionRate = &rate
	}
}
