package model

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// CalculateAttribution Computes result rows for one conversion across every
// enabled (window, model) pair. Pure: persistence of the returned rows is
// the caller's job (atomic replace per conversion at the store).
//
// A malformed conversion returns a ValidationError, bad settings a
// ConfigError; both leave the result empty. A NumericError inside one model
// only skips that (model, window) pair - sibling models still complete.
// Empty window journeys emit no rows at all.
func CalculateAttribution(conversion *Conversion, candidates []Touchpoint,
	settings *AttributionSettings, calculatedAt time.Time) ([]AttributionResult, error) {

	if err := conversion.Validate(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	journeys := BuildJourneys(conversion, candidates, settings)

	results := make([]AttributionResult, 0,
		len(settings.EnabledWindows)*len(settings.EnabledModels)*len(candidates))

	for _, window := range settings.EnabledWindows {
		journey := journeys[window]
		if len(journey) == 0 {
			continue
		}

		for _, modelName := range settings.EnabledModels {
			creditFunc, found := GetCreditFunc(modelName)
			if !found {
				// Validate covers this already; belt for direct callers.
				continue
			}

			credits, err := creditFunc(journey, conversion, settings)
			if err != nil {
				log.WithFields(log.Fields{
					"project_id":    conversion.ProjectID,
					"conversion_id": conversion.ID,
					"model":         modelName,
					"window":        window,
				}).WithError(err).Error("Attribution model computation failed. Skipped model for conversion.")
				continue
			}

			credits = RoundCreditsToSix(credits)
			revenue := AllocateRevenueCents(credits, conversion.RevenueCents)

			for i := range journey {
				results = append(results, AttributionResult{
					ProjectID:              conversion.ProjectID,
					ConversionID:           conversion.ID,
					TouchpointID:           journey[i].ID,
					Model:                  modelName,
					Window:                 window,
					Credit:                 credits[i],
					AttributedRevenueCents: revenue[i],
					TouchpointPosition:     i + 1,
					TotalTouchpoints:       len(journey),
					Channel:                journey[i].Channel,
					Platform:               journey[i].Platform,
					ConvertedAt:            conversion.ConvertedAt,
					CalculatedAt:           calculatedAt,
				})
			}
		}
	}

	return results, nil
}
