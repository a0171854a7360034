package model

import (
	"math"
	"strings"

	U "revtrace/util"
)

// CreditFunc Maps a non-empty, time ordered journey to a credit vector of
// the same length summing to 1.0. Pure and deterministic; all inputs are
// value parameters, no global state.
type CreditFunc func(journey []Touchpoint, conversion *Conversion,
	settings *AttributionSettings) ([]float64, error)

// creditFuncByModel Closed dispatch table, model name -> credit function.
// Keeps the model set exhaustively testable, no reflection.
var creditFuncByModel = map[string]CreditFunc{
	AttributionModelFirstTouch:    firstTouchCredit,
	AttributionModelLastTouch:     lastTouchCredit,
	AttributionModelLastNonDirect: lastNonDirectCredit,
	AttributionModelLinear:        linearCredit,
	AttributionModelTimeDecay:     timeDecayCredit,
	AttributionModelPositionBased: positionBasedCredit,
	AttributionModelDataDriven:    dataDrivenCredit,
}

// GetCreditFunc Returns the credit function for a model name.
func GetCreditFunc(model string) (CreditFunc, bool) {
	creditFunc, found := creditFuncByModel[model]
	return creditFunc, found
}

// AttributionModelNames All known model names, for validation and tests.
func AttributionModelNames() []string {
	names := make([]string, 0, len(creditFuncByModel))
	for name := range creditFuncByModel {
		names = append(names, name)
	}
	return names
}

func firstTouchCredit(journey []Touchpoint, conversion *Conversion,
	settings *AttributionSettings) ([]float64, error) {

	credits := make([]float64, len(journey))
	credits[0] = 1.0
	return credits, nil
}

func lastTouchCredit(journey []Touchpoint, conversion *Conversion,
	settings *AttributionSettings) ([]float64, error) {

	credits := make([]float64, len(journey))
	credits[len(credits)-1] = 1.0
	return credits, nil
}

// lastNonDirectCredit Full credit to the last touchpoint that did not come
// in direct. A journey of only direct touchpoints falls back to plain
// last touch.
func lastNonDirectCredit(journey []Touchpoint, conversion *Conversion,
	settings *AttributionSettings) ([]float64, error) {

	credits := make([]float64, len(journey))
	for i := len(journey) - 1; i >= 0; i-- {
		if !strings.EqualFold(journey[i].Channel, ChannelDirect) {
			credits[i] = 1.0
			return credits, nil
		}
	}

	credits[len(credits)-1] = 1.0
	return credits, nil
}

func linearCredit(journey []Touchpoint, conversion *Conversion,
	settings *AttributionSettings) ([]float64, error) {

	credits := make([]float64, len(journey))
	share := 1.0 / float64(len(journey))
	for i := range credits {
		credits[i] = share
	}
	return credits, nil
}

// timeDecayCredit Weights touchpoints by 2^(-ageHours/halfLife) and
// normalizes. The max exponent is subtracted before exponentiating so very
// old touchpoints cannot underflow the weight sum to zero; the most recent
// touchpoint always carries weight 1 pre-normalization.
func timeDecayCredit(journey []Touchpoint, conversion *Conversion,
	settings *AttributionSettings) ([]float64, error) {

	halfLife := settings.TimeDecayHalfLifeHours
	if halfLife <= 0 {
		return nil, &NumericError{Model: AttributionModelTimeDecay,
			Reason: "non-positive half-life"}
	}

	exponents := make([]float64, len(journey))
	maxExponent := math.Inf(-1)
	for i, touchpoint := range journey {
		ageHours := U.HoursBetween(touchpoint.OccurredAt, conversion.ConvertedAt)
		// Journey filtering guarantees no future touchpoints, but clamp anyway.
		if ageHours < 0 {
			ageHours = 0
		}
		exponents[i] = -ageHours / halfLife
		if exponents[i] > maxExponent {
			maxExponent = exponents[i]
		}
	}

	credits := make([]float64, len(journey))
	totalWeight := 0.0
	for i := range exponents {
		weight := math.Pow(2, exponents[i]-maxExponent)
		credits[i] = weight
		totalWeight += weight
	}
	if totalWeight <= 0 || math.IsNaN(totalWeight) || math.IsInf(totalWeight, 0) {
		return nil, &NumericError{Model: AttributionModelTimeDecay,
			Reason: "degenerate weight sum"}
	}

	for i := range credits {
		credits[i] = credits[i] / totalWeight
	}
	return credits, nil
}

// positionBasedCredit Configured first/last percentages on the edges, the
// middle percentage split evenly across interior touchpoints. A single
// touchpoint takes everything; with two, the middle share is dropped and the
// first/last weights are renormalized between them.
func positionBasedCredit(journey []Touchpoint, conversion *Conversion,
	settings *AttributionSettings) ([]float64, error) {

	weights := settings.PositionWeights
	credits := make([]float64, len(journey))

	switch len(journey) {
	case 1:
		credits[0] = 1.0

	case 2:
		edgeSum := weights.First + weights.Last
		if edgeSum <= 0 {
			credits[0] = 0.5
			credits[1] = 0.5
			break
		}
		credits[0] = weights.First / edgeSum
		credits[1] = weights.Last / edgeSum

	default:
		interior := len(journey) - 2
		credits[0] = weights.First / 100
		credits[len(credits)-1] = weights.Last / 100
		middleShare := weights.Middle / 100 / float64(interior)
		for i := 1; i < len(credits)-1; i++ {
			credits[i] = middleShare
		}
	}

	return credits, nil
}

// dataDrivenCredit Deterministic approximation of data-driven attribution:
// an equal blend of linear and time decay. This is NOT a Shapley or Markov
// removal-effect model - no conversion-lift data source exists yet to fit
// one. Replace the blend when a real lift model lands; consumers should
// treat data_driven output as heuristic until then.
func dataDrivenCredit(journey []Touchpoint, conversion *Conversion,
	settings *AttributionSettings) ([]float64, error) {

	linear, err := linearCredit(journey, conversion, settings)
	if err != nil {
		return nil, err
	}
	decay, err := timeDecayCredit(journey, conversion, settings)
	if err != nil {
		return nil, err
	}

	credits := make([]float64, len(journey))
	for i := range credits {
		credits[i] = 0.5*linear[i] + 0.5*decay[i]
	}
	return credits, nil
}

const creditMicroUnits = 1e6

// RoundCreditsToSix Rounds a credit vector to six decimal places while
// keeping the sum at exactly 1.0. Rounding is done in integer millionths and
// the residual is folded into the largest credit; on ties the latest
// touchpoint takes it, which also pushes split-remainders to the end of the
// journey.
func RoundCreditsToSix(credits []float64) []float64 {
	if len(credits) == 0 {
		return credits
	}

	micro := make([]int64, len(credits))
	var microSum int64
	for i, credit := range credits {
		micro[i] = int64(math.Round(credit * creditMicroUnits))
		microSum += micro[i]
	}

	residual := int64(creditMicroUnits) - microSum
	micro[indexOfLargestCredit(credits)] += residual

	rounded := make([]float64, len(credits))
	for i := range micro {
		rounded[i] = float64(micro[i]) / creditMicroUnits
	}
	return rounded
}

// indexOfLargestCredit Latest touchpoint wins ties.
func indexOfLargestCredit(credits []float64) int {
	largest := 0
	for i := range credits {
		if credits[i] >= credits[largest] {
			largest = i
		}
	}
	return largest
}
