package affinity

import (
	"fmt"
	"math"
	"slices"

	"github.com/trieu/leo-activation/domain"
)

// PredictUserEvent is the predictive engine (Next Likely Action): a total
// decision table over (interest score, persona set). Every score in [0, 1)
// maps to exactly one branch; anything outside that range is a defect and
// raised as a DecisionTableGapError rather than silently defaulted.
func PredictUserEvent(score float64, personas []string) (domain.Prediction, error) {
	if math.IsNaN(score) || score < 0 || score >= 1 {
		return domain.Prediction{}, &domain.DecisionTableGapError{
			Stage: "predictive",
			Value: fmt.Sprintf("score=%v", score),
		}
	}

	switch {
	case score >= ScoreThresholdHot:
		if slices.Contains(personas, PersonaHighFrequencyTrader) {
			// Frequent actors execute; extreme scores get a boost.
			probability := 0.90
			if score >= 0.9 {
				probability = 0.95
			}
			return domain.Prediction{Event: domain.EventOrderCreated, Probability: probability}, nil
		}
		// Passive profiles research before acting.
		return domain.Prediction{Event: domain.EventSubjectViewed, Probability: 0.85}, nil

	case score >= ScoreThresholdWarm:
		// Consideration zone: strong enough to monitor, not to act.
		return domain.Prediction{Event: domain.EventWatchlistAdded, Probability: 0.65}, nil

	default:
		// Noise. Likely to ignore whatever we show.
		return domain.Prediction{Event: domain.EventContentIgnored, Probability: 0.90}, nil
	}
}
