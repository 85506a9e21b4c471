package affinity

import (
	"fmt"

	"github.com/trieu/leo-activation/domain"
)

// RecommendSystemAction is the prescriptive engine (Next Best Action): an
// exhaustive table over the predictive engine's output domain. A predicted
// event with no matching branch is a defect, never a silent default.
func RecommendSystemAction(score float64, predicted domain.PredictedEvent) (domain.Decision, error) {
	switch predicted {
	case domain.EventOrderCreated:
		return domain.Decision{
			Action:     domain.ActionStrongBuyAlert,
			Channel:    domain.ChannelPushNotification,
			Confidence: 0.95,
			Reason:     "High intent detected. Nudge to execute order.",
		}, nil

	case domain.EventSubjectViewed:
		return domain.Decision{
			Action:     domain.ActionSendAnalystReport,
			Channel:    domain.ChannelEmailDigest,
			Confidence: 0.85,
			Reason:     "Profile is interested but needs validation. Send supporting report.",
		}, nil

	case domain.EventWatchlistAdded:
		return domain.Decision{
			Action:     domain.ActionWatchlistSuggestion,
			Channel:    domain.ChannelInAppBanner,
			Confidence: 0.70,
			Reason:     "Profile is in consideration phase. Suggest monitoring.",
		}, nil

	case domain.EventContentIgnored:
		return domain.Decision{
			Action:     domain.ActionWait,
			Channel:    domain.ChannelNone,
			Confidence: 0.0,
			Reason:     fmt.Sprintf("Score (%.2f) is too low for intervention.", score),
		}, nil

	default:
		return domain.Decision{}, &domain.DecisionTableGapError{
			Stage: "prescriptive",
			Value: string(predicted),
		}
	}
}

// RunDecisionPipeline chains prediction and prescription for one stored
// score. Both the batch writer and the live read path go through here so the
// two can never disagree on the rule tables.
func RunDecisionPipeline(score float64, personas []string) (domain.Prediction, domain.Decision, error) {
	prediction, err := PredictUserEvent(score, personas)
	if err != nil {
		return domain.Prediction{}, domain.Decision{}, err
	}

	decision, err := RecommendSystemAction(score, prediction.Event)
	if err != nil {
		return domain.Prediction{}, domain.Decision{}, err
	}

	return prediction, decision, nil
}
