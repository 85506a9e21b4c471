package domain

// PredictedEvent is the Next Likely Action (NLA): the event the profile is
// expected to perform next. Values match event_type names in the tracking
// stream so predictions can be validated against what actually happened.
type PredictedEvent string

const (
	EventOrderCreated   PredictedEvent = "order-created"
	EventSubjectViewed  PredictedEvent = "subject-viewed"
	EventWatchlistAdded PredictedEvent = "watchlist-added"
	EventContentIgnored PredictedEvent = "content-ignored"
)

// Action is the Next Best Action (NBA): the intervention the system should
// take in response to a prediction.
type Action string

const (
	ActionStrongBuyAlert      Action = "STRONG_BUY_ALERT"
	ActionSendAnalystReport   Action = "SEND_ANALYST_REPORT"
	ActionWatchlistSuggestion Action = "WATCHLIST_SUGGESTION"
	// ActionWait is an explicit wait state, not an error: the score is too
	// low to justify contacting the profile.
	ActionWait Action = "WAIT"
)

type Channel string

const (
	ChannelPushNotification Channel = "PUSH_NOTIFICATION"
	ChannelEmailDigest      Channel = "EMAIL_DIGEST"
	ChannelInAppBanner      Channel = "IN_APP_BANNER"
	ChannelNone             Channel = "NONE"
)

// Prediction is the predictive engine output for one subject.
type Prediction struct {
	Event       PredictedEvent `json:"predicted_event"`
	Probability float64        `json:"probability"`
}

// Decision is the prescriptive engine output for one subject.
type Decision struct {
	Action     Action  `json:"action"`
	Channel    Channel `json:"channel"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}
