package affinity

// Scoring constants. K is the half-saturation point of the normalization
// curve: at raw=K the interest score is 0.5, at raw=10*K it is ~0.91. Both K
// and the half-life are shared across every subject so scores stay comparable
// between rows.
const (
	defaultHalfLifeDays = 7.0
	defaultKFactor      = 100.0

	// Rows whose interest score decays under this are removed by the
	// retention sweep and recreated on the next qualifying event.
	defaultGCThreshold = 0.05
)

// Canonical decision thresholds. Earlier iterations of the rule tables
// drifted between 0.1/0.3/0.5 boundaries; these two are the single source of
// truth now.
const (
	ScoreThresholdHot  = 0.5
	ScoreThresholdWarm = 0.1
)

// PersonaHighFrequencyTrader is the cohort label that biases a hot score
// toward an execution-type prediction instead of a research-type one.
const PersonaHighFrequencyTrader = "High-Frequency Traders"

// interestedPageSize caps the audience query.
const interestedPageSize = 50

type Config struct {
	HalfLifeDays float64
	KFactor      float64
	GCThreshold  float64
}

func DefaultConfig() Config {
	return Config{
		HalfLifeDays: defaultHalfLifeDays,
		KFactor:      defaultKFactor,
		GCThreshold:  defaultGCThreshold,
	}
}

// normalized fills zero fields with defaults so a partially built Config
// cannot divide by zero in the scoring math.
func (c Config) normalized() Config {
	if c.HalfLifeDays <= 0 {
		c.HalfLifeDays = defaultHalfLifeDays
	}
	if c.KFactor <= 0 {
		c.KFactor = defaultKFactor
	}
	if c.GCThreshold <= 0 {
		c.GCThreshold = defaultGCThreshold
	}
	return c
}
