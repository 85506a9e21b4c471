package affinity

import (
	"math"
	"time"
)

const secondsPerDay = 86400.0

// NewRawScore folds an incoming aggregate into a prior raw score: the prior
// value is halved once per half-life elapsed between the prior and incoming
// timestamps, then the incoming points are added. Negative elapsed time
// (clock skew, out-of-order events) is clamped to zero so stale events can
// never amplify a score. With no prior record pass prior=0: the decay factor
// is vacuously 1.
func NewRawScore(priorRaw float64, priorTime time.Time, incoming float64, incomingTime time.Time, halfLifeDays float64) float64 {
	elapsedDays := incomingTime.Sub(priorTime).Seconds() / secondsPerDay
	if elapsedDays < 0 {
		elapsedDays = 0
	}

	decayFactor := math.Pow(0.5, elapsedDays/halfLifeDays)

	return priorRaw*decayFactor + incoming
}

// DecayedRaw returns the prior raw score decayed to a reference instant with
// no new points. Used by read-time re-derivation and by tests; never grows.
func DecayedRaw(priorRaw float64, priorTime, at time.Time, halfLifeDays float64) float64 {
	return NewRawScore(priorRaw, priorTime, 0, at, halfLifeDays)
}

// Normalize maps an unbounded non-negative raw score into [0, 1) with
// diminishing returns: raw/(raw+K). Monotonically increasing in raw.
func Normalize(raw, kFactor float64) float64 {
	if raw <= 0 {
		return 0
	}
	return raw / (raw + kFactor)
}
