package affinity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trieu/leo-activation/domain"
	"github.com/trieu/leo-activation/pkg/logger"
)

// ---- Repository interfaces ----

type TenantRepository interface {
	ResolveTenantID(ctx context.Context, tenantName string) (uuid.UUID, error)
}

type ProfileRepository interface {
	// ResolveSegmentID scans profiles whose denormalized membership list
	// contains the named segment. O(profiles) worst case; run once per batch.
	ResolveSegmentID(ctx context.Context, tenantID uuid.UUID, segmentName string) (string, error)
	GetSegmentNames(ctx context.Context, tenantID uuid.UUID, profileID string) ([]string, error)
}

type EventRepository interface {
	AggregateWindow(ctx context.Context, tenantID uuid.UUID, segmentID string, start, end time.Time) ([]domain.AggregatedInterest, error)
	SaveEvent(ctx context.Context, event *domain.BehavioralEvent) error
}

type AffinityRepository interface {
	Get(ctx context.Context, key domain.AffinityKey) (*domain.AffinityRecord, error)
	UpsertScore(ctx context.Context, key domain.AffinityKey, rawScore, interestScore float64, lastInteractionAt time.Time) error
	UpsertDecision(ctx context.Context, key domain.AffinityKey, prediction domain.Prediction, decision domain.Decision) error
	ScanByProfile(ctx context.Context, tenantID uuid.UUID, profileID string) ([]domain.AffinityRecord, error)
	ScanByMinScore(ctx context.Context, tenantID uuid.UUID, minScore float64, limit int) ([]domain.AffinityRecord, error)
	FindInterested(ctx context.Context, tenantID uuid.UUID, subjectID string, minScore float64, limit int) ([]domain.InterestedProfile, error)
	DeleteBelow(ctx context.Context, threshold float64) (int64, error)

	// Transaction runs fn against a repository bound to a single database
	// transaction. The whole batch commits together so a mid-run failure
	// leaves the store at its pre-run state.
	Transaction(ctx context.Context, fn func(AffinityRepository) error) error
}

// RunLock serializes batch runs per tenant. Concurrent invocations can lose
// an update through a read-decay-write race.
type RunLock interface {
	Acquire(ctx context.Context, tenantID uuid.UUID) (bool, error)
	Release(ctx context.Context, tenantID uuid.UUID) error
}

// ---- Usecase / Service ----

type Service struct {
	tenantRepo   TenantRepository
	profileRepo  ProfileRepository
	eventRepo    EventRepository
	affinityRepo AffinityRepository
	resolver     *Resolver
	runLock      RunLock
	cfg          Config
}

func NewService(
	tenantRepo TenantRepository,
	profileRepo ProfileRepository,
	eventRepo EventRepository,
	affinityRepo AffinityRepository,
	cache IdentityCache,
	runLock RunLock,
	cfg Config,
) *Service {
	return &Service{
		tenantRepo:   tenantRepo,
		profileRepo:  profileRepo,
		eventRepo:    eventRepo,
		affinityRepo: affinityRepo,
		resolver:     NewResolver(tenantRepo, profileRepo, cache),
		runLock:      runLock,
		cfg:          cfg.normalized(),
	}
}

// RunBatchUpdate is the batch write path: resolve identities once, aggregate
// events in [windowStart, windowEnd), fold each (profile, subject) aggregate
// into its stored raw score with time decay, then derive and persist the
// decision columns. Returns the number of rows touched. The whole persistence
// phase runs in one transaction; on failure it is rolled back and the same
// window is safe to re-run.
func (s *Service) RunBatchUpdate(ctx context.Context, tenantName, segmentName string, windowStart, windowEnd time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	ids, err := s.resolver.Resolve(ctx, tenantName, segmentName)
	if err != nil {
		return 0, err
	}

	if s.runLock != nil {
		acquired, err := s.runLock.Acquire(ctx, ids.TenantID)
		if err != nil {
			return 0, fmt.Errorf("acquire batch lock: %w", err)
		}
		if !acquired {
			return 0, domain.ErrBatchInProgress
		}
		defer func() {
			if err := s.runLock.Release(context.WithoutCancel(ctx), ids.TenantID); err != nil {
				logger.Warn("failed to release batch lock", "tenant_id", ids.TenantID, "error", err)
			}
		}()
	}

	aggregates, err := s.eventRepo.AggregateWindow(ctx, ids.TenantID, ids.SegmentID, windowStart, windowEnd)
	if err != nil {
		BatchFailuresTotal.WithLabelValues("aggregation").Inc()
		return 0, &domain.AggregationError{Err: err}
	}

	tid := TraceIDFromContext(ctx)
	logger.Info("affinity_batch_window",
		"trace_id", tid,
		"tenant", tenantName,
		"segment", segmentName,
		"window_start", windowStart,
		"window_end", windowEnd,
		"pairs", len(aggregates),
	)

	// No qualifying events is a successful no-op, not an error.
	if len(aggregates) == 0 {
		return 0, nil
	}

	touched := 0
	personaCache := make(map[string][]string)

	err = s.affinityRepo.Transaction(ctx, func(repo AffinityRepository) error {
		for _, pair := range aggregates {
			key := domain.DefaultAffinityKey(ids.TenantID, pair.ProfileID, pair.SubjectID)

			prior, err := repo.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("load affinity %s/%s: %w", pair.ProfileID, pair.SubjectID, err)
			}

			var priorRaw float64
			var priorTime time.Time
			if prior != nil {
				// Replay guard: an aggregate whose newest event does not
				// advance past the stored interaction time has already been
				// folded in. Re-applying it would double-count.
				if !pair.LastEventTime.After(prior.LastInteractionAt) {
					continue
				}
				priorRaw = prior.RawScore
				priorTime = prior.LastInteractionAt
			} else {
				priorTime = pair.LastEventTime
			}

			newRaw := NewRawScore(priorRaw, priorTime, pair.IncomingScore, pair.LastEventTime, s.cfg.HalfLifeDays)
			interest := Normalize(newRaw, s.cfg.KFactor)

			if err := repo.UpsertScore(ctx, key, newRaw, interest, pair.LastEventTime); err != nil {
				return fmt.Errorf("upsert score %s/%s: %w", pair.ProfileID, pair.SubjectID, err)
			}

			personas, ok := personaCache[pair.ProfileID]
			if !ok {
				personas, err = s.profileRepo.GetSegmentNames(ctx, ids.TenantID, pair.ProfileID)
				if err != nil {
					return fmt.Errorf("load personas for %s: %w", pair.ProfileID, err)
				}
				personaCache[pair.ProfileID] = personas
			}

			prediction, decision, err := RunDecisionPipeline(interest, personas)
			if err != nil {
				return err
			}

			if err := repo.UpsertDecision(ctx, key, prediction, decision); err != nil {
				return fmt.Errorf("upsert decision %s/%s: %w", pair.ProfileID, pair.SubjectID, err)
			}

			touched++
		}
		return nil
	})
	if err != nil {
		BatchFailuresTotal.WithLabelValues("persistence").Inc()
		return 0, &domain.BatchError{Err: err}
	}

	BatchRowsTouchedTotal.Add(float64(touched))
	logger.Info("affinity_batch_complete", "trace_id", tid, "tenant", tenantName, "rows", touched)

	return touched, nil
}

// GetDecisions is the read path for NBA: decisions per subject derived live
// from currently stored scores. Never writes; ignores the persisted decision
// columns, which exist only as an audit artifact of the last batch run.
func (s *Service) GetDecisions(ctx context.Context, tenantID uuid.UUID, profileID string) (map[string]domain.Decision, error) {
	records, personas, err := s.loadProfileState(ctx, tenantID, profileID)
	if err != nil {
		return nil, err
	}

	decisions := make(map[string]domain.Decision, len(records))
	for _, rec := range records {
		_, decision, err := RunDecisionPipeline(rec.InterestScore, personas)
		if err != nil {
			return nil, err
		}
		decisions[rec.SubjectID] = decision
	}

	return decisions, nil
}

// GetPredictions is the read path for NLA, same contract as GetDecisions.
func (s *Service) GetPredictions(ctx context.Context, tenantID uuid.UUID, profileID string) (map[string]domain.Prediction, error) {
	records, personas, err := s.loadProfileState(ctx, tenantID, profileID)
	if err != nil {
		return nil, err
	}

	predictions := make(map[string]domain.Prediction, len(records))
	for _, rec := range records {
		prediction, err := PredictUserEvent(rec.InterestScore, personas)
		if err != nil {
			return nil, err
		}
		predictions[rec.SubjectID] = prediction
	}

	return predictions, nil
}

func (s *Service) loadProfileState(ctx context.Context, tenantID uuid.UUID, profileID string) ([]domain.AffinityRecord, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("context error: %w", err)
	}

	records, err := s.affinityRepo.ScanByProfile(ctx, tenantID, profileID)
	if err != nil {
		return nil, nil, fmt.Errorf("scan affinity for profile %s: %w", profileID, err)
	}

	personas, err := s.profileRepo.GetSegmentNames(ctx, tenantID, profileID)
	if err != nil {
		return nil, nil, fmt.Errorf("load personas for %s: %w", profileID, err)
	}

	return records, personas, nil
}

// FindInterested is the audience query: profiles interested in a subject at
// or above minScore, ordered by interest descending, capped at one page.
func (s *Service) FindInterested(ctx context.Context, tenantID uuid.UUID, subjectID string, minScore float64) ([]domain.InterestedProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	rows, err := s.affinityRepo.FindInterested(ctx, tenantID, subjectID, minScore, interestedPageSize)
	if err != nil {
		return nil, fmt.Errorf("audience query for %s: %w", subjectID, err)
	}

	return rows, nil
}

// GetProfileAffinities returns every stored affinity row for a profile,
// strongest first. This is the raw-score read; callers wanting decisions use
// GetDecisions instead.
func (s *Service) GetProfileAffinities(ctx context.Context, tenantID uuid.UUID, profileID string) ([]domain.AffinityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	records, err := s.affinityRepo.ScanByProfile(ctx, tenantID, profileID)
	if err != nil {
		return nil, fmt.Errorf("scan affinity for profile %s: %w", profileID, err)
	}

	return records, nil
}

// FindHotAffinities returns the tenant's strongest rows across all profiles
// and subjects, capped at one page.
func (s *Service) FindHotAffinities(ctx context.Context, tenantID uuid.UUID, minScore float64) ([]domain.AffinityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	records, err := s.affinityRepo.ScanByMinScore(ctx, tenantID, minScore, interestedPageSize)
	if err != nil {
		return nil, fmt.Errorf("scan affinity above %.2f: %w", minScore, err)
	}

	return records, nil
}

// ResolveTenant exposes identity resolution to the API layer, which works in
// display names while the store works in surrogate keys.
func (s *Service) ResolveTenant(ctx context.Context, tenantName string) (uuid.UUID, error) {
	return s.resolver.ResolveTenant(ctx, tenantName)
}

// TrackEvent appends one behavioral event. Events without a subject are
// accepted here (the tracker contract is open-ended) and filtered out later
// by aggregation.
func (s *Service) TrackEvent(ctx context.Context, tenantName string, event *domain.BehavioralEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	tenantID, err := s.resolver.ResolveTenant(ctx, tenantName)
	if err != nil {
		return err
	}
	event.TenantID = tenantID

	if err := s.eventRepo.SaveEvent(ctx, event); err != nil {
		return fmt.Errorf("save behavioral event: %w", err)
	}

	EventsIngestedTotal.WithLabelValues(event.EventType).Inc()
	if event.SubjectID() == "" {
		EventsWithoutSubjectTotal.Inc()
	}
	return nil
}
