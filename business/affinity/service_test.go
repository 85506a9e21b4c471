package affinity

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trieu/leo-activation/domain"
)

// ---- fakes ----

type fakeTenantRepo struct {
	tenants map[string]uuid.UUID
}

func (f *fakeTenantRepo) ResolveTenantID(_ context.Context, name string) (uuid.UUID, error) {
	if id, ok := f.tenants[name]; ok {
		return id, nil
	}
	return uuid.Nil, domain.ErrTenantNotFound
}

type fakeProfileRepo struct {
	segmentID string
	personas  map[string][]string
}

func (f *fakeProfileRepo) ResolveSegmentID(_ context.Context, _ uuid.UUID, _ string) (string, error) {
	if f.segmentID == "" {
		return "", domain.ErrSegmentNotFound
	}
	return f.segmentID, nil
}

func (f *fakeProfileRepo) GetSegmentNames(_ context.Context, _ uuid.UUID, profileID string) ([]string, error) {
	return f.personas[profileID], nil
}

type fakeEventRepo struct {
	aggregates []domain.AggregatedInterest
	err        error
	saved      []*domain.BehavioralEvent
}

func (f *fakeEventRepo) AggregateWindow(_ context.Context, _ uuid.UUID, _ string, _, _ time.Time) ([]domain.AggregatedInterest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.aggregates, nil
}

func (f *fakeEventRepo) SaveEvent(_ context.Context, event *domain.BehavioralEvent) error {
	f.saved = append(f.saved, event)
	return nil
}

type fakeAffinityRepo struct {
	records            map[domain.AffinityKey]domain.AffinityRecord
	failDecisionUpsert bool
}

func newFakeAffinityRepo() *fakeAffinityRepo {
	return &fakeAffinityRepo{records: make(map[domain.AffinityKey]domain.AffinityRecord)}
}

func (f *fakeAffinityRepo) Get(_ context.Context, key domain.AffinityKey) (*domain.AffinityRecord, error) {
	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeAffinityRepo) UpsertScore(_ context.Context, key domain.AffinityKey, rawScore, interestScore float64, lastInteractionAt time.Time) error {
	rec := f.records[key]
	rec.TenantID = key.TenantID
	rec.ProfileID = key.ProfileID
	rec.SubjectID = key.SubjectID
	rec.JourneyMapID = key.JourneyMapID
	rec.JourneyStageID = key.JourneyStageID
	rec.ModelID = key.ModelID
	rec.RawScore = rawScore
	rec.InterestScore = interestScore
	rec.LastInteractionAt = lastInteractionAt
	rec.UpdatedAt = time.Now()
	f.records[key] = rec
	return nil
}

func (f *fakeAffinityRepo) UpsertDecision(_ context.Context, key domain.AffinityKey, prediction domain.Prediction, decision domain.Decision) error {
	if f.failDecisionUpsert {
		return errors.New("simulated write failure")
	}
	rec := f.records[key]
	rec.PredictedUserEvent = string(prediction.Event)
	rec.PredictionProbability = prediction.Probability
	rec.NextBestAction = string(decision.Action)
	rec.NBAConfidence = decision.Confidence
	rec.UpdatedAt = time.Now()
	f.records[key] = rec
	return nil
}

func (f *fakeAffinityRepo) ScanByProfile(_ context.Context, tenantID uuid.UUID, profileID string) ([]domain.AffinityRecord, error) {
	var out []domain.AffinityRecord
	for _, rec := range f.records {
		if rec.TenantID == tenantID && rec.ProfileID == profileID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InterestScore > out[j].InterestScore })
	return out, nil
}

func (f *fakeAffinityRepo) ScanByMinScore(_ context.Context, tenantID uuid.UUID, minScore float64, limit int) ([]domain.AffinityRecord, error) {
	var out []domain.AffinityRecord
	for _, rec := range f.records {
		if rec.TenantID == tenantID && rec.InterestScore >= minScore {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InterestScore > out[j].InterestScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAffinityRepo) FindInterested(_ context.Context, tenantID uuid.UUID, subjectID string, minScore float64, limit int) ([]domain.InterestedProfile, error) {
	var out []domain.InterestedProfile
	for _, rec := range f.records {
		if rec.TenantID == tenantID && rec.SubjectID == subjectID && rec.InterestScore >= minScore {
			out = append(out, domain.InterestedProfile{
				ProfileID:     rec.ProfileID,
				InterestScore: rec.InterestScore,
				RawScore:      rec.RawScore,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InterestScore > out[j].InterestScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAffinityRepo) DeleteBelow(_ context.Context, threshold float64) (int64, error) {
	var deleted int64
	for key, rec := range f.records {
		if rec.InterestScore < threshold {
			delete(f.records, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeAffinityRepo) Transaction(_ context.Context, fn func(AffinityRepository) error) error {
	snapshot := make(map[domain.AffinityKey]domain.AffinityRecord, len(f.records))
	for k, v := range f.records {
		snapshot[k] = v
	}
	if err := fn(f); err != nil {
		f.records = snapshot
		return err
	}
	return nil
}

type fakeRunLock struct {
	held     bool
	acquires int
	releases int
}

func (f *fakeRunLock) Acquire(_ context.Context, _ uuid.UUID) (bool, error) {
	f.acquires++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeRunLock) Release(_ context.Context, _ uuid.UUID) error {
	f.releases++
	f.held = false
	return nil
}

// ---- fixtures ----

var (
	testTenantID = uuid.MustParse("7b2e1a8e-0f51-4c8a-9f63-16b0f1a6f001")
	windowStart  = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	windowEnd    = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
)

type serviceFixture struct {
	svc      *Service
	tenants  *fakeTenantRepo
	profiles *fakeProfileRepo
	events   *fakeEventRepo
	store    *fakeAffinityRepo
	lock     *fakeRunLock
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		tenants:  &fakeTenantRepo{tenants: map[string]uuid.UUID{"master": testTenantID}},
		profiles: &fakeProfileRepo{segmentID: "seg-1", personas: map[string][]string{}},
		events:   &fakeEventRepo{},
		store:    newFakeAffinityRepo(),
		lock:     &fakeRunLock{},
	}
	f.svc = NewService(f.tenants, f.profiles, f.events, f.store, nil, f.lock, DefaultConfig())
	return f
}

// ---- batch path ----

func TestRunBatchUpdate_CreatesScoredDecisions(t *testing.T) {
	f := newServiceFixture()
	lastEvent := windowEnd.Add(-time.Minute)
	f.events.aggregates = []domain.AggregatedInterest{
		{ProfileID: "p1", SubjectID: "AAPL", IncomingScore: 100, LastEventTime: lastEvent},
	}

	touched, err := f.svc.RunBatchUpdate(context.Background(), "master", "Active", windowStart, windowEnd)
	if err != nil {
		t.Fatal(err)
	}
	if touched != 1 {
		t.Fatalf("expected 1 row touched, got %d", touched)
	}

	key := domain.DefaultAffinityKey(testTenantID, "p1", "AAPL")
	rec, ok := f.store.records[key]
	if !ok {
		t.Fatal("expected affinity record under default journey key")
	}
	if rec.RawScore != 100 {
		t.Fatalf("expected raw 100, got %v", rec.RawScore)
	}
	if !almostEqual(rec.InterestScore, 0.5) {
		t.Fatalf("expected interest 0.5, got %v", rec.InterestScore)
	}
	if !rec.LastInteractionAt.Equal(lastEvent) {
		t.Fatalf("expected last interaction %v, got %v", lastEvent, rec.LastInteractionAt)
	}

	// score 0.5 with no personas: research prediction, analyst report nudge
	if rec.PredictedUserEvent != string(domain.EventSubjectViewed) {
		t.Fatalf("unexpected predicted event %q", rec.PredictedUserEvent)
	}
	if rec.NextBestAction != string(domain.ActionSendAnalystReport) {
		t.Fatalf("unexpected next best action %q", rec.NextBestAction)
	}

	if f.lock.releases != 1 {
		t.Fatalf("expected lock released once, got %d", f.lock.releases)
	}
}

func TestRunBatchUpdate_ReplayIsNoOp(t *testing.T) {
	f := newServiceFixture()
	lastEvent := windowEnd.Add(-time.Minute)
	f.events.aggregates = []domain.AggregatedInterest{
		{ProfileID: "p1", SubjectID: "AAPL", IncomingScore: 100, LastEventTime: lastEvent},
	}

	if _, err := f.svc.RunBatchUpdate(context.Background(), "master", "Active", windowStart, windowEnd); err != nil {
		t.Fatal(err)
	}
	key := domain.DefaultAffinityKey(testTenantID, "p1", "AAPL")
	before := f.store.records[key]

	// Same window, no new events: must not double-count.
	touched, err := f.svc.RunBatchUpdate(context.Background(), "master", "Active", windowStart, windowEnd)
	if err != nil {
		t.Fatal(err)
	}
	if touched != 0 {
		t.Fatalf("replay touched %d rows, expected 0", touched)
	}

	after := f.store.records[key]
	if after != before {
		t.Fatalf("record changed on replay:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestRunBatchUpdate_DecaysPriorScore(t *testing.T) {
	f := newServiceFixture()

	priorTime := windowStart.Add(-7 * 24 * time.Hour)
	key := domain.DefaultAffinityKey(testTenantID, "p1", "AAPL")
	if err := f.store.UpsertScore(context.Background(), key, 100, Normalize(100, defaultKFactor), priorTime); err != nil {
		t.Fatal(err)
	}

	// One half-life later: prior 100 halves to 50, plus 100 incoming.
	f.events.aggregates = []domain.AggregatedInterest{
		{ProfileID: "p1", SubjectID: "AAPL", IncomingScore: 100, LastEventTime: priorTime.Add(7 * 24 * time.Hour)},
	}

	if _, err := f.svc.RunBatchUpdate(context.Background(), "master", "Active", windowStart, windowEnd); err != nil {
		t.Fatal(err)
	}

	rec := f.store.records[key]
	if !almostEqual(rec.RawScore, 150) {
		t.Fatalf("expected raw 150 after decay+fold, got %v", rec.RawScore)
	}
	if !almostEqual(rec.InterestScore, 0.6) {
		t.Fatalf("expected interest 0.6, got %v", rec.InterestScore)
	}
}

func TestRunBatchUpdate_EmptyWindowIsSuccess(t *testing.T) {
	f := newServiceFixture()

	touched, err := f.svc.RunBatchUpdate(context.Background(), "master", "Active", windowStart, windowEnd)
	if err != nil {
		t.Fatalf("empty window must be a no-op, got %v", err)
	}
	if touched != 0 {
		t.Fatalf("expected 0 rows, got %d", touched)
	}
	if len(f.store.records) != 0 {
		t.Fatalf("expected no records, got %d", len(f.store.records))
	}
}

func TestRunBatchUpdate_UnknownTenant(t *testing.T) {
	f := newServiceFixture()

	_, err := f.svc.RunBatchUpdate(context.Background(), "ghost", "Active", windowStart, windowEnd)
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestRunBatchUpdate_UnknownSegment(t *testing.T) {
	f := newServiceFixture()
	f.profiles.segmentID = ""

	_, err := f.svc.RunBatchUpdate(context.Background(), "master", "Nobody", windowStart, windowEnd)
	if !errors.Is(err, domain.ErrSegmentNotFound) {
		t.Fatalf("expected ErrSegmentNotFound, got %v", err)
	}
}

func TestRunBatchUpdate_AggregationFailure(t *testing.T) {
	f := newServiceFixture()
	f.events.err = errors.New("event store unreachable")

	_, err := f.svc.RunBatchUpdate(context.Background(), "master", "Active", windowStart, windowEnd)

	var aggErr *domain.AggregationError
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected AggregationError, got %v", err)
	}
}

func TestRunBatchUpdate_RollsBackOnPersistenceError(t *testing.T) {
	f := newServiceFixture()
	f.store.failDecisionUpsert = true
	f.events.aggregates = []domain.AggregatedInterest{
		{ProfileID: "p1", SubjectID: "AAPL", IncomingScore: 100, LastEventTime: windowEnd.Add(-time.Minute)},
		{ProfileID: "p2", SubjectID: "NVDA", IncomingScore: 40, LastEventTime: windowEnd.Add(-time.Minute)},
	}

	_, err := f.svc.RunBatchUpdate(context.Background(), "master", "Active", windowStart, windowEnd)

	var batchErr *domain.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	if len(f.store.records) != 0 {
		t.Fatalf("expected rollback to pre-run state, found %d records", len(f.store.records))
	}
	if f.lock.releases != 1 {
		t.Fatal("lock must be released even on failure")
	}
}

func TestRunBatchUpdate_LockConflict(t *testing.T) {
	f := newServiceFixture()
	f.lock.held = true

	_, err := f.svc.RunBatchUpdate(context.Background(), "master", "Active", windowStart, windowEnd)
	if !errors.Is(err, domain.ErrBatchInProgress) {
		t.Fatalf("expected ErrBatchInProgress, got %v", err)
	}
}

// ---- GC ----

func TestRunGarbageCollection(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	now := time.Now()

	seed := map[string]float64{"AAPL": 0.4, "NVDA": 0.049, "TSLA": 0.01, "MSFT": 0.05}
	for subject, interest := range seed {
		key := domain.DefaultAffinityKey(testTenantID, "p1", subject)
		if err := f.store.UpsertScore(ctx, key, interest*100, interest, now); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := f.svc.RunGarbageCollection(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 rows deleted, got %d", deleted)
	}

	for _, rec := range f.store.records {
		if rec.InterestScore < defaultGCThreshold {
			t.Fatalf("record %s survived below threshold: %v", rec.SubjectID, rec.InterestScore)
		}
	}
}

// ---- read paths ----

func TestGetDecisions_RecomputesFromStoredScores(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	key := domain.DefaultAffinityKey(testTenantID, "p1", "AAPL")
	if err := f.store.UpsertScore(ctx, key, 150, 0.6, time.Now()); err != nil {
		t.Fatal(err)
	}
	// Stale decision column from some old batch run; the read path must
	// ignore it.
	if err := f.store.UpsertDecision(ctx, key,
		domain.Prediction{Event: domain.EventContentIgnored, Probability: 0.9},
		domain.Decision{Action: domain.ActionWait, Channel: domain.ChannelNone},
	); err != nil {
		t.Fatal(err)
	}

	decisions, err := f.svc.GetDecisions(ctx, testTenantID, "p1")
	if err != nil {
		t.Fatal(err)
	}

	decision, ok := decisions["AAPL"]
	if !ok {
		t.Fatal("expected decision for AAPL")
	}
	if decision.Action != domain.ActionSendAnalystReport {
		t.Fatalf("expected live recomputation, got stale %s", decision.Action)
	}
}

func TestGetPredictions_UsesPersonas(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	f.profiles.personas["p1"] = []string{PersonaHighFrequencyTrader}

	key := domain.DefaultAffinityKey(testTenantID, "p1", "AAPL")
	if err := f.store.UpsertScore(ctx, key, 150, 0.6, time.Now()); err != nil {
		t.Fatal(err)
	}

	predictions, err := f.svc.GetPredictions(ctx, testTenantID, "p1")
	if err != nil {
		t.Fatal(err)
	}

	if predictions["AAPL"].Event != domain.EventOrderCreated {
		t.Fatalf("expected execution prediction for frequent actor, got %s", predictions["AAPL"].Event)
	}
}

func TestFindInterested_OrderedAndFiltered(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	now := time.Now()

	scores := map[string]float64{"p1": 0.9, "p2": 0.3, "p3": 0.7}
	for profile, interest := range scores {
		key := domain.DefaultAffinityKey(testTenantID, profile, "AAPL")
		if err := f.store.UpsertScore(ctx, key, interest*100, interest, now); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := f.svc.FindInterested(ctx, testTenantID, "AAPL", 0.5)
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 interested profiles, got %d", len(rows))
	}
	if rows[0].ProfileID != "p1" || rows[1].ProfileID != "p3" {
		t.Fatalf("expected descending order p1,p3 got %s,%s", rows[0].ProfileID, rows[1].ProfileID)
	}
}

func TestFindHotAffinities_CrossesSubjects(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	now := time.Now()

	seed := []struct {
		profile, subject string
		interest         float64
	}{
		{"p1", "AAPL", 0.9},
		{"p2", "NVDA", 0.6},
		{"p1", "TSLA", 0.2},
	}
	for _, s := range seed {
		key := domain.DefaultAffinityKey(testTenantID, s.profile, s.subject)
		if err := f.store.UpsertScore(ctx, key, s.interest*100, s.interest, now); err != nil {
			t.Fatal(err)
		}
	}

	records, err := f.svc.FindHotAffinities(ctx, testTenantID, ScoreThresholdHot)
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 hot rows, got %d", len(records))
	}
	if records[0].SubjectID != "AAPL" || records[1].SubjectID != "NVDA" {
		t.Fatalf("expected AAPL,NVDA by score, got %s,%s", records[0].SubjectID, records[1].SubjectID)
	}
}

func TestTrackEvent_StampsTenant(t *testing.T) {
	f := newServiceFixture()

	event := &domain.BehavioralEvent{ProfileID: "p1", EventType: "subject-viewed"}
	if err := f.svc.TrackEvent(context.Background(), "master", event); err != nil {
		t.Fatal(err)
	}

	if len(f.events.saved) != 1 {
		t.Fatalf("expected 1 saved event, got %d", len(f.events.saved))
	}
	if f.events.saved[0].TenantID != testTenantID {
		t.Fatalf("expected tenant stamped onto event, got %s", f.events.saved[0].TenantID)
	}
}

func TestTrackEvent_AcceptsSubjectlessEvents(t *testing.T) {
	f := newServiceFixture()

	// The tracker contract is open-ended: events with no subject attribute
	// are stored anyway and only excluded later by aggregation.
	event := &domain.BehavioralEvent{ProfileID: "p1", EventType: "search"}
	if err := f.svc.TrackEvent(context.Background(), "master", event); err != nil {
		t.Fatal(err)
	}

	if len(f.events.saved) != 1 {
		t.Fatalf("expected subjectless event to be saved, got %d", len(f.events.saved))
	}
	if got := f.events.saved[0].SubjectID(); got != "" {
		t.Fatalf("expected empty subject, got %q", got)
	}
}
