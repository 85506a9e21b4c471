package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trieu/leo-activation/business/affinity"
	"github.com/trieu/leo-activation/domain"
)

type EventRepository struct {
	DB *gorm.DB
}

var _ affinity.EventRepository = (*EventRepository)(nil)

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{DB: db}
}

// Window is half-open: start inclusive, end exclusive. Events with an empty
// subject attribute are noise and excluded entirely; the segment filter is an
// id-based jsonb containment test on the denormalized membership list, not a
// name comparison.
const aggregateQuery = `
SELECT e.profile_id              AS profile_id,
       e.meta_data->>'subject_id' AS subject_id,
       SUM(w.weight)             AS incoming_score,
       MAX(e.created_at)         AS last_event_time
FROM behavioral_events e
JOIN cdp_profiles p
  ON p.profile_id = e.profile_id
 AND p.tenant_id  = e.tenant_id
JOIN event_weights w
  ON w.event_name = e.event_type
WHERE e.tenant_id = ?
  AND e.created_at >= ?
  AND e.created_at <  ?
  AND COALESCE(e.meta_data->>'subject_id', '') <> ''
  AND p.segments @> ?::jsonb
GROUP BY e.profile_id, e.meta_data->>'subject_id'
`

func (r *EventRepository) AggregateWindow(ctx context.Context, tenantID uuid.UUID, segmentID string, start, end time.Time) ([]domain.AggregatedInterest, error) {
	segmentFilter, err := json.Marshal([]map[string]string{{"id": segmentID}})
	if err != nil {
		return nil, fmt.Errorf("build segment filter: %w", err)
	}

	var rows []domain.AggregatedInterest
	err = r.DB.WithContext(ctx).
		Raw(aggregateQuery, tenantID, start, end, string(segmentFilter)).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate behavioral events: %w", err)
	}

	return rows, nil
}

func (r *EventRepository) SaveEvent(ctx context.Context, event *domain.BehavioralEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to save behavioral event: %w", err)
	}

	return nil
}

// defaultWeights seed the static event-type weight table on first boot.
var defaultWeights = []domain.EventWeight{
	{EventName: "subject-viewed", Weight: 1},
	{EventName: "search", Weight: 2},
	{EventName: "watchlist-added", Weight: 3},
	{EventName: "order-created", Weight: 10},
}

// EnsureDefaultWeights inserts the default weight rows if the table is empty.
// Existing rows are left alone so per-deployment tuning survives restarts.
func (r *EventRepository) EnsureDefaultWeights(ctx context.Context) error {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&domain.EventWeight{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count event weights: %w", err)
	}
	if count > 0 {
		return nil
	}

	if err := r.DB.WithContext(ctx).Create(&defaultWeights).Error; err != nil {
		return fmt.Errorf("failed to seed event weights: %w", err)
	}

	return nil
}
