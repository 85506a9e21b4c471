package affinity

import (
	"context"
	"fmt"

	"github.com/trieu/leo-activation/pkg/logger"
)

// RunGarbageCollection removes affinity rows whose stored interest score has
// decayed below the retention threshold. Scores are persisted, not recomputed
// at read time, so without periodic sweeps stale rows for inactive pairs
// would linger indefinitely. Safe to run concurrently with the batch job and
// always safe to re-run; a failed pass is logged by the caller and retried on
// the next schedule, never blocking scoring.
func (s *Service) RunGarbageCollection(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	deleted, err := s.affinityRepo.DeleteBelow(ctx, s.cfg.GCThreshold)
	if err != nil {
		return 0, fmt.Errorf("delete below threshold %.2f: %w", s.cfg.GCThreshold, err)
	}

	GCRowsDeletedTotal.Add(float64(deleted))
	logger.Info("affinity_gc_complete", "deleted", deleted, "threshold", s.cfg.GCThreshold)

	return deleted, nil
}
