package arris

import (
	"time"

	"github.com/creatorshive/arrisd/internal/model"
)

// SweepAbandoned evicts items that have sat queued longer than the
// configured TTL: enqueued but never started, typically because the
// owning request died. Each eviction is marked failed, recorded as a
// processing_failed activity, and followed by a position recompute so
// wait estimates stop counting the orphan. Returns snapshots of the
// evicted items.
//
// A zero TTL disables the sweep.
func (s *Service) SweepAbandoned() []*model.QueueItem {
	s.mu.Lock()

	if s.abandonedAfter <= 0 {
		s.mu.Unlock()
		return nil
	}

	cutoff := s.now().UTC().Add(-s.abandonedAfter)
	var stale []string
	for _, p := range []model.Priority{model.PriorityFast, model.PriorityStandard} {
		for _, it := range s.q.Lane(p) {
			if it.EnqueuedAt.Before(cutoff) {
				stale = append(stale, it.RequestID)
			}
		}
	}

	var evicted []*model.QueueItem
	for _, id := range stale {
		item, _, ok := s.q.Remove(id)
		if !ok {
			continue
		}
		now := s.now().UTC()
		item.Status = model.StatusFailed
		item.CompletedAt = &now
		item.QueuePosition = 0
		s.recordActivity(model.ActivityProcessingFailed, item)
		evicted = append(evicted, item.Clone())
		s.logf("swept abandoned request_id=%s enqueued_at=%s", item.RequestID, item.EnqueuedAt.Format(time.RFC3339))
	}

	var notes []notification
	if len(evicted) > 0 {
		notes = s.recomputePositions()
	}
	fn := s.notify
	s.mu.Unlock()

	s.dispatch(fn, notes)
	return evicted
}
