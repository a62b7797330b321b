package arris

import (
	"time"

	"github.com/creatorshive/arrisd/internal/model"
)

// PositionInfo is the status/position/ETA summary for one request.
type PositionInfo struct {
	RequestID            string         `json:"request_id"`
	Status               model.Status   `json:"status"`
	QueuePosition        int            `json:"queue_position"`
	EstimatedWaitSeconds float64        `json:"estimated_wait_seconds"`
	Priority             model.Priority `json:"priority"`
}

// QueuePosition looks up the unique (creator, proposal) pair across
// the processing set, fast lane, and standard lane, in that order.
// Nil when the pair is not found anywhere.
func (s *Service) QueuePosition(creatorID, proposalID string) *PositionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := func(it *model.QueueItem) bool {
		return it.CreatorID == creatorID && it.ProposalID == proposalID
	}

	for _, it := range s.q.ProcessingItems() {
		if match(it) {
			return &PositionInfo{
				RequestID: it.RequestID,
				Status:    it.Status,
				Priority:  it.Priority,
			}
		}
	}
	for _, p := range []model.Priority{model.PriorityFast, model.PriorityStandard} {
		for _, it := range s.q.Lane(p) {
			if match(it) {
				return &PositionInfo{
					RequestID:            it.RequestID,
					Status:               it.Status,
					QueuePosition:        it.QueuePosition,
					EstimatedWaitSeconds: s.estimateWait(p, it.QueuePosition),
					Priority:             it.Priority,
				}
			}
		}
	}
	return nil
}

// CreatorItems returns snapshots of all of a creator's processing and
// queued items in drain order. This is the owner view: identity is not
// masked.
func (s *Service) CreatorItems(creatorID string) []*model.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.QueueItem
	for _, it := range s.q.ProcessingItems() {
		if it.CreatorID == creatorID {
			out = append(out, it.Clone())
		}
	}
	for _, p := range []model.Priority{model.PriorityFast, model.PriorityStandard} {
		for _, it := range s.q.Lane(p) {
			if it.CreatorID == creatorID {
				out = append(out, it.Clone())
			}
		}
	}
	return out
}

// ActivityFeed returns the most recent limit activity records. Unless
// includeIdentity is set, creator identity is masked, the policy for
// every consumer-facing read path.
func (s *Service) ActivityFeed(limit int, includeIdentity bool) []model.ActivityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedLocked(limit, includeIdentity)
}

func (s *Service) feedLocked(limit int, includeIdentity bool) []model.ActivityRecord {
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]model.ActivityRecord, 0, limit)
	for _, rec := range s.history[:limit] {
		if !includeIdentity {
			rec = rec.Anonymized()
		}
		out = append(out, rec)
	}
	return out
}

// LiveStatus is the composite public-dashboard read.
type LiveStatus struct {
	Processing     []*model.QueueItem     `json:"processing"`
	NextFast       []*model.QueueItem     `json:"next_fast"`
	NextStandard   []*model.QueueItem     `json:"next_standard"`
	Stats          model.QueueStats       `json:"stats"`
	RecentActivity []model.ActivityRecord `json:"recent_activity"`
	Timestamp      time.Time              `json:"timestamp"`
}

// Live assembles the public dashboard view: in-flight items, the next
// 3 fast and 2 standard queued items, stats, and the last 10 activity
// records, everything anonymized.
func (s *Service) Live() LiveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	anonymize := func(items []*model.QueueItem, max int) []*model.QueueItem {
		if max > 0 && len(items) > max {
			items = items[:max]
		}
		out := make([]*model.QueueItem, 0, len(items))
		for _, it := range items {
			out = append(out, it.Anonymized())
		}
		return out
	}

	return LiveStatus{
		Processing:     anonymize(s.q.ProcessingItems(), 0),
		NextFast:       anonymize(s.q.Lane(model.PriorityFast), 3),
		NextStandard:   anonymize(s.q.Lane(model.PriorityStandard), 2),
		Stats:          s.q.Stats(),
		RecentActivity: s.feedLocked(10, false),
		Timestamp:      s.now().UTC(),
	}
}
