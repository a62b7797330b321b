// Package arris implements the insight-generation processing queue:
// dual-priority admission, position tracking, wait-time estimation,
// bounded activity history, and change notification.
package arris

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/creatorshive/arrisd/internal/model"
	"github.com/creatorshive/arrisd/internal/queue"
)

// Notification event names, as delivered to the notification layer.
const (
	EventQueueUpdate         = "queue_update"
	EventProcessingStarted   = "processing_started"
	EventProcessingCompleted = "processing_completed"
)

// NotifyFunc receives change notifications. targetID is the creator
// the event concerns. It is invoked after the mutation has committed
// and after the service lock is released; a panic inside it propagates
// to the mutating caller but never corrupts queue state.
type NotifyFunc func(event string, targetID string, payload map[string]any)

type notification struct {
	event   string
	target  string
	payload map[string]any
}

// Options configures a Service. Zero values fall back to operational
// defaults (5s ETA placeholder, 50-record history, sweep disabled).
type Options struct {
	ETADefaultSeconds float64
	ActivityHistory   int
	AbandonedAfter    time.Duration
	Logger            *log.Logger
}

// Service is the single source of truth for "where is my request".
// One mutex serializes every public operation; the embedded queue's
// own lock is never held across a callback.
type Service struct {
	mu sync.Mutex
	q  *queue.Queue[*model.QueueItem]

	// most-recent-first ring of activity records
	history    []model.ActivityRecord
	historyCap int

	etaDefault     float64
	abandonedAfter time.Duration

	notify NotifyFunc
	logger *log.Logger

	now func() time.Time
}

func NewService(opts Options) *Service {
	if opts.ETADefaultSeconds <= 0 {
		opts.ETADefaultSeconds = 5.0
	}
	if opts.ActivityHistory <= 0 {
		opts.ActivityHistory = 50
	}
	return &Service{
		q: queue.New(func(it *model.QueueItem) string {
			return it.RequestID
		}),
		historyCap:     opts.ActivityHistory,
		etaDefault:     opts.ETADefaultSeconds,
		abandonedAfter: opts.AbandonedAfter,
		logger:         opts.Logger,
		now:            time.Now,
	}
}

// SetNotifier registers the outbound notification callback. A nil
// notifier makes dispatch a no-op.
func (s *Service) SetNotifier(fn NotifyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// SetTuning applies hot-reloadable knobs (config watcher path).
func (s *Service) SetTuning(etaDefaultSeconds float64, abandonedAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if etaDefaultSeconds > 0 {
		s.etaDefault = etaDefaultSeconds
	}
	s.abandonedAfter = abandonedAfter
}

// EnqueueRequest is one unit of admission context.
type EnqueueRequest struct {
	RequestID     string
	Tier          string
	Priority      model.Priority // derived from Tier when unset
	CreatorID     string
	CreatorName   string
	ProposalID    string
	ProposalTitle string
}

// Enqueue admits a request into its lane, assigns its 1-based position
// in the combined drain order, records a queued activity, and fires
// queue_update notifications for every item whose position changed.
// The returned item is a snapshot taken under the lock; its position
// is correct at the instant of return and does not track later queue
// movement.
func (s *Service) Enqueue(req EnqueueRequest) *model.QueueItem {
	s.mu.Lock()

	p := req.Priority
	if !model.IsValidPriority(p) {
		p = model.PriorityForTier(req.Tier)
	}

	item := &model.QueueItem{
		RequestID:     req.RequestID,
		Priority:      p,
		Tier:          req.Tier,
		CreatorID:     req.CreatorID,
		CreatorName:   req.CreatorName,
		ProposalID:    req.ProposalID,
		ProposalTitle: req.ProposalTitle,
		Status:        model.StatusQueued,
		EnqueuedAt:    s.now().UTC(),
	}
	s.q.Enqueue(p, item)

	pos, _ := s.q.Position(item.RequestID)
	item.QueuePosition = pos + 1

	s.recordActivity(model.ActivityQueued, item)
	notes := s.recomputePositions()

	s.logf("enqueued request_id=%s priority=%s position=%d", item.RequestID, p, item.QueuePosition)

	out := item.Clone()
	fn := s.notify
	s.mu.Unlock()

	s.dispatch(fn, notes)
	return out
}

// StartProcessing removes the request from its lane (fast lane checked
// first), transitions it to processing, recomputes positions for
// everyone still queued, and notifies. Returns a snapshot, or nil when
// the id is not queued; absence is a no-op, not an error, tolerating
// out-of-order operations.
func (s *Service) StartProcessing(requestID string) *model.QueueItem {
	s.mu.Lock()

	item, p, ok := s.q.Remove(requestID)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	notes, fn := s.beginProcessing(item, p)
	out := item.Clone()
	s.mu.Unlock()

	s.dispatch(fn, notes)
	return out
}

// StartNext dequeues the head of the combined drain order (fast lane
// first) and runs the processing transition in one step. Used by the
// worker pool. Returns nil when both lanes are empty.
func (s *Service) StartNext() *model.QueueItem {
	s.mu.Lock()

	item, p, ok := s.q.Dequeue()
	if !ok {
		s.mu.Unlock()
		return nil
	}
	notes, fn := s.beginProcessing(item, p)
	out := item.Clone()
	s.mu.Unlock()

	s.dispatch(fn, notes)
	return out
}

// beginProcessing applies the queued→processing transition. Lock held.
func (s *Service) beginProcessing(item *model.QueueItem, p model.Priority) ([]notification, NotifyFunc) {
	now := s.now().UTC()
	item.Status = model.StatusProcessing
	item.StartedAt = &now
	item.QueuePosition = 0
	s.q.MarkProcessing(p, item)

	s.recordActivity(model.ActivityProcessingStarted, item)
	notes := s.recomputePositions()
	notes = append(notes, notification{
		event:   EventProcessingStarted,
		target:  item.CreatorID,
		payload: item.Payload(),
	})

	s.logf("processing started request_id=%s priority=%s", item.RequestID, p)
	return notes, s.notify
}

// CompleteProcessing pops the request from the processing set, applies
// the terminal status, and folds the measured duration into its lane's
// running average. Returns a snapshot, or nil when the id was never
// marked processing; a second completion for the same id finds nothing.
func (s *Service) CompleteProcessing(requestID string, seconds float64, success bool) *model.QueueItem {
	s.mu.Lock()

	item, p, ok := s.q.CompleteProcessing(requestID, seconds)
	if !ok {
		s.mu.Unlock()
		return nil
	}

	now := s.now().UTC()
	if success {
		item.Status = model.StatusCompleted
	} else {
		item.Status = model.StatusFailed
	}
	item.CompletedAt = &now
	item.ProcessingTime = seconds

	actType := model.ActivityProcessingCompleted
	if !success {
		actType = model.ActivityProcessingFailed
	}
	s.recordActivity(actType, item)

	payload := item.Payload()
	payload["success"] = success

	s.logf("processing completed request_id=%s priority=%s seconds=%.2f success=%t",
		item.RequestID, p, seconds, success)

	out := item.Clone()
	fn := s.notify
	s.mu.Unlock()

	s.dispatch(fn, []notification{{
		event:   EventProcessingCompleted,
		target:  item.CreatorID,
		payload: payload,
	}})
	return out
}

// Stats returns the current queue utilization snapshot.
func (s *Service) Stats() model.QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Stats()
}

// recomputePositions reassigns every queued item's 1-based position in
// the combined drain order and returns a queue_update notification for
// each item whose position changed since the last pass. Lock held.
func (s *Service) recomputePositions() []notification {
	var notes []notification

	fastLen := 0
	for _, p := range []model.Priority{model.PriorityFast, model.PriorityStandard} {
		lane := s.q.Lane(p)
		if p == model.PriorityFast {
			fastLen = len(lane)
		}
		for i, item := range lane {
			pos := i + 1
			if p == model.PriorityStandard {
				pos = fastLen + i + 1
			}
			if item.QueuePosition == pos {
				continue
			}
			item.QueuePosition = pos
			notes = append(notes, notification{
				event:  EventQueueUpdate,
				target: item.CreatorID,
				payload: map[string]any{
					"request_id":             item.RequestID,
					"queue_position":         pos,
					"estimated_wait_seconds": s.estimateWait(p, pos),
					"priority":               string(p),
				},
			})
		}
	}
	return notes
}

// estimateWait is position × lane average, substituting the configured
// default when the lane has no completion history yet. Lock held.
func (s *Service) estimateWait(p model.Priority, position int) float64 {
	avg := s.q.AvgSeconds(p)
	if avg <= 0 {
		avg = s.etaDefault
	}
	return float64(position) * avg
}

// recordActivity prepends a snapshot record to the bounded history.
// Oldest entries are silently evicted at capacity. Lock held.
func (s *Service) recordActivity(t model.ActivityType, item *model.QueueItem) {
	rec, err := model.NewActivityRecord(t, item)
	if err != nil {
		s.logf("activity record dropped request_id=%s err=%v", item.RequestID, err)
		return
	}
	s.history = append([]model.ActivityRecord{rec}, s.history...)
	if len(s.history) > s.historyCap {
		s.history = s.history[:s.historyCap]
	}
}

// dispatch fires notifications outside the service lock. A slow or
// suspending notifier can only delay delivery, never queue mutation.
func (s *Service) dispatch(fn NotifyFunc, notes []notification) {
	if fn == nil {
		return
	}
	for _, n := range notes {
		fn(n.event, n.target, n.payload)
	}
}

func (s *Service) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	s.logger.Printf("%s INFO arris: %s", time.Now().Format(time.RFC3339), msg)
}
