// Package queue implements the dual-lane FIFO scheduler shared by the
// bare admission queue and the activity service: two ordered lanes
// (fast, standard), a processing set, and per-lane running statistics,
// all behind one mutex.
package queue

import (
	"sync"

	"github.com/creatorshive/arrisd/internal/model"
)

type procEntry[T any] struct {
	item     T
	priority model.Priority
}

// Queue is a two-lane FIFO with strict fast-before-standard drain
// order, parameterized over the item type. The id extractor supplied
// at construction is the only capability required of T.
//
// Lookup misses degrade to zero values, never errors: this is a
// best-effort scheduling hint, not a resource allocator.
type Queue[T any] struct {
	mu   sync.Mutex
	idOf func(T) string

	fast       []T
	standard   []T
	processing map[string]procEntry[T]

	fastStats     model.LaneStats
	standardStats model.LaneStats
}

func New[T any](idOf func(T) string) *Queue[T] {
	return &Queue[T]{
		idOf:       idOf,
		processing: make(map[string]procEntry[T]),
	}
}

// Enqueue appends the item to the tail of the chosen lane. Duplicate
// ids are not checked; uniqueness is the caller's contract. There is
// no capacity bound; admission control lives upstream.
func (q *Queue[T]) Enqueue(p model.Priority, item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if p == model.PriorityFast {
		q.fast = append(q.fast, item)
		return
	}
	q.standard = append(q.standard, item)
}

// Dequeue returns and removes the head of the fast lane if non-empty,
// otherwise the head of the standard lane. Empty queue is a sentinel
// false, not an error.
func (q *Queue[T]) Dequeue() (T, model.Priority, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.fast) > 0 {
		item := q.fast[0]
		q.fast = q.fast[1:]
		return item, model.PriorityFast, true
	}
	if len(q.standard) > 0 {
		item := q.standard[0]
		q.standard = q.standard[1:]
		return item, model.PriorityStandard, true
	}
	var zero T
	return zero, "", false
}

// Position returns the 0-based rank of the id in the combined drain
// order: fast items rank within the fast lane, standard items offset
// by the current fast-lane length. The comma-ok result distinguishes
// "front of queue" from "not found".
func (q *Queue[T]) Position(id string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.fast {
		if q.idOf(item) == id {
			return i, true
		}
	}
	for i, item := range q.standard {
		if q.idOf(item) == id {
			return len(q.fast) + i, true
		}
	}
	return 0, false
}

// Remove linearly scans the fast lane then the standard lane for the
// id and removes the first match. A fast and a standard item never
// share an id, so the scan order is safe.
func (q *Queue[T]) Remove(id string) (T, model.Priority, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.fast {
		if q.idOf(item) == id {
			q.fast = append(q.fast[:i], q.fast[i+1:]...)
			return item, model.PriorityFast, true
		}
	}
	for i, item := range q.standard {
		if q.idOf(item) == id {
			q.standard = append(q.standard[:i], q.standard[i+1:]...)
			return item, model.PriorityStandard, true
		}
	}
	var zero T
	return zero, "", false
}

// MarkProcessing records the item in the processing set. The lane
// priority is retained so completion can credit the right lane's
// statistics.
func (q *Queue[T]) MarkProcessing(p model.Priority, item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processing[q.idOf(item)] = procEntry[T]{item: item, priority: p}
}

// CompleteProcessing pops the id from the processing set and folds the
// measured duration into its lane's running mean. A second call for
// the same id finds nothing.
func (q *Queue[T]) CompleteProcessing(id string, seconds float64) (T, model.Priority, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.processing[id]
	if !ok {
		var zero T
		return zero, "", false
	}
	delete(q.processing, id)

	if entry.priority == model.PriorityFast {
		q.fastStats.AddSample(seconds)
	} else {
		q.standardStats.AddSample(seconds)
	}
	return entry.item, entry.priority, true
}

// ProcessingItem looks up an in-flight item by id.
func (q *Queue[T]) ProcessingItem(id string) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.processing[id]
	if !ok {
		var zero T
		return zero, false
	}
	return entry.item, true
}

// Lane returns a snapshot copy of the given lane in FIFO order.
func (q *Queue[T]) Lane(p model.Priority) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	src := q.standard
	if p == model.PriorityFast {
		src = q.fast
	}
	out := make([]T, len(src))
	copy(out, src)
	return out
}

// ProcessingItems returns a snapshot of the processing set in no
// particular order.
func (q *Queue[T]) ProcessingItems() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, 0, len(q.processing))
	for _, entry := range q.processing {
		out = append(out, entry.item)
	}
	return out
}

// Len is the number of queued (not processing) items across lanes.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fast) + len(q.standard)
}

// AvgSeconds is the lane's running mean processing time; zero when the
// lane has no completion history.
func (q *Queue[T]) AvgSeconds(p model.Priority) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if p == model.PriorityFast {
		return q.fastStats.AvgSeconds
	}
	return q.standardStats.AvgSeconds
}

// Stats returns a snapshot of lane depths, processing count, and the
// per-lane completion statistics. It is consistent at the instant of
// the call only.
func (q *Queue[T]) Stats() model.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return model.QueueStats{
		FastQueued:     len(q.fast),
		StandardQueued: len(q.standard),
		Processing:     len(q.processing),
		TotalCompleted: q.fastStats.Completed + q.standardStats.Completed,
		Fast:           q.fastStats,
		Standard:       q.standardStats,
	}
}
