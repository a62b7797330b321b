// Package model defines the data structures for arrisd's queue items,
// activity records, statistics, and configuration.
package model

import "time"

// QueueItem is one unit of pending or active insight-generation work.
// The creator/proposal fields are denormalized display context; nothing
// here enforces referential integrity against the proposal store.
type QueueItem struct {
	RequestID     string   `json:"request_id"`
	Priority      Priority `json:"priority"`
	Tier          string   `json:"tier"`
	CreatorID     string   `json:"creator_id"`
	CreatorName   string   `json:"creator_name"`
	ProposalID    string   `json:"proposal_id"`
	ProposalTitle string   `json:"proposal_title"`

	Status Status `json:"status"`

	// 1-based rank in the combined drain order; 0 while processing.
	QueuePosition int `json:"queue_position"`

	EnqueuedAt  time.Time  `json:"enqueued_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Seconds, set only at completion.
	ProcessingTime float64 `json:"processing_time"`
}

// Payload produces the serialized form handed to the notification
// layer: RFC3339 timestamps, nil for unset optionals.
func (it *QueueItem) Payload() map[string]any {
	p := map[string]any{
		"request_id":      it.RequestID,
		"priority":        string(it.Priority),
		"tier":            it.Tier,
		"creator_id":      it.CreatorID,
		"creator_name":    it.CreatorName,
		"proposal_id":     it.ProposalID,
		"proposal_title":  it.ProposalTitle,
		"status":          string(it.Status),
		"queue_position":  it.QueuePosition,
		"enqueued_at":     it.EnqueuedAt.Format(time.RFC3339),
		"started_at":      nil,
		"completed_at":    nil,
		"processing_time": it.ProcessingTime,
	}
	if it.StartedAt != nil {
		p["started_at"] = it.StartedAt.Format(time.RFC3339)
	}
	if it.CompletedAt != nil {
		p["completed_at"] = it.CompletedAt.Format(time.RFC3339)
	}
	return p
}

// Clone returns a detached copy. Live items keep moving while the
// queue runs; anything handed outside the owning lock must be a clone
// so readers and the position recompute never touch the same memory.
func (it *QueueItem) Clone() *QueueItem {
	cp := *it
	if it.StartedAt != nil {
		t := *it.StartedAt
		cp.StartedAt = &t
	}
	if it.CompletedAt != nil {
		t := *it.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// Anonymized returns a copy with the creator identity masked for
// public-facing reads.
func (it *QueueItem) Anonymized() *QueueItem {
	cp := it.Clone()
	cp.CreatorID = "***"
	cp.CreatorName = MaskName(it.CreatorName)
	return cp
}

// MaskName reduces a creator name to its first two characters plus
// "***". Names shorter than two characters keep what they have.
func MaskName(name string) string {
	runes := []rune(name)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return string(runes) + "***"
}
