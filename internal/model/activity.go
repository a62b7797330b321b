package model

import "time"

type ActivityType string

const (
	ActivityQueued              ActivityType = "queued"
	ActivityProcessingStarted   ActivityType = "processing_started"
	ActivityProcessingCompleted ActivityType = "processing_completed"
	ActivityProcessingFailed    ActivityType = "processing_failed"
)

// ActivityRecord is an immutable audit entry describing one state
// transition, snapshotting the item's identity at that instant.
type ActivityRecord struct {
	ID            string       `json:"id"`
	Type          ActivityType `json:"type"`
	RequestID     string       `json:"request_id"`
	CreatorID     string       `json:"creator_id"`
	CreatorName   string       `json:"creator_name"`
	ProposalID    string       `json:"proposal_id"`
	ProposalTitle string       `json:"proposal_title"`
	Priority      Priority     `json:"priority"`
	Status        Status       `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
}

// NewActivityRecord snapshots the item into an audit record.
func NewActivityRecord(t ActivityType, it *QueueItem) (ActivityRecord, error) {
	id, err := GenerateID(IDTypeActivity)
	if err != nil {
		return ActivityRecord{}, err
	}
	return ActivityRecord{
		ID:            id,
		Type:          t,
		RequestID:     it.RequestID,
		CreatorID:     it.CreatorID,
		CreatorName:   it.CreatorName,
		ProposalID:    it.ProposalID,
		ProposalTitle: it.ProposalTitle,
		Priority:      it.Priority,
		Status:        it.Status,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Anonymized returns a copy with creator identity masked.
func (a ActivityRecord) Anonymized() ActivityRecord {
	a.CreatorID = "***"
	a.CreatorName = MaskName(a.CreatorName)
	return a
}
