package model

import (
	"testing"
	"time"
)

func TestMaskName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"SketchQueen", "Sk***"},
		{"DJ Pulse", "DJ***"},
		{"Al", "Al***"},
		{"X", "X***"},
		{"", "***"},
		{"日本語の名前", "日本***"},
	}
	for _, c := range cases {
		if got := MaskName(c.in); got != c.want {
			t.Errorf("MaskName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestQueueItem_Anonymized(t *testing.T) {
	it := &QueueItem{
		RequestID:   "req_1234567890_abcd1234",
		CreatorID:   "creator-42",
		CreatorName: "SketchQueen",
	}
	anon := it.Anonymized()

	if anon.CreatorID != "***" {
		t.Errorf("creator_id: got %q", anon.CreatorID)
	}
	if anon.CreatorName != "Sk***" {
		t.Errorf("creator_name: got %q", anon.CreatorName)
	}
	// Original untouched
	if it.CreatorID != "creator-42" || it.CreatorName != "SketchQueen" {
		t.Error("Anonymized must not mutate the original item")
	}
}

func TestQueueItem_Payload(t *testing.T) {
	enqueued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	it := &QueueItem{
		RequestID:     "req_1234567890_abcd1234",
		Priority:      PriorityFast,
		Tier:          "premium",
		CreatorID:     "creator-1",
		Status:        StatusQueued,
		QueuePosition: 3,
		EnqueuedAt:    enqueued,
	}

	p := it.Payload()
	if p["request_id"] != "req_1234567890_abcd1234" {
		t.Errorf("request_id: got %v", p["request_id"])
	}
	if p["priority"] != "fast" {
		t.Errorf("priority: got %v", p["priority"])
	}
	if p["queue_position"] != 3 {
		t.Errorf("queue_position: got %v", p["queue_position"])
	}
	if p["enqueued_at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("enqueued_at: got %v", p["enqueued_at"])
	}
	if p["started_at"] != nil {
		t.Errorf("started_at should be nil, got %v", p["started_at"])
	}
	if p["completed_at"] != nil {
		t.Errorf("completed_at should be nil, got %v", p["completed_at"])
	}

	started := enqueued.Add(5 * time.Second)
	it.StartedAt = &started
	p = it.Payload()
	if p["started_at"] != "2026-03-01T12:00:05Z" {
		t.Errorf("started_at: got %v", p["started_at"])
	}
}

func TestPriorityForTier(t *testing.T) {
	cases := []struct {
		tier string
		want Priority
	}{
		{"premium", PriorityFast},
		{"elite", PriorityFast},
		{"Premium", PriorityFast},
		{"ELITE", PriorityFast},
		{"free", PriorityStandard},
		{"basic", PriorityStandard},
		{"", PriorityStandard},
	}
	for _, c := range cases {
		if got := PriorityForTier(c.tier); got != c.want {
			t.Errorf("PriorityForTier(%q) = %s, want %s", c.tier, got, c.want)
		}
	}
}

func TestLaneStats_AddSample(t *testing.T) {
	var s LaneStats

	s.AddSample(10)
	if s.Completed != 1 || s.AvgSeconds != 10 {
		t.Errorf("after 1 sample: completed=%d avg=%f", s.Completed, s.AvgSeconds)
	}

	s.AddSample(20)
	if s.Completed != 2 || s.AvgSeconds != 15 {
		t.Errorf("after 2 samples: completed=%d avg=%f", s.Completed, s.AvgSeconds)
	}

	s.AddSample(30)
	if s.Completed != 3 || s.AvgSeconds != 20 {
		t.Errorf("after 3 samples: completed=%d avg=%f", s.Completed, s.AvgSeconds)
	}
}

func TestNewActivityRecord(t *testing.T) {
	it := &QueueItem{
		RequestID:   "req_1234567890_abcd1234",
		Priority:    PriorityStandard,
		CreatorID:   "creator-7",
		CreatorName: "DJ Pulse",
		ProposalID:  "prop-9",
		Status:      StatusQueued,
	}

	rec, err := NewActivityRecord(ActivityQueued, it)
	if err != nil {
		t.Fatalf("NewActivityRecord: %v", err)
	}
	if !ValidateID(rec.ID) {
		t.Errorf("record ID %q does not validate", rec.ID)
	}
	if typ, _ := ParseIDType(rec.ID); typ != IDTypeActivity {
		t.Errorf("record ID type: got %s", typ)
	}
	if rec.Type != ActivityQueued || rec.RequestID != it.RequestID || rec.CreatorName != "DJ Pulse" {
		t.Errorf("record snapshot mismatch: %+v", rec)
	}

	anon := rec.Anonymized()
	if anon.CreatorID != "***" || anon.CreatorName != "DJ***" {
		t.Errorf("anonymized record: creator_id=%q creator_name=%q", anon.CreatorID, anon.CreatorName)
	}
}
