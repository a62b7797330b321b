package model

// LaneStats is the per-lane completion counter and online mean of
// processing time. Reset only on process restart.
type LaneStats struct {
	Completed  int     `json:"completed" yaml:"completed"`
	AvgSeconds float64 `json:"avg_seconds" yaml:"avg_seconds"`
}

// AddSample folds one processing duration into the running mean:
// new = (old*(n-1) + v) / n.
func (s *LaneStats) AddSample(seconds float64) {
	s.Completed++
	n := float64(s.Completed)
	s.AvgSeconds = (s.AvgSeconds*(n-1) + seconds) / n
}

// QueueStats is a point-in-time snapshot of queue utilization.
type QueueStats struct {
	FastQueued     int       `json:"fast_queued" yaml:"fast_queued"`
	StandardQueued int       `json:"standard_queued" yaml:"standard_queued"`
	Processing     int       `json:"processing" yaml:"processing"`
	TotalCompleted int       `json:"total_completed" yaml:"total_completed"`
	Fast           LaneStats `json:"fast" yaml:"fast"`
	Standard       LaneStats `json:"standard" yaml:"standard"`
}
