package daemon

import (
	"path/filepath"
	"time"

	"github.com/creatorshive/arrisd/internal/model"
	atomicyaml "github.com/creatorshive/arrisd/internal/yaml"
)

type metricsSnapshot struct {
	SchemaVersion   int              `yaml:"schema_version"`
	FileType        string           `yaml:"file_type"`
	Stats           model.QueueStats `yaml:"stats"`
	DaemonHeartbeat string           `yaml:"daemon_heartbeat"`
	UpdatedAt       string           `yaml:"updated_at"`
}

// writeMetricsSnapshot persists the current queue utilization to
// state/metrics.yaml for ops inspection while the daemon runs. The
// heartbeat timestamp doubles as a liveness signal.
func writeMetricsSnapshot(arrisDir string, stats model.QueueStats) error {
	now := time.Now().UTC().Format(time.RFC3339)
	m := metricsSnapshot{
		SchemaVersion:   1,
		FileType:        "state_metrics",
		Stats:           stats,
		DaemonHeartbeat: now,
		UpdatedAt:       now,
	}
	return atomicyaml.AtomicWrite(filepath.Join(arrisDir, "state", "metrics.yaml"), m)
}
