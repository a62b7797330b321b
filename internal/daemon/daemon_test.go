package daemon

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorshive/arrisd/internal/model"
	"github.com/creatorshive/arrisd/internal/uds"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	var buf bytes.Buffer
	d, err := newDaemon(t.TempDir(), model.Config{}, &buf, nil)
	require.NoError(t, err)
	d.registerHandlers()
	t.Cleanup(func() { d.sweepTicker.Stop() })
	return d
}

func call(t *testing.T, d *Daemon, command string, params any) *uds.Response {
	t.Helper()
	req, err := uds.NewRequest(command, params)
	require.NoError(t, err)

	switch command {
	case "enqueue":
		return d.handleEnqueue(req)
	case "claim":
		return d.handleClaim(req)
	case "start":
		return d.handleStart(req)
	case "complete":
		return d.handleComplete(req)
	case "position":
		return d.handlePosition(req)
	case "creator_items":
		return d.handleCreatorItems(req)
	case "feed":
		return d.handleFeed(req)
	case "stats":
		return d.handleStats(req)
	case "live":
		return d.handleLive(req)
	case "sweep":
		return d.handleSweep(req)
	case "dashboard":
		return d.handleDashboard(req)
	default:
		t.Fatalf("unknown command %q", command)
		return nil
	}
}

func enqueueParamsFor(id, tier string) map[string]any {
	return map[string]any{
		"request_id":     id,
		"tier":           tier,
		"creator_id":     "creator-1",
		"creator_name":   "SketchQueen",
		"proposal_id":    "prop-" + id,
		"proposal_title": "Proposal " + id,
	}
}

func TestHandleEnqueue(t *testing.T) {
	d := newTestDaemon(t)

	resp := call(t, d, "enqueue", enqueueParamsFor("R1", "premium"))
	require.True(t, resp.Success)

	var item model.QueueItem
	require.NoError(t, json.Unmarshal(resp.Data, &item))
	assert.Equal(t, "R1", item.RequestID)
	assert.Equal(t, model.PriorityFast, item.Priority)
	assert.Equal(t, model.StatusQueued, item.Status)
	assert.Equal(t, 1, item.QueuePosition)
}

func TestHandleEnqueue_Validation(t *testing.T) {
	d := newTestDaemon(t)

	resp := call(t, d, "enqueue", map[string]any{"tier": "free"})
	require.False(t, resp.Success)
	assert.Equal(t, uds.ErrCodeValidation, resp.Error.Code)

	resp = call(t, d, "enqueue", map[string]any{"request_id": "R1", "priority": "turbo"})
	require.False(t, resp.Success)
	assert.Equal(t, uds.ErrCodeValidation, resp.Error.Code)
}

func TestHandleClaim(t *testing.T) {
	d := newTestDaemon(t)

	// Empty queue: success with null item, not an error
	resp := call(t, d, "claim", nil)
	require.True(t, resp.Success)
	var claim struct {
		Item *model.QueueItem `json:"item"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &claim))
	assert.Nil(t, claim.Item)

	call(t, d, "enqueue", enqueueParamsFor("S1", "free"))
	call(t, d, "enqueue", enqueueParamsFor("F1", "elite"))

	// Fast lane drains first
	resp = call(t, d, "claim", nil)
	require.True(t, resp.Success)
	require.NoError(t, json.Unmarshal(resp.Data, &claim))
	require.NotNil(t, claim.Item)
	assert.Equal(t, "F1", claim.Item.RequestID)
	assert.Equal(t, model.StatusProcessing, claim.Item.Status)
}

func TestHandleStart(t *testing.T) {
	d := newTestDaemon(t)
	call(t, d, "enqueue", enqueueParamsFor("R1", "free"))

	resp := call(t, d, "start", map[string]any{"request_id": "R1"})
	require.True(t, resp.Success)

	// Not queued anymore
	resp = call(t, d, "start", map[string]any{"request_id": "R1"})
	require.False(t, resp.Success)
	assert.Equal(t, uds.ErrCodeNotFound, resp.Error.Code)
}

func TestHandleComplete(t *testing.T) {
	d := newTestDaemon(t)
	call(t, d, "enqueue", enqueueParamsFor("R1", "free"))
	call(t, d, "start", map[string]any{"request_id": "R1"})

	resp := call(t, d, "complete", map[string]any{
		"request_id":      "R1",
		"processing_time": 4.0,
	})
	require.True(t, resp.Success)

	var item model.QueueItem
	require.NoError(t, json.Unmarshal(resp.Data, &item))
	assert.Equal(t, model.StatusCompleted, item.Status)
	assert.Equal(t, 4.0, item.ProcessingTime)

	// Second completion finds nothing
	resp = call(t, d, "complete", map[string]any{"request_id": "R1", "processing_time": 4.0})
	require.False(t, resp.Success)
	assert.Equal(t, uds.ErrCodeNotFound, resp.Error.Code)
}

func TestHandleComplete_Failure(t *testing.T) {
	d := newTestDaemon(t)
	call(t, d, "enqueue", enqueueParamsFor("R1", "free"))
	call(t, d, "start", map[string]any{"request_id": "R1"})

	resp := call(t, d, "complete", map[string]any{
		"request_id":      "R1",
		"processing_time": 2.0,
		"success":         false,
	})
	require.True(t, resp.Success)

	var item model.QueueItem
	require.NoError(t, json.Unmarshal(resp.Data, &item))
	assert.Equal(t, model.StatusFailed, item.Status)
}

func TestHandlePosition(t *testing.T) {
	d := newTestDaemon(t)
	call(t, d, "enqueue", enqueueParamsFor("R1", "free"))

	resp := call(t, d, "position", map[string]any{
		"creator_id":  "creator-1",
		"proposal_id": "prop-R1",
	})
	require.True(t, resp.Success)

	var info struct {
		RequestID     string  `json:"request_id"`
		QueuePosition int     `json:"queue_position"`
		Estimated     float64 `json:"estimated_wait_seconds"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, "R1", info.RequestID)
	assert.Equal(t, 1, info.QueuePosition)
	assert.Greater(t, info.Estimated, 0.0)

	resp = call(t, d, "position", map[string]any{
		"creator_id":  "creator-X",
		"proposal_id": "prop-Y",
	})
	require.False(t, resp.Success)
	assert.Equal(t, uds.ErrCodeNotFound, resp.Error.Code)
}

func TestHandleFeed_AnonymizedByDefault(t *testing.T) {
	d := newTestDaemon(t)
	call(t, d, "enqueue", enqueueParamsFor("R1", "free"))

	resp := call(t, d, "feed", nil)
	require.True(t, resp.Success)

	var feed struct {
		Activities []model.ActivityRecord `json:"activities"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &feed))
	require.Len(t, feed.Activities, 1)
	assert.Equal(t, "***", feed.Activities[0].CreatorID)
	assert.Equal(t, "Sk***", feed.Activities[0].CreatorName)

	resp = call(t, d, "feed", map[string]any{"include_identity": true})
	require.True(t, resp.Success)
	require.NoError(t, json.Unmarshal(resp.Data, &feed))
	assert.Equal(t, "creator-1", feed.Activities[0].CreatorID)
}

func TestHandleStatsAndLive(t *testing.T) {
	d := newTestDaemon(t)
	call(t, d, "enqueue", enqueueParamsFor("F1", "premium"))
	call(t, d, "enqueue", enqueueParamsFor("S1", "free"))

	resp := call(t, d, "stats", nil)
	require.True(t, resp.Success)
	var stats model.QueueStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 1, stats.FastQueued)
	assert.Equal(t, 1, stats.StandardQueued)

	resp = call(t, d, "live", nil)
	require.True(t, resp.Success)
	var live struct {
		NextFast     []*model.QueueItem `json:"next_fast"`
		NextStandard []*model.QueueItem `json:"next_standard"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &live))
	require.Len(t, live.NextFast, 1)
	assert.Equal(t, "***", live.NextFast[0].CreatorID)
}

func TestHandleSweep(t *testing.T) {
	d := newTestDaemon(t)

	// Default TTL is one hour; a fresh item survives the sweep
	call(t, d, "enqueue", enqueueParamsFor("R1", "free"))

	resp := call(t, d, "sweep", nil)
	require.True(t, resp.Success)

	var result struct {
		Evicted    int      `json:"evicted"`
		RequestIDs []string `json:"request_ids"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 0, result.Evicted)
	assert.Empty(t, result.RequestIDs)
}

func TestHandleDashboard(t *testing.T) {
	d := newTestDaemon(t)
	call(t, d, "enqueue", enqueueParamsFor("R1", "premium"))

	resp := call(t, d, "dashboard", nil)
	require.True(t, resp.Success)

	var result map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &result))

	data, err := os.ReadFile(result["path"])
	require.NoError(t, err)
	assert.Contains(t, string(data), "# ARRIS Queue Dashboard")
}

func TestApplyConfig_HotReload(t *testing.T) {
	d := newTestDaemon(t)

	ttl := 60
	cfg := model.Config{}
	cfg.Queue.ETADefaultSeconds = 9.0
	cfg.Queue.AbandonedAfterSec = &ttl
	cfg.Queue.SweepIntervalSec = 5
	cfg.Logging.Level = "debug"
	d.applyConfig(cfg)

	assert.Equal(t, LogLevelDebug, d.logLevel)
	assert.Equal(t, 9.0, d.config.Queue.ETADefaultSeconds)
	assert.Equal(t, time.Minute, d.config.Queue.AbandonedAfter())
}

func TestApplyConfig_SweepDisabledByZeroTTL(t *testing.T) {
	d := newTestDaemon(t)

	// An explicit 0 means "never sweep" and must survive defaulting
	zero := 0
	cfg := model.Config{}
	cfg.Queue.AbandonedAfterSec = &zero
	d.applyConfig(cfg)

	assert.Equal(t, time.Duration(0), d.config.Queue.AbandonedAfter())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	content := []byte("queue:\n  eta_default_seconds: 2.5\nlogging:\n  level: warn\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Queue.ETADefaultSeconds)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfig_ZeroTTLDisablesSweep(t *testing.T) {
	dir := t.TempDir()
	content := []byte("queue:\n  abandoned_after_sec: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	cfg.ApplyDefaults()
	assert.Equal(t, time.Duration(0), cfg.Queue.AbandonedAfter())
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"info":    LogLevelInfo,
		"warn":    LogLevelWarn,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"bogus":   LogLevelInfo,
		"":        LogLevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLogLevel(in), "parseLogLevel(%q)", in)
	}
}

func TestWriteMetricsSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "state"), 0755))

	stats := model.QueueStats{FastQueued: 2, Processing: 1}
	require.NoError(t, writeMetricsSnapshot(dir, stats))

	data, err := os.ReadFile(filepath.Join(dir, "state", "metrics.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "file_type: state_metrics")
	assert.Contains(t, string(data), "fast_queued: 2")
}

func TestDaemon_ShutdownIdempotent(t *testing.T) {
	d := newTestDaemon(t)
	d.config.Daemon.ShutdownTimeoutSec = 1

	done := make(chan struct{})
	go func() {
		d.Shutdown()
		d.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown did not return")
	}
}
