package model

import "time"

type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Queue         QueueConfig         `yaml:"queue"`
	Worker        WorkerConfig        `yaml:"worker"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Daemon        DaemonConfig        `yaml:"daemon"`
}

type ServiceConfig struct {
	Name    string `yaml:"name"`
	Created string `yaml:"created"`
	Root    string `yaml:"root"`
}

type QueueConfig struct {
	// Substitute wait estimate (seconds) for a lane with no completion
	// history yet.
	ETADefaultSeconds float64 `yaml:"eta_default_seconds"`
	ActivityHistory   int     `yaml:"activity_history"`
	// Pointer so an explicit 0 ("never sweep") survives defaulting;
	// only an absent or negative value falls back to one hour.
	AbandonedAfterSec *int `yaml:"abandoned_after_sec"`
	SweepIntervalSec  int  `yaml:"sweep_interval_sec"`
}

// DefaultAbandonedAfterSec is the sweep TTL applied when config.yaml
// does not set abandoned_after_sec.
const DefaultAbandonedAfterSec = 3600

// AbandonedAfter returns the sweep TTL as a duration. Zero disables
// the abandoned-item sweep.
func (q QueueConfig) AbandonedAfter() time.Duration {
	if q.AbandonedAfterSec == nil {
		return DefaultAbandonedAfterSec * time.Second
	}
	return time.Duration(*q.AbandonedAfterSec) * time.Second
}

type WorkerConfig struct {
	Count           int    `yaml:"count"`
	Command         string `yaml:"command"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
}

type NotificationsConfig struct {
	Buffer int `yaml:"buffer"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type DaemonConfig struct {
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

// ApplyDefaults fills zero values with operational defaults so a
// sparse config.yaml still yields a runnable daemon.
func (c *Config) ApplyDefaults() {
	if c.Queue.ETADefaultSeconds <= 0 {
		c.Queue.ETADefaultSeconds = 5.0
	}
	if c.Queue.ActivityHistory <= 0 {
		c.Queue.ActivityHistory = 50
	}
	if c.Queue.AbandonedAfterSec == nil || *c.Queue.AbandonedAfterSec < 0 {
		v := DefaultAbandonedAfterSec
		c.Queue.AbandonedAfterSec = &v
	}
	if c.Queue.SweepIntervalSec <= 0 {
		c.Queue.SweepIntervalSec = 30
	}
	if c.Worker.Count <= 0 {
		c.Worker.Count = 2
	}
	if c.Worker.TimeoutSec <= 0 {
		c.Worker.TimeoutSec = 300
	}
	if c.Worker.PollIntervalSec <= 0 {
		c.Worker.PollIntervalSec = 1
	}
	if c.Notifications.Buffer <= 0 {
		c.Notifications.Buffer = 100
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9109"
	}
	if c.Daemon.ShutdownTimeoutSec <= 0 {
		c.Daemon.ShutdownTimeoutSec = 30
	}
}
