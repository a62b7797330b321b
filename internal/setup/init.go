// Package setup handles arrisd project initialization.
package setup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/creatorshive/arrisd/internal/model"
	atomicyaml "github.com/creatorshive/arrisd/internal/yaml"
	"github.com/creatorshive/arrisd/templates"
)

const arrisDir = ".arris"

// Run initializes the .arris/ directory structure in the given project
// directory. serviceName overrides the auto-detected name (defaults to
// directory basename if empty).
func Run(projectDir, serviceName string) error {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}

	base := filepath.Join(absDir, arrisDir)

	if _, err := os.Stat(base); err == nil {
		return fmt.Errorf("%s already exists", base)
	}

	for _, d := range []string{"logs", "locks", "state"} {
		if err := os.MkdirAll(filepath.Join(base, d), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	if err := copyTemplateFile("dashboard.md", filepath.Join(base, "dashboard.md")); err != nil {
		return err
	}

	cfg, err := generateConfig(absDir, serviceName)
	if err != nil {
		return fmt.Errorf("generate config: %w", err)
	}

	if cfg.Worker.Count < 1 || cfg.Worker.Count > 16 {
		return fmt.Errorf("worker.count must be 1-16, got %d", cfg.Worker.Count)
	}

	if err := atomicyaml.AtomicWrite(filepath.Join(base, "config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config.yaml: %w", err)
	}

	if err := writeEmptyMetrics(filepath.Join(base, "state", "metrics.yaml")); err != nil {
		return fmt.Errorf("write metrics.yaml: %w", err)
	}

	// Create daemon.lock (empty)
	if err := os.WriteFile(filepath.Join(base, "locks", "daemon.lock"), nil, 0600); err != nil {
		return fmt.Errorf("create daemon.lock: %w", err)
	}

	return nil
}

func copyTemplateFile(name, dst string) error {
	data, err := fs.ReadFile(templates.FS, name)
	if err != nil {
		return fmt.Errorf("read template %s: %w", name, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func generateConfig(projectDir, serviceName string) (*model.Config, error) {
	data, err := fs.ReadFile(templates.FS, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("read config template: %w", err)
	}

	var cfg model.Config
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config template: %w", err)
	}

	// Auto-fill fields
	if serviceName != "" {
		cfg.Service.Name = serviceName
	} else {
		cfg.Service.Name = filepath.Base(projectDir)
	}
	cfg.Service.Root = projectDir
	cfg.Service.Created = time.Now().Format(time.RFC3339)
	cfg.ApplyDefaults()

	return &cfg, nil
}

type metricsFile struct {
	SchemaVersion   int              `yaml:"schema_version"`
	FileType        string           `yaml:"file_type"`
	Stats           model.QueueStats `yaml:"stats"`
	DaemonHeartbeat *string          `yaml:"daemon_heartbeat"`
	UpdatedAt       *string          `yaml:"updated_at"`
}

func writeEmptyMetrics(path string) error {
	m := metricsFile{
		SchemaVersion: 1,
		FileType:      "state_metrics",
	}
	return atomicyaml.AtomicWrite(path, m)
}
