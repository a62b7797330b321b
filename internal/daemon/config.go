package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/creatorshive/arrisd/internal/model"
)

// LoadConfig reads and parses .arris/config.yaml. Defaults are not
// applied here; callers decide when.
func LoadConfig(arrisDir string) (model.Config, error) {
	data, err := os.ReadFile(filepath.Join(arrisDir, "config.yaml"))
	if err != nil {
		return model.Config{}, fmt.Errorf("read config.yaml: %w", err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("parse config.yaml: %w", err)
	}
	return cfg, nil
}
