package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/tldetector/internal/geometry"
)

// SiteConfig describes one deployment site: the camera fitted to the
// vehicle and the stop lines painted on the track.
type SiteConfig struct {
	CameraInfo        geometry.Intrinsics `yaml:"camera_info" json:"camera_info"`
	StopLinePositions [][2]float64        `yaml:"stop_line_positions" json:"stop_line_positions"`
}

// LoadSiteConfig reads a site YAML file.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("site config must have .yaml or .yml extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read site config: %w", err)
	}
	return ParseSiteConfig(data)
}

// ParseSiteConfig decodes and validates site YAML, as delivered either from
// a file or inline as a launch parameter.
func ParseSiteConfig(data []byte) (*SiteConfig, error) {
	var cfg SiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse site config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid site config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the camera dimensions. Focal lengths are not checked here;
// degenerate values are replaced by the tuning fallbacks at projection time.
func (c *SiteConfig) Validate() error {
	if c.CameraInfo.ImageWidth <= 0 || c.CameraInfo.ImageHeight <= 0 {
		return fmt.Errorf("camera_info image size must be positive, got %dx%d",
			c.CameraInfo.ImageWidth, c.CameraInfo.ImageHeight)
	}
	return nil
}
