package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the detector's tunable parameters. Every field is
// optional; the Get* methods supply the default for anything omitted, so
// partial files are safe.
type TuningConfig struct {
	// Debounce
	StateCountThreshold *int `json:"state_count_threshold,omitempty"`

	// Camera model
	FallbackFocalLengthX *float64 `json:"fallback_focal_length_x,omitempty"`
	FallbackFocalLengthY *float64 `json:"fallback_focal_length_y,omitempty"`
	MinFocalLength       *float64 `json:"min_focal_length,omitempty"`
	VerticalOffset       *float64 `json:"vertical_offset,omitempty"` // metres

	// Transform lookup
	TransformTimeout       *string `json:"transform_timeout,omitempty"`        // duration string like "1s"
	TransformCacheDuration *string `json:"transform_cache_duration,omitempty"` // duration string like "10s"

	// Classification crop
	CropHalfWidth  *int `json:"crop_half_width,omitempty"`
	CropHalfHeight *int `json:"crop_half_height,omitempty"`

	// Frame rate cap in frames per second; 0 disables the cap.
	MaxFrameRate *float64 `json:"max_frame_rate,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// with its default.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		StateCountThreshold:    ptrInt(e.GetStateCountThreshold()),
		FallbackFocalLengthX:   ptrFloat64(e.GetFallbackFocalLengthX()),
		FallbackFocalLengthY:   ptrFloat64(e.GetFallbackFocalLengthY()),
		MinFocalLength:         ptrFloat64(e.GetMinFocalLength()),
		VerticalOffset:         ptrFloat64(e.GetVerticalOffset()),
		TransformTimeout:       ptrString(e.GetTransformTimeout().String()),
		TransformCacheDuration: ptrString(e.GetTransformCacheDuration().String()),
		CropHalfWidth:          ptrInt(e.GetCropHalfWidth()),
		CropHalfHeight:         ptrInt(e.GetCropHalfHeight()),
		MaxFrameRate:           ptrFloat64(e.GetMaxFrameRate()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/decision-plot/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.StateCountThreshold != nil && *c.StateCountThreshold < 1 {
		return fmt.Errorf("state_count_threshold must be at least 1, got %d", *c.StateCountThreshold)
	}

	for name, v := range map[string]*float64{
		"fallback_focal_length_x": c.FallbackFocalLengthX,
		"fallback_focal_length_y": c.FallbackFocalLengthY,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	if c.MinFocalLength != nil && *c.MinFocalLength < 0 {
		return fmt.Errorf("min_focal_length must be non-negative, got %f", *c.MinFocalLength)
	}

	if c.TransformTimeout != nil && *c.TransformTimeout != "" {
		d, err := time.ParseDuration(*c.TransformTimeout)
		if err != nil {
			return fmt.Errorf("invalid transform_timeout '%s': %w", *c.TransformTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("transform_timeout must be non-negative, got %s", d)
		}
	}
	if c.TransformCacheDuration != nil && *c.TransformCacheDuration != "" {
		d, err := time.ParseDuration(*c.TransformCacheDuration)
		if err != nil {
			return fmt.Errorf("invalid transform_cache_duration '%s': %w", *c.TransformCacheDuration, err)
		}
		if d <= 0 {
			return fmt.Errorf("transform_cache_duration must be positive, got %s", d)
		}
	}

	if c.CropHalfWidth != nil && *c.CropHalfWidth < 1 {
		return fmt.Errorf("crop_half_width must be at least 1, got %d", *c.CropHalfWidth)
	}
	if c.CropHalfHeight != nil && *c.CropHalfHeight < 1 {
		return fmt.Errorf("crop_half_height must be at least 1, got %d", *c.CropHalfHeight)
	}

	if c.MaxFrameRate != nil && *c.MaxFrameRate < 0 {
		return fmt.Errorf("max_frame_rate must be non-negative, got %f", *c.MaxFrameRate)
	}

	return nil
}

// GetStateCountThreshold returns the state_count_threshold value or the default.
func (c *TuningConfig) GetStateCountThreshold() int {
	if c.StateCountThreshold == nil {
		return 3
	}
	return *c.StateCountThreshold
}

// GetFallbackFocalLengthX returns the fallback_focal_length_x value or the default.
func (c *TuningConfig) GetFallbackFocalLengthX() float64 {
	if c.FallbackFocalLengthX == nil {
		return 2244
	}
	return *c.FallbackFocalLengthX
}

// GetFallbackFocalLengthY returns the fallback_focal_length_y value or the default.
func (c *TuningConfig) GetFallbackFocalLengthY() float64 {
	if c.FallbackFocalLengthY == nil {
		return 2552
	}
	return *c.FallbackFocalLengthY
}

// GetMinFocalLength returns the min_focal_length value or the default.
func (c *TuningConfig) GetMinFocalLength() float64 {
	if c.MinFocalLength == nil {
		return 10
	}
	return *c.MinFocalLength
}

// GetVerticalOffset returns the vertical_offset value or the default.
func (c *TuningConfig) GetVerticalOffset() float64 {
	if c.VerticalOffset == nil {
		return 1.0
	}
	return *c.VerticalOffset
}

// GetTransformTimeout parses and returns the TransformTimeout as a time.Duration.
func (c *TuningConfig) GetTransformTimeout() time.Duration {
	if c.TransformTimeout == nil || *c.TransformTimeout == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.TransformTimeout)
	if err != nil {
		return time.Second // default on parse error
	}
	return d
}

// GetTransformCacheDuration parses and returns the TransformCacheDuration as a time.Duration.
func (c *TuningConfig) GetTransformCacheDuration() time.Duration {
	if c.TransformCacheDuration == nil || *c.TransformCacheDuration == "" {
		return 10 * time.Second // default
	}
	d, err := time.ParseDuration(*c.TransformCacheDuration)
	if err != nil {
		return 10 * time.Second // default on parse error
	}
	return d
}

// GetCropHalfWidth returns the crop_half_width value or the default.
func (c *TuningConfig) GetCropHalfWidth() int {
	if c.CropHalfWidth == nil {
		return 40
	}
	return *c.CropHalfWidth
}

// GetCropHalfHeight returns the crop_half_height value or the default.
func (c *TuningConfig) GetCropHalfHeight() int {
	if c.CropHalfHeight == nil {
		return 90
	}
	return *c.CropHalfHeight
}

// GetMaxFrameRate returns the max_frame_rate value or the default (no cap).
func (c *TuningConfig) GetMaxFrameRate() float64 {
	if c.MaxFrameRate == nil {
		return 0
	}
	return *c.MaxFrameRate
}

// MinFrameInterval converts MaxFrameRate to the minimum spacing between
// processed frames. Zero means every frame is processed.
func (c *TuningConfig) MinFrameInterval() time.Duration {
	rate := c.GetMaxFrameRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / rate)
}
