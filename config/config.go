// Package config defines the image dumper's configuration file.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/imagedumper/capture"
	"go.viam.com/imagedumper/framesource"
	"go.viam.com/imagedumper/rimage"
	"go.viam.com/imagedumper/timesync"
)

// SourceType selects where frames come from.
type SourceType string

// The known source types.
const (
	SourceTypeBag SourceType = "bag"
	SourceTypeDir SourceType = "dir"
)

// DefaultInboxSize is how many frames may wait between a source and the capture loop.
const DefaultInboxSize = 64

// SourceConfig describes the frame source.
type SourceConfig struct {
	Type SourceType `json:"type"`
	Path string     `json:"path"`
}

// Validate ensures all parts of the config are valid.
func (sc *SourceConfig) Validate(path string) error {
	switch sc.Type {
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "type")
	case SourceTypeBag, SourceTypeDir:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown source type %q", sc.Type))
	}
	if sc.Path == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "path")
	}
	return nil
}

// Config is the full image dumper configuration.
type Config struct {
	ConfigFilePath string `json:"-"`

	Source          SourceConfig       `json:"source"`
	Topics          framesource.Topics `json:"topics"`
	QueueDepth      int                `json:"queue_depth"`
	ToleranceWindow time.Duration      `json:"tolerance_window"`
	DepthScale      float64            `json:"depth_scale"`
	DepthOverflow   string             `json:"depth_overflow"`
	PollInterval    time.Duration      `json:"poll_interval"`
	InboxSize       int                `json:"inbox_size"`
	OutputDir       string             `json:"output_dir"`
	LedgerPath      string             `json:"ledger_path"`
	LogFile         string             `json:"log_file"`
	Debug           bool               `json:"debug"`
}

// Default returns the configuration used for anything a file does not set.
func Default() *Config {
	return &Config{
		Topics:          framesource.DefaultTopics(),
		QueueDepth:      timesync.DefaultQueueDepth,
		ToleranceWindow: timesync.DefaultToleranceWindow,
		DepthScale:      rimage.DefaultDepthScale,
		DepthOverflow:   rimage.OverflowSaturate.String(),
		PollInterval:    capture.DefaultPollInterval,
		InboxSize:       DefaultInboxSize,
		OutputDir:       ".",
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if err := cfg.Source.Validate(fieldPath(path, "source")); err != nil {
		return err
	}
	if cfg.Source.Type == SourceTypeBag {
		topicsPath := fieldPath(path, "topics")
		for _, c := range timesync.Channels {
			if cfg.Topics.Topic(c) == "" {
				return utils.NewConfigValidationFieldRequiredError(topicsPath, c.String())
			}
		}
	}
	if err := cfg.SyncConfig().Validate(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if cfg.DepthScale <= 0 || math.IsInf(cfg.DepthScale, 0) || math.IsNaN(cfg.DepthScale) {
		return utils.NewConfigValidationError(path,
			errors.Errorf("depth_scale must be a positive number, got %v", cfg.DepthScale))
	}
	if _, err := rimage.OverflowPolicyFromString(cfg.DepthOverflow); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "depth_overflow"))
	}
	if cfg.PollInterval <= 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("poll_interval must be positive, got %s", cfg.PollInterval))
	}
	if cfg.InboxSize < 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("inbox_size must be at least 1, got %d", cfg.InboxSize))
	}
	return nil
}

// SyncConfig returns the synchronizer settings.
func (cfg *Config) SyncConfig() timesync.Config {
	return timesync.Config{QueueDepth: cfg.QueueDepth, ToleranceWindow: cfg.ToleranceWindow}
}

// SessionConfig returns the capture settings.
func (cfg *Config) SessionConfig() (capture.SessionConfig, error) {
	overflow, err := rimage.OverflowPolicyFromString(cfg.DepthOverflow)
	if err != nil {
		return capture.SessionConfig{}, err
	}
	return capture.SessionConfig{DepthScale: cfg.DepthScale, Overflow: overflow}, nil
}

func fieldPath(path, field string) string {
	if path == "" {
		return field
	}
	return fmt.Sprintf("%s.%s", path, field)
}
