package config

import (
	"fmt"
	"runtime"

	coretypes "github.com/projecteru2/core/types"
)

// Config holds global pullwatch configuration.
type Config struct {
	// RootDir is the base directory for blobs, extracted layers and the index.
	RootDir string `json:"root_dir" mapstructure:"root_dir"`
	// PoolSize bounds concurrent layer fetches. Defaults to runtime.NumCPU().
	PoolSize int `json:"pool_size" mapstructure:"pool_size"`
	// MaxTasks caps the background tasks that render job progress.
	MaxTasks int `json:"max_tasks" mapstructure:"max_tasks"`
	// Display is auto, bar or log.
	Display string `json:"display" mapstructure:"display"`
	// Platform selects the manifest from an index, as os/arch[/variant].
	Platform string `json:"platform" mapstructure:"platform"`
	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log" mapstructure:"log"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RootDir:  "/var/lib/pullwatch",
		PoolSize: runtime.NumCPU(),
		MaxTasks: 256, //nolint:mnd
		Display:  "auto",
		Platform: "linux/" + runtime.GOARCH,
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    500,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// Normalize fills zero values left by a partial config file.
func (c *Config) Normalize() error {
	if c.RootDir == "" {
		return fmt.Errorf("root_dir is empty")
	}
	if c.PoolSize <= 0 {
		c.PoolSize = runtime.NumCPU()
	}
	if c.MaxTasks <= 0 {
		c.MaxTasks = 256 //nolint:mnd
	}
	switch c.Display {
	case "":
		c.Display = "auto"
	case "auto", "bar", "log":
	default:
		return fmt.Errorf("invalid display %q (want auto, bar or log)", c.Display)
	}
	if c.Platform == "" {
		c.Platform = "linux/" + runtime.GOARCH
	}
	return nil
}
