// Package config holds the immutable run configuration for the engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixonmars/watchexec/internal/event"
)

// Policy governs what happens when a trigger arrives while the job is busy.
type Policy string

const (
	// PolicyQueue waits for the current run to exit, then starts once.
	PolicyQueue Policy = "queue"
	// PolicyRestart terminates the current run and starts fresh.
	PolicyRestart Policy = "restart"
	// PolicySignal delivers BusySignal to the running group and keeps it.
	PolicySignal Policy = "signal"
)

// Config is created once at startup and never mutated afterwards.
type Config struct {
	Command []string `yaml:"command"`
	WorkDir string   `yaml:"workdir"`
	Env     []string `yaml:"env"`

	Debounce   Duration     `yaml:"debounce"`
	Grace      Duration     `yaml:"grace"`
	StopSignal event.Signal `yaml:"stop_signal"`
	Policy     Policy       `yaml:"policy"`
	BusySignal event.Signal `yaml:"busy_signal"`

	WatchPaths     []string `yaml:"watch_paths"`
	WatchPatterns  []string `yaml:"watch_patterns"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
	ProjectRoot    string   `yaml:"project_root"`

	JournalPath string `yaml:"journal_path"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Debounce:   Duration(50 * time.Millisecond),
		Grace:      Duration(5 * time.Second),
		StopSignal: event.SIGTERM,
		Policy:     PolicyQueue,
		BusySignal: event.SIGTERM,
		WatchPaths: []string{"."},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variable overrides, in that precedence order. The result is
// not yet validated; callers merge in anything that arrives separately
// (such as the command line) and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if ms := os.Getenv("WATCHEXEC_DEBOUNCE_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v >= 0 {
			c.Debounce = Duration(time.Duration(v) * time.Millisecond)
		}
	}
	if ms := os.Getenv("WATCHEXEC_GRACE_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v >= 0 {
			c.Grace = Duration(time.Duration(v) * time.Millisecond)
		}
	}
	if sig := os.Getenv("WATCHEXEC_STOP_SIGNAL"); sig != "" {
		if parsed, err := event.ParseSignal(sig); err == nil {
			c.StopSignal = parsed
		}
	}
	if policy := os.Getenv("WATCHEXEC_ON_BUSY"); policy != "" {
		c.Policy = Policy(policy)
	}
}

// Validate checks invariants that hold for the lifetime of a run.
func (c *Config) Validate() error {
	if len(c.Command) == 0 {
		return fmt.Errorf("no command configured")
	}
	switch c.Policy {
	case PolicyQueue, PolicyRestart, PolicySignal:
	default:
		return fmt.Errorf("unknown busy policy %q", c.Policy)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	if c.Grace < 0 {
		return fmt.Errorf("grace period must not be negative")
	}
	if _, err := event.ParseSignal(string(c.StopSignal)); err != nil {
		return fmt.Errorf("stop signal: %w", err)
	}
	if c.Policy == PolicySignal {
		if _, err := event.ParseSignal(string(c.BusySignal)); err != nil {
			return fmt.Errorf("busy signal: %w", err)
		}
	}
	return nil
}
