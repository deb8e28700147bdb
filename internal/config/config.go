// Package config provides the swarm runtime configuration and the typed
// pipeline document model. Runtime settings (state directory, timeouts,
// retry budgets, agent CLI) are loaded through viper; the pipeline document
// itself is parsed with yaml.v3 so the ordered phase list and its tagged
// variants survive decoding.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete swarm runtime configuration.
type Config struct {
	StateDir string        `mapstructure:"state_dir"`
	RepoDir  string        `mapstructure:"repo_dir"`
	Logging  LoggingConfig `mapstructure:"logging"`
	Session  SessionConfig `mapstructure:"session"`
	Engine   EngineConfig  `mapstructure:"engine"`
	Agent    AgentConfig   `mapstructure:"agent"`
}

// LoggingConfig controls the debug log.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level"`
}

// SessionConfig controls agent session behavior.
type SessionConfig struct {
	// TimeoutMinutes is how long one agent call may take before it fails
	// with a timeout error (default: 5).
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
	// RetryAttempts is the per-call retry budget for transient session
	// and timeout errors (default: 3).
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryBackoffSeconds is the initial backoff between attempts,
	// doubled per attempt (default: 2).
	RetryBackoffSeconds int `mapstructure:"retry_backoff_seconds"`
}

// EngineConfig controls pipeline engine behavior.
type EngineConfig struct {
	// MaxAutoResume is how many times the engine restarts itself from the
	// checkpoint after an unhandled mid-run failure before requiring
	// manual intervention (default: 2).
	MaxAutoResume int `mapstructure:"max_auto_resume"`
	// MaxParallel bounds concurrent streams within one wave (default: 3).
	MaxParallel int `mapstructure:"max_parallel"`
}

// AgentConfig controls how agent CLI sessions are launched.
type AgentConfig struct {
	// Command is the coding agent CLI binary (default: "copilot").
	Command string `mapstructure:"command"`
	// Args are extra arguments prepended to every invocation.
	Args []string `mapstructure:"args"`
	// ModelFlag is the flag used to select a model (default: "--model").
	ModelFlag string `mapstructure:"model_flag"`
}

// SetDefaults registers default values with viper. Called before reading
// any config file so defaults apply even without one.
func SetDefaults() {
	viper.SetDefault("state_dir", defaultStateDir())
	viper.SetDefault("repo_dir", ".")
	viper.SetDefault("logging.level", "INFO")
	viper.SetDefault("session.timeout_minutes", 5)
	viper.SetDefault("session.retry_attempts", 3)
	viper.SetDefault("session.retry_backoff_seconds", 2)
	viper.SetDefault("engine.max_auto_resume", 2)
	viper.SetDefault("engine.max_parallel", 3)
	viper.SetDefault("agent.command", "copilot")
	viper.SetDefault("agent.model_flag", "--model")
}

// Load builds a Config from viper's current state.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SessionTimeout returns the configured per-call timeout as a duration.
func (c *Config) SessionTimeout() time.Duration {
	minutes := c.Session.TimeoutMinutes
	if minutes <= 0 {
		minutes = 5
	}
	return time.Duration(minutes) * time.Minute
}

// RetryBackoff returns the configured initial retry backoff as a duration.
func (c *Config) RetryBackoff() time.Duration {
	seconds := c.Session.RetryBackoffSeconds
	if seconds <= 0 {
		seconds = 2
	}
	return time.Duration(seconds) * time.Second
}

// ConfigDir returns the directory where swarm looks for its config file.
func ConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "swarm")
	}
	return "."
}

// defaultStateDir returns the per-user directory for run state.
func defaultStateDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".swarm")
	}
	return ".swarm"
}
