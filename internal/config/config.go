// Package config loads baton's settings.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file,
// BATON_* environment variables. Command-line flags are applied by the CLI
// after Load returns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is the config file looked up in the working directory when no
// explicit path is given.
const DefaultFile = "baton.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BATON_"

const defaults = `
tasks_dir: tasks
task_ext: .md
state_dir: .baton
tool:
  command: claude
  prompt_flag: -p
  args:
    - --dangerously-skip-permissions
  timeout: 3m
  max_output_bytes: 10485760
  arg_limit: 0
run:
  section_delay: 3s
  task_delay: 5s
checkpoint:
  enabled: true
  interval: 5
  remote: origin
  author_name: baton
  author_email: baton@localhost
log:
  level: info
`

// topLevelKeys are root keys that contain underscores and must not be split
// into a section when mapped from environment variables.
var topLevelKeys = map[string]bool{
	"tasks_dir": true,
	"task_ext":  true,
	"state_dir": true,
}

// Config is the full runtime configuration.
type Config struct {
	TasksDir   string     `koanf:"tasks_dir"`
	TaskExt    string     `koanf:"task_ext"`
	StateDir   string     `koanf:"state_dir"`
	Tool       Tool       `koanf:"tool"`
	Run        Run        `koanf:"run"`
	Checkpoint Checkpoint `koanf:"checkpoint"`
	Log        Log        `koanf:"log"`
}

// Tool describes how the external command is invoked.
type Tool struct {
	Command        string        `koanf:"command"`
	PromptFlag     string        `koanf:"prompt_flag"`
	Args           []string      `koanf:"args"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxOutputBytes int           `koanf:"max_output_bytes"`
	// ArgLimit is the longest instruction passed as a direct argument.
	// Zero selects the host default.
	ArgLimit int `koanf:"arg_limit"`
}

// Run holds pacing between units of work.
type Run struct {
	SectionDelay time.Duration `koanf:"section_delay"`
	TaskDelay    time.Duration `koanf:"task_delay"`
}

// Checkpoint configures version-control checkpoints.
type Checkpoint struct {
	Enabled     bool   `koanf:"enabled"`
	Interval    int    `koanf:"interval"`
	Remote      string `koanf:"remote"`
	AuthorName  string `koanf:"author_name"`
	AuthorEmail string `koanf:"author_email"`
}

// Log configures the logger.
type Log struct {
	Level string `koanf:"level"`
}

// Load builds a Config. An empty path means DefaultFile in the working
// directory, which may be absent. An explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// optional
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps BATON_TOOL_MAX_OUTPUT_BYTES to tool.max_output_bytes and
// BATON_TASKS_DIR to tasks_dir.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if topLevelKeys[lower] {
		return lower
	}
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// Validate rejects settings the orchestrator cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TasksDir) == "" {
		return fmt.Errorf("tasks_dir must not be empty")
	}
	if !strings.HasPrefix(c.TaskExt, ".") {
		return fmt.Errorf("task_ext must start with a dot, got %q", c.TaskExt)
	}
	if strings.TrimSpace(c.StateDir) == "" {
		return fmt.Errorf("state_dir must not be empty")
	}
	if strings.TrimSpace(c.Tool.Command) == "" {
		return fmt.Errorf("tool.command must not be empty")
	}
	if c.Tool.Timeout <= 0 {
		return fmt.Errorf("tool.timeout must be positive, got %s", c.Tool.Timeout)
	}
	if c.Tool.MaxOutputBytes <= 0 {
		return fmt.Errorf("tool.max_output_bytes must be positive, got %d", c.Tool.MaxOutputBytes)
	}
	if c.Tool.ArgLimit < 0 {
		return fmt.Errorf("tool.arg_limit must not be negative, got %d", c.Tool.ArgLimit)
	}
	if c.Run.SectionDelay < 0 || c.Run.TaskDelay < 0 {
		return fmt.Errorf("run delays must not be negative")
	}
	if c.Checkpoint.Interval <= 0 {
		return fmt.Errorf("checkpoint.interval must be positive, got %d", c.Checkpoint.Interval)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}

// StatusFile is the path of the persisted status table.
func (c *Config) StatusFile() string {
	return filepath.Join(c.StateDir, "status.json")
}

// LogDir holds the daily logs.
func (c *Config) LogDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// SectionLogDir holds one output artifact per executed section.
func (c *Config) SectionLogDir() string {
	return filepath.Join(c.StateDir, "logs", "sections")
}

// EnsureStateDir creates the state and log directories.
func (c *Config) EnsureStateDir() error {
	for _, dir := range []string{c.StateDir, c.LogDir(), c.SectionLogDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
