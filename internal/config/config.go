// Package config loads contentidx settings from defaults, a user config
// file, a project config file and CONTENTIDX_* environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
)

// Config is the complete contentidx configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Engine  EngineConfig  `yaml:"engine" json:"engine"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// DataDir holds the index database and lock file. Relative paths are
	// resolved against the project root.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// PathsConfig configures which paths to include and exclude.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// EngineConfig tunes the indexing engine. Sizes are human readable
// ("64MB", "512KiB"), durations use time.ParseDuration syntax.
type EngineConfig struct {
	// Workers is the number of indexing workers. Zero uses one per CPU.
	Workers       int    `yaml:"workers" json:"workers"`
	WriterWorkers int    `yaml:"writer_workers" json:"writer_workers"`
	WriterBacklog int    `yaml:"writer_backlog" json:"writer_backlog"`
	MemoryCeiling string `yaml:"memory_ceiling" json:"memory_ceiling"`
	MaxFileSize   string `yaml:"max_file_size" json:"max_file_size"`
	PollInterval  string `yaml:"poll_interval" json:"poll_interval"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce    string `yaml:"debounce" json:"debounce"`
	EventBuffer int    `yaml:"event_buffer" json:"event_buffer"`
}

// StoreConfig configures the index store.
type StoreConfig struct {
	// CacheSize is the number of content hashes kept to skip rewriting
	// unchanged files.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LoggingConfig configures the file logger.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// ProjectFiles are the project config names, in lookup order.
var ProjectFiles = []string{".contentidx.yaml", ".contentidx.yml"}

// DefaultDataDir is the data directory inside a project root.
const DefaultDataDir = ".contentidx"

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.contentidx/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/go.sum",
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: append([]string(nil), defaultExcludePatterns...),
		},
		Engine: EngineConfig{
			Workers:       runtime.NumCPU(),
			WriterWorkers: 1,
			WriterBacklog: 64,
			MemoryCeiling: "64MiB",
			MaxFileSize:   "10MiB",
			PollInterval:  "100ms",
		},
		Watch: WatchConfig{
			Debounce:    "500ms",
			EventBuffer: 1000,
		},
		Store: StoreConfig{
			CacheSize: 4096,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		DataDir: DefaultDataDir,
	}
}

// GetUserConfigPath returns the user configuration file:
//   - $XDG_CONFIG_HOME/contentidx/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/contentidx/config.yaml
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "contentidx", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "contentidx", "config.yaml")
	}
	return filepath.Join(home, ".config", "contentidx", "config.yaml")
}

// Load builds the configuration for the project at dir. Later layers win:
//  1. Defaults
//  2. User config (~/.config/contentidx/config.yaml)
//  3. Project config (.contentidx.yaml in dir)
//  4. Environment variables (CONTENTIDX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if path := ProjectConfigPath(dir); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the project config in dir, or "" if none.
func ProjectConfigPath(dir string) string {
	for _, name := range ProjectFiles {
		if path := filepath.Join(dir, name); fileExists(path) {
			return path
		}
	}
	return ""
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeConfigNotFound, "read config file", err).WithDetail("path", path)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return cerrors.ConfigError("parse config file", err).
			WithDetail("path", path).
			WithSuggestion("check the YAML syntax of " + path)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies the non-zero values of other into c. Excludes extend
// the defaults instead of replacing them.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Engine.Workers != 0 {
		c.Engine.Workers = other.Engine.Workers
	}
	if other.Engine.WriterWorkers != 0 {
		c.Engine.WriterWorkers = other.Engine.WriterWorkers
	}
	if other.Engine.WriterBacklog != 0 {
		c.Engine.WriterBacklog = other.Engine.WriterBacklog
	}
	if other.Engine.MemoryCeiling != "" {
		c.Engine.MemoryCeiling = other.Engine.MemoryCeiling
	}
	if other.Engine.MaxFileSize != "" {
		c.Engine.MaxFileSize = other.Engine.MaxFileSize
	}
	if other.Engine.PollInterval != "" {
		c.Engine.PollInterval = other.Engine.PollInterval
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.EventBuffer != 0 {
		c.Watch.EventBuffer = other.Watch.EventBuffer
	}

	if other.Store.CacheSize != 0 {
		c.Store.CacheSize = other.Store.CacheSize
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}

	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
}

// applyEnvOverrides applies CONTENTIDX_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("CONTENTIDX_WORKERS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return cerrors.ConfigError("CONTENTIDX_WORKERS must be an integer", err).WithDetail("value", v)
		}
		c.Engine.Workers = n
	}
	if v := os.Getenv("CONTENTIDX_MEMORY_CEILING"); v != "" {
		c.Engine.MemoryCeiling = v
	}
	if v := os.Getenv("CONTENTIDX_MAX_FILE_SIZE"); v != "" {
		c.Engine.MaxFileSize = v
	}
	if v := os.Getenv("CONTENTIDX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CONTENTIDX_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Engine.Workers < 0 {
		return invalid("engine.workers", strconv.Itoa(c.Engine.Workers), "must be zero or positive")
	}
	if c.Engine.WriterWorkers < 1 {
		return invalid("engine.writer_workers", strconv.Itoa(c.Engine.WriterWorkers), "must be at least 1")
	}
	if c.Engine.WriterBacklog < 1 {
		return invalid("engine.writer_backlog", strconv.Itoa(c.Engine.WriterBacklog), "must be at least 1")
	}
	if ceiling, err := c.MemoryCeilingBytes(); err != nil {
		return err
	} else if ceiling <= 0 {
		return invalid("engine.memory_ceiling", c.Engine.MemoryCeiling, "must be greater than zero")
	}
	if _, err := c.MaxFileSizeBytes(); err != nil {
		return err
	}
	if d, err := c.PollInterval(); err != nil {
		return err
	} else if d <= 0 {
		return invalid("engine.poll_interval", c.Engine.PollInterval, "must be greater than zero")
	}
	if _, err := c.Debounce(); err != nil {
		return err
	}
	if c.Watch.EventBuffer < 1 {
		return invalid("watch.event_buffer", strconv.Itoa(c.Watch.EventBuffer), "must be at least 1")
	}
	if c.Store.CacheSize < 0 {
		return invalid("store.cache_size", strconv.Itoa(c.Store.CacheSize), "must be zero or positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", c.Logging.Level, "must be 'debug', 'info', 'warn', or 'error'")
	}
	if c.DataDir == "" {
		return invalid("data_dir", "", "must not be empty")
	}
	return nil
}

func invalid(field, value, rule string) error {
	return cerrors.ConfigError(fmt.Sprintf("%s %s, got %q", field, rule, value), nil).
		WithDetail("field", field)
}

// MemoryCeilingBytes parses engine.memory_ceiling.
func (c *Config) MemoryCeilingBytes() (int64, error) {
	return parseSize("engine.memory_ceiling", c.Engine.MemoryCeiling)
}

// MaxFileSizeBytes parses engine.max_file_size. Zero disables the limit.
func (c *Config) MaxFileSizeBytes() (int64, error) {
	return parseSize("engine.max_file_size", c.Engine.MaxFileSize)
}

// PollInterval parses engine.poll_interval.
func (c *Config) PollInterval() (time.Duration, error) {
	return parseDuration("engine.poll_interval", c.Engine.PollInterval)
}

// Debounce parses watch.debounce.
func (c *Config) Debounce() (time.Duration, error) {
	return parseDuration("watch.debounce", c.Watch.Debounce)
}

func parseSize(field, value string) (int64, error) {
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, cerrors.ConfigError(field+" is not a valid size", err).
			WithDetail("value", value).
			WithSuggestion(`use a size such as "64MB" or "512KiB"`)
	}
	if n > math.MaxInt64 {
		return 0, cerrors.ConfigError(field+" is too large", nil).
			WithDetail("value", value)
	}
	return int64(n), nil
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, cerrors.ConfigError(field+" is not a valid duration", err).
			WithDetail("value", value).
			WithSuggestion(`use a duration such as "500ms" or "2s"`)
	}
	if d < 0 {
		return 0, invalid(field, value, "must not be negative")
	}
	return d, nil
}

// ResolveDataDir returns the data directory for a project rooted at root.
func (c *Config) ResolveDataDir(root string) string {
	if filepath.IsAbs(c.DataDir) {
		return c.DataDir
	}
	return filepath.Join(root, c.DataDir)
}

// WriteYAML writes the configuration to path, backing up any file it
// replaces.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return cerrors.InternalError("marshal config", err)
	}

	if fileExists(path) {
		if _, err := Backup(path); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cerrors.New(cerrors.ErrCodeFilePermission, "write config file", err).WithDetail("path", path)
	}
	return nil
}

// FindProjectRoot walks up from startDir to the nearest directory holding
// .git or a project config. It returns startDir when there is none.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", cerrors.New(cerrors.ErrCodeInvalidPath, "resolve project root", err)
	}

	for dir := absDir; ; {
		if dirExists(filepath.Join(dir, ".git")) || ProjectConfigPath(dir) != "" {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
