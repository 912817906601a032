package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/assemblyfs/internal/util"
	"gopkg.in/yaml.v3"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	// DefaultArchiveFactory picks the archive reader from the file extension
	DefaultArchiveFactory = "auto"

	// DefaultModifiedCheckInterval is the minimum time between two stat checks of an archive
	DefaultModifiedCheckInterval = time.Second

	// DefaultIdleTimeout is how long an unused archive stays open
	DefaultIdleTimeout = 30 * time.Second

	// DefaultReaperInterval is how often idle archives are looked for
	DefaultReaperInterval = 5 * time.Second

	// DefaultTempPrefix names the per-assembly temp directories
	DefaultTempPrefix = "assemblyfs-"

	DefaultFsName = "assemblyfs"
	DefaultName   = "assemblyfs"

	// DefaultAttrTimeout is the FUSE attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the FUSE directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0
)

// CLI verbosity levels accepted by [ConfigOverride.LogLvl]
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// MountOptions names the FUSE export of an assembly.
type MountOptions struct {
	Debug  bool   // Log every FUSE request
	FsName string // Source column shown by mount(8)
	Name   string // Filesystem type suffix, shown as fuse.<Name>
}

// Config contains runtime configuration values for assemblies and their exports.
type Config struct {
	MountOptions

	LogLvl  util.LogLevel // Log level (Default info)
	LogFile string        // Rotated log file written in addition to the console; disabled when empty

	ArchiveFactory        string        // Name of the registered archive factory (Default "auto")
	ModifiedCheckInterval time.Duration // Minimum time between archive staleness checks (Default 1s)
	IdleTimeout           time.Duration // Time before an unused archive is released (Default 30s)
	ReaperInterval        time.Duration // How often idle archives are released; 0 disables (Default 5s)

	TempDir    string // Base directory for materialized entries; system temp dir when empty
	TempPrefix string // Prefix of per-assembly temp directories (Default "assemblyfs-")

	// NOTE: FUSE export only

	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	LogLvl                *int      `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	LogFile               *string   `yaml:"log_file,omitempty" json:"log_file,omitempty"`
	ArchiveFactory        *string   `yaml:"archive_factory,omitempty" json:"archive_factory,omitempty"`
	ModifiedCheckInterval *Duration `yaml:"modified_check_interval,omitempty" json:"modified_check_interval,omitempty"`
	IdleTimeout           *Duration `yaml:"idle_timeout,omitempty" json:"idle_timeout,omitempty"`
	ReaperInterval        *Duration `yaml:"reaper_interval,omitempty" json:"reaper_interval,omitempty"`
	TempDir               *string   `yaml:"temp_dir,omitempty" json:"temp_dir,omitempty"`
	TempPrefix            *string   `yaml:"temp_prefix,omitempty" json:"temp_prefix,omitempty"`
	FsName                *string   `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name                  *string   `yaml:"name,omitempty" json:"name,omitempty"`
	AttrTimeout           *float64  `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout          *float64  `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:                DefaultLogLvl,
		ArchiveFactory:        DefaultArchiveFactory,
		ModifiedCheckInterval: DefaultModifiedCheckInterval,
		IdleTimeout:           DefaultIdleTimeout,
		ReaperInterval:        DefaultReaperInterval,
		TempPrefix:            DefaultTempPrefix,
		AttrTimeout:           DefaultAttrTimeout,
		EntryTimeout:          DefaultEntryTimeout,
	}
}

// NewConfig creates a Config from the defaults with override applied. A nil
// override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = verboseToLogLevel(*override.LogLvl)
	}
	if override.LogFile != nil {
		c.LogFile = *override.LogFile
	}
	if override.ArchiveFactory != nil {
		c.ArchiveFactory = *override.ArchiveFactory
	}
	if override.ModifiedCheckInterval != nil {
		c.ModifiedCheckInterval = override.ModifiedCheckInterval.Duration
	}
	if override.IdleTimeout != nil {
		c.IdleTimeout = override.IdleTimeout.Duration
	}
	if override.ReaperInterval != nil {
		c.ReaperInterval = override.ReaperInterval.Duration
	}
	if override.TempDir != nil {
		c.TempDir = *override.TempDir
	}
	if override.TempPrefix != nil {
		c.TempPrefix = *override.TempPrefix
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
}

// verboseToLogLevel maps CLI verbosity 1 (error) to 5 (trace) onto log levels,
// clamping out of range values.
func verboseToLogLevel(verbose int) util.LogLevel {
	verbose = max(ErrorVerbose, min(TraceVerbose, verbose))
	logLvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return logLvls[verbose-1]
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	var override ConfigOverride
	if err := decodeFile(path, &override); err != nil {
		return nil, err
	}
	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}

// decodeFile unmarshals a YAML or JSON file into v, choosing the format by extension.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return fmt.Errorf("unknown config file extension: %s", path)
	}
	return nil
}
