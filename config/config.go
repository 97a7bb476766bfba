package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/brettbedarf/seamfs/internal/util"
	"gopkg.in/yaml.v3"
)

// Bytes per KB
const KB = 1024

// Default configuration constants. See [Config] for field descriptions.
const (
	// DefaultMarker follows an archive file's name to turn it into a directory,
	// as in /backups/site.zip#/index.html
	DefaultMarker = "#"

	// DefaultPipeBufferSize is the ring size of producer/consumer pipes
	DefaultPipeBufferSize = 4 * KB

	// DefaultSeekChunkSize is how much a seek-emulating stream pulls per fill
	DefaultSeekChunkSize = 80 * KB

	// DefaultCopyBufferSize is the buffer used by stream copies
	DefaultCopyBufferSize = 80 * KB

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultDirectIO determines whether to bypass page cache for archive entries
	DefaultDirectIO = true
)

// CLI verbosity bounds as used by the -v flag
const (
	ErrorVerbose = 1
	WarnVerbose  = 2
	InfoVerbose  = 3
	DebugVerbose = 4
	TraceVerbose = 5
)

// Config contains runtime configuration values for the composed filesystem.
type Config struct {
	MountOptions
	LogLvl         util.LogLevel // Internal log level (Default info)
	Marker         string        // Mount marker placed after an archive name (Default "#")
	PipeBufferSize int           // Ring size of producer/consumer pipes in bytes (Default 4KB)
	SeekChunkSize  int           // Fill step of seek-emulating streams in bytes (Default 80KB)
	CopyBufferSize int           // Buffer size for stream copies in bytes (Default 80KB)
	ArchiveFormats []string      // Enabled archive formats; empty enables every built-in
	ReadOnly       bool          // Reject writes to the base backend (Default false)
	// NOTE: FUSE settings, only used when mounting:

	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
	DirectIO     bool    // Whether to bypass page cache (Default true)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl is the CLI verbosity between 1 (error) and 5 (trace)
	LogLvl         *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	Marker         *string  `yaml:"marker,omitempty" json:"marker,omitempty"`
	PipeBufferSize *int     `yaml:"pipe_buffer_size,omitempty" json:"pipe_buffer_size,omitempty"`
	SeekChunkSize  *int     `yaml:"seek_chunk_size,omitempty" json:"seek_chunk_size,omitempty"`
	CopyBufferSize *int     `yaml:"copy_buffer_size,omitempty" json:"copy_buffer_size,omitempty"`
	ArchiveFormats []string `yaml:"archive_formats,omitempty" json:"archive_formats,omitempty"`
	ReadOnly       *bool    `yaml:"read_only,omitempty" json:"read_only,omitempty"`
	Debug          *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	FsName         *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name           *string  `yaml:"name,omitempty" json:"name,omitempty"`
	AttrTimeout    *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout   *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	DirectIO       *bool    `yaml:"direct_io,omitempty" json:"direct_io,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:         util.InfoLevel,
		Marker:         DefaultMarker,
		PipeBufferSize: DefaultPipeBufferSize,
		SeekChunkSize:  DefaultSeekChunkSize,
		CopyBufferSize: DefaultCopyBufferSize,
		AttrTimeout:    DefaultAttrTimeout,
		EntryTimeout:   DefaultEntryTimeout,
		DirectIO:       DefaultDirectIO,
	}
}

// NewConfig returns the defaults with override applied on top. A nil override
// yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// VerboseToLogLevel clamps a CLI verbosity to 1-5 and maps it to a log level.
func VerboseToLogLevel(verbose int) util.LogLevel {
	verbose = min(max(verbose, ErrorVerbose), TraceVerbose)
	lvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return lvls[verbose-1]
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerboseToLogLevel(*override.LogLvl)
	}
	if override.Marker != nil {
		c.Marker = *override.Marker
	}
	if override.PipeBufferSize != nil {
		c.PipeBufferSize = *override.PipeBufferSize
	}
	if override.SeekChunkSize != nil {
		c.SeekChunkSize = *override.SeekChunkSize
	}
	if override.CopyBufferSize != nil {
		c.CopyBufferSize = *override.CopyBufferSize
	}
	if override.ArchiveFormats != nil {
		c.ArchiveFormats = append([]string(nil), override.ArchiveFormats...)
	}
	if override.ReadOnly != nil {
		c.ReadOnly = *override.ReadOnly
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
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
	if override.DirectIO != nil {
		c.DirectIO = *override.DirectIO
	}
}

// MarkerRune returns the marker as a rune. Call [Config.Validate] first.
func (c *Config) MarkerRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Marker)
	return r
}

// Validate reports settings the filesystem cannot run with.
func (c *Config) Validate() error {
	if utf8.RuneCountInString(c.Marker) != 1 {
		return fmt.Errorf("marker must be exactly one character, got %q", c.Marker)
	}
	if c.Marker == "/" {
		return fmt.Errorf("marker must differ from the path separator")
	}
	if c.PipeBufferSize <= 0 || c.SeekChunkSize <= 0 || c.CopyBufferSize <= 0 {
		return fmt.Errorf("buffer sizes must be positive")
	}
	return nil
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
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
