package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/grafana/regexp"
	"github.com/pelletier/go-toml/v2"

	"pipecore/internal/value"
)

const (
	defaultLogLevel      = "info"
	defaultLogFormat     = "line"
	defaultDecodeWorkers = 4
	defaultBatchSize     = 1
	defaultOutputFormat  = "json"
	defaultOutputPath    = "-"
	defaultSourceTimeout = 5 * time.Second
)

// Duration wraps time.Duration for TOML parsing.
// Params: text duration string (e.g. "5s", "1m").
// Returns: parse error on invalid duration.
type Duration struct {
	time.Duration
}

// UnmarshalText parses TOML duration values.
// Params: text is raw duration bytes from TOML.
// Returns: error when value is not a valid Go duration.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}

	d.Duration = parsed
	return nil
}

// Config represents the root pipecore configuration.
// Params: TOML document sections.
// Returns: validated runtime configuration.
type Config struct {
	Global  GlobalConfig  `toml:"global"`
	Log     LogConfig     `toml:"log"`
	Decode  DecodeConfig  `toml:"decode"`
	Schema  SchemaConfig  `toml:"schema"`
	Sources SourcesConfig `toml:"sources"`
}

// GlobalConfig contains process-wide settings.
type GlobalConfig struct {
	// Host tags host metrics; defaults to the OS hostname.
	Host string `toml:"host"`
}

// LogConfig contains console/file logging configuration.
// Params: console and file sink options.
// Returns: logger sink settings.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink options from TOML.
// Returns: sink setup.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// DecodeConfig controls how exposition inputs are decoded and written.
type DecodeConfig struct {
	// Workers bounds the number of inputs decoded concurrently.
	Workers int `toml:"workers"`
	// PreciseTypes declares the per-kind union type instead of the coarse one.
	PreciseTypes bool `toml:"precise_types"`
	// Format is the output encoding: json or proto.
	Format string `toml:"format"`
	// Output is the destination file; "-" writes to stdout.
	Output string `toml:"output"`
	// BatchSize is the number of records per log batch.
	BatchSize int `toml:"batch_size"`
}

// SchemaConfig declares the outputs of upstream components.
type SchemaConfig struct {
	// StrictPurposes rejects configurations where merged components bind one
	// purpose to different fields.
	StrictPurposes bool              `toml:"strict_purposes"`
	Components     []ComponentConfig `toml:"component"`
}

// ComponentConfig declares one component's output fields.
type ComponentConfig struct {
	Name   string        `toml:"name"`
	Fields []FieldConfig `toml:"field"`
}

// FieldConfig declares one field of a component output.
// Params: path in `a.b[0]` syntax, kind such as "bytes | null", optional purpose.
// Returns: field declaration.
type FieldConfig struct {
	Path    string `toml:"path"`
	Kind    string `toml:"kind"`
	Purpose string `toml:"purpose"`
}

// SourcesConfig selects the built-in event sources.
type SourcesConfig struct {
	Timeout  Duration             `toml:"timeout"`
	Host     HostSourceConfig     `toml:"host"`
	Registry RegistrySourceConfig `toml:"registry"`
}

// HostSourceConfig selects host subsystems. When enabled with no subsystem
// selected, all of them are read.
type HostSourceConfig struct {
	Enabled bool `toml:"enabled"`
	CPU     bool `toml:"cpu"`
	RAM     bool `toml:"ram"`
	Swap    bool `toml:"swap"`
	FS      bool `toml:"fs"`
	// FSExclude lists mountpoint regular expressions skipped by the fs scraper.
	FSExclude []string `toml:"fs_exclude"`
}

// RegistrySourceConfig enables export of the process's own runtime metrics.
type RegistrySourceConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a configuration with every default applied.
// Params: none.
// Returns: config usable without a file.
func Default() (*Config, error) {
	var cfg Config
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads, expands, decodes, defaults, and validates configuration.
// Params: path to a TOML file or a directory of *.toml files.
// Returns: validated config or error.
func Load(path string) (*Config, error) {
	raw, err := readConfigSource(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("decode TOML %q: %w", path, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// readConfigSource reads one TOML file or concatenates *.toml files from directory.
// Params: path to config file or directory.
// Returns: raw TOML bytes or error.
func readConfigSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config %q: %w", path, err)
	}

	if !info.IsDir() {
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", path, readErr)
		}
		return raw, nil
	}

	return readConfigDir(path)
}

// readConfigDir concatenates config snippets from one directory.
// Params: path to directory that contains *.toml files.
// Returns: concatenated TOML content or error.
func readConfigDir(path string) ([]byte, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read config dir %q: %w", path, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".toml") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("read config dir %q: no *.toml files", path)
	}

	var builder strings.Builder
	for _, name := range files {
		filePath := filepath.Join(path, name)
		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", filePath, readErr)
		}
		builder.Write(raw)
		if len(raw) == 0 || raw[len(raw)-1] != '\n' {
			builder.WriteByte('\n')
		}
		builder.WriteByte('\n')
	}

	return []byte(builder.String()), nil
}

// applyDefaults fills defaults for optional configuration fields.
// Params: receiver config pointer.
// Returns: error if defaulting needs host lookup and it fails.
func (c *Config) applyDefaults() error {
	c.Log.Console.Level = lowerOrDefault(c.Log.Console.Level, defaultLogLevel)
	c.Log.Console.Format = lowerOrDefault(c.Log.Console.Format, defaultLogFormat)
	c.Log.File.Level = lowerOrDefault(c.Log.File.Level, defaultLogLevel)
	c.Log.File.Format = lowerOrDefault(c.Log.File.Format, "json")

	if !c.Log.Console.Enabled && !c.Log.File.Enabled {
		c.Log.Console.Enabled = true
	}

	if strings.TrimSpace(c.Global.Host) == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("resolve hostname: %w", err)
		}
		c.Global.Host = host
	}

	if c.Decode.Workers == 0 {
		c.Decode.Workers = defaultDecodeWorkers
	}
	if c.Decode.BatchSize == 0 {
		c.Decode.BatchSize = defaultBatchSize
	}
	c.Decode.Format = lowerOrDefault(c.Decode.Format, defaultOutputFormat)
	if strings.TrimSpace(c.Decode.Output) == "" {
		c.Decode.Output = defaultOutputPath
	}

	if c.Sources.Timeout.Duration <= 0 {
		c.Sources.Timeout.Duration = defaultSourceTimeout
	}
	host := &c.Sources.Host
	if host.Enabled && !host.CPU && !host.RAM && !host.Swap && !host.FS {
		host.CPU, host.RAM, host.Swap, host.FS = true, true, true, true
	}

	for idx := range c.Schema.Components {
		component := &c.Schema.Components[idx]
		component.Name = strings.TrimSpace(component.Name)
		for fieldIdx := range component.Fields {
			field := &component.Fields[fieldIdx]
			field.Kind = lowerOrDefault(field.Kind, "any")
			field.Purpose = strings.ToLower(strings.TrimSpace(field.Purpose))
		}
	}

	return nil
}

// validate checks config consistency and required fields.
// Params: receiver config pointer.
// Returns: validation error for invalid or incomplete config.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Global.Host) == "" {
		return fmt.Errorf("global.host resolved to empty value")
	}

	if err := validateSink("log.console", c.Log.Console, false); err != nil {
		return err
	}
	if err := validateSink("log.file", c.Log.File, true); err != nil {
		return err
	}

	if c.Decode.Workers < 1 {
		return fmt.Errorf("decode.workers must be >= 1")
	}
	if c.Decode.BatchSize < 1 {
		return fmt.Errorf("decode.batch_size must be >= 1")
	}
	switch c.Decode.Format {
	case "json", "proto":
	default:
		return fmt.Errorf("decode.format: unsupported value %q", c.Decode.Format)
	}

	for idx, pattern := range c.Sources.Host.FSExclude {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("sources.host.fs_exclude[%d]: %w", idx, err)
		}
	}

	return validateComponents("schema.component", c.Schema.Components)
}

// validateComponents checks component names and field declarations.
// Params: path prefix for errors; components to check.
// Returns: first validation error or nil.
func validateComponents(path string, components []ComponentConfig) error {
	seen := make(map[string]struct{}, len(components))
	for idx, component := range components {
		itemPath := fmt.Sprintf("%s[%d]", path, idx)
		if component.Name == "" {
			return fmt.Errorf("%s.name is required", itemPath)
		}
		if _, ok := seen[component.Name]; ok {
			return fmt.Errorf("%s.name %q is duplicated", itemPath, component.Name)
		}
		seen[component.Name] = struct{}{}

		for fieldIdx, field := range component.Fields {
			fieldPath := fmt.Sprintf("%s.field[%d]", itemPath, fieldIdx)
			if strings.TrimSpace(field.Path) == "" {
				return fmt.Errorf("%s.path is required", fieldPath)
			}
			if _, err := value.ParsePath(field.Path); err != nil {
				return fmt.Errorf("%s.path: %w", fieldPath, err)
			}
			if _, err := value.ParseKind(field.Kind); err != nil {
				return fmt.Errorf("%s.kind: %w", fieldPath, err)
			}
		}
	}
	return nil
}

// validateSink validates one logging sink configuration.
// Params: name is sink path for errors; sink is sink config; requirePath means path required when enabled.
// Returns: validation error or nil.
func validateSink(name string, sink LogSinkConfig, requirePath bool) error {
	if sink.Enabled && requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required when sink is enabled", name)
	}

	if err := validateLogLevel(sink.Level); err != nil {
		return fmt.Errorf("%s.level: %w", name, err)
	}
	if err := validateLogFormat(sink.Format); err != nil {
		return fmt.Errorf("%s.format: %w", name, err)
	}

	return nil
}

// validateLogLevel validates known log levels.
// Params: level is lower-case level name.
// Returns: error when level is unsupported.
func validateLogLevel(level string) error {
	switch strings.TrimSpace(strings.ToLower(level)) {
	case "info", "warn", "error", "panic", "debug":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", level)
	}
}

// validateLogFormat validates supported sink formats.
// Params: format is lower-case format name.
// Returns: error when format is unsupported.
func validateLogFormat(format string) error {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "line", "json":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", format)
	}
}

// lowerOrDefault returns a trimmed lower-case value or default fallback.
// Params: value to normalize; fallback value when empty.
// Returns: normalized value.
func lowerOrDefault(raw, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return fallback
	}
	return normalized
}
