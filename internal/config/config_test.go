package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pipecore/internal/config"
)

// TestLoad_ExpandsEnvAndAppliesDefaults verifies env expansion and defaulting.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_OUTPUT", "/tmp/records.jsonl")

	path := writeConfig(t, `
[global]
host = ""

[decode]
output = "${TEST_OUTPUT}"
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Decode.Output != "/tmp/records.jsonl" {
		t.Fatalf("unexpected output: %q", cfg.Decode.Output)
	}
	if cfg.Global.Host == "" {
		t.Fatalf("expected host default")
	}
	if !cfg.Log.Console.Enabled {
		t.Fatalf("expected console logging to be enabled by default")
	}
	if cfg.Log.Console.Level != "info" || cfg.Log.Console.Format != "line" {
		t.Fatalf("unexpected console defaults: %+v", cfg.Log.Console)
	}
	if got := cfg.Decode.Workers; got != 4 {
		t.Fatalf("unexpected default workers: %d", got)
	}
	if got := cfg.Decode.BatchSize; got != 1 {
		t.Fatalf("unexpected default batch size: %d", got)
	}
	if cfg.Decode.Format != "json" || cfg.Decode.PreciseTypes {
		t.Fatalf("unexpected decode defaults: %+v", cfg.Decode)
	}
	if got := cfg.Sources.Timeout.Duration; got != 5*time.Second {
		t.Fatalf("unexpected default source timeout: %v", got)
	}
}

// TestDefault verifies the file-less configuration.
// Params: testing.T for assertions.
// Returns: none.
func TestDefault(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if cfg.Decode.Output != "-" || cfg.Sources.Host.Enabled || cfg.Sources.Registry.Enabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

// TestLoad_ConfigDirMergesTomlFiles verifies config directory loading and file-order merge.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ConfigDirMergesTomlFiles(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"00-decode.toml": `
[decode]
workers = 2
precise_types = true
format = "PROTO"
`,
		"20-schema-z.toml": `
[[schema.component]]
name = "z"
`,
		"11-schema-a.toml": `
[[schema.component]]
name = "a"

[[schema.component.field]]
path = "meta.ts"
kind = "timestamp | integer"
purpose = "Timestamp"
`,
	})

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load config dir: %v", err)
	}

	if cfg.Decode.Workers != 2 || !cfg.Decode.PreciseTypes || cfg.Decode.Format != "proto" {
		t.Fatalf("unexpected decode section: %+v", cfg.Decode)
	}
	if len(cfg.Schema.Components) != 2 {
		t.Fatalf("unexpected components count: %d", len(cfg.Schema.Components))
	}
	if cfg.Schema.Components[0].Name != "a" || cfg.Schema.Components[1].Name != "z" {
		t.Fatalf("unexpected component order: [%q,%q]", cfg.Schema.Components[0].Name, cfg.Schema.Components[1].Name)
	}
	field := cfg.Schema.Components[0].Fields[0]
	if field.Path != "meta.ts" || field.Purpose != "timestamp" {
		t.Fatalf("unexpected field: %+v", field)
	}
}

// TestLoad_ConfigDirRejectsWithoutToml verifies config dir validation on empty/non-toml-only directories.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ConfigDirRejectsWithoutToml(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not a config"), 0o644); err != nil {
		t.Fatalf("write non-toml file: %v", err)
	}

	_, err := config.Load(dir)
	if err == nil {
		t.Fatalf("expected error for config dir without *.toml")
	}
	if !strings.Contains(err.Error(), "no *.toml files") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestLoad_ConfigDirIgnoresNonToml verifies non-toml files are ignored when valid toml files exist.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ConfigDirIgnoresNonToml(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"00-decode.toml": `
[decode]
workers = 1
`,
		"notes.md": `
this file should be ignored by config loader
`,
	})

	if _, err := config.Load(dir); err != nil {
		t.Fatalf("expected config dir with non-toml extras to load: %v", err)
	}
}

// TestLoad_HostSourceDefaultsToAllSubsystems verifies subsystem defaulting.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_HostSourceDefaultsToAllSubsystems(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
[sources]
timeout = "250ms"

[sources.host]
enabled = true
`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	host := cfg.Sources.Host
	if !host.CPU || !host.RAM || !host.Swap || !host.FS {
		t.Fatalf("expected all host subsystems, got %+v", host)
	}
	if cfg.Sources.Timeout.Duration != 250*time.Millisecond {
		t.Fatalf("unexpected timeout: %v", cfg.Sources.Timeout.Duration)
	}

	cfg, err = config.Load(writeConfig(t, `
[sources.host]
enabled = true
ram = true
`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if host := cfg.Sources.Host; host.CPU || !host.RAM || host.Swap || host.FS {
		t.Fatalf("explicit subsystem selection overridden: %+v", host)
	}
}

// TestLoad_RejectsInvalidValues verifies validation failures.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "workers", body: "[decode]\nworkers = -1\n", want: "decode.workers"},
		{name: "batch", body: "[decode]\nbatch_size = -3\n", want: "decode.batch_size"},
		{name: "format", body: "[decode]\nformat = \"xml\"\n", want: "decode.format"},
		{name: "fs exclude", body: "[sources.host]\nfs_exclude = [\"(\"]\n", want: "sources.host.fs_exclude[0]"},
		{name: "level", body: "[log.console]\nlevel = \"loud\"\n", want: "log.console.level"},
		{name: "file path", body: "[log.file]\nenabled = true\n", want: "log.file.path"},
		{name: "duration", body: "[sources]\ntimeout = \"soon\"\n", want: "parse duration"},
		{name: "component name", body: "[[schema.component]]\nname = \"\"\n", want: "schema.component[0].name is required"},
		{name: "duplicate component", body: "[[schema.component]]\nname = \"a\"\n[[schema.component]]\nname = \"a\"\n", want: "duplicated"},
		{name: "field path", body: "[[schema.component]]\nname = \"a\"\n[[schema.component.field]]\npath = \"a[x]\"\n", want: "schema.component[0].field[0].path"},
		{name: "field kind", body: "[[schema.component]]\nname = \"a\"\n[[schema.component.field]]\npath = \"a\"\nkind = \"decimal\"\n", want: "schema.component[0].field[0].kind"},
	}

	for _, tc := range cases {
		_, err := config.Load(writeConfig(t, tc.body))
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

// writeConfig creates a temp TOML config for tests.
// Params: t test handle; body TOML content.
// Returns: absolute path to temp config.
func writeConfig(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return path
}

// writeConfigDir creates a temp config directory populated with provided files.
// Params: t test handle; files map[name]body.
// Returns: absolute directory path.
func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write config file %q: %v", name, err)
		}
	}

	return dir
}
