// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "fsroots/internal/errors"
	"fsroots/internal/fsaccess"
	"fsroots/internal/tools"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(LogLevelEnv, "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Listing.DefaultMaxEntries != fsaccess.DefaultMaxEntries {
		t.Fatalf("expected default max entries, got %d", cfg.Listing.DefaultMaxEntries)
	}
	if cfg.Listing.DefaultFormat != "text" || cfg.Batch.Workers != 4 || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Roots) != 0 {
		t.Fatalf("expected no default roots, got %v", cfg.Roots)
	}
}

func TestLoadJSON(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	path := writeTempConfig(t, "fsroots.json", `{
		"roots": ["/srv/a", "/srv/b"],
		"listing": {"default_max_entries": 50, "default_format": "json"},
		"tools": {"deny": ["read_text_file"]},
		"tool_rate_limits": {"default_per_minute": 30, "per_tool": {"list_dir": 10}, "cooldown_seconds": {"list_dir": 2}},
		"tool_timeouts": {"default_seconds": 5, "per_tool_seconds": {"read_text_file": 1}},
		"batch": {"workers": 8},
		"log_level": "debug"
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(cfg.Roots, ",") != "/srv/a,/srv/b" {
		t.Fatalf("unexpected roots: %v", cfg.Roots)
	}
	if cfg.Listing.DefaultMaxEntries != 50 || cfg.Listing.DefaultFormat != "json" || cfg.Listing.DefaultDetailed {
		t.Fatalf("unexpected listing settings: %+v", cfg.Listing)
	}
	if cfg.Batch.Workers != 8 {
		t.Fatalf("expected 8 workers, got %d", cfg.Batch.Workers)
	}
	if cfg.CommandHistoryFile != ".fsroots_history" {
		t.Fatalf("unset fields keep defaults, got %q", cfg.CommandHistoryFile)
	}

	level, err := cfg.Level()
	if err != nil || level != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %v (%v)", level, err)
	}

	defaults := cfg.ListDefaults()
	if defaults.MaxEntries != 50 || defaults.Format != fsaccess.FormatJSON {
		t.Fatalf("unexpected list defaults: %+v", defaults)
	}
	if !cfg.ToolPolicy().Deny["read_text_file"] {
		t.Fatal("expected read_text_file to be denied")
	}

	rates := cfg.ToolRateLimitsConfig()
	if rates.RateForTool("list_dir") != 10 || rates.RateForTool("read_text_file") != 30 {
		t.Fatalf("unexpected rates: %+v", rates)
	}
	if rates.CooldownForTool("list_dir") != 2*time.Second {
		t.Fatalf("unexpected cooldown: %v", rates.CooldownForTool("list_dir"))
	}

	timeouts := cfg.ToolTimeoutsConfig()
	if timeouts.TimeoutForTool("read_text_file") != time.Second || timeouts.TimeoutForTool("list_dir") != 5*time.Second {
		t.Fatalf("unexpected timeouts: %+v", timeouts)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	path := writeTempConfig(t, "fsroots.yaml", `
roots:
  - /srv/docs
listing:
  default_detailed: true
batch:
  workers: 2
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0] != "/srv/docs" {
		t.Fatalf("unexpected roots: %v", cfg.Roots)
	}
	if !cfg.Listing.DefaultDetailed || cfg.Listing.DefaultMaxEntries != fsaccess.DefaultMaxEntries {
		t.Fatalf("unexpected listing settings: %+v", cfg.Listing)
	}
	if cfg.Batch.Workers != 2 {
		t.Fatalf("expected 2 workers, got %d", cfg.Batch.Workers)
	}
}

func TestEmptyFileUsesDefaults(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	cfg, err := LoadConfig(writeTempConfig(t, "fsroots.yaml", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Batch.Workers != 4 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestConfigValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown field", content: `{"unknown_field": 123}`},
		{name: "unknown nested field", content: `{"listing": {"max": 5}}`},
		{name: "invalid type", content: `{"roots": "/srv"}`},
		{name: "fractional integer", content: `{"batch": {"workers": 1.5}}`},
		{name: "zero workers", content: `{"batch": {"workers": 0}}`},
		{name: "unknown format", content: `{"listing": {"default_format": "xml"}}`},
		{name: "unknown log level", content: `{"log_level": "loud"}`},
		{name: "malformed", content: `{"roots": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(LogLevelEnv, "")
			_, err := LoadConfig(writeTempConfig(t, "fsroots.json", tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperrors.HasCode(err, apperrors.CodeConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLogLevelEnvOverride(t *testing.T) {
	path := writeTempConfig(t, "fsroots.json", `{"log_level": "error"}`)

	t.Setenv(LogLevelEnv, "WARN")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level, _ := cfg.Level(); level != zerolog.WarnLevel {
		t.Fatalf("expected env to override file, got %v", level)
	}

	t.Setenv(LogLevelEnv, "chatty")
	if _, err := LoadConfig(path); !apperrors.HasCode(err, apperrors.CodeConfiguration) {
		t.Fatalf("expected configuration error for bad env level, got %v", err)
	}
}

func TestMergeRoots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Roots = []string{"/a"}
	merged := cfg.MergeRoots([]string{"/b", "/a"})
	if strings.Join(merged, ",") != "/a,/b,/a" {
		t.Fatalf("unexpected merge: %v", merged)
	}
	if len(cfg.Roots) != 1 {
		t.Fatal("merge must not modify the config")
	}
}

func TestExampleConfigIsValid(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	cfg, err := LoadConfig(writeTempConfig(t, "fsroots.json", ExampleConfigJSON()))
	if err != nil {
		t.Fatalf("example config should validate: %v", err)
	}
	if len(cfg.Roots) != 2 {
		t.Fatalf("unexpected roots: %v", cfg.Roots)
	}
	if !strings.Contains(SchemaJSON(), `"additionalProperties": false`) {
		t.Fatal("schema should reject unknown fields")
	}
}

func TestValidateWarnings(t *testing.T) {
	registry := tools.NewRegistry(nil, tools.Options{})
	defer registry.Close()

	cfg := DefaultConfig()
	if warnings := cfg.Validate(registry); len(warnings) != 0 {
		t.Fatalf("defaults should not warn: %+v", warnings)
	}

	cfg.Listing.DefaultMaxEntries = 5000
	cfg.Tools.Deny = []string{"write_file"}
	cfg.ToolTimeouts.PerToolSeconds = map[string]int{"list_dir": 1, "grep": 2}

	warnings := cfg.Validate(registry)
	fields := map[string]bool{}
	for _, w := range warnings {
		fields[w.Field] = true
	}
	for _, field := range []string{"listing.default_max_entries", "tools.deny", "tool_timeouts.per_tool_seconds"} {
		if !fields[field] {
			t.Errorf("expected warning for %s, got %+v", field, warnings)
		}
	}
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %+v", warnings)
	}
}

func TestValidateAllToolsDenied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tools.Deny = []string{tools.ListDirToolName, tools.ReadTextFileToolName}

	registry := tools.NewRegistry(nil, cfg.RegistryOptions(nil))
	defer registry.Close()

	warnings := cfg.Validate(registry)
	if len(warnings) != 1 || warnings[0].Message != "every tool is disabled" {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
}
