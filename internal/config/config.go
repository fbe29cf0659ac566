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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "fsroots/internal/errors"
	"fsroots/internal/fsaccess"
	"fsroots/internal/tools"
)

// DefaultConfigFile is read from the working directory when no file is named.
const DefaultConfigFile = "fsroots.json"

// LogLevelEnv overrides log_level.
const LogLevelEnv = "FSROOTS_LOG_LEVEL"

// Config represents the application configuration
type Config struct {
	Roots              []string        `json:"roots,omitempty"`
	Listing            ListingSettings `json:"listing,omitempty"`
	Tools              ToolSettings    `json:"tools,omitempty"`
	ToolRateLimits     ToolRateLimits  `json:"tool_rate_limits,omitempty"`
	ToolTimeouts       ToolTimeouts    `json:"tool_timeouts,omitempty"`
	Batch              BatchSettings   `json:"batch,omitempty"`
	LogFile            string          `json:"log_file,omitempty"`
	LogLevel           string          `json:"log_level,omitempty"`
	CommandHistoryFile string          `json:"command_history_file,omitempty"`
}

// ListingSettings holds list_dir defaults.
type ListingSettings struct {
	DefaultMaxEntries int    `json:"default_max_entries,omitempty"`
	DefaultFormat     string `json:"default_format,omitempty"`
	DefaultDetailed   bool   `json:"default_detailed,omitempty"`
}

// ToolSettings lists disabled tools.
type ToolSettings struct {
	Deny []string `json:"deny,omitempty"`
}

// ToolRateLimits configures tool rate limits and cooldowns.
type ToolRateLimits struct {
	DefaultPerMinute int            `json:"default_per_minute,omitempty"`
	PerTool          map[string]int `json:"per_tool,omitempty"`
	CooldownSeconds  map[string]int `json:"cooldown_seconds,omitempty"`
}

// ToolTimeouts configures tool execution timeouts.
type ToolTimeouts struct {
	DefaultSeconds int            `json:"default_seconds,omitempty"`
	PerToolSeconds map[string]int `json:"per_tool_seconds,omitempty"`
}

// BatchSettings configures the batch runner.
type BatchSettings struct {
	Workers int `json:"workers,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Listing: ListingSettings{
			DefaultMaxEntries: fsaccess.DefaultMaxEntries,
			DefaultFormat:     string(fsaccess.FormatText),
		},
		Batch:              BatchSettings{Workers: 4},
		LogLevel:           "info",
		CommandHistoryFile: ".fsroots_history",
	}
}

// LoadConfig loads configuration from a JSON or YAML file and applies env
// overrides. A missing file yields the defaults. Any other problem is a
// configuration error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		normalized, err := normalizeConfig(data)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfiguration, fmt.Sprintf("invalid config file %s", path), err)
		}
		if err := json.Unmarshal(normalized, config); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfiguration, fmt.Sprintf("invalid config file %s", path), err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, fmt.Sprintf("cannot read config file %s", path), err)
	}

	if val := strings.TrimSpace(os.Getenv(LogLevelEnv)); val != "" {
		config.LogLevel = val
	}
	if _, err := config.Level(); err != nil {
		return nil, err
	}

	return config, nil
}

// Level parses log_level.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, apperrors.Newf(apperrors.CodeConfiguration, "invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// MergeRoots returns the configured roots followed by extra, in order.
func (c *Config) MergeRoots(extra []string) []string {
	merged := make([]string, 0, len(c.Roots)+len(extra))
	merged = append(merged, c.Roots...)
	return append(merged, extra...)
}

// ToolPolicy converts config settings into a tool policy.
func (c *Config) ToolPolicy() tools.Policy {
	return tools.PolicyFromDenyList(c.Tools.Deny)
}

// ListDefaults returns list_dir defaults for the registry.
func (c *Config) ListDefaults() tools.ListDefaults {
	format, err := fsaccess.ParseFormat(c.Listing.DefaultFormat)
	if err != nil {
		format = fsaccess.FormatText
	}
	return tools.ListDefaults{
		MaxEntries: c.Listing.DefaultMaxEntries,
		Format:     format,
		Detailed:   c.Listing.DefaultDetailed,
	}
}

// ToolRateLimitsConfig returns rate limiting configuration for tools.
func (c *Config) ToolRateLimitsConfig() tools.RateLimitConfig {
	cooldowns := make(map[string]time.Duration, len(c.ToolRateLimits.CooldownSeconds))
	for name, seconds := range c.ToolRateLimits.CooldownSeconds {
		if seconds <= 0 {
			continue
		}
		cooldowns[name] = time.Duration(seconds) * time.Second
	}
	perTool := make(map[string]int, len(c.ToolRateLimits.PerTool))
	for name, rate := range c.ToolRateLimits.PerTool {
		perTool[name] = rate
	}

	return tools.RateLimitConfig{
		DefaultPerMinute: c.ToolRateLimits.DefaultPerMinute,
		PerTool:          perTool,
		Cooldowns:        cooldowns,
	}
}

// ToolTimeoutsConfig returns timeout configuration for tools.
func (c *Config) ToolTimeoutsConfig() tools.TimeoutConfig {
	perTool := make(map[string]time.Duration, len(c.ToolTimeouts.PerToolSeconds))
	for name, seconds := range c.ToolTimeouts.PerToolSeconds {
		if seconds <= 0 {
			continue
		}
		perTool[name] = time.Duration(seconds) * time.Second
	}

	var defaultTimeout time.Duration
	if c.ToolTimeouts.DefaultSeconds > 0 {
		defaultTimeout = time.Duration(c.ToolTimeouts.DefaultSeconds) * time.Second
	}

	return tools.TimeoutConfig{
		Default: defaultTimeout,
		PerTool: perTool,
	}
}

// RegistryOptions bundles everything the tool registry reads from config.
func (c *Config) RegistryOptions(logger *zerolog.Logger) tools.Options {
	return tools.Options{
		Policy:     c.ToolPolicy(),
		Defaults:   c.ListDefaults(),
		RateLimits: c.ToolRateLimitsConfig(),
		Timeouts:   c.ToolTimeoutsConfig(),
		Logger:     logger,
	}
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning

	if c.Listing.DefaultMaxEntries > fsaccess.MaxEntriesCeiling {
		warnings = append(warnings, ValidationWarning{
			Field: "listing.default_max_entries",
			Message: fmt.Sprintf("default_max_entries %d exceeds the ceiling, %d will be used",
				c.Listing.DefaultMaxEntries, fsaccess.MaxEntriesCeiling),
		})
	}

	if registry != nil {
		registeredTools := make(map[string]bool)
		for _, name := range registry.GetToolNames() {
			registeredTools[name] = true
		}

		check := func(field, name string) {
			if !registeredTools[name] {
				warnings = append(warnings, ValidationWarning{
					Field:   field,
					Message: fmt.Sprintf("tool %q is not registered", name),
				})
			}
		}
		for _, name := range c.Tools.Deny {
			check("tools.deny", name)
		}
		for _, name := range sortedKeys(c.ToolRateLimits.PerTool) {
			check("tool_rate_limits.per_tool", name)
		}
		for _, name := range sortedKeys(c.ToolRateLimits.CooldownSeconds) {
			check("tool_rate_limits.cooldown_seconds", name)
		}
		for _, name := range sortedKeys(c.ToolTimeouts.PerToolSeconds) {
			check("tool_timeouts.per_tool_seconds", name)
		}

		if len(c.Tools.Deny) > 0 && len(registry.OpenAITools()) == 0 {
			warnings = append(warnings, ValidationWarning{
				Field:   "tools.deny",
				Message: "every tool is disabled",
			})
		}
	}

	return warnings
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
