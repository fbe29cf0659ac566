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

package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "fsroots/internal/errors"
)

// ValidationRule checks tool arguments and returns an error if invalid.
type ValidationRule func(args map[string]interface{}) error

// ValidateToolCall checks a tool call without executing it. It returns nil
// when the call would be accepted.
func (r *Registry) ValidateToolCall(name, argsJSON string) *ToolResult {
	tool, ok := r.getTool(name)
	if !ok {
		return failedResult(name, apperrors.Wrap(apperrors.CodeInvalidArguments,
			fmt.Sprintf("unknown tool %q", name), ErrToolNotFound))
	}

	args, err := parseToolArgs(strings.TrimSpace(argsJSON))
	if err != nil {
		return failedResult(name, apperrors.Wrap(apperrors.CodeInvalidArguments,
			fmt.Sprintf("invalid tool arguments: %v", err), ErrInvalidArguments))
	}

	if err := tool.Validate(args); err != nil {
		return failedResult(name, apperrors.Wrap(apperrors.CodeInvalidArguments, err.Error(), ErrInvalidArguments))
	}

	return nil
}

// ChainValidation runs rules in order until the first error.
func ChainValidation(rules ...ValidationRule) ValidationRule {
	return func(args map[string]interface{}) error {
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			if err := rule(args); err != nil {
				return err
			}
		}
		return nil
	}
}

// RequireStringArg ensures a string argument is present and non-empty.
func RequireStringArg(key, message string) ValidationRule {
	return func(args map[string]interface{}) error {
		value, ok := args[key]
		if !ok || value == nil {
			return fmt.Errorf("%s", message)
		}
		str, ok := value.(string)
		if !ok || strings.TrimSpace(str) == "" {
			return fmt.Errorf("%s", message)
		}
		return nil
	}
}

// OptionalIntegerArg accepts a missing argument or a whole number.
func OptionalIntegerArg(key string) ValidationRule {
	return func(args map[string]interface{}) error {
		_, _, err := intArg(args, key)
		return err
	}
}

// OptionalBoolArg accepts a missing argument or a boolean.
func OptionalBoolArg(key string) ValidationRule {
	return func(args map[string]interface{}) error {
		_, _, err := boolArg(args, key)
		return err
	}
}

// OptionalEnumArg accepts a missing argument or one of the allowed strings,
// compared case-insensitively.
func OptionalEnumArg(key string, allowed ...string) ValidationRule {
	return func(args map[string]interface{}) error {
		value, ok := args[key]
		if !ok || value == nil {
			return nil
		}
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", key)
		}
		if strings.TrimSpace(str) == "" {
			return nil
		}
		for _, candidate := range allowed {
			if strings.EqualFold(strings.TrimSpace(str), candidate) {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of: %s", key, strings.Join(allowed, ", "))
	}
}

func stringArg(args map[string]interface{}, key string) string {
	if value, ok := args[key].(string); ok {
		return value
	}
	return ""
}

// intArg reads an integer argument. Clients send JSON numbers as float64 and
// some models send numbers as strings; both are accepted. Values beyond the
// int32 range saturate.
func intArg(args map[string]interface{}, key string) (int, bool, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return 0, false, nil
	}

	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("%s must be an integer", key)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false, fmt.Errorf("%s must be an integer", key)
		}
		f = parsed
	default:
		return 0, false, fmt.Errorf("%s must be an integer", key)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false, fmt.Errorf("%s must be an integer", key)
	}
	switch {
	case f > math.MaxInt32:
		f = math.MaxInt32
	case f < math.MinInt32:
		f = math.MinInt32
	}
	return int(f), true, nil
}

func boolArg(args map[string]interface{}, key string) (bool, bool, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return false, false, nil
	}
	switch v := value.(type) {
	case bool:
		return v, true, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false, fmt.Errorf("%s must be a boolean", key)
		}
		return parsed, true, nil
	default:
		return false, false, fmt.Errorf("%s must be a boolean", key)
	}
}
