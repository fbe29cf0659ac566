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
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "fsroots-config.schema.json"

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// SchemaJSON returns the JSON schema for the configuration file.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns an example config that passes the schema.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

func configSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(configSchemaJSON))
		if err != nil {
			compileErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, doc); err != nil {
			compileErr = err
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, compileErr
}

// normalizeConfig parses JSON or YAML, validates it against the schema and
// returns the document re-encoded as JSON.
func normalizeConfig(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	schema, err := configSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, err
	}

	return json.Marshal(raw)
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "fsroots config",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "roots": { "type": "array", "items": { "type": "string", "minLength": 1 } },
    "listing": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "default_max_entries": { "type": "integer", "minimum": 1 },
        "default_format": { "enum": ["text", "json"] },
        "default_detailed": { "type": "boolean" }
      }
    },
    "tools": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "deny": { "type": "array", "items": { "type": "string" } }
      }
    },
    "tool_rate_limits": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "default_per_minute": { "type": "integer", "minimum": 0 },
        "per_tool": { "type": "object", "additionalProperties": { "type": "integer", "minimum": 0 } },
        "cooldown_seconds": { "type": "object", "additionalProperties": { "type": "integer", "minimum": 0 } }
      }
    },
    "tool_timeouts": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "default_seconds": { "type": "integer", "minimum": 0 },
        "per_tool_seconds": { "type": "object", "additionalProperties": { "type": "integer", "minimum": 0 } }
      }
    },
    "batch": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "workers": { "type": "integer", "minimum": 1 }
      }
    },
    "log_file": { "type": "string" },
    "log_level": { "enum": ["trace", "debug", "info", "warn", "error", "disabled"] },
    "command_history_file": { "type": "string" }
  }
}`

const exampleConfigJSON = `{
  "roots": ["/srv/docs", "~/notes"],
  "listing": {
    "default_max_entries": 200,
    "default_format": "text",
    "default_detailed": false
  },
  "tools": {
    "deny": []
  },
  "tool_rate_limits": {
    "default_per_minute": 120,
    "per_tool": { "read_text_file": 60 }
  },
  "tool_timeouts": {
    "default_seconds": 30
  },
  "batch": {
    "workers": 4
  },
  "log_file": "fsroots.log",
  "log_level": "info"
}`
