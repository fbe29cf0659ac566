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
	"reflect"

	"github.com/567-labs/instructor-go/pkg/instructor"
)

// schemaRefinement adjusts the reflected properties of an argument struct
// with values only known at runtime, such as configured defaults.
type schemaRefinement func(properties map[string]interface{}) error

// argumentSchema reflects an argument struct into the JSON schema object
// used as tool parameters, then applies the refinements in order.
func argumentSchema(args interface{}, refinements ...schemaRefinement) (map[string]interface{}, error) {
	t := reflect.TypeOf(args)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("tool arguments must be a struct, got %v", t)
	}

	schema, err := instructor.NewSchema(t)
	if err != nil {
		return nil, err
	}
	var params map[string]interface{}
	for _, fn := range schema.Functions {
		if fn.Name == t.Name() {
			raw, err := json.Marshal(fn.Parameters)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, err
			}
			break
		}
	}
	if params == nil {
		return nil, fmt.Errorf("no schema generated for %s", t.Name())
	}

	properties, _ := params["properties"].(map[string]interface{})
	for _, refine := range refinements {
		if err := refine(properties); err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name(), err)
		}
	}
	return params, nil
}

func schemaProperty(properties map[string]interface{}, key string) (map[string]interface{}, error) {
	prop, ok := properties[key].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("schema has no property %q", key)
	}
	return prop, nil
}

// withDefault documents the value used when a call omits key.
func withDefault(key string, value interface{}) schemaRefinement {
	return func(properties map[string]interface{}) error {
		prop, err := schemaProperty(properties, key)
		if err != nil {
			return err
		}
		prop["default"] = value
		return nil
	}
}

// withRange documents the inclusive bounds of an integer property.
func withRange(key string, minimum, maximum int) schemaRefinement {
	return func(properties map[string]interface{}) error {
		prop, err := schemaProperty(properties, key)
		if err != nil {
			return err
		}
		prop["minimum"] = minimum
		prop["maximum"] = maximum
		return nil
	}
}
