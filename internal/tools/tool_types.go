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
	"context"

	apperrors "fsroots/internal/errors"
)

// Tool is one read-only operation the registry runs on behalf of a caller.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Validate(args map[string]interface{}) error
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// RootTool is a Tool assembled from its parts. The built-in tools are
// RootTools whose handlers are bound to the registry's root set.
type RootTool struct {
	ToolName string
	Summary  string
	Schema   map[string]interface{}
	Rules    ValidationRule
	Handler  ExecutorFunc
}

func (t *RootTool) Name() string        { return t.ToolName }
func (t *RootTool) Description() string { return t.Summary }

// Parameters falls back to an object without properties, the smallest
// schema function-calling clients accept.
func (t *RootTool) Parameters() map[string]interface{} {
	if t.Schema == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return t.Schema
}

func (t *RootTool) Validate(args map[string]interface{}) error {
	if t.Rules == nil {
		return nil
	}
	return t.Rules(args)
}

func (t *RootTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if t.Handler == nil {
		return "", apperrors.New(apperrors.CodeToolExecution, "tool "+t.ToolName+" has no handler")
	}
	return t.Handler(ctx, args)
}
