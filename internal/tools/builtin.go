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
	"strings"

	apperrors "fsroots/internal/errors"
	"fsroots/internal/fsaccess"
)

// Built-in tool names.
const (
	ListDirToolName      = "list_dir"
	ReadTextFileToolName = "read_text_file"
)

type listDirArgs struct {
	Path     string `json:"path" jsonschema:"description=Absolute path of the directory to list; must lie inside an allowed root"`
	Max      int    `json:"max,omitempty" jsonschema:"description=Maximum number of entries to return; 0 uses the default and larger values are clamped"`
	Format   string `json:"format,omitempty" jsonschema:"description=Output format: text or json,enum=text,enum=json"`
	Detailed bool   `json:"detailed,omitempty" jsonschema:"description=Include permissions and sizes for each entry"`
}

type readTextFileArgs struct {
	Path string `json:"path" jsonschema:"description=Absolute path of the UTF-8 text file to read; must lie inside an allowed root"`
}

// registerBuiltInTools registers list_dir and read_text_file. The list_dir
// schema advertises the registry's configured defaults.
func registerBuiltInTools(r *Registry) {
	listSchema, err := argumentSchema(listDirArgs{},
		withDefault("max", r.defaults.MaxEntries),
		withRange("max", 0, fsaccess.MaxEntriesCeiling),
		withDefault("format", string(r.defaults.Format)),
		withDefault("detailed", r.defaults.Detailed),
	)
	if err != nil {
		panic(err)
	}
	readSchema, err := argumentSchema(readTextFileArgs{})
	if err != nil {
		panic(err)
	}

	for _, tool := range []Tool{
		&RootTool{
			ToolName: ListDirToolName,
			Summary: "List the entries of a directory inside the allowed roots, sorted by name. " +
				"Hidden entries are included. Results are capped and report whether they were truncated.",
			Schema:  listSchema,
			Handler: r.listDir,
			Rules: ChainValidation(
				RequireStringArg("path", "missing or invalid 'path' parameter"),
				OptionalIntegerArg("max"),
				OptionalEnumArg("format", string(fsaccess.FormatText), string(fsaccess.FormatJSON)),
				OptionalBoolArg("detailed"),
			),
		},
		&RootTool{
			ToolName: ReadTextFileToolName,
			Summary:  "Read a UTF-8 text file inside the allowed roots and return its full contents.",
			Schema:   readSchema,
			Handler:  r.readTextFile,
			Rules:    RequireStringArg("path", "missing or invalid 'path' parameter"),
		},
	} {
		if err := r.RegisterTool(tool); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) listDir(ctx context.Context, args map[string]interface{}) (string, error) {
	if r.roots == nil {
		return "", apperrors.New(apperrors.CodeConfiguration, "no allowed roots configured")
	}

	opts := fsaccess.ListOptions{
		MaxEntries:     r.defaults.MaxEntries,
		IncludeDetails: r.defaults.Detailed,
	}
	if max, ok, err := intArg(args, "max"); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidArguments, err.Error(), ErrInvalidArguments)
	} else if ok && max > 0 {
		opts.MaxEntries = max
	}
	if detailed, ok, err := boolArg(args, "detailed"); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidArguments, err.Error(), ErrInvalidArguments)
	} else if ok {
		opts.IncludeDetails = detailed
	}

	format := r.defaults.Format
	if raw := strings.TrimSpace(stringArg(args, "format")); raw != "" {
		parsed, err := fsaccess.ParseFormat(raw)
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeInvalidArguments, err.Error(), ErrInvalidArguments)
		}
		format = parsed
	}

	listing, err := fsaccess.ListDirectory(ctx, r.roots, stringArg(args, "path"), opts)
	if err != nil {
		return "", err
	}
	return listing.Render(format, opts.IncludeDetails)
}

func (r *Registry) readTextFile(ctx context.Context, args map[string]interface{}) (string, error) {
	if r.roots == nil {
		return "", apperrors.New(apperrors.CodeConfiguration, "no allowed roots configured")
	}
	return fsaccess.ReadTextFile(ctx, r.roots, stringArg(args, "path"))
}
