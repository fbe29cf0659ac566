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

// Package roots holds the set of directories a process may read from and
// guards every caller-supplied path against it.
package roots

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "fsroots/internal/errors"
	"fsroots/internal/paths"
)

// Kind is the filesystem object a validated path must point at.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Set is the immutable, ordered set of canonical root directories.
// A Set is built once at startup and shared read-only by every operation.
type Set struct {
	roots []string
}

// New canonicalizes raw root paths, drops duplicates (keeping first-seen
// order) and checks that each root is an existing directory. Any failure is
// a configuration error: there is no default root.
func New(raw []string) (*Set, error) {
	if len(raw) == 0 {
		return nil, apperrors.New(apperrors.CodeConfiguration,
			"no allowed roots configured; pass one or more absolute directory paths")
	}

	seen := make(map[string]bool, len(raw))
	set := &Set{roots: make([]string, 0, len(raw))}
	for _, entry := range raw {
		root, err := canonicalRoot(entry)
		if err != nil {
			return nil, err
		}
		if seen[root] {
			continue
		}
		seen[root] = true
		set.roots = append(set.roots, root)
	}
	return set, nil
}

func canonicalRoot(entry string) (string, error) {
	if strings.TrimSpace(entry) == "" {
		return "", apperrors.New(apperrors.CodeConfiguration, "root cannot be empty")
	}
	expanded, err := expandHome(entry)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeConfiguration, "cannot expand root "+entry, err)
	}
	if !filepath.IsAbs(expanded) {
		return "", apperrors.New(apperrors.CodeConfiguration, "root must be an absolute path: "+entry)
	}

	resolved, exists, err := paths.Resolve(expanded)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeConfiguration, "cannot resolve root "+entry, err)
	}
	if !exists {
		return "", apperrors.New(apperrors.CodeConfiguration, "root does not exist: "+entry)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeConfiguration, "cannot stat root "+entry, err)
	}
	if !info.IsDir() {
		return "", apperrors.New(apperrors.CodeConfiguration, "root is not a directory: "+entry)
	}
	return resolved, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(os.PathSeparator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}

// Roots returns the canonical roots in configuration order.
func (s *Set) Roots() []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s.roots...)
}

// Contains reports whether a resolved path is one of the roots or lies beneath one.
func (s *Set) Contains(resolved string) bool {
	if s == nil {
		return false
	}
	for _, root := range s.roots {
		if paths.HasPathPrefix(resolved, root) {
			return true
		}
	}
	return false
}

// RootOf returns the root containing a resolved path.
func (s *Set) RootOf(resolved string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, root := range s.roots {
		if paths.HasPathPrefix(resolved, root) {
			return root, true
		}
	}
	return "", false
}

// Validate resolves candidate and proves it lies inside the set and points
// at an object of the expected kind. It returns the canonical path.
//
// Symlinks are resolved before the containment check; a link inside a root
// pointing elsewhere is judged by its target. The proof holds only at the
// moment of the check.
func (s *Set) Validate(candidate string, want Kind) (string, error) {
	if s == nil || len(s.roots) == 0 {
		return "", apperrors.New(apperrors.CodeConfiguration, "no allowed roots configured")
	}
	if err := paths.ValidatePathString(candidate, paths.MaxPathLength); err != nil {
		return "", apperrors.New(apperrors.CodeInvalidPath, err.Error())
	}
	if !filepath.IsAbs(candidate) {
		return "", apperrors.New(apperrors.CodeInvalidPath, "path must be absolute: "+candidate)
	}

	resolved, exists, err := paths.Resolve(candidate)
	if err != nil {
		// failures outside every root must look like any other outside path
		if resolved == "" || !s.Contains(resolved) {
			return "", AccessDenied()
		}
		return "", resolveError(candidate, err)
	}

	if !s.Contains(resolved) {
		return "", AccessDenied()
	}
	if !exists {
		return "", NotFound(candidate)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", StatError(candidate, err)
	}
	if hasTrailingSeparator(candidate) && !info.IsDir() {
		return "", apperrors.New(apperrors.CodeInvalidPath, "path is not a directory: "+candidate)
	}
	switch want {
	case KindDirectory:
		if !info.IsDir() {
			return "", apperrors.New(apperrors.CodeInvalidPath, "path is not a directory: "+candidate)
		}
	case KindFile:
		if info.IsDir() {
			return "", apperrors.New(apperrors.CodeInvalidPath, "path is a directory: "+candidate)
		}
		if !info.Mode().IsRegular() {
			return "", apperrors.New(apperrors.CodeInvalidPath, "path is not a regular file: "+candidate)
		}
	}

	return resolved, nil
}

func hasTrailingSeparator(path string) bool {
	return len(path) > 1 && os.IsPathSeparator(path[len(path)-1])
}

// AccessDenied builds the error for paths outside every root. The message
// never names the path.
func AccessDenied() *apperrors.Error {
	return apperrors.New(apperrors.CodeAccessDenied, "access denied: path is outside the allowed roots")
}

// NotFound builds the error for a missing caller-supplied path.
func NotFound(candidate string) *apperrors.Error {
	return apperrors.New(apperrors.CodeNotFound, "path not found: "+candidate)
}

func resolveError(candidate string, err error) *apperrors.Error {
	switch {
	case paths.IsLoop(err):
		return apperrors.New(apperrors.CodeInvalidPath, "too many levels of symbolic links: "+candidate)
	case paths.IsNameTooLong(err):
		return apperrors.New(apperrors.CodeInvalidPath, "path name too long: "+candidate)
	case errors.Is(err, fs.ErrPermission):
		return AccessDenied()
	default:
		return apperrors.New(apperrors.CodeInvalidPath, "cannot resolve path: "+candidate)
	}
}

// StatError classifies a failure to touch an already validated path.
func StatError(candidate string, err error) *apperrors.Error {
	switch {
	case errors.Is(err, fs.ErrNotExist), paths.IsNotDir(err):
		return NotFound(candidate)
	case errors.Is(err, fs.ErrPermission):
		return AccessDenied()
	default:
		return apperrors.New(apperrors.CodeInvalidPath, "cannot access path: "+candidate)
	}
}
