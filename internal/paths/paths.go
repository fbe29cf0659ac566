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

// Package paths resolves and compares filesystem paths without trusting
// their lexical form: every symlink is followed before a path is compared
// against a base directory.
package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxPathLength bounds the raw length of caller-supplied paths.
const MaxPathLength = 4096

// maxSymlinkHops matches the usual kernel limit for nested symlinks.
const maxSymlinkHops = 255

var (
	// ErrNotAbsolute is returned by Resolve for relative input.
	ErrNotAbsolute = errors.New("path is not absolute")
	// ErrTooManyLinks is returned when symlink resolution does not terminate.
	ErrTooManyLinks = errors.New("too many levels of symbolic links")
)

// ValidatePathString validates raw path input before resolution.
func ValidatePathString(path string, maxLen int) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.IndexByte(path, 0) != -1 {
		return fmt.Errorf("path contains null byte")
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("path is not valid UTF-8")
	}
	if maxLen > 0 && len(path) > maxLen {
		return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
	}
	return nil
}

// Resolve returns the canonical form of an absolute path with every symlink
// followed and every "." and ".." eliminated. Components are walked one at a
// time so that ".." is applied to the already-resolved parent, never to the
// lexical one.
//
// When a component does not exist, the remaining segments are appended
// lexically to the resolved prefix and exists is false. On error, resolved
// holds the prefix walked so far so callers can place the failure.
func Resolve(path string) (resolved string, exists bool, err error) {
	if !filepath.IsAbs(path) {
		return "", false, ErrNotAbsolute
	}

	volume := filepath.VolumeName(path)
	resolved = volume + string(os.PathSeparator)
	rest := path[len(volume):]
	hops := 0

	for rest != "" {
		var name string
		name, rest = splitFirst(rest)
		switch name {
		case "", ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, name)
		info, err := os.Lstat(next)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || IsNotDir(err) {
				return filepath.Join(next, rest), false, nil
			}
			return resolved, false, err
		}

		if info.Mode()&fs.ModeSymlink == 0 {
			if !info.IsDir() && hasComponents(rest) {
				// a non-directory cannot have children
				return filepath.Join(next, rest), false, nil
			}
			resolved = next
			continue
		}

		hops++
		if hops > maxSymlinkHops {
			return resolved, false, ErrTooManyLinks
		}
		target, err := os.Readlink(next)
		if err != nil {
			return resolved, false, err
		}
		if filepath.IsAbs(target) {
			targetVolume := filepath.VolumeName(target)
			resolved = targetVolume + string(os.PathSeparator)
			target = target[len(targetVolume):]
		}
		rest = target + string(os.PathSeparator) + rest
	}

	return resolved, true, nil
}

// HasPathPrefix returns true when path equals base or lies beneath it.
// Both are compared segment by segment, so "/allowedfoo" is not within
// "/allowed". Callers must pass resolved paths.
func HasPathPrefix(path, base string) bool {
	pathParts := components(path)
	baseParts := components(base)
	if len(pathParts) < len(baseParts) {
		return false
	}
	for i, part := range baseParts {
		if pathParts[i] != part {
			return false
		}
	}
	return true
}

func components(path string) []string {
	path = filepath.Clean(path)
	volume := filepath.VolumeName(path)
	parts := []string{volume}
	for _, part := range strings.Split(path[len(volume):], string(os.PathSeparator)) {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// splitFirst strips leading separators and returns the first segment and the remainder.
func splitFirst(path string) (string, string) {
	start := 0
	for start < len(path) && os.IsPathSeparator(path[start]) {
		start++
	}
	end := start
	for end < len(path) && !os.IsPathSeparator(path[end]) {
		end++
	}
	return path[start:end], path[end:]
}

func hasComponents(rest string) bool {
	for rest != "" {
		var name string
		name, rest = splitFirst(rest)
		if name != "" && name != "." {
			return true
		}
	}
	return false
}
