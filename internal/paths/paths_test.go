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

package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("failed to resolve temp dir: %v", err)
	}
	return dir
}

func requireSymlinks(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
}

func TestValidatePathStringRejectsNullByte(t *testing.T) {
	if err := ValidatePathString("bad\x00path", 0); err == nil {
		t.Fatal("expected error for null byte path")
	}
}

func TestValidatePathString(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "empty", path: "", wantErr: true},
		{name: "blank", path: "   ", wantErr: true},
		{name: "invalid utf8", path: "/tmp/\xff", wantErr: true},
		{name: "too long", path: "/" + strings.Repeat("a", MaxPathLength), wantErr: true},
		{name: "accented", path: "/tmp/café", wantErr: false},
		{name: "plain", path: "/tmp/file.txt", wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathString(tt.path, MaxPathLength)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePathString(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestResolveRejectsRelative(t *testing.T) {
	if _, _, err := Resolve("relative/path"); !errors.Is(err, ErrNotAbsolute) {
		t.Fatalf("expected ErrNotAbsolute, got %v", err)
	}
}

func TestResolveExistingPath(t *testing.T) {
	base := canonicalTempDir(t)
	nested := filepath.Join(base, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("failed to create dirs: %v", err)
	}

	resolved, exists, err := Resolve(base + "/a/./b/../b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("expected path to exist")
	}
	if resolved != nested {
		t.Fatalf("expected %s, got %s", nested, resolved)
	}
}

func TestResolveMissingTail(t *testing.T) {
	base := canonicalTempDir(t)
	resolved, exists, err := Resolve(filepath.Join(base, "missing", "file.txt"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatal("expected missing path")
	}
	if want := filepath.Join(base, "missing", "file.txt"); resolved != want {
		t.Fatalf("expected %s, got %s", want, resolved)
	}
}

func TestResolveFileAsDirectory(t *testing.T) {
	base := canonicalTempDir(t)
	file := filepath.Join(base, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	_, exists, err := Resolve(filepath.Join(file, "child"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatal("a file cannot have children")
	}
}

func TestResolveFollowsSymlinks(t *testing.T) {
	requireSymlinks(t)
	base := canonicalTempDir(t)
	outside := canonicalTempDir(t)
	if err := os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(base, "link")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	resolved, exists, err := Resolve(filepath.Join(base, "link", "secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("expected symlink target to exist")
	}
	if want := filepath.Join(outside, "secret"); resolved != want {
		t.Fatalf("expected %s, got %s", want, resolved)
	}
	if HasPathPrefix(resolved, base) {
		t.Fatal("resolved path must not be within the link's directory")
	}
}

func TestResolveDotDotAfterSymlink(t *testing.T) {
	requireSymlinks(t)
	base := canonicalTempDir(t)
	target := filepath.Join(base, "deep", "inner")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatalf("failed to create dirs: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(base, "link")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	// link/.. is the parent of the target, not base.
	resolved, exists, err := Resolve(base + "/link/..")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("expected path to exist")
	}
	if want := filepath.Join(base, "deep"); resolved != want {
		t.Fatalf("expected %s, got %s", want, resolved)
	}
}

func TestResolveRelativeSymlink(t *testing.T) {
	requireSymlinks(t)
	base := canonicalTempDir(t)
	if err := os.MkdirAll(filepath.Join(base, "dir"), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(base, "target.txt"), []byte("t"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.Symlink("../target.txt", filepath.Join(base, "dir", "rel")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	resolved, exists, err := Resolve(filepath.Join(base, "dir", "rel"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists || resolved != filepath.Join(base, "target.txt") {
		t.Fatalf("unexpected resolution %s (exists=%v)", resolved, exists)
	}
}

func TestResolveSymlinkLoop(t *testing.T) {
	requireSymlinks(t)
	base := canonicalTempDir(t)
	if err := os.Symlink("b", filepath.Join(base, "a")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	if err := os.Symlink("a", filepath.Join(base, "b")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	resolved, _, err := Resolve(filepath.Join(base, "a"))
	if !IsLoop(err) {
		t.Fatalf("expected loop error, got %v", err)
	}
	if resolved != base {
		t.Fatalf("expected resolved prefix %q on failure, got %q", base, resolved)
	}
}

func TestResolveDanglingSymlink(t *testing.T) {
	requireSymlinks(t)
	base := canonicalTempDir(t)
	if err := os.Symlink(filepath.Join(base, "nowhere"), filepath.Join(base, "dangling")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	resolved, exists, err := Resolve(filepath.Join(base, "dangling"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatal("dangling symlink must not be reported as existing")
	}
	if want := filepath.Join(base, "nowhere"); resolved != want {
		t.Fatalf("expected %s, got %s", want, resolved)
	}
}

func TestHasPathPrefix(t *testing.T) {
	tests := []struct {
		path, base string
		want       bool
	}{
		{path: "/a/b", base: "/a/b", want: true},
		{path: "/a/b/c/d", base: "/a/b", want: true},
		{path: "/a/bc", base: "/a/b", want: false},
		{path: "/allowedfoo/x", base: "/allowed", want: false},
		{path: "/a", base: "/a/b", want: false},
		{path: "/anything", base: "/", want: true},
	}
	if runtime.GOOS == "windows" {
		t.Skip("posix paths")
	}
	for _, tt := range tests {
		if got := HasPathPrefix(tt.path, tt.base); got != tt.want {
			t.Errorf("HasPathPrefix(%q, %q) = %v, want %v", tt.path, tt.base, got, tt.want)
		}
	}
}
