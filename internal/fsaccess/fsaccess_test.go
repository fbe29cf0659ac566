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

package fsaccess

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"

	apperrors "fsroots/internal/errors"
	"fsroots/internal/roots"
)

func newRoot(t *testing.T) (string, *roots.Set) {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	assert.NilError(t, err)
	set, err := roots.New([]string{dir})
	assert.NilError(t, err)
	return dir, set
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	assert.NilError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o644))
}

func names(listing *Listing) []string {
	out := make([]string, 0, len(listing.Entries))
	for _, entry := range listing.Entries {
		out = append(out, entry.Name)
	}
	return out
}

func TestListDirectorySortedWithHidden(t *testing.T) {
	root, set := newRoot(t)
	for _, name := range []string{"zeta.txt", ".hidden", "Alpha", "beta", "_under"} {
		writeFile(t, filepath.Join(root, name), name)
	}
	assert.NilError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))
	writeFile(t, filepath.Join(root, "dir", "nested.txt"), "not listed")

	listing, err := ListDirectory(context.Background(), set, root, ListOptions{})
	assert.NilError(t, err)

	want := []string{".hidden", "Alpha", "_under", "beta", "dir", "zeta.txt"}
	if diff := cmp.Diff(want, names(listing)); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}
	assert.Equal(t, listing.Truncated, false)
	assert.Equal(t, listing.Total, 6)
	assert.Equal(t, listing.Shown, 6)
}

func TestListDirectoryKinds(t *testing.T) {
	root, set := newRoot(t)
	writeFile(t, filepath.Join(root, "file.txt"), "12345")
	assert.NilError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	listing, err := ListDirectory(context.Background(), set, root, ListOptions{})
	assert.NilError(t, err)
	want := []Entry{
		{Name: "file.txt", Kind: EntryFile},
		{Name: "sub", Kind: EntryDirectory},
	}
	if diff := cmp.Diff(want, listing.Entries); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}
}

func TestListDirectoryDetails(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix permission bits")
	}
	root, set := newRoot(t)
	writeFile(t, filepath.Join(root, "file.txt"), "12345")
	assert.NilError(t, os.Chmod(filepath.Join(root, "file.txt"), 0o640))
	assert.NilError(t, os.Mkdir(filepath.Join(root, "sub"), 0o750))
	assert.NilError(t, os.Chmod(filepath.Join(root, "sub"), 0o750))

	listing, err := ListDirectory(context.Background(), set, root, ListOptions{IncludeDetails: true})
	assert.NilError(t, err)

	size := int64(5)
	want := []Entry{
		{Name: "file.txt", Kind: EntryFile, Permissions: "rw-r-----", Size: &size},
		{Name: "sub", Kind: EntryDirectory, Permissions: "rwxr-x---"},
	}
	if diff := cmp.Diff(want, listing.Entries); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}
}

func TestListDirectorySymlinkIsOther(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	root, set := newRoot(t)
	outside := t.TempDir()
	assert.NilError(t, os.Symlink(outside, filepath.Join(root, "link")))

	listing, err := ListDirectory(context.Background(), set, root, ListOptions{IncludeDetails: true})
	assert.NilError(t, err)
	assert.Equal(t, len(listing.Entries), 1)
	assert.Equal(t, listing.Entries[0].Kind, EntryOther)
}

func populate(t *testing.T, dir string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("entry-%05d", i)))
		assert.NilError(t, err)
		assert.NilError(t, f.Close())
	}
}

func TestListDirectoryTruncation(t *testing.T) {
	root, set := newRoot(t)
	populate(t, root, 2500)

	listing, err := ListDirectory(context.Background(), set, root, ListOptions{})
	assert.NilError(t, err)
	assert.Equal(t, len(listing.Entries), 200)
	assert.Equal(t, listing.Truncated, true)
	assert.Equal(t, listing.Total, 2500)
	assert.Equal(t, listing.Shown, 200)
	assert.Equal(t, listing.Entries[0].Name, "entry-00000")
	assert.Equal(t, listing.Entries[199].Name, "entry-00199")

	listing, err = ListDirectory(context.Background(), set, root, ListOptions{MaxEntries: 5000})
	assert.NilError(t, err)
	assert.Equal(t, listing.Shown, 2000)
	assert.Equal(t, listing.Truncated, true)
	assert.Equal(t, listing.Total, 2500)

	listing, err = ListDirectory(context.Background(), set, root, ListOptions{MaxEntries: 3})
	assert.NilError(t, err)
	assert.Equal(t, listing.Shown, 3)
	text := listing.Text(false)
	assert.Equal(t, text, "entry-00000\nentry-00001\nentry-00002\n... truncated: showing 3 of 2500 entries")
}

func TestEffectiveMax(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{in: 0, want: DefaultMaxEntries},
		{in: -4, want: DefaultMaxEntries},
		{in: 1, want: 1},
		{in: 2000, want: 2000},
		{in: 2001, want: MaxEntriesCeiling},
	}
	for _, tt := range tests {
		if got := (ListOptions{MaxEntries: tt.in}).EffectiveMax(); got != tt.want {
			t.Errorf("EffectiveMax(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestListDirectoryErrors(t *testing.T) {
	root, set := newRoot(t)
	writeFile(t, filepath.Join(root, "file.txt"), "x")

	_, err := ListDirectory(context.Background(), set, filepath.Join(root, "file.txt"), ListOptions{})
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeInvalidPath)

	_, err = ListDirectory(context.Background(), set, filepath.Join(root, "missing"), ListOptions{})
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeNotFound)

	_, err = ListDirectory(context.Background(), set, filepath.Dir(root), ListOptions{})
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeAccessDenied)

	_, err = ListDirectory(context.Background(), set, "relative", ListOptions{})
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeInvalidPath)
}

func TestCanceledContext(t *testing.T) {
	root, set := newRoot(t)
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ListDirectory(ctx, set, root, ListOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeTimeout)

	_, err = ReadTextFile(ctx, set, filepath.Join(root, "a.txt"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeTimeout)
}

func TestListDirectoryIdempotent(t *testing.T) {
	root, set := newRoot(t)
	populate(t, root, 20)

	first, err := ListDirectory(context.Background(), set, root, ListOptions{IncludeDetails: true})
	assert.NilError(t, err)
	second, err := ListDirectory(context.Background(), set, root, ListOptions{IncludeDetails: true})
	assert.NilError(t, err)
	assert.DeepEqual(t, first, second)
}

func TestListingJSON(t *testing.T) {
	root, set := newRoot(t)
	populate(t, root, 3)

	listing, err := ListDirectory(context.Background(), set, root, ListOptions{MaxEntries: 2})
	assert.NilError(t, err)
	out, err := listing.Render(FormatJSON, false)
	assert.NilError(t, err)

	var decoded map[string]interface{}
	assert.NilError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, decoded["truncated"], true)
	assert.Equal(t, decoded["total"], float64(3))
	assert.Equal(t, decoded["shown"], float64(2))
	entries, ok := decoded["entries"].([]interface{})
	assert.Assert(t, ok)
	assert.Equal(t, len(entries), 2)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, first["name"], "entry-00000")
	assert.Equal(t, first["type"], "file")
	_, hasSize := first["size"]
	assert.Assert(t, !hasSize, "size only appears in detailed listings")
}

func TestListingTextEmptyAndDetailed(t *testing.T) {
	assert.Equal(t, (&Listing{Entries: []Entry{}}).Text(false), "Directory is empty")

	size := int64(42)
	listing := &Listing{
		Entries: []Entry{
			{Name: "a.txt", Kind: EntryFile, Permissions: "rw-r--r--", Size: &size},
			{Name: "dir", Kind: EntryDirectory, Permissions: "rwxr-xr-x"},
		},
		Total: 2,
		Shown: 2,
	}
	lines := strings.Split(listing.Text(true), "\n")
	assert.Equal(t, len(lines), 2)
	assert.Equal(t, lines[0], "- rw-r--r--         42 a.txt")
	assert.Equal(t, lines[1], "d rwxr-xr-x          - dir")
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{"": FormatText, "text": FormatText, "JSON": FormatJSON} {
		got, err := ParseFormat(input)
		assert.NilError(t, err)
		assert.Equal(t, got, want)
	}
	_, err := ParseFormat("xml")
	assert.ErrorContains(t, err, "format must be")
}

func TestReadTextFile(t *testing.T) {
	root, set := newRoot(t)
	content := "héllo\nwörld\n\ttabs and emoji 🚀\n"
	writeFile(t, filepath.Join(root, "a", "b.txt"), content)

	got, err := ReadTextFile(context.Background(), set, filepath.Join(root, "a", "b.txt"))
	assert.NilError(t, err)
	assert.Equal(t, got, content)

	again, err := ReadTextFile(context.Background(), set, filepath.Join(root, "a", "b.txt"))
	assert.NilError(t, err)
	assert.Equal(t, again, got)
}

func TestReadTextFileEmpty(t *testing.T) {
	root, set := newRoot(t)
	writeFile(t, filepath.Join(root, "empty.txt"), "")

	got, err := ReadTextFile(context.Background(), set, filepath.Join(root, "empty.txt"))
	assert.NilError(t, err)
	assert.Equal(t, got, "")
}

func TestReadTextFileErrors(t *testing.T) {
	root, set := newRoot(t)
	assert.NilError(t, os.WriteFile(filepath.Join(root, "binary.bin"), []byte{0x66, 0xff, 0xfe, 0x00}, 0o644))
	assert.NilError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))

	_, err := ReadTextFile(context.Background(), set, filepath.Join(root, "binary.bin"))
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeDecode)

	_, err = ReadTextFile(context.Background(), set, filepath.Join(root, "missing.txt"))
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeNotFound)

	_, err = ReadTextFile(context.Background(), set, filepath.Join(root, "dir"))
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeInvalidPath)

	_, err = ReadTextFile(context.Background(), set, "b.txt")
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeInvalidPath)
}

func TestReadTextFileSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	root, set := newRoot(t)
	outside, err := filepath.EvalSymlinks(t.TempDir())
	assert.NilError(t, err)
	writeFile(t, filepath.Join(outside, "passwd"), "secret")
	assert.NilError(t, os.Symlink(outside, filepath.Join(root, "link")))
	assert.NilError(t, os.Symlink(filepath.Join(outside, "passwd"), filepath.Join(root, "direct")))

	_, err = ReadTextFile(context.Background(), set, filepath.Join(root, "link", "passwd"))
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeAccessDenied)
	assert.Assert(t, !strings.Contains(err.Error(), outside))

	_, err = ReadTextFile(context.Background(), set, filepath.Join(root, "direct"))
	assert.Equal(t, apperrors.CodeOf(err), apperrors.CodeAccessDenied)
}
