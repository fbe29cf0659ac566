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
	"io/fs"
	"os"
	"sort"
	"strings"

	apperrors "fsroots/internal/errors"
	"fsroots/internal/roots"
)

const (
	// DefaultMaxEntries is used when a listing request does not set a maximum.
	DefaultMaxEntries = 200
	// MaxEntriesCeiling caps every listing request. Larger requests are clamped.
	MaxEntriesCeiling = 2000
)

// EntryKind classifies a directory entry without following symlinks.
type EntryKind string

const (
	EntryFile      EntryKind = "file"
	EntryDirectory EntryKind = "directory"
	EntryOther     EntryKind = "other"
)

// Entry is one directory entry. Permissions and Size are only set for
// detailed listings; Size is never set for directories.
type Entry struct {
	Name        string    `json:"name"`
	Kind        EntryKind `json:"type"`
	Permissions string    `json:"permissions,omitempty"`
	Size        *int64    `json:"size,omitempty"`
}

// Listing is the sorted, possibly truncated content of one directory.
type Listing struct {
	Entries   []Entry `json:"entries"`
	Truncated bool    `json:"truncated"`
	Total     int     `json:"total"`
	Shown     int     `json:"shown"`
}

// ListOptions controls a single listing call.
type ListOptions struct {
	MaxEntries     int
	IncludeDetails bool
}

// EffectiveMax returns the entry limit after defaulting and clamping.
func (o ListOptions) EffectiveMax() int {
	switch {
	case o.MaxEntries <= 0:
		return DefaultMaxEntries
	case o.MaxEntries > MaxEntriesCeiling:
		return MaxEntriesCeiling
	default:
		return o.MaxEntries
	}
}

// ListDirectory enumerates a directory inside the root set, hidden entries
// included, sorted by name in byte order and truncated to the effective
// maximum. It does not recurse.
func ListDirectory(ctx context.Context, set *roots.Set, path string, opts ListOptions) (*Listing, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}

	dir, err := set.Validate(path, roots.KindDirectory)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, roots.StatError(path, err)
	}

	sort.Slice(dirEntries, func(i, j int) bool {
		return dirEntries[i].Name() < dirEntries[j].Name()
	})

	limit := opts.EffectiveMax()
	listing := &Listing{Total: len(dirEntries)}
	if len(dirEntries) > limit {
		dirEntries = dirEntries[:limit]
		listing.Truncated = true
	}

	listing.Entries = make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		listing.Entries = append(listing.Entries, newEntry(dirEntry, opts.IncludeDetails))
	}
	listing.Shown = len(listing.Entries)

	return listing, nil
}

func newEntry(dirEntry fs.DirEntry, details bool) Entry {
	entry := Entry{
		Name: dirEntry.Name(),
		Kind: kindOf(dirEntry.Type()),
	}
	if !details {
		return entry
	}

	info, err := dirEntry.Info()
	if err != nil {
		// removed since ReadDir; keep the name without details
		return entry
	}
	entry.Kind = kindOf(info.Mode())
	entry.Permissions = strings.TrimPrefix(info.Mode().Perm().String(), "-")
	if entry.Kind != EntryDirectory {
		size := info.Size()
		entry.Size = &size
	}
	return entry
}

func kindOf(mode fs.FileMode) EntryKind {
	switch {
	case mode.IsDir():
		return EntryDirectory
	case mode.IsRegular():
		return EntryFile
	default:
		return EntryOther
	}
}

func ensureContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.CodeTimeout, "operation abandoned before it started", ctx.Err())
	default:
		return nil
	}
}
