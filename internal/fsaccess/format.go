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
	"encoding/json"
	"fmt"
	"strings"
)

// Format selects how a listing is rendered for callers.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json"; the empty string means text.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("format must be %q or %q, got %q", FormatText, FormatJSON, value)
	}
}

const emptyDirectoryText = "Directory is empty"

// Text renders one entry per line, followed by a truncation note when the
// listing was cut short.
func (l *Listing) Text(details bool) string {
	if len(l.Entries) == 0 && !l.Truncated {
		return emptyDirectoryText
	}

	var result strings.Builder
	for _, entry := range l.Entries {
		if details {
			formatEntry(&result, entry)
		} else {
			result.WriteString(entry.Name)
			result.WriteByte('\n')
		}
	}
	if l.Truncated {
		fmt.Fprintf(&result, "... truncated: showing %d of %d entries\n", l.Shown, l.Total)
	}
	return strings.TrimSuffix(result.String(), "\n")
}

// JSON renders the structured listing.
func (l *Listing) JSON() (string, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Render formats the listing in the requested shape.
func (l *Listing) Render(format Format, details bool) (string, error) {
	if format == FormatJSON {
		return l.JSON()
	}
	return l.Text(details), nil
}

// formatEntry writes "<type> <perms> <size> <name>".
func formatEntry(result *strings.Builder, entry Entry) {
	typeStr := "?"
	switch entry.Kind {
	case EntryDirectory:
		typeStr = "d"
	case EntryFile:
		typeStr = "-"
	}

	perms := entry.Permissions
	if perms == "" {
		perms = "?"
	}

	size := "-"
	if entry.Size != nil {
		size = fmt.Sprintf("%d", *entry.Size)
	}

	fmt.Fprintf(result, "%s %s %10s %s\n", typeStr, perms, size, entry.Name)
}
