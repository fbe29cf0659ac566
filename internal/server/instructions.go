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

package server

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed instructions/*.txt
var instructionFiles embed.FS

// Instructions concatenates the embedded instruction files in lexical order.
// They are sent to clients during the handshake.
func Instructions() (string, error) {
	entries, err := fs.ReadDir(instructionFiles, "instructions")
	if err != nil {
		return "", fmt.Errorf("failed to read embedded instruction files: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, entry.Name())
	}

	if len(names) == 0 {
		return "", fmt.Errorf("no instruction files found in embedded set")
	}

	sort.Strings(names)

	var builder strings.Builder
	for idx, name := range names {
		data, err := instructionFiles.ReadFile("instructions/" + name)
		if err != nil {
			return "", fmt.Errorf("failed to read instruction file %q: %w", name, err)
		}
		builder.Write(data)
		if !strings.HasSuffix(builder.String(), "\n") {
			builder.WriteString("\n")
		}
		if idx < len(names)-1 {
			builder.WriteString("\n")
		}
	}

	return builder.String(), nil
}
