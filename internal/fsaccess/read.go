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
	"os"
	"unicode/utf8"

	apperrors "fsroots/internal/errors"
	"fsroots/internal/roots"
)

// ReadTextFile returns the full content of a regular file inside the root
// set. The bytes must be valid UTF-8; there is no lossy fallback and no
// partial read.
func ReadTextFile(ctx context.Context, set *roots.Set, path string) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	file, err := set.Validate(path, roots.KindFile)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return "", roots.StatError(path, err)
	}

	if !utf8.Valid(content) {
		return "", apperrors.New(apperrors.CodeDecode, "file is not valid UTF-8 text: "+path)
	}

	return string(content), nil
}
