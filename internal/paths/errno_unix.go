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

//go:build unix

package paths

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsNotDir reports whether err was caused by a non-directory used as a path component.
func IsNotDir(err error) bool {
	return errors.Is(err, unix.ENOTDIR)
}

// IsNameTooLong reports whether err was caused by an over-long path or path component.
func IsNameTooLong(err error) bool {
	return errors.Is(err, unix.ENAMETOOLONG)
}

// IsLoop reports whether err was caused by a symlink cycle.
func IsLoop(err error) bool {
	return errors.Is(err, ErrTooManyLinks) || errors.Is(err, unix.ELOOP)
}
