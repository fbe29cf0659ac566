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
	"errors"
	"fmt"

	apperrors "fsroots/internal/errors"
)

// Common tool errors
var (
	// ErrToolNotAllowed indicates a tool is blocked by the current policy.
	ErrToolNotAllowed = errors.New("tool blocked by policy")

	// ErrToolNotFound indicates the requested tool doesn't exist in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidArguments indicates tool arguments are invalid or malformed.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrToolRateLimited indicates a tool call exceeded rate limits.
	ErrToolRateLimited = errors.New("tool rate limit exceeded")

	// ErrToolInCooldown indicates a tool is in a cooldown window.
	ErrToolInCooldown = errors.New("tool is in cooldown")

	// ErrRegistryClosed indicates the registry was shut down.
	ErrRegistryClosed = errors.New("tool registry closed")
)

// NewPermissionError wraps a permission error with a shared error code.
func NewPermissionError(toolName, reason string) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodePermission, fmt.Sprintf("permission denied for tool %s: %s", toolName, reason), ErrToolNotAllowed)
}

// RenderError formats an error the way tool results report it:
// "Error [<code>]: <message>". Uncoded errors use the tool_execution code.
func RenderError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error [%s]: %s", errorCode(err), err.Error())
}

func errorCode(err error) apperrors.Code {
	if code := apperrors.CodeOf(err); code != "" {
		return code
	}
	return apperrors.CodeToolExecution
}
