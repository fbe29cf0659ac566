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

package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// initLogger logs to logFilePath when set, to stderr when debugging, and
// nowhere otherwise. Standard output belongs to the protocol.
func initLogger(debug bool, logFilePath string, level zerolog.Level, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	// Set log level
	zerolog.SetGlobalLevel(level)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Configure output
	var output io.Writer
	var closer io.Closer
	switch {
	case logFilePath != "":
		// Log to file only
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		output = file
		closer = file
	case debug:
		output = zerolog.ConsoleWriter{Out: stderr}
	default:
		// No logging to console by default - use io.Discard
		output = io.Discard
	}

	// Create logger with timestamp
	return zerolog.New(output).With().Timestamp().Logger(), closer, nil
}
