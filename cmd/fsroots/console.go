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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fsroots/internal/console"
)

func (a *app) newConsoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "console ROOT...",
		Short: "Browse the allowed roots interactively",
		Long: `console opens a shell limited to the allowed roots. When stdin is not a
terminal, commands are read one per line and no prompt is shown.`,
		Args: cobra.ArbitraryArgs,
		RunE: a.consoleAction,
	}
}

func (a *app) consoleAction(cmd *cobra.Command, args []string) error {
	registry, err := a.newRegistry(args)
	if err != nil {
		return err
	}
	defer registry.Close()

	session, err := console.NewSession(registry, a.logger)
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return a.runInteractive(cmd, session)
	}
	return a.runScript(cmd, session, in)
}

func (a *app) runInteractive(cmd *cobra.Command, session *console.Session) error {
	a.logger.Debug().Msg("Running interactive console")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:              session.Prompt(),
		HistoryFile:         a.cfg.CommandHistoryFile,
		AutoComplete:        getCommandCompleter(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		FuncFilterInputRune: filterInterruptRune,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "fsroots console, type help for commands")

	// Main event loop
	for {
		line, err := rl.Readline()
		switch classifyReadlineError(line, err) {
		case readlineContinue:
			continue
		case readlineExit:
			a.logger.Debug().Msg("Readline closed")
			return nil
		case readlineUnhandled:
			if err != nil {
				return err
			}
		}

		line = sanitizeInputLine(line)
		if line == "" {
			continue
		}
		a.logger.Info().Str("input", line).Msg("Console input received")
		if session.Execute(cmd.Context(), line, out) {
			return nil
		}
		rl.SetPrompt(session.Prompt())
	}
}

func (a *app) runScript(cmd *cobra.Command, session *console.Session, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := sanitizeInputLine(scanner.Text())
		if line == "" {
			continue
		}
		if session.Execute(cmd.Context(), line, cmd.OutOrStdout()) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}

// getCommandCompleter builds a readline completer from available commands
func getCommandCompleter() *readline.PrefixCompleter {
	commands := console.Commands()
	items := make([]readline.PrefixCompleterInterface, len(commands))
	for i, cmd := range commands {
		items[i] = readline.PcItem(cmd.Name)
	}
	return readline.NewPrefixCompleter(items...)
}

type readlineAction int

const (
	readlineContinue readlineAction = iota
	readlineExit
	readlineUnhandled
)

func classifyReadlineError(line string, err error) readlineAction {
	switch {
	case err == nil:
		return readlineUnhandled
	case err == readline.ErrInterrupt:
		return readlineContinue
	case err == io.EOF:
		if strings.TrimSpace(line) == "" {
			return readlineExit
		}
		return readlineContinue
	default:
		return readlineUnhandled
	}
}

// sanitizeInputLine drops control characters and surrounding blanks.
func sanitizeInputLine(line string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, line))
}

func filterInterruptRune(r rune) (rune, bool) {
	if r == readline.CharBell {
		return 0, false
	}
	return r, true
}
