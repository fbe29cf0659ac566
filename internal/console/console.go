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

// Package console implements an interactive shell for browsing the allowed
// roots with the same guard the tools use.
package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/rs/zerolog"
	"github.com/u-root/u-root/pkg/core"
	corels "github.com/u-root/u-root/pkg/core/ls"
	coreshasum "github.com/u-root/u-root/pkg/core/shasum"

	apperrors "fsroots/internal/errors"
	"fsroots/internal/paths"
	"fsroots/internal/roots"
	"fsroots/internal/tools"
)

// Command describes a console command.
type Command struct {
	Name        string
	Usage       string
	Description string
}

// Commands returns the console commands in help order.
func Commands() []Command {
	return []Command{
		{Name: "ls", Usage: "ls [-l] [-j] [-n max] [dir]", Description: "List a directory through list_dir"},
		{Name: "ll", Usage: "ll [dir]", Description: "Detailed listing, same as ls -l"},
		{Name: "cat", Usage: "cat <file>", Description: "Print a UTF-8 text file through read_text_file"},
		{Name: "cd", Usage: "cd [dir]", Description: "Change directory; no argument returns to the current root"},
		{Name: "pwd", Usage: "pwd", Description: "Print the current directory"},
		{Name: "roots", Usage: "roots", Description: "Show the allowed roots"},
		{Name: "lsl", Usage: "lsl [dir]", Description: "Long listing rendered by ls(1)"},
		{Name: "sum", Usage: "sum <file>", Description: "SHA-256 checksum of a file"},
		{Name: "help", Usage: "help", Description: "Show available commands"},
		{Name: "quit", Usage: "quit", Description: "Exit the console"},
	}
}

// Session holds the console state. The current directory always lies inside
// one of the registry's roots.
type Session struct {
	registry *tools.Registry
	cwd      string
	logger   zerolog.Logger
}

// NewSession starts a session in the first root.
func NewSession(registry *tools.Registry, logger zerolog.Logger) (*Session, error) {
	set := registry.Roots()
	if set == nil || len(set.Roots()) == 0 {
		return nil, apperrors.New(apperrors.CodeConfiguration, "no allowed roots configured")
	}
	return &Session{
		registry: registry,
		cwd:      set.Roots()[0],
		logger:   logger,
	}, nil
}

// Cwd returns the current directory.
func (s *Session) Cwd() string {
	return s.cwd
}

// Prompt renders the readline prompt.
func (s *Session) Prompt() string {
	return s.cwd + " ❯ "
}

// Execute runs one input line, writing output to out. It reports whether
// the session should end. Command failures are written to out and do not
// end the session.
func (s *Session) Execute(ctx context.Context, line string, out io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	s.logger.Debug().Str("command", name).Strs("args", args).Msg("Executing console command")

	var (
		output string
		err    error
	)
	switch name {
	case "quit", "exit":
		return true
	case "help":
		output = helpText()
	case "pwd":
		output = s.cwd
	case "roots":
		output = strings.Join(s.registry.Roots().Roots(), "\n")
	case "cd":
		err = s.changeDir(args)
	case "ls":
		output, err = s.list(ctx, args, false)
	case "ll":
		output, err = s.list(ctx, args, true)
	case "cat":
		output, err = s.cat(ctx, args)
	case "lsl":
		output, err = s.longList(ctx, args)
	case "sum":
		output, err = s.checksum(ctx, args)
	default:
		err = fmt.Errorf("unknown command %q, type help for a list", name)
	}

	if err != nil {
		fmt.Fprintln(out, renderError(err))
		return false
	}
	if output != "" {
		fmt.Fprintln(out, strings.TrimSuffix(output, "\n"))
	}
	return false
}

// renderError keeps tool-formatted results as they are.
func renderError(err error) string {
	if toolErr, ok := err.(*toolError); ok {
		return toolErr.rendered
	}
	if apperrors.CodeOf(err) != "" {
		return tools.RenderError(err)
	}
	return "Error: " + err.Error()
}

type toolError struct {
	rendered string
	err      error
}

func (e *toolError) Error() string { return e.err.Error() }
func (e *toolError) Unwrap() error { return e.err }

func (s *Session) runTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	result := s.registry.Execute(ctx, name, args)
	if result.Error != nil {
		return "", &toolError{rendered: result.Result, err: result.Error}
	}
	return result.Result, nil
}

// resolve turns a console argument into an absolute candidate path. Relative
// arguments are joined under the current root as if it were the filesystem
// root, so ".." cannot climb above it. Absolute arguments are left to the
// guard.
func (s *Session) resolve(arg string) (string, error) {
	if arg == "" {
		return s.cwd, nil
	}
	if filepath.IsAbs(arg) {
		return filepath.Clean(arg), nil
	}
	root, ok := s.registry.Roots().RootOf(s.cwd)
	if !ok {
		return "", roots.AccessDenied()
	}
	rel, err := filepath.Rel(root, s.cwd)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidPath, "cannot resolve path", err)
	}
	joined, err := securejoin.SecureJoin(root, filepath.Join(rel, arg))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidPath, "cannot resolve path", err)
	}
	return joined, nil
}

func (s *Session) changeDir(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: cd [dir]")
	}
	if len(args) == 0 {
		if root, ok := s.registry.Roots().RootOf(s.cwd); ok {
			s.cwd = root
		}
		return nil
	}
	candidate, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	resolved, err := s.registry.Roots().Validate(candidate, roots.KindDirectory)
	if err != nil {
		return err
	}
	s.cwd = resolved
	return nil
}

func (s *Session) list(ctx context.Context, args []string, detailed bool) (string, error) {
	toolArgs := map[string]interface{}{}
	var target string
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-l":
			detailed = true
		case "-j":
			toolArgs["format"] = "json"
		case "-n":
			if i+1 >= len(args) {
				return "", fmt.Errorf("-n requires a number")
			}
			i++
			max, err := strconv.Atoi(args[i])
			if err != nil {
				return "", fmt.Errorf("invalid -n value %q", args[i])
			}
			toolArgs["max"] = max
		default:
			if target != "" {
				return "", fmt.Errorf("usage: ls [-l] [-j] [-n max] [dir]")
			}
			target = arg
		}
	}

	path, err := s.resolve(target)
	if err != nil {
		return "", err
	}
	toolArgs["path"] = path
	toolArgs["detailed"] = detailed
	return s.runTool(ctx, tools.ListDirToolName, toolArgs)
}

func (s *Session) cat(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: cat <file>")
	}
	path, err := s.resolve(args[0])
	if err != nil {
		return "", err
	}
	return s.runTool(ctx, tools.ReadTextFileToolName, map[string]interface{}{"path": path})
}

// longList validates the directory with the guard, then lets ls(1) render
// it with the resolved path as the working directory. It is charged to
// list_dir, and link targets outside the roots are masked.
func (s *Session) longList(ctx context.Context, args []string) (string, error) {
	if len(args) > 1 {
		return "", fmt.Errorf("usage: lsl [dir]")
	}
	if err := s.registry.Admit(tools.ListDirToolName); err != nil {
		return "", err
	}
	target := ""
	if len(args) == 1 {
		target = args[0]
	}
	candidate, err := s.resolve(target)
	if err != nil {
		return "", err
	}
	dir, err := s.registry.Roots().Validate(candidate, roots.KindDirectory)
	if err != nil {
		return "", err
	}
	output, err := runCoreCommand(ctx, corels.New(), dir, []string{"-l", "-a", dir})
	if err != nil {
		return "", err
	}
	return s.maskLinkTargets(dir, output), nil
}

const (
	linkArrow    = " -> "
	outsideRoots = "(outside allowed roots)"
)

// maskLinkTargets hides symlink targets that resolve outside every root.
func (s *Session) maskLinkTargets(dir, listing string) string {
	lines := strings.Split(listing, "\n")
	for i, line := range lines {
		idx := strings.Index(line, linkArrow)
		if idx < 0 {
			continue
		}
		target := line[idx+len(linkArrow):]
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		resolved, _, err := paths.Resolve(target)
		if err != nil || !s.registry.Roots().Contains(resolved) {
			lines[i] = line[:idx+len(linkArrow)] + outsideRoots
		}
	}
	return strings.Join(lines, "\n")
}

func (s *Session) checksum(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: sum <file>")
	}
	if err := s.registry.Admit(tools.ReadTextFileToolName); err != nil {
		return "", err
	}
	candidate, err := s.resolve(args[0])
	if err != nil {
		return "", err
	}
	file, err := s.registry.Roots().Validate(candidate, roots.KindFile)
	if err != nil {
		return "", err
	}
	return runCoreCommand(ctx, coreshasum.New(), filepath.Dir(file), []string{"-a", "256", file})
}

// runCoreCommand runs a u-root core command with captured output.
func runCoreCommand(ctx context.Context, cmd core.Command, workdir string, args []string) (string, error) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.SetIO(strings.NewReader(""), &stdout, &stderr)
	cmd.SetWorkingDir(workdir)

	if err := cmd.RunContext(ctx, args...); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("%v: %s", err, errMsg)
		}
		return "", err
	}

	return stdout.String(), nil
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, cmd := range Commands() {
		fmt.Fprintf(&b, "  %-28s %s\n", cmd.Usage, cmd.Description)
	}
	return b.String()
}
