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
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fsroots/internal/config"
	apperrors "fsroots/internal/errors"
	"fsroots/internal/roots"
	"fsroots/internal/server"
	"fsroots/internal/tools"
)

func main() {
	if err := newApp().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps configuration problems to 2 and everything else to 1.
func exitCode(err error) int {
	if apperrors.HasCode(err, apperrors.CodeConfiguration) {
		return 2
	}
	return 1
}

// app carries state shared by the subcommands.
type app struct {
	configPath string
	debug      bool
	logFile    string

	cfg     *config.Config
	logger  zerolog.Logger
	closers []io.Closer
}

func newApp() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "fsroots [flags] ROOT...",
		Short: "Read-only filesystem tools confined to allowed root directories",
		Long: `fsroots serves list_dir and read_text_file over the Model Context Protocol
on stdin/stdout. Every path must be absolute and resolve, symlinks included,
inside one of the allowed roots.`,
		Version: server.Version,
		Example: `  Serve two roots over stdio:
  $ fsroots /srv/docs ~/notes

  Browse the roots interactively:
  $ fsroots console /srv/docs`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
		RunE:              a.serveAction,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file, JSON or YAML (default "+config.DefaultConfigFile+" if present)")
	flags.BoolVarP(&a.debug, "debug", "d", false, "Enable debug logging (to stderr unless --log-file is set)")
	flags.StringVar(&a.logFile, "log-file", "", "Append logs to this file")

	rootCmd.AddCommand(
		a.newServeCommand(),
		a.newBatchCommand(),
		a.newConsoleCommand(),
		a.newToolsCommand(),
		newSchemaCommand(),
	)
	return rootCmd
}

// setup loads configuration and the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	path := a.configPath
	if path == "" {
		path = config.DefaultConfigFile
	} else if _, err := os.Stat(path); err != nil {
		return apperrors.Wrap(apperrors.CodeConfiguration, fmt.Sprintf("cannot read config file %s", path), err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logFile := a.logFile
	if logFile == "" {
		logFile = cfg.LogFile
	}
	logger, closer, err := initLogger(a.debug, logFile, level, cmd.ErrOrStderr())
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfiguration, "cannot open log file", err)
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.logger = logger
	a.logger.Debug().Str("config", path).Str("command", cmd.Name()).Msg("Configuration loaded")
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}

// newRegistry builds the root set from config roots followed by args and
// wraps it in a tool registry.
func (a *app) newRegistry(args []string) (*tools.Registry, error) {
	merged := a.cfg.MergeRoots(args)
	set, err := roots.New(merged)
	if err != nil {
		a.logger.Error().Err(err).Strs("roots", merged).Msg("Rejected root configuration")
		return nil, err
	}
	registry := tools.NewRegistry(set, a.cfg.RegistryOptions(&a.logger))
	for _, w := range a.cfg.Validate(registry) {
		a.logger.Warn().Str("field", w.Field).Msg(w.Message)
	}
	a.logger.Info().Strs("roots", set.Roots()).Msg("Allowed roots")
	return registry, nil
}
