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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fsroots/internal/server"
)

func (a *app) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve ROOT...",
		Short: "Serve the tools over MCP on stdin/stdout (default command)",
		Args:  cobra.ArbitraryArgs,
		RunE:  a.serveAction,
	}
}

func (a *app) serveAction(cmd *cobra.Command, args []string) error {
	registry, err := a.newRegistry(args)
	if err != nil {
		return err
	}
	defer registry.Close()

	s, err := server.New(registry, a.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = s.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	a.logger.Info().Err(err).Msg("Server stopped")
	return err
}
