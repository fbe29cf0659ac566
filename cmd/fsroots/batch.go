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
	"time"

	"github.com/spf13/cobra"

	"fsroots/internal/batch"
)

func (a *app) newBatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch ROOT...",
		Short: "Run JSON-lines tool calls from stdin and print tool messages",
		Long: `batch reads one OpenAI-style tool call per line from stdin, for example
  {"id":"1","type":"function","function":{"name":"list_dir","arguments":"{\"path\":\"/srv/docs\"}"}}
and writes one tool message per call to stdout, in input order.`,
		Args: cobra.ArbitraryArgs,
		RunE: a.batchAction,
	}
	cmd.Flags().Int("workers", 0, "Concurrent calls (default from config, 4 if unset)")
	return cmd
}

func (a *app) batchAction(cmd *cobra.Command, args []string) error {
	a.logger.Debug().Msg("Running in batch mode")

	registry, err := a.newRegistry(args)
	if err != nil {
		return err
	}
	defer registry.Close()

	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = a.cfg.Batch.Workers
	}

	start := time.Now()
	summary, err := batch.NewRunner(registry, workers, a.logger).Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		a.logger.Error().Err(err).Msg("Batch mode failed")
		return fmt.Errorf("batch failed: %w", err)
	}
	a.logger.Info().
		Int("calls", summary.Calls).
		Int("failed", summary.Failed).
		Dur("duration", time.Since(start)).
		Msg("Batch finished")
	return nil
}
