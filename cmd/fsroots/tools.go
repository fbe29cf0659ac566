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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"fsroots/internal/config"
	"fsroots/internal/tools"
)

func (a *app) newToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the enabled tools as OpenAI function definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := tools.NewRegistry(nil, a.cfg.RegistryOptions(&a.logger))
			defer registry.Close()

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(registry.OpenAITools())
		},
	}
}

func newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			example, err := cmd.Flags().GetBool("example")
			if err != nil {
				return err
			}
			if example {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), config.ExampleConfigJSON())
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), config.SchemaJSON())
			return err
		},
	}
	cmd.Flags().Bool("example", false, "Print an example configuration instead")
	return cmd
}
