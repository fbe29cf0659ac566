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

// Package server binds the tool registry and the roots resource to the
// Model Context Protocol over stdio.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	apperrors "fsroots/internal/errors"
	"fsroots/internal/tools"
)

// Server identity reported during the MCP handshake.
const (
	Name    = "fsroots"
	Version = "0.1.0"
)

// RootsResourceURI addresses the list of allowed roots.
const RootsResourceURI = "resource://roots"

// Server exposes a registry over MCP.
type Server struct {
	registry *tools.Registry
	logger   zerolog.Logger
	mcp      *server.MCPServer
}

// New builds an MCP server advertising every allowed tool of the registry
// and the roots resource.
func New(registry *tools.Registry, logger zerolog.Logger) (*Server, error) {
	instructions, err := Instructions()
	if err != nil {
		return nil, err
	}

	s := &Server{
		registry: registry,
		logger:   logger,
		mcp: server.NewMCPServer(Name, Version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithInstructions(instructions),
			server.WithRecovery(),
		),
	}

	for _, tool := range registry.GetTools() {
		if !registry.GetPermission(tool.Name()).Allowed {
			logger.Debug().Str("tool", tool.Name()).Msg("Tool disabled, not advertised")
			continue
		}
		schema, err := json.Marshal(tool.Parameters())
		if err != nil {
			return nil, fmt.Errorf("encoding schema for %s: %w", tool.Name(), err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema), s.toolHandler(tool.Name()))
	}

	s.mcp.AddResource(mcp.NewResource(RootsResourceURI, "roots",
		mcp.WithResourceDescription("Allowed root directories, in canonical form"),
		mcp.WithMIMEType("application/json"),
	), s.handleRoots)

	return s, nil
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio handles requests from in and writes responses to out until
// the context ends or the input closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(s.logger, "", 0))

	s.logger.Info().Strs("roots", s.rootList()).Msg("Serving MCP over stdio")
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// toolHandler reports tool failures as error results rather than protocol
// errors so clients can show the message to the model.
func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := s.registry.Execute(ctx, name, request.GetArguments())
		if result.Error != nil {
			return mcp.NewToolResultError(result.Result), nil
		}
		return mcp.NewToolResultText(result.Result), nil
	}
}

func (s *Server) handleRoots(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if s.registry.Roots() == nil {
		return nil, apperrors.New(apperrors.CodeConfiguration, "no allowed roots configured")
	}
	data, err := json.Marshal(s.rootList())
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RootsResourceURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) rootList() []string {
	if set := s.registry.Roots(); set != nil {
		return set.Roots()
	}
	return []string{}
}
