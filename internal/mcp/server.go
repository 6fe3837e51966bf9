// Package mcp serves the metric calculators as Model Context Protocol tools.
package mcp

import (
	"context"

	"weekly-metrics/internal/batch"
	"weekly-metrics/internal/config"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const serverName = "weekly-metrics"

// Server holds the state for the MCP server.
type Server struct {
	cfg  *config.AppConfig
	orch *batch.Orchestrator
	mcp  *sdk.Server
}

// NewServer creates a new MCP server with every tool registered.
func NewServer(cfg *config.AppConfig, orch *batch.Orchestrator, version string) (*Server, error) {
	s := &Server{
		cfg:  cfg,
		orch: orch,
		mcp:  sdk.NewServer(&sdk.Implementation{Name: serverName, Version: version}, nil),
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// Serve runs the server over stdio until the client disconnects or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Str("dataRoot", s.cfg.DataRoot).Bool("charts", s.cfg.EnableMermaidCharts).Msg("Starting MCP server on stdio")
	return s.mcp.Run(ctx, &sdk.StdioTransport{})
}

// Connect attaches the server to an arbitrary transport, mainly for tests.
func (s *Server) Connect(ctx context.Context, t sdk.Transport) (*sdk.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
