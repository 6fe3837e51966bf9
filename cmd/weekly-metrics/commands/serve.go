package commands

import (
	"os/signal"
	"syscall"

	"weekly-metrics/internal/api"
	"weekly-metrics/internal/mcp"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the metrics over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := serveAddr
		if addr == "" {
			addr = cfg.HTTPAddr
		}
		server := api.New(newOrchestrator(), api.Settings{
			DefaultWeek: cfg.DefaultWeek,
			NumWeeks:    cfg.NumWeeks,
			RawDir:      cfg.RawDir(),
		})
		return server.Start(ctx, addr)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the metrics as MCP tools on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := mcp.NewServer(cfg, newOrchestrator(), Version)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd, mcpCmd)
}
