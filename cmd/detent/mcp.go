package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/detent/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp [config]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts a detent engine as an MCP Server, so agents can mount, present,
resize and dismiss simulated sheets and inspect the stack.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		deps, err := buildEngine(ctx, cfg, logger, engineSetup{})
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := mountAll(deps.engine, cfg.Sheets); err != nil {
			return err
		}

		srv := mcp.NewServer(deps.engine, logger)
		switch transport {
		case "stdio":
			// Stdout belongs to JSON-RPC; logs go to stderr.
			return srv.ServeStdio()
		case "sse":
			return srv.ServeSSE(ctx, port)
		}
		return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().IntP("port", "p", 8080, "Port for the sse transport")
}
