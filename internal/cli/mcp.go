package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	guardmcp "github.com/ppiankov/guardstream/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs guardstream as an MCP (Model Context Protocol) server over stdio.\nExposes the tools: guard_text, guard_status.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := newRuntime(ctx, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.cfg.RequireGuardrail(); err != nil {
		return err
	}

	srv := guardmcp.New(rt.guard, guardmcp.Config{
		Version:       version,
		PolicyID:      rt.cfg.Guardrail.ID,
		PolicyVersion: rt.cfg.Guardrail.Version,
		AuditLog:      rt.auditLog,
		Store:         rt.store,
		Logger:        rt.log,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "guardstream MCP server running on stdio")
	return srv.Run(ctx)
}
