package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	coreconfig "github.com/andriy-git/stocksTUI/core/config"
	"github.com/andriy-git/stocksTUI/ui/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start market data MCP server using SSE",
	Long:  `Start a market data MCP (Model Context Protocol) server using Server-Sent Events (SSE) transport. This allows AI agents to query cached quotes and trigger refreshes through a standardized protocol.`,
	Run:   mcpServer,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("port", "", "Port for the SSE MCP server")
	mcpCmd.Flags().String("host", "", "Host for the SSE MCP server")
}

func mcpServer(cmd *cobra.Command, _ []string) {
	if v, _ := cmd.Flags().GetString("port"); v != "" {
		coreconfig.Global.MCP.Port = v
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		coreconfig.Global.MCP.Host = v
	}
	host := coreconfig.Global.MCP.Host
	port := coreconfig.Global.MCP.Port

	// Create MCP server with capabilities
	mcpSrv := server.NewMCPServer(
		"Market Quote Cache MCP Server",
		coreconfig.Global.App.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
	)

	marketHandler := mcp.InitMcpMarket(marketService, cacheUsecase)
	marketHandler.AddMarketTools(mcpSrv)

	// The scheduler keeps the cache warm while agents are connected.
	if coreconfig.Global.Refresh.Enabled {
		if err := marketService.StartScheduler(cmd.Context()); err != nil {
			logrus.WithError(err).Error("[MCP] could not start refresh scheduler")
		}
	}

	// Create SSE server
	sseServer := server.NewSSEServer(
		mcpSrv,
		server.WithBaseURL(fmt.Sprintf("http://%s:%s", host, port)),
		server.WithKeepAlive(true),
	)

	addr := fmt.Sprintf("%s:%s", host, port)
	logrus.Printf("Starting market MCP SSE server on %s", addr)
	logrus.Printf("SSE endpoint: http://%s:%s/sse", host, port)
	logrus.Printf("Message endpoint: http://%s:%s/message", host, port)

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[MCP] Reception of termination signal, shutting down gracefully...")
		StopApp()
		os.Exit(0)
	}()

	if err := sseServer.Start(addr); err != nil {
		logrus.Fatalf("Failed to start SSE server: %v", err)
	}
}
