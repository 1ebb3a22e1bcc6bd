package commands

import (
	"log"
	"os"

	mcpserver "crewmon/internal/mcp"
)

// RunMCP serves the live crew over stdio MCP. Logs go to stderr so the
// JSON-RPC stream on stdout stays clean.
func RunMCP() {
	log.SetOutput(os.Stderr)
	cfg := loadRuntimeConfig()

	ctx, cancel := signalContext()
	defer cancel()

	mon := newMonitor(cfg)
	defer mon.Close()

	events, unsubscribe := mon.Subscribe()
	defer unsubscribe()

	if err := mon.Start(ctx); err != nil {
		log.Printf("[mcp] start: %v", err)
		os.Exit(1)
	}
	if err := mcpserver.RunServer(ctx, mon, events, Version); err != nil && ctx.Err() == nil {
		log.Printf("[mcp] server: %v", err)
		os.Exit(1)
	}
}
