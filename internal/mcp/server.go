package mcpserver

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"crewmon/internal/monitor"
)

// Crew is the live monitor as the tools see it.
type Crew interface {
	Snapshot() monitor.Snapshot
	SendInput(text string) bool
	StartAnalysis(ctx context.Context, crewType, prompt string) bool
	SaveCustomConfig() bool
	SetTaskEnabled(id string, enabled bool) bool
	SetAgentEnabled(role string, enabled bool) bool
	ResetProgress()
}

// NewServer builds the MCP server exposing crew. Events queued on feed are
// attached to tool responses.
func NewServer(crew Crew, feed *Feed, version string) *mcpsdk.Server {
	server := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "crewmon",
			Version: version,
		},
		nil,
	)
	registerCrewTools(server, &crewTools{crew: crew, feed: feed})
	return server
}

// RunServer serves crew over stdio until ctx ends or the client leaves.
func RunServer(ctx context.Context, crew Crew, events <-chan monitor.Event, version string) error {
	feed := NewFeed()
	server := NewServer(crew, feed, version)
	go feed.Run(ctx, server, events)
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
