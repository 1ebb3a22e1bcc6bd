package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"crewmon/internal/monitor"
	"crewmon/internal/progress"
)

const maxPendingEvents = 100

// crewEvent is one noteworthy change, delivered with the next tool response.
type crewEvent struct {
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	TaskID    string `json:"taskId,omitempty"`
	Progress  int    `json:"progress,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Feed buffers monitor events for MCP clients. Clients that enabled
// logging also get each event pushed as it happens.
type Feed struct {
	mu      sync.Mutex
	pending []crewEvent
	now     func() time.Time
}

func NewFeed() *Feed {
	return &Feed{now: time.Now}
}

// Run consumes events until the channel closes or ctx ends.
func (f *Feed) Run(ctx context.Context, server *mcpsdk.Server, events <-chan monitor.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			ce, ok := f.translate(ev)
			if !ok {
				continue
			}
			f.push(ce)
			tryLogToSessions(ctx, server, ce)
		}
	}
}

// Drain returns and clears the buffered events.
func (f *Feed) Drain() []crewEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}

func (f *Feed) push(ev crewEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) >= maxPendingEvents {
		f.pending = f.pending[1:]
	}
	f.pending = append(f.pending, ev)
}

func (f *Feed) translate(ev monitor.Event) (crewEvent, bool) {
	ts := f.now().UTC().Format(time.RFC3339)
	switch v := ev.(type) {
	case monitor.ProgressChanged:
		switch pe := v.Event.(type) {
		case progress.TaskStatusChanged:
			return crewEvent{Kind: "task_status", TaskID: pe.TaskID,
				Text: fmt.Sprintf("%s: %s -> %s", pe.TaskName, pe.Old, pe.New), Timestamp: ts}, true
		case progress.ActiveAgentChanged:
			return crewEvent{Kind: "active_agent", Text: pe.Role, Timestamp: ts}, true
		}
	case monitor.ConnectionChanged:
		return crewEvent{Kind: "connection", Text: string(v.Status), Timestamp: ts}, true
	case monitor.NoticeRaised:
		return crewEvent{Kind: "notice", Text: string(v.Level) + ": " + v.Text, Timestamp: ts}, true
	case monitor.RunFinished:
		return crewEvent{Kind: "run_finished", Text: v.Summary, Progress: v.Progress, Timestamp: ts}, true
	}
	return crewEvent{}, false
}

// tryLogToSessions pushes ev to every session as a log message. Log drops
// messages for clients that never set a level, so the pending queue stays
// the reliable path.
func tryLogToSessions(ctx context.Context, server *mcpsdk.Server, ev crewEvent) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	for ss := range server.Sessions() {
		_ = ss.Log(ctx, &mcpsdk.LoggingMessageParams{
			Level:  "info",
			Logger: "crew",
			Data:   ev,
		})
	}
}
