package mcpserver

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"crewmon/internal/progress"
	"crewmon/internal/transcript"
)

type crewTools struct {
	crew Crew
	feed *Feed
}

func registerCrewTools(server *mcpsdk.Server, t *crewTools) {
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "crew_progress",
		Description: "Get the crew run's connection status, task list with statuses, overall progress and the active agent",
	}, t.progressHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "crew_transcript",
		Description: "Get the consolidated conversation of the crew run, optionally only the last N messages or messages after a given id",
	}, t.transcriptHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "crew_agents",
		Description: "List the crew's agents with their models and which one is currently speaking",
	}, t.agentsHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "crew_send_input",
		Description: "Answer the crew's pending question or send it a message",
	}, t.sendInputHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "crew_start_analysis",
		Description: "Start a new crew run with a prompt. Task progress is reset.",
	}, t.startAnalysisHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "crew_configure",
		Description: "Enable or disable tasks and agents, then push the configuration to the crew server",
	}, t.configureHandler)
}

// crew_progress

type progressInput struct{}

type progressOutput struct {
	Status        string          `json:"status"`
	CrewType      string          `json:"crewType"`
	Progress      int             `json:"progress"`
	CurrentTask   string          `json:"currentTask,omitempty"`
	ActiveAgent   string          `json:"activeAgent,omitempty"`
	Analysis      bool            `json:"analysisInProgress"`
	FromDefaults  bool            `json:"fromDefaults"`
	LastHeartbeat string          `json:"lastHeartbeat,omitempty"`
	Tasks         []progress.Task `json:"tasks"`
	Events        []crewEvent     `json:"events,omitempty"`
}

func (t *crewTools) progressHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input progressInput) (*mcpsdk.CallToolResult, progressOutput, error) {
	snap := t.crew.Snapshot()
	out := progressOutput{
		Status:       string(snap.Status),
		CrewType:     snap.CrewType,
		Progress:     snap.Progress.Progress,
		CurrentTask:  snap.Progress.CurrentTaskID,
		ActiveAgent:  snap.Progress.ActiveAgentRole,
		Analysis:     snap.Analysis,
		FromDefaults: snap.Progress.FromDefaults,
		Tasks:        append([]progress.Task{}, snap.Progress.Tasks...),
		Events:       t.feed.Drain(),
	}
	if !snap.LastHeartbeat.IsZero() {
		out.LastHeartbeat = snap.LastHeartbeat.Format("2006-01-02T15:04:05Z07:00")
	}
	return nil, out, nil
}

// crew_transcript

type transcriptInput struct {
	Limit   int    `json:"limit,omitempty" jsonschema:"Return only the last N messages (default: all)"`
	AfterID string `json:"afterId,omitempty" jsonschema:"Return only messages after the message with this id"`
	Plain   bool   `json:"plain,omitempty" jsonschema:"Strip emphasis markup from message content"`
}

type transcriptOutput struct {
	Messages []transcript.Message `json:"messages"`
	Waiting  transcript.Waiting   `json:"waiting"`
	Total    int                  `json:"total"`
	Events   []crewEvent          `json:"events,omitempty"`
}

func (t *crewTools) transcriptHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input transcriptInput) (*mcpsdk.CallToolResult, transcriptOutput, error) {
	if input.Limit < 0 {
		return nil, transcriptOutput{}, fmt.Errorf("limit must not be negative")
	}
	snap := t.crew.Snapshot()
	msgs := snap.Messages

	if input.AfterID != "" {
		for i, m := range msgs {
			if m.ID == input.AfterID {
				msgs = msgs[i+1:]
				break
			}
		}
	}
	if input.Limit > 0 && len(msgs) > input.Limit {
		msgs = msgs[len(msgs)-input.Limit:]
	}

	out := make([]transcript.Message, len(msgs))
	copy(out, msgs)
	if input.Plain {
		for i := range out {
			out[i].Content = transcript.PlainText(out[i].Content)
		}
	}
	return nil, transcriptOutput{
		Messages: out,
		Waiting:  snap.Waiting,
		Total:    len(snap.Messages),
		Events:   t.feed.Drain(),
	}, nil
}

// crew_agents

type agentsInput struct{}

type agentsOutput struct {
	Agents      []progress.Agent  `json:"agents"`
	ActiveAgent string            `json:"activeAgent,omitempty"`
	Highlighted bool              `json:"highlighted"`
	LLMModels   map[string]string `json:"llmModels,omitempty"`
}

func (t *crewTools) agentsHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input agentsInput) (*mcpsdk.CallToolResult, agentsOutput, error) {
	snap := t.crew.Snapshot().Progress
	return nil, agentsOutput{
		Agents:      append([]progress.Agent{}, snap.Agents...),
		ActiveAgent: snap.ActiveAgentRole,
		Highlighted: snap.Highlighted,
		LLMModels:   snap.LLMModels,
	}, nil
}

// crew_send_input

type sendInputInput struct {
	Content string `json:"content" jsonschema:"Text to send to the crew"`
}

type sentOutput struct {
	Sent bool `json:"sent"`
}

func (t *crewTools) sendInputHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input sendInputInput) (*mcpsdk.CallToolResult, sentOutput, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, sentOutput{}, fmt.Errorf("content is required")
	}
	if !t.crew.SendInput(input.Content) {
		return nil, sentOutput{}, fmt.Errorf("not connected to the crew server, message not sent")
	}
	return nil, sentOutput{Sent: true}, nil
}

// crew_start_analysis

type startAnalysisInput struct {
	Prompt   string `json:"prompt" jsonschema:"What the crew should analyse"`
	CrewType string `json:"crewType,omitempty" jsonschema:"Crew type to run (default: the configured one)"`
}

func (t *crewTools) startAnalysisHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input startAnalysisInput) (*mcpsdk.CallToolResult, sentOutput, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, sentOutput{}, fmt.Errorf("prompt is required")
	}
	if !t.crew.StartAnalysis(ctx, input.CrewType, input.Prompt) {
		return nil, sentOutput{}, fmt.Errorf("not connected to the crew server, analysis not started")
	}
	return nil, sentOutput{Sent: true}, nil
}

// crew_configure

type configureInput struct {
	EnableTasks   []string `json:"enableTasks,omitempty" jsonschema:"Task ids to enable"`
	DisableTasks  []string `json:"disableTasks,omitempty" jsonschema:"Task ids to disable"`
	EnableAgents  []string `json:"enableAgents,omitempty" jsonschema:"Agent roles to enable"`
	DisableAgents []string `json:"disableAgents,omitempty" jsonschema:"Agent roles to disable"`
	Reset         bool     `json:"reset,omitempty" jsonschema:"Also reset every task to pending"`
}

type configureOutput struct {
	Sent    bool     `json:"sent"`
	Unknown []string `json:"unknown,omitempty"`
}

func (t *crewTools) configureHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input configureInput) (*mcpsdk.CallToolResult, configureOutput, error) {
	var unknown []string
	apply := func(ids []string, enabled bool, set func(string, bool) bool) {
		for _, id := range ids {
			if !set(id, enabled) {
				unknown = append(unknown, id)
			}
		}
	}
	apply(input.EnableTasks, true, t.crew.SetTaskEnabled)
	apply(input.DisableTasks, false, t.crew.SetTaskEnabled)
	apply(input.EnableAgents, true, t.crew.SetAgentEnabled)
	apply(input.DisableAgents, false, t.crew.SetAgentEnabled)
	if input.Reset {
		t.crew.ResetProgress()
	}

	if !t.crew.SaveCustomConfig() {
		return nil, configureOutput{Unknown: unknown}, fmt.Errorf("configuration not delivered to the crew server")
	}
	return nil, configureOutput{Sent: true, Unknown: unknown}, nil
}
