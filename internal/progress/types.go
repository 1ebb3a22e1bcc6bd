package progress

import (
	"context"
	"fmt"
)

// TaskStatus is a task's position in the pending → in-progress → completed
// progression.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

func (s TaskStatus) rank() int {
	switch s {
	case TaskPending:
		return 0
	case TaskInProgress:
		return 1
	case TaskCompleted:
		return 2
	}
	return -1
}

// ParseTaskStatus accepts the wire spellings of a task status.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch s {
	case "pending":
		return TaskPending, nil
	case "in-progress", "in_progress", "running":
		return TaskInProgress, nil
	case "completed", "done":
		return TaskCompleted, nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Task is one pipeline stage.
type Task struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Status         TaskStatus `json:"status"`
	Icon           string     `json:"icon"`
	Description    string     `json:"description,omitempty"`
	ExpectedOutput string     `json:"expected_output,omitempty"`
	AgentRole      string     `json:"agent_role,omitempty"`
	Enabled        bool       `json:"enabled"`
}

// Agent is a crew participant definition.
type Agent struct {
	Role      string   `json:"role"`
	Goal      string   `json:"goal,omitempty"`
	Backstory string   `json:"backstory,omitempty"`
	LLM       string   `json:"llm,omitempty"`
	Tools     []string `json:"tools,omitempty"`
	Enabled   bool     `json:"enabled"`
}

// TaskTemplate is the task shape exchanged with the crew service.
type TaskTemplate struct {
	Description    string `json:"description"`
	ExpectedOutput string `json:"expected_output"`
	AgentRole      string `json:"agent_role,omitempty"`
	Enabled        bool   `json:"enabled"`
}

// CrewConfig is the agent/task configuration of one crew type.
type CrewConfig struct {
	Agents    []Agent           `json:"agents"`
	Tasks     []TaskTemplate    `json:"tasks"`
	LLMModels map[string]string `json:"llm_models,omitempty"`
}

// Source fetches crew configuration from the crew service.
type Source interface {
	FetchCrewInfo(ctx context.Context, crewType string) (*CrewConfig, error)
}

// Snapshot is a consistent copy of the tracker state.
type Snapshot struct {
	Tasks           []Task            `json:"tasks"`
	Agents          []Agent           `json:"agents"`
	LLMModels       map[string]string `json:"llm_models,omitempty"`
	CurrentTaskID   string            `json:"current_task_id,omitempty"`
	ActiveAgentRole string            `json:"active_agent_role,omitempty"`
	ActiveAgent     *Agent            `json:"active_agent,omitempty"`
	Highlighted     bool              `json:"highlighted"`
	Progress        int               `json:"progress"`
	FromDefaults    bool              `json:"from_defaults"`
}

// Event is a tracker notification. The concrete value is
// TaskStatusChanged, ActiveAgentChanged or ConfigLoaded.
type Event interface {
	isEvent()
}

// TaskStatusChanged is emitted for every accepted status transition.
type TaskStatusChanged struct {
	TaskID   string     `json:"task_id"`
	TaskName string     `json:"task_name"`
	Old      TaskStatus `json:"old"`
	New      TaskStatus `json:"new"`
}

// ActiveAgentChanged is emitted when a different speaker is identified.
// Agent is the matching known agent, or nil.
type ActiveAgentChanged struct {
	Role  string `json:"role"`
	Agent *Agent `json:"agent,omitempty"`
}

// ConfigLoaded is emitted whenever the task/agent collections are replaced.
type ConfigLoaded struct {
	CrewType string `json:"crew_type"`
	Fallback bool   `json:"fallback"`
}

func (TaskStatusChanged) isEvent()  {}
func (ActiveAgentChanged) isEvent() {}
func (ConfigLoaded) isEvent()       {}
