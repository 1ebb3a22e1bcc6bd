package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const hookTimeout = 30 * time.Second

// HookPayload is the JSON a hook script receives on stdin.
type HookPayload struct {
	Event     string `json:"event"`
	CrewType  string `json:"crewType"`
	TaskID    string `json:"taskId,omitempty"`
	TaskName  string `json:"taskName,omitempty"`
	Agent     string `json:"agent,omitempty"`
	Progress  int    `json:"progress"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// HookNotifier runs a user script for every notification.
type HookNotifier struct {
	ScriptPath string
}

// NewHookNotifier creates a HookNotifier for the given script path.
func NewHookNotifier(scriptPath string) *HookNotifier {
	return &HookNotifier{ScriptPath: scriptPath}
}

// Send runs the script with the JSON payload on stdin, bounded by
// hookTimeout.
func (h *HookNotifier) Send(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, hookTimeout)
	defer cancel()

	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	data, err := json.Marshal(HookPayload{
		Event:     string(n.Kind),
		CrewType:  n.CrewType,
		TaskID:    n.TaskID,
		TaskName:  n.TaskName,
		Agent:     n.Agent,
		Progress:  n.Progress,
		Message:   n.Message,
		Timestamp: at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("hook marshal payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, h.ScriptPath)
	cmd.Stdin = strings.NewReader(string(data))

	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("hook timed out after %s: %s", hookTimeout, h.ScriptPath)
	}
	if err != nil {
		return fmt.Errorf("hook execution failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (h *HookNotifier) Name() string { return "hook" }
