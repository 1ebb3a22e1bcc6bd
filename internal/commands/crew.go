package commands

import (
	"context"
	"fmt"
	"strings"

	"crewmon/internal/crewinfo"
	"crewmon/internal/output"
	"crewmon/internal/progress"
	"crewmon/internal/ui"
)

// RunTasks prints the tasks and agents of the configured crew type.
func RunTasks() {
	cfg := loadRuntimeConfig()
	ctx, cancel := signalContext()
	defer cancel()

	tracker := progress.New()
	remote := tracker.LoadConfig(ctx, crewinfo.New(cfg.ServerURL, cfg.HTTPTimeout), cfg.CrewType)
	snap := tracker.Snapshot()

	output.Print(snap, func() {
		ui.ShowHeader(fmt.Sprintf("Crew %s", cfg.CrewType))
		if !remote {
			ui.ShowWarning("Crew service unavailable, showing built-in tasks")
		}
		fmt.Fprintln(ui.Out)
		ui.ShowInfo("Tasks")
		for _, t := range snap.Tasks {
			name := t.Icon + " " + t.Name
			if !t.Enabled {
				name += " (disabled)"
			}
			ui.ShowField(t.ID, name)
		}
		fmt.Fprintln(ui.Out)
		ui.ShowInfo("Agents")
		for _, a := range snap.Agents {
			detail := a.LLM
			if !a.Enabled {
				detail = strings.TrimSpace(detail + " (disabled)")
			}
			ui.ShowField(a.Role, detail)
		}
	})
}

// RunCrewTypes lists the crew types the service offers.
func RunCrewTypes() {
	cfg := loadRuntimeConfig()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()

	types, err := crewinfo.New(cfg.ServerURL, cfg.HTTPTimeout).ListCrewTypes(ctx)
	if err != nil {
		output.PrintError(fmt.Errorf("list crew types: %w", err))
		return
	}

	output.Print(types, func() {
		if len(types) == 0 {
			ui.ShowWarning("The crew service lists no crew types")
			return
		}
		for _, t := range types {
			mark := " "
			if t == cfg.CrewType {
				mark = "*"
			}
			fmt.Fprintf(ui.Out, " %s %s\n", mark, t)
		}
	})
}

// RunPushConfig sends the crew configuration, with the given tasks and
// agents disabled, as set_custom_config.
func RunPushConfig(disableTasks, disableAgents []string) {
	cfg := loadRuntimeConfig()
	ctx, cancel := signalContext()
	defer cancel()

	mon := newMonitor(cfg)
	defer mon.Close()

	if err := mon.Start(ctx); err != nil {
		output.PrintError(err)
		return
	}
	for _, id := range disableTasks {
		if !mon.SetTaskEnabled(id, false) {
			output.PrintError(fmt.Errorf("unknown task %q", id))
			return
		}
	}
	for _, role := range disableAgents {
		if !mon.SetAgentEnabled(role, false) {
			output.PrintError(fmt.Errorf("unknown agent %q", role))
			return
		}
	}

	if !mon.SaveCustomConfig() {
		output.PrintError(fmt.Errorf("configuration not sent: not connected to %s", cfg.WebSocketURL()))
		return
	}

	snap := mon.Snapshot().Progress
	output.Print(map[string]any{
		"crew_type": cfg.CrewType,
		"tasks":     snap.Tasks,
		"agents":    snap.Agents,
	}, func() {
		ui.ShowSuccess("Configuration for crew %q sent", cfg.CrewType)
	})
}
