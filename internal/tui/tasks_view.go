package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"crewmon/internal/progress"
)

var statusIcons = map[progress.TaskStatus]string{
	progress.TaskPending:    "○",
	progress.TaskInProgress: "◐",
	progress.TaskCompleted:  "●",
}

func renderTasks(p progress.Snapshot, width int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Tasks"))
	b.WriteString("\n")

	inner := max(10, width-4)
	b.WriteString(renderBar(p.Progress, inner-5))
	b.WriteString(fmt.Sprintf(" %3d%%\n", p.Progress))

	for _, t := range p.Tasks {
		name := truncate(t.Icon+" "+t.Name, inner-2)
		if !t.Enabled {
			b.WriteString("\n" + dimStyle.Render("- ") + disabledTaskStyle.Render(name))
			continue
		}
		st := taskStatusStyles[t.Status]
		b.WriteString("\n" + st.Render(statusIcons[t.Status]+" "+name))
	}

	return panelStyle.Width(width - 2).Render(b.String())
}

func renderAgents(p progress.Snapshot, width int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Agents"))

	inner := max(10, width-4)
	for _, a := range p.Agents {
		line := truncate(a.Role, inner-2)
		active := p.ActiveAgent != nil && p.ActiveAgent.Role == a.Role
		switch {
		case active && p.Highlighted:
			line = highlightAgentStyle.Render("▶ " + line)
		case active:
			line = activeAgentStyle.Render("▶ " + line)
		case !a.Enabled:
			line = disabledTaskStyle.Render("  " + line)
		default:
			line = agentStyle.Render("  " + line)
		}
		b.WriteString("\n" + line)
		if a.LLM != "" && active {
			b.WriteString("\n" + dimStyle.Render("    "+truncate(a.LLM, inner-4)))
		}
	}
	if p.ActiveAgent == nil && p.ActiveAgentRole != "" {
		b.WriteString("\n" + activeAgentStyle.Render("▶ "+truncate(p.ActiveAgentRole, inner-2)))
	}

	return panelStyle.Width(width - 2).Render(b.String())
}

// renderBar draws a fixed-width progress bar.
func renderBar(percent, width int) string {
	if width < 1 {
		return ""
	}
	filled := width * percent / 100
	return barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func truncate(s string, n int) string {
	if n <= 0 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > n {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
