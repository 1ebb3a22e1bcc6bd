package tui

import (
	"github.com/charmbracelet/lipgloss"

	"crewmon/internal/channel"
	"crewmon/internal/progress"
	"crewmon/internal/transcript"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED") // purple
	secondaryColor = lipgloss.Color("#10B981") // green
	mutedColor     = lipgloss.Color("#6B7280") // gray
	dangerColor    = lipgloss.Color("#EF4444") // red
	warnColor      = lipgloss.Color("#F59E0B") // yellow
	pinkColor      = lipgloss.Color("#F472B6")
	infoColor      = lipgloss.Color("#3B82F6")

	appStyle = lipgloss.NewStyle().Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	dimStyle = lipgloss.NewStyle().Foreground(mutedColor)

	// Transcript
	timestampStyle = lipgloss.NewStyle().Foreground(mutedColor)
	roleStyles     = map[transcript.Role]lipgloss.Style{
		transcript.RoleUser:   lipgloss.NewStyle().Bold(true).Foreground(infoColor),
		transcript.RoleAgent:  lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
		transcript.RoleSystem: lipgloss.NewStyle().Bold(true).Foreground(warnColor),
	}
	thinkingStyle  = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	emphasisStyles = map[string]lipgloss.Style{
		transcript.EmphasisPink:  lipgloss.NewStyle().Bold(true).Foreground(pinkColor),
		transcript.EmphasisGreen: lipgloss.NewStyle().Bold(true).Foreground(secondaryColor),
	}
	deliveryErrorStyle = lipgloss.NewStyle().Foreground(dangerColor)

	// Tasks
	taskStatusStyles = map[progress.TaskStatus]lipgloss.Style{
		progress.TaskPending:    lipgloss.NewStyle().Foreground(mutedColor),
		progress.TaskInProgress: lipgloss.NewStyle().Bold(true).Foreground(infoColor),
		progress.TaskCompleted:  lipgloss.NewStyle().Foreground(secondaryColor),
	}
	disabledTaskStyle = lipgloss.NewStyle().Foreground(mutedColor).Strikethrough(true)
	barFilledStyle    = lipgloss.NewStyle().Foreground(primaryColor)
	barEmptyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3F47"))

	// Agents
	agentStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB"))
	activeAgentStyle    = lipgloss.NewStyle().Bold(true).Foreground(secondaryColor)
	highlightAgentStyle = lipgloss.NewStyle().Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(secondaryColor)

	// Connection and notices
	connectionStyles = map[channel.Status]lipgloss.Style{
		channel.StatusConnected:    lipgloss.NewStyle().Foreground(secondaryColor),
		channel.StatusConnecting:   lipgloss.NewStyle().Foreground(warnColor),
		channel.StatusDisconnected: lipgloss.NewStyle().Foreground(dangerColor),
	}
	noticeStyles = map[channel.NoticeLevel]lipgloss.Style{
		channel.NoticeSuccess: lipgloss.NewStyle().Foreground(secondaryColor),
		channel.NoticeWarning: lipgloss.NewStyle().Foreground(warnColor),
		channel.NoticeError:   lipgloss.NewStyle().Foreground(dangerColor),
	}

	// Input
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(warnColor)
	optionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB"))
	inputStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(1, 0, 0, 0)
)
