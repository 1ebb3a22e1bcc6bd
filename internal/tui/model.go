package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"crewmon/internal/channel"
	"crewmon/internal/monitor"
	"crewmon/internal/progress"
)

// Crew is the live monitor as the TUI drives it.
type Crew interface {
	Snapshot() monitor.Snapshot
	SendInput(text string) bool
	SaveCustomConfig() bool
	ResetProgress()
}

const (
	sidebarWidth = 36
	noticeTTL    = 6 * time.Second
)

// Model is the main TUI model.
type Model struct {
	crew   Crew
	events <-chan monitor.Event
	snap   monitor.Snapshot

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model

	width  int
	height int
	follow bool
	closed bool

	notice    *channel.Notice
	statusMsg string
}

// eventMsg carries one monitor event into the update loop.
type eventMsg struct{ ev monitor.Event }

// eventsClosedMsg is sent when the monitor stops publishing.
type eventsClosedMsg struct{}

// sentMsg is sent after an input or config push finished.
type sentMsg struct {
	what string
	ok   bool
}

// refreshMsg asks for a fresh snapshot, e.g. when a highlight expires.
type refreshMsg struct{}

func waitForEvent(events <-chan monitor.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev}
	}
}

func refreshAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return refreshMsg{} })
}

// NewModel creates the TUI for crew, fed by events.
func NewModel(crew Crew, events <-chan monitor.Event) Model {
	ti := textinput.New()
	ti.Placeholder = "reply to the crew..."
	ti.CharLimit = 2000
	ti.Prompt = "› "

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(primaryColor)),
	)

	return Model{
		crew:     crew,
		events:   events,
		snap:     crew.Snapshot(),
		viewport: viewport.New(0, 0),
		input:    ti,
		spinner:  sp,
		help:     help.New(),
		follow:   true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case eventMsg:
		var cmds []tea.Cmd
		switch ev := msg.ev.(type) {
		case monitor.NoticeRaised:
			n := ev.Notice
			m.notice = &n
			cmds = append(cmds, refreshAfter(noticeTTL))
		case monitor.ProgressChanged:
			if _, ok := ev.Event.(progress.ActiveAgentChanged); ok {
				cmds = append(cmds, refreshAfter(progress.DefaultHighlight+100*time.Millisecond))
			}
		case monitor.RunFinished:
			m.statusMsg = fmt.Sprintf("run finished, %d%% of tasks completed", ev.Progress)
		}
		m.refresh()
		cmds = append(cmds, waitForEvent(m.events))
		return m, tea.Batch(cmds...)

	case eventsClosedMsg:
		m.closed = true
		return m, nil

	case refreshMsg:
		if m.notice != nil && time.Since(m.notice.At) >= noticeTTL {
			m.notice = nil
		}
		m.refresh()
		return m, nil

	case sentMsg:
		if msg.ok {
			m.statusMsg = msg.what + " sent"
		} else {
			m.statusMsg = ""
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.Analysis {
			m.setContent()
		}
		return m, cmd

	case tea.KeyMsg:
		if m.input.Focused() {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, keys.Escape):
		m.input.Blur()
		m.layout()
		return m, nil
	case key.Matches(msg, keys.Send):
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		m.input.Blur()
		m.layout()
		if text == "" {
			return m, nil
		}
		return m, m.sendInput(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Input):
		m.input.Focus()
		m.layout()
		return m, textinput.Blink
	case key.Matches(msg, keys.Option):
		w := m.snap.Waiting
		idx := int(msg.Runes[0] - '1')
		if w.Active && idx >= 0 && idx < len(w.Options) {
			return m, m.sendInput(w.Options[idx])
		}
		return m, nil
	case key.Matches(msg, keys.Reset):
		crew := m.crew
		return m, func() tea.Msg {
			crew.ResetProgress()
			return refreshMsg{}
		}
	case key.Matches(msg, keys.Push):
		crew := m.crew
		return m, func() tea.Msg {
			return sentMsg{what: "configuration", ok: crew.SaveCustomConfig()}
		}
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.follow = m.viewport.AtBottom()
	return m, cmd
}

// sendInput delivers text off the update loop; the monitor records the
// message and its delivery status.
func (m Model) sendInput(text string) tea.Cmd {
	crew := m.crew
	return func() tea.Msg {
		return sentMsg{what: "reply", ok: crew.SendInput(text)}
	}
}

func (m *Model) refresh() {
	m.snap = m.crew.Snapshot()
	m.layout()
}

// layout sizes the transcript viewport around the sidebar and footer.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	innerWidth := m.width - 4
	side := min(sidebarWidth, innerWidth/3)
	m.viewport.Width = max(10, innerWidth-side-2)
	m.input.Width = max(10, innerWidth-6)

	// appStyle(2) + header(1) + gap(1)
	used := 4 + lipgloss.Height(m.renderFooter())
	m.viewport.Height = max(3, m.height-used)
	m.setContent()
}

func (m *Model) setContent() {
	m.viewport.SetContent(renderTranscript(m.snap.Messages, m.viewport.Width, m.spinner.View()))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	innerWidth := m.width - 4
	side := min(sidebarWidth, innerWidth/3)

	var b strings.Builder
	b.WriteString(m.renderHeader(innerWidth))
	b.WriteString("\n\n")

	sidebar := lipgloss.JoinVertical(lipgloss.Left,
		renderTasks(m.snap.Progress, side),
		renderAgents(m.snap.Progress, side),
	)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(m.viewport.Width).Render(m.viewport.View()),
		lipgloss.NewStyle().Width(side).MarginLeft(2).Render(sidebar),
	))
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return appStyle.Render(b.String())
}

func (m Model) renderHeader(width int) string {
	title := titleStyle.Render(" ⬡ crewmon ")

	status := m.snap.Status
	if m.closed {
		status = channel.StatusDisconnected
	}
	conn := connectionStyles[status].Render("● " + string(status))
	info := dimStyle.Render(fmt.Sprintf("crew: %s  progress: %d%%", m.snap.CrewType, m.snap.Progress.Progress))
	if m.snap.Analysis {
		info += "  " + m.spinner.View() + dimStyle.Render(" analysing")
	}

	gap := strings.Repeat(" ", max(0, width-lipgloss.Width(title)-lipgloss.Width(info)-lipgloss.Width(conn)-4))
	return fmt.Sprintf("%s  %s%s  %s", title, info, gap, conn)
}

func (m Model) renderFooter() string {
	var parts []string

	if w := m.snap.Waiting; w.Active {
		q := questionStyle.Render("? " + w.Question)
		for i, opt := range w.Options {
			q += "\n" + optionStyle.Render(fmt.Sprintf("  %d) %s", i+1, opt))
		}
		parts = append(parts, q)
	}
	if m.input.Focused() {
		parts = append(parts, inputStyle.Render(m.input.View()))
	}

	switch {
	case m.notice != nil:
		parts = append(parts, noticeStyles[m.notice.Level].Render("  "+m.notice.Text))
	case m.statusMsg != "":
		parts = append(parts, noticeStyles[channel.NoticeSuccess].Render("  "+m.statusMsg))
	}

	parts = append(parts, helpStyle.Render(m.help.View(keys)))
	return strings.Join(parts, "\n")
}

// Run starts the TUI and blocks until the user quits or ctx ends.
func Run(ctx context.Context, crew Crew, events <-chan monitor.Event) error {
	p := tea.NewProgram(NewModel(crew, events), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
