package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"crewmon/internal/transcript"
)

var roleLabels = map[transcript.Role]string{
	transcript.RoleUser:   "you",
	transcript.RoleAgent:  "agent",
	transcript.RoleSystem: "system",
}

// renderTranscript lays out every message for the transcript viewport.
func renderTranscript(msgs []transcript.Message, width int, spin string) string {
	if len(msgs) == 0 {
		return dimStyle.Render("Waiting for the crew to speak...")
	}

	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, renderMessage(msg, width, spin))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(msg transcript.Message, width int, spin string) string {
	header := timestampStyle.Render(msg.Timestamp) + " " + roleStyles[msg.Role].Render(roleLabels[msg.Role])
	switch {
	case msg.Thinking:
		header += " " + spin + thinkingStyle.Render(" thinking")
	case msg.Status == transcript.StatusSending:
		header += dimStyle.Render(" sending...")
	case msg.Status == transcript.StatusError:
		header += deliveryErrorStyle.Render(" not sent")
	}

	body := lipgloss.NewStyle().Width(max(10, width-2)).PaddingLeft(2).Render(renderSpans(msg.Content))
	return header + "\n" + body
}

func renderSpans(content string) string {
	var b strings.Builder
	for _, s := range transcript.Spans(content) {
		if st, ok := emphasisStyles[s.Class]; ok {
			b.WriteString(st.Render(s.Text))
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
