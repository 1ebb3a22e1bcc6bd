package console

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"crewmon/internal/channel"
	"crewmon/internal/monitor"
	"crewmon/internal/progress"
	"crewmon/internal/transcript"
)

// Source is what the renderer reads state from.
type Source interface {
	Snapshot() monitor.Snapshot
}

var (
	timeColor   = color.New(color.Faint)
	userColor   = color.New(color.FgCyan, color.Bold)
	agentColor  = color.New(color.FgHiWhite, color.Bold)
	systemColor = color.New(color.FgYellow)
	pinkColor   = color.New(color.FgHiMagenta)
	greenColor  = color.New(color.FgHiGreen)

	noticeColors = map[channel.NoticeLevel]*color.Color{
		channel.NoticeSuccess: color.New(color.FgGreen),
		channel.NoticeWarning: color.New(color.FgYellow),
		channel.NoticeError:   color.New(color.FgRed),
	}
	statusColors = map[progress.TaskStatus]*color.Color{
		progress.TaskPending:    color.New(color.Faint),
		progress.TaskInProgress: color.New(color.FgHiBlue, color.Bold),
		progress.TaskCompleted:  color.New(color.FgGreen),
	}
)

// Renderer prints a live crew run as plain lines, for pipes and dumb
// terminals. Streaming messages are printed once they stop changing.
type Renderer struct {
	out          io.Writer
	src          Source
	printed      map[string]bool
	lastQuestion string
}

func New(out io.Writer, src Source) *Renderer {
	return &Renderer{out: out, src: src, printed: make(map[string]bool)}
}

// Run prints events until the channel closes or ctx is done.
func (r *Renderer) Run(ctx context.Context, events <-chan monitor.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Handle(ev)
		}
	}
}

// Handle prints whatever ev changed.
func (r *Renderer) Handle(ev monitor.Event) {
	switch v := ev.(type) {
	case monitor.TranscriptChanged:
		r.flushTranscript()
	case monitor.ProgressChanged:
		r.progress(v.Event)
	case monitor.ConnectionChanged:
		fmt.Fprintf(r.out, "%s connection %s\n", timeColor.Sprint("--"), v.Status)
	case monitor.NoticeRaised:
		c, ok := noticeColors[v.Level]
		if !ok {
			c = color.New(color.Reset)
		}
		fmt.Fprintf(r.out, "%s %s\n", timeColor.Sprint("--"), c.Sprint(v.Text))
	case monitor.RunFinished:
		r.flushTranscript()
		fmt.Fprintf(r.out, "%s run finished, %d%% of tasks completed\n",
			greenColor.Sprint("==>"), v.Progress)
	}
}

func (r *Renderer) flushTranscript() {
	snap := r.src.Snapshot()
	for _, msg := range snap.Messages {
		if msg.Thinking || r.printed[msg.ID] {
			continue
		}
		r.printed[msg.ID] = true
		fmt.Fprintln(r.out, FormatMessage(msg))
	}

	w := snap.Waiting
	if !w.Active {
		r.lastQuestion = ""
		return
	}
	if w.Question == r.lastQuestion {
		return
	}
	r.lastQuestion = w.Question
	for i, opt := range w.Options {
		fmt.Fprintf(r.out, "    %d) %s\n", i+1, opt)
	}
	fmt.Fprintf(r.out, "%s type a reply and press enter\n", systemColor.Sprint("?"))
}

func (r *Renderer) progress(ev progress.Event) {
	switch pe := ev.(type) {
	case progress.TaskStatusChanged:
		c := statusColors[pe.New]
		fmt.Fprintf(r.out, "%s %s %s\n", timeColor.Sprint("▸"), pe.TaskName, c.Sprint(pe.New))
	case progress.ActiveAgentChanged:
		fmt.Fprintf(r.out, "%s %s\n", timeColor.Sprint("@"), agentColor.Sprint(pe.Role))
	case progress.ConfigLoaded:
		note := "crew configuration loaded"
		if pe.Fallback {
			note = "crew service unavailable, using built-in tasks"
		}
		fmt.Fprintf(r.out, "%s %s (%s)\n", timeColor.Sprint("--"), note, pe.CrewType)
	}
}

// FormatMessage renders one transcript message as a single colored line
// block.
func FormatMessage(msg transcript.Message) string {
	var label string
	switch msg.Role {
	case transcript.RoleUser:
		label = userColor.Sprint("you")
		if msg.Status == transcript.StatusError {
			label += systemColor.Sprint(" (not sent)")
		}
	case transcript.RoleSystem:
		label = systemColor.Sprint("system")
	default:
		label = agentColor.Sprint("agent")
	}
	return fmt.Sprintf("%s %s %s", timeColor.Sprint(msg.Timestamp), label, renderSpans(msg.Content))
}

func renderSpans(content string) string {
	var b strings.Builder
	for _, s := range transcript.Spans(content) {
		switch s.Class {
		case transcript.EmphasisPink:
			b.WriteString(pinkColor.Sprint(s.Text))
		case transcript.EmphasisGreen:
			b.WriteString(greenColor.Sprint(s.Text))
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}
