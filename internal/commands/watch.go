package commands

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"crewmon/internal/console"
	"crewmon/internal/monitor"
	"crewmon/internal/notify"
	"crewmon/internal/output"
	"crewmon/internal/progress"
	"crewmon/internal/transcript"
	"crewmon/internal/tui"
	"crewmon/internal/ui"
)

// RunWatch follows a crew run until interrupted. It picks the interactive
// view on a terminal, plain lines otherwise, and JSON lines with --json.
func RunWatch(prompt string, plain bool) {
	cfg := loadRuntimeConfig()

	interactive := !output.JSONMode && !plain &&
		term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))

	switch {
	case cfg.LogFile != "":
		f, err := tea.LogToFile(cfg.LogFile, "crewmon")
		if err != nil {
			ui.ShowWarning("Cannot open log file %s: %v", cfg.LogFile, err)
			break
		}
		defer f.Close()
	case interactive || output.JSONMode:
		// stray log lines would corrupt the screen or the JSON stream
		log.SetOutput(io.Discard)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mon := newMonitor(cfg)
	defer mon.Close()

	if n := newNotifier(cfg.Notify); n != nil {
		relayEvents, unsubscribe := mon.Subscribe()
		defer unsubscribe()
		go notify.NewRelay(n).Run(ctx, relayEvents)
	}

	events, unsubscribe := mon.Subscribe()
	defer unsubscribe()

	if err := mon.Start(ctx); err != nil {
		output.PrintError(err)
		return
	}
	if prompt != "" && !mon.StartAnalysis(ctx, "", prompt) {
		ui.ShowWarning("Not connected, analysis not started")
	}

	switch {
	case interactive:
		if err := tui.Run(ctx, mon, events); err != nil {
			output.PrintError(err)
		}
	case output.JSONMode:
		go readReplies(ctx, mon, os.Stdin)
		streamJSON(ctx, mon, events)
	default:
		ui.ShowInfo("Watching crew %q at %s (Ctrl-C to stop)", cfg.CrewType, cfg.WebSocketURL())
		go readReplies(ctx, mon, os.Stdin)
		console.New(os.Stdout, mon).Run(ctx, events)
	}
}

// replier is the part of the monitor that stdin replies go to.
type replier interface {
	Snapshot() monitor.Snapshot
	SendInput(text string) bool
}

// readReplies sends every non-empty stdin line to the crew. A bare number
// picks the matching option of a pending question.
func readReplies(ctx context.Context, crew replier, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		crew.SendInput(resolveReply(crew.Snapshot().Waiting, line))
	}
}

func resolveReply(w transcript.Waiting, line string) string {
	if !w.Active {
		return line
	}
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(w.Options) {
		return w.Options[n-1]
	}
	return line
}

func streamJSON(ctx context.Context, crew replier, events <-chan monitor.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			kind, data := eventPayload(ev, crew)
			output.PrintEvent(kind, data)
		}
	}
}

// eventPayload names ev for the JSON stream. Transcript changes carry the
// latest message.
func eventPayload(ev monitor.Event, crew replier) (string, any) {
	switch v := ev.(type) {
	case monitor.ProgressChanged:
		switch pe := v.Event.(type) {
		case progress.TaskStatusChanged:
			return "task_status", pe
		case progress.ActiveAgentChanged:
			return "active_agent", pe
		case progress.ConfigLoaded:
			return "config_loaded", pe
		}
		return "progress", v.Event
	case monitor.TranscriptChanged:
		snap := crew.Snapshot()
		data := struct {
			Message *transcript.Message `json:"message,omitempty"`
			Waiting transcript.Waiting  `json:"waiting"`
		}{Waiting: snap.Waiting}
		if n := len(snap.Messages); n > 0 {
			data.Message = &snap.Messages[n-1]
		}
		return "transcript", data
	case monitor.ConnectionChanged:
		return "connection", v
	case monitor.NoticeRaised:
		return "notice", v.Notice
	case monitor.RunFinished:
		return "run_finished", v
	}
	return "unknown", nil
}
