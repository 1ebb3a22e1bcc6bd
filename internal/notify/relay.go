package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"crewmon/internal/monitor"
	"crewmon/internal/progress"
)

// Relay turns monitor events into notifications: one per completed task
// and one per finished run.
type Relay struct {
	notifier Notifier
	crewType string
	agent    string
	now      func() time.Time
}

// NewRelay creates a relay delivering to n.
func NewRelay(n Notifier) *Relay {
	return &Relay{notifier: n, now: time.Now}
}

// Run consumes events until the channel closes or ctx is done.
func (r *Relay) Run(ctx context.Context, events <-chan monitor.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			n, ok := r.translate(ev)
			if !ok {
				continue
			}
			if err := r.notifier.Send(ctx, n); err != nil {
				log.Printf("[notify] %s: %v", r.notifier.Name(), err)
			}
		}
	}
}

func (r *Relay) translate(ev monitor.Event) (Notification, bool) {
	switch v := ev.(type) {
	case monitor.ProgressChanged:
		switch pe := v.Event.(type) {
		case progress.ConfigLoaded:
			r.crewType = pe.CrewType
		case progress.ActiveAgentChanged:
			r.agent = pe.Role
		case progress.TaskStatusChanged:
			if pe.New != progress.TaskCompleted {
				return Notification{}, false
			}
			return Notification{
				Kind:     KindTaskCompleted,
				Title:    "Task completed",
				Message:  pe.TaskName,
				CrewType: r.crewType,
				TaskID:   pe.TaskID,
				TaskName: pe.TaskName,
				Agent:    r.agent,
				At:       r.now(),
			}, true
		}
	case monitor.RunFinished:
		msg := fmt.Sprintf("%d%% of tasks completed", v.Progress)
		if v.Summary != "" {
			msg = v.Summary + " (" + msg + ")"
		}
		return Notification{
			Kind:     KindRunFinished,
			Title:    "Crew run finished",
			Message:  msg,
			Sound:    true,
			CrewType: v.CrewType,
			Agent:    r.agent,
			Progress: v.Progress,
			At:       r.now(),
		}, true
	}
	return Notification{}, false
}
