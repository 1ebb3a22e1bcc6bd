package notify

import (
	"context"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Kind says which crew event produced a notification.
type Kind string

const (
	KindTaskCompleted Kind = "task_completed"
	KindRunFinished   Kind = "run_finished"
)

// Notification is one crew event rendered for a person.
type Notification struct {
	Kind     Kind
	Title    string
	Message  string
	Sound    bool
	CrewType string
	TaskID   string
	TaskName string
	Agent    string
	Progress int
	At       time.Time
}

// Notifier delivers notifications somewhere.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	Name() string
}

// NewDesktopNotifier returns the notifier for the current platform.
func NewDesktopNotifier() Notifier {
	return newPlatformNotifier()
}

// MultiNotifier fans a notification out to several notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a MultiNotifier from the given notifiers.
func NewMultiNotifier(ns ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: ns}
}

// Send delivers n to every notifier concurrently and joins their errors.
func (m *MultiNotifier) Send(ctx context.Context, n Notification) error {
	p := pool.New().WithErrors()
	for _, notifier := range m.notifiers {
		p.Go(func() error {
			return notifier.Send(ctx, n)
		})
	}
	return p.Wait()
}

// Len reports how many notifiers are attached.
func (m *MultiNotifier) Len() int { return len(m.notifiers) }

func (m *MultiNotifier) Name() string {
	names := make([]string, len(m.notifiers))
	for i, n := range m.notifiers {
		names[i] = n.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}
