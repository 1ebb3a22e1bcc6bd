package monitor

import (
	"crewmon/internal/channel"
	"crewmon/internal/progress"
)

// Event is one change published by the monitor. The concrete value is one
// of ProgressChanged, TranscriptChanged, ConnectionChanged, NoticeRaised or
// RunFinished.
type Event interface {
	isMonitorEvent()
}

// ProgressChanged wraps a tracker event.
type ProgressChanged struct {
	progress.Event
}

// TranscriptChanged signals that messages or the input prompt changed.
type TranscriptChanged struct{}

// ConnectionChanged carries a channel status transition.
type ConnectionChanged struct {
	Status channel.Status `json:"status"`
}

// NoticeRaised carries a user-facing channel notice.
type NoticeRaised struct {
	channel.Notice
}

// RunFinished is published when a result frame carries a final marker.
type RunFinished struct {
	CrewType string `json:"crew_type"`
	Progress int    `json:"progress"`
	Summary  string `json:"summary"`
}

func (ProgressChanged) isMonitorEvent()   {}
func (TranscriptChanged) isMonitorEvent() {}
func (ConnectionChanged) isMonitorEvent() {}
func (NoticeRaised) isMonitorEvent()      {}
func (RunFinished) isMonitorEvent()       {}
