package monitor

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"crewmon/internal/channel"
	"crewmon/internal/frame"
	"crewmon/internal/progress"
	"crewmon/internal/transcript"
)

// subscriberBuffer is the per-subscriber event backlog. Events beyond it are
// dropped for that subscriber.
const subscriberBuffer = 256

var errNoSource = errors.New("no crew info source configured")

// Transport is the subset of *channel.Channel the monitor drives.
type Transport interface {
	Connect(ctx context.Context) error
	Send(payload any) bool
	OnFrame(id string, fn channel.Handler) (unregister func())
	OnStatus(fn func(channel.Status))
	OnNotice(fn func(channel.Notice))
	Status() channel.Status
	LastHeartbeat() time.Time
	Close() error
}

// Snapshot is a consistent copy of everything a view renders.
type Snapshot struct {
	CrewType      string               `json:"crew_type"`
	Status        channel.Status       `json:"status"`
	LastHeartbeat time.Time            `json:"last_heartbeat,omitzero"`
	Analysis      bool                 `json:"analysis_in_progress"`
	Waiting       transcript.Waiting   `json:"waiting"`
	Messages      []transcript.Message `json:"messages"`
	Progress      progress.Snapshot    `json:"progress"`
}

// Monitor feeds every inbound frame to a Transcript and a Tracker. Both are
// only touched under mu; transport calls are never made while holding it.
type Monitor struct {
	transport Transport
	source    progress.Source

	mu          sync.Mutex
	crewType    string
	transcript  *transcript.Transcript
	tracker     *progress.Tracker
	pending     []Event
	subscribers map[string]chan Event

	unregister []func()
}

// New wires transport, transcript and tracker together. Nothing is
// connected until Start.
func New(transport Transport, source progress.Source, crewType string) *Monitor {
	return newMonitor(transport, source, crewType, transcript.New(), progress.New())
}

func newMonitor(transport Transport, source progress.Source, crewType string, ts *transcript.Transcript, tr *progress.Tracker) *Monitor {
	m := &Monitor{
		transport:   transport,
		source:      source,
		crewType:    crewType,
		transcript:  ts,
		tracker:     tr,
		subscribers: make(map[string]chan Event),
	}
	tr.Subscribe(func(ev progress.Event) {
		m.pending = append(m.pending, ProgressChanged{ev})
	})

	m.unregister = append(m.unregister,
		transport.OnFrame("progress", m.handleProgress),
		transport.OnFrame("transcript", m.handleTranscript),
	)
	transport.OnStatus(func(s channel.Status) {
		m.publish(ConnectionChanged{Status: s})
	})
	transport.OnNotice(func(n channel.Notice) {
		m.publish(NoticeRaised{n})
	})
	return m
}

// Start loads the crew configuration and opens the connection. A failed
// first dial is not fatal; the transport keeps retrying.
func (m *Monitor) Start(ctx context.Context) error {
	m.LoadConfig(ctx)
	if err := m.transport.Connect(ctx); err != nil {
		if errors.Is(err, channel.ErrClosed) {
			return err
		}
		log.Printf("[monitor] initial connect failed, retrying in background: %v", err)
	}
	return nil
}

// Close tears down the transport and ends every subscription.
func (m *Monitor) Close() error {
	for _, fn := range m.unregister {
		fn()
	}
	err := m.transport.Close()

	m.mu.Lock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	m.mu.Unlock()
	return err
}

// LoadConfig fetches the crew configuration for the current crew type. The
// fetch runs without holding the lock.
func (m *Monitor) LoadConfig(ctx context.Context) bool {
	m.mu.Lock()
	crewType := m.crewType
	m.mu.Unlock()

	var cfg *progress.CrewConfig
	var err error
	if m.source != nil {
		cfg, err = m.source.FetchCrewInfo(ctx, crewType)
	} else {
		err = errNoSource
	}

	m.mu.Lock()
	defer m.unlockAndFlush()
	return m.tracker.ApplyFetched(crewType, cfg, err)
}

// Subscribe returns a channel receiving every future event, and a cancel
// func. Slow subscribers lose events rather than stall frame processing.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	id := ulid.Make().String()
	ch := make(chan Event, subscriberBuffer)

	m.mu.Lock()
	m.subscribers[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subscribers[id]; ok {
			close(c)
			delete(m.subscribers, id)
		}
	}
}

// Snapshot copies the current state.
func (m *Monitor) Snapshot() Snapshot {
	status := m.transport.Status()
	beat := m.transport.LastHeartbeat()

	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		CrewType:      m.crewType,
		Status:        status,
		LastHeartbeat: beat,
		Analysis:      m.transcript.AnalysisInProgress(),
		Waiting:       m.transcript.Waiting(),
		Messages:      m.transcript.Messages(),
		Progress:      m.tracker.Snapshot(),
	}
}

// SendInput appends text as a user message and transmits it. The message
// ends up sent or error depending on delivery.
func (m *Monitor) SendInput(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	m.mu.Lock()
	msg := m.transcript.Append(text, transcript.RoleUser)
	var id string
	if msg != nil {
		id = msg.ID
		m.transcript.SetStatus(id, transcript.StatusSending)
	}
	m.pending = append(m.pending, TranscriptChanged{})
	m.unlockAndFlush()

	ok := m.transport.Send(frame.Input(text))

	m.mu.Lock()
	defer m.unlockAndFlush()
	if ok {
		m.transcript.SetStatus(id, transcript.StatusSent)
		m.transcript.ResetWaitingForInput()
	} else {
		m.transcript.SetStatus(id, transcript.StatusError)
	}
	m.pending = append(m.pending, TranscriptChanged{})
	return ok
}

// StartAnalysis asks the crew to run prompt. Task progress is reset and
// the transcript is flagged as analysing until a final result arrives. A
// new crewType reloads the configuration first.
func (m *Monitor) StartAnalysis(ctx context.Context, crewType, prompt string) bool {
	m.mu.Lock()
	changed := crewType != "" && crewType != m.crewType
	if changed {
		m.crewType = crewType
	}
	crewType = m.crewType
	m.mu.Unlock()

	if changed {
		m.LoadConfig(ctx)
	}

	ok := m.transport.Send(frame.StartAnalysis(crewType, prompt))

	m.mu.Lock()
	defer m.unlockAndFlush()
	if !ok {
		return false
	}
	m.tracker.ResetProgress()
	m.transcript.SetAnalysisInProgress(true)
	if prompt != "" {
		m.transcript.Append(prompt, transcript.RoleUser)
	}
	m.pending = append(m.pending, TranscriptChanged{})
	return true
}

// SaveCustomConfig pushes the current agent and task configuration to the
// crew server. It reports whether a configuration was available and
// delivered.
func (m *Monitor) SaveCustomConfig() bool {
	var payload any
	m.mu.Lock()
	available := m.tracker.SaveCustomConfig(func(p any) bool {
		payload = p
		return true
	})
	m.mu.Unlock()

	if !available {
		return false
	}
	return m.transport.Send(payload)
}

// SetTaskEnabled toggles a task ahead of SaveCustomConfig.
func (m *Monitor) SetTaskEnabled(id string, enabled bool) bool {
	m.mu.Lock()
	defer m.unlockAndFlush()
	return m.tracker.SetTaskEnabled(id, enabled)
}

// SetAgentEnabled toggles an agent ahead of SaveCustomConfig.
func (m *Monitor) SetAgentEnabled(role string, enabled bool) bool {
	m.mu.Lock()
	defer m.unlockAndFlush()
	return m.tracker.SetAgentEnabled(role, enabled)
}

// ResetProgress returns every task to pending.
func (m *Monitor) ResetProgress() {
	m.mu.Lock()
	defer m.unlockAndFlush()
	m.tracker.ResetProgress()
}

func (m *Monitor) handleProgress(f frame.Frame) {
	m.mu.Lock()
	defer m.unlockAndFlush()
	m.tracker.Dispatch(f)
}

func (m *Monitor) handleTranscript(f frame.Frame) {
	m.mu.Lock()
	defer m.unlockAndFlush()

	ts := m.transcript
	switch v := f.(type) {
	case frame.Update:
		if !ts.AnalysisInProgress() {
			ts.SetAnalysisInProgress(true)
		}
		ts.UpdateLast(v.Content)
	case frame.Chat:
		ts.Append(v.Content, transcript.RoleAgent)
	case frame.Result:
		ts.Append(v.Content, transcript.RoleAgent)
		if progress.IsFinalResult(v.Content) {
			ts.SetAnalysisInProgress(false)
			m.pending = append(m.pending, RunFinished{
				CrewType: m.crewType,
				Progress: m.tracker.TaskProgress(),
				Summary:  firstLine(transcript.PlainText(transcript.RenderControlCodes(v.Content))),
			})
		}
	case frame.System:
		ts.Append(v.Content, transcript.RoleSystem)
	case frame.RequestInput:
		ts.SetWaitingForInput(v.Question, v.Options)
	case frame.UserInput:
		ts.Append(v.Content, transcript.RoleUser)
	default:
		return
	}
	m.pending = append(m.pending, TranscriptChanged{})
}

func (m *Monitor) publish(ev Event) {
	m.mu.Lock()
	m.pending = append(m.pending, ev)
	m.unlockAndFlush()
}

// unlockAndFlush delivers pending events and releases mu. Delivery happens
// under the lock so every subscriber sees events in application order.
func (m *Monitor) unlockAndFlush() {
	events := m.pending
	m.pending = nil
	for _, ev := range events {
		for id, ch := range m.subscribers {
			select {
			case ch <- ev:
			default:
				log.Printf("[monitor] subscriber %s is full, dropping %T", id, ev)
			}
		}
	}
	m.mu.Unlock()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 80 {
		s = string(r[:80]) + "..."
	}
	return s
}
