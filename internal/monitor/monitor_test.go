package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewmon/internal/channel"
	"crewmon/internal/frame"
	"crewmon/internal/progress"
	"crewmon/internal/transcript"
)

type fakeTransport struct {
	mu       sync.Mutex
	handlers []struct {
		id string
		fn channel.Handler
	}
	statusFns []func(channel.Status)
	noticeFns []func(channel.Notice)
	status    channel.Status
	sendOK    bool
	sent      []any
	connects  int
	closed    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{status: channel.StatusDisconnected, sendOK: true}
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	f.connects++
	f.status = channel.StatusConnected
	fns := f.statusFns
	f.mu.Unlock()
	for _, fn := range fns {
		fn(channel.StatusConnected)
	}
	return nil
}

func (f *fakeTransport) Send(payload any) bool {
	f.mu.Lock()
	ok := f.sendOK
	if ok {
		f.sent = append(f.sent, payload)
	}
	fns := f.noticeFns
	f.mu.Unlock()
	if !ok {
		for _, fn := range fns {
			fn(channel.Notice{Level: channel.NoticeError, Text: "not connected, message not sent"})
		}
	}
	return ok
}

func (f *fakeTransport) OnFrame(id string, fn channel.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, struct {
		id string
		fn channel.Handler
	}{id, fn})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, h := range f.handlers {
			if h.id == id {
				f.handlers = append(f.handlers[:i], f.handlers[i+1:]...)
				return
			}
		}
	}
}

func (f *fakeTransport) OnStatus(fn func(channel.Status)) { f.statusFns = append(f.statusFns, fn) }
func (f *fakeTransport) OnNotice(fn func(channel.Notice)) { f.noticeFns = append(f.noticeFns, fn) }
func (f *fakeTransport) Status() channel.Status          { return f.status }
func (f *fakeTransport) LastHeartbeat() time.Time         { return time.Time{} }

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTransport) deliver(frames ...frame.Frame) {
	for _, fr := range frames {
		f.mu.Lock()
		handlers := append(f.handlers[:0:0], f.handlers...)
		f.mu.Unlock()
		for _, h := range handlers {
			h.fn(fr)
		}
	}
}

func (f *fakeTransport) lastSent() frame.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return frame.Outbound{}
	}
	out, _ := f.sent[len(f.sent)-1].(frame.Outbound)
	return out
}

type fakeSource struct {
	cfg *progress.CrewConfig
	err error
	got []string
}

func (s *fakeSource) FetchCrewInfo(_ context.Context, crewType string) (*progress.CrewConfig, error) {
	s.got = append(s.got, crewType)
	return s.cfg, s.err
}

func newTestMonitor(t *testing.T) (*Monitor, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	m := New(tr, &fakeSource{err: errors.New("offline")}, "product")
	t.Cleanup(func() { m.Close() })
	return m, tr
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestStart_FallsBackAndConnects(t *testing.T) {
	m, tr := newTestMonitor(t)
	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, 1, tr.connects)
	snap := m.Snapshot()
	assert.Equal(t, channel.StatusConnected, snap.Status)
	assert.True(t, snap.Progress.FromDefaults)
	assert.Len(t, snap.Progress.Tasks, 5)
	assert.Len(t, snap.Progress.Agents, 4)
}

func TestHandlersRegisteredInOrder(t *testing.T) {
	_, tr := newTestMonitor(t)
	require.Len(t, tr.handlers, 2)
	assert.Equal(t, "progress", tr.handlers[0].id)
	assert.Equal(t, "transcript", tr.handlers[1].id)
}

func TestUpdateDrivesTranscriptAndProgress(t *testing.T) {
	m, tr := newTestMonitor(t)
	events, cancel := m.Subscribe()
	defer cancel()

	tr.deliver(frame.Update{Text: frame.Text{Content: "开始进行市场研究分析"}})

	snap := m.Snapshot()
	assert.Equal(t, "market", snap.Progress.CurrentTaskID)
	assert.True(t, snap.Analysis)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, transcript.RoleAgent, snap.Messages[0].Role)
	assert.True(t, snap.Messages[0].Thinking)

	var sawStatus, sawTranscript bool
	for _, ev := range drain(events) {
		switch v := ev.(type) {
		case ProgressChanged:
			if c, ok := v.Event.(progress.TaskStatusChanged); ok && c.TaskID == "market" {
				sawStatus = c.New == progress.TaskInProgress
			}
		case TranscriptChanged:
			sawTranscript = true
		}
	}
	assert.True(t, sawStatus)
	assert.True(t, sawTranscript)
}

func TestFinalResultFinishesRun(t *testing.T) {
	m, tr := newTestMonitor(t)
	events, cancel := m.Subscribe()
	defer cancel()

	tr.deliver(
		frame.Update{Text: frame.Text{Content: "正在生成产品创意"}},
		frame.Result{Text: frame.Text{Content: "最终产品方案已完成\n详情见下"}},
	)

	snap := m.Snapshot()
	assert.False(t, snap.Analysis)
	assert.Equal(t, 100, snap.Progress.Progress)
	assert.Empty(t, snap.Progress.CurrentTaskID)
	for _, msg := range snap.Messages {
		assert.False(t, msg.Thinking)
	}

	var finished *RunFinished
	for _, ev := range drain(events) {
		if rf, ok := ev.(RunFinished); ok {
			finished = &rf
		}
	}
	require.NotNil(t, finished)
	assert.Equal(t, "product", finished.CrewType)
	assert.Equal(t, 100, finished.Progress)
	assert.Equal(t, "最终产品方案已完成", finished.Summary)
}

func TestRequestInputAndSendInput(t *testing.T) {
	m, tr := newTestMonitor(t)
	tr.deliver(frame.RequestInput{Question: "是否继续?", Options: []string{"是", "否"}})

	snap := m.Snapshot()
	assert.True(t, snap.Waiting.Active)
	assert.Equal(t, []string{"是", "否"}, snap.Waiting.Options)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, transcript.RoleSystem, snap.Messages[0].Role)

	require.True(t, m.SendInput(" 是 "))
	assert.Equal(t, frame.Input("是"), tr.lastSent())

	snap = m.Snapshot()
	assert.False(t, snap.Waiting.Active)
	last := snap.Messages[len(snap.Messages)-1]
	assert.Equal(t, transcript.RoleUser, last.Role)
	assert.Equal(t, transcript.StatusSent, last.Status)
}

func TestSendInput_Failure(t *testing.T) {
	m, tr := newTestMonitor(t)
	events, cancel := m.Subscribe()
	defer cancel()

	tr.deliver(frame.RequestInput{Question: "继续?"})
	tr.sendOK = false

	assert.False(t, m.SendInput("好"))
	snap := m.Snapshot()
	assert.True(t, snap.Waiting.Active)
	last := snap.Messages[len(snap.Messages)-1]
	assert.Equal(t, "好", last.Content)
	assert.Equal(t, transcript.StatusError, last.Status)

	var notice *NoticeRaised
	for _, ev := range drain(events) {
		if n, ok := ev.(NoticeRaised); ok {
			notice = &n
		}
	}
	require.NotNil(t, notice)
	assert.Equal(t, channel.NoticeError, notice.Level)

	assert.False(t, m.SendInput("   "))
}

func TestStartAnalysis(t *testing.T) {
	m, tr := newTestMonitor(t)
	tr.deliver(frame.TaskStatus{TaskID: "ideation", Status: "completed"})
	require.Equal(t, 20, m.Snapshot().Progress.Progress)

	require.True(t, m.StartAnalysis(context.Background(), "", "做一个宠物社交应用"))
	assert.Equal(t, frame.StartAnalysis("product", "做一个宠物社交应用"), tr.lastSent())

	snap := m.Snapshot()
	assert.Zero(t, snap.Progress.Progress)
	assert.True(t, snap.Analysis)
	require.NotEmpty(t, snap.Messages)
	assert.Equal(t, transcript.RoleUser, snap.Messages[len(snap.Messages)-1].Role)
}

func TestStartAnalysis_NewCrewReloadsConfig(t *testing.T) {
	tr := newFakeTransport()
	src := &fakeSource{cfg: &progress.CrewConfig{
		Tasks: []progress.TaskTemplate{{Description: "调研", Enabled: true}},
	}}
	m := New(tr, src, "product")
	defer m.Close()

	require.True(t, m.StartAnalysis(context.Background(), "research", "go"))
	assert.Equal(t, []string{"research"}, src.got)
	assert.Equal(t, "research", tr.lastSent().CrewType)

	snap := m.Snapshot()
	assert.Equal(t, "research", snap.CrewType)
	require.Len(t, snap.Progress.Tasks, 1)
	assert.Equal(t, "调研", snap.Progress.Tasks[0].Name)
}

func TestStartAnalysis_NotConnected(t *testing.T) {
	m, tr := newTestMonitor(t)
	tr.deliver(frame.TaskStatus{TaskID: "ideation", Status: "completed"})
	tr.sendOK = false

	assert.False(t, m.StartAnalysis(context.Background(), "", "go"))
	snap := m.Snapshot()
	assert.Equal(t, 20, snap.Progress.Progress)
	assert.False(t, snap.Analysis)
}

func TestSaveCustomConfig(t *testing.T) {
	m, tr := newTestMonitor(t)
	require.True(t, m.SetTaskEnabled("tech", false))
	require.True(t, m.SaveCustomConfig())

	out := tr.lastSent()
	assert.Equal(t, frame.TypeSetCustomConfig, out.Type)
	cfg, ok := out.Config.(progress.CustomConfig)
	require.True(t, ok)
	assert.Len(t, cfg.Tasks, 5)
	assert.False(t, cfg.Tasks[3].Enabled)
	assert.Len(t, cfg.Agents, 4)

	tr.sendOK = false
	assert.False(t, m.SaveCustomConfig())
}

func TestCloseEndsSubscriptions(t *testing.T) {
	tr := newFakeTransport()
	m := New(tr, nil, "product")
	events, _ := m.Subscribe()

	require.NoError(t, m.Close())
	assert.True(t, tr.closed)
	assert.Empty(t, tr.handlers)

	for range events {
	}
}
