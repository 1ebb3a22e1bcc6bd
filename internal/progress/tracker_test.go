package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewmon/internal/frame"
)

func statusOf(t *testing.T, tr *Tracker, id string) TaskStatus {
	t.Helper()
	task := tr.find(id)
	require.NotNil(t, task, "task %q", id)
	return task.Status
}

func assertSingleCurrent(t *testing.T, tr *Tracker) {
	t.Helper()
	var inProgress []string
	for _, task := range tr.Tasks() {
		if task.Status == TaskInProgress {
			inProgress = append(inProgress, task.ID)
		}
	}
	require.LessOrEqual(t, len(inProgress), 1, "in-progress tasks: %v", inProgress)
	if len(inProgress) == 1 {
		assert.Equal(t, inProgress[0], tr.CurrentTaskID())
	} else {
		assert.Empty(t, tr.CurrentTaskID())
	}
}

func update(content string) frame.Frame { return frame.Update{Text: frame.Text{Content: content}} }
func result(content string) frame.Frame { return frame.Result{Text: frame.Text{Content: content}} }
func chat(content string) frame.Frame   { return frame.Chat{Text: frame.Text{Content: content}} }

func TestNew_UsesDefaults(t *testing.T) {
	tr := New()
	require.Len(t, tr.Tasks(), 5)
	require.Len(t, tr.Agents(), 4)
	assert.Equal(t, DefaultTasks(), tr.Tasks())
	assert.True(t, tr.Snapshot().FromDefaults)
}

func TestDispatch_UpdateStartsMarketTask(t *testing.T) {
	tr := New()
	tr.Dispatch(update("开始进行市场研究分析"))

	assert.Equal(t, "market", tr.CurrentTaskID())
	assert.Equal(t, TaskInProgress, statusOf(t, tr, "market"))
	assertSingleCurrent(t, tr)
}

func TestDispatch_FinalResultCompletesEverything(t *testing.T) {
	tr := New()
	tr.Dispatch(update("开始进行市场研究分析"))
	tr.Dispatch(result("最终产品方案已完成"))

	for _, task := range tr.Tasks() {
		assert.Equal(t, TaskCompleted, task.Status, task.ID)
	}
	assert.Empty(t, tr.CurrentTaskID())
	assert.Equal(t, 100, tr.TaskProgress())
}

func TestDispatch_FinalResultSkipsDisabled(t *testing.T) {
	tr := New()
	tr.SetTaskEnabled("tiktok", false)
	tr.Dispatch(result("Final Answer: ship it"))

	assert.Equal(t, TaskPending, statusOf(t, tr, "tiktok"))
	assert.Equal(t, TaskCompleted, statusOf(t, tr, "tech"))
}

func TestDispatch_SwitchingTasksCompletesPrevious(t *testing.T) {
	tr := New()
	tr.Dispatch(update("进行竞品分析"))
	tr.Dispatch(chat("下面进行技术可行性评估"))

	assert.Equal(t, TaskCompleted, statusOf(t, tr, "market"))
	assert.Equal(t, TaskInProgress, statusOf(t, tr, "tech"))
	assert.Equal(t, "tech", tr.CurrentTaskID())
	assertSingleCurrent(t, tr)
}

func TestDispatch_CompletionMarkerAdvances(t *testing.T) {
	tr := New()
	tr.Dispatch(update("市场分析进行中"))
	tr.Dispatch(update("市场分析 DONE"))

	assert.Equal(t, TaskCompleted, statusOf(t, tr, "market"))
	// The next pending enabled task after market becomes current.
	assert.Equal(t, "tech", tr.CurrentTaskID())
	assert.Equal(t, TaskInProgress, statusOf(t, tr, "tech"))
	assertSingleCurrent(t, tr)
}

func TestDispatch_AdvanceWrapsAndClears(t *testing.T) {
	tr := New()
	for _, id := range []string{"ideation", "tiktok", "market", "tech"} {
		tr.SetTaskStatus(id, TaskCompleted)
	}
	tr.Dispatch(update("方案优化中"))
	require.Equal(t, "refinement", tr.CurrentTaskID())

	tr.Dispatch(update("方案优化 conclusion"))
	assert.Empty(t, tr.CurrentTaskID())
	assert.Equal(t, 100, tr.TaskProgress())
}

func TestDispatch_SystemOriginIgnored(t *testing.T) {
	tr := New()
	tr.Dispatch(update("[系统] 市场研究即将开始"))
	tr.Dispatch(frame.System{Text: frame.Text{Content: "市场研究"}})

	assert.Empty(t, tr.CurrentTaskID())
	assert.Equal(t, TaskPending, statusOf(t, tr, "market"))
}

func TestDispatch_DisabledTaskNotInferred(t *testing.T) {
	tr := New()
	tr.SetTaskEnabled("market", false)
	tr.Dispatch(update("市场研究"))
	assert.Empty(t, tr.CurrentTaskID())
}

func TestDispatch_TaskStatusFrame(t *testing.T) {
	tr := New()
	var agentEvents []ActiveAgentChanged
	tr.Subscribe(func(ev Event) {
		if a, ok := ev.(ActiveAgentChanged); ok {
			agentEvents = append(agentEvents, a)
		}
	})

	tr.Dispatch(frame.TaskStatus{TaskID: "tiktok", Status: "in-progress", AgentRole: "TikTok分析师"})
	assert.Equal(t, "tiktok", tr.CurrentTaskID())
	assert.Equal(t, "TikTok分析师", tr.ActiveAgentRole())
	require.Len(t, agentEvents, 1)
	require.NotNil(t, agentEvents[0].Agent)
	assert.Equal(t, "TikTok分析师", agentEvents[0].Agent.Role)

	tr.Dispatch(frame.TaskStatus{TaskID: "tiktok", Status: "completed"})
	assert.Equal(t, TaskCompleted, statusOf(t, tr, "tiktok"))
	assert.Equal(t, "market", tr.CurrentTaskID())

	// Regressions and unknown statuses are ignored.
	tr.Dispatch(frame.TaskStatus{TaskID: "tiktok", Status: "pending"})
	tr.Dispatch(frame.TaskStatus{TaskID: "tiktok", Status: "in-progress"})
	tr.Dispatch(frame.TaskStatus{TaskID: "tiktok", Status: "paused"})
	assert.Equal(t, TaskCompleted, statusOf(t, tr, "tiktok"))
	assertSingleCurrent(t, tr)
}

func TestStatus_Monotonic(t *testing.T) {
	tr := New()
	rank := map[string]int{}
	tr.Subscribe(func(ev Event) {
		c, ok := ev.(TaskStatusChanged)
		if !ok {
			return
		}
		assert.Greater(t, c.New.rank(), c.Old.rank(), "%s: %s -> %s", c.TaskID, c.Old, c.New)
		rank[c.TaskID] = c.New.rank()
	})

	frames := []frame.Frame{
		update("产品创意生成中"),
		update("TikTok 平台分析"),
		update("回到产品创意"),
		update("市场趋势"),
		chat("技术架构 resolved"),
		update("抖音 用户群体"),
		result("方案完善"),
		frame.TaskStatus{TaskID: "ideation", Status: "in-progress"},
		result("Final Answer: 完成"),
	}
	for _, f := range frames {
		tr.Dispatch(f)
		assertSingleCurrent(t, tr)
	}
	assert.Equal(t, 100, tr.TaskProgress())
}

func TestTaskProgress(t *testing.T) {
	tr := New()
	assert.Equal(t, 0, tr.TaskProgress())

	tr.SetTaskStatus("ideation", TaskCompleted)
	tr.SetTaskStatus("tiktok", TaskCompleted)
	assert.Equal(t, 40, tr.TaskProgress())

	tr.SetTaskEnabled("market", false)
	assert.Equal(t, 50, tr.TaskProgress())

	tr.SetTaskStatus("tech", TaskCompleted)
	tr.SetTaskEnabled("refinement", false)
	// 3 of 3 enabled.
	assert.Equal(t, 100, tr.TaskProgress())

	for _, task := range tr.Tasks() {
		tr.SetTaskEnabled(task.ID, false)
	}
	assert.Equal(t, 0, tr.TaskProgress())
}

func TestTaskProgress_Rounding(t *testing.T) {
	tr := New()
	tr.replace([]Task{
		{ID: "a", Status: TaskCompleted, Enabled: true},
		{ID: "b", Status: TaskCompleted, Enabled: true},
		{ID: "c", Status: TaskPending, Enabled: true},
	}, nil, nil)
	assert.Equal(t, 67, tr.TaskProgress())
}

func TestResetProgress(t *testing.T) {
	tr := New()
	tr.Dispatch(update("市场研究"))
	tr.SetTaskStatus("ideation", TaskCompleted)

	tr.ResetProgress()
	for _, task := range tr.Tasks() {
		assert.Equal(t, TaskPending, task.Status)
	}
	assert.Empty(t, tr.CurrentTaskID())
}

func TestSetActiveAgent(t *testing.T) {
	tr := New()
	now := time.Unix(1000, 0)
	tr.now = func() time.Time { return now }

	var events []ActiveAgentChanged
	tr.Subscribe(func(ev Event) {
		if a, ok := ev.(ActiveAgentChanged); ok {
			events = append(events, a)
		}
	})

	tr.Dispatch(update("Agent: 产品经理\n开始工作"))
	assert.Equal(t, "产品经理", tr.ActiveAgentRole())
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Agent)

	// Same role again does not re-emit.
	tr.Dispatch(chat("Agent: 产品经理"))
	assert.Len(t, events, 1)

	snap := tr.Snapshot()
	assert.True(t, snap.Highlighted)
	require.NotNil(t, snap.ActiveAgent)
	assert.Equal(t, "产品经理", snap.ActiveAgent.Role)

	now = now.Add(DefaultHighlight + time.Millisecond)
	assert.False(t, tr.Snapshot().Highlighted)

	// Fuzzy match: the detected role contains a known role.
	tr.SetActiveAgent("资深市场研究员")
	require.Len(t, events, 2)
	require.NotNil(t, events[1].Agent)
	assert.Equal(t, "市场研究员", events[1].Agent.Role)

	// Unknown speakers are still tracked, without an agent entity.
	tr.SetActiveAgent("Reviewer")
	require.Len(t, events, 3)
	assert.Nil(t, events[2].Agent)
}

func TestSubscribe_UnsubscribeAndPanics(t *testing.T) {
	tr := New()
	calls := 0
	tr.Subscribe(func(Event) { panic("boom") })
	unsub := tr.Subscribe(func(Event) { calls++ })

	tr.SetCurrentTask("market")
	assert.Equal(t, 1, calls)

	unsub()
	tr.SetCurrentTask("tech")
	assert.Equal(t, 1, calls)
}

type fakeSource struct {
	cfg *CrewConfig
	err error
	got string
}

func (f *fakeSource) FetchCrewInfo(_ context.Context, crewType string) (*CrewConfig, error) {
	f.got = crewType
	return f.cfg, f.err
}

func TestLoadConfig_FetchFailureFallsBack(t *testing.T) {
	tr := New()
	tr.replace(nil, nil, nil)

	var loaded []ConfigLoaded
	tr.Subscribe(func(ev Event) {
		if c, ok := ev.(ConfigLoaded); ok {
			loaded = append(loaded, c)
		}
	})

	ok := tr.LoadConfig(context.Background(), &fakeSource{err: errors.New("connection refused")}, "product")
	assert.False(t, ok)
	assert.Equal(t, DefaultTasks(), tr.Tasks())
	assert.Equal(t, DefaultAgents(), tr.Agents())
	assert.Equal(t, []ConfigLoaded{{CrewType: "product", Fallback: true}}, loaded)
}

func TestLoadConfig_EmptyTasksFallsBack(t *testing.T) {
	tr := New()
	ok := tr.LoadConfig(context.Background(), &fakeSource{cfg: &CrewConfig{}}, "product")
	assert.False(t, ok)
	assert.Len(t, tr.Tasks(), 5)
}

func TestLoadConfig_Success(t *testing.T) {
	tr := New()
	tr.Dispatch(update("市场研究"))

	src := &fakeSource{cfg: &CrewConfig{
		Agents: []Agent{{Role: "Researcher", Enabled: true}},
		Tasks: []TaskTemplate{
			{Description: "调研用户需求\n详细说明", ExpectedOutput: "需求清单", AgentRole: "Researcher", Enabled: true},
			{Description: "这是一个非常非常长的任务描述需要被截断以便显示", Enabled: false},
			{Description: "", Enabled: true},
			{Description: "d"}, {Description: "e"}, {Description: "f", Enabled: true},
		},
		LLMModels: map[string]string{"Researcher": "gpt-4o-mini"},
	}}
	require.True(t, tr.LoadConfig(context.Background(), src, "research"))
	assert.Equal(t, "research", src.got)

	tasks := tr.Tasks()
	require.Len(t, tasks, 6)
	assert.Equal(t, "ideation", tasks[0].ID)
	assert.Equal(t, "💡", tasks[0].Icon)
	assert.Equal(t, "调研用户需求", tasks[0].Name)
	assert.Equal(t, "这是一个非常非常长的任务描述需要被截断以...", tasks[1].Name)
	assert.False(t, tasks[1].Enabled)
	assert.Equal(t, "Task 3", tasks[2].Name)
	assert.Equal(t, "task-6", tasks[5].ID)
	assert.Equal(t, "📌", tasks[5].Icon)
	for _, task := range tasks {
		assert.Equal(t, TaskPending, task.Status)
	}
	assert.Empty(t, tr.CurrentTaskID())

	snap := tr.Snapshot()
	assert.False(t, snap.FromDefaults)
	assert.Equal(t, "gpt-4o-mini", snap.LLMModels["Researcher"])
	require.Len(t, snap.Agents, 1)
}

func TestLoadConfig_NoAgentsUsesDefaultAgents(t *testing.T) {
	tr := New()
	src := &fakeSource{cfg: &CrewConfig{Tasks: []TaskTemplate{{Description: "only", Enabled: true}}}}
	require.True(t, tr.LoadConfig(context.Background(), src, "x"))
	assert.Equal(t, DefaultAgents(), tr.Agents())
	assert.Len(t, tr.Tasks(), 1)
}

func TestSaveCustomConfig(t *testing.T) {
	tr := New()
	tr.SetTaskEnabled("tiktok", false)
	tr.SetAgentEnabled("TikTok分析师", false)

	var sent any
	ok := tr.SaveCustomConfig(func(payload any) bool {
		sent = payload
		return true
	})
	require.True(t, ok)

	out, isFrame := sent.(frame.Outbound)
	require.True(t, isFrame)
	assert.Equal(t, frame.TypeSetCustomConfig, out.Type)

	cfg := out.Config.(CustomConfig)
	require.Len(t, cfg.Tasks, 5)
	assert.False(t, cfg.Tasks[1].Enabled)
	assert.Equal(t, "TikTok分析师", cfg.Tasks[1].AgentRole)
	assert.False(t, cfg.Agents[1].Enabled)

	// Failed delivery still reports the config was available.
	assert.True(t, tr.SaveCustomConfig(func(any) bool { return false }))

	empty := New()
	empty.replace(nil, nil, nil)
	called := false
	assert.False(t, empty.SaveCustomConfig(func(any) bool { called = true; return true }))
	assert.False(t, called)
}
