package progress

import (
	"context"
	"log"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/panics"

	"crewmon/internal/frame"
)

// DefaultHighlight is how long a newly identified agent stays highlighted.
const DefaultHighlight = 3 * time.Second

// Observer receives tracker events synchronously.
type Observer func(Event)

type subscription struct {
	id string
	fn Observer
}

// Tracker owns the task list, the agent list, the current task and the
// active agent. It is not safe for concurrent use; callers serialize
// access, which keeps every state change atomic with respect to the next
// frame.
type Tracker struct {
	tasks        []*Task
	agents       []Agent
	models       map[string]string
	fromDefaults bool

	currentTaskID   string
	activeAgentRole string
	highlightUntil  time.Time

	observers []subscription

	now          func() time.Time
	highlightFor time.Duration
}

// New returns a tracker populated with the built-in tasks and agents.
func New() *Tracker {
	t := &Tracker{
		now:          time.Now,
		highlightFor: DefaultHighlight,
	}
	t.replace(DefaultTasks(), DefaultAgents(), nil)
	t.fromDefaults = true
	return t
}

// Subscribe registers fn for every future event. The returned function
// removes it.
func (t *Tracker) Subscribe(fn Observer) (unsubscribe func()) {
	id := ulid.Make().String()
	t.observers = append(t.observers, subscription{id: id, fn: fn})
	return func() {
		for i, s := range t.observers {
			if s.id == id {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

func (t *Tracker) emit(ev Event) {
	for _, s := range append([]subscription(nil), t.observers...) {
		var catcher panics.Catcher
		catcher.Try(func() { s.fn(ev) })
		if r := catcher.Recovered(); r != nil {
			log.Printf("[progress] observer panicked on %T: %v", ev, r.Value)
		}
	}
}

// LoadConfig fetches the crew configuration and installs it, or installs
// the built-in defaults when the fetch fails. It reports whether the remote
// configuration was used.
func (t *Tracker) LoadConfig(ctx context.Context, src Source, crewType string) bool {
	cfg, err := src.FetchCrewInfo(ctx, crewType)
	return t.ApplyFetched(crewType, cfg, err)
}

// ApplyFetched installs the result of a crew-info fetch done elsewhere.
func (t *Tracker) ApplyFetched(crewType string, cfg *CrewConfig, err error) bool {
	if err != nil || cfg == nil || len(cfg.Tasks) == 0 {
		if err == nil {
			log.Printf("[progress] crew %q returned no tasks, using built-in defaults", crewType)
		} else {
			log.Printf("[progress] load crew %q failed, using built-in defaults: %v", crewType, err)
		}
		t.UseDefaults(crewType)
		return false
	}

	tasks := make([]Task, len(cfg.Tasks))
	for i, tpl := range cfg.Tasks {
		tasks[i] = Task{
			ID:             taskIDAt(i),
			Name:           taskNameFrom(tpl.Description, i),
			Status:         TaskPending,
			Icon:           taskIconAt(i),
			Description:    tpl.Description,
			ExpectedOutput: tpl.ExpectedOutput,
			AgentRole:      tpl.AgentRole,
			Enabled:        tpl.Enabled,
		}
	}
	agents := cfg.Agents
	if len(agents) == 0 {
		log.Printf("[progress] crew %q returned no agents, using built-in agents", crewType)
		agents = DefaultAgents()
	}

	t.replace(tasks, agents, cfg.LLMModels)
	t.fromDefaults = false
	t.emit(ConfigLoaded{CrewType: crewType})
	return true
}

// UseDefaults installs the built-in tasks and agents.
func (t *Tracker) UseDefaults(crewType string) {
	t.replace(DefaultTasks(), DefaultAgents(), nil)
	t.fromDefaults = true
	t.emit(ConfigLoaded{CrewType: crewType, Fallback: true})
}

func (t *Tracker) replace(tasks []Task, agents []Agent, models map[string]string) {
	t.tasks = make([]*Task, len(tasks))
	for i := range tasks {
		task := tasks[i]
		t.tasks[i] = &task
	}
	t.agents = make([]Agent, len(agents))
	for i, a := range agents {
		a.Tools = append([]string(nil), a.Tools...)
		t.agents[i] = a
	}
	t.models = make(map[string]string, len(models))
	for k, v := range models {
		t.models[k] = v
	}
	t.currentTaskID = ""
}

// Dispatch applies one decoded frame.
func (t *Tracker) Dispatch(f frame.Frame) {
	switch v := f.(type) {
	case frame.TaskStatus:
		t.applyTaskStatus(v)
	case frame.Result:
		t.detectAgent(v.Content)
		if IsFinalResult(v.Content) {
			t.CompleteAll()
			return
		}
		t.inferTask(v.Content)
	case frame.Chat:
		t.detectAgent(v.Content)
		t.inferTask(v.Content)
	case frame.Update:
		t.detectAgent(v.Content)
		t.inferTask(v.Content)
	}
}

func (t *Tracker) applyTaskStatus(f frame.TaskStatus) {
	status, err := ParseTaskStatus(f.Status)
	if err != nil {
		log.Printf("[progress] task_status for %q: %v", f.TaskID, err)
		return
	}
	if t.SetTaskStatus(f.TaskID, status) && status == TaskInProgress && f.AgentRole != "" {
		t.SetActiveAgent(f.AgentRole)
	}
}

func (t *Tracker) inferTask(text string) {
	if text == "" || isSystemOrigin(text) {
		return
	}
	id := DetectTask(text)
	if id == "" {
		return
	}
	task := t.find(id)
	if task == nil || !task.Enabled {
		return
	}
	if hasCompletionMarker(text) {
		t.completeTask(id)
		return
	}
	t.SetCurrentTask(id)
}

func (t *Tracker) detectAgent(text string) {
	if role := DetectAgent(text); role != "" {
		t.SetActiveAgent(role)
	}
}

// SetTaskStatus moves a task forward. In-progress makes the task current,
// completed advances the current task when needed. Transitions that would
// move a task backwards are rejected.
func (t *Tracker) SetTaskStatus(id string, status TaskStatus) bool {
	switch status {
	case TaskInProgress:
		return t.SetCurrentTask(id)
	case TaskCompleted:
		return t.completeTask(id)
	}
	task := t.find(id)
	if task != nil && task.Status != TaskPending {
		log.Printf("[progress] rejected %s -> %s for task %q", task.Status, status, id)
	}
	return false
}

// SetCurrentTask completes the current task, if any, and starts id.
func (t *Tracker) SetCurrentTask(id string) bool {
	task := t.find(id)
	if task == nil || task.Status == TaskCompleted || t.currentTaskID == id {
		return false
	}
	if t.currentTaskID != "" {
		t.transition(t.currentTaskID, TaskCompleted)
	}
	t.currentTaskID = id
	return t.transition(id, TaskInProgress)
}

func (t *Tracker) completeTask(id string) bool {
	if !t.transition(id, TaskCompleted) {
		return false
	}
	if t.currentTaskID == id {
		t.advance(id)
	}
	return true
}

// advance makes the next pending enabled task after id current, wrapping
// to the start of the list, or clears the current task.
func (t *Tracker) advance(from string) {
	t.currentTaskID = ""
	start := 0
	for i, task := range t.tasks {
		if task.ID == from {
			start = i + 1
			break
		}
	}
	n := len(t.tasks)
	for k := 0; k < n; k++ {
		task := t.tasks[(start+k)%n]
		if task.Status == TaskPending && task.Enabled {
			t.currentTaskID = task.ID
			t.transition(task.ID, TaskInProgress)
			return
		}
	}
}

// CompleteAll ends the run: every enabled task that is not finished is
// completed and the current task is cleared.
func (t *Tracker) CompleteAll() {
	t.currentTaskID = ""
	for _, task := range t.tasks {
		if task.Enabled && task.Status != TaskCompleted {
			t.transition(task.ID, TaskCompleted)
		}
	}
}

// transition is the only place task status changes outside a reset.
func (t *Tracker) transition(id string, to TaskStatus) bool {
	task := t.find(id)
	if task == nil {
		return false
	}
	from := task.Status
	if to.rank() <= from.rank() {
		if to.rank() < from.rank() {
			log.Printf("[progress] rejected %s -> %s for task %q", from, to, id)
		}
		return false
	}
	task.Status = to
	t.emit(TaskStatusChanged{TaskID: id, TaskName: task.Name, Old: from, New: to})
	return true
}

// ResetProgress returns every task to pending and clears the current task.
func (t *Tracker) ResetProgress() {
	t.currentTaskID = ""
	for _, task := range t.tasks {
		if task.Status == TaskPending {
			continue
		}
		from := task.Status
		task.Status = TaskPending
		t.emit(TaskStatusChanged{TaskID: task.ID, TaskName: task.Name, Old: from, New: TaskPending})
	}
}

// SetActiveAgent records role as the current speaker if it differs from
// the current one.
func (t *Tracker) SetActiveAgent(role string) bool {
	role = strings.TrimSpace(role)
	if role == "" || role == t.activeAgentRole {
		return false
	}
	t.activeAgentRole = role
	t.highlightUntil = t.now().Add(t.highlightFor)

	var matched *Agent
	if a := t.matchAgent(role); a != nil {
		cp := *a
		matched = &cp
	}
	t.emit(ActiveAgentChanged{Role: role, Agent: matched})
	return true
}

// matchAgent finds a known agent whose role contains role, or is contained
// in it, ignoring case.
func (t *Tracker) matchAgent(role string) *Agent {
	lower := strings.ToLower(role)
	for i := range t.agents {
		known := strings.ToLower(t.agents[i].Role)
		if known == "" {
			continue
		}
		if strings.Contains(known, lower) || strings.Contains(lower, known) {
			return &t.agents[i]
		}
	}
	return nil
}

// SetTaskEnabled includes or excludes a task from progress accounting.
func (t *Tracker) SetTaskEnabled(id string, enabled bool) bool {
	task := t.find(id)
	if task == nil {
		return false
	}
	task.Enabled = enabled
	return true
}

// SetAgentEnabled toggles an agent in the custom configuration.
func (t *Tracker) SetAgentEnabled(role string, enabled bool) bool {
	for i := range t.agents {
		if t.agents[i].Role == role {
			t.agents[i].Enabled = enabled
			return true
		}
	}
	return false
}

// TaskProgress is the rounded percentage of enabled tasks that are
// completed; 0 when no task is enabled.
func (t *Tracker) TaskProgress() int {
	enabled, done := 0, 0
	for _, task := range t.tasks {
		if !task.Enabled {
			continue
		}
		enabled++
		if task.Status == TaskCompleted {
			done++
		}
	}
	if enabled == 0 {
		return 0
	}
	return int(math.Round(float64(done) * 100 / float64(enabled)))
}

// CurrentTaskID returns the in-progress task's id, or "".
func (t *Tracker) CurrentTaskID() string { return t.currentTaskID }

// ActiveAgentRole returns the most recently identified speaker.
func (t *Tracker) ActiveAgentRole() string { return t.activeAgentRole }

// Tasks returns a copy of the task list.
func (t *Tracker) Tasks() []Task {
	out := make([]Task, len(t.tasks))
	for i, task := range t.tasks {
		out[i] = *task
	}
	return out
}

// Agents returns a copy of the agent list.
func (t *Tracker) Agents() []Agent {
	out := make([]Agent, len(t.agents))
	for i, a := range t.agents {
		a.Tools = append([]string(nil), a.Tools...)
		out[i] = a
	}
	return out
}

// Snapshot copies the whole tracker state.
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		Tasks:           t.Tasks(),
		Agents:          t.Agents(),
		CurrentTaskID:   t.currentTaskID,
		ActiveAgentRole: t.activeAgentRole,
		Highlighted:     t.activeAgentRole != "" && t.now().Before(t.highlightUntil),
		Progress:        t.TaskProgress(),
		FromDefaults:    t.fromDefaults,
	}
	if len(t.models) > 0 {
		s.LLMModels = make(map[string]string, len(t.models))
		for k, v := range t.models {
			s.LLMModels[k] = v
		}
	}
	if a := t.matchAgent(t.activeAgentRole); a != nil && t.activeAgentRole != "" {
		cp := *a
		s.ActiveAgent = &cp
	}
	return s
}

// CustomConfig is the payload of a set_custom_config frame.
type CustomConfig struct {
	Agents    []Agent           `json:"agents"`
	Tasks     []TaskTemplate    `json:"tasks"`
	LLMModels map[string]string `json:"llm_models,omitempty"`
}

// CustomConfig reduces the current collections to the shape the crew
// service accepts. ok is false when there is nothing to send.
func (t *Tracker) CustomConfig() (cfg CustomConfig, ok bool) {
	if len(t.agents) == 0 && len(t.tasks) == 0 {
		return CustomConfig{}, false
	}
	cfg.Agents = t.Agents()
	cfg.Tasks = make([]TaskTemplate, len(t.tasks))
	for i, task := range t.tasks {
		cfg.Tasks[i] = TaskTemplate{
			Description:    task.Description,
			ExpectedOutput: task.ExpectedOutput,
			AgentRole:      task.AgentRole,
			Enabled:        task.Enabled,
		}
	}
	if len(t.models) > 0 {
		cfg.LLMModels = make(map[string]string, len(t.models))
		for k, v := range t.models {
			cfg.LLMModels[k] = v
		}
	}
	return cfg, true
}

// SaveCustomConfig hands the custom configuration to transmit as a
// set_custom_config frame. It reports whether a configuration was
// available to send; transmit reports its own failures.
func (t *Tracker) SaveCustomConfig(transmit func(payload any) bool) bool {
	cfg, ok := t.CustomConfig()
	if !ok {
		return false
	}
	if !transmit(frame.SetCustomConfig(cfg)) {
		log.Printf("[progress] custom config not delivered")
	}
	return true
}

func (t *Tracker) find(id string) *Task {
	for _, task := range t.tasks {
		if task.ID == id {
			return task
		}
	}
	return nil
}
