package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is the discriminator carried in every frame's "type" field.
type Type string

const (
	TypeChat         Type = "chat"
	TypeSystem       Type = "system"
	TypeUpdate       Type = "update"
	TypeResult       Type = "result"
	TypeTaskStatus   Type = "task_status"
	TypeRequestInput Type = "request_input"
	TypeUserInput    Type = "user_input"
	TypeHeartbeatAck Type = "heartbeat_ack"

	// Outbound only.
	TypeHeartbeat       Type = "heartbeat"
	TypeSetCustomConfig Type = "set_custom_config"
	TypeStartAnalysis   Type = "start_analysis"
)

// Frame is one decoded inbound frame. The concrete value is one of
// Chat, System, Update, Result, UserInput, TaskStatus, RequestInput,
// HeartbeatAck or Unknown.
type Frame interface {
	Type() Type
}

// Text is the shared body of the free-text frame kinds.
type Text struct {
	Content   string
	Timestamp float64
}

type Chat struct{ Text }
type System struct{ Text }
type Update struct{ Text }
type Result struct{ Text }

// UserInput is the server echo of something a user typed.
type UserInput struct{ Text }

func (Chat) Type() Type      { return TypeChat }
func (System) Type() Type    { return TypeSystem }
func (Update) Type() Type    { return TypeUpdate }
func (Result) Type() Type    { return TypeResult }
func (UserInput) Type() Type { return TypeUserInput }

// TaskStatus sets a task's status directly.
type TaskStatus struct {
	TaskID    string
	Status    string
	AgentRole string
	Timestamp float64
}

func (TaskStatus) Type() Type { return TypeTaskStatus }

// RequestInput asks the user a question, optionally with fixed choices.
type RequestInput struct {
	Question  string
	Options   []string
	Timestamp float64
}

func (RequestInput) Type() Type { return TypeRequestInput }

// HeartbeatAck acknowledges a client heartbeat.
type HeartbeatAck struct {
	Timestamp float64
}

func (HeartbeatAck) Type() Type { return TypeHeartbeatAck }

// Time converts Timestamp to a wall-clock time. Values below 1e12 are taken
// as Unix seconds, larger ones as milliseconds; zero stays the zero time.
func (a HeartbeatAck) Time() time.Time {
	switch {
	case a.Timestamp <= 0:
		return time.Time{}
	case a.Timestamp < 1e12:
		sec := int64(a.Timestamp)
		return time.Unix(sec, int64((a.Timestamp-float64(sec))*1e9))
	default:
		return time.UnixMilli(int64(a.Timestamp))
	}
}

// Unknown carries a frame whose type this client does not model.
type Unknown struct {
	Kind Type
	Raw  json.RawMessage
}

func (u Unknown) Type() Type { return u.Kind }

// TextOf returns the free text of chat, system, update, result and
// user_input frames.
func TextOf(f Frame) (string, bool) {
	switch v := f.(type) {
	case Chat:
		return v.Content, true
	case System:
		return v.Content, true
	case Update:
		return v.Content, true
	case Result:
		return v.Content, true
	case UserInput:
		return v.Content, true
	}
	return "", false
}

type wireFrame struct {
	Type      Type      `json:"type"`
	Content   string    `json:"content"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	Timestamp flexFloat `json:"timestamp"`
	TaskID    flexID    `json:"task_id"`
	Status    string    `json:"status"`
	AgentRole string    `json:"agent_role"`
}

// Decode parses one raw inbound payload. Escaped-Unicode sequences in
// content, question and options are decoded before the frame is returned.
func Decode(raw []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if w.Type == "" {
		return nil, fmt.Errorf("decode frame: missing type")
	}

	text := Text{Content: DecodeEscapes(w.Content), Timestamp: float64(w.Timestamp)}
	switch w.Type {
	case TypeChat:
		return Chat{text}, nil
	case TypeSystem:
		return System{text}, nil
	case TypeUpdate:
		return Update{text}, nil
	case TypeResult:
		return Result{text}, nil
	case TypeUserInput:
		return UserInput{text}, nil
	case TypeTaskStatus:
		return TaskStatus{
			TaskID:    string(w.TaskID),
			Status:    w.Status,
			AgentRole: DecodeEscapes(w.AgentRole),
			Timestamp: float64(w.Timestamp),
		}, nil
	case TypeRequestInput:
		opts := make([]string, 0, len(w.Options))
		for _, o := range w.Options {
			opts = append(opts, DecodeEscapes(o))
		}
		return RequestInput{
			Question:  DecodeEscapes(w.Question),
			Options:   opts,
			Timestamp: float64(w.Timestamp),
		}, nil
	case TypeHeartbeatAck:
		return HeartbeatAck{Timestamp: float64(w.Timestamp)}, nil
	}

	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return Unknown{Kind: w.Type, Raw: cp}, nil
}

// flexFloat accepts a JSON number or a numeric string; anything else is zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// ISO timestamps are tolerated and treated as absent.
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// flexID accepts either a JSON string or a number.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("task_id: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

// Outbound is every frame shape this client sends.
type Outbound struct {
	Type      Type   `json:"type"`
	Content   string `json:"content,omitempty"`
	CrewType  string `json:"crew_type,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Config    any    `json:"config,omitempty"`
}

// Heartbeat builds a keepalive frame stamped in milliseconds.
func Heartbeat(now time.Time) Outbound {
	return Outbound{Type: TypeHeartbeat, Timestamp: now.UnixMilli()}
}

// Input builds the frame answering a request_input prompt.
func Input(content string) Outbound {
	return Outbound{Type: TypeUserInput, Content: content}
}

// StartAnalysis asks the server to run the given crew.
func StartAnalysis(crewType, prompt string) Outbound {
	return Outbound{Type: TypeStartAnalysis, CrewType: crewType, Content: prompt}
}

// SetCustomConfig carries an edited agent/task configuration.
func SetCustomConfig(cfg any) Outbound {
	return Outbound{Type: TypeSetCustomConfig, Config: cfg}
}
