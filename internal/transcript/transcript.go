package transcript

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Role identifies who a message came from.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// DeliveryStatus tracks a user message through the transport.
type DeliveryStatus string

const (
	StatusSending DeliveryStatus = "sending"
	StatusSent    DeliveryStatus = "sent"
	StatusError   DeliveryStatus = "error"
)

// Message is one transcript entry.
type Message struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Role      Role           `json:"role"`
	Timestamp string         `json:"timestamp"`
	Status    DeliveryStatus `json:"status,omitempty"`
	Thinking  bool           `json:"thinking,omitempty"`
	Preserved bool           `json:"preserved,omitempty"`
}

// preservationTriggers mark text that starts a complete unit. When an
// update contains one, the message being streamed is frozen and the update
// becomes a new message.
var preservationTriggers = []string{
	"Final Answer:",
	"产品概念",
	"Task:",
	"Agent:",
	"[系统]:",
	"[产品经理]:",
}

// Waiting describes a pending request_input prompt.
type Waiting struct {
	Active   bool     `json:"active"`
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// Transcript is the consolidated conversation. It is not safe for
// concurrent use; callers serialize access.
type Transcript struct {
	messages []*Message
	analysis bool
	waiting  Waiting

	now   func() time.Time
	newID func() string
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{
		now:   time.Now,
		newID: func() string { return ulid.Make().String() },
	}
}

// Append adds a message. Blank text, text that is blank once control codes
// are removed, and an exact repeat of the unpreserved last message are
// ignored; nil is returned in those cases. Appending an agent message drops
// any pending thinking placeholder first.
func (t *Transcript) Append(text string, role Role) *Message {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	clean := RenderControlCodes(text)
	if strings.TrimSpace(clean) == "" {
		return nil
	}

	if last := t.last(); last != nil && !last.Preserved && last.Content == clean && last.Role == role {
		return nil
	}

	if role == RoleAgent {
		kept := t.messages[:0]
		for _, m := range t.messages {
			if !m.Thinking {
				kept = append(kept, m)
			}
		}
		for i := len(kept); i < len(t.messages); i++ {
			t.messages[i] = nil
		}
		t.messages = kept
	}

	msg := &Message{
		ID:        t.newID(),
		Content:   clean,
		Role:      role,
		Timestamp: t.now().Format("15:04:05"),
		Thinking:  role == RoleAgent && t.analysis,
	}
	if role == RoleUser {
		msg.Status = StatusSent
	}
	t.messages = append(t.messages, msg)
	return msg
}

// UpdateLast streams text into the last message. A preserved or non-agent
// last message is never rewritten; the text starts a new message instead.
// Text containing a preservation trigger freezes the current last message,
// whatever its role, and starts a new one.
func (t *Transcript) UpdateLast(text string) *Message {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	clean := RenderControlCodes(text)
	if strings.TrimSpace(clean) == "" {
		return nil
	}

	last := t.last()
	if last == nil || last.Preserved {
		return t.Append(clean, RoleAgent)
	}

	if hasTrigger(text) || hasTrigger(PlainText(clean)) {
		last.Preserved = true
		last.Thinking = false
		return t.Append(clean, RoleAgent)
	}
	if last.Role != RoleAgent {
		return t.Append(clean, RoleAgent)
	}

	last.Content = clean
	last.Thinking = t.analysis
	return last
}

func hasTrigger(s string) bool {
	for _, trig := range preservationTriggers {
		if strings.Contains(s, trig) {
			return true
		}
	}
	return false
}

// SetStatus updates the delivery status of the last message when it is the
// user message with the given id.
func (t *Transcript) SetStatus(id string, status DeliveryStatus) bool {
	last := t.last()
	if last == nil || last.ID != id || last.Role != RoleUser || last.Preserved {
		return false
	}
	last.Status = status
	return true
}

// SetWaitingForInput records a pending question and shows it as a system
// message unless the last message already shows it.
func (t *Transcript) SetWaitingForInput(question string, options []string) {
	t.waiting = Waiting{
		Active:   true,
		Question: question,
		Options:  append([]string(nil), options...),
	}

	clean := RenderControlCodes(question)
	last := t.last()
	if last == nil || last.Content != clean || last.Preserved {
		t.Append(question, RoleSystem)
	}
}

// ResetWaitingForInput clears the pending question.
func (t *Transcript) ResetWaitingForInput() {
	t.waiting = Waiting{}
}

// Waiting returns the pending question state.
func (t *Transcript) Waiting() Waiting {
	w := t.waiting
	w.Options = append([]string(nil), w.Options...)
	return w
}

// SetAnalysisInProgress flags whether an analysis pass is running. Ending
// the pass clears every thinking marker.
func (t *Transcript) SetAnalysisInProgress(active bool) {
	t.analysis = active
	if active {
		return
	}
	for _, m := range t.messages {
		m.Thinking = false
	}
}

// AnalysisInProgress reports the analysis flag.
func (t *Transcript) AnalysisInProgress() bool { return t.analysis }

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = *m
	}
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.messages) }

func (t *Transcript) last() *Message {
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}
