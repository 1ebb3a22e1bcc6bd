package channel

import "time"

// NoticeLevel classifies a user-facing notice.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a short message meant for the person watching the run.
type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
	At    time.Time   `json:"at"`
}
