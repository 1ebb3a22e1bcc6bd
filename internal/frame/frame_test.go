package frame

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEscapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "hello 世界", "hello 世界"},
		{"single escape", `\u5e02\u573a`, "市场"},
		{"uppercase hex and U", `\U4E2D文`, "中文"},
		{"double encoded", `\u005cu0041`, "A"},
		{"surrogate pair", `\ud83d\udca1 idea`, "💡 idea"},
		{"lone surrogate", `\ud83d!`, "\uFFFD!"},
		{"truncated escape", `abc\u12`, `abc\u12`},
		{"non hex", `\uzzzz`, `\uzzzz`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeEscapes(tt.in))
		})
	}
}

func TestDecode_TextFrames(t *testing.T) {
	f, err := Decode([]byte(`{"type":"update","content":"\\u5f00\\u59cb","timestamp":1700000000.5}`))
	require.NoError(t, err)

	u, ok := f.(Update)
	require.True(t, ok, "got %T", f)
	assert.Equal(t, "开始", u.Content)
	assert.Equal(t, 1700000000.5, u.Timestamp)

	text, ok := TextOf(f)
	assert.True(t, ok)
	assert.Equal(t, "开始", text)
}

func TestDecode_AllKinds(t *testing.T) {
	tests := []struct {
		raw  string
		want Type
	}{
		{`{"type":"chat","content":"x"}`, TypeChat},
		{`{"type":"system","content":"x"}`, TypeSystem},
		{`{"type":"result","content":"x"}`, TypeResult},
		{`{"type":"user_input","content":"x"}`, TypeUserInput},
		{`{"type":"task_status","task_id":"market","status":"completed"}`, TypeTaskStatus},
		{`{"type":"request_input","question":"q"}`, TypeRequestInput},
		{`{"type":"heartbeat_ack","timestamp":"42"}`, TypeHeartbeatAck},
		{`{"type":"progress_ping"}`, Type("progress_ping")},
	}
	for _, tt := range tests {
		f, err := Decode([]byte(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, f.Type(), tt.raw)
	}
}

func TestDecode_TaskStatusNumericID(t *testing.T) {
	f, err := Decode([]byte(`{"type":"task_status","task_id":3,"status":"in-progress","agent_role":"\\u4ea7\\u54c1\\u7ecf\\u7406"}`))
	require.NoError(t, err)

	ts := f.(TaskStatus)
	assert.Equal(t, "3", ts.TaskID)
	assert.Equal(t, "in-progress", ts.Status)
	assert.Equal(t, "产品经理", ts.AgentRole)
}

func TestDecode_RequestInputOptions(t *testing.T) {
	f, err := Decode([]byte(`{"type":"request_input","question":"\\u662f\\u5426?","options":["\\u662f","\\u5426"]}`))
	require.NoError(t, err)

	ri := f.(RequestInput)
	assert.Equal(t, "是否?", ri.Question)
	assert.Equal(t, []string{"是", "否"}, ri.Options)
}

func TestDecode_HeartbeatTimestamp(t *testing.T) {
	f, err := Decode([]byte(`{"type":"heartbeat_ack","timestamp":1712345678901}`))
	require.NoError(t, err)
	assert.Equal(t, float64(1712345678901), f.(HeartbeatAck).Timestamp)
	assert.True(t, time.UnixMilli(1712345678901).Equal(f.(HeartbeatAck).Time()))
}

func TestHeartbeatAck_Time(t *testing.T) {
	tests := []struct {
		name string
		ts   float64
		want time.Time
	}{
		{"milliseconds", 1712345678901, time.UnixMilli(1712345678901)},
		{"seconds", 1712345678, time.Unix(1712345678, 0)},
		{"fractional seconds", 1712345678.5, time.Unix(1712345678, 500000000)},
		{"absent", 0, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(HeartbeatAck{Timestamp: tt.ts}.Time()))
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{"content":"no type"}`, `[1,2]`, ``} {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestOutbound_JSON(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	b, err := json.Marshal(Heartbeat(now))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"heartbeat","timestamp":1700000000123}`, string(b))

	b, err = json.Marshal(StartAnalysis("product", "宠物智能喂食器"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"start_analysis","crew_type":"product","content":"宠物智能喂食器"}`, string(b))

	b, err = json.Marshal(Input("是"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user_input","content":"是"}`, string(b))
}
