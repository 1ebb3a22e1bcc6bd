package progress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectTask(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"开始进行市场研究分析", "market"},
		{"正在生成产品创意", "ideation"},
		{"tiktok 用户画像", "tiktok"},
		{"评估开发难度", "tech"},
		{"输出功能列表", "refinement"},
		{"nothing relevant", ""},
		{"", ""},
		// Two categories: declaration order decides.
		{"结合市场分析给出技术方案", "market"},
		{"技术方案与产品创意", "ideation"},
		{"[系统] 市场研究", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTask(tt.text))
		})
	}
}

func TestTaskRulesCoverDefaultTasks(t *testing.T) {
	ids := map[string]bool{}
	for _, task := range DefaultTasks() {
		ids[task.ID] = true
	}
	for _, rule := range taskRules {
		assert.True(t, ids[rule.TaskID], "rule %q has no default task", rule.TaskID)
	}
	assert.Equal(t, len(positionalTaskIDs), len(taskRules))
}

func TestDetectAgent(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"agent tag", "Agent: 产品经理\n开始工作", "产品经理"},
		{"agent tag with control codes", "\x1b[1m\x1b[95m# Agent:\x1b[00m \x1b[1m\x1b[92m市场研究员\x1b[00m", "市场研究员"},
		{"agent tag wins over emoji", "💡 Agent: 技术专家", "技术专家"},
		{"emoji", "📊 市场规模约 100 亿", "市场研究员"},
		{"emoji with variation selector", "⚙️ 技术评估", "技术专家"},
		{"square bracket", "[产品经理]: 我们先讨论", "产品经理"},
		{"full width colon", "[TikTok分析师]：数据如下", "TikTok分析师"},
		{"lenticular bracket", "【技术专家】认为可行", "技术专家"},
		{"corner bracket", "「市场研究员」补充", "市场研究员"},
		{"double quote", `"Reviewer": looks good`, "Reviewer"},
		{"role suffix", "市场分析师: 市场趋势向好", "市场分析师"},
		{"english role suffix", "Senior Data Analyst: numbers", "Senior Data Analyst"},
		{"system rejected", "[系统]: 分析开始", ""},
		{"english system rejected", "Agent: SYSTEM", ""},
		{"no match", "普通的输出内容", ""},
		{"long agent tag stops the cascade", "Agent: " + strings.Repeat("长", 45) + "\n[市场研究员]: 分析", ""},
		{"blank agent tag stops the cascade", "Agent: **\n【技术专家】认为可行", ""},
		{"too long", "Agent: 一二三四五六七八九十一二三四五六七八九十一二三四五六七八九十一二三四五六七八九十一", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectAgent(tt.text))
		})
	}
}

func TestParseTaskStatus(t *testing.T) {
	for in, want := range map[string]TaskStatus{
		"pending":     TaskPending,
		"in-progress": TaskInProgress,
		"in_progress": TaskInProgress,
		"completed":   TaskCompleted,
	} {
		got, err := ParseTaskStatus(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTaskStatus("failed")
	assert.Error(t, err)
}

func TestTaskNameFrom(t *testing.T) {
	assert.Equal(t, "短描述", taskNameFrom("  短描述  \n第二行", 0))
	assert.Equal(t, "Task 2", taskNameFrom(" \n", 1))
	assert.Equal(t, "abcdefghijklmnopqrst...", taskNameFrom("abcdefghijklmnopqrstuvwxyz", 0))
}
