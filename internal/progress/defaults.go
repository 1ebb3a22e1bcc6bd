package progress

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Positional ids and icons for tasks loaded from the crew service. The ids
// line up with the keyword categories in taskRules.
var (
	positionalTaskIDs   = []string{"ideation", "tiktok", "market", "tech", "refinement"}
	positionalTaskIcons = []string{"💡", "📱", "📊", "⚙️", "✨"}
)

const (
	fallbackTaskIcon = "📌"
	maxTaskNameLen   = 20
)

func taskIDAt(i int) string {
	if i < len(positionalTaskIDs) {
		return positionalTaskIDs[i]
	}
	return fmt.Sprintf("task-%d", i+1)
}

func taskIconAt(i int) string {
	if i < len(positionalTaskIcons) {
		return positionalTaskIcons[i]
	}
	return fallbackTaskIcon
}

// taskNameFrom derives a display name from the first line of a task
// description.
func taskNameFrom(description string, i int) string {
	line := strings.TrimSpace(description)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if line == "" {
		return fmt.Sprintf("Task %d", i+1)
	}
	if utf8.RuneCountInString(line) <= maxTaskNameLen {
		return line
	}
	return string([]rune(line)[:maxTaskNameLen]) + "..."
}

// DefaultTasks is the built-in five-stage pipeline used when the crew
// service is unavailable.
func DefaultTasks() []Task {
	return []Task{
		{
			ID: "ideation", Name: "产品创意生成", Status: TaskPending, Icon: "💡",
			Description:    "根据用户输入生成多个产品创意，并提炼每个创意的核心概念与创新点",
			ExpectedOutput: "3-5 个产品创意及其产品概念说明",
			AgentRole:      "产品经理", Enabled: true,
		},
		{
			ID: "tiktok", Name: "TikTok平台分析", Status: TaskPending, Icon: "📱",
			Description:    "分析 TikTok 平台特点、用户群体与内容趋势，评估产品创意的平台契合度",
			ExpectedOutput: "平台分析报告",
			AgentRole:      "TikTok分析师", Enabled: true,
		},
		{
			ID: "market", Name: "市场研究", Status: TaskPending, Icon: "📊",
			Description:    "进行市场研究，分析市场规模、市场趋势与主要竞争对手",
			ExpectedOutput: "市场研究报告与竞品分析",
			AgentRole:      "市场研究员", Enabled: true,
		},
		{
			ID: "tech", Name: "技术可行性评估", Status: TaskPending, Icon: "⚙️",
			Description:    "评估产品的技术可行性、技术架构与开发难度",
			ExpectedOutput: "技术可行性评估与技术方案",
			AgentRole:      "技术专家", Enabled: true,
		},
		{
			ID: "refinement", Name: "产品方案完善", Status: TaskPending, Icon: "✨",
			Description:    "综合各方分析完善产品方案，输出产品定义与功能列表",
			ExpectedOutput: "最终产品方案",
			AgentRole:      "产品经理", Enabled: true,
		},
	}
}

// DefaultAgents is the built-in four-role crew.
func DefaultAgents() []Agent {
	return []Agent{
		{
			Role:      "产品经理",
			Goal:      "提出有市场潜力的产品创意并完善最终产品方案",
			Backstory: "资深消费电子产品经理，擅长从用户需求中提炼产品概念",
			LLM:       "gpt-4o",
			Enabled:   true,
		},
		{
			Role:      "TikTok分析师",
			Goal:      "判断产品在短视频平台上的传播潜力",
			Backstory: "长期研究抖音与 TikTok 内容生态的增长分析师",
			LLM:       "gpt-4o",
			Tools:     []string{"search"},
			Enabled:   true,
		},
		{
			Role:      "市场研究员",
			Goal:      "给出可靠的市场规模、趋势与竞品判断",
			Backstory: "咨询公司出身的市场研究员，熟悉行业数据来源",
			LLM:       "gpt-4o",
			Tools:     []string{"search"},
			Enabled:   true,
		},
		{
			Role:      "技术专家",
			Goal:      "评估实现路径与技术风险",
			Backstory: "全栈架构师，主导过多个硬件与软件结合的产品",
			LLM:       "gpt-4o",
			Enabled:   true,
		},
	}
}
