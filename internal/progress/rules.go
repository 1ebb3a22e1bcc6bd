package progress

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"crewmon/internal/transcript"
)

// taskRule maps a task id to the keywords that indicate work on it.
type taskRule struct {
	TaskID   string
	Keywords []string
}

// taskRules is tried in order; the first category with a matching keyword
// wins. Matching is a case-insensitive substring test.
var taskRules = []taskRule{
	{"ideation", []string{"产品创意", "创意生成", "创意构思", "产品概念", "创新点"}},
	{"tiktok", []string{"TikTok", "抖音", "短视频平台", "平台分析", "用户群体", "平台特点"}},
	{"market", []string{"市场研究", "市场分析", "竞品分析", "市场规模", "市场趋势", "竞争对手"}},
	{"tech", []string{"技术可行性", "技术评估", "技术架构", "开发难度", "技术方案", "实现方式"}},
	{"refinement", []string{"方案完善", "产品方案", "方案优化", "最终方案", "产品定义", "功能列表"}},
}

// completionMarkers mark a detected task as finished.
var completionMarkers = []string{"done", "resolved", "final answer", "conclusion"}

// finalMarkers in a result frame signal the end of the run.
var finalMarkers = []string{"最终产品方案", "Final Answer", "产品概念"}

// systemOriginMarkers flag text produced by the server itself.
var systemOriginMarkers = []string{"[系统]", "[System]", "[SYSTEM]"}

// DetectTask returns the id of the first task category whose keywords
// appear in text, or "".
func DetectTask(text string) string {
	if isSystemOrigin(text) {
		return ""
	}
	lower := strings.ToLower(text)
	for _, rule := range taskRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.TaskID
			}
		}
	}
	return ""
}

func isSystemOrigin(text string) bool {
	return containsAny(text, systemOriginMarkers)
}

func hasCompletionMarker(text string) bool {
	return containsAny(strings.ToLower(text), completionMarkers)
}

// IsFinalResult reports whether text marks the end of a run.
func IsFinalResult(text string) bool {
	return containsAny(text, finalMarkers)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// agentRule extracts a speaker role from text. ok reports whether the rule
// matched at all, independent of whether the captured role is usable.
type agentRule struct {
	Name  string
	Match func(text string) (role string, ok bool)
}

const maxRoleLen = 40

// agentRules is the speaker detection cascade, highest priority first.
var agentRules = []agentRule{
	{"agent-tag", regexpRule(`(?i)agent\s*[:：]\s*([^\n]+)`)},
	{"emoji", matchEmoji},
	{"square-bracket", regexpRule(`(?m)^\s*\[([^\]\n]{1,40})\]\s*[:：]`)},
	{"lenticular-bracket", regexpRule(`(?m)^\s*【([^】\n]{1,40})】`)},
	{"corner-bracket", regexpRule(`(?m)^\s*「([^」\n]{1,40})」`)},
	{"double-quote", regexpRule(`(?m)^\s*"([^"\n]{1,40})"\s*[:：]`)},
	{"curly-quote", regexpRule(`(?m)^\s*“([^”\n]{1,40})”\s*[:：]`)},
	{"role-suffix", regexpRule(`([\p{Han}A-Za-z][\p{Han}A-Za-z ]{0,20}?(?:经理|专家|分析师|研究员|工程师|架构师|设计师|顾问|Manager|Analyst|Expert|Engineer|Researcher|Specialist|Designer|Architect))\s*[:：]`)},
}

func regexpRule(pattern string) func(string) (string, bool) {
	re := regexp.MustCompile(pattern)
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

// emojiRoles maps a leading emoji to the role that uses it.
var emojiRoles = []struct {
	Emoji string
	Role  string
}{
	{"💡", "产品经理"},
	{"📱", "TikTok分析师"},
	{"📊", "市场研究员"},
	{"⚙️", "技术专家"},
	{"⚙", "技术专家"},
	{"✨", "产品经理"},
}

func matchEmoji(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, e := range emojiRoles {
		if strings.HasPrefix(text, e.Emoji) {
			return e.Role, true
		}
	}
	return "", false
}

// DetectAgent runs the speaker cascade over text with control codes and
// emphasis markup removed. The first rule that matches decides: it returns
// "" when nothing matches, or when the matched role is unusable or names
// the system itself.
func DetectAgent(text string) string {
	text = transcript.PlainText(transcript.StripControlCodes(text))
	for _, rule := range agentRules {
		captured, ok := rule.Match(text)
		if !ok {
			continue
		}
		role := cleanRole(captured)
		if role == "" || isSystemRole(role) {
			return ""
		}
		return role
	}
	return ""
}

func cleanRole(role string) string {
	role = strings.TrimSpace(role)
	role = strings.Trim(role, "*#`:： ")
	if role == "" || utf8.RuneCountInString(role) > maxRoleLen {
		return ""
	}
	return role
}

func isSystemRole(role string) bool {
	return strings.EqualFold(role, "system") || role == "系统"
}
