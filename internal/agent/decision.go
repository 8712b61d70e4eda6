package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decision 是模型每一步回复的结构化形式：要么指定一个工具行动，
// 要么给出最终答案，二者必居其一。
type decision struct {
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	ActionInput string `json:"action_input"`
	FinalAnswer string `json:"final_answer"`
}

// delegationActions 列出模型可能用来移交工作的行动名。单兵智能体
// 必须拒绝这些行动而不是转发。
var delegationActions = map[string]bool{
	"delegate":          true,
	"delegate_work":     true,
	"ask_coworker":      true,
	"ask_question":      true,
	"delegate_to_agent": true,
	"handoff":           true,
}

func isDelegation(action string) bool {
	return delegationActions[strings.ToLower(strings.TrimSpace(action))]
}

// parseDecision 将模型回复解析为结构化决策。容忍 Markdown 代码围栏
// 与回复前后的少量杂文，但 JSON 本体必须完整。
func parseDecision(content string) (decision, error) {
	var d decision
	raw := extractJSON(content)
	if raw == "" {
		return d, fmt.Errorf("回复中没有找到 JSON 对象")
	}
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return d, fmt.Errorf("解析决策 JSON 失败: %w", err)
	}

	d.Action = strings.TrimSpace(d.Action)
	d.ActionInput = strings.TrimSpace(d.ActionInput)
	d.FinalAnswer = strings.TrimSpace(d.FinalAnswer)

	if d.FinalAnswer == "" && d.Action == "" {
		return d, fmt.Errorf("决策既没有 action 也没有 final_answer")
	}
	return d, nil
}

// extractJSON 取出回复中第一个平衡的 JSON 对象。
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
