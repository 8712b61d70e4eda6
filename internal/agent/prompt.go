package agent

import (
	"fmt"
	"strings"

	"MarketCrew/internal/tool"
)

// buildSystemPrompt 由智能体定义与工具清单生成系统提示词。
// 纯函数，便于在不调用真实模型的情况下验证提示组装逻辑。
func buildSystemPrompt(def Definition, tools []tool.Invoker) string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "You are %s.\n", strings.TrimSpace(def.Role))
	fmt.Fprintf(&builder, "Your goal: %s\n\n", strings.TrimSpace(def.Goal))
	builder.WriteString(strings.TrimSpace(def.Backstory))
	builder.WriteString("\n\n")

	builder.WriteString("Always respond with exactly one compact JSON object and nothing else.\n")
	if len(tools) > 0 {
		builder.WriteString("To use a tool, respond with:\n")
		builder.WriteString(`{"thought": "<your reasoning>", "action": "<tool name>", "action_input": "<tool input>"}` + "\n")
		builder.WriteString("To deliver your final result, respond with:\n")
		builder.WriteString(`{"thought": "<your reasoning>", "final_answer": "<complete final result>"}` + "\n\n")
		builder.WriteString("Available tools:\n")
		for _, invoker := range tools {
			fmt.Fprintf(&builder, "- %s: %s\n", invoker.Name(), invoker.Description())
		}
	} else {
		builder.WriteString("You have no tools. Respond with:\n")
		builder.WriteString(`{"thought": "<your reasoning>", "final_answer": "<complete final result>"}` + "\n")
	}

	builder.WriteString("\nYou must complete the work yourself. Never delegate or hand off to anyone else.")
	return builder.String()
}

// toolNames 渲染可用工具名清单，供未知工具的观察反馈使用。
func toolNames(tools []tool.Invoker) string {
	names := make([]string, 0, len(tools))
	for _, invoker := range tools {
		names = append(names, invoker.Name())
	}
	return strings.Join(names, ", ")
}

// buildUserPrompt 汇总任务描述、产出要求、前序任务上下文与本任务的
// 行动记录。上下文严格按产生顺序渲染。
func buildUserPrompt(description, expectedOutput string, contexts []ContextEntry, transcript []stepRecord) string {
	var builder strings.Builder

	builder.WriteString("## Task\n")
	builder.WriteString(strings.TrimSpace(description))
	builder.WriteString("\n")

	if strings.TrimSpace(expectedOutput) != "" {
		builder.WriteString("\n## Expected output\n")
		builder.WriteString(strings.TrimSpace(expectedOutput))
		builder.WriteString("\n")
	}

	if len(contexts) > 0 {
		builder.WriteString("\n## Context from earlier tasks\n")
		for idx, entry := range contexts {
			fmt.Fprintf(&builder, "[%d] Output of %s:\n%s\n", idx+1,
				strings.TrimSpace(entry.Role),
				strings.TrimSpace(entry.Output),
			)
		}
	}

	if len(transcript) > 0 {
		builder.WriteString("\n## Your steps so far\n")
		for idx, record := range transcript {
			fmt.Fprintf(&builder, "Step %d:\n", idx+1)
			if record.Thought != "" {
				fmt.Fprintf(&builder, "  Thought: %s\n", record.Thought)
			}
			if record.Action != "" {
				fmt.Fprintf(&builder, "  Action: %s(%s)\n", record.Action, record.ActionInput)
			}
			fmt.Fprintf(&builder, "  Observation: %s\n", record.Observation)
		}
	}

	builder.WriteString("\nDecide your next step now and answer with a single JSON object.")
	return builder.String()
}
