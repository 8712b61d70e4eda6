package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	xerrors "MarketCrew/internal/errors"
	"MarketCrew/internal/llm"
	"MarketCrew/internal/tool"
	"MarketCrew/pkg/logger"
)

func init() {
	xerrors.Register(xerrors.CodeReasoningExhausted, xerrors.Attributes{
		Message:   "reasoning step budget exhausted",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(xerrors.CodeDelegationDisabled, xerrors.Attributes{
		Message:   "delegation is disabled for this agent",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}

// Definition 是驱动智能体行为的类型化配置。提示词完全由它与任务输入
// 推导，不依赖任何隐藏状态。
type Definition struct {
	Role      string
	Goal      string
	Backstory string
}

// ContextEntry 表示一条来自前序任务的产出，按产生顺序传递给后续任务。
type ContextEntry struct {
	Role   string
	Output string
}

// Agent 是单兵作战的智能体：在推理与行动之间交替，直到给出最终答案。
// 该类型不存在任何委派路径，协作只能通过编排器的任务顺序发生。
type Agent struct {
	def        Definition
	llmClient  llm.Client
	tools      []tool.Invoker
	maxSteps   int
	llmTimeout time.Duration
	logger     *slog.Logger
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// defaultMaxSteps 是单个任务内推理步数的默认上限。
const defaultMaxSteps = 8

// WithTools 配置智能体可用的工具，顺序即提示词中展示的顺序。
func WithTools(tools ...tool.Invoker) Option {
	return func(a *Agent) {
		a.tools = tools
	}
}

// WithMaxSteps 设置推理步数上限。
func WithMaxSteps(steps int) Option {
	return func(a *Agent) {
		if steps > 0 {
			a.maxSteps = steps
		}
	}
}

// WithLLMTimeout 设置单次推理调用的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.llmTimeout = 0
			return
		}
		a.llmTimeout = timeout
	}
}

// WithLogger 指定日志输出。
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = log
	}
}

// New 创建一个智能体。
func New(def Definition, llmClient llm.Client, opts ...Option) *Agent {
	a := &Agent{
		def:       def,
		llmClient: llmClient,
		maxSteps:  defaultMaxSteps,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.maxSteps <= 0 {
		a.maxSteps = defaultMaxSteps
	}
	if a.logger == nil {
		a.logger = logger.Named("agent")
	}
	return a
}

// Role 返回智能体的角色名。
func (a *Agent) Role() string {
	return a.def.Role
}

// stepRecord 记录一次完整的推理/行动往返，作为下一步提示词的一部分。
type stepRecord struct {
	Thought     string
	Action      string
	ActionInput string
	Observation string
}

// Execute 运行推理/行动循环：每一步先调用一次大模型，再根据其决策
// 调用工具或返回最终答案。步数耗尽时以 REASONING_EXHAUSTED 失败。
func (a *Agent) Execute(ctx context.Context, description, expectedOutput string, contexts []ContextEntry) (string, error) {
	if a.llmClient == nil {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "未配置大模型客户端")
	}

	system := buildSystemPrompt(a.def, a.tools)
	transcript := make([]stepRecord, 0, a.maxSteps)

	for step := 1; step <= a.maxSteps; step++ {
		prompt := buildUserPrompt(description, expectedOutput, contexts, transcript)

		response, err := a.complete(ctx, llm.Request{System: system, User: prompt})
		if err != nil {
			return "", xerrors.Wrap(xerrors.CodeOf(err), err,
				fmt.Sprintf("第 %d 步推理失败", step))
		}

		decision, parseErr := parseDecision(response.Content)
		if parseErr != nil {
			// 不合协议的回复作为观察反馈给模型，消耗一步。
			a.logger.Debug("模型回复无法解析",
				slog.Int("step", step),
				slog.String("role", a.def.Role),
			)
			transcript = append(transcript, stepRecord{
				Observation: "Your previous reply could not be parsed. Respond with a single JSON object " +
					"containing either an action or a final_answer, with no surrounding prose.",
			})
			continue
		}

		if decision.FinalAnswer != "" {
			a.logger.Info("智能体产出最终答案",
				slog.String("role", a.def.Role),
				slog.Int("steps", step),
			)
			return decision.FinalAnswer, nil
		}

		if isDelegation(decision.Action) {
			return "", xerrors.New(xerrors.CodeDelegationDisabled,
				fmt.Sprintf("模型试图委派工作（action=%s），该智能体不允许委派", decision.Action))
		}

		observation := a.act(ctx, decision)
		transcript = append(transcript, stepRecord{
			Thought:     decision.Thought,
			Action:      decision.Action,
			ActionInput: decision.ActionInput,
			Observation: observation,
		})
	}

	return "", xerrors.New(xerrors.CodeReasoningExhausted,
		fmt.Sprintf("%d 步之内未能得出最终答案", a.maxSteps),
		xerrors.WithMetadata("role", a.def.Role))
}

// complete 执行一次带超时的推理调用。
func (a *Agent) complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}
	return a.llmClient.Complete(ctx, req)
}

// act 执行模型选择的工具并返回观察结果。工具失败不会终止循环，
// 失败描述会原样写入观察，让模型自行决定重试、换工具或放弃。
func (a *Agent) act(ctx context.Context, decision decision) string {
	invoker := a.lookupTool(decision.Action)
	if invoker == nil {
		return fmt.Sprintf("Unknown tool %q. Available tools: %s.", decision.Action, toolNames(a.tools))
	}

	output, err := invoker.Invoke(ctx, decision.ActionInput)
	if err != nil {
		a.logger.Warn("工具调用失败",
			slog.String("role", a.def.Role),
			slog.String("tool", decision.Action),
			slog.String("error", err.Error()),
		)
		return fmt.Sprintf("Tool %s failed: %v", decision.Action, err)
	}
	logger.Audit().Info("工具调用成功",
		slog.String("role", a.def.Role),
		slog.String("tool", decision.Action),
	)
	return output
}

func (a *Agent) lookupTool(name string) tool.Invoker {
	for _, invoker := range a.tools {
		if invoker.Name() == name {
			return invoker
		}
	}
	return nil
}
