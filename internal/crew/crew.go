package crew

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"MarketCrew/internal/agent"
	xerrors "MarketCrew/internal/errors"
	"MarketCrew/internal/observability/alerting"
	"MarketCrew/pkg/logger"
)

func init() {
	xerrors.Register(xerrors.CodeTaskAlreadyExecuted, xerrors.Attributes{
		Message:   "task already executed",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(xerrors.CodeEmptyPipeline, xerrors.Attributes{
		Message:   "pipeline contains no tasks",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(xerrors.CodePipelineAborted, xerrors.Attributes{
		Message:   "pipeline aborted",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
}

// Process 表示任务的执行策略。
type Process string

// ProcessSequential 要求任务逐个执行：前一个任务完成之前，
// 后一个任务不会开始，后续任务总能看到全部前序产出。
const ProcessSequential Process = "sequential"

// State 表示一次编排运行所处的阶段。
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Crew 按既定顺序驱动一组任务，并把每个已完成任务的产出注入后续
// 任务的上下文。最终产出等于最后一个任务的结果。
type Crew struct {
	tasks   []*Task
	process Process
	logger  *slog.Logger
	alerter alerting.Dispatcher

	state       State
	currentTask int
	runID       string
}

// Option 定义可选的 Crew 配置。
type Option func(*Crew)

// WithProcess 指定执行策略。当前仅支持顺序执行。
func WithProcess(process Process) Option {
	return func(c *Crew) {
		c.process = process
	}
}

// WithLogger 指定日志输出。
func WithLogger(log *slog.Logger) Option {
	return func(c *Crew) {
		c.logger = log
	}
}

// WithAlertDispatcher 配置运行失败时的告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) Option {
	return func(c *Crew) {
		c.alerter = dispatcher
	}
}

// New 创建一个编排器。
func New(tasks []*Task, opts ...Option) *Crew {
	c := &Crew{
		tasks:       tasks,
		process:     ProcessSequential,
		state:       StatePending,
		currentTask: -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.logger == nil {
		c.logger = logger.Named("crew")
	}
	return c
}

// State 返回当前运行状态。
func (c *Crew) State() State {
	return c.state
}

// CurrentTask 返回正在执行或失败的任务序号，尚未开始时为 -1。
func (c *Crew) CurrentTask() int {
	return c.currentTask
}

// RunID 返回本次运行的标识，Kickoff 之前为空。
func (c *Crew) RunID() string {
	return c.runID
}

// Kickoff 按顺序执行全部任务并返回最后一个任务的结果。任何任务失败
// 都会立即中止运行，后续任务不再执行，失败信息携带出错任务的序号。
func (c *Crew) Kickoff(ctx context.Context) (string, error) {
	if c.state != StatePending {
		return "", xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("编排器处于 %s 状态，不能再次启动", c.state))
	}
	if len(c.tasks) == 0 {
		c.state = StateFailed
		return "", xerrors.New(xerrors.CodeEmptyPipeline, "没有可执行的任务")
	}
	if c.process != ProcessSequential {
		c.state = StateFailed
		return "", xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("不支持的执行策略: %s", c.process))
	}

	c.runID = uuid.NewString()
	c.state = StateRunning
	started := time.Now()

	logger.Audit().Info("编排运行开始",
		slog.String("run_id", c.runID),
		slog.Int("tasks", len(c.tasks)),
	)

	contexts := make([]agent.ContextEntry, 0, len(c.tasks)-1)
	var result string

	for idx, task := range c.tasks {
		c.currentTask = idx
		c.logger.Info("任务开始",
			slog.String("run_id", c.runID),
			slog.Int("task_index", idx),
			slog.String("role", task.Role()),
		)

		output, err := task.Execute(ctx, contexts)
		if err != nil {
			c.state = StateFailed
			aborted := xerrors.Wrap(xerrors.CodePipelineAborted, err,
				fmt.Sprintf("任务 %d（%s）失败，流水线中止", idx, task.Role()),
				xerrors.WithMetadata("task_index", strconv.Itoa(idx)),
				xerrors.WithMetadata("run_id", c.runID))
			logger.Audit().Warn("编排运行中止",
				slog.String("run_id", c.runID),
				slog.Int("task_index", idx),
				slog.String("role", task.Role()),
				slog.String("error_code", string(xerrors.CodeOf(err))),
				slog.String("error", err.Error()),
			)
			c.alert(ctx, idx, task.Role(), aborted)
			return "", aborted
		}

		logger.Audit().Info("任务完成",
			slog.String("run_id", c.runID),
			slog.Int("task_index", idx),
			slog.String("role", task.Role()),
		)
		contexts = append(contexts, agent.ContextEntry{Role: task.Role(), Output: output})
		result = output
	}

	c.state = StateCompleted
	logger.Audit().Info("编排运行完成",
		slog.String("run_id", c.runID),
		slog.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (c *Crew) alert(ctx context.Context, taskIndex int, role string, cause error) {
	if c.alerter == nil {
		return
	}
	code := xerrors.CodeOf(cause)
	event := alerting.Event{
		Code:       code,
		Message:    cause.Error(),
		Severity:   xerrors.AttributesOf(code).Severity,
		RunID:      c.runID,
		TaskIndex:  taskIndex,
		Role:       role,
		OccurredAt: time.Now(),
	}
	if err := c.alerter.Notify(ctx, event); err != nil {
		c.logger.Error("告警通知失败",
			slog.String("run_id", c.runID),
			slog.Int("task_index", taskIndex),
			slog.Any("error", err),
		)
	}
}
