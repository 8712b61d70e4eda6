package crew

import (
	"context"
	"strings"

	"MarketCrew/internal/agent"
	xerrors "MarketCrew/internal/errors"
)

// Executor 定义任务所需的智能体能力。*agent.Agent 是生产实现。
type Executor interface {
	Role() string
	Execute(ctx context.Context, description, expectedOutput string, contexts []agent.ContextEntry) (string, error)
}

// Task 是一个顺序执行的工作单元：一段指令、一份产出形状约定和唯一的
// 执行者。创建之后执行者不可更换，整个生命周期内最多执行一次。
type Task struct {
	description    string
	expectedOutput string
	executor       Executor
	executed       bool
	result         string
}

// NewTask 创建一个任务。描述与执行者都不可缺省。
func NewTask(description, expectedOutput string, executor Executor) (*Task, error) {
	if strings.TrimSpace(description) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "任务描述不能为空")
	}
	if executor == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "任务必须绑定一个智能体")
	}
	return &Task{
		description:    description,
		expectedOutput: expectedOutput,
		executor:       executor,
	}, nil
}

// Execute 把任务交给绑定的智能体执行并保存结果。重复调用属于使用方
// 的编程错误，返回 TASK_ALREADY_EXECUTED。智能体的失败原样向上传递。
func (t *Task) Execute(ctx context.Context, contexts []agent.ContextEntry) (string, error) {
	if t.executed {
		return "", xerrors.New(xerrors.CodeTaskAlreadyExecuted,
			"任务已经执行过，不允许重复执行",
			xerrors.WithMetadata("role", t.executor.Role()))
	}
	t.executed = true

	result, err := t.executor.Execute(ctx, t.description, t.expectedOutput, contexts)
	if err != nil {
		return "", err
	}
	t.result = result
	return result, nil
}

// Role 返回任务执行者的角色名。
func (t *Task) Role() string {
	return t.executor.Role()
}

// Description 返回任务描述。
func (t *Task) Description() string {
	return t.description
}

// Executed 返回任务是否已经执行。
func (t *Task) Executed() bool {
	return t.executed
}

// Result 返回任务结果，未执行或执行失败时为空字符串。
func (t *Task) Result() string {
	return t.result
}
