package tool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	xerrors "MarketCrew/internal/errors"
	"MarketCrew/pkg/logger"
)

// Invoker 把一项外部能力包装成统一的调用契约。每次调用都是独立且
// 幂等的，失败以带错误码的 error 返回，不允许让异常逃逸到推理循环之外。
type Invoker interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, input string) (string, error)
}

func init() {
	xerrors.Register(xerrors.CodeToolFailure, xerrors.Attributes{
		Message:   "tool invocation failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}

const retryBaseDelay = 500 * time.Millisecond

// Retry 以指数退避执行 op，最多重试 maxRetries 次。只有被标记为可重试的
// 错误才会触发重试；重试耗尽后包装为 TOOL_FAILURE 返回给调用方。
func Retry(ctx context.Context, name string, maxRetries int, op func(ctx context.Context) (string, error)) (string, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			logger.Audit().Warn("工具调用重试",
				slog.String("tool", name),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return "", Failure(name, xerrors.Wrap(xerrors.CodeTimeout, ctx.Err(), "等待重试时上下文已取消"))
			case <-time.After(delay):
			}
		}

		output, err := op(ctx)
		if err == nil {
			return output, nil
		}
		lastErr = err
		if !xerrors.RetryableError(err) {
			return "", Failure(name, err)
		}
	}
	return "", Failure(name, xerrors.Wrap(xerrors.CodeRetriesExhausted, lastErr,
		fmt.Sprintf("重试 %d 次后仍然失败", maxRetries)))
}

// Failure 把任意错误包装成工具失败，附带工具名称便于上层定位。
func Failure(name string, cause error) error {
	return xerrors.Wrap(xerrors.CodeToolFailure, cause,
		fmt.Sprintf("工具 %s 调用失败", name),
		xerrors.WithMetadata("tool", name))
}
