package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	xerrors "MarketCrew/internal/errors"
)

// Write 原子地把报告写入目标路径：先写同目录下的临时文件再重命名，
// 保证读者永远不会看到半成品报告。已存在的报告会被整体替换。
func Write(path, content string) error {
	if strings.TrimSpace(path) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "报告输出路径不能为空")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err, "创建报告目录失败", xerrors.WithRetryable(false))
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err, "创建临时报告文件失败", xerrors.WithRetryable(false))
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.WriteString(content); err != nil {
		cleanup()
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err, "写入报告内容失败", xerrors.WithRetryable(false))
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err, "落盘报告内容失败", xerrors.WithRetryable(false))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err, "关闭临时报告文件失败", xerrors.WithRetryable(false))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		// 报告已经生成却无法落盘，比普通执行失败更严重。
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err,
			fmt.Sprintf("替换报告文件 %s 失败", path),
			xerrors.WithRetryable(false), xerrors.WithSeverity(xerrors.SeverityCritical))
	}
	return nil
}
