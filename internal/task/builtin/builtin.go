// Package builtin 注册内置任务。
// 通过空白导入引入：import _ "yqhp/taskqueue/internal/task/builtin"
package builtin

import (
	"context"
	"time"

	"go.uber.org/zap"

	"yqhp/taskqueue/internal/task"
	"yqhp/taskqueue/pkg/logger"
)

const (
	// EchoTask 把收到的参数写入日志。
	EchoTask = "echo"
	// SleepTask 休眠 duration 参数指定的时长，可被取消。
	SleepTask = "sleep"

	maxSleep = 10 * time.Minute
)

func init() {
	task.MustRegister(EchoTask, Echo)
	task.MustRegister(SleepTask, Sleep)
}

// Echo 记录 kwargs。
func Echo(ctx context.Context, kwargs task.Kwargs) error {
	logger.Named("builtin").Info("echo", zap.Any("kwargs", map[string]any(kwargs)))
	return nil
}

// Sleep 休眠 kwargs["duration"]（默认 1s，最长 10m）。
func Sleep(ctx context.Context, kwargs task.Kwargs) error {
	d := kwargs.Duration("duration", time.Second)
	if d > maxSleep {
		d = maxSleep
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
