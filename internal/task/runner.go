package task

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"yqhp/taskqueue/pkg/logger"
)

// Runner 解析并执行任务。
type Runner struct {
	resolver *Resolver
	log      *zap.Logger
}

// NewRunner 创建一个任务执行器，log 为 nil 时使用全局日志。
func NewRunner(resolver *Resolver, log *zap.Logger) *Runner {
	if log == nil {
		log = logger.Named("task")
	}
	return &Runner{
		resolver: resolver,
		log:      log,
	}
}

// Resolver 返回执行器使用的解析器。
func (r *Runner) Resolver() *Resolver {
	return r.resolver
}

// Execute 解析并调用任务。
// 任务找不到时记录一条错误日志并返回 ErrCodeNotFound 错误，消息被丢弃，不重试。
// 任务返回错误或 panic 时返回 ErrCodeExecution 错误。
func (r *Runner) Execute(ctx context.Context, name string, kwargs Kwargs) error {
	fn, source, err := r.resolver.resolve(name)
	if err != nil {
		r.log.Error("task not found", zap.String("task", name))
		return err
	}

	if kwargs == nil {
		kwargs = Kwargs{}
	}

	r.log.Debug("executing task", zap.String("task", name), zap.String("source", source))
	if err := invoke(ctx, fn, kwargs); err != nil {
		return NewExecutionError(name, err)
	}
	return nil
}

// invoke 调用任务并把 panic 转换为错误。
func invoke(ctx context.Context, fn Func, kwargs Kwargs) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return fn(ctx, kwargs)
}
